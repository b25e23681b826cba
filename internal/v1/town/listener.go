package town

// TownListener is an observer of a single town's state changes. Listeners are
// dispatched synchronously, in registration order, inside the controller's
// serialization domain: callbacks must return quickly and must not call back
// into mutating controller operations.
//
// A listener that panics is logged and skipped; later listeners still run.
type TownListener interface {
	// OnPlayerJoined fires after a new player's session is committed.
	OnPlayerJoined(player *Player)

	// OnPlayerMoved fires after a player's location is committed. Within one
	// location update, conversation-area events fire before OnPlayerMoved.
	OnPlayerMoved(player *Player)

	// OnPlayerDisconnected fires after a player's session is destroyed.
	OnPlayerDisconnected(player *Player)

	// OnTownDestroyed fires when the town is being torn down. Subscribers are
	// expected to close their sockets.
	OnTownDestroyed()

	// OnConversationAreaUpdated fires when an area is created or its occupant
	// list changes.
	OnConversationAreaUpdated(area *ConversationArea)

	// OnConversationAreaDestroyed fires when an area transitions from
	// non-empty to empty and is removed from the town.
	OnConversationAreaDestroyed(area *ConversationArea)
}
