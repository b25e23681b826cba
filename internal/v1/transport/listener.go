package transport

import (
	"github.com/covey-town/townservice/internal/v1/town"
)

// socketListener translates one town's events into outbound messages for a
// single subscribed client. OnTownDestroyed additionally closes the socket
// after the townClosing message is queued.
type socketListener struct {
	client *Client
}

func newSocketListener(client *Client) *socketListener {
	return &socketListener{client: client}
}

func (s *socketListener) OnPlayerJoined(player *town.Player) {
	s.client.enqueue(Message{Event: EventNewPlayer, Payload: player})
}

func (s *socketListener) OnPlayerMoved(player *town.Player) {
	s.client.enqueue(Message{Event: EventPlayerMoved, Payload: player})
}

func (s *socketListener) OnPlayerDisconnected(player *town.Player) {
	s.client.enqueue(Message{Event: EventPlayerDisconnect, Payload: player})
}

func (s *socketListener) OnTownDestroyed() {
	s.client.enqueue(Message{Event: EventTownClosing})
	s.client.closeSend()
}

func (s *socketListener) OnConversationAreaUpdated(area *town.ConversationArea) {
	s.client.enqueue(Message{Event: EventConversationUpdated, Payload: area})
}

func (s *socketListener) OnConversationAreaDestroyed(area *town.ConversationArea) {
	s.client.enqueue(Message{Event: EventConversationDestroyed, Payload: area})
}
