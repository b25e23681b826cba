package town

import "github.com/google/uuid"

// PlayerSession binds one player to one town controller. The session token is
// the player's credential for the socket subscription handshake; the video
// token is the third-party capability minted for them at join time.
type PlayerSession struct {
	player       *Player
	sessionToken string
	videoToken   string
}

func newPlayerSession(player *Player, videoToken string) *PlayerSession {
	return &PlayerSession{
		player:       player,
		sessionToken: uuid.NewString(),
		videoToken:   videoToken,
	}
}

// Player returns the player this session authenticates.
func (s *PlayerSession) Player() *Player {
	return s.player
}

// SessionToken returns the opaque token identifying this session.
func (s *PlayerSession) SessionToken() string {
	return s.sessionToken
}

// VideoToken returns the video-chat capability minted for this session.
func (s *PlayerSession) VideoToken() string {
	return s.videoToken
}
