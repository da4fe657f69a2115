package domain

import (
	"fmt"
	"time"
)

// ControlPolicy decides whose playback commands a room accepts.
type ControlPolicy string

const (
	ControlPolicyOpen           ControlPolicy = "open"
	ControlPolicyHostControlled ControlPolicy = "host-controlled"
)

func ParseControlPolicy(s string) (ControlPolicy, error) {
	switch ControlPolicy(s) {
	case "", ControlPolicyOpen:
		return ControlPolicyOpen, nil
	case ControlPolicyHostControlled:
		return ControlPolicyHostControlled, nil
	default:
		return "", fmt.Errorf("unknown control policy %q: %w", s, ErrInvalidInput)
	}
}

type Room struct {
	ID        string
	CreatedAt time.Time
	Policy    ControlPolicy
	Player    PlaybackState
	Members   *Members
	Messages  *MessageLog
}

func NewRoom(id string, policy ControlPolicy, videoRef string, createdAt time.Time, membersLimit int) *Room {
	return &Room{
		ID:        id,
		CreatedAt: createdAt,
		Policy:    policy,
		Player:    NewPlaybackState(videoRef),
		Members:   NewMembers(membersLimit),
		Messages:  NewMessageLog(),
	}
}

// CanControl reports whether the member may drive playback under the room policy.
func (r Room) CanControl(member Member) bool {
	return r.Policy != ControlPolicyHostControlled || member.IsHost
}

// Snapshot is the full point-in-time state of a room, used for client resync
// and archiving.
type Snapshot struct {
	RoomID        string        `json:"room_id"`
	CreatedAt     time.Time     `json:"created_at"`
	Policy        ControlPolicy `json:"policy"`
	PlaybackState PlaybackState `json:"playback_state"`
	Members       []Member      `json:"members"`
	Messages      []Message     `json:"messages"`
}

func (r Room) Snapshot() Snapshot {
	messages := make([]Message, 0, r.Messages.Len())
	for msg := range r.Messages.List(0) {
		messages = append(messages, msg)
	}

	return Snapshot{
		RoomID:        r.ID,
		CreatedAt:     r.CreatedAt,
		Policy:        r.Policy,
		PlaybackState: r.Player,
		Members:       r.Members.AsList(),
		Messages:      messages,
	}
}

// RestoreRoom rebuilds a room from a snapshot.
func RestoreRoom(s Snapshot, membersLimit int) (*Room, error) {
	if s.RoomID == "" {
		return nil, fmt.Errorf("restore room: empty room id: %w", ErrInvalidInput)
	}

	policy, err := ParseControlPolicy(string(s.Policy))
	if err != nil {
		return nil, fmt.Errorf("restore room %q: %w", s.RoomID, err)
	}

	members, err := restoreMembers(s.Members, membersLimit)
	if err != nil {
		return nil, fmt.Errorf("restore room %q: %w", s.RoomID, err)
	}

	if members.Length() == 0 {
		return nil, fmt.Errorf("restore room %q: no members: %w", s.RoomID, ErrInvalidInput)
	}

	messages, err := restoreMessageLog(s.Messages)
	if err != nil {
		return nil, fmt.Errorf("restore room %q: %w", s.RoomID, err)
	}

	return &Room{
		ID:        s.RoomID,
		CreatedAt: s.CreatedAt,
		Policy:    policy,
		Player:    s.PlaybackState,
		Members:   members,
		Messages:  messages,
	}, nil
}
