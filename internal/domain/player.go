package domain

import (
	"fmt"
	"math"
)

type PlaybackAction string

const (
	PlaybackActionPlay  PlaybackAction = "play"
	PlaybackActionPause PlaybackAction = "pause"
	PlaybackActionSeek  PlaybackAction = "seek"
)

// PlaybackCommand is a play/pause/seek request issued by a member.
// IssuedAt is in unix milliseconds as reported by the issuer.
type PlaybackCommand struct {
	Action   PlaybackAction
	Time     *float64
	IssuedAt int64
	MemberID string
}

// PlaybackState is the authoritative timeline of a room.
type PlaybackState struct {
	VideoRef      string  `json:"video_ref"`
	IsPlaying     bool    `json:"is_playing"`
	CurrentTime   float64 `json:"current_time"`
	LastUpdated   int64   `json:"last_updated"`
	LastUpdatedBy string  `json:"last_updated_by"`
}

func NewPlaybackState(videoRef string) PlaybackState {
	return PlaybackState{
		VideoRef:    videoRef,
		IsPlaying:   false,
		CurrentTime: 0,
	}
}

func (c PlaybackCommand) validate() error {
	if c.Time != nil {
		t := *c.Time
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return fmt.Errorf("time must be a non-negative number: %w", ErrInvalidInput)
		}
	}

	switch c.Action {
	case PlaybackActionSeek:
		if c.Time == nil {
			return fmt.Errorf("seek requires time: %w", ErrInvalidInput)
		}
	case PlaybackActionPlay, PlaybackActionPause:
	default:
		return fmt.Errorf("unknown playback action %q: %w", c.Action, ErrInvalidInput)
	}

	return nil
}

// supersededBy reports whether cmd is newer than the stored state. Equal
// timestamps are ordered by member id, lexicographically smaller wins. A
// state nobody wrote yet accepts any command at its timestamp.
func (s PlaybackState) supersededBy(cmd PlaybackCommand) bool {
	if cmd.IssuedAt != s.LastUpdated {
		return cmd.IssuedAt > s.LastUpdated
	}

	return s.LastUpdatedBy == "" || cmd.MemberID < s.LastUpdatedBy
}

// Apply reconciles cmd into the state. It returns false without touching the
// state when cmd is older than the last accepted command.
func (s *PlaybackState) Apply(cmd PlaybackCommand) (bool, error) {
	if err := cmd.validate(); err != nil {
		return false, err
	}

	if !s.supersededBy(cmd) {
		return false, nil
	}

	switch cmd.Action {
	case PlaybackActionPlay:
		s.IsPlaying = true
	case PlaybackActionPause:
		s.IsPlaying = false
	}

	if cmd.Time != nil {
		s.CurrentTime = *cmd.Time
	}

	s.LastUpdated = cmd.IssuedAt
	s.LastUpdatedBy = cmd.MemberID

	return true, nil
}
