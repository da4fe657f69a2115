package room

import (
	"context"

	"github.com/flodrama/watchparty/internal/domain"
)

type ApplyPlaybackControlParams struct {
	RoomId   string
	SenderId string
	Action   string
	Time     *float64
	// IssuedAt is the issuer's unix time in milliseconds; zero means now.
	IssuedAt int64
}

type ApplyPlaybackControlResponse struct {
	Player domain.PlaybackState
	// IsAccepted is false when the command was older than the current state;
	// Player then holds the unchanged authoritative state.
	IsAccepted bool
}

func (s service) ApplyPlaybackControl(ctx context.Context, params *ApplyPlaybackControlParams) (ApplyPlaybackControlResponse, error) {
	issuedAt := params.IssuedAt
	if issuedAt == 0 {
		issuedAt = s.now().UnixMilli()
	}

	var resp ApplyPlaybackControlResponse
	err := s.roomStore.Update(ctx, params.RoomId, func(r *domain.Room) (bool, error) {
		member, err := r.Members.Get(params.SenderId)
		if err != nil {
			return false, err
		}

		if !r.CanControl(member) {
			return false, domain.ErrNotAuthorized
		}

		accepted, err := r.Player.Apply(domain.PlaybackCommand{
			Action:   domain.PlaybackAction(params.Action),
			Time:     params.Time,
			IssuedAt: issuedAt,
			MemberID: member.UserID,
		})
		if err != nil {
			return false, err
		}

		resp = ApplyPlaybackControlResponse{
			Player:     r.Player,
			IsAccepted: accepted,
		}

		return false, nil
	})
	if err != nil {
		return ApplyPlaybackControlResponse{}, err
	}

	return resp, nil
}
