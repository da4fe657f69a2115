package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/flodrama/watchparty/internal/domain"
)

type JoinRoomParams struct {
	RoomId      string
	UserId      string
	DisplayName string
}

type JoinRoomResponse struct {
	JoinedMember  domain.Member
	SystemMessage domain.Message
	Snapshot      domain.Snapshot
}

func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	var resp JoinRoomResponse
	err := s.roomStore.Update(ctx, params.RoomId, func(r *domain.Room) (bool, error) {
		member, err := r.Members.Add(params.UserId, params.DisplayName, s.now())
		if err != nil {
			return false, err
		}

		resp = JoinRoomResponse{
			JoinedMember:  member,
			SystemMessage: s.appendSystemMessage(r, fmt.Sprintf("%s joined", member.DisplayName)),
			Snapshot:      r.Snapshot(),
		}

		return false, nil
	})
	if err != nil {
		return JoinRoomResponse{}, err
	}

	return resp, nil
}

type LeaveRoomParams struct {
	RoomId string
	UserId string
}

type LeaveRoomResponse struct {
	// IsMemberRemoved is false when the member was not in the room.
	IsMemberRemoved bool
	LeftMember      domain.Member
	PromotedHost    *domain.Member
	SystemMessage   *domain.Message
	Members         []domain.Member
	IsRoomDeleted   bool
}

// LeaveRoom removes the member, hands the host role over when needed and
// drops the room once it is empty. Leaving twice is a no-op, also when the
// first call dropped the room.
func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	var resp LeaveRoomResponse
	err := s.roomStore.Update(ctx, params.RoomId, func(r *domain.Room) (bool, error) {
		left, removedHost, ok := r.Members.Remove(params.UserId)
		if !ok {
			resp.Members = r.Members.AsList()
			return false, nil
		}

		resp.IsMemberRemoved = true
		resp.LeftMember = left

		if r.Members.Length() == 0 {
			resp.IsRoomDeleted = true
			return true, nil
		}

		text := fmt.Sprintf("%s left", left.DisplayName)
		if removedHost {
			if host, promoted := r.Members.PromoteNextHost(); promoted {
				resp.PromotedHost = &host
				text = fmt.Sprintf("%s left, %s is now host", left.DisplayName, host.DisplayName)
			}
		}

		msg := s.appendSystemMessage(r, text)
		resp.SystemMessage = &msg
		resp.Members = r.Members.AsList()

		return false, nil
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return LeaveRoomResponse{}, nil
	}
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	if resp.IsRoomDeleted {
		s.logger.DebugContext(ctx, "room deleted", "room_id", params.RoomId)
	}

	return resp, nil
}

type SetReadyParams struct {
	RoomId   string
	SenderId string
	IsReady  bool
}

type SetReadyResponse struct {
	UpdatedMember domain.Member
	Members       []domain.Member
}

func (s service) SetReady(ctx context.Context, params *SetReadyParams) (SetReadyResponse, error) {
	var resp SetReadyResponse
	err := s.roomStore.Update(ctx, params.RoomId, func(r *domain.Room) (bool, error) {
		member, err := r.Members.SetReady(params.SenderId, params.IsReady)
		if err != nil {
			return false, err
		}

		resp = SetReadyResponse{
			UpdatedMember: member,
			Members:       r.Members.AsList(),
		}

		return false, nil
	})
	if err != nil {
		return SetReadyResponse{}, err
	}

	return resp, nil
}
