package room

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/flodrama/watchparty/internal/domain"
)

type CreateRoomParams struct {
	UserId      string
	DisplayName string
	VideoRef    string
	Policy      string
}

type CreateRoomResponse struct {
	RoomId   string
	Host     domain.Member
	Snapshot domain.Snapshot
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	if strings.TrimSpace(params.VideoRef) == "" {
		return CreateRoomResponse{}, fmt.Errorf("video ref is empty: %w", domain.ErrInvalidInput)
	}

	policy, err := domain.ParseControlPolicy(params.Policy)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	now := s.now()
	r := domain.NewRoom(s.newId(), policy, params.VideoRef, now, s.membersLimit)
	host, err := r.Members.Add(params.UserId, params.DisplayName, now)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	if err := s.roomStore.Add(ctx, r); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to add room: %w", err)
	}

	s.logger.DebugContext(ctx, "room created", "room_id", r.ID, "policy", policy)

	return CreateRoomResponse{
		RoomId:   r.ID,
		Host:     host,
		Snapshot: r.Snapshot(),
	}, nil
}

func (s service) GetSnapshot(ctx context.Context, roomId string) (domain.Snapshot, error) {
	var snapshot domain.Snapshot
	if err := s.roomStore.View(ctx, roomId, func(r *domain.Room) error {
		snapshot = r.Snapshot()
		return nil
	}); err != nil {
		return domain.Snapshot{}, err
	}

	return snapshot, nil
}

type ListMessagesParams struct {
	RoomId string
	Since  uint64
}

// ListMessages returns the messages appended after the Since cursor. The
// sequence reflects the log at call time.
func (s service) ListMessages(ctx context.Context, params *ListMessagesParams) (iter.Seq[domain.Message], error) {
	var messages iter.Seq[domain.Message]
	if err := s.roomStore.View(ctx, params.RoomId, func(r *domain.Room) error {
		messages = r.Messages.List(params.Since)
		return nil
	}); err != nil {
		return nil, err
	}

	return messages, nil
}

// RestoreRoom puts an archived room back into the store.
func (s service) RestoreRoom(ctx context.Context, snapshot *domain.Snapshot) error {
	r, err := domain.RestoreRoom(*snapshot, s.membersLimit)
	if err != nil {
		return err
	}

	if err := s.roomStore.Add(ctx, r); err != nil {
		return fmt.Errorf("failed to add room: %w", err)
	}

	return nil
}

func (s service) RoomIds(ctx context.Context) []string {
	return s.roomStore.IDs(ctx)
}
