package room

import (
	"context"
	"fmt"

	"github.com/flodrama/watchparty/internal/domain"
)

type SendMessageParams struct {
	RoomId   string
	SenderId string
	Type     string
	Content  domain.MessageContent
}

type SendMessageResponse struct {
	Message domain.Message
}

func (s service) SendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	var resp SendMessageResponse
	err := s.roomStore.Update(ctx, params.RoomId, func(r *domain.Room) (bool, error) {
		member, err := r.Members.Get(params.SenderId)
		if err != nil {
			return false, err
		}

		draft := domain.MessageDraft{
			AuthorID:   member.UserID,
			AuthorName: member.DisplayName,
			Type:       domain.MessageType(params.Type),
			Content:    params.Content,
		}
		if draft.Type == domain.MessageTypeSystem {
			return false, fmt.Errorf("system messages are server only: %w", domain.ErrInvalidInput)
		}

		if err := draft.Validate(); err != nil {
			return false, err
		}

		resp.Message = r.Messages.Append(draft, s.newId(), s.now())

		return false, nil
	})
	if err != nil {
		return SendMessageResponse{}, err
	}

	return resp, nil
}
