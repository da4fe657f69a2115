package controller

import (
	"context"
	"fmt"

	"github.com/flodrama/watchparty/internal/domain"
	"github.com/flodrama/watchparty/internal/service/room"
	"github.com/flodrama/watchparty/pkg/wsrouter"
)

type EmptyInput struct{}

func (c controller) validateInput(input any) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return validationError{errors: errs}
	}

	return nil
}

func (c controller) handleAlive(_ context.Context, _ *wsrouter.Conn, _ EmptyInput) error {
	return nil
}

func (c controller) handleGetSnapshot(ctx context.Context, conn *wsrouter.Conn, _ EmptyInput) error {
	roomId := c.getRoomIdFromCtx(ctx)

	snapshot, err := c.roomService.GetSnapshot(ctx, roomId)
	if err != nil {
		return fmt.Errorf("failed to get snapshot: %w", err)
	}

	return c.writeToConn(ctx, conn, &Output{
		Type:    "SNAPSHOT",
		Payload: snapshot,
	})
}

func (c controller) handleLeaveRoom(ctx context.Context, conn *wsrouter.Conn, _ EmptyInput) error {
	roomId := c.getRoomIdFromCtx(ctx)
	memberId := c.getMemberIdFromCtx(ctx)

	unlock := c.memberLocks.lock(roomId, memberId)
	if err := c.connRepo.Remove(roomId, memberId, conn); err != nil {
		unlock()
		return fmt.Errorf("failed to release conn: %w", domain.ErrMemberNotFound)
	}

	c.leave(ctx, roomId, memberId)
	unlock()

	if err := conn.WriteClose(closeCodeLeft, "left room"); err != nil {
		c.logger.DebugContext(ctx, "failed to write close", "error", err)
	}

	return nil
}

type SendMessageInput struct {
	Type    string                `json:"type" validate:"required,oneof=text emoji gif"`
	Content domain.MessageContent `json:"content"`
}

func (c controller) handleSendMessage(ctx context.Context, _ *wsrouter.Conn, input SendMessageInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	roomId := c.getRoomIdFromCtx(ctx)
	memberId := c.getMemberIdFromCtx(ctx)

	sendMessageResp, err := c.roomService.SendMessage(ctx, &room.SendMessageParams{
		RoomId:   roomId,
		SenderId: memberId,
		Type:     input.Type,
		Content:  input.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.metrics.RecordMessage(input.Type)
	c.markDirty(roomId)

	c.broadcastRoom(ctx, roomId, &Output{
		Type: "MESSAGE_SENT",
		Payload: map[string]any{
			"message": sendMessageResp.Message,
		},
	})

	return nil
}

type GetMessagesInput struct {
	Since uint64 `json:"since"`
}

func (c controller) handleGetMessages(ctx context.Context, conn *wsrouter.Conn, input GetMessagesInput) error {
	roomId := c.getRoomIdFromCtx(ctx)

	messages, err := c.roomService.ListMessages(ctx, &room.ListMessagesParams{
		RoomId: roomId,
		Since:  input.Since,
	})
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	list := make([]domain.Message, 0)
	for msg := range messages {
		list = append(list, msg)
	}

	return c.writeToConn(ctx, conn, &Output{
		Type: "MESSAGES",
		Payload: map[string]any{
			"since":    input.Since,
			"messages": list,
		},
	})
}

type PlaybackControlInput struct {
	Action   string   `json:"action" validate:"required,oneof=play pause seek"`
	Time     *float64 `json:"time" validate:"omitempty,gte=0"`
	IssuedAt int64    `json:"issued_at" validate:"gte=0"`
}

func (c controller) handlePlaybackControl(ctx context.Context, conn *wsrouter.Conn, input PlaybackControlInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	roomId := c.getRoomIdFromCtx(ctx)
	memberId := c.getMemberIdFromCtx(ctx)

	playbackResp, err := c.roomService.ApplyPlaybackControl(ctx, &room.ApplyPlaybackControlParams{
		RoomId:   roomId,
		SenderId: memberId,
		Action:   input.Action,
		Time:     input.Time,
		IssuedAt: input.IssuedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to apply playback control: %w", err)
	}

	c.metrics.RecordPlaybackCommand(input.Action, playbackResp.IsAccepted)

	output := &Output{
		Type: "PLAYER_UPDATED",
		Payload: map[string]any{
			"player":      playbackResp.Player,
			"is_accepted": playbackResp.IsAccepted,
		},
	}

	// a stale command only resyncs its sender
	if !playbackResp.IsAccepted {
		return c.writeToConn(ctx, conn, output)
	}

	c.markDirty(roomId)
	c.broadcastRoom(ctx, roomId, output)

	return nil
}

type UpdateReadyInput struct {
	IsReady bool `json:"is_ready"`
}

func (c controller) handleUpdateReady(ctx context.Context, _ *wsrouter.Conn, input UpdateReadyInput) error {
	roomId := c.getRoomIdFromCtx(ctx)
	memberId := c.getMemberIdFromCtx(ctx)

	setReadyResp, err := c.roomService.SetReady(ctx, &room.SetReadyParams{
		RoomId:   roomId,
		SenderId: memberId,
		IsReady:  input.IsReady,
	})
	if err != nil {
		return fmt.Errorf("failed to update ready: %w", err)
	}

	c.markDirty(roomId)

	c.broadcastRoom(ctx, roomId, &Output{
		Type: "MEMBER_UPDATED",
		Payload: map[string]any{
			"updated_member": setReadyResp.UpdatedMember,
			"members":        setReadyResp.Members,
		},
	})

	return nil
}
