package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/flodrama/watchparty/pkg/rest"
	"github.com/flodrama/watchparty/pkg/wsrouter"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	MessageType string `json:"message_type,omitempty"`
	Errors      any    `json:"errors,omitempty"`
}

func (c controller) writeToConn(ctx context.Context, conn *wsrouter.Conn, output *Output) error {
	if err := conn.WriteJSON(output); err != nil {
		return fmt.Errorf("failed to write %s: %w", output.Type, err)
	}

	return nil
}

// broadcast writes output to every conn except skip. Failed writes are only
// logged, the reader of a broken conn cleans it up.
func (c controller) broadcast(ctx context.Context, conns []*wsrouter.Conn, skip *wsrouter.Conn, output *Output) {
	for _, conn := range conns {
		if conn == skip {
			continue
		}

		if err := c.writeToConn(ctx, conn, output); err != nil {
			c.logger.DebugContext(ctx, "failed to broadcast", "error", err)
		}
	}
}

func (c controller) broadcastRoom(ctx context.Context, roomId string, output *Output) {
	c.broadcast(ctx, c.connRepo.GetConns(roomId), nil, output)
}

func (c controller) markDirty(roomId string) {
	if c.archiver != nil {
		c.archiver.MarkDirty(roomId)
	}
}

func (c controller) newErrorPayload(ctx context.Context, err error) (errorPayload, int) {
	code, status := mapError(err)
	payload := errorPayload{
		Code:        code,
		Message:     err.Error(),
		MessageType: wsrouter.GetMessageTypeFromCtx(ctx),
	}

	var vErr validationError
	if errors.As(err, &vErr) {
		payload.Errors = vErr.errors
	}

	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(ctx, "internal error", "error", err)
		payload.Message = "internal error"
	} else {
		c.logger.DebugContext(ctx, "request failed", "code", code, "error", err)
	}

	return payload, status
}

// handleWSError answers a failed websocket message with ERROR to the sender.
func (c controller) handleWSError(ctx context.Context, conn *wsrouter.Conn, err error) {
	payload, _ := c.newErrorPayload(ctx, err)
	c.metrics.RecordWSError(payload.Code)

	if err := c.writeToConn(ctx, conn, &Output{
		Type:    "ERROR",
		Payload: payload,
	}); err != nil {
		c.logger.DebugContext(ctx, "failed to write error", "error", err)
	}
}

func (c controller) writeHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	payload, status := c.newErrorPayload(r.Context(), err)

	envelope := rest.Envelope{"error": payload.Message, "code": payload.Code}
	if payload.Errors != nil {
		envelope["errors"] = payload.Errors
	}

	if err := rest.WriteJSON(w, status, envelope); err != nil {
		c.logger.DebugContext(r.Context(), "failed to write response", "error", err)
	}
}
