package controller

import (
	"net/http"

	"github.com/flodrama/watchparty/internal/domain"
	"github.com/flodrama/watchparty/internal/service/room"
	"github.com/flodrama/watchparty/pkg/rest"
	"github.com/go-chi/chi/v5"
)

func (c controller) listRooms(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.roomService.RoomIds(r.Context())})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	snapshot, err := c.roomService.GetSnapshot(r.Context(), roomId)
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": snapshot})
}

func (c controller) getMessages(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	since, err := c.getUintQueryParam(r, "since")
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error(), "code": "INVALID_INPUT"})
		return
	}

	messages, err := c.roomService.ListMessages(r.Context(), &room.ListMessagesParams{
		RoomId: roomId,
		Since:  since,
	})
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	list := make([]domain.Message, 0)
	for msg := range messages {
		list = append(list, msg)
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": list})
}
