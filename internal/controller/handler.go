package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/flodrama/watchparty/internal/domain"
	"github.com/flodrama/watchparty/internal/repository/connection"
	"github.com/flodrama/watchparty/internal/service/room"
	"github.com/flodrama/watchparty/pkg/ctxlogger"
	"github.com/flodrama/watchparty/pkg/wsrouter"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	maxMessageSize     = 64 << 10
	defaultReadTimeout = 60 * time.Second

	closeCodeLeft = 4001
)

func (c controller) getValidUser(r *http.Request) (user, error) {
	u, err := c.getUser(r)
	if err != nil {
		return user{}, err
	}

	if errs, ok := c.validate.Validate(u); !ok {
		return user{}, validationError{errors: errs}
	}

	return u, nil
}

type createRoomQuery struct {
	VideoRef string `json:"video-ref" validate:"required,max=2048"`
	Policy   string `json:"policy" validate:"omitempty,oneof=open host-controlled"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	u, err := c.getValidUser(r)
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	query := createRoomQuery{
		VideoRef: r.URL.Query().Get("video-ref"),
		Policy:   r.URL.Query().Get("policy"),
	}
	if errs, ok := c.validate.Validate(query); !ok {
		c.writeHTTPError(w, r, validationError{errors: errs})
		return
	}

	createRoomResp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		UserId:      u.Id,
		DisplayName: u.DisplayName,
		VideoRef:    query.VideoRef,
		Policy:      query.Policy,
	})
	if err != nil {
		c.writeHTTPError(w, r, fmt.Errorf("failed to create room: %w", err))
		return
	}

	c.metrics.RecordRoomCreated()
	c.markDirty(createRoomResp.RoomId)

	c.serveMember(w, r, createRoomResp.RoomId, createRoomResp.Host, nil)
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	u, err := c.getValidUser(r)
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	joinRoomResp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		RoomId:      roomId,
		UserId:      u.Id,
		DisplayName: u.DisplayName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateMember) {
			c.resumeMember(w, r, roomId, u)
			return
		}

		c.writeHTTPError(w, r, fmt.Errorf("failed to join room: %w", err))
		return
	}

	c.markDirty(roomId)

	c.serveMember(w, r, roomId, joinRoomResp.JoinedMember, &Output{
		Type: "MEMBER_JOINED",
		Payload: map[string]any{
			"joined_member":  joinRoomResp.JoinedMember,
			"system_message": joinRoomResp.SystemMessage,
			"members":        joinRoomResp.Snapshot.Members,
		},
	})
}

// resumeMember reattaches a member that has no live connection, which is the
// case for members of rooms restored from the archive.
func (c controller) resumeMember(w http.ResponseWriter, r *http.Request, roomId string, u user) {
	if _, err := c.connRepo.GetConn(roomId, u.Id); err == nil {
		c.writeHTTPError(w, r, domain.ErrDuplicateMember)
		return
	}

	snapshot, err := c.roomService.GetSnapshot(r.Context(), roomId)
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	i := slices.IndexFunc(snapshot.Members, func(m domain.Member) bool {
		return m.UserID == u.Id
	})
	if i < 0 {
		c.writeHTTPError(w, r, domain.ErrMemberNotFound)
		return
	}

	c.logger.InfoContext(r.Context(), "member resumed", "room_id", roomId, "member_id", u.Id)
	c.serveMember(w, r, roomId, snapshot.Members[i], nil)
}

// serveMember upgrades the request, registers the connection of an already
// joined member and serves it until the connection is closed. joined is
// broadcast to the other members once the new member got its snapshot.
func (c controller) serveMember(w http.ResponseWriter, r *http.Request, roomId string, member domain.Member, joined *Output) {
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("room_id", roomId))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", member.UserID))

	wsConn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		c.leave(ctx, roomId, member.UserID)
		return
	}

	conn := wsrouter.NewConn(wsConn)
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadTimeout(c.readTimeout); err != nil {
		c.logger.WarnContext(ctx, "failed to set read timeout", "error", err)
		c.leave(ctx, roomId, member.UserID)
		return
	}

	unlock := c.memberLocks.lock(roomId, member.UserID)
	if err := c.connRepo.Add(roomId, member.UserID, conn); err != nil {
		unlock()
		c.logger.WarnContext(ctx, "failed to add conn", "error", err)
		c.handleWSError(ctx, conn, err)
		if !errors.Is(err, connection.ErrAlreadyExists) {
			c.leave(ctx, roomId, member.UserID)
		}
		return
	}

	// the snapshot is taken after the conn is registered, so no event
	// between join and registration is lost
	snapshot, err := c.roomService.GetSnapshot(ctx, roomId)
	if err == nil && !slices.ContainsFunc(snapshot.Members, func(m domain.Member) bool {
		return m.UserID == member.UserID
	}) {
		// released by a previous conn or the orphan sweep before this conn
		// was bound
		err = domain.ErrMemberNotFound
	}
	unlock()

	c.metrics.RecordConnectionOpened()
	defer c.disconnect(ctx, roomId, member.UserID, conn)

	if err != nil {
		c.logger.WarnContext(ctx, "failed to get snapshot", "error", err)
		c.handleWSError(ctx, conn, err)
		return
	}

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go c.keepAlive(pingCtx, conn)

	if err := c.writeToConn(ctx, conn, &Output{
		Type: "JOINED_ROOM",
		Payload: map[string]any{
			"member":   member,
			"snapshot": snapshot,
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write json", "error", err)
		return
	}

	if joined != nil {
		c.broadcast(ctx, c.connRepo.GetConns(roomId), conn, joined)
	}

	ctx = context.WithValue(ctx, roomIdCtxKey, roomId)
	ctx = context.WithValue(ctx, memberIdCtxKey, member.UserID)
	ctx = context.WithValue(ctx, limiterCtxKey, rate.NewLimiter(c.messageRate, c.messageBurst))

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.logger.InfoContext(ctx, "connection timed out")
		} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, closeCodeLeft) {
			c.logger.InfoContext(ctx, "connection closed", "error", err)
		}
	}
}

// keepAlive pings conn until ctx is done. The pongs extend the read deadline
// of clients that are connected but have nothing to send.
func (c controller) keepAlive(ctx context.Context, conn *wsrouter.Conn) {
	ticker := time.NewTicker(c.readTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WritePing(); err != nil {
				c.logger.DebugContext(ctx, "failed to write ping", "error", err)
				return
			}
		}
	}
}

// disconnect releases the member bound to conn. It does nothing when conn no
// longer owns the membership, e.g. after LEAVE_ROOM.
func (c controller) disconnect(ctx context.Context, roomId, memberId string, conn *wsrouter.Conn) {
	c.metrics.RecordConnectionClosed()

	unlock := c.memberLocks.lock(roomId, memberId)
	defer unlock()

	if err := c.connRepo.Remove(roomId, memberId, conn); err != nil {
		c.logger.DebugContext(ctx, "conn already released", "error", err)
		return
	}

	c.leave(context.WithoutCancel(ctx), roomId, memberId)
}

// leave removes the member and notifies the rest of the room.
func (c controller) leave(ctx context.Context, roomId, memberId string) {
	leaveRoomResp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		RoomId: roomId,
		UserId: memberId,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to leave room", "error", err)
		return
	}

	if !leaveRoomResp.IsMemberRemoved {
		return
	}

	c.markDirty(roomId)

	if leaveRoomResp.IsRoomDeleted {
		c.metrics.RecordRoomDeleted()
		c.logger.InfoContext(ctx, "room deleted", "room_id", roomId)
		return
	}

	c.broadcastRoom(ctx, roomId, &Output{
		Type: "MEMBER_LEFT",
		Payload: map[string]any{
			"left_member":    leaveRoomResp.LeftMember,
			"promoted_host":  leaveRoomResp.PromotedHost,
			"system_message": leaveRoomResp.SystemMessage,
			"members":        leaveRoomResp.Members,
		},
	})
}

// CloseConns asks every client to go away. Members are released by their
// readers as the connections close.
func (c controller) CloseConns(ctx context.Context) {
	for _, conn := range c.connRepo.GetAllConns() {
		if err := conn.WriteClose(websocket.CloseGoingAway, "server shutting down"); err != nil {
			c.logger.DebugContext(ctx, "failed to write close", "error", err)
		}
	}
}

// ReleaseOrphans removes members of the given rooms that have no live
// connection. It is used once the reconnect grace period of restored rooms
// is over.
func (c controller) ReleaseOrphans(ctx context.Context, roomIds []string) {
	for _, roomId := range roomIds {
		snapshot, err := c.roomService.GetSnapshot(ctx, roomId)
		if err != nil {
			continue
		}

		for _, member := range snapshot.Members {
			c.releaseOrphan(ctx, roomId, member.UserID)
		}
	}
}

func (c controller) releaseOrphan(ctx context.Context, roomId, memberId string) {
	unlock := c.memberLocks.lock(roomId, memberId)
	defer unlock()

	if _, err := c.connRepo.GetConn(roomId, memberId); err == nil {
		return
	}

	c.logger.InfoContext(ctx, "releasing orphaned member", "room_id", roomId, "member_id", memberId)
	c.leave(ctx, roomId, memberId)
}
