package inmemory

import (
	"log/slog"
	"sync"

	"github.com/flodrama/watchparty/internal/repository/connection"
	"github.com/flodrama/watchparty/pkg/wsrouter"
)

// repo owns the live websocket channel of every member, grouped by room.
type repo struct {
	rooms  map[string]map[string]*wsrouter.Conn
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		rooms:  make(map[string]map[string]*wsrouter.Conn),
		logger: logger,
	}
}

func (r *repo) Add(roomID, memberID string, conn *wsrouter.Conn) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "room_id", roomID, "member_id", memberID)
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]*wsrouter.Conn)
		r.rooms[roomID] = members
	}

	if _, ok := members[memberID]; ok {
		r.logger.Debug(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	members[memberID] = conn

	return nil
}

// Remove drops the member channel only if it is still conn, so a stale
// connection cannot evict a newer one of the same member.
func (r *repo) Remove(roomID, memberID string, conn *wsrouter.Conn) error {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "room_id", roomID, "member_id", memberID)
	members, ok := r.rooms[roomID]
	if !ok || members[memberID] != conn {
		r.logger.Debug(funcName, "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}

	delete(members, memberID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}

	return nil
}

func (r *repo) GetConn(roomID, memberID string) (*wsrouter.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.rooms[roomID][memberID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetConns(roomID string) []*wsrouter.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	conns := make([]*wsrouter.Conn, 0, len(members))
	for _, conn := range members {
		conns = append(conns, conn)
	}

	return conns
}

func (r *repo) GetAllConns() []*wsrouter.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*wsrouter.Conn, 0, len(r.rooms))
	for _, members := range r.rooms {
		for _, conn := range members {
			conns = append(conns, conn)
		}
	}

	return conns
}

// Len returns the number of registered connections.
func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, members := range r.rooms {
		n += len(members)
	}

	return n
}
