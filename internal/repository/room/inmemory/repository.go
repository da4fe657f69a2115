package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flodrama/watchparty/internal/domain"
	"github.com/flodrama/watchparty/internal/repository/room"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type entry struct {
	mu      sync.RWMutex
	room    *domain.Room
	dropped bool
}

// repo keeps live rooms in memory. Each room has its own lock so that
// operations on one room are serialized while different rooms run in
// parallel. The map lock is never held while waiting for a room lock.
type repo struct {
	rooms  map[string]*entry
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		rooms:  make(map[string]*entry),
		logger: logger,
	}
}

func (r *repo) getEntry(roomID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[roomID]
	return e, ok
}

func (r *repo) Add(ctx context.Context, rm *domain.Room) error {
	r.logger.DebugContext(ctx, "called", "room_id", rm.ID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[rm.ID]; ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomAlreadyExists)
		return room.ErrRoomAlreadyExists
	}

	r.rooms[rm.ID] = &entry{room: rm}

	return nil
}

// Update runs fn with exclusive access to the room. When fn reports drop the
// room is removed before the lock is released, so later callers observe
// domain.ErrRoomNotFound.
func (r *repo) Update(ctx context.Context, roomID string, fn func(*domain.Room) (drop bool, err error)) error {
	e, ok := r.getEntry(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dropped {
		return domain.ErrRoomNotFound
	}

	drop, err := fn(e.room)
	if drop {
		e.dropped = true
		r.mu.Lock()
		delete(r.rooms, roomID)
		r.mu.Unlock()
		r.logger.DebugContext(ctx, "room dropped", "room_id", roomID)
	}

	return err
}

// View runs fn with shared access to the room. fn must not mutate it.
func (r *repo) View(_ context.Context, roomID string, fn func(*domain.Room) error) error {
	e, ok := r.getEntry(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.dropped {
		return domain.ErrRoomNotFound
	}

	return fn(e.room)
}

// IDs returns the ids of live rooms in lexical order.
func (r *repo) IDs(_ context.Context) []string {
	r.mu.RLock()
	ids := maps.Keys(r.rooms)
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
