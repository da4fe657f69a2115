package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/flodrama/watchparty/internal/domain"
	"github.com/google/uuid"
)

type iRoomStore interface {
	Add(context.Context, *domain.Room) error
	Update(ctx context.Context, roomId string, fn func(*domain.Room) (drop bool, err error)) error
	View(ctx context.Context, roomId string, fn func(*domain.Room) error) error
	IDs(context.Context) []string
}

type Config struct {
	MembersLimit int
	// Now and NewId default to the wall clock and uuid v4.
	Now   func() time.Time
	NewId func() string
}

// service coordinates watch-party rooms. It validates every operation and
// mutates rooms only through the store's per-room critical sections; it does
// no network I/O, callers broadcast the returned results themselves.
type service struct {
	roomStore    iRoomStore
	membersLimit int
	now          func() time.Time
	newId        func() string
	logger       *slog.Logger
}

func NewService(roomStore iRoomStore, cfg *Config, logger *slog.Logger) *service {
	s := service{
		roomStore:    roomStore,
		membersLimit: cfg.MembersLimit,
		now:          cfg.Now,
		newId:        cfg.NewId,
		logger:       logger,
	}

	if s.now == nil {
		s.now = time.Now
	}

	if s.newId == nil {
		s.newId = uuid.NewString
	}

	return &s
}

func (s service) appendSystemMessage(r *domain.Room, text string) domain.Message {
	return r.Messages.Append(domain.SystemMessageDraft(text), s.newId(), s.now())
}
