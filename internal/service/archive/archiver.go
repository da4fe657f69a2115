package archive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flodrama/watchparty/internal/domain"
)

type iRoomService interface {
	GetSnapshot(context.Context, string) (domain.Snapshot, error)
	RestoreRoom(context.Context, *domain.Snapshot) error
}

type iSnapshotRepo interface {
	SaveSnapshot(context.Context, *domain.Snapshot) error
	RemoveSnapshot(context.Context, string) error
	ListSnapshots(context.Context) ([]domain.Snapshot, error)
}

type Config struct {
	Interval time.Duration
}

// archiver mirrors live rooms into the snapshot repository. Rooms are marked
// dirty by the transport and written by a single loop, so the archive always
// receives the latest state of a room and never resurrects a dropped one.
type archiver struct {
	roomService  iRoomService
	snapshotRepo iSnapshotRepo
	interval     time.Duration
	dirty        map[string]struct{}
	mu           sync.Mutex
	logger       *slog.Logger
}

func NewArchiver(roomService iRoomService, snapshotRepo iSnapshotRepo, cfg *Config, logger *slog.Logger) *archiver {
	return &archiver{
		roomService:  roomService,
		snapshotRepo: snapshotRepo,
		interval:     cfg.Interval,
		dirty:        make(map[string]struct{}),
		logger:       logger,
	}
}

func (a *archiver) MarkDirty(roomId string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.dirty[roomId] = struct{}{}
}

func (a *archiver) takeDirty() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	roomIds := make([]string, 0, len(a.dirty))
	for roomId := range a.dirty {
		roomIds = append(roomIds, roomId)
	}
	clear(a.dirty)

	return roomIds
}

// Flush writes every dirty room. Rooms that no longer exist are removed from
// the archive. Failed rooms are marked dirty again.
func (a *archiver) Flush(ctx context.Context) error {
	var errs []error
	for _, roomId := range a.takeDirty() {
		if err := a.flushRoom(ctx, roomId); err != nil {
			a.MarkDirty(roomId)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (a *archiver) flushRoom(ctx context.Context, roomId string) error {
	snapshot, err := a.roomService.GetSnapshot(ctx, roomId)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return a.snapshotRepo.RemoveSnapshot(ctx, roomId)
		}

		return err
	}

	return a.snapshotRepo.SaveSnapshot(ctx, &snapshot)
}

// Run flushes on every tick until ctx is done, then flushes one last time.
func (a *archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.logger.WarnContext(ctx, "failed to flush snapshots", "error", err)
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			if err := a.Flush(flushCtx); err != nil {
				a.logger.WarnContext(ctx, "failed to flush snapshots on stop", "error", err)
			}
			cancel()
			return
		}
	}
}

// Restore loads every archived snapshot into the room service and returns
// the ids of the restored rooms. Broken snapshots are dropped from the archive.
func (a *archiver) Restore(ctx context.Context) ([]string, error) {
	snapshots, err := a.snapshotRepo.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	roomIds := make([]string, 0, len(snapshots))
	for i := range snapshots {
		if err := a.roomService.RestoreRoom(ctx, &snapshots[i]); err != nil {
			a.logger.WarnContext(ctx, "failed to restore room", "room_id", snapshots[i].RoomID, "error", err)
			if errors.Is(err, domain.ErrInvalidInput) {
				if err := a.snapshotRepo.RemoveSnapshot(ctx, snapshots[i].RoomID); err != nil {
					a.logger.WarnContext(ctx, "failed to remove broken snapshot", "room_id", snapshots[i].RoomID, "error", err)
				}
			}
			continue
		}

		roomIds = append(roomIds, snapshots[i].RoomID)
	}

	a.logger.InfoContext(ctx, "rooms restored", "count", len(roomIds))

	return roomIds, nil
}
