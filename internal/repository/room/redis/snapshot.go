package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flodrama/watchparty/internal/domain"
	"github.com/flodrama/watchparty/internal/repository/room"
	"github.com/redis/go-redis/v9"
)

func (r repo) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	r.logger.DebugContext(ctx, "called", "room_id", snapshot.RoomID)
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := r.rc.TxPipeline()
	pipe.Set(ctx, r.getSnapshotKey(snapshot.RoomID), data, r.expireDuration)
	pipe.SAdd(ctx, r.getRoomIdsKey(), snapshot.RoomID)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

func (r repo) GetSnapshot(ctx context.Context, roomId string) (domain.Snapshot, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	data, err := r.rc.Get(ctx, r.getSnapshotKey(roomId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.DebugContext(ctx, "returned", "error", room.ErrSnapshotNotFound)
			return domain.Snapshot{}, room.ErrSnapshotNotFound
		}

		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return snapshot, nil
}

func (r repo) RemoveSnapshot(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, r.getSnapshotKey(roomId))
	pipe.SRem(ctx, r.getRoomIdsKey(), roomId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}

	return nil
}

// ListSnapshots returns every archived snapshot that has not expired yet.
// Ids whose snapshot expired are pruned from the index.
func (r repo) ListSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	r.logger.DebugContext(ctx, "called")
	roomIds, err := r.rc.SMembers(ctx, r.getRoomIdsKey()).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to get room ids: %w", err)
	}

	snapshots := make([]domain.Snapshot, 0, len(roomIds))
	for _, roomId := range roomIds {
		snapshot, err := r.GetSnapshot(ctx, roomId)
		if err != nil {
			if errors.Is(err, room.ErrSnapshotNotFound) {
				r.rc.SRem(ctx, r.getRoomIdsKey(), roomId)
				continue
			}

			return nil, err
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}
