package room

import "errors"

var (
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
)
