package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrDuplicateMember     = errors.New("member already exists")
	ErrMembersLimitReached = errors.New("members limit reached")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotAuthorized       = errors.New("not authorized")
)
