package controller

import (
	"context"

	"golang.org/x/time/rate"
)

type contextKey int

const (
	roomIdCtxKey contextKey = iota
	memberIdCtxKey
	limiterCtxKey
)

func (c controller) getRoomIdFromCtx(ctx context.Context) string {
	roomId, ok := ctx.Value(roomIdCtxKey).(string)
	if !ok {
		return ""
	}

	return roomId
}

func (c controller) getMemberIdFromCtx(ctx context.Context) string {
	memberId, ok := ctx.Value(memberIdCtxKey).(string)
	if !ok {
		return ""
	}

	return memberId
}

func (c controller) getLimiterFromCtx(ctx context.Context) *rate.Limiter {
	limiter, _ := ctx.Value(limiterCtxKey).(*rate.Limiter)
	return limiter
}
