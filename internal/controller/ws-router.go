package controller

import (
	"github.com/flodrama/watchparty/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdMw(), c.loggerWSMw(), c.rateLimitWSMw(), c.drainWSMw())
	mux.OnError(c.handleWSError)

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)

	// room
	wsrouter.Handle(mux, "GET_SNAPSHOT", c.handleGetSnapshot)
	wsrouter.Handle(mux, "LEAVE_ROOM", c.handleLeaveRoom)

	// chat
	wsrouter.Handle(mux, "SEND_MESSAGE", c.handleSendMessage)
	wsrouter.Handle(mux, "GET_MESSAGES", c.handleGetMessages)

	// player
	wsrouter.Handle(mux, "PLAYBACK_CONTROL", c.handlePlaybackControl)

	// member
	wsrouter.Handle(mux, "UPDATE_READY", c.handleUpdateReady)

	return mux
}
