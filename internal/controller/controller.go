package controller

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/flodrama/watchparty/internal/domain"
	"github.com/flodrama/watchparty/internal/service/room"
	"github.com/flodrama/watchparty/pkg/validator"
	"github.com/flodrama/watchparty/pkg/wsrouter"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	SendMessage(context.Context, *room.SendMessageParams) (room.SendMessageResponse, error)
	ApplyPlaybackControl(context.Context, *room.ApplyPlaybackControlParams) (room.ApplyPlaybackControlResponse, error)
	SetReady(context.Context, *room.SetReadyParams) (room.SetReadyResponse, error)
	GetSnapshot(context.Context, string) (domain.Snapshot, error)
	ListMessages(context.Context, *room.ListMessagesParams) (iter.Seq[domain.Message], error)
	RoomIds(context.Context) []string
}

type iConnRepo interface {
	Add(roomId, memberId string, conn *wsrouter.Conn) error
	Remove(roomId, memberId string, conn *wsrouter.Conn) error
	GetConn(roomId, memberId string) (*wsrouter.Conn, error)
	GetConns(roomId string) []*wsrouter.Conn
	GetAllConns() []*wsrouter.Conn
}

type iArchiver interface {
	MarkDirty(roomId string)
}

type iMetrics interface {
	Handler() http.Handler
	RecordRoomCreated()
	RecordRoomDeleted()
	RecordConnectionOpened()
	RecordConnectionClosed()
	RecordMessage(messageType string)
	RecordPlaybackCommand(action string, accepted bool)
	RecordWSError(code string)
	ObserveWSMessage(messageType string, seconds float64)
}

type Config struct {
	// Secret signs identity tokens. Empty means identity is taken from query
	// params.
	Secret       string
	MessageRate  float64
	MessageBurst int
	// ReadTimeout releases members whose client stays silent and stops
	// answering pings. Zero means defaultReadTimeout.
	ReadTimeout time.Duration
	// Archiver is optional.
	Archiver iArchiver
}

type controller struct {
	roomService  iRoomService
	connRepo     iConnRepo
	memberLocks  *memberLocks
	drain        *drainState
	archiver     iArchiver
	metrics      iMetrics
	upgrader     websocket.Upgrader
	validate     *validator.Validator
	wsmux        *wsrouter.WSRouter
	secret       []byte
	messageRate  rate.Limit
	messageBurst int
	readTimeout  time.Duration
	logger       *slog.Logger
}

func NewController(roomService iRoomService, connRepo iConnRepo, metrics iMetrics, cfg *Config, logger *slog.Logger) *controller {
	messageRate := rate.Limit(cfg.MessageRate)
	if cfg.MessageRate <= 0 {
		messageRate = rate.Inf
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService:  roomService,
		connRepo:     connRepo,
		memberLocks:  newMemberLocks(),
		drain:        &drainState{},
		archiver:     cfg.Archiver,
		metrics:      metrics,
		validate:     validator.NewValidator(),
		secret:       []byte(cfg.Secret),
		messageRate:  messageRate,
		messageBurst: cfg.MessageBurst,
		readTimeout:  readTimeout,
		logger:       logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
