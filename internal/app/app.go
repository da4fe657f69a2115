package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flodrama/watchparty/internal/controller"
	"github.com/flodrama/watchparty/internal/metrics"
	connInmemory "github.com/flodrama/watchparty/internal/repository/connection/inmemory"
	roomInmemory "github.com/flodrama/watchparty/internal/repository/room/inmemory"
	roomRedis "github.com/flodrama/watchparty/internal/repository/room/redis"
	"github.com/flodrama/watchparty/internal/service/archive"
	"github.com/flodrama/watchparty/internal/service/room"
	"github.com/flodrama/watchparty/pkg/ctxlogger"
	"github.com/flodrama/watchparty/pkg/redisclient"
)

type AppConfig struct {
	Secret           string        `json:"-"`
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	LogLevel         string        `json:"log_level"`
	MembersLimit     int           `json:"members_limit"`
	MessageRate      float64       `json:"message_rate"`
	MessageBurst     int           `json:"message_burst"`
	ReadTimeout      time.Duration `json:"read_timeout"`
	SnapshotsEnabled bool          `json:"snapshots_enabled"`
	SnapshotTTL      time.Duration `json:"snapshot_ttl"`
	SnapshotInterval time.Duration `json:"snapshot_interval"`
	RestoreGrace     time.Duration `json:"restore_grace"`
	RedisPort        int           `json:"redis_port"`
	RedisHost        string        `json:"redis_host"`
	RedisPassword    string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	var errs []error
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535"))
	}
	if cfg.MembersLimit < 1 {
		errs = append(errs, fmt.Errorf("members limit must be greater than 0"))
	}
	if cfg.MessageRate < 0 {
		errs = append(errs, fmt.Errorf("message rate must not be negative"))
	}
	if cfg.MessageRate > 0 && cfg.MessageBurst < 1 {
		errs = append(errs, fmt.Errorf("message burst must be greater than 0 when message rate is set"))
	}
	if cfg.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("read timeout must be positive"))
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if cfg.SnapshotsEnabled {
		if cfg.SnapshotTTL <= 0 {
			errs = append(errs, fmt.Errorf("snapshot ttl must be positive"))
		}
		if cfg.SnapshotInterval <= 0 {
			errs = append(errs, fmt.Errorf("snapshot interval must be positive"))
		}
		if cfg.RestoreGrace < 0 {
			errs = append(errs, fmt.Errorf("restore grace must not be negative"))
		}
	}

	return errors.Join(errs...)
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}

	return level, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type iController interface {
	GetMux() http.Handler
	Drain()
	CloseConns(context.Context)
	ReleaseOrphans(context.Context, []string)
}

type iArchiver interface {
	Run(context.Context)
}

type components struct {
	controller      iController
	archiver        iArchiver
	restoredRoomIds []string
	close           func()
}

// build wires the application. When snapshots are enabled the archived rooms
// are restored before build returns.
func build(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*components, error) {
	collector := metrics.NewCollector()
	roomService := room.NewService(roomInmemory.NewRepo(logger), &room.Config{
		MembersLimit: cfg.MembersLimit,
	}, logger)

	c := &components{close: func() {}}
	controllerConfig := &controller.Config{
		Secret:       cfg.Secret,
		MessageRate:  cfg.MessageRate,
		MessageBurst: cfg.MessageBurst,
		ReadTimeout:  cfg.ReadTimeout,
	}

	if cfg.SnapshotsEnabled {
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		c.close = func() { rc.Close() }

		snapshotRepo := roomRedis.NewRepo(rc, cfg.SnapshotTTL, logger)
		archiver := archive.NewArchiver(roomService, snapshotRepo, &archive.Config{
			Interval: cfg.SnapshotInterval,
		}, logger)

		restored, err := archiver.Restore(ctx)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to restore rooms: %w", err)
		}
		for range restored {
			collector.RecordRoomRestored()
		}

		c.archiver = archiver
		c.restoredRoomIds = restored
		controllerConfig.Archiver = archiver
	}

	c.controller = controller.NewController(roomService, connInmemory.NewRepo(logger), collector, controllerConfig, logger)

	return c, nil
}

// shutdown stops taking requests and messages, waits for the archiver's
// final flush and then sends clients away. Members released by closing
// connections are no longer archived, so they can resume after a restart.
func (c *components) shutdown(ctx context.Context, server *http.Server, stopArchiver func(), archiverDone <-chan struct{}) error {
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	c.controller.Drain()

	stopArchiver()
	select {
	case <-archiverDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.controller.CloseConns(ctx)

	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := newLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: c.controller.GetMux()}

	archiverCtx, stopArchiver := context.WithCancel(ctx)
	defer stopArchiver()
	archiverDone := c.runArchiver(archiverCtx)

	if len(c.restoredRoomIds) > 0 {
		timer := time.AfterFunc(cfg.RestoreGrace, func() {
			c.controller.ReleaseOrphans(ctx, c.restoredRoomIds)
		})
		defer timer.Stop()
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, cancel := context.WithTimeout(serverCtx, 30*time.Second)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := c.shutdown(shutdownCtx, server, stopArchiver, archiverDone); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}

// runArchiver starts the archive loop. The returned channel is closed once the
// loop made its final flush, right away when archiving is disabled.
func (c *components) runArchiver(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if c.archiver == nil {
		close(done)
		return done
	}

	go func() {
		c.archiver.Run(ctx)
		close(done)
	}()

	return done
}
