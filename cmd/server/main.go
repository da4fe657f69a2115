package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/flodrama/watchparty/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
		usage:        "HS256 secret of identity tokens, empty trusts query params",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 9,
		usage:        "Maximum number of members in the room",
	}
	messageRate = configVar[float64]{
		envKey:       "SERVER_MESSAGE_RATE",
		flagKey:      "message-rate",
		defaultValue: 10,
		usage:        "Websocket messages per second allowed per connection, 0 disables the limit",
	}
	messageBurst = configVar[int]{
		envKey:       "SERVER_MESSAGE_BURST",
		flagKey:      "message-burst",
		defaultValue: 20,
		usage:        "Websocket message burst per connection",
	}
	readTimeout = configVar[time.Duration]{
		envKey:       "SERVER_READ_TIMEOUT",
		flagKey:      "read-timeout",
		defaultValue: 60 * time.Second,
		usage:        "Silence after which a websocket client is dropped, clients are pinged at half of it",
	}
	snapshotsEnabled = configVar[bool]{
		envKey:       "SERVER_SNAPSHOTS_ENABLED",
		flagKey:      "snapshots-enabled",
		defaultValue: false,
		usage:        "Archive room snapshots to redis and restore them on startup",
	}
	snapshotTTL = configVar[time.Duration]{
		envKey:       "SERVER_SNAPSHOT_TTL",
		flagKey:      "snapshot-ttl",
		defaultValue: 24 * time.Hour,
		usage:        "Lifetime of an archived snapshot",
	}
	snapshotInterval = configVar[time.Duration]{
		envKey:       "SERVER_SNAPSHOT_INTERVAL",
		flagKey:      "snapshot-interval",
		defaultValue: 5 * time.Second,
		usage:        "Interval between snapshot flushes",
	}
	restoreGrace = configVar[time.Duration]{
		envKey:       "SERVER_RESTORE_GRACE",
		flagKey:      "restore-grace",
		defaultValue: time.Minute,
		usage:        "Time members of restored rooms have to reconnect",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
)

func bind[T any](v configVar[T], define func(name string, value T, usage string) *T) {
	define(v.flagKey, v.defaultValue, v.usage)
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	bind(secret, pflag.String)
	bind(port, pflag.Int)
	bind(host, pflag.String)
	bind(logLevel, pflag.String)
	bind(membersLimit, pflag.Int)
	bind(messageRate, pflag.Float64)
	bind(messageBurst, pflag.Int)
	bind(readTimeout, pflag.Duration)
	bind(snapshotsEnabled, pflag.Bool)
	bind(snapshotTTL, pflag.Duration)
	bind(snapshotInterval, pflag.Duration)
	bind(restoreGrace, pflag.Duration)
	bind(redisPort, pflag.Int)
	bind(redisHost, pflag.String)
	bind(redisPassword, pflag.String)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	config := &app.AppConfig{
		Secret:           viper.GetString(secret.flagKey),
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		MembersLimit:     viper.GetInt(membersLimit.flagKey),
		MessageRate:      viper.GetFloat64(messageRate.flagKey),
		MessageBurst:     viper.GetInt(messageBurst.flagKey),
		ReadTimeout:      viper.GetDuration(readTimeout.flagKey),
		SnapshotsEnabled: viper.GetBool(snapshotsEnabled.flagKey),
		SnapshotTTL:      viper.GetDuration(snapshotTTL.flagKey),
		SnapshotInterval: viper.GetDuration(snapshotInterval.flagKey),
		RestoreGrace:     viper.GetDuration(restoreGrace.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
