package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchparty/internal/app"
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
		usage:        "Connect token signing key",
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
	storeKind = configVar[string]{
		envKey:       "SERVER_STORE",
		flagKey:      "store",
		defaultValue: app.StorePostgres,
		usage:        "Access code store: postgres or redis",
	}
	postgresDSN = configVar[string]{
		envKey:       "POSTGRES_DSN",
		flagKey:      "postgres-dsn",
		defaultValue: "host=localhost user=postgres password=postgres dbname=watchparty port=5432 sslmode=disable",
		usage:        "Postgres DSN",
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
	connectTokenTTL = configVar[time.Duration]{
		envKey:       "SERVER_CONNECT_TOKEN_TTL",
		flagKey:      "connect-token-ttl",
		defaultValue: 10 * time.Minute,
		usage:        "Lifetime of websocket connect tokens",
	}
	sendBuffer = configVar[int]{
		envKey:       "SERVER_SEND_BUFFER",
		flagKey:      "send-buffer",
		defaultValue: 64,
		usage:        "Outbound messages queued per connection",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, secret.usage)
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.String(storeKind.flagKey, storeKind.defaultValue, storeKind.usage)
	pflag.String(postgresDSN.flagKey, postgresDSN.defaultValue, postgresDSN.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.Duration(connectTokenTTL.flagKey, connectTokenTTL.defaultValue, connectTokenTTL.usage)
	pflag.Int(sendBuffer.flagKey, sendBuffer.defaultValue, sendBuffer.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(secret)
	bind(port)
	bind(host)
	bind(logLevel)
	bind(storeKind)
	bind(postgresDSN)
	bind(redisPort)
	bind(redisHost)
	bind(redisPassword)
	bind(connectTokenTTL)
	bind(sendBuffer)

	return &app.AppConfig{
		Secret:          viper.GetString(secret.flagKey),
		Host:            viper.GetString(host.flagKey),
		Port:            viper.GetInt(port.flagKey),
		LogLevel:        viper.GetString(logLevel.flagKey),
		Store:           viper.GetString(storeKind.flagKey),
		PostgresDSN:     viper.GetString(postgresDSN.flagKey),
		RedisPort:       viper.GetInt(redisPort.flagKey),
		RedisHost:       viper.GetString(redisHost.flagKey),
		RedisPassword:   viper.GetString(redisPassword.flagKey),
		ConnectTokenTTL: viper.GetDuration(connectTokenTTL.flagKey),
		SendBuffer:      viper.GetInt(sendBuffer.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
