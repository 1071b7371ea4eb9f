package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/readyornot/sync-server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	joinCodeLength = configVar[int]{
		envKey:       "SERVER_JOIN_CODE_LENGTH",
		flagKey:      "join-code-length",
		defaultValue: 6,
	}
	probeIntervalMs = configVar[int]{
		envKey:       "SERVER_PROBE_INTERVAL_MS",
		flagKey:      "probe-interval-ms",
		defaultValue: 3000,
	}
	replyTimeoutMs = configVar[int]{
		envKey:       "SERVER_REPLY_TIMEOUT_MS",
		flagKey:      "reply-timeout-ms",
		defaultValue: 5000,
	}
	driftCorrection = configVar[bool]{
		envKey:       "SERVER_DRIFT_CORRECTION",
		flagKey:      "drift-correction",
		defaultValue: true,
	}
	driftThresholdMs = configVar[int]{
		envKey:       "SERVER_DRIFT_THRESHOLD_MS",
		flagKey:      "drift-threshold-ms",
		defaultValue: 750,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(joinCodeLength.flagKey, joinCodeLength.defaultValue, "Length of generated session join codes")
	pflag.Int(probeIntervalMs.flagKey, probeIntervalMs.defaultValue, "Heartbeat probe interval in milliseconds")
	pflag.Int(replyTimeoutMs.flagKey, replyTimeoutMs.defaultValue, "Heartbeat reply timeout in milliseconds")
	pflag.Bool(driftCorrection.flagKey, driftCorrection.defaultValue, "Enable playback drift correction")
	pflag.Int(driftThresholdMs.flagKey, driftThresholdMs.defaultValue, "Playback drift threshold in milliseconds")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(joinCodeLength.flagKey, joinCodeLength.envKey)
	viper.BindEnv(probeIntervalMs.flagKey, probeIntervalMs.envKey)
	viper.BindEnv(replyTimeoutMs.flagKey, replyTimeoutMs.envKey)
	viper.BindEnv(driftCorrection.flagKey, driftCorrection.envKey)
	viper.BindEnv(driftThresholdMs.flagKey, driftThresholdMs.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(joinCodeLength.flagKey, joinCodeLength.defaultValue)
	viper.SetDefault(probeIntervalMs.flagKey, probeIntervalMs.defaultValue)
	viper.SetDefault(replyTimeoutMs.flagKey, replyTimeoutMs.defaultValue)
	viper.SetDefault(driftCorrection.flagKey, driftCorrection.defaultValue)
	viper.SetDefault(driftThresholdMs.flagKey, driftThresholdMs.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		JoinCodeLength:   viper.GetInt(joinCodeLength.flagKey),
		ProbeIntervalMs:  viper.GetInt(probeIntervalMs.flagKey),
		ReplyTimeoutMs:   viper.GetInt(replyTimeoutMs.flagKey),
		DriftCorrection:  viper.GetBool(driftCorrection.flagKey),
		DriftThresholdMs: viper.GetInt(driftThresholdMs.flagKey),
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
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
