// Package config resolves runtime settings by layering defaults, an
// optional properties file, and environment variables, in that order.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all runtime settings of the sensor service.
type Config struct {
	// ListenAddress is the TCP address of the control-plane HTTP server.
	ListenAddress string
	// LogFilePath receives structured logs in addition to stdout.
	LogFilePath string
	// PropertiesPath records the properties file used, if any.
	PropertiesPath string

	// SensorID identifies this simulated device; a UUID is generated
	// when left empty.
	SensorID string
	// CollectorBaseURL is the remote collector, e.g. "http://collector:8080".
	CollectorBaseURL string

	// ReadingInterval is the generation period of the simulator.
	ReadingInterval time.Duration
	// ConnectDelay is the fixed time a connect takes to complete.
	ConnectDelay time.Duration
	// SyncInterval is the automatic upload period.
	SyncInterval time.Duration
	// UploadTimeout bounds one collector POST.
	UploadTimeout time.Duration
	// HistorySize bounds the rolling reading buffer.
	HistorySize int
	// AutoStart begins advertising at boot instead of waiting for a
	// control-plane start command.
	AutoStart bool

	// Kafka sink, disabled by default.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// MQTT sink, disabled by default.
	MQTTEnabled bool
	MQTTBroker  string
	MQTTTopic   string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration
}

const (
	defaultListenAddress = ":8090"
	defaultLogFile       = "logs/sensorsim.log"
	defaultPropsPath     = "sensorsim.properties"
	defaultCollectorURL  = "http://localhost:8080"

	defaultReadingInterval = 3 * time.Second
	defaultConnectDelay    = 2 * time.Second
	defaultSyncInterval    = 30 * time.Second
	defaultUploadTimeout   = 10 * time.Second
	defaultHistorySize     = 10

	defaultKafkaBrokers = "kafka:9092"
	defaultKafkaTopic   = "sensor.readings"
	defaultMQTTBroker   = "tcp://localhost:1883"
	defaultMQTTTopic    = "sensors/readings"

	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultShutdown     = 5 * time.Second
)

// Load resolves the configuration. The properties file location can be
// overridden with SENSORSIM_PROPERTIES_PATH; a missing file is not an
// error.
func Load() (Config, error) {
	cfg := Config{
		ListenAddress:    defaultListenAddress,
		LogFilePath:      defaultLogFile,
		CollectorBaseURL: defaultCollectorURL,
		ReadingInterval:  defaultReadingInterval,
		ConnectDelay:     defaultConnectDelay,
		SyncInterval:     defaultSyncInterval,
		UploadTimeout:    defaultUploadTimeout,
		HistorySize:      defaultHistorySize,
		AutoStart:        true,
		KafkaBrokers:     splitAndTrim(defaultKafkaBrokers),
		KafkaTopic:       defaultKafkaTopic,
		MQTTBroker:       defaultMQTTBroker,
		MQTTTopic:        defaultMQTTTopic,
		HTTPReadTimeout:  defaultReadTimeout,
		HTTPWriteTimeout: defaultWriteTimeout,
		ShutdownTimeout:  defaultShutdown,
	}

	propsPath := strings.TrimSpace(os.Getenv("SENSORSIM_PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyProperties(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("%s:%d: malformed property %q", path, line, raw)
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if err := apply(cfg, key, val); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
	return scanner.Err()
}

// envKeys maps environment variables onto property keys.
var envKeys = map[string]string{
	"SENSORSIM_LISTEN_ADDR":        "listen_addr",
	"SENSORSIM_LOG_FILE":           "log_file",
	"SENSORSIM_SENSOR_ID":          "sensor_id",
	"SENSORSIM_COLLECTOR_BASE_URL": "collector_base_url",
	"SENSORSIM_READING_INTERVAL":   "reading_interval",
	"SENSORSIM_CONNECT_DELAY":      "connect_delay",
	"SENSORSIM_SYNC_INTERVAL":      "sync_interval",
	"SENSORSIM_UPLOAD_TIMEOUT":     "upload_timeout",
	"SENSORSIM_HISTORY_SIZE":       "history_size",
	"SENSORSIM_AUTO_START":         "auto_start",
	"SENSORSIM_KAFKA_ENABLED":      "kafka_enabled",
	"SENSORSIM_KAFKA_BROKERS":      "kafka_brokers",
	"SENSORSIM_KAFKA_TOPIC":        "kafka_topic",
	"SENSORSIM_MQTT_ENABLED":       "mqtt_enabled",
	"SENSORSIM_MQTT_BROKER":        "mqtt_broker",
	"SENSORSIM_MQTT_TOPIC":         "mqtt_topic",
	"SENSORSIM_HTTP_READ_TIMEOUT":  "http_read_timeout",
	"SENSORSIM_HTTP_WRITE_TIMEOUT": "http_write_timeout",
	"SENSORSIM_SHUTDOWN_TIMEOUT":   "shutdown_timeout",
}

func applyEnv(cfg *Config) error {
	for env, key := range envKeys {
		val := strings.TrimSpace(os.Getenv(env))
		if val == "" {
			continue
		}
		if err := apply(cfg, key, val); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

func apply(cfg *Config, key, val string) error {
	switch key {
	case "listen_addr":
		cfg.ListenAddress = val
	case "log_file":
		cfg.LogFilePath = val
	case "sensor_id":
		cfg.SensorID = val
	case "collector_base_url":
		cfg.CollectorBaseURL = strings.TrimRight(val, "/")
	case "reading_interval":
		return setDuration(&cfg.ReadingInterval, key, val)
	case "connect_delay":
		return setDuration(&cfg.ConnectDelay, key, val)
	case "sync_interval":
		return setDuration(&cfg.SyncInterval, key, val)
	case "upload_timeout":
		return setDuration(&cfg.UploadTimeout, key, val)
	case "history_size":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s %q", key, val)
		}
		cfg.HistorySize = n
	case "auto_start":
		return setBool(&cfg.AutoStart, key, val)
	case "kafka_enabled":
		return setBool(&cfg.KafkaEnabled, key, val)
	case "kafka_brokers":
		cfg.KafkaBrokers = splitAndTrim(val)
	case "kafka_topic":
		cfg.KafkaTopic = val
	case "mqtt_enabled":
		return setBool(&cfg.MQTTEnabled, key, val)
	case "mqtt_broker":
		cfg.MQTTBroker = val
	case "mqtt_topic":
		cfg.MQTTTopic = val
	case "http_read_timeout":
		return setDuration(&cfg.HTTPReadTimeout, key, val)
	case "http_write_timeout":
		return setDuration(&cfg.HTTPWriteTimeout, key, val)
	case "shutdown_timeout":
		return setDuration(&cfg.ShutdownTimeout, key, val)
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

func setDuration(dst *time.Duration, key, val string) error {
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid %s %q", key, val)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key, val string) error {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid %s %q", key, val)
	}
	*dst = b
	return nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return errors.New("listen address cannot be empty")
	}
	if strings.TrimSpace(cfg.CollectorBaseURL) == "" {
		return errors.New("collector base URL cannot be empty")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return errors.New("kafka sink enabled but no brokers configured")
	}
	if cfg.MQTTEnabled && strings.TrimSpace(cfg.MQTTBroker) == "" {
		return errors.New("mqtt sink enabled but no broker configured")
	}
	return nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
