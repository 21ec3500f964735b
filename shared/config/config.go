package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Config struct {
	Env              string
	ServiceName      string
	HTTPPort         int
	LogLevel         string
	ConfigPath       string
	RequestTimeoutMS int
	RequestTimeout   time.Duration

	OIDCIssuer      string
	OIDCAudience    string
	OIDCJWKSURL     string
	JWKSTTLSeconds  int
	JWTClockSkewSec int

	DatabaseURL      string
	DBMaxConns       int
	DBMinConns       int
	DBConnMaxIdleSec int
	DBConnMaxLifeSec int
	TxTimeoutSec     int

	KafkaBrokers  []string
	KafkaClientID string
	KafkaGroupID  string
	KafkaRetryMax int
	KafkaWriteMS  int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AsynqRedisAddr   string
	AsynqRedisPass   string
	AsynqRedisDB     int
	AsynqQueue       string
	AsynqConcurrency int
	AsynqEnabled     bool

	OutboxScanSec     int
	OutboxBatchSize   int
	OutboxMaxRetries  int
	OutboxLockEnabled bool
	OutboxLockTTLSec  int

	BookingNumberRetries    int
	SlotGranularityMins     int
	AvailabilityCacheTTLSec int
	AvailabilityCacheOn     bool

	CORSAllowedOrigins []string
	RateLimitEnabled   bool
	RateLimitRPS       float64
	RateLimitBurst     int

	InfluxURL       string
	InfluxToken     string
	InfluxOrg       string
	InfluxBucket    string
	InfluxTimeoutMS int

	OtelEnabled     bool
	OtelEndpoint    string
	OtelInsecure    bool
	OtelSampleRatio float64
}

func Load(serviceNameDefault string, httpPortDefault int) (Config, []Problem) {
	envRaw := strings.TrimSpace(os.Getenv("ENV"))
	cfg := Config{
		Env:                     envRaw,
		ServiceName:             serviceNameDefault,
		HTTPPort:                httpPortDefault,
		LogLevel:                "info",
		ConfigPath:              strings.TrimSpace(os.Getenv("CONFIG_PATH")),
		RequestTimeoutMS:        30000,
		OIDCIssuer:              strings.TrimSpace(os.Getenv("OIDC_ISSUER")),
		OIDCAudience:            strings.TrimSpace(os.Getenv("OIDC_AUDIENCE")),
		OIDCJWKSURL:             strings.TrimSpace(os.Getenv("OIDC_JWKS_URL")),
		JWKSTTLSeconds:          300,
		JWTClockSkewSec:         60,
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              10,
		DBMinConns:              1,
		DBConnMaxIdleSec:        300,
		DBConnMaxLifeSec:        1800,
		TxTimeoutSec:            10,
		KafkaRetryMax:           5,
		KafkaWriteMS:            5000,
		AsynqQueue:              "default",
		AsynqConcurrency:        10,
		OutboxScanSec:           5,
		OutboxBatchSize:         50,
		OutboxMaxRetries:        3,
		OutboxLockTTLSec:        30,
		BookingNumberRetries:    5,
		SlotGranularityMins:     15,
		AvailabilityCacheTTLSec: 60,
		RateLimitRPS:            20,
		RateLimitBurst:          40,
		InfluxTimeoutMS:         5000,
		OtelInsecure:            true,
		OtelSampleRatio:         1.0,
	}

	problems := make([]Problem, 0, 4)
	envProvided := envRaw != ""

	if repoRoot, ok := findRepoRoot(); ok && cfg.Env != "" && cfg.ConfigPath == "" {
		cfg.ConfigPath = filepath.Join(repoRoot, "configs", cfg.Env+".json")
	}

	if fileData, fileProblems, ok := loadConfigFile(cfg.ConfigPath, strings.TrimSpace(os.Getenv("CONFIG_PATH")) != ""); ok {
		problems = append(problems, fileProblems...)
		if fileEnv, ok := readStringKey(fileData, "ENV"); ok && strings.TrimSpace(fileEnv) != "" {
			envProvided = true
		}
		applyConfigMap(&cfg, fileData, &problems)
	} else {
		problems = append(problems, fileProblems...)
	}

	applyEnv(&cfg, &problems)

	// If issuer is set and no explicit JWKS URL is provided, default to issuer/.well-known/jwks.json.
	if cfg.OIDCIssuer != "" && strings.TrimSpace(cfg.OIDCJWKSURL) == "" {
		cfg.OIDCJWKSURL = strings.TrimRight(cfg.OIDCIssuer, "/") + "/.well-known/jwks.json"
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if !envProvided {
		problems = append(problems, Problem{Field: "ENV", Message: "ENV is required"})
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		problems = append(problems, Problem{Field: "HTTP_PORT", Message: "HTTP_PORT must be 1-65535"})
		cfg.HTTPPort = httpPortDefault
	}
	if cfg.RequestTimeoutMS <= 0 {
		problems = append(problems, Problem{Field: "REQUEST_TIMEOUT_MS", Message: "REQUEST_TIMEOUT_MS must be > 0"})
		cfg.RequestTimeoutMS = 30000
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	if cfg.JWKSTTLSeconds <= 0 {
		problems = append(problems, Problem{Field: "JWKS_CACHE_TTL_SECONDS", Message: "JWKS_CACHE_TTL_SECONDS must be > 0"})
		cfg.JWKSTTLSeconds = 300
	}
	if cfg.JWTClockSkewSec < 0 {
		problems = append(problems, Problem{Field: "JWT_CLOCK_SKEW_SECONDS", Message: "JWT_CLOCK_SKEW_SECONDS must be >= 0"})
		cfg.JWTClockSkewSec = 60
	}
	if cfg.DBMaxConns <= 0 {
		problems = append(problems, Problem{Field: "DB_MAX_CONNS", Message: "DB_MAX_CONNS must be > 0"})
		cfg.DBMaxConns = 10
	}
	if cfg.DBMinConns < 0 {
		problems = append(problems, Problem{Field: "DB_MIN_CONNS", Message: "DB_MIN_CONNS must be >= 0"})
		cfg.DBMinConns = 1
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		problems = append(problems, Problem{Field: "DB_MIN_CONNS", Message: "DB_MIN_CONNS must be <= DB_MAX_CONNS"})
		cfg.DBMinConns = cfg.DBMaxConns
	}
	if cfg.DBConnMaxIdleSec <= 0 {
		problems = append(problems, Problem{Field: "DB_CONN_MAX_IDLE_SECONDS", Message: "DB_CONN_MAX_IDLE_SECONDS must be > 0"})
		cfg.DBConnMaxIdleSec = 300
	}
	if cfg.DBConnMaxLifeSec <= 0 {
		problems = append(problems, Problem{Field: "DB_CONN_MAX_LIFETIME_SECONDS", Message: "DB_CONN_MAX_LIFETIME_SECONDS must be > 0"})
		cfg.DBConnMaxLifeSec = 1800
	}
	if cfg.TxTimeoutSec <= 0 {
		problems = append(problems, Problem{Field: "TX_TIMEOUT_SECONDS", Message: "TX_TIMEOUT_SECONDS must be > 0"})
		cfg.TxTimeoutSec = 10
	}
	if cfg.KafkaRetryMax < 0 {
		problems = append(problems, Problem{Field: "KAFKA_RETRY_MAX", Message: "KAFKA_RETRY_MAX must be >= 0"})
		cfg.KafkaRetryMax = 5
	}
	if cfg.KafkaWriteMS <= 0 {
		problems = append(problems, Problem{Field: "KAFKA_WRITE_TIMEOUT_MS", Message: "KAFKA_WRITE_TIMEOUT_MS must be > 0"})
		cfg.KafkaWriteMS = 5000
	}
	if cfg.RedisDB < 0 {
		problems = append(problems, Problem{Field: "REDIS_DB", Message: "REDIS_DB must be >= 0"})
		cfg.RedisDB = 0
	}
	if cfg.AsynqRedisDB < 0 {
		problems = append(problems, Problem{Field: "ASYNQ_REDIS_DB", Message: "ASYNQ_REDIS_DB must be >= 0"})
		cfg.AsynqRedisDB = 0
	}
	if cfg.AsynqConcurrency <= 0 {
		problems = append(problems, Problem{Field: "ASYNQ_CONCURRENCY", Message: "ASYNQ_CONCURRENCY must be > 0"})
		cfg.AsynqConcurrency = 10
	}
	if cfg.OutboxScanSec <= 0 {
		problems = append(problems, Problem{Field: "OUTBOX_SCAN_INTERVAL_SECONDS", Message: "OUTBOX_SCAN_INTERVAL_SECONDS must be > 0"})
		cfg.OutboxScanSec = 5
	}
	if cfg.OutboxBatchSize <= 0 {
		problems = append(problems, Problem{Field: "OUTBOX_BATCH_SIZE", Message: "OUTBOX_BATCH_SIZE must be > 0"})
		cfg.OutboxBatchSize = 50
	}
	if cfg.OutboxMaxRetries <= 0 {
		problems = append(problems, Problem{Field: "OUTBOX_MAX_RETRIES", Message: "OUTBOX_MAX_RETRIES must be > 0"})
		cfg.OutboxMaxRetries = 3
	}
	if cfg.OutboxLockTTLSec <= 0 {
		problems = append(problems, Problem{Field: "OUTBOX_LOCK_TTL_SECONDS", Message: "OUTBOX_LOCK_TTL_SECONDS must be > 0"})
		cfg.OutboxLockTTLSec = 30
	}
	if cfg.BookingNumberRetries <= 0 {
		problems = append(problems, Problem{Field: "BOOKING_NUMBER_RETRIES", Message: "BOOKING_NUMBER_RETRIES must be > 0"})
		cfg.BookingNumberRetries = 5
	}
	if cfg.SlotGranularityMins <= 0 {
		problems = append(problems, Problem{Field: "SLOT_GRANULARITY_MINUTES", Message: "SLOT_GRANULARITY_MINUTES must be > 0"})
		cfg.SlotGranularityMins = 15
	}
	if cfg.AvailabilityCacheTTLSec <= 0 {
		problems = append(problems, Problem{Field: "AVAILABILITY_CACHE_TTL_SECONDS", Message: "AVAILABILITY_CACHE_TTL_SECONDS must be > 0"})
		cfg.AvailabilityCacheTTLSec = 60
	}
	if cfg.RateLimitRPS <= 0 {
		problems = append(problems, Problem{Field: "RATE_LIMIT_RPS", Message: "RATE_LIMIT_RPS must be > 0"})
		cfg.RateLimitRPS = 20
	}
	if cfg.RateLimitBurst <= 0 {
		problems = append(problems, Problem{Field: "RATE_LIMIT_BURST", Message: "RATE_LIMIT_BURST must be > 0"})
		cfg.RateLimitBurst = 40
	}
	if cfg.InfluxTimeoutMS <= 0 {
		problems = append(problems, Problem{Field: "INFLUX_TIMEOUT_MS", Message: "INFLUX_TIMEOUT_MS must be > 0"})
		cfg.InfluxTimeoutMS = 5000
	}
	if cfg.OtelSampleRatio < 0 || cfg.OtelSampleRatio > 1 {
		problems = append(problems, Problem{Field: "OTEL_SAMPLE_RATIO", Message: "OTEL_SAMPLE_RATIO must be 0-1"})
		cfg.OtelSampleRatio = 1.0
	}

	return cfg, problems
}

func findRepoRoot() (string, bool) {
	start, err := os.Getwd()
	if err != nil {
		return "", false
	}
	dir := start
	for i := 0; i < 8; i++ {
		candidate := filepath.Join(dir, "configs")
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func loadConfigFile(path string, explicit bool) (map[string]any, []Problem, bool) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, false
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if explicit && !errors.Is(err, os.ErrNotExist) {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("failed to read config file: %v", err)}}, false
		}
		if explicit && errors.Is(err, os.ErrNotExist) {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: "config file not found"}}, false
		}
		return nil, nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("invalid json: %v", err)}}, false
	}
	return raw, nil, true
}

func applyEnv(cfg *Config, problems *[]Problem) {
	if v := strings.TrimSpace(os.Getenv("SERVICE_NAME")); v != "" {
		cfg.ServiceName = v
	}

	portRaw := strings.TrimSpace(os.Getenv("HTTP_PORT"))
	if portRaw == "" {
		portRaw = strings.TrimSpace(os.Getenv("PORT"))
	}
	if portRaw != "" {
		if p, err := strconv.Atoi(portRaw); err != nil || p <= 0 || p > 65535 {
			*problems = append(*problems, Problem{Field: "HTTP_PORT", Message: "HTTP_PORT must be 1-65535"})
		} else {
			cfg.HTTPPort = p
		}
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	envInt(problems, "REQUEST_TIMEOUT_MS", &cfg.RequestTimeoutMS)
	envString("OIDC_ISSUER", &cfg.OIDCIssuer)
	envString("OIDC_AUDIENCE", &cfg.OIDCAudience)
	envString("OIDC_JWKS_URL", &cfg.OIDCJWKSURL)
	envInt(problems, "JWKS_CACHE_TTL_SECONDS", &cfg.JWKSTTLSeconds)
	envInt(problems, "JWT_CLOCK_SKEW_SECONDS", &cfg.JWTClockSkewSec)
	envString("DATABASE_URL", &cfg.DatabaseURL)
	envInt(problems, "DB_MAX_CONNS", &cfg.DBMaxConns)
	envInt(problems, "DB_MIN_CONNS", &cfg.DBMinConns)
	envInt(problems, "DB_CONN_MAX_IDLE_SECONDS", &cfg.DBConnMaxIdleSec)
	envInt(problems, "DB_CONN_MAX_LIFETIME_SECONDS", &cfg.DBConnMaxLifeSec)
	envInt(problems, "TX_TIMEOUT_SECONDS", &cfg.TxTimeoutSec)

	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = parseCSV(v)
	}
	envString("KAFKA_CLIENT_ID", &cfg.KafkaClientID)
	envString("KAFKA_CONSUMER_GROUP", &cfg.KafkaGroupID)
	envInt(problems, "KAFKA_RETRY_MAX", &cfg.KafkaRetryMax)
	envInt(problems, "KAFKA_WRITE_TIMEOUT_MS", &cfg.KafkaWriteMS)

	envString("REDIS_ADDR", &cfg.RedisAddr)
	envString("REDIS_PASSWORD", &cfg.RedisPassword)
	envInt(problems, "REDIS_DB", &cfg.RedisDB)

	envString("ASYNQ_REDIS_ADDR", &cfg.AsynqRedisAddr)
	envString("ASYNQ_REDIS_PASSWORD", &cfg.AsynqRedisPass)
	envInt(problems, "ASYNQ_REDIS_DB", &cfg.AsynqRedisDB)
	envString("ASYNQ_QUEUE", &cfg.AsynqQueue)
	envInt(problems, "ASYNQ_CONCURRENCY", &cfg.AsynqConcurrency)
	envBool(problems, "ASYNQ_ENABLED", &cfg.AsynqEnabled)

	envInt(problems, "OUTBOX_SCAN_INTERVAL_SECONDS", &cfg.OutboxScanSec)
	envInt(problems, "OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	envInt(problems, "OUTBOX_MAX_RETRIES", &cfg.OutboxMaxRetries)
	envBool(problems, "OUTBOX_LOCK_ENABLED", &cfg.OutboxLockEnabled)
	envInt(problems, "OUTBOX_LOCK_TTL_SECONDS", &cfg.OutboxLockTTLSec)

	envInt(problems, "BOOKING_NUMBER_RETRIES", &cfg.BookingNumberRetries)
	envInt(problems, "SLOT_GRANULARITY_MINUTES", &cfg.SlotGranularityMins)
	envInt(problems, "AVAILABILITY_CACHE_TTL_SECONDS", &cfg.AvailabilityCacheTTLSec)
	envBool(problems, "AVAILABILITY_CACHE_ENABLED", &cfg.AvailabilityCacheOn)

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		cfg.CORSAllowedOrigins = parseCSV(v)
	}
	envBool(problems, "RATE_LIMIT_ENABLED", &cfg.RateLimitEnabled)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err != nil {
			*problems = append(*problems, Problem{Field: "RATE_LIMIT_RPS", Message: "RATE_LIMIT_RPS must be a number"})
		} else {
			cfg.RateLimitRPS = f
		}
	}
	envInt(problems, "RATE_LIMIT_BURST", &cfg.RateLimitBurst)

	envString("INFLUX_URL", &cfg.InfluxURL)
	envString("INFLUX_TOKEN", &cfg.InfluxToken)
	envString("INFLUX_ORG", &cfg.InfluxOrg)
	envString("INFLUX_BUCKET", &cfg.InfluxBucket)
	envInt(problems, "INFLUX_TIMEOUT_MS", &cfg.InfluxTimeoutMS)

	envBool(problems, "OTEL_ENABLED", &cfg.OtelEnabled)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OtelEndpoint)
	envBool(problems, "OTEL_EXPORTER_OTLP_INSECURE", &cfg.OtelInsecure)
	if v := strings.TrimSpace(os.Getenv("OTEL_SAMPLE_RATIO")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err != nil {
			*problems = append(*problems, Problem{Field: "OTEL_SAMPLE_RATIO", Message: "OTEL_SAMPLE_RATIO must be a number"})
		} else {
			cfg.OtelSampleRatio = f
		}
	}
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(problems *[]Problem, key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*problems = append(*problems, Problem{Field: key, Message: key + " must be an integer"})
		return
	}
	*dst = n
}

func envBool(problems *[]Problem, key string, dst *bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	b, ok := asBool(v)
	if !ok {
		*problems = append(*problems, Problem{Field: key, Message: key + " must be a boolean"})
		return
	}
	*dst = b
}

func applyConfigMap(cfg *Config, raw map[string]any, problems *[]Problem) {
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch key {
		case "ENV":
			if s, ok := v.(string); ok {
				cfg.Env = strings.TrimSpace(s)
			}
		case "SERVICE_NAME":
			mapString(v, &cfg.ServiceName)
		case "HTTP_PORT":
			p, ok := asInt(v)
			if !ok || p <= 0 || p > 65535 {
				*problems = append(*problems, Problem{Field: key, Message: "HTTP_PORT must be 1-65535"})
			} else {
				cfg.HTTPPort = p
			}
		case "LOG_LEVEL":
			mapString(v, &cfg.LogLevel)
		case "REQUEST_TIMEOUT_MS":
			mapInt(problems, key, v, &cfg.RequestTimeoutMS)
		case "OIDC_ISSUER":
			mapString(v, &cfg.OIDCIssuer)
		case "OIDC_AUDIENCE":
			mapString(v, &cfg.OIDCAudience)
		case "OIDC_JWKS_URL":
			mapString(v, &cfg.OIDCJWKSURL)
		case "JWKS_CACHE_TTL_SECONDS":
			mapInt(problems, key, v, &cfg.JWKSTTLSeconds)
		case "JWT_CLOCK_SKEW_SECONDS":
			mapInt(problems, key, v, &cfg.JWTClockSkewSec)
		case "DATABASE_URL":
			mapString(v, &cfg.DatabaseURL)
		case "DB_MAX_CONNS":
			mapInt(problems, key, v, &cfg.DBMaxConns)
		case "DB_MIN_CONNS":
			mapInt(problems, key, v, &cfg.DBMinConns)
		case "DB_CONN_MAX_IDLE_SECONDS":
			mapInt(problems, key, v, &cfg.DBConnMaxIdleSec)
		case "DB_CONN_MAX_LIFETIME_SECONDS":
			mapInt(problems, key, v, &cfg.DBConnMaxLifeSec)
		case "TX_TIMEOUT_SECONDS":
			mapInt(problems, key, v, &cfg.TxTimeoutSec)
		case "KAFKA_BROKERS":
			if s, ok := v.(string); ok {
				cfg.KafkaBrokers = parseCSV(s)
			} else if arr, ok := v.([]any); ok {
				cfg.KafkaBrokers = parseAnyCSV(arr)
			}
		case "KAFKA_CLIENT_ID":
			mapString(v, &cfg.KafkaClientID)
		case "KAFKA_CONSUMER_GROUP":
			mapString(v, &cfg.KafkaGroupID)
		case "KAFKA_RETRY_MAX":
			mapInt(problems, key, v, &cfg.KafkaRetryMax)
		case "KAFKA_WRITE_TIMEOUT_MS":
			mapInt(problems, key, v, &cfg.KafkaWriteMS)
		case "REDIS_ADDR":
			mapString(v, &cfg.RedisAddr)
		case "REDIS_PASSWORD":
			if s, ok := v.(string); ok {
				cfg.RedisPassword = s
			}
		case "REDIS_DB":
			mapInt(problems, key, v, &cfg.RedisDB)
		case "ASYNQ_REDIS_ADDR":
			mapString(v, &cfg.AsynqRedisAddr)
		case "ASYNQ_REDIS_PASSWORD":
			if s, ok := v.(string); ok {
				cfg.AsynqRedisPass = s
			}
		case "ASYNQ_REDIS_DB":
			mapInt(problems, key, v, &cfg.AsynqRedisDB)
		case "ASYNQ_QUEUE":
			mapString(v, &cfg.AsynqQueue)
		case "ASYNQ_CONCURRENCY":
			mapInt(problems, key, v, &cfg.AsynqConcurrency)
		case "ASYNQ_ENABLED":
			mapBool(problems, key, v, &cfg.AsynqEnabled)
		case "OUTBOX_SCAN_INTERVAL_SECONDS":
			mapInt(problems, key, v, &cfg.OutboxScanSec)
		case "OUTBOX_BATCH_SIZE":
			mapInt(problems, key, v, &cfg.OutboxBatchSize)
		case "OUTBOX_MAX_RETRIES":
			mapInt(problems, key, v, &cfg.OutboxMaxRetries)
		case "OUTBOX_LOCK_ENABLED":
			mapBool(problems, key, v, &cfg.OutboxLockEnabled)
		case "OUTBOX_LOCK_TTL_SECONDS":
			mapInt(problems, key, v, &cfg.OutboxLockTTLSec)
		case "BOOKING_NUMBER_RETRIES":
			mapInt(problems, key, v, &cfg.BookingNumberRetries)
		case "SLOT_GRANULARITY_MINUTES":
			mapInt(problems, key, v, &cfg.SlotGranularityMins)
		case "AVAILABILITY_CACHE_TTL_SECONDS":
			mapInt(problems, key, v, &cfg.AvailabilityCacheTTLSec)
		case "AVAILABILITY_CACHE_ENABLED":
			mapBool(problems, key, v, &cfg.AvailabilityCacheOn)
		case "CORS_ALLOWED_ORIGINS":
			if s, ok := v.(string); ok {
				cfg.CORSAllowedOrigins = parseCSV(s)
			} else if arr, ok := v.([]any); ok {
				cfg.CORSAllowedOrigins = parseAnyCSV(arr)
			}
		case "RATE_LIMIT_ENABLED":
			mapBool(problems, key, v, &cfg.RateLimitEnabled)
		case "RATE_LIMIT_RPS":
			if f, ok := asFloat(v); ok {
				cfg.RateLimitRPS = f
			} else {
				*problems = append(*problems, Problem{Field: key, Message: "RATE_LIMIT_RPS must be a number"})
			}
		case "RATE_LIMIT_BURST":
			mapInt(problems, key, v, &cfg.RateLimitBurst)
		case "INFLUX_URL":
			mapString(v, &cfg.InfluxURL)
		case "INFLUX_TOKEN":
			if s, ok := v.(string); ok {
				cfg.InfluxToken = s
			}
		case "INFLUX_ORG":
			mapString(v, &cfg.InfluxOrg)
		case "INFLUX_BUCKET":
			mapString(v, &cfg.InfluxBucket)
		case "INFLUX_TIMEOUT_MS":
			mapInt(problems, key, v, &cfg.InfluxTimeoutMS)
		case "OTEL_ENABLED":
			mapBool(problems, key, v, &cfg.OtelEnabled)
		case "OTEL_EXPORTER_OTLP_ENDPOINT":
			mapString(v, &cfg.OtelEndpoint)
		case "OTEL_EXPORTER_OTLP_INSECURE":
			mapBool(problems, key, v, &cfg.OtelInsecure)
		case "OTEL_SAMPLE_RATIO":
			if f, ok := asFloat(v); ok {
				cfg.OtelSampleRatio = f
			} else {
				*problems = append(*problems, Problem{Field: key, Message: "OTEL_SAMPLE_RATIO must be a number"})
			}
		}
	}
}

func mapString(v any, dst *string) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		*dst = strings.TrimSpace(s)
	}
}

func mapInt(problems *[]Problem, key string, v any, dst *int) {
	n, ok := asInt(v)
	if !ok {
		*problems = append(*problems, Problem{Field: key, Message: key + " must be an integer"})
		return
	}
	*dst = n
}

func mapBool(problems *[]Problem, key string, v any, dst *bool) {
	switch t := v.(type) {
	case bool:
		*dst = t
	case string:
		if b, ok := asBool(t); ok {
			*dst = b
		} else {
			*problems = append(*problems, Problem{Field: key, Message: key + " must be a boolean"})
		}
	default:
		*problems = append(*problems, Problem{Field: key, Message: key + " must be a boolean"})
	}
}

func readStringKey(raw map[string]any, key string) (string, bool) {
	for k, v := range raw {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			s, ok := v.(string)
			return s, ok
		}
	}
	return "", false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

func asBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	default:
		return false, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAnyCSV(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
