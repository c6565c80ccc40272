package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration, assembled once at startup so main
// stays lean.
type Config struct {
	Server      Server
	Postgres    Postgres
	Redis       Redis
	Stream      Stream
	Ledger      Ledger
	Coordinator Coordinator
	Relay       Relay
	Log         Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	AdminToken      string
	ShutdownTimeout time.Duration
}

// Postgres configures the operation and credential stores. An empty URL keeps
// the service on in-memory stores.
type Postgres struct {
	URL string
}

// Redis configures the relay dedup store. An empty URL disables Redis and the
// relay falls back to its in-memory dedup set.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Stream configures the Kafka-backed consensus log and relay topics.
type Stream struct {
	Brokers      []string
	ClientID     string
	IntentTopic  string
	DepositTopic string
	ResultTopic  string
	FetchMaxWait time.Duration
}

// Ledger configures the remote token service gateway. An empty BaseURL keeps
// the service on the in-memory ledger.
type Ledger struct {
	BaseURL              string
	APIKey               string
	TreasuryAccount      string
	VaultAccount         string
	FeeAccount           string
	Timeout              time.Duration
	BreakerThreshold     int
	BreakerProbeInterval time.Duration
}

// Coordinator holds the credential lifecycle parameters. The payout shares
// are in basis points and must sum to 10000.
type Coordinator struct {
	MaxQuota             int64
	IssuePrice           int64
	MaxAccrualPerRequest int64
	RefundShareBps       int64
	FeeShareBps          int64
	ExecutorWorkers      int
	SubmitTimeout        time.Duration
	AwaitTimeout         time.Duration
}

// Relay holds deposit relay parameters.
type Relay struct {
	DedupTTL     time.Duration
	Workers      int
	AwaitTimeout time.Duration
}

// Log selects the handler for the structured logger.
type Log struct {
	Level  string
	Format string
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            getEnv("TESSERA_ADDR", ":8080"),
			JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			AdminToken:      getEnv("ADMIN_TOKEN", ""),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			URL: getEnv("POSTGRES_URL", ""),
		},
		Redis: Redis{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Stream: Stream{
			Brokers:      splitList(getEnv("KAFKA_BROKERS", "")),
			ClientID:     getEnv("KAFKA_CLIENT_ID", "tessera"),
			IntentTopic:  getEnv("KAFKA_INTENT_TOPIC", "credential-intents"),
			DepositTopic: getEnv("KAFKA_DEPOSIT_TOPIC", "deposits"),
			ResultTopic:  getEnv("KAFKA_RESULT_TOPIC", "deposit-results"),
			FetchMaxWait: getEnvDuration("KAFKA_FETCH_MAX_WAIT", 2*time.Second),
		},
		Ledger: Ledger{
			BaseURL:              getEnv("LEDGER_BASE_URL", ""),
			APIKey:               getEnv("LEDGER_API_KEY", ""),
			TreasuryAccount:      getEnv("LEDGER_TREASURY_ACCOUNT", "treasury"),
			VaultAccount:         getEnv("LEDGER_VAULT_ACCOUNT", "vault"),
			FeeAccount:           getEnv("LEDGER_FEE_ACCOUNT", "fees"),
			Timeout:              getEnvDuration("LEDGER_TIMEOUT", 10*time.Second),
			BreakerThreshold:     getEnvInt("LEDGER_BREAKER_THRESHOLD", 5),
			BreakerProbeInterval: getEnvDuration("LEDGER_BREAKER_PROBE_INTERVAL", 10*time.Second),
		},
		Coordinator: Coordinator{
			MaxQuota:             getEnvInt64("CREDENTIAL_MAX_QUOTA", 1000),
			IssuePrice:           getEnvInt64("CREDENTIAL_ISSUE_PRICE", 100),
			MaxAccrualPerRequest: getEnvInt64("CREDENTIAL_MAX_ACCRUAL_PER_REQUEST", 1000),
			RefundShareBps:       getEnvInt64("TERMINATE_REFUND_SHARE_BPS", 8000),
			FeeShareBps:          getEnvInt64("TERMINATE_FEE_SHARE_BPS", 2000),
			ExecutorWorkers:      getEnvInt("EXECUTOR_WORKERS", 1),
			SubmitTimeout:        getEnvDuration("CONSENSUS_SUBMIT_TIMEOUT", 10*time.Second),
			AwaitTimeout:         getEnvDuration("OPERATION_AWAIT_TIMEOUT", 30*time.Second),
		},
		Relay: Relay{
			DedupTTL:     getEnvDuration("RELAY_DEDUP_TTL", 24*time.Hour),
			Workers:      getEnvInt("RELAY_WORKERS", 4),
			AwaitTimeout: getEnvDuration("RELAY_AWAIT_TIMEOUT", 30*time.Second),
		},
		Log: Log{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
