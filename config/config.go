package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"solver_gateway/errs"
)

// EnvPrefix is prepended to every environment override, e.g.
// SOLVER_POLICY_DAILY_FREE_LIMIT overrides policy.daily_free_limit.
const EnvPrefix = "SOLVER"

// Config is the top-level gateway configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Policy      PolicyConfig      `mapstructure:"policy"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	Store       StoreConfig       `mapstructure:"store"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Bookkeeping BookkeepingConfig `mapstructure:"bookkeeping"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen" validate:"required"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" validate:"min=1"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// PolicyConfig holds the tunable business rules of the answer path.
type PolicyConfig struct {
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" validate:"gte=0,lte=1"`
	DailyFreeLimit      int           `mapstructure:"daily_free_limit" validate:"gte=0"`
	UpstreamTimeout     time.Duration `mapstructure:"upstream_timeout" validate:"gt=0"`
	StoreTimeout        time.Duration `mapstructure:"store_timeout" validate:"gt=0"`
}

type EmbeddingConfig struct {
	Backend     string `mapstructure:"backend" validate:"oneof=gemini openai grpc"`
	Model       string `mapstructure:"model" validate:"required"`
	Dimensions  int    `mapstructure:"dimensions" validate:"gt=0"`
	Endpoint    string `mapstructure:"endpoint" validate:"required_if=Backend openai"`
	APIKeyEnv   string `mapstructure:"api_key_env"`
	GRPCAddress string `mapstructure:"grpc_address" validate:"required_if=Backend grpc"`
	ServeAddr   string `mapstructure:"serve_addr"`
}

type GenerationConfig struct {
	Backend        string  `mapstructure:"backend" validate:"oneof=gemini openai anthropic grpc"`
	Model          string  `mapstructure:"model" validate:"required"`
	Endpoint       string  `mapstructure:"endpoint" validate:"required_if=Backend openai"`
	APIKeyEnv      string  `mapstructure:"api_key_env"`
	PromptTemplate string  `mapstructure:"prompt_template" validate:"required"`
	MaxTokens      int     `mapstructure:"max_tokens" validate:"gt=0"`
	Temperature    float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	GRPCAddress    string  `mapstructure:"grpc_address" validate:"required_if=Backend grpc"`
	ServeAddr      string  `mapstructure:"serve_addr"`
}

type StoreConfig struct {
	Backend        string       `mapstructure:"backend" validate:"oneof=qdrant postgres sqlite memory grpc"`
	Qdrant         QdrantConfig `mapstructure:"qdrant"`
	SQLitePath     string       `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	MemoryCapacity int          `mapstructure:"memory_capacity" validate:"gt=0"`
	GRPCAddress    string       `mapstructure:"grpc_address" validate:"required_if=Backend grpc"`
	ServeAddr      string       `mapstructure:"serve_addr"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Collection string `mapstructure:"collection"`
}

type LedgerConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=postgres redis memory"`
	RedisAddr     string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
	AutoProvision bool   `mapstructure:"auto_provision"`
}

type PostgresConfig struct {
	URL          string `mapstructure:"url"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

type IdentityConfig struct {
	Backend      string            `mapstructure:"backend" validate:"oneof=jwt static"`
	JWTSecret    string            `mapstructure:"jwt_secret" validate:"required_if=Backend jwt"`
	Issuer       string            `mapstructure:"issuer"`
	Audience     string            `mapstructure:"audience"`
	StaticTokens map[string]string `mapstructure:"static_tokens"`
}

type BookkeepingConfig struct {
	Workers     int           `mapstructure:"workers" validate:"gt=0"`
	QueueSize   int           `mapstructure:"queue_size" validate:"gt=0"`
	TaskTimeout time.Duration `mapstructure:"task_timeout" validate:"gt=0"`
}

// Load reads configuration from the given path (or defaults only) with
// environment overrides. A .env file in the working directory is loaded
// first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Errorf(errs.CodeConfigInvalid, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Errorf(errs.CodeConfigInvalid, "unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.max_body_bytes", 64<<10)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "ERROR")
	v.SetDefault("log.format", "text")

	v.SetDefault("policy.similarity_threshold", 0.95)
	v.SetDefault("policy.daily_free_limit", 5)
	v.SetDefault("policy.upstream_timeout", 30*time.Second)
	v.SetDefault("policy.store_timeout", 5*time.Second)

	v.SetDefault("embedding.backend", "gemini")
	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.endpoint", "https://api.openai.com/v1/embeddings")
	v.SetDefault("embedding.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("embedding.grpc_address", "localhost:50051")
	v.SetDefault("embedding.serve_addr", ":50051")

	v.SetDefault("generation.backend", "gemini")
	v.SetDefault("generation.model", "gemini-2.0-flash-lite")
	v.SetDefault("generation.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("generation.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("generation.prompt_template", "Solve this step-by-step: %s")
	v.SetDefault("generation.max_tokens", 2048)
	v.SetDefault("generation.temperature", 0.2)
	v.SetDefault("generation.grpc_address", "localhost:50053")
	v.SetDefault("generation.serve_addr", ":50053")

	v.SetDefault("store.backend", "qdrant")
	v.SetDefault("store.qdrant.host", "localhost")
	v.SetDefault("store.qdrant.port", 6334)
	v.SetDefault("store.qdrant.collection", "questions_cache")
	v.SetDefault("store.sqlite_path", "solver.db")
	v.SetDefault("store.memory_capacity", 10000)
	v.SetDefault("store.grpc_address", "localhost:50052")
	v.SetDefault("store.serve_addr", ":50052")

	v.SetDefault("ledger.backend", "postgres")
	v.SetDefault("ledger.redis_addr", "localhost:6379")
	v.SetDefault("ledger.redis_password", "")
	v.SetDefault("ledger.redis_db", 0)
	v.SetDefault("ledger.auto_provision", false)

	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.ensure_schema", false)

	v.SetDefault("identity.backend", "jwt")
	v.SetDefault("identity.jwt_secret", "")
	v.SetDefault("identity.issuer", "")
	v.SetDefault("identity.audience", "")

	v.SetDefault("bookkeeping.workers", 4)
	v.SetDefault("bookkeeping.queue_size", 1000)
	v.SetDefault("bookkeeping.task_timeout", 5*time.Second)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-backend rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errs.Errorf(errs.CodeConfigInvalid, "validating config: %w", err)
	}

	usesPostgres := c.Store.Backend == "postgres" || c.Ledger.Backend == "postgres"
	if usesPostgres && c.Postgres.URL == "" {
		return errs.New(errs.CodeConfigInvalid, "postgres.url is required by the postgres store or ledger")
	}
	if c.Identity.Backend == "static" && len(c.Identity.StaticTokens) == 0 {
		return errs.New(errs.CodeConfigInvalid, "identity.static_tokens must not be empty for the static backend")
	}
	// The memory ledger only learns accounts from static tokens or by
	// provisioning them on first use; otherwise every request is a 401.
	if c.Ledger.Backend == "memory" && !c.Ledger.AutoProvision && c.Identity.Backend != "static" {
		return errs.New(errs.CodeConfigInvalid,
			"ledger.backend memory needs ledger.auto_provision or identity.backend static")
	}
	return nil
}
