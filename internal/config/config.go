package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Langfuse  LangfuseConfig  `yaml:"langfuse"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// LocalDev forces local-file prompt artifacts and enables verbose logging
	// of raw provider responses.
	LocalDev bool `yaml:"local_dev"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	StaticDir        string        `yaml:"static_dir"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// ProviderConfig describes the model runtime endpoint the gateway fronts.
type ProviderConfig struct {
	AWSRegion          string        `yaml:"aws_region"`
	BaseURL            string        `yaml:"base_url"`
	APIKey             string        `yaml:"api_key"`
	Timeout            time.Duration `yaml:"timeout"`
	DefaultModelID     string        `yaml:"default_model_id"`
	DefaultTemperature float64       `yaml:"default_temperature"`
	DefaultMaxTokens   int           `yaml:"default_max_tokens"`
	Models             []string      `yaml:"models"`
}

// PromptsConfig names the three prompt artifacts: their identifiers in the
// remote prompt store and the local fallback files.
type PromptsConfig struct {
	SystemPromptFile  string `yaml:"system_prompt_file"`
	KnowledgeBaseFile string `yaml:"knowledge_base_file"`
	FewShotsFile      string `yaml:"few_shots_file"`
	SystemPromptName  string `yaml:"system_prompt_name"`
	KnowledgeBaseName string `yaml:"knowledge_base_name"`
	FewShotsName      string `yaml:"few_shots_name"`
}

type LangfuseConfig struct {
	Enabled   bool          `yaml:"enabled"`
	PublicKey string        `yaml:"public_key"`
	SecretKey string        `yaml:"secret_key"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	RedisAddresses    []string `yaml:"redis_addresses"`
	RedisPassword     string   `yaml:"redis_password"`
	RedisDB           int      `yaml:"redis_db"`
	RedisPoolSize     int      `yaml:"redis_pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsPort int    `yaml:"metrics_port"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			StaticDir:        "static",
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Provider: ProviderConfig{
			AWSRegion:          "us-east-1",
			BaseURL:            "https://bedrock-runtime.us-east-1.amazonaws.com",
			Timeout:            120 * time.Second,
			DefaultModelID:     "anthropic.claude-3-sonnet-20240229-v1:0",
			DefaultTemperature: 0.7,
			DefaultMaxTokens:   2048,
			Models: []string{
				"anthropic.claude-3-sonnet-20240229-v1:0",
				"anthropic.claude-3-haiku-20240307-v1:0",
				"anthropic.claude-3-opus-20240229-v1:0",
				"anthropic.claude-v2:1",
				"anthropic.claude-v2",
			},
		},
		Prompts: PromptsConfig{
			SystemPromptFile:  "prompts/system_prompt.txt",
			KnowledgeBaseFile: "prompts/knowledge_base.json",
			FewShotsFile:      "prompts/few_shots.json",
			SystemPromptName:  "moch-system-prompt",
			KnowledgeBaseName: "moch-knowledge-base",
			FewShotsName:      "moch-few-shots",
		},
		Langfuse: LangfuseConfig{
			Enabled: true,
			BaseURL: "https://cloud.langfuse.com",
			Timeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			RedisAddresses:    []string{"localhost:6379"},
			RedisPoolSize:     50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			MetricsPort: 9090,
		},
	}
}
