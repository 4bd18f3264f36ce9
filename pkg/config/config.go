package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	FAQPolicyFAQFirst    = "faq_first"
	FAQPolicyIntentFirst = "intent_first"

	ProfileSourceFile  = "file"
	ProfileSourceRedis = "redis"
)

type Config struct {
	Server     ServerConfig
	Pipeline   PipelineConfig
	Data       DataConfig
	Artifacts  ArtifactsConfig
	Classifier ClassifierConfig
	Profiles   ProfilesConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Logs       LogsConfig
	RateLimit  RateLimitConfig
	Validation ValidationConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins string
	Development    bool
}

type PipelineConfig struct {
	FAQThreshold    float64
	IntentThreshold float64
	FAQPolicy       string
}

type DataConfig struct {
	FAQPath      string
	IntentsPath  string
	ProfilesPath string
}

type ArtifactsConfig struct {
	FAQIndexPath    string
	IntentModelPath string
	EntityModelDir  string
}

type ClassifierConfig struct {
	MinNgram      int
	MaxNgram      int
	MinDF         int
	MaxDF         float64
	MaxFeatures   int
	MaxIterations int
	Tolerance     float64
	C             float64
}

type ProfilesConfig struct {
	Source string
}

type SQLiteConfig struct {
	Enabled bool
	Path    string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogsConfig struct {
	InteractionPath string
	ErrorPath       string
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
}

type ValidationConfig struct {
	MaxMessageLength int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads config.yaml (when present) and SUPPORTBOT_* environment
// variables on top of the defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path falls
// back to the standard search locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/supportbot")
	}

	v.SetEnvPrefix("SUPPORTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values the pipeline treats as fixed constants.
func (c *Config) Validate() error {
	if c.Pipeline.FAQThreshold < 0 || c.Pipeline.FAQThreshold > 1 {
		return fmt.Errorf("pipeline.faqThreshold must be within [0,1], got %v", c.Pipeline.FAQThreshold)
	}
	if c.Pipeline.IntentThreshold < 0 || c.Pipeline.IntentThreshold > 1 {
		return fmt.Errorf("pipeline.intentThreshold must be within [0,1], got %v", c.Pipeline.IntentThreshold)
	}

	switch c.Pipeline.FAQPolicy {
	case FAQPolicyFAQFirst, FAQPolicyIntentFirst:
	default:
		return fmt.Errorf("unknown pipeline.faqPolicy %q", c.Pipeline.FAQPolicy)
	}

	switch c.Profiles.Source {
	case ProfileSourceFile, ProfileSourceRedis:
	default:
		return fmt.Errorf("unknown profiles.source %q", c.Profiles.Source)
	}

	if c.Classifier.MinNgram < 1 || c.Classifier.MaxNgram < c.Classifier.MinNgram {
		return fmt.Errorf("invalid classifier n-gram range %d..%d", c.Classifier.MinNgram, c.Classifier.MaxNgram)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", "*")
	v.SetDefault("server.development", false)

	v.SetDefault("pipeline.faqThreshold", 0.30)
	v.SetDefault("pipeline.intentThreshold", 0.40)
	v.SetDefault("pipeline.faqPolicy", FAQPolicyFAQFirst)

	v.SetDefault("data.faqPath", "./data/faqs.csv")
	v.SetDefault("data.intentsPath", "./data/intents.csv")
	v.SetDefault("data.profilesPath", "./data/user_profiles.json")

	v.SetDefault("artifacts.faqIndexPath", "./models/faq_index.json")
	v.SetDefault("artifacts.intentModelPath", "./models/intent_model.json")
	v.SetDefault("artifacts.entityModelDir", "./models/entity_model")

	v.SetDefault("classifier.minNgram", 3)
	v.SetDefault("classifier.maxNgram", 5)
	v.SetDefault("classifier.minDF", 1)
	v.SetDefault("classifier.maxDF", 0.9)
	v.SetDefault("classifier.maxFeatures", 10000)
	v.SetDefault("classifier.maxIterations", 200)
	v.SetDefault("classifier.tolerance", 1e-8)
	v.SetDefault("classifier.c", 10.0)

	v.SetDefault("profiles.source", ProfileSourceFile)

	v.SetDefault("sqlite.enabled", true)
	v.SetDefault("sqlite.path", "./data/supportbot.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("logs.interactionPath", "./logs/chatbot_logs.csv")
	v.SetDefault("logs.errorPath", "./logs/error_logs.jsonl")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.maxRequestsPerMinute", 120)

	v.SetDefault("validation.maxMessageLength", 2000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
