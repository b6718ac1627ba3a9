package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
}

type OpenAIConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	WebModel  string        `mapstructure:"web_model"`
	FileModel string        `mapstructure:"file_model"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type HarvestConfig struct {
	OutDir string `mapstructure:"outdir"`
	// Sleep is the courtesy pause after every job.
	Sleep time.Duration `mapstructure:"sleep"`
	// PollInterval is the delay between vector store file status checks.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// ErrorBackoffFactor multiplies PollInterval after a transient polling error.
	ErrorBackoffFactor int `mapstructure:"error_backoff_factor"`
}

type ExtractConfig struct {
	Manifest     string `mapstructure:"manifest"`
	PDFDir       string `mapstructure:"pdf_dir"`
	OutputDir    string `mapstructure:"output_dir"`
	SkipExisting bool   `mapstructure:"skip_existing"`
	AddMetadata  bool   `mapstructure:"add_metadata"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// Load reads configuration from an optional YAML file, .env and the environment.
// An empty configPath searches ./configs and the working directory for config.yaml.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment knobs come from well-known variable names.
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("server.port", "PORT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.web_model", "gpt-4.1")
	v.SetDefault("openai.file_model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 120*time.Second)

	v.SetDefault("harvest.outdir", "stash")
	v.SetDefault("harvest.sleep", 250*time.Millisecond)
	v.SetDefault("harvest.poll_interval", 5*time.Second)
	v.SetDefault("harvest.error_backoff_factor", 2)

	v.SetDefault("extract.manifest", "data/manifest.csv")
	v.SetDefault("extract.output_dir", "data/extracted_text")
	v.SetDefault("extract.skip_existing", false)
	v.SetDefault("extract.add_metadata", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/stash.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "stash")
	v.SetDefault("storage.prefix", "harvest")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
}

// ValidateHarvest checks the settings the harvester cannot run without.
func (c *Config) ValidateHarvest() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key is required (set OPENAI_API_KEY)")
	}
	if c.Harvest.PollInterval <= 0 {
		return fmt.Errorf("harvest.poll_interval must be positive, got %s", c.Harvest.PollInterval)
	}
	if c.Harvest.Sleep < 0 {
		return fmt.Errorf("harvest.sleep must not be negative, got %s", c.Harvest.Sleep)
	}
	if c.Harvest.OutDir == "" {
		return fmt.Errorf("harvest.outdir is required")
	}
	return nil
}
