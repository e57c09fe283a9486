package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	HF     HFConfig
	App    AppConfig
	Auth   AuthConfig
}

type ServerConfig struct {
	Host string
	Port string
}

// HFConfig configures the Hugging Face Inference API gateway. Token absence
// is not an error here; it is detected when a classification is attempted.
type HFConfig struct {
	BaseURL          string
	Model            string
	Token            string
	Timeout          time.Duration
	ColdStartDelay   time.Duration
	ColdStartRetries int
}

type AppConfig struct {
	UploadDir     string
	MetadataFile  string
	MaxUploadSize int64
	CacheCapacity int
}

// AuthConfig enables JWT auth on the API when a secret is configured.
type AuthConfig struct {
	JWTSecret   string
	JWTAudience string
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("HF_API_BASE_URL", "https://router.huggingface.co/hf-inference/models")
	viper.SetDefault("HF_MODEL", "google/vit-base-patch16-224")
	viper.SetDefault("HF_TIMEOUT_SECONDS", 30)
	viper.SetDefault("HF_COLD_START_DELAY_SECONDS", 5)
	viper.SetDefault("HF_COLD_START_RETRIES", 5)
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("METADATA_FILE", "metadata.json")
	viper.SetDefault("MAX_FILE_SIZE_MB", 10)
	viper.SetDefault("CACHE_CAPACITY", 128)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		HF: HFConfig{
			BaseURL:          viper.GetString("HF_API_BASE_URL"),
			Model:            viper.GetString("HF_MODEL"),
			Token:            viper.GetString("HF_API_TOKEN"),
			Timeout:          time.Duration(viper.GetInt("HF_TIMEOUT_SECONDS")) * time.Second,
			ColdStartDelay:   time.Duration(viper.GetInt("HF_COLD_START_DELAY_SECONDS")) * time.Second,
			ColdStartRetries: viper.GetInt("HF_COLD_START_RETRIES"),
		},
		App: AppConfig{
			UploadDir:     viper.GetString("UPLOAD_DIR"),
			MetadataFile:  viper.GetString("METADATA_FILE"),
			MaxUploadSize: viper.GetInt64("MAX_FILE_SIZE_MB") * 1024 * 1024,
			CacheCapacity: viper.GetInt("CACHE_CAPACITY"),
		},
		Auth: AuthConfig{
			JWTSecret:   viper.GetString("JWT_SECRET"),
			JWTAudience: viper.GetString("JWT_AUDIENCE"),
		},
	}

	return cfg, nil
}
