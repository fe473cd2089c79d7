package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Upload UploadConfig
	Jobs   JobsConfig
	Homr   HomrConfig
	PDF    PDFConfig
}

type ServerConfig struct {
	Host            string `validate:"required"`
	Port            string `validate:"required"`
	Env             string
	LogLevel        string
	FrontendDir     string
	AutoOpenBrowser bool
	BrowserTarget   string `validate:"oneof=chrome safari default"`
}

type UploadConfig struct {
	MaxMB int `validate:"gt=0"`
}

type JobsConfig struct {
	RootDir   string `validate:"required"`
	TTLHours  int    `validate:"gt=0"`
	Workers   int    `validate:"gt=0"`
	QueueSize int    `validate:"gte=0"`
}

type HomrConfig struct {
	Dir            string
	TimeoutSeconds int `validate:"gt=0"`
}

type PDFConfig struct {
	PdftoppmPath string `validate:"required"`
	DPI          int    `validate:"gt=0"`
}

// MaxBytes returns the upload cap in bytes.
func (u UploadConfig) MaxBytes() int64 {
	return int64(u.MaxMB) * 1024 * 1024
}

// TTL returns the job retention window.
func (j JobsConfig) TTL() time.Duration {
	return time.Duration(j.TTLHours) * time.Hour
}

// Timeout returns the per-invocation recognizer bound.
func (h HomrConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	_ = viper.BindEnv("server.host", "HOST")
	_ = viper.BindEnv("server.port", "PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.frontend_dir", "FRONTEND_DIR")
	_ = viper.BindEnv("server.auto_open_browser", "AUTO_OPEN_BROWSER")
	_ = viper.BindEnv("server.browser_target", "BROWSER_TARGET")
	_ = viper.BindEnv("upload.max_mb", "MAX_UPLOAD_MB")
	_ = viper.BindEnv("jobs.root_dir", "JOBS_DIR")
	_ = viper.BindEnv("jobs.ttl_hours", "JOB_TTL_HOURS")
	_ = viper.BindEnv("jobs.workers", "JOB_WORKERS")
	_ = viper.BindEnv("jobs.queue_size", "JOB_QUEUE_SIZE")
	_ = viper.BindEnv("homr.dir", "HOMR_DIR")
	_ = viper.BindEnv("homr.timeout_seconds", "HOMR_TIMEOUT")
	_ = viper.BindEnv("pdf.pdftoppm_path", "PDFTOPPM_PATH")
	_ = viper.BindEnv("pdf.dpi", "PDF_DPI")

	// Defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "7860")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.frontend_dir", "./frontend")
	viper.SetDefault("server.auto_open_browser", true)
	viper.SetDefault("server.browser_target", "chrome")
	viper.SetDefault("upload.max_mb", 40)
	viper.SetDefault("jobs.root_dir", filepath.Join(os.TempDir(), "sheet-transcriber-jobs"))
	viper.SetDefault("jobs.ttl_hours", 12)
	viper.SetDefault("jobs.workers", 2)
	viper.SetDefault("jobs.queue_size", 8)
	viper.SetDefault("homr.timeout_seconds", 180)
	viper.SetDefault("pdf.pdftoppm_path", "pdftoppm")
	viper.SetDefault("pdf.dpi", 300)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Host:            viper.GetString("server.host"),
			Port:            viper.GetString("server.port"),
			Env:             viper.GetString("server.env"),
			LogLevel:        viper.GetString("server.log_level"),
			FrontendDir:     viper.GetString("server.frontend_dir"),
			AutoOpenBrowser: viper.GetBool("server.auto_open_browser"),
			BrowserTarget:   normalizeBrowserTarget(viper.GetString("server.browser_target")),
		},
		Upload: UploadConfig{
			MaxMB: viper.GetInt("upload.max_mb"),
		},
		Jobs: JobsConfig{
			RootDir:   viper.GetString("jobs.root_dir"),
			TTLHours:  viper.GetInt("jobs.ttl_hours"),
			Workers:   viper.GetInt("jobs.workers"),
			QueueSize: viper.GetInt("jobs.queue_size"),
		},
		Homr: HomrConfig{
			Dir:            viper.GetString("homr.dir"),
			TimeoutSeconds: viper.GetInt("homr.timeout_seconds"),
		},
		PDF: PDFConfig{
			PdftoppmPath: viper.GetString("pdf.pdftoppm_path"),
			DPI:          viper.GetInt("pdf.dpi"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func normalizeBrowserTarget(raw string) string {
	switch raw {
	case "chrome", "safari", "default":
		return raw
	default:
		return "chrome"
	}
}
