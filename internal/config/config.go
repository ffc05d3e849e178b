package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Upload   UploadConfig   `mapstructure:"Upload"`
}

type ServerConfig struct {
	Port    string `mapstructure:"Port"`
	BaseURL string `mapstructure:"BaseURL"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

// UploadConfig задает политику приема аудиофайлов. Значения внедряются
// в валидатор и конвейер, чтобы их можно было варьировать в тестах
type UploadConfig struct {
	MaxFileSizeMB          int64    `mapstructure:"MaxFileSizeMB"`
	AllowedFormats         []string `mapstructure:"AllowedFormats"`
	DefaultBrowserDuration float64  `mapstructure:"DefaultBrowserDuration"`
	MaxDuration            float64  `mapstructure:"MaxDuration"`
}

// MaxFileSize возвращает лимит размера файла в байтах
func (u *UploadConfig) MaxFileSize() int64 {
	return u.MaxFileSizeMB * 1024 * 1024
}

// DefaultUploadConfig возвращает политику приема по умолчанию:
// 50MB, стандартный набор форматов, эталонная длительность 10 секунд
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxFileSizeMB:          50,
		AllowedFormats:         []string{"wav", "mp3", "webm", "ogg", "m4a"},
		DefaultBrowserDuration: 10.0,
		MaxDuration:            10.0,
	}
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Server.BaseURL", "BASE_URL")
	v.BindEnv("Upload.MaxFileSizeMB", "MAX_FILE_SIZE_MB")
	v.BindEnv("Upload.AllowedFormats", "ALLOWED_AUDIO_FORMATS")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Проверяем переменные окружения напрямую, если конфигурация неполная
	if cfg.Database.Host == "" {
		cfg.Database.Host = v.GetString("DATABASE_HOST")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = v.GetString("DATABASE_PORT")
	}
	if cfg.Database.User == "" {
		cfg.Database.User = v.GetString("DATABASE_USER")
	}
	if cfg.Database.Password == "" {
		cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = v.GetString("DATABASE_NAME")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}

	// Проверяем, что все необходимые поля заполнены
	if cfg.Database.Host == "" ||
		cfg.Database.Port == "" ||
		cfg.Database.User == "" ||
		cfg.Database.Password == "" ||
		cfg.Database.Name == "" {
		return nil, fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
	}

	// Установка значений по умолчанию
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}

	defaults := DefaultUploadConfig()
	if cfg.Upload.MaxFileSizeMB <= 0 {
		cfg.Upload.MaxFileSizeMB = defaults.MaxFileSizeMB
	}
	if len(cfg.Upload.AllowedFormats) == 0 {
		if raw := v.GetString("ALLOWED_AUDIO_FORMATS"); raw != "" {
			cfg.Upload.AllowedFormats = strings.Split(raw, ",")
		} else {
			cfg.Upload.AllowedFormats = defaults.AllowedFormats
		}
	}
	if cfg.Upload.DefaultBrowserDuration <= 0 {
		cfg.Upload.DefaultBrowserDuration = defaults.DefaultBrowserDuration
	}
	if cfg.Upload.MaxDuration <= 0 {
		cfg.Upload.MaxDuration = defaults.MaxDuration
	}

	return &cfg, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}
