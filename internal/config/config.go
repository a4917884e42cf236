package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	Timezone               string
	DatabaseURL            string
	DatabaseMaxOpenConns   int
	DatabaseMaxIdleConns   int
	DatabaseConnLifetime   time.Duration
	RedisURL               string
	NATSURL                string
	NATSSubject            string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	DashboardCacheTTL      time.Duration
	LeaderboardSize        int
	LeaderboardRefreshCron string
	LessonCompletionPoints int
	QuizQuestionLimit      int
	QuizSubmitRateLimit    int

	location *time.Location
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Location returns the time zone used to derive calendar dates for streaks.
func (c Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	return time.Local
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BRAINBOOST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "BrainBoost API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("nats.subject", "brainboost.progress")
	v.SetDefault("cloudinary.folder", "brainboost/lessons")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("leaderboard.size", 10)
	v.SetDefault("leaderboard.refresh_cron", "*/5 * * * *")
	v.SetDefault("rewards.lesson_points", 10)
	v.SetDefault("quiz.question_limit", 10)
	v.SetDefault("quiz.submit_rate_limit", 5)

	ttlString := v.GetString("dashboard.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid dashboard cache ttl: %w", err)
	}

	timezone := strings.TrimSpace(v.GetString("app.timezone"))
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		Timezone:               timezone,
		DatabaseURL:            v.GetString("database.url"),
		DatabaseMaxOpenConns:   v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:   v.GetInt("database.max_idle_conns"),
		DatabaseConnLifetime:   v.GetDuration("database.conn_max_lifetime"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		DashboardCacheTTL:      ttl,
		LeaderboardSize:        v.GetInt("leaderboard.size"),
		LeaderboardRefreshCron: v.GetString("leaderboard.refresh_cron"),
		LessonCompletionPoints: v.GetInt("rewards.lesson_points"),
		QuizQuestionLimit:      v.GetInt("quiz.question_limit"),
		QuizSubmitRateLimit:    v.GetInt("quiz.submit_rate_limit"),
		location:               location,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 10
	}

	if cfg.LessonCompletionPoints <= 0 {
		cfg.LessonCompletionPoints = 10
	}

	if cfg.QuizQuestionLimit <= 0 {
		cfg.QuizQuestionLimit = 10
	}

	if cfg.QuizSubmitRateLimit <= 0 {
		cfg.QuizSubmitRateLimit = 5
	}

	return cfg, nil
}
