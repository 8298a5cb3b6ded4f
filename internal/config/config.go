package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Discord
	DiscordToken   string
	StoryForumID   string
	ProfileForumID string

	// Google Drive
	GoogleAPIKey string

	// Wordcount
	WordcountHelper string // 空の場合はインプロセスカウンタを使用
	FetchTimeout    time.Duration
	FetchMaxSize    int64

	// Refresh
	RefreshHour int

	// Rate Limit
	APIRatePerSecond int

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// トークンはDISCORD_TOKEN、またはDISCORD_TOKEN_FILEで指定したファイルから読み込む。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	token, err := loadToken()
	if err != nil {
		return nil, err
	}
	cfg.DiscordToken = token
	if cfg.DiscordToken == "" {
		missing = append(missing, "DISCORD_TOKEN")
	}

	cfg.StoryForumID = os.Getenv("STORY_FORUM_ID")
	if cfg.StoryForumID == "" {
		missing = append(missing, "STORY_FORUM_ID")
	}

	cfg.ProfileForumID = os.Getenv("PROFILE_FORUM_ID")
	if cfg.ProfileForumID == "" {
		missing = append(missing, "PROFILE_FORUM_ID")
	}

	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	if cfg.GoogleAPIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.WordcountHelper = getEnvString("WORDCOUNT_HELPER", "")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 30*1024*1024)
	cfg.RefreshHour = getEnvInt("REFRESH_HOUR", 0)
	cfg.APIRatePerSecond = getEnvInt("API_RATE_PER_SECOND", 5)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	if cfg.RefreshHour < 0 || cfg.RefreshHour > 23 {
		return nil, fmt.Errorf("REFRESH_HOUR must be in range 0-23: %d", cfg.RefreshHour)
	}

	return cfg, nil
}

// loadToken はDISCORD_TOKEN、なければDISCORD_TOKEN_FILEからトークンを読み込む。
func loadToken() (string, error) {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		return token, nil
	}
	path := os.Getenv("DISCORD_TOKEN_FILE")
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read DISCORD_TOKEN_FILE: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
