// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the signaling service.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTTTL    time.Duration

	LogLevel  string
	LogFormat string

	RequeueDelay     time.Duration
	MatchSameCity    bool
	MatchMaxAgeGap   int
	PersistHistory   bool
	MaxMessageLength int
	ChatRate         float64
	ChatBurst        int

	TelegramToken  string
	AllowedOrigins []string
	ICEServers     []webrtc.ICEServer
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("database_dsn", "host=localhost user=user password=password dbname=dilsedb port=5432 sslmode=disable")
	v.SetDefault("redis_addr", "localhost:6380")
	v.SetDefault("redis_db", 0)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", DefaultJWTTTL)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("requeue_delay", DefaultRequeueDelay)
	v.SetDefault("match_same_city", false)
	v.SetDefault("match_max_age_gap", 0)
	v.SetDefault("history_persist", false)
	v.SetDefault("max_message_length", DefaultMaxMessageLength)
	v.SetDefault("chat_rate", DefaultChatRate)
	v.SetDefault("chat_burst", DefaultChatBurst)
	v.SetDefault("stun_urls", "stun:stun.l.google.com:19302")
	return v
}

// Load reads the configuration from environment variables, falling back to
// defaults. Call godotenv.Load beforehand to pick up a .env file.
func Load() (*Config, error) {
	return fromViper(newViper())
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPAddr:         v.GetString("http_addr"),
		GRPCAddr:         v.GetString("grpc_addr"),
		DatabaseDSN:      v.GetString("database_dsn"),
		RedisAddr:        v.GetString("redis_addr"),
		RedisPassword:    v.GetString("redis_password"),
		RedisDB:          v.GetInt("redis_db"),
		JWTSecret:        v.GetString("jwt_secret"),
		JWTTTL:           v.GetDuration("jwt_ttl"),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
		RequeueDelay:     v.GetDuration("requeue_delay"),
		MatchSameCity:    v.GetBool("match_same_city"),
		MatchMaxAgeGap:   v.GetInt("match_max_age_gap"),
		PersistHistory:   v.GetBool("history_persist"),
		MaxMessageLength: v.GetInt("max_message_length"),
		ChatRate:         v.GetFloat64("chat_rate"),
		ChatBurst:        v.GetInt("chat_burst"),
		TelegramToken:    v.GetString("telegram_bot_token"),
		AllowedOrigins:   splitCommaSeparated(v.GetString("allowed_origins")),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.RequeueDelay < 0 {
		return nil, fmt.Errorf("REQUEUE_DELAY must not be negative, got %s", cfg.RequeueDelay)
	}
	if cfg.MatchMaxAgeGap < 0 {
		return nil, fmt.Errorf("MATCH_MAX_AGE_GAP must not be negative, got %d", cfg.MatchMaxAgeGap)
	}
	if cfg.MaxMessageLength <= 0 {
		return nil, fmt.Errorf("MAX_MESSAGE_LENGTH must be positive, got %d", cfg.MaxMessageLength)
	}
	if cfg.ChatRate <= 0 || cfg.ChatBurst <= 0 {
		return nil, fmt.Errorf("CHAT_RATE and CHAT_BURST must be positive")
	}

	iceServers, err := iceSettings{
		JSON:           v.GetString("ice_servers_json"),
		STUNURLs:       v.GetString("stun_urls"),
		TURNURLs:       v.GetString("turn_urls"),
		TURNUsername:   v.GetString("turn_username"),
		TURNCredential: v.GetString("turn_credential"),
	}.servers()
	if err != nil {
		return nil, err
	}
	cfg.ICEServers = iceServers

	return cfg, nil
}

// LoadStorage reads only the database, Redis and logging settings. Operator
// tools use it so they run without the server secrets.
func LoadStorage() *Config {
	v := newViper()
	return &Config{
		DatabaseDSN:   v.GetString("database_dsn"),
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),
	}
}
