package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type RateLimit struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type Live struct {
	PushKey          string `mapstructure:"push_key"`
	PullKey          string `mapstructure:"pull_key"`
	PushServer       string `mapstructure:"push_server"`
	PullServerRTMP   string `mapstructure:"pull_server_rtmp"`
	PullServerWebRTC string `mapstructure:"pull_server_webrtc"`
}

type Captcha struct {
	Expiry   time.Duration `mapstructure:"expiry"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Length   int           `mapstructure:"length"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminPassword string        `mapstructure:"admin_password"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`

	DatabasePath string `mapstructure:"database_path"`
	AuditWorkers int    `mapstructure:"audit_workers"`

	DanmakuHistory int       `mapstructure:"danmaku_history"`
	DanmakuRate    RateLimit `mapstructure:"danmaku_rate"`
	SlowConsumer   string    `mapstructure:"slow_consumer"`

	Captcha    Captcha     `mapstructure:"captcha"`
	Live       Live        `mapstructure:"live"`
	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

// New returns a viper instance with every default set and DANMAKU_ env overrides enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DANMAKU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")

	v.SetDefault("jwt_secret", "change-me-too")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("admin_password", "")
	v.SetDefault("bcrypt_cost", 10)

	v.SetDefault("database_path", "danmaku.db")
	v.SetDefault("audit_workers", 2)

	v.SetDefault("danmaku_history", 30)
	v.SetDefault("danmaku_rate.limit", 5)
	v.SetDefault("danmaku_rate.interval", "3s")
	v.SetDefault("slow_consumer", "drop")

	v.SetDefault("captcha.expiry", "600s")
	v.SetDefault("captcha.cooldown", "60s")
	v.SetDefault("captcha.length", 6)

	v.SetDefault("live.push_server", "rtmp://localhost/live/")
	v.SetDefault("live.pull_server_rtmp", "http://localhost/live/")
	v.SetDefault("live.pull_server_webrtc", "webrtc://localhost/live/")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
	return v
}

// Load reads config/config.<CONFIG_ENV>.yaml (env "dev" by default) over the defaults.
func Load() (*Config, error) {
	return LoadFile(New(), FileFor(os.Getenv("CONFIG_ENV")))
}

// FileFor maps an environment name to its config file.
func FileFor(env string) string {
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("config/config.%s.yaml", env)
}

// LoadFile reads fileName into v if it exists and unmarshals the result.
func LoadFile(v *viper.Viper, fileName string) (*Config, error) {
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Mode == "release" && cfg.AdminPassword == "" {
		log.Warn().Str("module", "config").Msg("admin_password is empty, admin login disabled")
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("db", cfg.DatabasePath).Msg("config ready")
	return &cfg, nil
}
