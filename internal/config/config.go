package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string           `mapstructure:"mode"`
	LogFile    string           `mapstructure:"log_file"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Media      MediaConfig      `mapstructure:"media"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Session    SessionConfig    `mapstructure:"session"`
	Auth       AuthConfig       `mapstructure:"auth"`
	DevServer  DevServerConfig  `mapstructure:"devserver"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MediaConfig struct {
	OfferURL     string        `mapstructure:"offer_url"`
	ICEServers   []string      `mapstructure:"ice_servers"`
	AudioSource  string        `mapstructure:"audio_source"`
	VideoSource  string        `mapstructure:"video_source"`
	FrameSize    time.Duration `mapstructure:"frame_size"`
	OfferTimeout time.Duration `mapstructure:"offer_timeout"`
}

type TranscriptConfig struct {
	URL              string        `mapstructure:"url"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type SessionConfig struct {
	// ResultDelay is the fixed allowance for asynchronous evaluation before results are fetched.
	ResultDelay    time.Duration `mapstructure:"result_delay"`
	ResultAttempts uint          `mapstructure:"result_attempts"`
	ResultBackoff  time.Duration `mapstructure:"result_backoff"`
}

type AuthConfig struct {
	TokenFile string `mapstructure:"token_file"`
}

type DevServerConfig struct {
	BackendAddr   string        `mapstructure:"backend_addr"`
	MediaAddr     string        `mapstructure:"media_addr"`
	Secret        string        `mapstructure:"secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	QuestionCount int           `mapstructure:"question_count"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	EvaluateDelay time.Duration `mapstructure:"evaluate_delay"`
	LoginLimit    int           `mapstructure:"login_limit"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
	ICEServers    []string      `mapstructure:"ice_servers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_file", "")

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "10s")

	v.SetDefault("media.offer_url", "http://localhost:8080/offer")
	v.SetDefault("media.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("media.audio_source", "portaudio")
	v.SetDefault("media.video_source", "none")
	v.SetDefault("media.frame_size", "20ms")
	v.SetDefault("media.offer_timeout", "15s")

	v.SetDefault("transcript.url", "ws://localhost:8080/ws")
	v.SetDefault("transcript.read_limit", 32768)
	v.SetDefault("transcript.handshake_timeout", "5s")

	v.SetDefault("session.result_delay", "8s")
	v.SetDefault("session.result_attempts", 3)
	v.SetDefault("session.result_backoff", "2s")

	v.SetDefault("auth.token_file", defaultTokenFile())

	v.SetDefault("devserver.backend_addr", ":8000")
	v.SetDefault("devserver.media_addr", ":8080")
	v.SetDefault("devserver.secret", "dev-secret")
	v.SetDefault("devserver.token_ttl", "12h")
	v.SetDefault("devserver.question_count", 3)
	v.SetDefault("devserver.ping_period", "54s")
	v.SetDefault("devserver.evaluate_delay", "2s")
	v.SetDefault("devserver.login_limit", 5)
	v.SetDefault("devserver.login_window", "1m")
	v.SetDefault("devserver.ice_servers", []string{})
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".interviewer-token.yaml"
	}
	return filepath.Join(dir, "interviewer", "token.yaml")
}

// Load reads config/config.<CONFIG_ENV>.yaml (CONFIG_ENV defaults to dev) on top of
// defaults. INTERVIEWER_* environment variables override file values; a .env file in
// the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("ignoring unreadable .env")
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load without the .env step and with an explicit file name.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("INTERVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Session.ResultAttempts == 0 {
		cfg.Session.ResultAttempts = 1
	}
	log.Debug().Str("module", "config").Str("mode", cfg.Mode).Str("backend", cfg.Backend.BaseURL).Msg("config ready")
	return &cfg, nil
}
