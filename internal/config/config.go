package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"chatsync/internal/utils"
)

type Config struct {
	ServerURL   string
	APIURL      string
	AccessToken string

	Username string
	Role     string
	Level    int

	BridgePort   int
	BridgeSecret string
	DatabaseURL  string

	DedupWindow       time.Duration
	SendTimeout       time.Duration
	RequestTimeout    time.Duration
	ReconnectInterval time.Duration
	AutoScroll        bool
	LogLevel          slog.Level
}

// Load reads the configuration from the environment (and .env, if present).
func Load() Config {
	utils.LoadEnv()

	serverURL := utils.GetEnv("SERVER_URL", "")
	return Config{
		ServerURL:   serverURL,
		APIURL:      utils.GetEnv("API_URL", apiFromServer(serverURL)),
		AccessToken: utils.GetEnv("ACCESS_TOKEN", ""),

		Username: utils.GetEnv("CHAT_USERNAME", ""),
		Role:     utils.GetEnv("CHAT_ROLE", ""),
		Level:    utils.GetEnvInt("CHAT_LEVEL", 0),

		BridgePort:   utils.GetEnvInt("BRIDGE_PORT", 3001),
		BridgeSecret: utils.GetEnv("BRIDGE_SECRET", ""),
		DatabaseURL:  utils.GetEnv("DATABASE_URL", ""),

		DedupWindow:       utils.GetEnvDuration("DEDUP_WINDOW", 2*time.Second),
		SendTimeout:       utils.GetEnvDuration("SEND_TIMEOUT", 0),
		RequestTimeout:    utils.GetEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		ReconnectInterval: utils.GetEnvDuration("RECONNECT_INTERVAL", 2*time.Second),
		AutoScroll:        utils.GetEnvBool("AUTO_SCROLL", true),
		LogLevel:          parseLevel(utils.GetEnv("LOG_LEVEL", "info")),
	}
}

// apiFromServer derives the REST base from a ws(s):// push URL.
func apiFromServer(server string) string {
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String()
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c Config) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("SERVER_URL is required"))
	} else if u, err := url.Parse(c.ServerURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("SERVER_URL must be a ws:// or wss:// url, got %q", c.ServerURL))
	}
	if c.APIURL == "" {
		errs = append(errs, errors.New("API_URL is required"))
	}
	if c.Username == "" && c.AccessToken == "" {
		errs = append(errs, errors.New("either ACCESS_TOKEN or CHAT_USERNAME is required"))
	}
	if c.BridgePort <= 0 || c.BridgePort > 65535 {
		errs = append(errs, fmt.Errorf("BRIDGE_PORT out of range: %d", c.BridgePort))
	}
	if c.DedupWindow <= 0 {
		errs = append(errs, errors.New("DEDUP_WINDOW must be positive"))
	}
	if c.SendTimeout < 0 {
		errs = append(errs, errors.New("SEND_TIMEOUT must not be negative"))
	}
	return errors.Join(errs...)
}
