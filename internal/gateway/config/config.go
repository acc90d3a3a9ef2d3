package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	Env     string
	LogFile string
	LLM     LLMConfig
	// AllowedOrigins limits CORS. Empty reflects any origin.
	AllowedOrigins []string
}

type LLMConfig struct {
	// Timeout bounds each provider call on every path.
	Timeout time.Duration
	// EnvPrefixes are scanned for <PREFIX>_RPS and <PREFIX>_BURST.
	EnvPrefixes []string
}

func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs reads .env, then args, then the environment. Environment values
// win over flags.
func LoadArgs(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	port := fs.String("port", ":8081", "server port")
	logFile := fs.String("log-file", "", "also write logs to this rotating file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:           *port,
		Env:            env,
		LogFile:        firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_FILE")), *logFile),
		LLM:            loadLLMConfig(),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}, nil
}

func loadLLMConfig() LLMConfig {
	cfg := LLMConfig{EnvPrefixes: []string{"LLM"}}
	if raw := strings.TrimSpace(os.Getenv("LLM_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
