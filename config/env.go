package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env carries credentials and endpoints that never belong in the config
// file. Variables are prefixed EXECUTOR_, e.g. EXECUTOR_BRIDGE_URL.
type Env struct {
	BridgeURL string `envconfig:"BRIDGE_URL" default:"ws://127.0.0.1:8765/bridge"`

	Login    int64  `envconfig:"LOGIN"`
	Password string `envconfig:"PASSWORD"`
	Server   string `envconfig:"SERVER"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	EmailFrom    string `envconfig:"EMAIL_FROM"`
	EmailTo      string `envconfig:"EMAIL_TO"`
}

// MailConfigured reports whether the strong-reminder mail channel is usable.
func (e Env) MailConfigured() bool {
	return e.SMTPHost != "" && e.EmailFrom != "" && e.EmailTo != ""
}

func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("executor", &e); err != nil {
		return Env{}, fmt.Errorf("process environment: %w", err)
	}
	return e, nil
}
