// Package mail sends plain text notifications through Gmail or the log.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	DriverGmail = "gmail"
	DriverLog   = "log"
)

// Config selects and configures the sender.
type Config struct {
	Driver          string        `envconfig:"MAIL_DRIVER" default:"log"`
	From            string        `envconfig:"MAIL_FROM"`
	SendTimeout     time.Duration `envconfig:"MAIL_SEND_TIMEOUT" default:"10s"`
	CredentialsFile string        `envconfig:"GMAIL_CREDENTIALS_FILE"`
	TokenFile       string        `envconfig:"GMAIL_TOKEN_FILE"`
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("mail config: %w", err)
	}
	return cfg, nil
}

// Message is a plain text email.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

var ErrNoRecipients = errors.New("message has no recipients")

// Sender delivers a message. Implementations honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// New builds the sender named by cfg.Driver.
func New(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverGmail:
		return NewGmailSender(ctx, cfg.CredentialsFile, cfg.TokenFile)
	case DriverLog, "":
		return NewLogSender(logger), nil
	}
	return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
}

// Bytes renders m as an RFC 5322 message with a UTF-8 text body.
func (m Message) Bytes() ([]byte, error) {
	if len(m.To) == 0 {
		return nil, ErrNoRecipients
	}
	for _, addr := range append(append([]string{}, m.To...), m.ReplyTo, m.From) {
		if addr == "" {
			continue
		}
		if _, err := netmail.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}
	}

	var b bytes.Buffer
	header := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	header("From", m.From)
	header("To", strings.Join(m.To, ", "))
	header("Reply-To", m.ReplyTo)
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes(), nil
}

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	logger *zap.SugaredLogger
}

func NewLogSender(logger *zap.SugaredLogger) *LogSender {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.Bytes(); err != nil {
		return err
	}
	s.logger.Infow("mail", "to", m.To, "reply_to", m.ReplyTo, "subject", m.Subject, "body", m.Body)
	return nil
}
