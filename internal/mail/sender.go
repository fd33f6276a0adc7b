// Package mail sends transactional email through a configured provider.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Providers understood by New.
const (
	ProviderLog      = "log"
	ProviderSendGrid = "sendgrid"
	ProviderSES      = "ses"
)

var (
	// ErrInvalidMessage indicates a message that cannot be handed to a provider.
	ErrInvalidMessage = errors.New("mail: invalid message")
	// ErrProviderRejected indicates the provider refused the message.
	ErrProviderRejected = errors.New("mail: provider rejected message")
)

// Message is a single outbound email.
type Message struct {
	To      string `validate:"required,email"`
	ToName  string
	Subject string `validate:"required"`
	HTML    string
	Text    string
}

// Sender delivers one message per call.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures a provider.
type Config struct {
	Provider       string
	From           string
	FromName       string
	SendGridAPIKey string
	AWSRegion      string
}

var validate = validator.New()

// Validate checks the message before it leaves the process.
func (m Message) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if strings.TrimSpace(m.HTML) == "" && strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// New builds the Sender named by cfg.Provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderLog:
		return NewLogSender(logger), nil
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, errors.New("mail: sendgrid api key required")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.FromName, cfg.From), nil
	case ProviderSES:
		return NewSESSender(ctx, cfg.AWSRegion, cfg.FromName, cfg.From)
	default:
		return nil, fmt.Errorf("mail: unsupported provider %q", cfg.Provider)
	}
}
