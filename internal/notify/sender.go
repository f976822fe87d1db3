package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Message is a single outgoing email. Either Text or HTML may be empty.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

func (m Message) Validate() error {
	if m.To == "" {
		return errors.New("recipient is required")
	}
	if m.Subject == "" {
		return errors.New("subject is required")
	}
	if m.Text == "" && m.HTML == "" {
		return errors.New("message body is required")
	}
	return nil
}

// Sender delivers a message or returns why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of a mail relay. It is used
// when no SMTP host is configured.
type LogSender struct {
	logger *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Mail relay disabled, message logged")
	return nil
}
