// Package email delivers rendered digests over SMTP. Without SMTP
// credentials it degrades to a log-only mock so local environments can
// run the full pipeline.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/ai-daily/newsdigest/internal/model"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type Sender struct {
	dialer *gomail.Dialer
	from   string
	log    *slog.Logger
}

func NewSender(cfg SMTPConfig, log *slog.Logger) *Sender {
	s := &Sender{from: cfg.From, log: log}

	if cfg.Host != "" && cfg.Port != 0 && cfg.User != "" && cfg.Password != "" {
		s.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	} else {
		log.Info("smtp not configured, digest emails will only be logged")
	}

	return s
}

// SendDigest renders and delivers one digest. The context deadline
// bounds the SMTP conversation.
func (s *Sender) SendDigest(ctx context.Context, to string, digest *model.Digest, userName, baseURL string) error {
	html, err := renderDigestHTML(digest, userName, baseURL)
	if err != nil {
		return fmt.Errorf("render digest email: %w", err)
	}

	if s.dialer == nil {
		s.log.Info("mock digest email", "to", to, "items", len(digest.Items))
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("AI Daily Digest · %s", digest.GeneratedAt.Format("Jan 2, 2006")))
	msg.SetBody("text/html", html)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.dialer.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send digest email: %w", err)
		}
		return nil
	}
}
