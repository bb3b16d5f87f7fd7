package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/workmatch/api/internal/config"
)

// NewSender picks the delivery provider named by cfg.Provider. Anything
// other than smtp or plunk logs instead of delivering.
func NewSender(cfg config.NotifyConfig, logger *slog.Logger) Sender {
	switch cfg.Provider {
	case config.ProviderSMTP:
		return &SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			ReplyTo:  cfg.ReplyTo,
		}
	case config.ProviderPlunk:
		return &PlunkSender{
			APIKey:  cfg.Plunk.APIKey,
			From:    cfg.Plunk.From,
			APIURL:  cfg.Plunk.APIURL,
			ReplyTo: cfg.ReplyTo,
			Client:  &http.Client{Timeout: 15 * time.Second},
		}
	default:
		return LogSender{Log: logger}
	}
}

// SMTPSender delivers mail over implicit TLS with PLAIN auth.
type SMTPSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	ReplyTo  string
}

func (s *SMTPSender) Send(ctx context.Context, env Envelope) error {
	addr := net.JoinHostPort(s.Host, s.Port)
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if err := c.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(s.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(env.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write(s.message(env)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}

// message renders the RFC 5322 headers and body. HTML bodies are sent
// as text/html.
func (s *SMTPSender) message(env Envelope) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", env.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", env.Subject)
	if s.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", s.ReplyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	contentType := "text/plain"
	lb := strings.ToLower(env.Body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") || strings.Contains(lb, "<!doctype html") {
		contentType = "text/html"
	}
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("\r\n" + env.Body + "\r\n")
	return []byte(b.String())
}
