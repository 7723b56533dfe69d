package email

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"contactus-backend/config"
	"contactus-backend/internal/domain"
	"contactus-backend/pkg/logger"

	"github.com/wneessen/go-mail"
)

// SMTPSender delivers mail through the SMTP server named on each call,
// dialing a fresh connection per message
type SMTPSender struct {
	defaultPort int
	username    string
	password    string
	tlsPolicy   mail.TLSPolicy
	ssl         bool
	timeout     time.Duration
}

var _ domain.EmailSender = (*SMTPSender)(nil)

// NewSMTPSender creates a new SMTP sender from the application configuration
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		defaultPort: cfg.SMTPPort,
		username:    cfg.SMTPUsername,
		password:    cfg.SMTPPassword,
		tlsPolicy:   parseTLSPolicy(cfg.SMTPTLSPolicy),
		ssl:         cfg.SMTPSSL,
		timeout:     15 * time.Second,
	}
}

// SendEmail implements domain.EmailSender
func (s *SMTPSender) SendEmail(ctx context.Context, smtpServer, to, from, subject, body, cc string, attachments []domain.Attachment) error {
	msg, err := NewMessage(to, from, subject, body, cc, attachments)
	if err != nil {
		return err
	}

	host, port, err := splitServer(smtpServer, s.defaultPort)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPortPolicy(s.tlsPolicy),
		mail.WithTimeout(s.timeout),
	}
	if s.ssl {
		opts = append(opts, mail.WithSSL())
	}
	if s.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Log.Debug("Email sent", "server", host, "port", port, "attachments", len(attachments))
	return nil
}

// splitServer accepts "host" or "host:port"
func splitServer(server string, defaultPort int) (string, int, error) {
	if server == "" {
		return "", 0, fmt.Errorf("smtp server is empty")
	}
	host, portStr, err := net.SplitHostPort(server)
	if err != nil {
		// No port present
		if defaultPort <= 0 {
			defaultPort = 25
		}
		return server, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid smtp port in %q: %w", server, err)
	}
	return host, port, nil
}

func parseTLSPolicy(policy string) mail.TLSPolicy {
	switch policy {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}
