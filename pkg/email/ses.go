package email

import (
	"bytes"
	"context"
	"fmt"

	"contactus-backend/config"
	"contactus-backend/internal/domain"
	"contactus-backend/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESAPI is the part of the SES v2 client the sender uses
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends the same MIME message SMTPSender would, as SES raw content.
// The smtpServer argument is ignored.
type SESSender struct {
	client SESAPI
}

var _ domain.EmailSender = (*SESSender)(nil)

// NewSESSender creates an SES sender. Static credentials are used when configured,
// otherwise the default AWS credential chain.
func NewSESSender(ctx context.Context, cfg *config.Config) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESSenderWithClient(sesv2.NewFromConfig(awsCfg)), nil
}

func NewSESSenderWithClient(client SESAPI) *SESSender {
	return &SESSender{client: client}
}

// SendEmail implements domain.EmailSender
func (s *SESSender) SendEmail(ctx context.Context, _ string, to, from, subject, body, cc string, attachments []domain.Attachment) error {
	msg, err := NewMessage(to, from, subject, body, cc, attachments)
	if err != nil {
		return err
	}

	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		return fmt.Errorf("failed to render message: %w", err)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
			CcAddresses: SplitAddressList(cc),
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw.Bytes()},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	logger.Log.Debug("Email sent via SES", "message_id", messageID, "attachments", len(attachments))
	return nil
}
