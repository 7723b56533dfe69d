package domain

import (
	"context"
	"time"
)

// Attachment is a file carried unchanged on every email of a submission.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
	// StorageKey is set once the attachment has been archived
	StorageKey string
}

// ContactUsParams holds the submitted form fields. Fields are set once by
// NewContactUsParams and are only readable afterwards. The CC and attachment
// slices are not copied: CCEmails and Attachments return the caller's backing
// arrays, so callers must not modify them after construction.
type ContactUsParams struct {
	subject       string
	reporterEmail string
	ccEmails      []string
	message       string
	attachments   []Attachment
}

// NewContactUsParams stores its arguments as given; validation happens upstream.
func NewContactUsParams(subject, reporterEmail string, ccEmails []string, message string, attachments []Attachment) ContactUsParams {
	return ContactUsParams{
		subject:       subject,
		reporterEmail: reporterEmail,
		ccEmails:      ccEmails,
		message:       message,
		attachments:   attachments,
	}
}

func (p ContactUsParams) Subject() string { return p.subject }

// ReporterEmail may be empty, meaning the support address is used for replies.
func (p ContactUsParams) ReporterEmail() string { return p.reporterEmail }

func (p ContactUsParams) CCEmails() []string { return p.ccEmails }

func (p ContactUsParams) Message() string { return p.message }

func (p ContactUsParams) Attachments() []Attachment { return p.attachments }

// RequestData describes the HTTP request and the serving host.
type RequestData struct {
	UserAgent      string
	Referrer       string
	IPAddress      string
	AppHostName    string
	AppHostAddress string
	RequestID      string
}

// Model property keys naming the ticket tracker mailboxes
const (
	PropRedmineToEmail   = "REDMINE_TO_EMAIL"
	PropRedmineFromEmail = "REDMINE_FROM_EMAIL"
)

// ModelConfig is the read-only site configuration used to address contact emails.
type ModelConfig struct {
	SMTPServer   string
	SupportEmail string
	DisplayName  string
	BuildNumber  string
	Properties   map[string]string
}

// EmailSender delivers a single email. An empty cc means no CC header.
type EmailSender interface {
	SendEmail(ctx context.Context, smtpServer, to, from, subject, body, cc string, attachments []Attachment) error
}

// ContactUsSubmitter formats and dispatches the auto-reply, support copy and ticket emails.
type ContactUsSubmitter interface {
	Submit(ctx context.Context, params ContactUsParams, user *User, requestData RequestData) error
}

// ContactForm is the raw form as bound from the HTTP request.
type ContactForm struct {
	Subject       string       `json:"subject" validate:"required,max=200,no_header_injection"`
	ReporterEmail string       `json:"reporterEmail" validate:"omitempty,email,no_header_injection"`
	CCEmails      []string     `json:"ccEmails" validate:"max=10,dive,email,no_header_injection"`
	Message       string       `json:"message" validate:"required,max=10000"`
	Attachments   []Attachment `json:"-" validate:"max=5"`
}

// ContactReceipt is returned to the reporter after a successful submission.
type ContactReceipt struct {
	SubmissionID string `json:"submission_id"`
	ReplyTo      string `json:"reply_to,omitempty"`
}

// ContactSubmission is the audit record of a dispatched submission.
type ContactSubmission struct {
	ID             string
	UserID         int64
	ReporterEmail  string
	CCEmails       []string
	Subject        string
	IPAddress      string
	UserAgent      string
	AttachmentKeys []string
	CreatedAt      time.Time
}

// ContactSubmissionRepository persists submission audit records.
type ContactSubmissionRepository interface {
	Create(ctx context.Context, submission *ContactSubmission) error
}

// AttachmentArchive keeps a copy of submitted files and returns their storage keys.
type AttachmentArchive interface {
	Store(ctx context.Context, submissionID string, attachments []Attachment) ([]string, error)
}

// RecipientLimiter caps how often one address may be copied. Allow records the
// submission against every address, or none when one is refused.
type RecipientLimiter interface {
	Allow(ctx context.Context, ccEmails []string) (ok bool, refused string, err error)
}

// ContactUsecase defines the interface for contact form operations
type ContactUsecase interface {
	// SendContactMessage validates the form and sends the three contact emails
	SendContactMessage(ctx context.Context, form *ContactForm, user *User, requestData RequestData) (*ContactReceipt, error)
}
