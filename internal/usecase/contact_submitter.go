package usecase

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"

	"contactus-backend/internal/domain"
	"contactus-backend/pkg/apperror"
	"contactus-backend/pkg/logger"
)

const messageSeparator = "---------------------"

const autoReplyPreamble = "****THIS IS NOT A REPLY**** \nThis is an automatic" +
	" response, that includes your message for your records, to let you" +
	" know that we have received your email and will get back to you as" +
	" soon as possible. Thanks so much for contacting us!\n\nThis was" +
	" your message:\n\n"

type contactUsSubmitter struct {
	cfg    domain.ModelConfig
	sender domain.EmailSender
}

// NewContactUsSubmitter binds the site configuration and mail transport.
func NewContactUsSubmitter(cfg domain.ModelConfig, sender domain.EmailSender) domain.ContactUsSubmitter {
	return &contactUsSubmitter{
		cfg:    cfg,
		sender: sender,
	}
}

// Submit sends the auto-reply, the support copy and the ticket email, in that order.
// The first failure aborts the remaining sends.
func (s *contactUsSubmitter) Submit(ctx context.Context, params domain.ContactUsParams, user *domain.User, requestData domain.RequestData) error {
	if err := s.checkConfig(); err != nil {
		return err
	}
	if user == nil {
		return apperror.NewModelError("submit contact", errors.New("user is required"))
	}

	supportEmail := s.cfg.SupportEmail
	replyEmail := ReplyEmail(params, supportEmail)
	ccField := CCField(params.CCEmails())
	metaInfo := MetaInfo(replyEmail, ccField, user.ID, requestData, s.cfg.BuildNumber)
	message := params.Message()
	attachments := params.Attachments()

	// Auto-reply
	if err := s.sender.SendEmail(ctx, s.cfg.SMTPServer,
		replyEmail,
		supportEmail,
		params.Subject(),
		html.EscapeString(metaInfo+"\n\n"+RedmineContent(message)+"\n\n"),
		ccField,
		attachments,
	); err != nil {
		return apperror.NewModelError("send auto-reply", err)
	}

	// Support copy
	if err := s.sender.SendEmail(ctx, s.cfg.SMTPServer,
		supportEmail,
		replyEmail,
		params.Subject(),
		html.EscapeString(metaInfo+"\n\n"+message+"\n\n"),
		"",
		attachments,
	); err != nil {
		return apperror.NewModelError("send support email", err)
	}

	// Ticket tracker email
	if err := s.sender.SendEmail(ctx, s.cfg.SMTPServer,
		s.cfg.Properties[domain.PropRedmineToEmail],
		s.cfg.Properties[domain.PropRedmineFromEmail],
		params.Subject(),
		html.EscapeString(RedmineMetaInfo(s.cfg.DisplayName, metaInfo, requestData)+"\n\n"+message+"\n\n"),
		"",
		attachments,
	); err != nil {
		return apperror.NewModelError("send redmine email", err)
	}

	logger.Log.Info("Contact emails sent",
		"request_id", requestData.RequestID,
		"uid", user.ID,
		"attachments", len(attachments),
	)
	return nil
}

func (s *contactUsSubmitter) checkConfig() error {
	var missing []string
	if s.cfg.SMTPServer == "" {
		missing = append(missing, "smtp server")
	}
	if s.cfg.SupportEmail == "" {
		missing = append(missing, "support email")
	}
	if s.cfg.Properties[domain.PropRedmineToEmail] == "" {
		missing = append(missing, domain.PropRedmineToEmail)
	}
	if s.cfg.Properties[domain.PropRedmineFromEmail] == "" {
		missing = append(missing, domain.PropRedmineFromEmail)
	}
	if s.sender == nil {
		missing = append(missing, "email sender")
	}
	if len(missing) > 0 {
		return apperror.NewModelError("check configuration", errors.New("missing "+strings.Join(missing, ", ")))
	}
	return nil
}

// ReplyEmail is the reporter's address, or the support address when none was given.
func ReplyEmail(params domain.ContactUsParams, supportEmail string) string {
	if params.ReporterEmail() == "" {
		return supportEmail
	}
	return params.ReporterEmail()
}

func CCField(ccEmails []string) string {
	return strings.Join(ccEmails, ", ")
}

// MetaInfo renders the header block shared by all three emails. The ticket
// tracker parses these lines, so labels and order are fixed.
func MetaInfo(replyEmail, ccField string, uid int64, requestData domain.RequestData, version string) string {
	return "ReplyTo: " + replyEmail + "\n" +
		"CC: " + ccField + "\n" +
		"Privacy preferences: " + "\n" +
		"Uid: " + strconv.FormatInt(uid, 10) + "\n" +
		"Browser information: " + requestData.UserAgent + "\n" +
		"Referrer page: " + requestData.Referrer + "\n" +
		"WDK Model version: " + version
}

// RedmineContent wraps the message in the auto-reply acknowledgement.
func RedmineContent(message string) string {
	return autoReplyPreamble + messageSeparator + "\n" + message + "\n" + messageSeparator
}

// RedmineMetaInfo prefixes MetaInfo with the ticket routing lines and appends the host details.
func RedmineMetaInfo(displayName, metaInfo string, requestData domain.RequestData) string {
	return "Project: usersupportrequests\n" +
		"Category: " + displayName + "\n" + "\n" +
		metaInfo + "\n" +
		"Client IP Address: " + requestData.IPAddress + "\n" +
		"WDK Host: " + requestData.AppHostName + " (" + requestData.AppHostAddress + ")\n"
}
