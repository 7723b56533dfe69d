package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"contactus-backend/internal/domain"
	"contactus-backend/pkg/apperror"
	"contactus-backend/pkg/logger"
	"contactus-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type contactUsecase struct {
	submitter domain.ContactUsSubmitter
	repo      domain.ContactSubmissionRepository
	archive   domain.AttachmentArchive
	limiter   domain.RecipientLimiter
	validate  *validator.Validate
	now       func() time.Time
}

// NewContactUsecase creates a new contact usecase. repo, archive and limiter are optional.
func NewContactUsecase(submitter domain.ContactUsSubmitter, repo domain.ContactSubmissionRepository, archive domain.AttachmentArchive, limiter domain.RecipientLimiter, validate *validator.Validate) domain.ContactUsecase {
	if validate == nil {
		validate = validation.New()
	}
	return &contactUsecase{
		submitter: submitter,
		repo:      repo,
		archive:   archive,
		limiter:   limiter,
		validate:  validate,
		now:       time.Now,
	}
}

// SendContactMessage validates the contact form and sends the contact emails
func (uc *contactUsecase) SendContactMessage(ctx context.Context, form *domain.ContactForm, user *domain.User, requestData domain.RequestData) (*domain.ContactReceipt, error) {
	if form == nil {
		return nil, apperror.BadRequest("contact form is required")
	}
	if user == nil {
		user = domain.GuestUser()
	}

	// Normalise before validating so blank fields read as missing
	form.Subject = strings.TrimSpace(form.Subject)
	form.ReporterEmail = strings.TrimSpace(form.ReporterEmail)
	form.CCEmails = normaliseAddresses(form.CCEmails)

	if err := uc.validate.Struct(form); err != nil {
		return nil, apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; "))
	}
	if strings.TrimSpace(form.Message) == "" {
		return nil, apperror.BadRequest("Message: Required")
	}

	// Only submissions that will be sent count against the CC quota
	if err := uc.checkRecipientQuota(ctx, form.CCEmails, requestData); err != nil {
		return nil, err
	}

	submissionID := uuid.NewString()

	attachments := form.Attachments
	var attachmentKeys []string
	if uc.archive != nil && len(attachments) > 0 {
		keys, err := uc.archive.Store(ctx, submissionID, attachments)
		if err != nil {
			return nil, apperror.New(http.StatusInternalServerError, "Failed to store attachments. Please try again later.", err)
		}
		attachmentKeys = keys
	}

	params := domain.NewContactUsParams(form.Subject, form.ReporterEmail, form.CCEmails, form.Message, attachments)
	if err := uc.submitter.Submit(ctx, params, user, requestData); err != nil {
		return nil, fmt.Errorf("failed to send contact email: %w", err)
	}

	receipt := &domain.ContactReceipt{
		SubmissionID: submissionID,
		ReplyTo:      ReplyEmail(params, ""),
	}

	if uc.repo != nil {
		submission := &domain.ContactSubmission{
			ID:             submissionID,
			UserID:         user.ID,
			ReporterEmail:  form.ReporterEmail,
			CCEmails:       form.CCEmails,
			Subject:        form.Subject,
			IPAddress:      requestData.IPAddress,
			UserAgent:      requestData.UserAgent,
			AttachmentKeys: attachmentKeys,
			CreatedAt:      uc.now().UTC(),
		}
		// Emails are already out; a failed audit write must not fail the request
		if err := uc.repo.Create(ctx, submission); err != nil {
			logger.Log.Error("Failed to record contact submission",
				"submission_id", submissionID,
				"request_id", requestData.RequestID,
				"error", err,
			)
		}
	}

	return receipt, nil
}

func (uc *contactUsecase) checkRecipientQuota(ctx context.Context, ccEmails []string, requestData domain.RequestData) error {
	if uc.limiter == nil || len(ccEmails) == 0 {
		return nil
	}
	ok, refused, err := uc.limiter.Allow(ctx, ccEmails)
	if err != nil {
		// Fail open; the per-IP rate limit still applies
		logger.Log.Warn("CC recipient quota unavailable",
			"request_id", requestData.RequestID,
			"error", err,
		)
		return nil
	}
	if !ok {
		return apperror.TooManyRequests(fmt.Sprintf("Too many messages have been copied to %s today. Please try again tomorrow.", refused))
	}
	return nil
}

// normaliseAddresses trims entries and drops blanks, keeping order
func normaliseAddresses(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
