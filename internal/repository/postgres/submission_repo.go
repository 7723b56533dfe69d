package postgres

import (
	"context"
	"fmt"

	"contactus-backend/internal/domain"
	"contactus-backend/pkg/database"

	"github.com/lib/pq"
)

type submissionRepo struct {
	db database.Execer
}

func NewContactSubmissionRepository(db database.Execer) domain.ContactSubmissionRepository {
	return &submissionRepo{db: db}
}

// Create inserts the audit record of a dispatched submission
func (r *submissionRepo) Create(ctx context.Context, s *domain.ContactSubmission) error {
	query := `
		INSERT INTO contact_submissions (
			id, user_id, reporter_email, cc_emails, subject,
			ip_address, user_agent, attachment_keys, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.UserID, s.ReporterEmail, pq.Array(nonNil(s.CCEmails)), s.Subject,
		s.IPAddress, s.UserAgent, pq.Array(nonNil(s.AttachmentKeys)), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contact submission: %w", err)
	}
	return nil
}

// TEXT[] columns are NOT NULL
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
