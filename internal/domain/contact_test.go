package domain_test

import (
	"testing"

	"contactus-backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestNewContactUsParams(t *testing.T) {
	subject := "My brain hurts!"
	reporterEmail := "johndoe@aol.com"
	ccEmails := []string{"janedoe@hotmail.com", "jimmydoe@gmail.com"}
	message := "If you could make my brain stop hurting, that'd be greeeeat."
	attachments := []domain.Attachment{{Filename: "a.txt", ContentType: "text/plain", Data: []byte("hi")}}

	params := domain.NewContactUsParams(subject, reporterEmail, ccEmails, message, attachments)

	assert.Equal(t, subject, params.Subject())
	assert.Equal(t, reporterEmail, params.ReporterEmail())
	assert.Equal(t, message, params.Message())
	assert.Equal(t, ccEmails, params.CCEmails())
	assert.Equal(t, attachments, params.Attachments())

	// Slices are stored as given, not copied
	assert.Same(t, &ccEmails[0], &params.CCEmails()[0])
	assert.Same(t, &attachments[0], &params.Attachments()[0])
}

func TestContactUsParamsSharesCallerSlices(t *testing.T) {
	ccEmails := []string{"janedoe@hotmail.com"}
	params := domain.NewContactUsParams("Help", "", ccEmails, "It broke", nil)

	ccEmails[0] = "changed@hotmail.com"
	assert.Equal(t, "changed@hotmail.com", params.CCEmails()[0])
}

func TestModelPropertyKeys(t *testing.T) {
	assert.Equal(t, "REDMINE_TO_EMAIL", domain.PropRedmineToEmail)
	assert.Equal(t, "REDMINE_FROM_EMAIL", domain.PropRedmineFromEmail)
}

func TestNewContactUsParamsEmpty(t *testing.T) {
	params := domain.NewContactUsParams("Help", "", nil, "It broke", nil)

	assert.Equal(t, "", params.ReporterEmail())
	assert.Empty(t, params.CCEmails())
	assert.Empty(t, params.Attachments())
}

func TestGuestUser(t *testing.T) {
	assert.True(t, domain.GuestUser().IsGuest())
	assert.True(t, (*domain.User)(nil).IsGuest())
	assert.False(t, (&domain.User{ID: 42}).IsGuest())
}
