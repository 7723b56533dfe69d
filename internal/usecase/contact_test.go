package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"contactus-backend/internal/domain"
	"contactus-backend/internal/usecase"
	"contactus-backend/pkg/apperror"
	"contactus-backend/pkg/security"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, params domain.ContactUsParams, user *domain.User, requestData domain.RequestData) error {
	return m.Called(ctx, params, user, requestData).Error(0)
}

type MockSubmissionRepo struct {
	mock.Mock
}

func (m *MockSubmissionRepo) Create(ctx context.Context, submission *domain.ContactSubmission) error {
	return m.Called(ctx, submission).Error(0)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Store(ctx context.Context, submissionID string, attachments []domain.Attachment) ([]string, error) {
	args := m.Called(ctx, submissionID, attachments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func validForm() *domain.ContactForm {
	return &domain.ContactForm{
		Subject:       "  Help  ",
		ReporterEmail: "me@x.org",
		CCEmails:      []string{" a@x.com ", "", "b@y.com"},
		Message:       "It broke",
	}
}

func TestSendContactMessageValidation(t *testing.T) {
	submitter := new(MockSubmitter)
	uc := usecase.NewContactUsecase(submitter, nil, nil, nil, nil)

	tests := []struct {
		name   string
		form   *domain.ContactForm
		expect string
	}{
		{"nil form", nil, "contact form is required"},
		{"blank subject", &domain.ContactForm{Subject: "   ", Message: "m"}, "Subject: Required"},
		{"blank message", &domain.ContactForm{Subject: "s", Message: "  \n "}, "Message: Required"},
		{"bad reporter", &domain.ContactForm{Subject: "s", ReporterEmail: "x", Message: "m"}, "Your email"},
		{"bad cc", &domain.ContactForm{Subject: "s", CCEmails: []string{"nope"}, Message: "m"}, "CC addresses"},
		{"header injection", &domain.ContactForm{Subject: "s\nBcc: evil@x.org", Message: "m"}, "line breaks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.SendContactMessage(context.Background(), tt.form, nil, domain.RequestData{})
			require.Error(t, err)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, http.StatusBadRequest, appErr.Code)
			assert.Contains(t, appErr.Message, tt.expect)
		})
	}
	submitter.AssertNotCalled(t, "Submit")
}

func TestSendContactMessageSuccess(t *testing.T) {
	submitter := new(MockSubmitter)
	repo := new(MockSubmissionRepo)
	uc := usecase.NewContactUsecase(submitter, repo, nil, nil, nil)
	user := &domain.User{ID: 7}
	reqData := domain.RequestData{IPAddress: "203.0.113.9", UserAgent: "UA"}

	submitter.On("Submit", mock.Anything, mock.Anything, user, reqData).Return(nil).Run(func(args mock.Arguments) {
		params := args.Get(1).(domain.ContactUsParams)
		assert.Equal(t, "Help", params.Subject())
		assert.Equal(t, "me@x.org", params.ReporterEmail())
		assert.Equal(t, []string{"a@x.com", "b@y.com"}, params.CCEmails())
		assert.Equal(t, "It broke", params.Message())
	})
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.ContactSubmission")).Return(nil).Run(func(args mock.Arguments) {
		s := args.Get(1).(*domain.ContactSubmission)
		assert.Equal(t, int64(7), s.UserID)
		assert.Equal(t, "203.0.113.9", s.IPAddress)
		assert.Equal(t, []string{"a@x.com", "b@y.com"}, s.CCEmails)
		assert.False(t, s.CreatedAt.IsZero())
	})

	receipt, err := uc.SendContactMessage(context.Background(), validForm(), user, reqData)
	require.NoError(t, err)
	assert.Equal(t, "me@x.org", receipt.ReplyTo)
	_, parseErr := uuid.Parse(receipt.SubmissionID)
	assert.NoError(t, parseErr)
	submitter.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestSendContactMessageGuestDefault(t *testing.T) {
	submitter := new(MockSubmitter)
	uc := usecase.NewContactUsecase(submitter, nil, nil, nil, nil)
	submitter.On("Submit", mock.Anything, mock.Anything, domain.GuestUser(), mock.Anything).Return(nil)

	_, err := uc.SendContactMessage(context.Background(), validForm(), nil, domain.RequestData{})
	require.NoError(t, err)
	submitter.AssertExpectations(t)
}

func TestSendContactMessageSubmitFailure(t *testing.T) {
	submitter := new(MockSubmitter)
	repo := new(MockSubmissionRepo)
	uc := usecase.NewContactUsecase(submitter, repo, nil, nil, nil)
	submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(apperror.NewModelError("send auto-reply", errors.New("refused")))

	_, err := uc.SendContactMessage(context.Background(), validForm(), nil, domain.RequestData{})
	assert.ErrorIs(t, err, apperror.ErrModel)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendContactMessageRepoFailureIsNotFatal(t *testing.T) {
	submitter := new(MockSubmitter)
	repo := new(MockSubmissionRepo)
	uc := usecase.NewContactUsecase(submitter, repo, nil, nil, nil)
	submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	receipt, err := uc.SendContactMessage(context.Background(), validForm(), nil, domain.RequestData{})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.SubmissionID)
}

func TestSendContactMessageArchivesAttachments(t *testing.T) {
	submitter := new(MockSubmitter)
	repo := new(MockSubmissionRepo)
	archive := new(MockArchive)
	uc := usecase.NewContactUsecase(submitter, repo, archive, nil, nil)

	form := validForm()
	form.Attachments = []domain.Attachment{{Filename: "log.txt", ContentType: "text/plain", Data: []byte("trace")}}

	archive.On("Store", mock.Anything, mock.AnythingOfType("string"), form.Attachments).Return([]string{"contact/id/0-log.txt"}, nil)
	submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		assert.Equal(t, []string{"contact/id/0-log.txt"}, args.Get(1).(*domain.ContactSubmission).AttachmentKeys)
	})

	_, err := uc.SendContactMessage(context.Background(), form, nil, domain.RequestData{})
	require.NoError(t, err)
	archive.AssertExpectations(t)
}

func TestSendContactMessageArchiveFailureSendsNothing(t *testing.T) {
	submitter := new(MockSubmitter)
	archive := new(MockArchive)
	uc := usecase.NewContactUsecase(submitter, nil, archive, nil, nil)

	form := validForm()
	form.Attachments = []domain.Attachment{{Filename: "log.txt", Data: []byte("trace")}}
	archive.On("Store", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("bucket missing"))

	_, err := uc.SendContactMessage(context.Background(), form, nil, domain.RequestData{})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, ccEmails []string) (bool, string, error) {
	args := m.Called(ctx, ccEmails)
	return args.Bool(0), args.String(1), args.Error(2)
}

func TestSendContactMessageRejectedFormUsesNoQuota(t *testing.T) {
	submitter := new(MockSubmitter)
	limiter := new(MockLimiter)
	uc := usecase.NewContactUsecase(submitter, nil, nil, limiter, nil)

	form := &domain.ContactForm{Subject: "   ", CCEmails: []string{"colleague@example.org"}, Message: "m"}
	_, err := uc.SendContactMessage(context.Background(), form, nil, domain.RequestData{})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
}

func TestSendContactMessageQuotaRefused(t *testing.T) {
	submitter := new(MockSubmitter)
	archive := new(MockArchive)
	limiter := new(MockLimiter)
	uc := usecase.NewContactUsecase(submitter, nil, archive, limiter, nil)

	limiter.On("Allow", mock.Anything, []string{"a@x.com", "b@y.com"}).Return(false, "b@y.com", nil)

	form := validForm()
	form.Attachments = []domain.Attachment{{Filename: "log.txt", Data: []byte("trace")}}
	_, err := uc.SendContactMessage(context.Background(), form, nil, domain.RequestData{})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)
	assert.Contains(t, appErr.Message, "b@y.com")
	archive.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	limiter.AssertExpectations(t)
}

func TestSendContactMessageQuotaErrorFailsOpen(t *testing.T) {
	submitter := new(MockSubmitter)
	limiter := new(MockLimiter)
	uc := usecase.NewContactUsecase(submitter, nil, nil, limiter, nil)

	limiter.On("Allow", mock.Anything, mock.Anything).Return(true, "", errors.New("redis down"))
	submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := uc.SendContactMessage(context.Background(), validForm(), nil, domain.RequestData{})
	require.NoError(t, err)
	submitter.AssertExpectations(t)
}

func TestSendContactMessageNoCCSkipsQuota(t *testing.T) {
	submitter := new(MockSubmitter)
	limiter := new(MockLimiter)
	uc := usecase.NewContactUsecase(submitter, nil, nil, limiter, nil)
	submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	form := validForm()
	form.CCEmails = []string{" ", ""}
	_, err := uc.SendContactMessage(context.Background(), form, nil, domain.RequestData{})
	require.NoError(t, err)
	limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
}

func TestSendContactMessageQuotaCountsOnlyAcceptedForms(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	submitter := new(MockSubmitter)
	submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	uc := usecase.NewContactUsecase(submitter, nil, nil, security.NewRecipientQuota(client, 1), nil)
	ctx := context.Background()

	bad := &domain.ContactForm{Subject: "", CCEmails: []string{"colleague@example.org"}, Message: "m"}
	_, err = uc.SendContactMessage(ctx, bad, nil, domain.RequestData{})
	require.Error(t, err)

	good := &domain.ContactForm{Subject: "Help", CCEmails: []string{"colleague@example.org"}, Message: "m"}
	_, err = uc.SendContactMessage(ctx, good, nil, domain.RequestData{})
	require.NoError(t, err)

	again := &domain.ContactForm{Subject: "Help", CCEmails: []string{"colleague@example.org"}, Message: "m"}
	_, err = uc.SendContactMessage(ctx, again, nil, domain.RequestData{})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)
	submitter.AssertNumberOfCalls(t, "Submit", 1)
}
