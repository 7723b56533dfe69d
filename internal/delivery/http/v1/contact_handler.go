package v1

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"contactus-backend/internal/delivery/http/middleware"
	"contactus-backend/internal/delivery/http/response"
	"contactus-backend/internal/domain"
	"contactus-backend/pkg/apperror"
	"contactus-backend/pkg/security"
	"contactus-backend/pkg/security/antivirus"

	"github.com/gin-gonic/gin"
)

const (
	MaxAttachments    = 5
	MaxAttachmentSize = 10 << 20
	// Multipart overhead on top of the attachments themselves
	maxFormOverhead = 1 << 20
	// JSON carries no attachments; the message itself is capped at 10000 characters
	maxJSONBody = 64 << 10
)

// ContactRequest is the JSON variant of the contact form (no attachments)
type ContactRequest struct {
	Subject       string   `json:"subject" example:"Cannot download gene list"`
	ReporterEmail string   `json:"reporterEmail" example:"me@example.org"`
	CCEmails      []string `json:"ccEmails" example:"colleague@example.org"`
	Message       string   `json:"message" example:"The download button returns an empty file."`
}

// ContactHandlerDeps groups what the contact endpoint needs. Scanner and
// SecurityLogger are optional.
type ContactHandlerDeps struct {
	ContactUC      domain.ContactUsecase
	Scanner        antivirus.Scanner
	SecurityLogger *security.SecurityLogger
	AppHostName    string
	AppHostAddress string
}

type ContactHandler struct {
	contactUC      domain.ContactUsecase
	scanner        antivirus.Scanner
	secLog         *security.SecurityLogger
	appHostName    string
	appHostAddress string
}

// NewContactHandler registers the contact routes (public, no auth required)
func NewContactHandler(public *gin.RouterGroup, deps ContactHandlerDeps, mw ...gin.HandlerFunc) *ContactHandler {
	handler := &ContactHandler{
		contactUC:      deps.ContactUC,
		scanner:        deps.Scanner,
		secLog:         deps.SecurityLogger,
		appHostName:    deps.AppHostName,
		appHostAddress: deps.AppHostAddress,
	}
	if handler.scanner == nil {
		handler.scanner = antivirus.NewNoOpScanner()
	}
	if handler.secLog == nil {
		handler.secLog = security.DefaultLogger()
	}

	public.POST("/contact", append(mw, handler.SubmitContact)...)
	return handler
}

// SubmitContact godoc
// @Summary      Submit Contact Form
// @Description  Send a message to the support team. The reporter receives an automatic acknowledgement and a ticket is opened. Accepts multipart/form-data (with up to 5 attachments of 10 MiB each) or JSON.
// @Tags         contact
// @Accept       mpfd
// @Accept       json
// @Produce      json
// @Param        subject        formData  string  true   "Subject"
// @Param        reporterEmail  formData  string  false  "Reply address"
// @Param        ccEmails       formData  []string false "Addresses to copy on the acknowledgement" collectionFormat(multi)
// @Param        message        formData  string  true   "Message"
// @Param        attachment     formData  file    false  "Attachment (repeatable)"
// @Success      200  {object}  response.Response{data=domain.ContactReceipt}
// @Failure      400  {object}  response.Response
// @Failure      413  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Failure      429  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /contact [post]
func (h *ContactHandler) SubmitContact(c *gin.Context) {
	requestData := h.requestData(c)

	form, err := h.bindForm(c)
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.checkAttachments(c, form.Attachments, requestData); err != nil {
		c.Error(err)
		return
	}

	receipt, err := h.contactUC.SendContactMessage(c.Request.Context(), form, middleware.CurrentUser(c), requestData)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case http.StatusBadRequest:
				h.secLog.LogValidationFailed(c.Request.Context(), form.ReporterEmail, appErr.Message, requestData.IPAddress, requestData.RequestID)
			case http.StatusTooManyRequests:
				h.secLog.LogRateLimitTriggered(c.Request.Context(), requestData.IPAddress, requestData.UserAgent, requestData.RequestID, "cc-quota")
			}
		}
		c.Error(err)
		return
	}

	response.Success(c, http.StatusOK, "Your message has been sent successfully!", receipt)
}

func (h *ContactHandler) requestData(c *gin.Context) domain.RequestData {
	return domain.RequestData{
		UserAgent:      c.Request.UserAgent(),
		Referrer:       c.Request.Referer(),
		IPAddress:      c.ClientIP(),
		AppHostName:    h.appHostName,
		AppHostAddress: h.appHostAddress,
		RequestID:      c.GetString(middleware.RequestIDKey),
	}
}

func (h *ContactHandler) bindForm(c *gin.Context) (*domain.ContactForm, error) {
	contentType := c.ContentType()

	limit := int64(MaxAttachments*MaxAttachmentSize + maxFormOverhead)
	if contentType == gin.MIMEJSON {
		limit = maxJSONBody
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	if contentType == gin.MIMEJSON {
		var req ContactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, bodyError(err, "Invalid request body")
		}
		return &domain.ContactForm{
			Subject:       req.Subject,
			ReporterEmail: req.ReporterEmail,
			CCEmails:      splitAddresses(req.CCEmails),
			Message:       req.Message,
		}, nil
	}

	if contentType == gin.MIMEMultipartPOSTForm {
		if _, err := c.MultipartForm(); err != nil {
			return nil, bodyError(err, "Invalid form data")
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return nil, bodyError(err, "Invalid form data")
	}

	form := &domain.ContactForm{
		Subject:       c.PostForm("subject"),
		ReporterEmail: c.PostForm("reporterEmail"),
		CCEmails:      splitAddresses(c.PostFormArray("ccEmails")),
		Message:       c.PostForm("message"),
	}

	if c.Request.MultipartForm != nil {
		files := c.Request.MultipartForm.File["attachment"]
		if len(files) > MaxAttachments {
			return nil, apperror.BadRequest(fmt.Sprintf("Attachments: At most %d files", MaxAttachments))
		}
		for _, fh := range files {
			// Extension first, so disallowed files are never opened
			if err := security.ValidateFileExtension(fh.Filename); err != nil {
				name := filepath.Base(fh.Filename)
				h.secLog.LogAttachmentRejected(c.Request.Context(), name, err.Error(), c.ClientIP(), c.GetString(middleware.RequestIDKey))
				return nil, apperror.BadRequest(fmt.Sprintf("Attachment %q rejected: %s", name, err))
			}
			att, err := readAttachment(fh)
			if err != nil {
				return nil, err
			}
			form.Attachments = append(form.Attachments, att)
		}
	}
	return form, nil
}

// checkAttachments validates file types and scans for malware
func (h *ContactHandler) checkAttachments(c *gin.Context, attachments []domain.Attachment, requestData domain.RequestData) error {
	ctx := c.Request.Context()
	for _, att := range attachments {
		result := security.ValidateFile(att.Filename, att.Data, security.DetectMIME(att.Data))
		if !result.Valid {
			h.secLog.LogAttachmentRejected(ctx, att.Filename, result.Error, requestData.IPAddress, requestData.RequestID)
			return apperror.BadRequest(fmt.Sprintf("Attachment %q rejected: %s", att.Filename, result.Error))
		}

		scan := h.scanner.Scan(ctx, att.Filename, att.Data)
		if scan.Error != nil {
			h.secLog.Log(ctx, security.SecurityEvent{
				Event:     security.EventScannerUnavailable,
				IP:        requestData.IPAddress,
				RequestID: requestData.RequestID,
				Details:   map[string]interface{}{"scanner": scan.ScannerName, "error": scan.Error.Error()},
			})
			return apperror.ServiceUnavailable("Attachments cannot be checked right now. Please try again later.", scan.Error)
		}
		if scan.Infected {
			h.secLog.LogMalwareDetected(ctx, att.Filename, scan.ThreatName, scan.ScannerName, requestData.IPAddress, requestData.RequestID)
			return apperror.Unprocessable(fmt.Sprintf("Attachment %q was rejected by the virus scanner", att.Filename))
		}
	}
	return nil
}

func readAttachment(fh *multipart.FileHeader) (domain.Attachment, error) {
	name := filepath.Base(fh.Filename)
	if fh.Size > MaxAttachmentSize {
		return domain.Attachment{}, apperror.New(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Attachment %q exceeds %d MiB", name, MaxAttachmentSize>>20), nil)
	}

	f, err := fh.Open()
	if err != nil {
		return domain.Attachment{}, apperror.BadRequest("Could not read attachment " + name)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxAttachmentSize+1))
	if err != nil {
		return domain.Attachment{}, apperror.BadRequest("Could not read attachment " + name)
	}
	if len(data) > MaxAttachmentSize {
		return domain.Attachment{}, apperror.New(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Attachment %q exceeds %d MiB", name, MaxAttachmentSize>>20), nil)
	}

	return domain.Attachment{
		Filename:    name,
		ContentType: attachmentContentType(name, data),
		Data:        data,
	}, nil
}

// attachmentContentType prefers the sniffed type and falls back to the
// extension for container formats that sniff as zip or octet-stream
func attachmentContentType(filename string, data []byte) string {
	detected := security.DetectMIME(data)
	if detected != "application/zip" && detected != "application/octet-stream" {
		return detected
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := officeTypes[ext]; ok {
		return t
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return detected
}

var officeTypes = map[string]string{
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// splitAddresses accepts repeated fields as well as comma or semicolon lists
func splitAddresses(values []string) []string {
	var out []string
	for _, v := range values {
		for _, addr := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' }) {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

func bodyError(err error, message string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.New(http.StatusRequestEntityTooLarge, "Request body too large", err)
	}
	return apperror.BadRequest(message)
}
