package apperror

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func BadRequest(message string) *AppError {
	return New(http.StatusBadRequest, message, nil)
}

func Unprocessable(message string) *AppError {
	return New(http.StatusUnprocessableEntity, message, nil)
}

func TooManyRequests(message string) *AppError {
	return New(http.StatusTooManyRequests, message, nil)
}

func ServiceUnavailable(message string, err error) *AppError {
	return New(http.StatusServiceUnavailable, message, err)
}

func Internal(err error) *AppError {
	return New(http.StatusInternalServerError, "Internal Server Error", err)
}

// ErrModel is the single error kind raised by the contact submitter, both for
// missing model configuration and for failed sends. Match it with errors.Is.
var ErrModel = errors.New("model error")

// ModelError carries the failing step and the underlying cause.
type ModelError struct {
	Op  string
	Err error
}

func NewModelError(op string, err error) *ModelError {
	return &ModelError{Op: op, Err: err}
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return "model error: " + e.Op
	}
	return "model error: " + e.Op + ": " + e.Err.Error()
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

func (e *ModelError) Is(target error) bool {
	return target == ErrModel
}
