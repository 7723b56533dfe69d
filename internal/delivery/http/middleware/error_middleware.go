package middleware

import (
	"errors"
	"net/http"

	"contactus-backend/internal/delivery/http/response"
	"contactus-backend/pkg/apperror"
	"contactus-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Message shown when the contact emails could not be dispatched
const sendFailedMessage = "Failed to send message. Please try again later."

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperror.AppError
		switch {
		case errors.As(err, &appErr):
			if appErr.Code >= http.StatusInternalServerError {
				logger.Log.Error("Request failed", "request_id", c.GetString(RequestIDKey), "error", err)
			}
			response.Error(c, appErr.Code, appErr.Message, nil)
		case errors.Is(err, apperror.ErrModel):
			logger.Log.Error("Contact submission failed", "request_id", c.GetString(RequestIDKey), "error", err)
			response.Error(c, http.StatusInternalServerError, sendFailedMessage, nil)
		default:
			// Internal details stay in the server log
			logger.Log.Error("Internal server error", "request_id", c.GetString(RequestIDKey), "error", err)
			response.Error(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", nil)
		}
	}
}
