package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldLabels maps struct field names to user-friendly labels
var FieldLabels = map[string]string{
	"Subject":       "Subject",
	"ReporterEmail": "Your email",
	"CCEmails":      "CC addresses",
	"Message":       "Message",
	"Attachments":   "Attachments",
}

// FormatValidationErrors converts validator.ValidationErrors to user-friendly messages
func FormatValidationErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		// Not a validation error, return generic message
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatSingleError(e))
	}
	return messages
}

// formatSingleError formats a single validation error to a user-friendly message
func formatSingleError(e validator.FieldError) string {
	label := getFieldLabel(e.StructField())
	param := e.Param()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s: Required", label)

	case "max":
		switch e.Kind().String() {
		case "string":
			return fmt.Sprintf("%s: At most %s characters", label, param)
		case "slice":
			return fmt.Sprintf("%s: At most %s entries", label, param)
		}
		return fmt.Sprintf("%s: At most %s", label, param)

	case "email":
		return fmt.Sprintf("%s: Invalid email address %q", label, e.Value())

	case "no_header_injection":
		return fmt.Sprintf("%s: Must not contain line breaks", label)

	default:
		// Fallback for unknown tags
		return fmt.Sprintf("%s: Validation failed (%s)", label, e.Tag())
	}
}

// getFieldLabel returns the user-friendly label for a field. Slice elements
// report as Field[i] and share the label of the slice.
func getFieldLabel(fieldName string) string {
	if i := strings.IndexByte(fieldName, '['); i > 0 {
		fieldName = fieldName[:i]
	}
	if label, ok := FieldLabels[fieldName]; ok {
		return label
	}
	// Return field name with spaces between camelCase words
	return formatCamelCase(fieldName)
}

// formatCamelCase converts CamelCase to spaced words
func formatCamelCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune(' ')
		}
		result.WriteRune(r)
	}
	return result.String()
}
