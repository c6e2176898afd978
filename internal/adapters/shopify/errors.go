package shopify

import (
	"errors"
	"fmt"
	"strings"

	"shopify-preorder-sync/internal/adapters/shopify/dto"
)

type httpStatusError struct {
	statusCode int
	status     string
	body       string
}

func (e *httpStatusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("shopify request failed: %s", e.status)
	}
	return fmt.Sprintf("shopify request failed: %s: %s", e.status, e.body)
}

func newHTTPStatusError(statusCode int, status string, body []byte) error {
	return &httpStatusError{
		statusCode: statusCode,
		status:     status,
		body:       strings.TrimSpace(string(body)),
	}
}

// transportError wraps failures where no HTTP response was read.
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("shopify transport: %v", e.err)
}

func (e *transportError) Unwrap() error {
	return e.err
}

type GraphQLErrors struct {
	Errors []dto.GraphQLError
}

func (e *GraphQLErrors) Error() string {
	return "shopify graphql errors: " + formatGraphQLErrors(e.Errors)
}

type UserErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type UserErrorsError struct {
	Action string
	Errors []UserErrorDetail
}

func (e *UserErrorsError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, detail := range e.Errors {
		message := strings.TrimSpace(detail.Message)
		if message == "" {
			continue
		}
		if detail.Field != "" {
			message = fmt.Sprintf("%s: %s", detail.Field, message)
		}
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("shopify %s failed with user errors", e.Action)
	}
	return fmt.Sprintf("shopify %s failed: %s", e.Action, strings.Join(parts, "; "))
}

// Fields lists the offending input paths, e.g. "metafields.3.value".
func (e *UserErrorsError) Fields() []string {
	out := make([]string, 0, len(e.Errors))
	for _, detail := range e.Errors {
		if detail.Field != "" {
			out = append(out, detail.Field)
		}
	}
	return out
}

// IsRemoteError reports whether Shopify answered and rejected the call,
// as opposed to the call never completing.
func IsRemoteError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *httpStatusError
	var gqlErr *GraphQLErrors
	var userErr *UserErrorsError
	return errors.As(err, &httpErr) || errors.As(err, &gqlErr) || errors.As(err, &userErr)
}

// UserErrorFields returns the user error field paths carried by err, if any.
func UserErrorFields(err error) []string {
	var userErr *UserErrorsError
	if errors.As(err, &userErr) {
		return userErr.Fields()
	}
	return nil
}
