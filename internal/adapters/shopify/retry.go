package shopify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"shopify-preorder-sync/internal/adapters/shopify/dto"
)

const (
	retryMaxAttempts = 3
	retryBaseDelay   = 500 * time.Millisecond
	retryMaxDelay    = 10 * time.Second
)

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if isRetryableHTTPError(err) {
		return true
	}
	var gqlErr *GraphQLErrors
	if errors.As(err, &gqlErr) {
		return isThrottleGraphQLError(gqlErr.Errors)
	}
	var tErr *transportError
	return errors.As(err, &tErr)
}

func isRetryableHTTPError(err error) bool {
	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		switch httpErr.statusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

func isThrottleGraphQLError(errs []dto.GraphQLError) bool {
	for _, e := range errs {
		if strings.Contains(strings.ToLower(e.Message), "throttled") {
			return true
		}
		if code, ok := e.Extensions["code"].(string); ok && strings.EqualFold(code, "THROTTLED") {
			return true
		}
	}
	return false
}

func (c *Client) retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	delay := c.retryBaseDelay << attempt
	if delay > c.retryMaxDelay || delay <= 0 {
		delay = c.retryMaxDelay
	}
	return delay
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
