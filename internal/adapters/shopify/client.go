package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopify-preorder-sync/internal/adapters/shopify/dto"
	"shopify-preorder-sync/internal/config"
	"shopify-preorder-sync/internal/metrics"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type Client struct {
	config     config.ShopifyConfig
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics

	maxAttempts    int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

func NewClient(config config.ShopifyConfig, httpClient *http.Client, logger *zap.Logger, m *metrics.Metrics) *Client {
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:         config,
		httpClient:     httpClient,
		logger:         logger,
		metrics:        m,
		maxAttempts:    retryMaxAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
	}
}

func (c *Client) adminEndpoint(resource string) (string, error) {
	domain := strings.TrimSpace(c.config.ShopDomain)
	if domain == "" {
		return "", errors.New("shopify shop domain is empty")
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	domain = strings.TrimRight(domain, "/")
	if c.config.APIVer == "" {
		return "", errors.New("shopify api version is empty")
	}
	return domain + "/admin/api/" + c.config.APIVer + "/" + strings.TrimLeft(resource, "/"), nil
}

func (c *Client) shopifyAPIRequest(ctx context.Context, method string, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPStatusError(resp.StatusCode, resp.Status, respBody)
	}

	return respBody, nil
}

func (c *Client) graphqlRequest(ctx context.Context, query string, variables map[string]any, out any) error {
	endpoint, err := c.adminEndpoint("graphql.json")
	if err != nil {
		return err
	}

	bodyBytes, err := json.Marshal(graphQLRequest{
		Query:     strings.TrimSpace(query),
		Variables: variables,
	})
	if err != nil {
		return err
	}

	return c.withRetry(ctx, "graphql", func() error {
		raw, err := c.shopifyAPIRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return err
		}

		var resp dto.GraphQLResponse[json.RawMessage]
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("shopify graphql decode: %w", err)
		}
		if len(resp.Errors) > 0 {
			return &GraphQLErrors{Errors: resp.Errors}
		}
		if out == nil {
			return nil
		}
		if len(resp.Data) == 0 || string(resp.Data) == "null" {
			return errors.New("shopify graphql response missing data")
		}
		return json.Unmarshal(resp.Data, out)
	})
}

// restRequest sends a JSON body (nil for none) to an Admin REST resource.
func (c *Client) restRequest(ctx context.Context, method string, resource string, body any) ([]byte, error) {
	endpoint, err := c.adminEndpoint(resource)
	if err != nil {
		return nil, err
	}

	var bodyBytes []byte
	if body != nil {
		if bodyBytes, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	var raw []byte
	err = c.withRetry(ctx, "rest", func() error {
		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		var reqErr error
		raw, reqErr = c.shopifyAPIRequest(ctx, method, endpoint, reader)
		return reqErr
	})
	return raw, err
}

func (c *Client) withRetry(ctx context.Context, api string, call func() error) error {
	attempts := c.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt - 1)
			c.logger.Warn("retrying shopify request",
				zap.String("api", api),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if c.metrics != nil {
				c.metrics.RemoteRetries.WithLabelValues(api).Inc()
			}
			if err := sleepWithContext(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(ctx, lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func userErrorsToError(action string, errs []dto.ShopifyUserError) error {
	if len(errs) == 0 {
		return nil
	}
	details := make([]UserErrorDetail, 0, len(errs))
	for _, e := range errs {
		message := strings.TrimSpace(e.Message)
		if message == "" {
			continue
		}
		details = append(details, UserErrorDetail{
			Field:   strings.Join(e.Field, "."),
			Message: message,
			Code:    e.Code,
		})
	}
	if len(details) == 0 {
		details = append(details, UserErrorDetail{Message: "user errors returned"})
	}
	return &UserErrorsError{Action: action, Errors: details}
}

func formatGraphQLErrors(errs []dto.GraphQLError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			continue
		}
		if len(e.Path) > 0 {
			msg = fmt.Sprintf("%s (path: %v)", msg, e.Path)
		}
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		return "unknown graphql error"
	}
	return strings.Join(parts, "; ")
}
