package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopify-preorder-sync/internal/config"
)

// Notifier delivers short operator messages (job finished, policy flipped).
type Notifier interface {
	Log(value string)
	LogError(value string)
	LogWarning(value string)
	LogSuccess(value string)
}

type telegramRequest struct {
	ChatId string `json:"chat_id"`
	Text   string `json:"text"`
}

const (
	iconInfo    = "ℹ️"
	iconError   = "❌"
	iconWarning = "⚠️"
	iconSuccess = "✅"

	telegramBaseURL = "https://api.telegram.org"
	telegramTimeout = 10 * time.Second
)

type Telegram struct {
	creds      config.TelegramBotConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewNotifier returns a Telegram notifier, or a no-op one when the bot
// credentials are not configured.
func NewNotifier(creds config.TelegramBotConfig, httpClient *http.Client, logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if creds.ChatId == "" || creds.Token == "" {
		logger.Warn("telegram credentials missing, notifications disabled")
		return Nop{}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: telegramTimeout}
	}
	return &Telegram{
		creds:      creds,
		baseURL:    telegramBaseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (t *Telegram) Log(value string) {
	t.send(formatMessage(iconInfo, "INFO", value))
}

func (t *Telegram) LogError(value string) {
	t.send(formatMessage(iconError, "ERROR", value))
}

func (t *Telegram) LogWarning(value string) {
	t.send(formatMessage(iconWarning, "WARNING", value))
}

func (t *Telegram) LogSuccess(value string) {
	t.send(formatMessage(iconSuccess, "SUCCESS", value))
}

func formatMessage(icon, level, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		v = "-"
	}
	return fmt.Sprintf("%s %s: %s", icon, level, v)
}

func (t *Telegram) send(text string) {
	if t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), telegramTimeout)
	defer cancel()
	if err := t.sendRequest(ctx, text); err != nil {
		t.logger.Warn("telegram notification failed", zap.Error(err))
	}
}

func (t *Telegram) sendRequest(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.baseURL, "/"), t.creds.Token)

	bodyBytes, err := json.Marshal(telegramRequest{
		ChatId: t.creds.ChatId,
		Text:   text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram send failed: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Nop discards every message.
type Nop struct{}

func (Nop) Log(string)        {}
func (Nop) LogError(string)   {}
func (Nop) LogWarning(string) {}
func (Nop) LogSuccess(string) {}
