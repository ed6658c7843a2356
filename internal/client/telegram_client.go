package client

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

	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/metrics"
)

const DefaultTelegramAPIURL = "https://api.telegram.org"

// TelegramClient sends admin messages through the Telegram Bot API
type TelegramClient struct {
	apiURL     string
	token      string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewTelegramClient creates a bot client. An empty apiURL targets api.telegram.org.
func NewTelegramClient(apiURL, token string, httpClient *http.Client, m *metrics.Metrics) *TelegramClient {
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}
	return &TelegramClient{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		httpClient: httpClient,
		metrics:    m,
	}
}

// Configured reports whether a bot token is set
func (c *TelegramClient) Configured() bool {
	return c != nil && c.token != ""
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type sendPhotoRequest struct {
	ChatID    string `json:"chat_id"`
	Photo     string `json:"photo"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// SendMessage sends an HTML-formatted text message
func (c *TelegramClient) SendMessage(ctx context.Context, chatID, text string) error {
	return c.call(ctx, "sendMessage", &sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
}

// SendPhoto sends a photo by URL with an HTML-formatted caption
func (c *TelegramClient) SendPhoto(ctx context.Context, chatID, photo, caption string) error {
	return c.call(ctx, "sendPhoto", &sendPhotoRequest{
		ChatID:    chatID,
		Photo:     photo,
		Caption:   caption,
		ParseMode: "HTML",
	})
}

func (c *TelegramClient) call(ctx context.Context, method string, payload any) error {
	if !c.Configured() {
		return errors.New("telegram bot token not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observe(c.metrics, "telegram", method, 0, err, start)
		// The URL embeds the bot token; never surface it.
		return fmt.Errorf("telegram %s: send request failed", method)
	}
	defer resp.Body.Close()
	observe(c.metrics, "telegram", method, resp.StatusCode, nil, start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var result telegramResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("telegram %s returned status %d: %s", method, resp.StatusCode, truncate(string(respBody), 256))
	}

	if resp.StatusCode >= 400 || !result.OK {
		return fmt.Errorf("telegram %s failed (status %d): %s", method, resp.StatusCode, result.Description)
	}

	return nil
}
