package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	telegramAPI           = "https://api.telegram.org"
	telegramMaxMessageLen = 4096
)

// TelegramChannel sends messages through the Telegram Bot API.
type TelegramChannel struct {
	baseURL string
	client  *http.Client
}

// TelegramOption configures a TelegramChannel.
type TelegramOption func(*TelegramChannel)

// WithTelegramAPI points the channel at another Bot API host.
func WithTelegramAPI(host, token string) TelegramOption {
	return func(t *TelegramChannel) {
		t.baseURL = strings.TrimRight(host, "/") + "/bot" + token
	}
}

// WithTelegramHTTPClient overrides the HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramChannel) { t.client = c }
}

// NewTelegramChannel creates a Telegram channel adapter.
func NewTelegramChannel(token string, opts ...TelegramOption) (*TelegramChannel, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required (LEARN_TELEGRAM_BOT_TOKEN)")
	}
	t := &TelegramChannel{
		baseURL: telegramAPI + "/bot" + token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// SendMessage sends text to the chat with the given ID, split into parts
// that fit Telegram's limit.
func (t *TelegramChannel) SendMessage(ctx context.Context, userID string, msg OutboundMessage) error {
	for _, part := range SplitMessage(msg.Text, telegramMaxMessageLen) {
		params := url.Values{
			"chat_id": {userID},
			"text":    {part},
		}
		if msg.ParseMode != "" {
			params.Set("parse_mode", msg.ParseMode)
		}

		status, err := t.post(ctx, "/sendMessage", params)
		if err != nil {
			return fmt.Errorf("sending Telegram message: %w", err)
		}
		if status == http.StatusOK {
			continue
		}
		// Bad markup is rejected with 400; retry as plain text.
		if msg.ParseMode != "" && status == http.StatusBadRequest {
			slog.Warn("Telegram markup rejected, retrying plain")
			params.Del("parse_mode")
			status, err = t.post(ctx, "/sendMessage", params)
			if err != nil {
				return fmt.Errorf("sending Telegram message (retry): %w", err)
			}
			if status != http.StatusOK {
				return fmt.Errorf("telegram API error %d on retry", status)
			}
			continue
		}
		return fmt.Errorf("telegram API error %d", status)
	}
	return nil
}

func (t *TelegramChannel) post(ctx context.Context, method string, params url.Values) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+method, strings.NewReader(params.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// SplitMessage splits text into chunks of at most maxLen bytes, preferring
// to cut after a newline or space and never inside a UTF-8 sequence.
func SplitMessage(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		cutAt := maxLen
		for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
			cutAt--
		}
		if idx := strings.LastIndex(text[:cutAt], "\n"); idx > 0 {
			cutAt = idx + 1
		} else if idx := strings.LastIndex(text[:cutAt], " "); idx > 0 {
			cutAt = idx + 1
		}
		if cutAt == 0 {
			// maxLen is smaller than the leading rune.
			_, size := utf8.DecodeRuneInString(text)
			cutAt = size
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}
