// Package whatsapp — клиент исходящих сообщений шлюза WhatsApp.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"procurement/internal/phone"
)

// Sender — контракт отправки; обработчики зависят от него, что позволяет
// подменять шлюз в тестах.
type Sender interface {
	SendMessage(ctx context.Context, phoneNumber, text string) error
}

// TokenSource отдаёт актуальный токен шлюза на каждую отправку.
// Токен редактируется в настройках на лету, поэтому фиксировать его
// на старте нельзя.
type TokenSource func(ctx context.Context) string

// StaticToken — источник с неизменным токеном.
func StaticToken(token string) TokenSource {
	return func(context.Context) string { return token }
}

// Client ходит в HTTP API шлюза.
type Client struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
}

func NewClient(baseURL string, token TokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	ChatID string `json:"chatId"`
	Body   string `json:"body"`
}

type sendResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}

// SendMessage отправляет текст на нормализованный номер.
func (c *Client) SendMessage(ctx context.Context, phoneNumber, text string) error {
	body, err := json.Marshal(sendRequest{
		ChatID: phone.ToGatewayFormat(phone.Normalize(phoneNumber)),
		Body:   text,
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/sendMessage?token=%s", c.baseURL, c.token(ctx))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send message: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Некоторые шлюзы отвечают пустым телом на успех.
		return nil
	}
	if parsed.Message != "" && !parsed.Sent {
		return fmt.Errorf("send message: %s", parsed.Message)
	}
	return nil
}

// WebhookPayload — тело входящего вызова шлюза.
type WebhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ID        string `json:"id"`
		From      string `json:"from"`
		Body      string `json:"body"`
		Timestamp int64  `json:"timestamp"`
		Type      string `json:"type"`
		ChatID    string `json:"chat_id"`
	} `json:"data"`
}
