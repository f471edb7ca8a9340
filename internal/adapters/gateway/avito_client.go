// Package gateway implements external API adapters
// Following Hexagonal Architecture: Outbound adapters for external services
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"avito-assist/internal/adapters/dto"
	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/ports"
)

// Ensure AvitoClient implements the messenger and listing ports
var (
	_ ports.Messenger       = (*AvitoClient)(nil)
	_ ports.ListingProvider = (*AvitoClient)(nil)
)

// Custom errors for specific Avito API failures
var (
	// ErrTokenExpired indicates the access token is expired or invalid (HTTP 401)
	ErrTokenExpired = errors.New("avito access token expired or invalid")

	// ErrRateLimited indicates the Avito rate limit was exceeded (HTTP 429)
	ErrRateLimited = errors.New("avito rate limit exceeded")

	// ErrPermissionDenied indicates the token lacks a required scope (HTTP 403)
	ErrPermissionDenied = errors.New("avito permission denied")
)

// StatusError is a non-2xx answer not covered by the sentinel errors
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Avito Messenger API returned status %d", e.StatusCode)
}

// DefaultAvitoBaseURL is the production API host
const DefaultAvitoBaseURL = "https://api.avito.ru"

// AvitoClient talks to the Avito Messenger and items APIs on behalf of one
// account. Every call is a single attempt.
type AvitoClient struct {
	httpClient *http.Client
	baseURL    string
	userID     string
}

// NewAvitoClient creates a new Avito API client
func NewAvitoClient(baseURL, userID string) *AvitoClient {
	if baseURL == "" {
		baseURL = DefaultAvitoBaseURL
	}
	return &AvitoClient{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
	}
}

// SendText posts a text message into a chat
func (c *AvitoClient) SendText(ctx context.Context, chatID, text, accessToken string) error {
	path := fmt.Sprintf("/messenger/v1/accounts/%s/chats/%s/messages", c.userID, url.PathEscape(chatID))

	slog.Info("Sending message to Avito",
		"chat_id", chatID,
		"text_length", len(text),
	)

	if _, err := c.do(ctx, http.MethodPost, path, nil, accessToken, dto.NewSendMessageRequest(text)); err != nil {
		return err
	}

	slog.Info("Message sent successfully", "chat_id", chatID)
	return nil
}

// ListUnreadChats returns at most limit chats that have unread messages
func (c *AvitoClient) ListUnreadChats(ctx context.Context, accessToken string, limit int) ([]domain.Chat, error) {
	path := fmt.Sprintf("/messenger/v2/accounts/%s/chats", c.userID)
	query := url.Values{
		"unread_only": {"true"},
		"limit":       {strconv.Itoa(limit)},
	}

	body, err := c.do(ctx, http.MethodGet, path, query, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var resp dto.ChatsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("Invalid JSON from Avito Messenger API: %w", err)
	}

	chats := make([]domain.Chat, 0, len(resp.Chats))
	for _, ch := range resp.Chats {
		chats = append(chats, ch.ToDomain())
	}
	return chats, nil
}

// ListMessages returns the most recent messages of a chat without marking
// them read
func (c *AvitoClient) ListMessages(ctx context.Context, accessToken, chatID string, limit int) ([]domain.ChatMessage, error) {
	path := fmt.Sprintf("/messenger/v3/accounts/%s/chats/%s/messages/", c.userID, url.PathEscape(chatID))
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	body, err := c.do(ctx, http.MethodGet, path, query, accessToken, nil)
	if err != nil {
		return nil, err
	}

	raw, err := dto.DecodeMessages(body)
	if err != nil {
		return nil, fmt.Errorf("Invalid JSON from Avito Messenger API: %w", err)
	}

	messages := make([]domain.ChatMessage, 0, len(raw))
	for _, m := range raw {
		messages = append(messages, m.ToDomain(chatID))
	}
	return messages, nil
}

// MarkRead marks every message of the chat as read
func (c *AvitoClient) MarkRead(ctx context.Context, accessToken, chatID string) error {
	path := fmt.Sprintf("/messenger/v1/accounts/%s/chats/%s/read", c.userID, url.PathEscape(chatID))
	_, err := c.do(ctx, http.MethodPost, path, nil, accessToken, nil)
	return err
}

// do performs one authorized request and returns the body of a 2xx response
func (c *AvitoClient) do(ctx context.Context, method, path string, query url.Values, accessToken string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send request to Avito",
			"error", err,
			"method", method,
			"path", path,
		)
		return nil, fmt.Errorf("Failed to call Avito Messenger API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		slog.Error("Avito API error",
			"status_code", resp.StatusCode,
			"method", method,
			"path", path,
			"body", truncate(string(body), 512),
		)

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, ErrTokenExpired
		case http.StatusForbidden:
			return nil, ErrPermissionDenied
		case http.StatusTooManyRequests:
			return nil, ErrRateLimited
		default:
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
