package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"avito-assist/internal/core/domain"
)

// SendMessageRequest is the body of the send-message call
type SendMessageRequest struct {
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	Type string `json:"type"`
}

// NewSendMessageRequest builds a text message body
func NewSendMessageRequest(text string) SendMessageRequest {
	req := SendMessageRequest{Type: "text"}
	req.Message.Text = text
	return req
}

// ChatsResponse is returned by the chat list call
type ChatsResponse struct {
	Chats []ChatDTO `json:"chats"`
}

// ChatDTO is one chat in the list
type ChatDTO struct {
	ID      string `json:"id"`
	Context struct {
		Type  string `json:"type"`
		Value struct {
			ID int64 `json:"id"`
		} `json:"value"`
	} `json:"context"`
	Updated int64 `json:"updated"`
}

// ToDomain converts the chat; the context value is the listing id
func (c ChatDTO) ToDomain() domain.Chat {
	return domain.Chat{
		ID:        c.ID,
		ItemID:    c.Context.Value.ID,
		UpdatedAt: time.Unix(c.Updated, 0).UTC(),
	}
}

// MessagesResponse is returned by the message history call
type MessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
}

// MessageDTO is one message of a chat history
type MessageDTO struct {
	ID        string `json:"id"`
	AuthorID  FlexID `json:"author_id"`
	Created   int64  `json:"created"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
	Content   struct {
		Text string `json:"text"`
	} `json:"content"`
}

// ToDomain converts the message
func (m MessageDTO) ToDomain(chatID string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        m.ID,
		ChatID:    chatID,
		AuthorID:  string(m.AuthorID),
		Direction: m.Direction,
		Kind:      domain.MessageKind(m.Type),
		Text:      m.Content.Text,
		CreatedAt: time.Unix(m.Created, 0).UTC(),
	}
}

// DecodeMessages accepts both {"messages":[...]} and a bare array
func DecodeMessages(body []byte) ([]MessageDTO, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []MessageDTO
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var resp MessagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ============================================================================
// Listing (core items API)
// ============================================================================

const maxDescriptionRunes = 500

// ItemResponse is the listing detail returned by the items API.
// Price and category come either as scalars or as objects.
type ItemResponse struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       json.RawMessage `json:"price"`
	Category    json.RawMessage `json:"category"`
	Address     string          `json:"address"`
}

// FormatForPrompt renders the listing as "Label: value" lines for the prompt
func (i *ItemResponse) FormatForPrompt() string {
	var parts []string

	if i.Title != "" {
		parts = append(parts, "Название: "+i.Title)
	}
	if i.Description != "" {
		parts = append(parts, "Описание: "+truncateRunes(i.Description, maxDescriptionRunes))
	}
	if price := i.priceValue(); price != "" {
		parts = append(parts, fmt.Sprintf("Цена: %s ₽", price))
	}
	if category := i.categoryName(); category != "" {
		parts = append(parts, "Категория: "+category)
	}
	if i.Address != "" {
		parts = append(parts, "Адрес: "+i.Address)
	}

	return strings.Join(parts, "\n")
}

func (i *ItemResponse) priceValue() string {
	if len(i.Price) == 0 {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(i.Price, &n); err == nil {
		return n.String()
	}
	var obj struct {
		Value json.Number `json:"value"`
	}
	if err := json.Unmarshal(i.Price, &obj); err == nil {
		return obj.Value.String()
	}
	return ""
}

func (i *ItemResponse) categoryName() string {
	if len(i.Category) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(i.Category, &s); err == nil {
		return s
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(i.Category, &obj); err == nil {
		return obj.Name
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
