package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"avito-assist/internal/adapters/dto"
)

// ErrItemNotFound is returned when the listing does not exist or is not owned
// by the account
var ErrItemNotFound = errors.New("avito item not found")

// GetItem fetches a listing owned by the account
func (c *AvitoClient) GetItem(ctx context.Context, accessToken string, itemID int64) (*dto.ItemResponse, error) {
	path := fmt.Sprintf("/core/v1/accounts/%s/items/%d", c.userID, itemID)

	body, err := c.do(ctx, http.MethodGet, path, nil, accessToken, nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	var item dto.ItemResponse
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("Invalid JSON from Avito items API: %w", err)
	}
	return &item, nil
}

// ListingContext renders the listing for the system prompt
func (c *AvitoClient) ListingContext(ctx context.Context, accessToken string, itemID int64) (string, error) {
	item, err := c.GetItem(ctx, accessToken, itemID)
	if err != nil {
		return "", err
	}

	text := item.FormatForPrompt()
	slog.Debug("Listing context loaded", "item_id", itemID, "length", len(text))
	return text, nil
}
