package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

var ErrInvalidCursor = errors.New("invalid cursor")

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Cursor marks the last key of a page. Pages are ordered by key ascending.
type Cursor struct {
	After string `json:"after"`
}

// Encode encodes cursor to an opaque URL-safe string.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor decodes an encoded cursor. The empty string is the first page.
func DecodeCursor(encoded string) (*Cursor, error) {
	if encoded == "" {
		return &Cursor{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}
	return &cursor, nil
}

// Request is a keyset page request.
type Request struct {
	Cursor string
	Limit  int
}

// NewRequest creates a request. GetLimit clamps the limit.
func NewRequest(cursor string, limit int) *Request {
	return &Request{Cursor: cursor, Limit: limit}
}

// GetLimit returns validated limit
func (r *Request) GetLimit() int {
	if r.Limit <= 0 {
		return DefaultLimit
	}
	if r.Limit > MaxLimit {
		return MaxLimit
	}
	return r.Limit
}

// GetFetchLimit returns limit+1 for checking hasMore
func (r *Request) GetFetchLimit() int {
	return r.GetLimit() + 1
}

// Response is one page of items.
type Response[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// BuildResponse trims items fetched with GetFetchLimit to limit and sets the
// next cursor from the last kept item.
func BuildResponse[T any](items []T, limit int, key func(T) string) *Response[T] {
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	resp := &Response[T]{Items: items, HasMore: hasMore}
	if hasMore && len(items) > 0 {
		resp.NextCursor = (&Cursor{After: key(items[len(items)-1])}).Encode()
	}
	return resp
}
