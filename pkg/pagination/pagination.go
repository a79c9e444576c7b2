package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Kind tags a cursor with the listing that issued it. A cursor from the
// orders list is rejected by the notifications list and vice versa.
type Kind string

const (
	KindOrders        Kind = "ord"
	KindNotifications Kind = "ntf"
	KindPoints        Kind = "pts"
)

// ErrInvalidCursor is returned for any cursor that does not decode into the
// expected kind.
var ErrInvalidCursor = errors.New("invalid cursor")

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last row of a page ordered by (created_at DESC, id DESC).
type Cursor struct {
	Kind      Kind
	CreatedAt time.Time
	ID        uuid.UUID
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so the caller can tell whether a
// next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Encode renders the cursor as URL-safe text so it can travel in a query
// string without escaping.
func (c Cursor) Encode() string {
	payload := fmt.Sprintf("%s|%s|%s", c.Kind, c.CreatedAt.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// Decode parses a cursor issued for kind. An empty value means the first page
// and yields a nil cursor.
func Decode(kind Kind, value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed", ErrInvalidCursor)
	}
	if Kind(parts[0]) != kind {
		return nil, fmt.Errorf("%w: issued for %q, not %q", ErrInvalidCursor, parts[0], kind)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrInvalidCursor, err)
	}
	return &Cursor{Kind: kind, CreatedAt: createdAt, ID: id}, nil
}

// Keyset returns a gorm scope that orders newest first and, when cursor is
// set, starts strictly after it. The limit includes the look-ahead row.
func Keyset(cursor *Cursor, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cursor != nil {
			db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		return db.Order("created_at DESC, id DESC").Limit(LimitWithBuffer(limit))
	}
}

// Trim cuts the look-ahead row from a Keyset result and returns the encoded
// cursor for the next page, or "" on the last page.
func Trim[T any](kind Kind, rows []T, limit int, key func(T) (time.Time, uuid.UUID)) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	createdAt, id := key(rows[limit-1])
	return rows, Cursor{Kind: kind, CreatedAt: createdAt, ID: id}.Encode()
}
