// Package pagination pages through in-memory listings with opaque offset tokens.
//
// A token is base64url("<offset>.<scope>") where scope is an FNV-1a hash of the query that
// produced it, so a token from one listing cannot be replayed against another.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when the client omits pageSize.
	DefaultPageSize = 50
	// MaxPageSize caps pageSize; larger requests are clamped, not rejected.
	MaxPageSize = 200
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Page is a validated paging request.
type Page struct {
	Size   int
	offset int
	scope  uint32
	token  bool
}

// Parse reads pageSize and pageToken from values.
func Parse(values url.Values) (Page, error) {
	page := Page{Size: DefaultPageSize}
	if raw := strings.TrimSpace(values.Get("pageSize")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Page{}, fmt.Errorf("%w: want a positive integer, got %q", ErrInvalidPageSize, raw)
		}
		page.Size = min(n, MaxPageSize)
	}
	if raw := strings.TrimSpace(values.Get("pageToken")); raw != "" {
		offset, scope, err := decodeToken(raw)
		if err != nil {
			return Page{}, err
		}
		page.offset, page.scope, page.token = offset, scope, true
	}
	return page, nil
}

// Slice returns the part of items selected by page and the token for the following page,
// which is empty on the last page. scope identifies the listing; pass the same value for every
// page of one query.
func Slice[T any](items []T, page Page, scope string) ([]T, string, error) {
	key := scopeKey(scope)
	if page.token && page.scope != key {
		return nil, "", fmt.Errorf("%w: issued for a different query", ErrInvalidPageToken)
	}
	if page.offset > len(items) {
		return nil, "", fmt.Errorf("%w: offset %d beyond %d results", ErrInvalidPageToken, page.offset, len(items))
	}
	size := page.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	end := page.offset + size
	if end >= len(items) {
		return items[page.offset:], "", nil
	}
	return items[page.offset:end], encodeToken(end, key), nil
}

func scopeKey(scope string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(scope))
	return h.Sum32()
}

func encodeToken(offset int, scope uint32) string {
	raw := strconv.Itoa(offset) + "." + strconv.FormatUint(uint64(scope), 36)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeToken(token string) (int, uint32, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: not base64url", ErrInvalidPageToken)
	}
	offsetText, scopeText, ok := strings.Cut(string(raw), ".")
	if !ok {
		return 0, 0, fmt.Errorf("%w: malformed", ErrInvalidPageToken)
	}
	offset, err := strconv.Atoi(offsetText)
	if err != nil || offset <= 0 {
		return 0, 0, fmt.Errorf("%w: bad offset", ErrInvalidPageToken)
	}
	scope, err := strconv.ParseUint(scopeText, 36, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad scope", ErrInvalidPageToken)
	}
	return offset, uint32(scope), nil
}
