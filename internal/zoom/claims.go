package zoom

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/joinpass/internal/session"
)

// Claims are the fields carried by a join token.
type Claims struct {
	SDKKey        string       `json:"sdk_key"`
	MeetingNumber string       `json:"meeting_number"`
	Timestamp     int64        `json:"timestamp"`
	Role          session.Role `json:"role"`
	Signature     string       `json:"signature"`
}

// IssuedAt returns the embedded timestamp as a time.
func (c *Claims) IssuedAt() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// Decode parses a join token without checking its signature.
func Decode(token string) (*Claims, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	parts := strings.Split(string(raw), fieldDelimiter)
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d", ErrMalformedToken, len(parts))
	}

	if parts[0] == "" {
		return nil, fmt.Errorf("%w: empty SDK key", ErrMalformedToken)
	}
	if err := session.ValidateMeetingNumber(parts[1]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	// Numeric fields must be in canonical form; the digest covers the
	// formatted numbers, so "+1" or "01" would otherwise verify as "1".
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || ts < 0 || strconv.FormatInt(ts, 10) != parts[2] {
		return nil, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedToken, parts[2])
	}
	code, err := strconv.Atoi(parts[3])
	if err != nil || !session.Role(code).Valid() || strconv.Itoa(code) != parts[3] {
		return nil, fmt.Errorf("%w: invalid role %q", ErrMalformedToken, parts[3])
	}
	if _, err := base64.StdEncoding.DecodeString(parts[4]); err != nil || parts[4] == "" {
		return nil, fmt.Errorf("%w: invalid digest encoding", ErrMalformedToken)
	}

	return &Claims{
		SDKKey:        parts[0],
		MeetingNumber: parts[1],
		Timestamp:     ts,
		Role:          session.Role(code),
		Signature:     parts[4],
	}, nil
}
