package zoom

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/joinpass/internal/session"
)

var (
	// ErrMalformedToken indicates the token cannot be decoded into its five fields
	ErrMalformedToken = errors.New("malformed join token")

	// ErrSignatureMismatch indicates the digest does not match the signed fields
	ErrSignatureMismatch = errors.New("join token signature mismatch")

	// ErrCredentialExpired indicates the token is older than the validity window
	ErrCredentialExpired = errors.New("join token has expired")

	// ErrCredentialNotYetValid indicates the token timestamp lies beyond the allowed skew
	ErrCredentialNotYetValid = errors.New("join token timestamp is in the future")
)

// Issuer signs Zoom Meeting SDK join credentials. It is safe for concurrent use.
type Issuer struct {
	sdkKey         string
	secret         []byte
	clockSkew      time.Duration
	validityWindow time.Duration
	now            func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer creates an Issuer from cfg.
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	secret := make([]byte, len(cfg.SDKSecret.value))
	copy(secret, cfg.SDKSecret.value)

	i := &Issuer{
		sdkKey:         cfg.SDKKey,
		secret:         secret,
		clockSkew:      cfg.ClockSkew,
		validityWindow: cfg.ValidityWindow,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// SDKKey returns the public SDK key embedded in every credential.
func (i *Issuer) SDKKey() string {
	return i.sdkKey
}

// ValidityWindow returns the configured advisory lifetime.
func (i *Issuer) ValidityWindow() time.Duration {
	return i.validityWindow
}

// Issue signs a join credential for meetingNumber and role.
func (i *Issuer) Issue(meetingNumber string, role session.Role) (*session.JoinCredential, error) {
	meetingNumber = session.NormalizeMeetingNumber(meetingNumber)
	if err := session.ValidateMeetingNumber(meetingNumber); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, session.NewInvalidRequest("unsupported role %d", int(role))
	}

	issuedAt := i.now()
	ts := issuedAt.Add(-i.clockSkew).UnixMilli()
	digest := i.sign(meetingNumber, ts, role.Code())

	return &session.JoinCredential{
		SDKKey:        i.sdkKey,
		MeetingNumber: meetingNumber,
		Timestamp:     ts,
		Role:          role,
		Signature:     digest,
		Token:         encodeToken(i.sdkKey, meetingNumber, ts, role.Code(), digest),
		IssuedAt:      issuedAt,
		ExpiresAt:     time.UnixMilli(ts).Add(i.validityWindow),
	}, nil
}

// sign computes base64(HMAC-SHA256(secret, base64(key+meeting+ts+role))).
func (i *Issuer) sign(meetingNumber string, ts int64, roleCode int) string {
	msg := base64.StdEncoding.EncodeToString([]byte(
		i.sdkKey + meetingNumber + strconv.FormatInt(ts, 10) + strconv.Itoa(roleCode),
	))
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func encodeToken(sdkKey, meetingNumber string, ts int64, roleCode int, digest string) string {
	raw := strings.Join([]string{
		sdkKey,
		meetingNumber,
		strconv.FormatInt(ts, 10),
		strconv.Itoa(roleCode),
		digest,
	}, fieldDelimiter)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Verify decodes token and checks its digest against the issuer's secret.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims, err := Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.SDKKey != i.sdkKey {
		return nil, ErrSignatureMismatch
	}
	expected := i.sign(claims.MeetingNumber, claims.Timestamp, claims.Role.Code())
	if !hmac.Equal([]byte(expected), []byte(claims.Signature)) {
		return nil, ErrSignatureMismatch
	}
	return claims, nil
}

// VerifyFresh is Verify plus a freshness check against the validity window.
func (i *Issuer) VerifyFresh(token string) (*Claims, error) {
	claims, err := i.Verify(token)
	if err != nil {
		return nil, err
	}
	now := i.now()
	issued := claims.IssuedAt()
	if issued.After(now.Add(i.clockSkew)) {
		return nil, ErrCredentialNotYetValid
	}
	if now.After(issued.Add(i.validityWindow)) {
		return nil, ErrCredentialExpired
	}
	return claims, nil
}
