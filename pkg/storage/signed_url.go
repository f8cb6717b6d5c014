package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed or tampered download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrExpiredToken is returned for well-formed tokens past their expiry.
	ErrExpiredToken = errors.New("download token expired")
)

// SignedURLSigner creates and validates signed download tokens for stored objects.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token of the form "<path>.<expiry>.<signature>".
func (s *SignedURLSigner) Generate(objectPath string) (string, time.Time, error) {
	if objectPath == "" {
		return "", time.Time{}, fmt.Errorf("object path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(objectPath))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{encodedPath, ts, s.sign(encodedPath, ts)}, "."), expiresAt, nil
}

// Parse validates a token and returns the object path it grants access to.
func (s *SignedURLSigner) Parse(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	encodedPath, ts, signature := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(s.sign(encodedPath, ts)), []byte(signature)) {
		return "", ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", ErrInvalidToken
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", ErrExpiredToken
	}
	return string(rawPath), nil
}

func (s *SignedURLSigner) sign(encodedPath, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encodedPath + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
