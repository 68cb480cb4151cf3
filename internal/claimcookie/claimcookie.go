// Package claimcookie encodes the server-trusted claim entitlement cookies.
//
// Each asset type gets one cookie holding the public URL slugs the browser
// session created anonymously. The value is HMAC-signed so the claim service
// can treat it as trusted input, unlike the client-submitted ID list.
package claimcookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrumkit/scrumkit/internal/errs"
)

// Codec signs and verifies slug-list cookie values.
type Codec struct {
	key []byte
}

// NewCodec constructs a codec with the given signing key.
func NewCodec(key []byte) *Codec { return &Codec{key: key} }

// Encode serializes slugs into "payload.signature" (both URL-safe base64,
// unpadded).
func (c *Codec) Encode(slugs []string) (string, error) {
	if slugs == nil {
		slugs = []string{}
	}
	payload, err := json.Marshal(slugs)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + c.sign(body), nil
}

// Decode verifies the signature and returns the slug list. Any tampering,
// truncation, or malformed JSON yields errs.ErrBadCookie; callers fail closed
// by treating that as an empty entitlement.
func (c *Codec) Decode(value string) ([]string, error) {
	body, sig, ok := strings.Cut(value, ".")
	if !ok || body == "" {
		return nil, errs.ErrBadCookie
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(body))) {
		return nil, errs.ErrBadCookie
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrBadCookie, err)
	}
	var slugs []string
	if err := json.Unmarshal(payload, &slugs); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrBadCookie, err)
	}
	return slugs, nil
}

// Append adds a slug to an existing cookie value, de-duplicated. An invalid
// existing value is discarded and a fresh single-slug cookie is produced.
func (c *Codec) Append(value, s string) (string, error) {
	slugs, err := c.Decode(value)
	if err != nil {
		slugs = nil
	}
	for _, existing := range slugs {
		if existing == s {
			return c.Encode(slugs)
		}
	}
	return c.Encode(append(slugs, s))
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
