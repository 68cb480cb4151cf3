// Package slug derives short public URL slugs for shareable assets.
package slug

import (
	"crypto/hmac"
	"crypto/sha256"
)

const base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ForAsset returns a deterministic base62 slug for an asset ID. The HMAC keeps
// slugs unguessable without the salt while staying stable across restarts.
func ForAsset(assetID string, salt []byte) string {
	h := hmac.New(sha256.New, salt)
	h.Write([]byte(assetID))
	sum := h.Sum(nil)
	return base62Encode(sum[:8])
}

// base62Encode converts up to 8 bytes to a URL-friendly alphanumeric string.
func base62Encode(data []byte) string {
	var num uint64
	for i := 0; i < len(data) && i < 8; i++ {
		num = num<<8 | uint64(data[i])
	}
	if num == 0 {
		return "0"
	}
	out := make([]byte, 0, 11)
	for num > 0 {
		out = append(out, base62Chars[num%62])
		num /= 62
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
