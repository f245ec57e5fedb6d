package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CanonicalizeIPN re-serializes the JSON payload with its top-level keys sorted
// lexicographically, keeping each value byte-for-byte as received. This must
// match the provider's signing convention exactly or every callback is rejected.
func CanonicalizeIPN(rawBody []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rawBody, &fields); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(bytes.TrimSpace(fields[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// VerifyIPNSignature recomputes HMAC-SHA512 over the canonicalized payload and
// compares it constant-time against the supplied hex signature.
func VerifyIPNSignature(secret string, rawBody []byte, signature string) bool {
	canonical, err := CanonicalizeIPN(rawBody)
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	expected := mac.Sum(nil)

	supplied, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, supplied)
}
