package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const redacted = "[REDACTED]"

// redactionPolicy decides, per key, whether a logged value is dropped,
// replaced by a salted digest, or passed through.
type redactionPolicy struct {
	enabled bool
	salt    string
	secret  []string
	hashed  []string
}

func policyFromEnv() *redactionPolicy {
	p := &redactionPolicy{
		enabled: true,
		salt:    strings.TrimSpace(os.Getenv("LOG_HASH_SALT")),
		secret:  []string{"token", "authorization", "password", "secret", "cookie", "api_key", "dsn", "headers"},
		hashed:  []string{"visitor_id", "session_id", "record_key"},
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
	case "0", "false", "no", "off":
		p.enabled = false
	}
	return p
}

func (p *redactionPolicy) apply(kv []interface{}) []interface{} {
	if p == nil || !p.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		name := stringify(kv[i])
		out = append(out, name, p.value(normalizeKey(name), kv[i+1]))
	}
	if len(kv)%2 == 1 {
		out = append(out, kv[len(kv)-1])
	}
	return out
}

func (p *redactionPolicy) value(key string, val interface{}) interface{} {
	switch {
	case key != "" && matchesAny(key, p.secret):
		return redacted
	case key != "" && matchesAny(key, p.hashed):
		return p.digest(val)
	}
	switch v := val.(type) {
	case map[string]interface{}:
		if v == nil {
			return v
		}
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = p.value(normalizeKey(k), inner)
		}
		return out
	case []interface{}:
		if v == nil {
			return v
		}
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = p.value("", inner)
		}
		return out
	case string:
		if isSignedToken(v) {
			return redacted
		}
	}
	return val
}

func (p *redactionPolicy) digest(val interface{}) string {
	raw := stringify(val)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(p.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:6])
}

func matchesAny(key string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

// isSignedToken reports whether s has the header.payload.signature shape of a JWT.
func isSignedToken(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
