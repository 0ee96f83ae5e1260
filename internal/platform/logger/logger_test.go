package logger

import (
	"strings"
	"testing"
)

func TestPolicyRedactsAndHashes(t *testing.T) {
	t.Setenv("LOG_REDACTION_ENABLED", "true")
	p := policyFromEnv()

	out := p.apply([]interface{}{
		"cart_session_token", "abc",
		"visitor_id", "2f0c6f8e-1111-2222-3333-444455556666",
		"product_id", "sku-1",
	})
	if len(out) != 6 {
		t.Fatalf("unexpected kv length: want=6 got=%d", len(out))
	}
	if out[1] != redacted {
		t.Fatalf("token not redacted: got=%v", out[1])
	}
	hashed, ok := out[3].(string)
	if !ok || !strings.HasPrefix(hashed, "hash:") || len(hashed) != len("hash:")+12 {
		t.Fatalf("visitor id not hashed: got=%v", out[3])
	}
	if out[5] != "sku-1" {
		t.Fatalf("product id altered: got=%v", out[5])
	}
}

func TestPolicyHashIsSalted(t *testing.T) {
	t.Setenv("LOG_HASH_SALT", "")
	plain := policyFromEnv().digest("visitor-1")
	t.Setenv("LOG_HASH_SALT", "pepper")
	salted := policyFromEnv().digest("visitor-1")
	if plain == salted {
		t.Fatalf("salt ignored: both=%s", plain)
	}
}

func TestPolicyNestedValuesAndTokens(t *testing.T) {
	t.Setenv("LOG_REDACTION_ENABLED", "")
	p := policyFromEnv()

	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ2aXNpdG9yIn0.sig"
	out := p.apply([]interface{}{
		"payload", map[string]interface{}{"Password": "hunter2", "qty": 2},
		"values", []interface{}{jwt, "plain"},
		"dangling",
	})
	m := out[1].(map[string]interface{})
	if m["Password"] != redacted || m["qty"] != 2 {
		t.Fatalf("nested map: got=%v", m)
	}
	vals := out[3].([]interface{})
	if vals[0] != redacted || vals[1] != "plain" {
		t.Fatalf("slice values: got=%v", vals)
	}
	if out[len(out)-1] != "dangling" {
		t.Fatalf("odd trailing key dropped: got=%v", out)
	}
}

func TestPolicyDisabled(t *testing.T) {
	t.Setenv("LOG_REDACTION_ENABLED", "off")
	out := policyFromEnv().apply([]interface{}{"password", "x"})
	if out[1] != "x" {
		t.Fatalf("redaction disabled: want=x got=%v", out[1])
	}
}

func TestNewNopLogger(t *testing.T) {
	log, err := New("nop")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("discarded", "k", "v")
	log.With("component", "test").Debug("discarded")
	log.Sync()
}
