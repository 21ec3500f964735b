package authx

import "testing"

func TestParseRoles(t *testing.T) {
	claims := map[string]any{
		"roles": []any{"admin", "operator"},
		"scp":   "read write",
	}
	roles := parseRoles(claims)
	if len(roles) < 3 {
		t.Fatalf("expected roles to include entries, got %v", roles)
	}
}

func TestMerchantScoping(t *testing.T) {
	auth := AuthContext{Claims: map[string]any{
		"merchant_id": "m-1",
		"merchants":   []any{"m-1", "m-2"},
	}}
	ids := auth.MerchantIDs()
	if len(ids) != 2 || ids[0] != "m-1" || ids[1] != "m-2" {
		t.Fatalf("unexpected merchant ids: %v", ids)
	}
	if !auth.AllowsMerchant("m-2") {
		t.Fatalf("m-2 should be allowed")
	}
	if auth.AllowsMerchant("m-3") {
		t.Fatalf("m-3 should be rejected")
	}

	unrestricted := AuthContext{Claims: map[string]any{}}
	if !unrestricted.AllowsMerchant("anything") {
		t.Fatalf("token without merchant claims must be unrestricted")
	}
}

func TestNewJWTVerifierValidation(t *testing.T) {
	if _, err := NewJWTVerifier("", "aud", "", 60, 0); err == nil {
		t.Fatalf("expected error for missing issuer")
	}
}
