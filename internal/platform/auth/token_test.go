package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer(testSigningKey, "hms", time.Hour)
	fixed := time.Now().Truncate(time.Second)
	iss.now = func() time.Time { return fixed }

	uid := uuid.New()
	token, exp, err := iss.Issue(Subject{UserID: uid, Username: "pharm1", Role: RolePharmacist, DisplayName: "Pat Pharm"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if !exp.Equal(fixed.Add(time.Hour)) {
		t.Errorf("expected expiry %s, got %s", fixed.Add(time.Hour), exp)
	}

	got, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey, Issuer: "hms"}, "Bearer "+token)
	if err != nil {
		t.Fatalf("middleware rejected issued token: %v", err)
	}
	if got.Subject != uid.String() || got.Role != RolePharmacist || got.Username != "pharm1" {
		t.Errorf("unexpected claims: %+v", got)
	}
}

func TestIssuer_ExpiredTokenRejected(t *testing.T) {
	iss := NewIssuer(testSigningKey, "hms", time.Minute)
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := iss.Issue(Subject{UserID: uuid.New(), Username: "u", Role: RoleNurse})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	_, err = runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	assertStatus(t, err, http.StatusUnauthorized)
}
