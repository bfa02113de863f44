package auth

import (
	"testing"
	"time"
)

func TestSession_HasRole(t *testing.T) {
	if (Session{Role: RoleNone}).HasRole() {
		t.Fatalf("unset role must not count as privileged")
	}
	if !(Session{Role: RoleStaff}).HasRole() {
		t.Fatalf("expected staff to have a role")
	}
	if !(Session{Role: RoleAdmin}).IsAdmin() {
		t.Fatalf("expected admin")
	}
	if (Session{Role: RoleStaff}).IsAdmin() {
		t.Fatalf("staff is not admin")
	}
}

func TestIdentityClaim_SimpleFields(t *testing.T) {
	c := IdentityClaim{NameID: "jdoe", Email: "jdoe@unc.edu"}
	if c.NameID != "jdoe" || c.Email != "jdoe@unc.edu" {
		t.Fatalf("unexpected claim: %+v", c)
	}
}

func TestTokenPair_ExpiryOrdering(t *testing.T) {
	now := time.Now()
	p := TokenPair{AccessExpiresAt: now.Add(15 * time.Minute), RefreshExpiresAt: now.Add(12 * time.Hour)}
	if !p.AccessExpiresAt.Before(p.RefreshExpiresAt) {
		t.Fatalf("access expiry should precede refresh expiry")
	}
}
