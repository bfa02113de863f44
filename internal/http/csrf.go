package httpx

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const (
	// csrfCookieName is the double-submit cookie carrying the one-time ticket.
	csrfCookieName = "csrf_token"
	// ticketTokenLength is the ticket entropy in bytes.
	ticketTokenLength = 32
)

// generateTicketToken generates a cryptographically secure random ticket.
// Returns an error if random generation fails; we fail closed rather than
// falling back to a predictable token.
func generateTicketToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ticket token generation failed: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ticketsMatch compares the form-submitted ticket against the cookie copy in
// constant time. Both halves must be present.
func ticketsMatch(formToken, cookieToken string) bool {
	if formToken == "" || cookieToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(formToken), []byte(cookieToken)) == 1
}
