package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AssertionProvider = (*MockAssertionProvider)(nil)
	_ ports.TicketStore       = (*MemoryTicketStore)(nil)
	_ ports.RoleMapper        = (*StaticRoleMapper)(nil)
	_ ports.LoginAuditor      = (*RecordingAuditor)(nil)
)

// MockAssertionProvider simulates an identity provider for tests.
type MockAssertionProvider struct {
	BeginFunc   func(ctx context.Context, in ports.BeginInput) (ports.BeginResult, error)
	ConsumeFunc func(ctx context.Context, in ports.ConsumeInput) (map[string]any, error)

	// Deterministic values used when the func hooks are nil.
	LoginURL string
	Document map[string]any

	mu           sync.Mutex
	beginCalls   int
	consumeCalls int
	LastConsume  ports.ConsumeInput
}

// NewMockAssertionProvider creates a provider with a plausible default document.
func NewMockAssertionProvider() *MockAssertionProvider {
	return &MockAssertionProvider{
		LoginURL: "https://mock-idp/sso",
		Document: map[string]any{
			"nameId":      "mock-user-1",
			"email":       "mock.user@example.com",
			"displayName": "Mock User",
			"groups":      []string{"users"},
		},
	}
}

func (m *MockAssertionProvider) Begin(ctx context.Context, in ports.BeginInput) (ports.BeginResult, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	m.mu.Lock()
	m.beginCalls++
	n := m.beginCalls
	m.mu.Unlock()

	loginURL := m.LoginURL
	if loginURL == "" {
		loginURL = "https://mock-idp/sso"
	}
	return ports.BeginResult{
		LoginURL:  loginURL,
		RequestID: requestID(n),
	}, nil
}

func (m *MockAssertionProvider) Consume(ctx context.Context, in ports.ConsumeInput) (map[string]any, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, in)
	}
	m.mu.Lock()
	m.consumeCalls++
	m.LastConsume = in
	m.mu.Unlock()

	// Copy so tests mutating the result don't corrupt later calls.
	doc := make(map[string]any, len(m.Document))
	for k, v := range m.Document {
		doc[k] = v
	}
	return doc, nil
}

// ConsumeCalls reports how many times Consume ran.
func (m *MockAssertionProvider) ConsumeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumeCalls
}

func requestID(n int) string {
	return "id-" + string(rune('0'+n%10))
}

// MemoryTicketStore is an in-memory one-time ticket store for unit tests.
type MemoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]struct{}

	IssueErr   error
	ConsumeErr error
}

// NewMemoryTicketStore creates an empty in-memory ticket store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{tickets: make(map[string]struct{})}
}

func (m *MemoryTicketStore) Issue(_ context.Context, token string) error {
	if m.IssueErr != nil {
		return m.IssueErr
	}
	if token == "" {
		return errors.New("ticket token cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[token] = struct{}{}
	return nil
}

func (m *MemoryTicketStore) Consume(_ context.Context, token string) (bool, error) {
	if m.ConsumeErr != nil {
		return false, m.ConsumeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[token]; !ok {
		return false, nil
	}
	delete(m.tickets, token)
	return true, nil
}

// StaticRoleMapper maps groups by simple string membership rules.
type StaticRoleMapper struct {
	AdminGroup string
	StaffGroup string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	for _, g := range groups {
		if m.StaffGroup != "" && g == m.StaffGroup {
			return domainauth.RoleStaff
		}
	}
	return domainauth.RoleNone
}

// RecordingAuditor captures audit entries in memory for assertions.
type RecordingAuditor struct {
	mu      sync.Mutex
	entries []ports.AuditEntry

	RecordErr error
}

func (a *RecordingAuditor) Record(_ context.Context, entry ports.AuditEntry) error {
	if a.RecordErr != nil {
		return a.RecordErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (a *RecordingAuditor) Entries() []ports.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ports.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}
