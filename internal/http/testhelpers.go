package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campusworks/caseboard-ui-api/internal/domain/assertion"
	mocks "github.com/campusworks/caseboard-ui-api/internal/mocks/auth"
	"github.com/campusworks/caseboard-ui-api/internal/service"
	"github.com/campusworks/caseboard-ui-api/internal/token"
)

// AuthTestFixture bundles a fully wired router with in-memory adapters for
// handler tests.
type AuthTestFixture struct {
	Router   http.Handler
	Provider *mocks.MockAssertionProvider
	Tickets  *mocks.MemoryTicketStore
	Auditor  *mocks.RecordingAuditor
	Svc      *service.AuthService
}

// NewAuthTestFixture wires the auth service against in-memory doubles and a
// real token issuer.
func NewAuthTestFixture(t *testing.T) *AuthTestFixture {
	t.Helper()

	codec, err := assertion.NewCodec(assertion.Mapping{})
	if err != nil {
		t.Fatalf("build codec: %v", err)
	}
	issuer, err := token.NewIssuer(token.Config{
		SigningSecret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "caseboard",
		Audience:      "caseboard-ui",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    12 * time.Hour,
	})
	if err != nil {
		t.Fatalf("build issuer: %v", err)
	}

	provider := mocks.NewMockAssertionProvider()
	tickets := mocks.NewMemoryTicketStore()
	auditor := &mocks.RecordingAuditor{}

	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Provider: provider,
		Codec:    codec,
		Roles:    mocks.StaticRoleMapper{AdminGroup: "caseboard-admins", StaffGroup: "caseboard-staff"},
		Issuer:   issuer,
		Auditor:  auditor,
	})
	if err != nil {
		t.Fatalf("build auth service: %v", err)
	}

	router := NewRouter(RouterServices{
		Auth:    svc,
		Tickets: tickets,
	})

	return &AuthTestFixture{
		Router:   router,
		Provider: provider,
		Tickets:  tickets,
		Auditor:  auditor,
		Svc:      svc,
	}
}

// Do runs one request through the router and returns the recorder.
func (f *AuthTestFixture) Do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.Router.ServeHTTP(rec, req)
	return rec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CookieByName finds a cookie in a recorded response, or nil.
func CookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
