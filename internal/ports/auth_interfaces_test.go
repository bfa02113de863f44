package ports_test

import (
	"testing"

	mocks "github.com/campusworks/caseboard-ui-api/internal/mocks/auth"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.AssertionProvider = (*mocks.MockAssertionProvider)(nil)
	var _ ports.TicketStore = (*mocks.MemoryTicketStore)(nil)
	var _ ports.RoleMapper = (*mocks.StaticRoleMapper)(nil)
	var _ ports.LoginAuditor = (*mocks.RecordingAuditor)(nil)
}
