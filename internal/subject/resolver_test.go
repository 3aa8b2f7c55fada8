package subject

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/jitaccess/internal/idp"
	"github.com/org/jitaccess/internal/logging"
	"github.com/org/jitaccess/pkg/models"
)

type discardLogger struct{}

func (discardLogger) Debug(string, ...logging.F)        {}
func (discardLogger) Info(string, ...logging.F)         {}
func (discardLogger) Warn(string, ...logging.F)         {}
func (discardLogger) Error(string, error, ...logging.F) {}
func (d discardLogger) With(...logging.F) logging.Logger { return d }

func TestResolve_SplitsDirectAndJitGroupsAndDropsMissingExpiry(t *testing.T) {
	client := idp.NewMemoryClient()
	mapping := NewGroupMapping("jit-")

	adminKey, err := client.CreateGroup(context.Background(), "jit-prod-billing-admin", "jit-prod-billing-admin@example.com", "", "")
	require.NoError(t, err)
	require.NoError(t, client.AddMembership(context.Background(), adminKey, "user@example.com", time.Now().Add(time.Hour)))

	noExpiryKey, err := client.CreateGroup(context.Background(), "jit-prod-billing-noexpiry", "jit-prod-billing-noexpiry@example.com", "", "")
	require.NoError(t, err)
	require.NoError(t, client.AddMembership(context.Background(), noExpiryKey, "user@example.com", time.Time{}))

	engineeringKey, err := client.CreateGroup(context.Background(), "engineering", "engineering@example.com", "", "")
	require.NoError(t, err)
	require.NoError(t, client.AddMembership(context.Background(), engineeringKey, "user@example.com", time.Time{}))

	resolver := NewResolver(client, mapping, 4, discardLogger{})
	subject, err := resolver.Resolve(context.Background(), "user@example.com")
	require.NoError(t, err)

	var jitMemberships, groups int
	for _, p := range subject.Principals() {
		switch p.Kind {
		case models.PrincipalJitGroupMembership:
			jitMemberships++
			assert.Equal(t, "prod", p.GroupID.Environment)
			assert.Equal(t, "billing", p.GroupID.System)
			assert.Equal(t, "admin", p.GroupID.Name)
		case models.PrincipalGroup:
			groups++
		}
	}

	assert.Equal(t, 1, jitMemberships, "the no-expiry jit membership must be dropped, the expiring one kept")
	assert.Equal(t, 1, groups, "only the plain engineering group should be carried as a Group principal")
}

func TestResolve_ListFailureFailsResolution(t *testing.T) {
	resolver := NewResolver(failingListClient{}, NewGroupMapping("jit-"), 4, discardLogger{})
	_, err := resolver.Resolve(context.Background(), "user@example.com")
	assert.Error(t, err)
}

type failingListClient struct{ idp.Client }

func (failingListClient) ListMembershipsByUser(context.Context, string) ([]idp.Membership, error) {
	return nil, errListFailed
}

var errListFailed = assert.AnError
