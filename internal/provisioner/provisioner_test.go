package provisioner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/idp"
	"github.com/org/jitaccess/internal/logging"
	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/internal/resourcemanager"
	"github.com/org/jitaccess/internal/subject"
	"github.com/org/jitaccess/pkg/models"
)

type discardLogger struct{}

func (discardLogger) Debug(string, ...logging.F)         {}
func (discardLogger) Info(string, ...logging.F)          {}
func (discardLogger) Warn(string, ...logging.F)          {}
func (discardLogger) Error(string, error, ...logging.F)  {}
func (d discardLogger) With(...logging.F) logging.Logger { return d }

func newGroupPolicy(t *testing.T, privileges ...models.Privilege) *policy.JitGroupPolicy {
	t.Helper()
	env, err := policy.NewEnvironmentPolicy("prod", "", nil, nil, "src", time.Now())
	require.NoError(t, err)
	sys, err := policy.NewSystemPolicy("billing", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, env.Add(sys))
	group, err := policy.NewJitGroupPolicy("admin", "billing admins", nil, nil, privileges)
	require.NoError(t, err)
	require.NoError(t, sys.Add(group))
	return group
}

func TestProvisionAccess_CreatesGroupAndGrantsMembership(t *testing.T) {
	idpClient := idp.NewMemoryClient()
	rmClient := resourcemanager.NewMemoryClient()
	mapping := subject.NewGroupMapping("jit-")

	p := New(idpClient, rmClient, mapping, "example.com", discardLogger{})

	group := newGroupPolicy(t, models.IamRoleBinding{
		Resource: models.Resource{Type: "project", ID: "proj-1"},
		Role:     "roles/viewer",
	})

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, p.ProvisionAccess(context.Background(), group, "user@example.com", expiry))

	key := idp.GroupKey(mapping.GroupEmail(group.ID(), "example.com"))
	g, err := idpClient.GetGroup(context.Background(), key)
	require.NoError(t, err)

	tag, ok := FromTaggedDescription(g.Description)
	require.True(t, ok)
	assert.NotEqual(t, ZeroChecksum, tag)

	dump := rmClient.Dump()
	policy, ok := dump["project/proj-1"]
	require.True(t, ok)
	assert.Equal(t, []string{mapping.GroupEmail(group.ID(), "example.com")}, policy["roles/viewer"])
}

func TestProvisionAccess_RepeatedCallsAreIdempotentNoOp(t *testing.T) {
	idpClient := idp.NewMemoryClient()
	rmClient := resourcemanager.NewMemoryClient()
	mapping := subject.NewGroupMapping("jit-")
	p := New(idpClient, rmClient, mapping, "example.com", discardLogger{})

	group := newGroupPolicy(t, models.IamRoleBinding{
		Resource: models.Resource{Type: "project", ID: "proj-1"},
		Role:     "roles/viewer",
	})

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, p.ProvisionAccess(context.Background(), group, "user@example.com", expiry))

	key := idp.GroupKey(mapping.GroupEmail(group.ID(), "example.com"))
	before, err := idpClient.GetGroup(context.Background(), key)
	require.NoError(t, err)

	require.NoError(t, p.ProvisionAccess(context.Background(), group, "user2@example.com", expiry))

	after, err := idpClient.GetGroup(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, before.Description, after.Description, "checksum tag should be unchanged since the bindings did not change")
}

// flakyRMClient wraps a resourcemanager.Client and fails the first
// failCount calls to ModifyIamPolicy with a conflict before delegating.
type flakyRMClient struct {
	resourcemanager.Client
	failCount int
	calls     int
}

func (c *flakyRMClient) ModifyIamPolicy(ctx context.Context, resourceType, resourceID string, mutate resourcemanager.Mutator, rationale string) error {
	c.calls++
	if c.calls <= c.failCount {
		return apperrors.New(apperrors.KindConflict, "concurrent modification")
	}
	return c.Client.ModifyIamPolicy(ctx, resourceType, resourceID, mutate, rationale)
}

func TestProvisionAccess_RetriesIAMUpdateOnConflictThenSucceeds(t *testing.T) {
	idpClient := idp.NewMemoryClient()
	rm := &flakyRMClient{Client: resourcemanager.NewMemoryClient(), failCount: 2}
	mapping := subject.NewGroupMapping("jit-")
	p := New(idpClient, rm, mapping, "example.com", discardLogger{})

	group := newGroupPolicy(t, models.IamRoleBinding{
		Resource: models.Resource{Type: "project", ID: "proj-1"},
		Role:     "roles/viewer",
	})

	require.NoError(t, p.ProvisionAccess(context.Background(), group, "user@example.com", time.Now().Add(time.Hour)))
	assert.Equal(t, 3, rm.calls)
}

func TestProvisionAccess_GivesUpAfterExhaustingRetries(t *testing.T) {
	idpClient := idp.NewMemoryClient()
	rm := &flakyRMClient{Client: resourcemanager.NewMemoryClient(), failCount: maxIAMConflictRetries}
	mapping := subject.NewGroupMapping("jit-")
	p := New(idpClient, rm, mapping, "example.com", discardLogger{})

	group := newGroupPolicy(t, models.IamRoleBinding{
		Resource: models.Resource{Type: "project", ID: "proj-1"},
		Role:     "roles/viewer",
	})

	err := p.ProvisionAccess(context.Background(), group, "user@example.com", time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
	assert.Equal(t, maxIAMConflictRetries, rm.calls)
}
