package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

type fakeProvisioner struct {
	calls []struct {
		member string
		expiry time.Time
	}
	err error
}

func (f *fakeProvisioner) ProvisionAccess(_ context.Context, _ *policy.JitGroupPolicy, member string, expiry time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, struct {
		member string
		expiry time.Time
	}{member, expiry})
	return nil
}

func buildCatalog(t *testing.T, groupACL *policy.AccessControlList, constraints map[models.ConstraintClass][]policy.Constraint, prov Provisioner) (*Catalog, *policy.JitGroupPolicy) {
	t.Helper()
	env, err := policy.NewEnvironmentPolicy("prod", "", nil, nil, "src", time.Now())
	require.NoError(t, err)
	sys, err := policy.NewSystemPolicy("billing", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, env.Add(sys))
	group, err := policy.NewJitGroupPolicy("admin", "billing admins", groupACL, constraints, nil)
	require.NoError(t, err)
	require.NoError(t, sys.Add(group))

	source := staticSource{trees: map[string]*policy.EnvironmentPolicy{"prod": env}}
	return New(source, prov), group
}

type staticSource struct {
	trees map[string]*policy.EnvironmentPolicy
}

func (s staticSource) Environments(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.trees))
	for n := range s.trees {
		names = append(names, n)
	}
	return names, nil
}

func (s staticSource) Lookup(_ context.Context, name string) (*policy.EnvironmentPolicy, error) {
	return s.trees[name], nil
}

func groupView(t *testing.T, cat *Catalog, subject models.Subject, group *policy.JitGroupPolicy) *JitGroupView {
	t.Helper()
	view, err := cat.Group(context.Background(), subject, group.ID())
	require.NoError(t, err)
	return view
}

func TestJoin_SelfApprovableWithFixedExpiryExecutesImmediately(t *testing.T) {
	user := models.NewUserPrincipal("user@example.com")
	acl := policy.NewAccessControlList(
		policy.Allow(models.NewClassPrincipal(models.AuthenticatedUsers),
			models.PermissionView|models.PermissionJoin|models.PermissionApproveSelf),
	)
	constraints := map[models.ConstraintClass][]policy.Constraint{
		models.ConstraintClassJoin: {policy.NewFixedExpiryConstraint("expiry", "", time.Hour)},
	}
	prov := &fakeProvisioner{}
	cat, group := buildCatalog(t, acl, constraints, prov)
	subject := models.NewSubject(user)

	view := groupView(t, cat, subject, group)
	op := view.Join()
	assert.False(t, op.RequiresApproval())

	principal, err := op.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, group.ID().String(), principal.GroupID.String())
	require.Len(t, prov.calls, 1)
	assert.Equal(t, "user@example.com", prov.calls[0].member)
}

func TestJoin_RequiresApprovalWhenNoApproveSelfPermission(t *testing.T) {
	user := models.NewUserPrincipal("user@example.com")
	acl := policy.NewAccessControlList(
		policy.Allow(models.NewClassPrincipal(models.AuthenticatedUsers),
			models.PermissionView|models.PermissionJoin),
	)
	prov := &fakeProvisioner{}
	cat, group := buildCatalog(t, acl, nil, prov)
	subject := models.NewSubject(user)

	view := groupView(t, cat, subject, group)
	op := view.Join()
	assert.True(t, op.RequiresApproval())

	_, err := op.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAccessDenied))
	assert.Empty(t, prov.calls, "Execute must not provision a join that requires approval")
}

func TestJoin_VerifyForApprovalRejectsSubjectWithNoJoinPermission(t *testing.T) {
	user := models.NewUserPrincipal("user@example.com")
	acl := policy.NewAccessControlList(
		policy.Allow(models.NewClassPrincipal(models.AuthenticatedUsers), models.PermissionView),
	)
	prov := &fakeProvisioner{}
	cat, group := buildCatalog(t, acl, nil, prov)
	subject := models.NewSubject(user)

	view := groupView(t, cat, subject, group)
	op := view.Join()
	require.True(t, op.RequiresApproval())

	err := op.VerifyForApproval()
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAccessDenied))
}

func TestJoin_VerifyForApprovalRejectsUnsatisfiedJoinConstraint(t *testing.T) {
	user := models.NewUserPrincipal("user@example.com")
	acl := policy.NewAccessControlList(
		policy.Allow(models.NewClassPrincipal(models.AuthenticatedUsers), models.PermissionView|models.PermissionJoin),
	)
	constraints := map[models.ConstraintClass][]policy.Constraint{
		models.ConstraintClassJoin: {mustRangeExpiry(t, 15*time.Minute, time.Hour)},
	}
	prov := &fakeProvisioner{}
	cat, group := buildCatalog(t, acl, constraints, prov)
	subject := models.NewSubject(user)

	view := groupView(t, cat, subject, group)
	op := view.Join()
	require.True(t, op.RequiresApproval())

	err := op.VerifyForApproval()
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConstraintUnsatisfied))
}

func TestJoin_InputValuesSetAfterInputSurviveIntoExecute(t *testing.T) {
	user := models.NewUserPrincipal("user@example.com")
	acl := policy.NewAccessControlList(
		policy.Allow(models.NewClassPrincipal(models.AuthenticatedUsers),
			models.PermissionView|models.PermissionJoin|models.PermissionApproveSelf),
	)
	constraints := map[models.ConstraintClass][]policy.Constraint{
		models.ConstraintClassJoin: {mustRangeExpiry(t, 15*time.Minute, time.Hour)},
	}
	prov := &fakeProvisioner{}
	cat, group := buildCatalog(t, acl, constraints, prov)
	subject := models.NewSubject(user)

	view := groupView(t, cat, subject, group)
	op := view.Join()

	input := op.Input()
	require.Len(t, input, 1)
	require.NoError(t, input[0].Set("45m"))

	principal, err := op.Execute(context.Background())
	require.NoError(t, err, "the value set on the property returned by Input must be visible to Execute")
	require.Len(t, prov.calls, 1)
	assert.WithinDuration(t, time.Now().Add(45*time.Minute), principal.Expiry, time.Second)
}

func TestJoin_ExecuteFailsIfConstraintNeverSatisfied(t *testing.T) {
	user := models.NewUserPrincipal("user@example.com")
	acl := policy.NewAccessControlList(
		policy.Allow(models.NewClassPrincipal(models.AuthenticatedUsers),
			models.PermissionView|models.PermissionJoin|models.PermissionApproveSelf),
	)
	constraints := map[models.ConstraintClass][]policy.Constraint{
		models.ConstraintClassJoin: {mustRangeExpiry(t, 15*time.Minute, time.Hour)},
	}
	prov := &fakeProvisioner{}
	cat, group := buildCatalog(t, acl, constraints, prov)
	subject := models.NewSubject(user)

	view := groupView(t, cat, subject, group)
	op := view.Join()

	_, err := op.Execute(context.Background())
	assert.Error(t, err)
	assert.Empty(t, prov.calls)
}

func mustRangeExpiry(t *testing.T, min, max time.Duration) *policy.ExpiryConstraint {
	t.Helper()
	c, err := policy.NewRangeExpiryConstraint("expiry", "", min, max)
	require.NoError(t, err)
	return c
}
