package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

func newGroup(t *testing.T, acl *policy.AccessControlList, constraints map[models.ConstraintClass][]policy.Constraint) *policy.JitGroupPolicy {
	t.Helper()
	env, err := policy.NewEnvironmentPolicy("prod", "", nil, nil, "src", time.Now())
	require.NoError(t, err)
	sys, err := policy.NewSystemPolicy("billing", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, env.Add(sys))
	group, err := policy.NewJitGroupPolicy("admin", "", acl, constraints, nil)
	require.NoError(t, err)
	require.NoError(t, sys.Add(group))
	return group
}

func TestVerifyAccessAllowed_DeniedByACL(t *testing.T) {
	acl := policy.NewAccessControlList()
	group := newGroup(t, acl, nil)
	subject := models.NewSubject(models.NewUserPrincipal("u@example.com"))

	result := New(group, subject, models.PermissionJoin).Execute()
	err := result.VerifyAccessAllowed(Default)
	require.Error(t, err)
}

func TestVerifyAccessAllowed_IgnoreConstraintsSkipsThem(t *testing.T) {
	expiry, err := policy.NewRangeExpiryConstraint("expiry", "", 15*time.Minute, time.Hour)
	require.NoError(t, err)
	constraints := map[models.ConstraintClass][]policy.Constraint{
		models.ConstraintClassJoin: {expiry},
	}
	group := newGroup(t, nil, constraints)
	subject := models.NewSubject(models.NewUserPrincipal("u@example.com"))

	result := New(group, subject, models.PermissionJoin).ApplyConstraints(models.ConstraintClassJoin).Execute()
	assert.NoError(t, result.VerifyAccessAllowed(IgnoreConstraints))
	assert.Error(t, result.VerifyAccessAllowed(Default), "unsatisfied range constraint should fail Default")
}

func TestInput_IsStableAcrossCallsAndFeedsExecute(t *testing.T) {
	expiry, err := policy.NewRangeExpiryConstraint("expiry", "", 15*time.Minute, time.Hour)
	require.NoError(t, err)
	constraints := map[models.ConstraintClass][]policy.Constraint{
		models.ConstraintClassJoin: {expiry},
	}
	group := newGroup(t, nil, constraints)
	subject := models.NewSubject(models.NewUserPrincipal("u@example.com"))

	a := New(group, subject, models.PermissionJoin).ApplyConstraints(models.ConstraintClassJoin)

	firstCall := a.Input()
	secondCall := a.Input()
	require.Len(t, firstCall, 1)
	require.Len(t, secondCall, 1)
	assert.Same(t, firstCall[0], secondCall[0], "Input must return the same Property instances on every call")

	require.NoError(t, firstCall[0].Set("30m"))

	result := a.Execute()
	require.NoError(t, result.VerifyAccessAllowed(Default))
	require.Len(t, result.Satisfied, 1)

	duration, err := policy.ExtractExpiry(result.Checks())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, duration, "value set via Input() before Execute must survive into evaluation")
}

func TestExecute_SharesPropertyAcrossConstraintsWithSameName(t *testing.T) {
	expressionA, err := policy.NewExpressionConstraint("a", "", `input.justification != ""`,
		[]*models.Property{models.NewProperty("justification", "", models.PropertyTypeString, true, nil, nil)})
	require.NoError(t, err)
	expressionB, err := policy.NewExpressionConstraint("b", "", `len(input.justification) > 3`,
		[]*models.Property{models.NewProperty("justification", "", models.PropertyTypeString, true, nil, nil)})
	require.NoError(t, err)

	constraints := map[models.ConstraintClass][]policy.Constraint{
		models.ConstraintClassJoin: {expressionA, expressionB},
	}
	group := newGroup(t, nil, constraints)
	subject := models.NewSubject(models.NewUserPrincipal("u@example.com"))

	a := New(group, subject, models.PermissionJoin).ApplyConstraints(models.ConstraintClassJoin)

	input := a.Input()
	require.Len(t, input, 1, "both constraints declare a property named justification, so it must appear once")

	require.NoError(t, input[0].Set("incident response"))
	result := a.Execute()
	assert.Len(t, result.Satisfied, 2)
	assert.Empty(t, result.Unsatisfied)
}

func TestExecute_PopulatesActiveMembership(t *testing.T) {
	group := newGroup(t, nil, nil)
	id := group.ID()
	expiry := time.Now().Add(time.Hour)
	membership := models.NewJitGroupMembershipPrincipal(id, expiry)
	subject := models.NewSubject(models.NewUserPrincipal("u@example.com"), membership)

	result := New(group, subject, models.PermissionView).Execute()
	require.NotNil(t, result.ActiveMembership)
	assert.True(t, result.ActiveMembership.GroupID.Equal(id))
}

func TestExecute_ConstraintFailureIsCapturedNotPanicked(t *testing.T) {
	failing, err := policy.NewExpressionConstraint("boom", "", `1 % (len(subject.groups) - 1) == 1`, nil)
	require.NoError(t, err)
	constraints := map[models.ConstraintClass][]policy.Constraint{
		models.ConstraintClassJoin: {failing},
	}
	group := newGroup(t, nil, constraints)
	subject := models.NewSubject(models.NewUserPrincipal("u@example.com"), models.NewGroupPrincipal("team@example.com"))

	result := New(group, subject, models.PermissionJoin).ApplyConstraints(models.ConstraintClassJoin).Execute()
	assert.Len(t, result.Failed, 1)

	err = result.VerifyAccessAllowed(Default)
	assert.Error(t, err)
}
