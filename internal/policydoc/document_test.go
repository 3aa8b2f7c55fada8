package policydoc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

const validDocument = `
name: prod
description: production environment
acl:
  - effect: allow
    principal: "class:authenticatedUsers"
    permissions: ["VIEW"]
systems:
  - name: billing
    description: billing system
    groups:
      - name: admin
        description: billing admins
        acl:
          - effect: allow
            principal: "group:billing-admins@example.com"
            permissions: ["VIEW", "JOIN", "APPROVE_SELF"]
        constraints:
          join:
            - type: expiry
              name: expiry
              display_name: Requested duration
              min: 15m
              max: 1h
            - type: expression
              name: justification
              display_name: Justification required
              expression: 'input.justification != ""'
              input:
                - name: justification
                  display_name: Justification
                  type: string
                  required: true
        privileges:
          - type: iam_role_binding
            resource_type: project
            resource_id: proj-1
            role: roles/viewer
            description: billing viewer access
`

func TestFromString_BuildsFullTree(t *testing.T) {
	env, issues, err := FromString(validDocument, policy.Metadata{Source: "test", LastModified: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, "prod", env.Name())
	require.Len(t, env.Systems(), 1)

	sys := env.Systems()[0]
	assert.Equal(t, "billing", sys.Name())
	require.Len(t, sys.Groups(), 1)

	group := sys.Groups()[0]
	assert.Equal(t, "admin", group.Name())
	require.Len(t, group.Privileges(), 1)

	binding, ok := group.Privileges()[0].(models.IamRoleBinding)
	require.True(t, ok)
	assert.Equal(t, "roles/viewer", binding.Role)

	joinConstraints := group.Constraints(models.ConstraintClassJoin)
	require.Len(t, joinConstraints, 2)
}

func TestFromString_RejectsMalformedYAML(t *testing.T) {
	_, _, err := FromString("name: [this is not", policy.Metadata{})
	assert.Error(t, err)
}

func TestFromString_UnknownPermissionIsFatal(t *testing.T) {
	doc := `
name: prod
acl:
  - effect: allow
    principal: "class:authenticatedUsers"
    permissions: ["FLY"]
systems: []
`
	_, issues, err := FromString(doc, policy.Metadata{})
	assert.Error(t, err)
	require.NotEmpty(t, issues)
	assert.Equal(t, SeverityError, issues[0].Severity)
}

func TestFromString_InvalidChildIsNonFatalAndSkipped(t *testing.T) {
	doc := `
name: prod
systems:
  - name: billing
    groups:
      - name: "not a valid name!"
      - name: admin
`
	env, issues, err := FromString(doc, policy.Metadata{})
	require.NoError(t, err, "one bad group must not abort the whole build")
	require.NotEmpty(t, issues)

	sys, ok := env.System("billing")
	require.True(t, ok)
	require.Len(t, sys.Groups(), 1)
	assert.Equal(t, "admin", sys.Groups()[0].Name())
}

func TestLint_ReportsIssuesWithoutFailingOnWarnings(t *testing.T) {
	issues, err := Lint(validDocument)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestLint_SurfacesFatalErrorAlongsideIssues(t *testing.T) {
	doc := `
name: prod
systems:
  - name: billing
    acl:
      - effect: maybe
        principal: "class:authenticatedUsers"
        permissions: ["VIEW"]
    groups: []
`
	_, err := Lint(doc)
	assert.Error(t, err)
}

func TestExportFromString_RoundTrips(t *testing.T) {
	env, _, err := FromString(validDocument, policy.Metadata{Source: "test", LastModified: time.Now()})
	require.NoError(t, err)

	rendered, err := Export(env)
	require.NoError(t, err)

	reparsed, issues, err := FromString(rendered, policy.Metadata{Source: "test", LastModified: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, env.Name(), reparsed.Name())
	require.Len(t, reparsed.Systems(), 1)

	originalGroup := env.Systems()[0].Groups()[0]
	reparsedGroup := reparsed.Systems()[0].Groups()[0]

	originalExpr := findExpressionConstraint(t, originalGroup.Constraints(models.ConstraintClassJoin))
	reparsedExpr := findExpressionConstraint(t, reparsedGroup.Constraints(models.ConstraintClassJoin))
	assert.Equal(t, originalExpr.Expression(), reparsedExpr.Expression())
	assert.Equal(t, len(originalExpr.InputProperties()), len(reparsedExpr.InputProperties()))
}

func findExpressionConstraint(t *testing.T, constraints []policy.Constraint) *policy.ExpressionConstraint {
	t.Helper()
	for _, c := range constraints {
		if ec, ok := c.(*policy.ExpressionConstraint); ok {
			return ec
		}
	}
	t.Fatal("no expression constraint found")
	return nil
}
