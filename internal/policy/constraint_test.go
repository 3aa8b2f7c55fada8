package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/jitaccess/pkg/models"
)

func TestFixedExpiryConstraint_AlwaysSatisfiedNoInput(t *testing.T) {
	c := NewFixedExpiryConstraint("expiry", "Fixed", 2*time.Hour)
	check := c.CreateCheck()
	assert.Empty(t, check.Input())

	satisfied, err := check.Execute()
	require.NoError(t, err)
	assert.True(t, satisfied)

	ec := check.(*expiryCheck)
	d, ok := ec.Expiry()
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, d)
}

func TestRangeExpiryConstraint_RequiresInputWithinBounds(t *testing.T) {
	c, err := NewRangeExpiryConstraint("expiry", "Ranged", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	check := c.CreateCheck()
	require.Len(t, check.Input(), 1)

	satisfied, err := check.Execute()
	require.NoError(t, err)
	assert.False(t, satisfied, "unset property should not satisfy a ranged constraint")

	require.NoError(t, check.Input()[0].Set("30m"))
	satisfied, err = check.Execute()
	require.NoError(t, err)
	assert.True(t, satisfied)

	ec := check.(*expiryCheck)
	d, ok := ec.Expiry()
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, d)
}

func TestRangeExpiryConstraint_RejectsOutOfRangeInput(t *testing.T) {
	c, err := NewRangeExpiryConstraint("expiry", "Ranged", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	check := c.CreateCheck()
	err = check.Input()[0].Set("2h")
	assert.Error(t, err)
}

func TestNewRangeExpiryConstraint_RejectsInvertedBounds(t *testing.T) {
	_, err := NewRangeExpiryConstraint("expiry", "Ranged", time.Hour, 15*time.Minute)
	assert.Error(t, err)
}

func TestExtractExpiry_FirstSatisfiedWins(t *testing.T) {
	first := NewFixedExpiryConstraint("first", "", time.Hour)
	second := NewFixedExpiryConstraint("second", "", 2*time.Hour)

	checks := []Check{first.CreateCheck(), second.CreateCheck()}
	d, err := ExtractExpiry(checks)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)
}

func TestExtractExpiry_NoneSatisfiedIsError(t *testing.T) {
	c, err := NewRangeExpiryConstraint("expiry", "", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = ExtractExpiry([]Check{c.CreateCheck()})
	assert.Error(t, err)
}

func TestExpressionConstraint_EvaluatesAgainstInputAndSubject(t *testing.T) {
	justification := models.NewProperty("justification", "Justification", models.PropertyTypeString, true, nil, nil)

	c, err := NewExpressionConstraint("business-hours", "Business hours only",
		`input.justification != "" && "team@example.com" in subject.groups`,
		[]*models.Property{justification})
	require.NoError(t, err)

	check := c.CreateCheck()
	check.AddContext("subject", map[string]any{"groups": []string{"team@example.com"}})

	satisfied, err := check.Execute()
	require.NoError(t, err)
	assert.False(t, satisfied, "input.justification is absent, so the property lookup is empty")

	require.NoError(t, check.Input()[0].Set("on-call incident"))
	satisfied, err = check.Execute()
	require.NoError(t, err)
	assert.True(t, satisfied)
}

func TestExpressionConstraint_EvaluationErrorSurfacesAsError(t *testing.T) {
	c, err := NewExpressionConstraint("divides", "", `1 % (len(subject.groups) - 1) == 1`, nil)
	require.NoError(t, err)

	check := c.CreateCheck()
	check.AddContext("subject", map[string]any{"groups": []string{"single@example.com"}})

	_, err = check.Execute()
	assert.Error(t, err)
}

func TestExpressionConstraint_InvalidExpressionFailsAtConstruction(t *testing.T) {
	_, err := NewExpressionConstraint("bad", "", `input.( not valid`, nil)
	assert.Error(t, err)
}
