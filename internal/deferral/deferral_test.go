package deferral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/pkg/models"
)

func TestDeferPickup_RoundTripsClaims(t *testing.T) {
	signer := NewJWTSigner([]byte("test-secret"))
	svc := New(signer, time.Hour)

	groupID := models.JitGroupID{Environment: "prod", System: "billing", Name: "admin"}
	justification := models.NewProperty("justification", "", models.PropertyTypeString, true, nil, nil)
	require.NoError(t, justification.Set("on-call incident"))

	token, err := svc.Defer(groupID, "user@example.com", []string{"bob@example.com", "alice@example.com"}, []*models.Property{justification})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Pickup(token)
	require.NoError(t, err)

	assert.Equal(t, "prod.billing.admin", claims.GroupID)
	assert.Equal(t, "user@example.com", claims.User)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, claims.Assignees, "assignees must be sorted")
	assert.Equal(t, "on-call incident", claims.Input["justification"])
}

func TestDefer_OmitsPropertiesWithoutAValue(t *testing.T) {
	signer := NewJWTSigner([]byte("test-secret"))
	svc := New(signer, time.Hour)

	unset := models.NewProperty("expiry", "", models.PropertyTypeDuration, true, nil, nil)
	groupID := models.JitGroupID{Environment: "prod", System: "billing", Name: "admin"}

	token, err := svc.Defer(groupID, "user@example.com", []string{"approver@example.com"}, []*models.Property{unset})
	require.NoError(t, err)

	claims, err := svc.Pickup(token)
	require.NoError(t, err)
	_, present := claims.Input["expiry"]
	assert.False(t, present, "a property with no value must not appear in the token's input claim")
}

func TestDefer_RejectsEmptyAssignees(t *testing.T) {
	svc := New(NewJWTSigner([]byte("test-secret")), time.Hour)

	groupID := models.JitGroupID{Environment: "prod", System: "billing", Name: "admin"}
	_, err := svc.Defer(groupID, "user@example.com", nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
}

func TestPickup_RejectsTokenSignedWithDifferentSecret(t *testing.T) {
	issuer := New(NewJWTSigner([]byte("secret-a")), time.Hour)
	verifier := New(NewJWTSigner([]byte("secret-b")), time.Hour)

	groupID := models.JitGroupID{Environment: "prod", System: "billing", Name: "admin"}
	token, err := issuer.Defer(groupID, "user@example.com", []string{"approver@example.com"}, nil)
	require.NoError(t, err)

	_, err = verifier.Pickup(token)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindTokenVerification))
}

func TestPickup_RejectsExpiredToken(t *testing.T) {
	signer := NewJWTSigner([]byte("test-secret"))
	svc := New(signer, -time.Minute)

	groupID := models.JitGroupID{Environment: "prod", System: "billing", Name: "admin"}
	token, err := svc.Defer(groupID, "user@example.com", []string{"approver@example.com"}, nil)
	require.NoError(t, err)

	_, err = svc.Pickup(token)
	assert.Error(t, err)
}

func TestPickup_RejectsGarbageToken(t *testing.T) {
	svc := New(NewJWTSigner([]byte("test-secret")), time.Hour)

	_, err := svc.Pickup("not-a-jwt-at-all")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindTokenVerification))
}
