// Package deferral implements the signed-token protocol a self-approval
// pipeline uses to hand a pending join off to an approver: the token
// carries enough of the original request (group, requester, input) that
// picking it up later can re-verify and execute the join without the
// approver needing to resubmit anything.
package deferral

import (
	"sort"
	"time"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/pkg/models"
)

// Claims is the payload carried by a deferral token.
type Claims struct {
	// Assignees are the approvers the token was issued to, sorted.
	Assignees []string
	// GroupID is the canonical "env.system.name" id of the group being joined.
	GroupID string
	// User is the requester's identity.
	User string
	// Input carries the requester's supplied property values, keyed by
	// property name. Values without one are omitted rather than encoded as
	// null.
	Input map[string]any
}

// TokenSigner signs and verifies deferral tokens. A concrete implementation
// (jwtSigner) backs it with HS256 JWTs; tests can substitute a fake.
type TokenSigner interface {
	Sign(claims Claims, expiry time.Time) (string, error)
	Verify(token string) (Claims, error)
}

// Service wraps a TokenSigner with the higher-level Defer/Pickup operations
// the join pipeline calls.
type Service struct {
	signer TokenSigner
	ttl    time.Duration
}

// New creates a Service. ttl bounds how long an issued token remains valid.
func New(signer TokenSigner, ttl time.Duration) *Service {
	return &Service{signer: signer, ttl: ttl}
}

// Defer issues a token for groupID, requested by user, addressed to
// assignees, carrying the requester's populated input properties.
func (s *Service) Defer(groupID models.JitGroupID, user string, assignees []string, input []*models.Property) (string, error) {
	if len(assignees) == 0 {
		return "", apperrors.InvalidInput("assignees", "at least one assignee is required")
	}

	sorted := append([]string(nil), assignees...)
	sort.Strings(sorted)

	values := make(map[string]any, len(input))
	for _, p := range input {
		if p.HasValue() {
			values[p.Name] = p.Get()
		}
	}

	return s.signer.Sign(Claims{
		Assignees: sorted,
		GroupID:   groupID.String(),
		User:      user,
		Input:     values,
	}, time.Now().Add(s.ttl))
}

// Pickup verifies token and returns the claims it carries, or an
// apperrors.TokenVerification error if the signature or expiry check
// fails.
func (s *Service) Pickup(token string) (Claims, error) {
	return s.signer.Verify(token)
}
