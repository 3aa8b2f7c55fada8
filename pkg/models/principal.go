package models

import (
	"strings"
	"time"
)

// PrincipalKind identifies the variant of a Principal.
type PrincipalKind int

const (
	// PrincipalUser identifies an individual authenticated user.
	PrincipalUser PrincipalKind = iota
	// PrincipalGroup identifies a regular (non-JIT) group membership.
	PrincipalGroup
	// PrincipalJitGroupMembership identifies a time-bounded JIT group membership.
	PrincipalJitGroupMembership
	// PrincipalClass identifies a built-in class of principals, e.g. AuthenticatedUsers.
	PrincipalClass
)

// Class is a built-in, non-identity principal class.
type Class string

// AuthenticatedUsers is the class every authenticated user belongs to.
const AuthenticatedUsers Class = "authenticatedUsers"

// Principal is a tagged variant: User(email), Group(email),
// JitGroupMembership(JitGroupId, expiry), or Class(AuthenticatedUsers).
//
// Equality is by (Kind, Value); JitGroupMembership also carries an Expiry
// that is not part of its identity.
type Principal struct {
	Kind    PrincipalKind
	Value   string    // canonicalized email for User/Group, class name for Class
	GroupID JitGroupID // set only when Kind == PrincipalJitGroupMembership
	Expiry  time.Time  // set only when Kind == PrincipalJitGroupMembership
}

// NewUserPrincipal creates a User principal, canonicalizing the email to lowercase.
func NewUserPrincipal(email string) Principal {
	return Principal{Kind: PrincipalUser, Value: canonicalizeEmail(email)}
}

// NewGroupPrincipal creates a Group principal, canonicalizing the email to lowercase.
func NewGroupPrincipal(email string) Principal {
	return Principal{Kind: PrincipalGroup, Value: canonicalizeEmail(email)}
}

// NewClassPrincipal creates a Class principal.
func NewClassPrincipal(c Class) Principal {
	return Principal{Kind: PrincipalClass, Value: string(c)}
}

// NewJitGroupMembershipPrincipal creates a JitGroupMembership principal with an expiry.
func NewJitGroupMembershipPrincipal(id JitGroupID, expiry time.Time) Principal {
	return Principal{Kind: PrincipalJitGroupMembership, Value: id.String(), GroupID: id, Expiry: expiry}
}

// Key returns the (kind, value) identity used for equality and set membership,
// deliberately excluding Expiry so two memberships of the same group collapse
// to a single principal regardless of their expiry.
func (p Principal) Key() PrincipalKey {
	return PrincipalKey{Kind: p.Kind, Value: p.Value}
}

// Equal compares two principals by identity (kind, value), ignoring Expiry.
func (p Principal) Equal(other Principal) bool {
	return p.Key() == other.Key()
}

// PrincipalKey is the comparable identity of a Principal, suitable as a map key.
type PrincipalKey struct {
	Kind  PrincipalKind
	Value string
}

func canonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
