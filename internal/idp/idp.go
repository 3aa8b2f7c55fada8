// Package idp declares the identity-provider contract the core depends on
// to resolve group memberships and provision JIT groups. Concrete
// implementations (e.g. a Cloud Identity or Workspace client) live outside
// this module; tests use an in-memory fake satisfying the same interface.
package idp

import (
	"context"
	"time"
)

// MembershipID identifies one membership record returned by a listing call.
type MembershipID string

// GroupKey identifies a group the IdP understands.
type GroupKey string

// Membership is one row of a ListMembershipsByUser result: a reference the
// caller must resolve further via GetMembership to learn its expiry.
type Membership struct {
	ID      MembershipID
	GroupID GroupKey
}

// MembershipDetails is the resolved view of a single membership, including
// the earliest expiry across any time-bound roles it grants. A nil Expiry
// means the membership does not expire.
type MembershipDetails struct {
	GroupID GroupKey
	Expiry  *time.Time
}

// Group is the IdP's view of a group's identity and description. The
// description is where the provisioner's checksum tag lives.
type Group struct {
	Key         GroupKey
	Email       string
	Description string
}

// Client is the identity-provider contract. All methods are safe for
// concurrent use.
type Client interface {
	// ListMembershipsByUser returns every membership record for user. A
	// failure here fails subject resolution outright.
	ListMembershipsByUser(ctx context.Context, user string) ([]Membership, error)

	// GetMembership resolves a single membership's expiry. Implementations
	// return an apperrors.ResourceNotFound error if the membership expired
	// or was removed between listing and lookup.
	GetMembership(ctx context.Context, id MembershipID) (MembershipDetails, error)

	// GetGroup fetches a group's current description (for checksum
	// comparison), returning apperrors.ResourceNotFound if absent.
	GetGroup(ctx context.Context, key GroupKey) (Group, error)

	// CreateGroup creates a security group with the given email and
	// description if no group with that email exists yet.
	CreateGroup(ctx context.Context, groupID, email, displayName, description string) (GroupKey, error)

	// AddMembership grants user membership in group, expiring at expiry.
	// A zero expiry means a non-expiring membership.
	AddMembership(ctx context.Context, group GroupKey, user string, expiry time.Time) error

	// PatchGroup rewrites a group's description, used as the commit point
	// after IAM bindings have been reconciled to match it.
	PatchGroup(ctx context.Context, group GroupKey, description string) error

	// ListGroups returns every group key the IdP currently holds. A
	// reconciliation sweep uses this to find groups that no longer
	// correspond to any policy group.
	ListGroups(ctx context.Context) ([]GroupKey, error)
}
