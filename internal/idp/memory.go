package idp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/org/jitaccess/internal/apperrors"
)

// memoryMembership is one grant recorded against a user.
type memoryMembership struct {
	id     MembershipID
	group  GroupKey
	user   string
	expiry *time.Time
}

// MemoryClient is an in-memory Client, the reference backend this service
// runs against when no external identity provider is configured (local
// development, integration tests). It is safe for concurrent use.
type MemoryClient struct {
	mu          sync.Mutex
	groups      map[GroupKey]Group
	memberships map[MembershipID]memoryMembership
	byUser      map[string][]MembershipID
	nextID      int
}

// NewMemoryClient creates an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		groups:      make(map[GroupKey]Group),
		memberships: make(map[MembershipID]memoryMembership),
		byUser:      make(map[string][]MembershipID),
	}
}

func (c *MemoryClient) ListMembershipsByUser(_ context.Context, user string) ([]Membership, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := append([]MembershipID(nil), c.byUser[user]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Membership, 0, len(ids))
	for _, id := range ids {
		m, ok := c.memberships[id]
		if !ok {
			continue
		}
		out = append(out, Membership{ID: m.id, GroupID: m.group})
	}
	return out, nil
}

func (c *MemoryClient) GetMembership(_ context.Context, id MembershipID) (MembershipDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.memberships[id]
	if !ok {
		return MembershipDetails{}, apperrors.ResourceNotFound(fmt.Sprintf("membership %q not found", id))
	}
	if m.expiry != nil && m.expiry.Before(time.Now()) {
		delete(c.memberships, id)
		return MembershipDetails{}, apperrors.ResourceNotFound(fmt.Sprintf("membership %q expired", id))
	}
	return MembershipDetails{GroupID: m.group, Expiry: m.expiry}, nil
}

func (c *MemoryClient) GetGroup(_ context.Context, key GroupKey) (Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[key]
	if !ok {
		return Group{}, apperrors.ResourceNotFound(fmt.Sprintf("group %q not found", key))
	}
	return g, nil
}

func (c *MemoryClient) CreateGroup(_ context.Context, _, email, _ string, description string) (GroupKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := GroupKey(email)
	if existing, ok := c.groups[key]; ok {
		return existing.Key, nil
	}
	c.groups[key] = Group{Key: key, Email: email, Description: description}
	return key, nil
}

func (c *MemoryClient) AddMembership(_ context.Context, group GroupKey, user string, expiry time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.groups[group]; !ok {
		return apperrors.ResourceNotFound(fmt.Sprintf("group %q not found", group))
	}

	c.nextID++
	id := MembershipID(fmt.Sprintf("m-%d", c.nextID))
	var exp *time.Time
	if !expiry.IsZero() {
		e := expiry
		exp = &e
	}
	c.memberships[id] = memoryMembership{id: id, group: group, user: user, expiry: exp}
	c.byUser[user] = append(c.byUser[user], id)
	return nil
}

func (c *MemoryClient) PatchGroup(_ context.Context, group GroupKey, description string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[group]
	if !ok {
		return apperrors.ResourceNotFound(fmt.Sprintf("group %q not found", group))
	}
	g.Description = description
	c.groups[group] = g
	return nil
}

// Groups returns every group key currently known, sorted. Used by
// reconciliation sweeps that need the full IdP-side inventory rather than
// one group at a time.
func (c *MemoryClient) Groups() []GroupKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]GroupKey, 0, len(c.groups))
	for k := range c.groups {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ListGroups satisfies Client. It never fails: the in-memory backend has no
// transport to fail on.
func (c *MemoryClient) ListGroups(_ context.Context) ([]GroupKey, error) {
	return c.Groups(), nil
}
