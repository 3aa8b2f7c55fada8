package resourcemanager

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type resourceKey struct {
	resourceType string
	resourceID   string
}

// MemoryClient is an in-memory Client, the reference backend this service
// runs against when no external resource manager is configured. It applies
// ModifyIamPolicy atomically under its own lock, so it never needs the
// conflict-retry behavior a real resource manager's optimistic concurrency
// would require.
type MemoryClient struct {
	mu       sync.Mutex
	policies map[resourceKey]Policy
}

// NewMemoryClient creates an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{policies: make(map[resourceKey]Policy)}
}

func (c *MemoryClient) GetIamPolicy(_ context.Context, resourceType, resourceID string) (Policy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.policies[resourceKey{resourceType, resourceID}]
	if !ok {
		return Policy{}, nil
	}
	return copyPolicy(p), nil
}

func (c *MemoryClient) ModifyIamPolicy(_ context.Context, resourceType, resourceID string, mutate Mutator, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := resourceKey{resourceType, resourceID}
	current := copyPolicy(c.policies[key])
	c.policies[key] = copyPolicy(mutate(current))
	return nil
}

func copyPolicy(p Policy) Policy {
	out := Policy{Bindings: make([]Binding, len(p.Bindings))}
	for i, b := range p.Bindings {
		out.Bindings[i] = Binding{
			Role:      b.Role,
			Members:   append([]string(nil), b.Members...),
			Condition: b.Condition,
		}
	}
	return out
}

// Dump renders every resource's bindings as "type/id" -> role -> members,
// sorted, for test assertions and debug inspection.
func (c *MemoryClient) Dump() map[string]map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]map[string][]string)
	for key, policy := range c.policies {
		roles := make(map[string][]string)
		for _, b := range policy.Bindings {
			members := append([]string(nil), b.Members...)
			sort.Strings(members)
			roles[b.Role] = members
		}
		out[fmt.Sprintf("%s/%s", key.resourceType, key.resourceID)] = roles
	}
	return out
}
