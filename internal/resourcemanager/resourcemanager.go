// Package resourcemanager declares the contract the provisioner uses to
// reconcile IAM bindings on whatever resources the catalog's privileges
// name (projects, folders, organizations, or any other resource type).
package resourcemanager

import "context"

// Binding is one principal-role grant on a resource, optionally gated by a
// condition expression the resource manager understands natively (e.g. a
// CEL expression for Google Cloud IAM conditions).
type Binding struct {
	Role      string
	Members   []string
	Condition string
}

// Policy is the full set of bindings on one resource.
type Policy struct {
	Bindings []Binding
}

// Mutator transforms the current policy into the desired one. It is given
// a defensive copy and returns the policy to write back.
type Mutator func(current Policy) Policy

// Client is the resource-manager contract.
type Client interface {
	// GetIamPolicy fetches the current policy for resource.
	GetIamPolicy(ctx context.Context, resourceType, resourceID string) (Policy, error)

	// ModifyIamPolicy performs a read-modify-write update of resource's IAM
	// policy: it fetches the current policy, applies mutate, and writes the
	// result back. rationale is attached to the underlying audit trail
	// where the resource manager supports one. Implementations retry
	// transparently on concurrent-modification conflicts up to their own
	// bounded limit and surface exhaustion as apperrors.Conflict.
	ModifyIamPolicy(ctx context.Context, resourceType, resourceID string, mutate Mutator, rationale string) error
}
