package policy

import (
	"fmt"
	"regexp"

	"github.com/org/jitaccess/pkg/models"
)

var jitGroupNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// JitGroupPolicy is a leaf of the policy tree: the unit a subject joins,
// carrying the privileges a successful join grants.
type JitGroupPolicy struct {
	node
	privileges []models.Privilege
}

// NewJitGroupPolicy creates a JitGroupPolicy. name must match jitGroupNamePattern.
func NewJitGroupPolicy(
	name, description string,
	acl *AccessControlList,
	constraints map[models.ConstraintClass][]Constraint,
	privileges []models.Privilege,
) (*JitGroupPolicy, error) {
	if !jitGroupNamePattern.MatchString(name) {
		return nil, fmt.Errorf("group name %q must match %s", name, jitGroupNamePattern)
	}
	return &JitGroupPolicy{
		node:       newNode(name, description, acl, constraints),
		privileges: privileges,
	}, nil
}

// Privileges returns the bindings a successful join to this group provisions.
func (g *JitGroupPolicy) Privileges() []models.Privilege {
	return g.privileges
}

// System walks up to the enclosing SystemPolicy. It panics if called before
// the group has been added to one.
func (g *JitGroupPolicy) System() *SystemPolicy {
	parent, ok := g.Parent()
	if !ok {
		panic(fmt.Sprintf("group %q has no parent system", g.name))
	}
	sys, ok := parent.(*SystemPolicy)
	if !ok {
		panic(fmt.Sprintf("group %q: parent is not a SystemPolicy", g.name))
	}
	return sys
}

// ID returns the fully-qualified identifier of this group, derived from its
// position in the tree.
func (g *JitGroupPolicy) ID() models.JitGroupID {
	sys := g.System()
	return models.JitGroupID{
		Environment: sys.Environment().Name(),
		System:      sys.Name(),
		Name:        g.name,
	}
}
