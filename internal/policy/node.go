package policy

import (
	"fmt"

	"github.com/org/jitaccess/pkg/models"
)

// Policy is the common read interface every tree node (EnvironmentPolicy,
// SystemPolicy, JitGroupPolicy) implements. It mirrors the original
// AbstractPolicy/Policy split: node provides the shared implementation,
// concrete types add their own children and identity constraints.
type Policy interface {
	Name() string
	Description() string
	Parent() (Policy, bool)
	AccessControlList() (*AccessControlList, bool)
	Metadata() Metadata
	Constraints(class models.ConstraintClass) []Constraint
	IsAllowedByACL(subject models.Subject, mask models.PolicyPermission) bool
	EffectiveConstraints(class models.ConstraintClass) []Constraint
}

// node is the embeddable base every concrete policy type uses. Parent links
// are write-once and weak (a non-owning back-reference): children are owned
// by their parent's child map, and setParent enforces it can only be called
// once, never pointing a node at itself.
type node struct {
	name        string
	description string
	acl         *AccessControlList
	constraints map[models.ConstraintClass][]Constraint
	parent      Policy
	metadata    *Metadata // nil unless this node supplies its own (the root/EnvironmentPolicy)
}

func newNode(name, description string, acl *AccessControlList, constraints map[models.ConstraintClass][]Constraint) node {
	if constraints == nil {
		constraints = make(map[models.ConstraintClass][]Constraint)
	}
	return node{name: name, description: description, acl: acl, constraints: constraints}
}

func (n *node) Name() string        { return n.name }
func (n *node) Description() string { return n.description }

func (n *node) Parent() (Policy, bool) {
	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

func (n *node) AccessControlList() (*AccessControlList, bool) {
	return n.acl, n.acl != nil
}

// Metadata returns this node's own metadata if set, otherwise its parent's.
// A node with neither (no metadata and no parent) is a programming error.
func (n *node) Metadata() Metadata {
	if n.metadata != nil {
		return *n.metadata
	}
	if n.parent != nil {
		return n.parent.Metadata()
	}
	panic("policy node has no metadata and no parent")
}

// Constraints returns this node's own constraints for class, not including
// inherited ones. Use EffectiveConstraints for the inherited view.
func (n *node) Constraints(class models.ConstraintClass) []Constraint {
	return n.constraints[class]
}

// selfRef exposes the underlying *node so setParent can detect a policy
// being made its own parent, regardless of the concrete wrapping type.
type selfRef interface {
	selfNode() *node
}

func (n *node) selfNode() *node { return n }

// setParent assigns the parent link. It may be called exactly once, and the
// parent must not be the node itself.
func (n *node) setParent(parent Policy) error {
	if parent == nil {
		return fmt.Errorf("policy %q: parent must not be nil", n.name)
	}
	if ref, ok := parent.(selfRef); ok && ref.selfNode() == n {
		return fmt.Errorf("policy %q: parent must not be the same policy", n.name)
	}
	if n.parent != nil {
		return fmt.Errorf("policy %q: parent has already been set", n.name)
	}
	n.parent = parent
	return nil
}

// IsAllowedByACL reports whether subject is granted mask by this node's ACL
// AND every ancestor's ACL (independent AND up the chain). A missing ACL at
// any level contributes allow-all for that level.
func (n *node) IsAllowedByACL(subject models.Subject, mask models.PolicyPermission) bool {
	if !n.acl.IsAllowed(subject, mask) {
		return false
	}
	if n.parent != nil {
		return n.parent.IsAllowedByACL(subject, mask)
	}
	return true
}

// EffectiveConstraints returns the constraints of class, with this node's
// entries shadowing a parent's entry of the same name and otherwise unioned,
// ordered child-first in declaration order.
func (n *node) EffectiveConstraints(class models.ConstraintClass) []Constraint {
	own := n.constraints[class]
	if n.parent == nil {
		return append([]Constraint(nil), own...)
	}

	shadowed := make(map[string]bool, len(own))
	for _, c := range own {
		shadowed[c.Name()] = true
	}

	result := append([]Constraint(nil), own...)
	for _, c := range n.parent.EffectiveConstraints(class) {
		if !shadowed[c.Name()] {
			result = append(result, c)
		}
	}
	return result
}
