package policy

import (
	"fmt"
	"regexp"
	"time"

	"github.com/org/jitaccess/pkg/models"
)

var environmentNamePattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,16}$`)

// EnvironmentPolicy is the root of a policy tree: a named scope (typically
// a cloud project or account boundary) containing an ordered set of systems.
// It always carries its own Metadata, since it has no parent to delegate to.
type EnvironmentPolicy struct {
	node
	systems     map[string]*SystemPolicy
	systemOrder []string
}

// NewEnvironmentPolicy creates an EnvironmentPolicy. name must match
// environmentNamePattern.
func NewEnvironmentPolicy(
	name, description string,
	acl *AccessControlList,
	constraints map[models.ConstraintClass][]Constraint,
	source string,
	lastModified time.Time,
) (*EnvironmentPolicy, error) {
	if !environmentNamePattern.MatchString(name) {
		return nil, fmt.Errorf("environment name %q must match %s", name, environmentNamePattern)
	}
	n := newNode(name, description, acl, constraints)
	n.metadata = &Metadata{Source: source, LastModified: lastModified}
	return &EnvironmentPolicy{node: n, systems: make(map[string]*SystemPolicy)}, nil
}

// Add appends system as a child, failing if its name duplicates an existing
// one. It takes ownership of system's parent link.
func (e *EnvironmentPolicy) Add(system *SystemPolicy) error {
	if _, exists := e.systems[system.Name()]; exists {
		return fmt.Errorf("environment %q: duplicate system %q", e.name, system.Name())
	}
	if err := system.setParent(e); err != nil {
		return err
	}
	e.systems[system.Name()] = system
	e.systemOrder = append(e.systemOrder, system.Name())
	return nil
}

// Systems returns every system in declaration order.
func (e *EnvironmentPolicy) Systems() []*SystemPolicy {
	out := make([]*SystemPolicy, 0, len(e.systemOrder))
	for _, name := range e.systemOrder {
		out = append(out, e.systems[name])
	}
	return out
}

// System looks up a system by name.
func (e *EnvironmentPolicy) System(name string) (*SystemPolicy, bool) {
	s, ok := e.systems[name]
	return s, ok
}
