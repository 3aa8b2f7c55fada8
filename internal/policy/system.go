package policy

import (
	"fmt"
	"regexp"

	"github.com/org/jitaccess/pkg/models"
)

var systemNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// SystemPolicy groups related JIT groups under an EnvironmentPolicy, e.g.
// the groups governing access to one application or service.
type SystemPolicy struct {
	node
	groups     map[string]*JitGroupPolicy
	groupOrder []string
}

// NewSystemPolicy creates a SystemPolicy. name must match systemNamePattern.
func NewSystemPolicy(
	name, description string,
	acl *AccessControlList,
	constraints map[models.ConstraintClass][]Constraint,
) (*SystemPolicy, error) {
	if !systemNamePattern.MatchString(name) {
		return nil, fmt.Errorf("system name %q must match %s", name, systemNamePattern)
	}
	return &SystemPolicy{
		node:   newNode(name, description, acl, constraints),
		groups: make(map[string]*JitGroupPolicy),
	}, nil
}

// Add appends group as a child, failing if its name duplicates an existing
// one. It takes ownership of group's parent link.
func (s *SystemPolicy) Add(group *JitGroupPolicy) error {
	if _, exists := s.groups[group.Name()]; exists {
		return fmt.Errorf("system %q: duplicate group %q", s.name, group.Name())
	}
	if err := group.setParent(s); err != nil {
		return err
	}
	s.groups[group.Name()] = group
	s.groupOrder = append(s.groupOrder, group.Name())
	return nil
}

// Groups returns every group in declaration order.
func (s *SystemPolicy) Groups() []*JitGroupPolicy {
	out := make([]*JitGroupPolicy, 0, len(s.groupOrder))
	for _, name := range s.groupOrder {
		out = append(out, s.groups[name])
	}
	return out
}

// Group looks up a group by name.
func (s *SystemPolicy) Group(name string) (*JitGroupPolicy, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// Environment walks up to the enclosing EnvironmentPolicy. It panics if
// called before the system has been added to one, which should never
// happen on a tree built through Add.
func (s *SystemPolicy) Environment() *EnvironmentPolicy {
	parent, ok := s.Parent()
	if !ok {
		panic(fmt.Sprintf("system %q has no parent environment", s.name))
	}
	env, ok := parent.(*EnvironmentPolicy)
	if !ok {
		panic(fmt.Sprintf("system %q: parent is not an EnvironmentPolicy", s.name))
	}
	return env
}
