package models

import (
	"fmt"
	"strings"
)

// JitGroupID uniquely identifies a JIT group by its position in the policy
// tree: environment.system.name. Equality is case-insensitive.
type JitGroupID struct {
	Environment string
	System      string
	Name        string
}

// String returns the canonical "env.system.name" representation.
func (id JitGroupID) String() string {
	return fmt.Sprintf("%s.%s.%s", id.Environment, id.System, id.Name)
}

// Equal compares two IDs case-insensitively.
func (id JitGroupID) Equal(other JitGroupID) bool {
	return strings.EqualFold(id.Environment, other.Environment) &&
		strings.EqualFold(id.System, other.System) &&
		strings.EqualFold(id.Name, other.Name)
}

// ParseJitGroupID parses the canonical "env.system.name" string produced by String.
func ParseJitGroupID(s string) (JitGroupID, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return JitGroupID{}, fmt.Errorf("invalid JIT group id %q: expected env.system.name", s)
	}
	return JitGroupID{Environment: parts[0], System: parts[1], Name: parts[2]}, nil
}
