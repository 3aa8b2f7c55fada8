package models

// Subject is an authenticated user plus every principal they carry into
// policy evaluation: the user itself, their group memberships, and any
// active JIT group memberships with expiry. Subjects live for one request.
type Subject struct {
	User       Principal
	principals map[PrincipalKey]Principal
}

// NewSubject builds a Subject for user, including the given extra principals.
// It always adds the user itself and the AuthenticatedUsers class, satisfying
// the invariant user ∈ principals.
func NewSubject(user Principal, extra ...Principal) Subject {
	s := Subject{
		User:       user,
		principals: make(map[PrincipalKey]Principal, len(extra)+2),
	}
	s.add(user)
	s.add(NewClassPrincipal(AuthenticatedUsers))
	for _, p := range extra {
		s.add(p)
	}
	return s
}

func (s *Subject) add(p Principal) {
	s.principals[p.Key()] = p
}

// Principals returns every principal the subject carries.
func (s Subject) Principals() []Principal {
	out := make([]Principal, 0, len(s.principals))
	for _, p := range s.principals {
		out = append(out, p)
	}
	return out
}

// Has reports whether the subject carries a principal with the given key.
func (s Subject) Has(p Principal) bool {
	_, ok := s.principals[p.Key()]
	return ok
}

// ActiveMembership returns the subject's active JitGroupMembership principal
// for groupID, if any.
func (s Subject) ActiveMembership(groupID JitGroupID) (Principal, bool) {
	for _, p := range s.principals {
		if p.Kind == PrincipalJitGroupMembership && p.GroupID.Equal(groupID) {
			return p, true
		}
	}
	return Principal{}, false
}
