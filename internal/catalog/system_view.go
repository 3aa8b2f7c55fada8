package catalog

import (
	"sort"

	"github.com/org/jitaccess/internal/analysis"
	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

// SystemView is a SystemPolicy scoped to the subject that looked it up.
type SystemView struct {
	catalog *Catalog
	subject models.Subject
	policy  *policy.SystemPolicy
}

// Name returns the system's name.
func (v *SystemView) Name() string { return v.policy.Name() }

// Groups lists every group in this system the subject can view, sorted by
// group id.
func (v *SystemView) Groups() []*JitGroupView {
	var out []*JitGroupView
	for _, g := range v.policy.Groups() {
		if !g.IsAllowedByACL(v.subject, models.PermissionView) {
			continue
		}
		out = append(out, newJitGroupView(v.catalog, v.subject, g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID().String() < out[j].ID().String() })
	return out
}

// Group looks up one group by name, or apperrors.ResourceNotFound if it
// does not exist or the subject cannot view it.
func (v *SystemView) Group(name string) (*JitGroupView, error) {
	g, ok := v.policy.Group(name)
	if !ok || !g.IsAllowedByACL(v.subject, models.PermissionView) {
		return nil, apperrors.ResourceNotFound("group " + name + " not found")
	}
	return newJitGroupView(v.catalog, v.subject, g), nil
}

func newJitGroupView(catalog *Catalog, subject models.Subject, g *policy.JitGroupPolicy) *JitGroupView {
	return &JitGroupView{catalog: catalog, subject: subject, policy: g}
}

// analyze is a small helper shared by JitGroupView to build a fresh
// PolicyAnalysis against this view's group.
func (v *JitGroupView) analyze(permissions models.PolicyPermission) *analysis.PolicyAnalysis {
	return analysis.New(v.policy, v.subject, permissions)
}
