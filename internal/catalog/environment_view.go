package catalog

import (
	"sort"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/internal/policydoc"
	"github.com/org/jitaccess/pkg/models"
)

// EnvironmentView is an EnvironmentPolicy scoped to the subject that looked
// it up.
type EnvironmentView struct {
	catalog *Catalog
	subject models.Subject
	policy  *policy.EnvironmentPolicy
}

// Name returns the environment's name.
func (v *EnvironmentView) Name() string { return v.policy.Name() }

// Systems lists every system in this environment the subject can view,
// sorted by name.
func (v *EnvironmentView) Systems() []*SystemView {
	var out []*SystemView
	for _, sys := range v.policy.Systems() {
		if sys.IsAllowedByACL(v.subject, models.PermissionView) {
			out = append(out, &SystemView{catalog: v.catalog, subject: v.subject, policy: sys})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// System looks up one system by name, or apperrors.ResourceNotFound if it
// does not exist or the subject cannot view it.
func (v *EnvironmentView) System(name string) (*SystemView, error) {
	sys, ok := v.policy.System(name)
	if !ok || !sys.IsAllowedByACL(v.subject, models.PermissionView) {
		return nil, apperrors.ResourceNotFound("system " + name + " not found")
	}
	return &SystemView{catalog: v.catalog, subject: v.subject, policy: sys}, nil
}

// CanExport reports whether the subject may export this environment's
// policy document.
func (v *EnvironmentView) CanExport() bool {
	return v.policy.IsAllowedByACL(v.subject, models.PermissionExport)
}

// Export renders the canonical policy document for this environment, or an
// apperrors.AccessDenied error if the subject lacks EXPORT.
func (v *EnvironmentView) Export() (string, error) {
	if !v.CanExport() {
		return "", apperrors.AccessDenied("not permitted to export this environment's policy")
	}
	return policydoc.Export(v.policy)
}

// CanReconcile reports whether the subject may trigger reconciliation for
// this environment.
func (v *EnvironmentView) CanReconcile() bool {
	return v.policy.IsAllowedByACL(v.subject, models.PermissionReconcile)
}

// Policy returns the underlying policy tree, for callers (reconciliation)
// that need to walk it directly rather than through the view's per-system
// ACL filtering.
func (v *EnvironmentView) Policy() *policy.EnvironmentPolicy {
	return v.policy
}
