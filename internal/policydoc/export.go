package policydoc

import (
	"fmt"

	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

func exportEnvironment(env *policy.EnvironmentPolicy) document {
	doc := document{
		Name:        env.Name(),
		Description: env.Description(),
		ACL:         exportACL(env),
		Constraints: exportConstraints(env),
		Systems:     make([]systemDoc, 0, len(env.Systems())),
	}
	for _, sys := range env.Systems() {
		doc.Systems = append(doc.Systems, exportSystem(sys))
	}
	return doc
}

func exportSystem(sys *policy.SystemPolicy) systemDoc {
	doc := systemDoc{
		Name:        sys.Name(),
		Description: sys.Description(),
		ACL:         exportACL(sys),
		Constraints: exportConstraints(sys),
		Groups:      make([]groupDoc, 0, len(sys.Groups())),
	}
	for _, g := range sys.Groups() {
		doc.Groups = append(doc.Groups, exportGroup(g))
	}
	return doc
}

func exportGroup(g *policy.JitGroupPolicy) groupDoc {
	doc := groupDoc{
		Name:        g.Name(),
		Description: g.Description(),
		ACL:         exportACL(g),
		Constraints: exportConstraints(g),
	}
	for _, priv := range g.Privileges() {
		if binding, ok := priv.(models.IamRoleBinding); ok {
			doc.Privileges = append(doc.Privileges, privilegeDoc{
				Type:         "iam_role_binding",
				ResourceType: binding.Resource.Type,
				ResourceID:   binding.Resource.ID,
				Role:         binding.Role,
				Description:  binding.Description,
				Condition:    binding.Condition,
			})
		}
	}
	return doc
}

func exportACL(p policy.Policy) []aclEntryDoc {
	acl, ok := p.AccessControlList()
	if !ok {
		return nil
	}
	out := make([]aclEntryDoc, 0, len(acl.Entries))
	for _, e := range acl.Entries {
		effect := "allow"
		if e.Effect == policy.EffectDeny {
			effect = "deny"
		}
		out = append(out, aclEntryDoc{
			Effect:      effect,
			Principal:   exportPrincipal(e.Principal),
			Permissions: exportPermissions(e.Mask),
		})
	}
	return out
}

func exportPrincipal(p models.Principal) string {
	switch p.Kind {
	case models.PrincipalUser:
		return "user:" + p.Value
	case models.PrincipalGroup:
		return "group:" + p.Value
	case models.PrincipalClass:
		return "class:" + p.Value
	default:
		return fmt.Sprintf("unknown:%s", p.Value)
	}
}

var exportablePermissions = []struct {
	name string
	bit  models.PolicyPermission
}{
	{"VIEW", models.PermissionView},
	{"JOIN", models.PermissionJoin},
	{"APPROVE_SELF", models.PermissionApproveSelf},
	{"APPROVE_OTHERS", models.PermissionApproveOthers},
	{"EXPORT", models.PermissionExport},
	{"RECONCILE", models.PermissionReconcile},
}

func exportPermissions(mask models.PolicyPermission) []string {
	var out []string
	for _, p := range exportablePermissions {
		if mask.Intersects(p.bit) {
			out = append(out, p.name)
		}
	}
	return out
}

func exportConstraints(p policy.Policy) constraintsDoc {
	return constraintsDoc{
		Join:    exportConstraintList(p.Constraints(models.ConstraintClassJoin)),
		Approve: exportConstraintList(p.Constraints(models.ConstraintClassApprove)),
	}
}

func exportPropertyType(t models.PropertyType) string {
	switch t {
	case models.PropertyTypeBool:
		return "bool"
	case models.PropertyTypeLong:
		return "long"
	case models.PropertyTypeDuration:
		return "duration"
	default:
		return "string"
	}
}

func exportConstraintList(constraints []policy.Constraint) []constraintDoc {
	out := make([]constraintDoc, 0, len(constraints))
	for _, c := range constraints {
		switch tc := c.(type) {
		case *policy.ExpiryConstraint:
			d := constraintDoc{Type: "expiry", Name: tc.Name(), DisplayName: tc.DisplayName()}
			if tc.IsFixed() {
				d.Fixed = tc.MinDuration().String()
			} else {
				d.Min = tc.MinDuration().String()
				d.Max = tc.MaxDuration().String()
			}
			out = append(out, d)
		case *policy.ExpressionConstraint:
			d := constraintDoc{
				Type:        "expression",
				Name:        tc.Name(),
				DisplayName: tc.DisplayName(),
				Expression:  tc.Expression(),
			}
			for _, p := range tc.InputProperties() {
				d.Input = append(d.Input, propertyDoc{
					Name:        p.Name,
					DisplayName: p.DisplayName,
					Type:        exportPropertyType(p.Type),
					Required:    p.Required,
					Min:         p.MinInclusive,
					Max:         p.MaxInclusive,
				})
			}
			out = append(out, d)
		default:
			out = append(out, constraintDoc{Type: "unknown", Name: c.Name(), DisplayName: c.DisplayName()})
		}
	}
	return out
}
