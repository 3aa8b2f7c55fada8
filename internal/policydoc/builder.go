package policydoc

import (
	"fmt"
	"strings"
	"time"

	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

type builder struct {
	issues []ValidationIssue
}

func (b *builder) errorf(path, format string, args ...any) {
	b.issues = append(b.issues, ValidationIssue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (b *builder) warnf(path, format string, args ...any) {
	b.issues = append(b.issues, ValidationIssue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (b *builder) buildEnvironment(doc document, metadata policy.Metadata) (*policy.EnvironmentPolicy, error) {
	acl, err := b.buildACL("acl", doc.ACL)
	if err != nil {
		b.errorf("acl", "%v", err)
		return nil, err
	}
	constraints, err := b.buildConstraints(doc.Name, doc.Constraints)
	if err != nil {
		b.errorf(doc.Name, "%v", err)
		return nil, err
	}

	env, err := policy.NewEnvironmentPolicy(doc.Name, doc.Description, acl, constraints, metadata.Source, metadata.LastModified)
	if err != nil {
		b.errorf(doc.Name, "%v", err)
		return nil, err
	}

	for _, sysDoc := range doc.Systems {
		sys, err := b.buildSystem(doc.Name, sysDoc)
		if err != nil {
			b.errorf(doc.Name+"."+sysDoc.Name, "%v", err)
			continue
		}
		if err := env.Add(sys); err != nil {
			b.errorf(doc.Name+"."+sysDoc.Name, "%v", err)
		}
	}

	return env, nil
}

func (b *builder) buildSystem(envName string, doc systemDoc) (*policy.SystemPolicy, error) {
	path := envName + "." + doc.Name
	acl, err := b.buildACL(path+".acl", doc.ACL)
	if err != nil {
		return nil, err
	}
	constraints, err := b.buildConstraints(path, doc.Constraints)
	if err != nil {
		return nil, err
	}
	sys, err := policy.NewSystemPolicy(doc.Name, doc.Description, acl, constraints)
	if err != nil {
		return nil, err
	}

	for _, groupDoc := range doc.Groups {
		group, err := b.buildGroup(path, groupDoc)
		if err != nil {
			b.errorf(path+"."+groupDoc.Name, "%v", err)
			continue
		}
		if err := sys.Add(group); err != nil {
			b.errorf(path+"."+groupDoc.Name, "%v", err)
		}
	}

	return sys, nil
}

func (b *builder) buildGroup(systemPath string, doc groupDoc) (*policy.JitGroupPolicy, error) {
	path := systemPath + "." + doc.Name
	acl, err := b.buildACL(path+".acl", doc.ACL)
	if err != nil {
		return nil, err
	}
	constraints, err := b.buildConstraints(path, doc.Constraints)
	if err != nil {
		return nil, err
	}
	privileges, err := b.buildPrivileges(path, doc.Privileges)
	if err != nil {
		return nil, err
	}
	return policy.NewJitGroupPolicy(doc.Name, doc.Description, acl, constraints, privileges)
}

func (b *builder) buildACL(path string, entries []aclEntryDoc) (*policy.AccessControlList, error) {
	if entries == nil {
		return nil, nil // absent ACL: allow-all
	}
	out := make([]policy.AccessControlEntry, 0, len(entries))
	for i, e := range entries {
		principal, err := parsePrincipal(e.Principal)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", path, i, err)
		}
		mask, err := parsePermissions(e.Permissions)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", path, i, err)
		}
		switch strings.ToLower(e.Effect) {
		case "allow":
			out = append(out, policy.Allow(principal, mask))
		case "deny":
			out = append(out, policy.Deny(principal, mask))
		default:
			return nil, fmt.Errorf("%s[%d]: unknown effect %q", path, i, e.Effect)
		}
	}
	return policy.NewAccessControlList(out...), nil
}

func (b *builder) buildConstraints(path string, doc constraintsDoc) (map[models.ConstraintClass][]policy.Constraint, error) {
	result := make(map[models.ConstraintClass][]policy.Constraint)
	join, err := b.buildConstraintList(path+".constraints.join", doc.Join)
	if err != nil {
		return nil, err
	}
	if len(join) > 0 {
		result[models.ConstraintClassJoin] = join
	}
	approve, err := b.buildConstraintList(path+".constraints.approve", doc.Approve)
	if err != nil {
		return nil, err
	}
	if len(approve) > 0 {
		result[models.ConstraintClassApprove] = approve
	}
	return result, nil
}

func (b *builder) buildConstraintList(path string, docs []constraintDoc) ([]policy.Constraint, error) {
	out := make([]policy.Constraint, 0, len(docs))
	for i, d := range docs {
		c, err := b.buildConstraint(d)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", path, i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (b *builder) buildConstraint(d constraintDoc) (policy.Constraint, error) {
	switch strings.ToLower(d.Type) {
	case "expression":
		input := make([]*models.Property, 0, len(d.Input))
		for _, p := range d.Input {
			prop, err := p.build()
			if err != nil {
				return nil, err
			}
			input = append(input, prop)
		}
		return policy.NewExpressionConstraint(d.Name, d.DisplayName, d.Expression, input)
	case "expiry":
		switch {
		case d.Fixed != "":
			dur, err := time.ParseDuration(d.Fixed)
			if err != nil {
				return nil, fmt.Errorf("invalid fixed duration %q: %w", d.Fixed, err)
			}
			return policy.NewFixedExpiryConstraint(d.Name, d.DisplayName, dur), nil
		case d.Min != "" && d.Max != "":
			min, err := time.ParseDuration(d.Min)
			if err != nil {
				return nil, fmt.Errorf("invalid min duration %q: %w", d.Min, err)
			}
			max, err := time.ParseDuration(d.Max)
			if err != nil {
				return nil, fmt.Errorf("invalid max duration %q: %w", d.Max, err)
			}
			return policy.NewRangeExpiryConstraint(d.Name, d.DisplayName, min, max)
		default:
			return nil, fmt.Errorf("expiry constraint %q: must set either fixed, or both min and max", d.Name)
		}
	default:
		return nil, fmt.Errorf("unknown constraint type %q", d.Type)
	}
}

func (b *builder) buildPrivileges(path string, docs []privilegeDoc) ([]models.Privilege, error) {
	out := make([]models.Privilege, 0, len(docs))
	for i, d := range docs {
		if strings.ToLower(d.Type) != "iam_role_binding" {
			return nil, fmt.Errorf("%s.privileges[%d]: unknown privilege type %q", path, i, d.Type)
		}
		out = append(out, models.IamRoleBinding{
			Resource:    models.Resource{Type: d.ResourceType, ID: d.ResourceID},
			Role:        d.Role,
			Description: d.Description,
			Condition:   d.Condition,
		})
	}
	return out, nil
}

func (p propertyDoc) build() (*models.Property, error) {
	var typ models.PropertyType
	switch strings.ToLower(p.Type) {
	case "string":
		typ = models.PropertyTypeString
	case "bool":
		typ = models.PropertyTypeBool
	case "long":
		typ = models.PropertyTypeLong
	case "duration":
		typ = models.PropertyTypeDuration
	default:
		return nil, fmt.Errorf("property %q: unknown type %q", p.Name, p.Type)
	}
	return models.NewProperty(p.Name, p.DisplayName, typ, p.Required, p.Min, p.Max), nil
}

func parsePrincipal(s string) (models.Principal, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return models.Principal{}, fmt.Errorf("principal %q: expected \"kind:value\"", s)
	}
	switch strings.ToLower(kind) {
	case "user":
		return models.NewUserPrincipal(value), nil
	case "group":
		return models.NewGroupPrincipal(value), nil
	case "class":
		return models.NewClassPrincipal(models.Class(value)), nil
	default:
		return models.Principal{}, fmt.Errorf("principal %q: unknown kind %q", s, kind)
	}
}

var permissionNames = map[string]models.PolicyPermission{
	"VIEW":           models.PermissionView,
	"JOIN":           models.PermissionJoin,
	"APPROVE_SELF":   models.PermissionApproveSelf,
	"APPROVE_OTHERS": models.PermissionApproveOthers,
	"EXPORT":         models.PermissionExport,
	"RECONCILE":      models.PermissionReconcile,
}

func parsePermissions(names []string) (models.PolicyPermission, error) {
	var mask models.PolicyPermission
	for _, name := range names {
		bit, ok := permissionNames[strings.ToUpper(name)]
		if !ok {
			return 0, fmt.Errorf("unknown permission %q", name)
		}
		mask |= bit
	}
	return mask, nil
}
