// Package policydoc loads the YAML policy document format into a policy
// tree, and renders a tree back to its canonical document form.
package policydoc

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/org/jitaccess/internal/policy"
)

// Severity classifies a ValidationIssue.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// ValidationIssue reports one problem found while building a policy tree
// from a document, without necessarily aborting the build: a SeverityError
// issue on a system or group means that node and its subtree were left out
// of the tree, one on the environment itself means no tree was built, and
// SeverityWarning issues are non-fatal.
type ValidationIssue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Path, i.Message)
}

// document mirrors the on-disk YAML shape of an environment policy.
type document struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	ACL         []aclEntryDoc  `yaml:"acl,omitempty"`
	Constraints constraintsDoc `yaml:"constraints,omitempty"`
	Systems     []systemDoc    `yaml:"systems"`
}

type systemDoc struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	ACL         []aclEntryDoc  `yaml:"acl,omitempty"`
	Constraints constraintsDoc `yaml:"constraints,omitempty"`
	Groups      []groupDoc     `yaml:"groups"`
}

type groupDoc struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	ACL         []aclEntryDoc  `yaml:"acl,omitempty"`
	Constraints constraintsDoc `yaml:"constraints,omitempty"`
	Privileges  []privilegeDoc `yaml:"privileges,omitempty"`
}

type aclEntryDoc struct {
	Effect      string   `yaml:"effect"`
	Principal   string   `yaml:"principal"` // "user:alice@example.com", "group:...", "class:authenticatedUsers"
	Permissions []string `yaml:"permissions"`
}

type constraintsDoc struct {
	Join    []constraintDoc `yaml:"join,omitempty"`
	Approve []constraintDoc `yaml:"approve,omitempty"`
}

type constraintDoc struct {
	Type        string          `yaml:"type"` // "expression" | "expiry"
	Name        string          `yaml:"name"`
	DisplayName string          `yaml:"display_name"`
	Expression  string          `yaml:"expression,omitempty"`
	Input       []propertyDoc   `yaml:"input,omitempty"`
	Fixed       string          `yaml:"fixed,omitempty"`
	Min         string          `yaml:"min,omitempty"`
	Max         string          `yaml:"max,omitempty"`
}

type propertyDoc struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Type        string   `yaml:"type"` // "string" | "bool" | "long" | "duration"
	Required    bool     `yaml:"required"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
}

type privilegeDoc struct {
	Type        string `yaml:"type"` // "iam_role_binding"
	ResourceType string `yaml:"resource_type"`
	ResourceID  string `yaml:"resource_id"`
	Role        string `yaml:"role"`
	Description string `yaml:"description"`
	Condition   string `yaml:"condition,omitempty"`
}

// FromString parses text and builds an EnvironmentPolicy tree, tagging it
// with metadata (source, last-modified). Build failures that prevent
// producing a tree are returned as err; issues collects everything found,
// fatal or not.
func FromString(text string, metadata policy.Metadata) (*policy.EnvironmentPolicy, []ValidationIssue, error) {
	var doc document
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, nil, fmt.Errorf("parsing policy document: %w", err)
	}

	b := &builder{}
	env, err := b.buildEnvironment(doc, metadata)
	if err != nil {
		return nil, b.issues, err
	}
	return env, b.issues, nil
}

// Lint validates text without requiring it to fully build (e.g. it still
// reports issues found before a fatal error, rather than stopping at the
// first one). See builder.buildEnvironment, which keeps collecting issues
// after recoverable ones. Like the loader, it returns an error when the
// document cannot be built or when any issue has SeverityError.
func Lint(text string) ([]ValidationIssue, error) {
	_, issues, err := FromString(text, policy.Metadata{Source: "lint", LastModified: time.Time{}})
	if err != nil {
		return issues, err
	}
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return issues, fmt.Errorf("%s", issue)
		}
	}
	return issues, nil
}

// Export renders env back to its canonical document form. Round-tripping
// Export -> FromString reproduces an equivalent tree, modulo comments and
// key ordering, which YAML does not preserve.
func Export(env *policy.EnvironmentPolicy) (string, error) {
	doc := exportEnvironment(env)
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("rendering policy document: %w", err)
	}
	return string(out), nil
}
