package policy

import "github.com/org/jitaccess/pkg/models"

// Constraint is a named, checkable rule attached to a policy node. The two
// concrete kinds the core requires are ExpressionConstraint (arbitrary
// boolean expressions over input/subject attributes) and ExpiryConstraint
// (bounds on the requested membership duration).
type Constraint interface {
	Name() string
	DisplayName() string
	// CreateCheck returns a fresh Check bound to a new Context, so that one
	// Constraint instance can be evaluated concurrently by multiple analyses.
	CreateCheck() Check
}

// Check is one evaluation of a Constraint against a particular Context.
type Check interface {
	Constraint() Constraint
	// Input lists the Properties this check needs populated before Execute,
	// in declaration order.
	Input() []*models.Property
	// AddContext supplies a named value (e.g. "subject") the check may read
	// in addition to its declared Input properties.
	AddContext(name string, value any)
	// Execute evaluates the constraint against the populated Input
	// properties, returning an error only when evaluation itself could not
	// complete (the analysis reports such a constraint as Failed, and
	// VerifyAccessAllowed as apperrors.ConstraintFailed); an
	// unsatisfied-but-well-formed constraint returns (false, nil).
	Execute() (bool, error)
}

// Context accumulates named values (subject attributes, pre-supplied input)
// a Check's Execute can read in addition to its declared Input properties.
type Context struct {
	values map[string]any
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Set stores a named value, overwriting any previous value for name.
func (c *Context) Set(name string, value any) {
	c.values[name] = value
}

// Get returns the value for name and whether it was set.
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}
