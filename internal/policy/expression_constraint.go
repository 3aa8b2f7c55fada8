package policy

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/org/jitaccess/pkg/models"
)

// ExpressionConstraint is satisfied when a boolean expression over
// input.<name> and subject.<attr> evaluates true. The expression is
// compiled once at construction and reused by every Check.
type ExpressionConstraint struct {
	name        string
	displayName string
	expression  string
	input       []*models.Property
	program     *vm.Program
}

// NewExpressionConstraint compiles expression and returns the constraint, or
// an error if compilation fails.
func NewExpressionConstraint(name, displayName, expression string, input []*models.Property) (*ExpressionConstraint, error) {
	env := map[string]any{
		"input":   map[string]any{},
		"subject": map[string]any{},
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("constraint %q: invalid expression: %w", name, err)
	}
	return &ExpressionConstraint{
		name:        name,
		displayName: displayName,
		expression:  expression,
		input:       input,
		program:     program,
	}, nil
}

func (c *ExpressionConstraint) Name() string        { return c.name }
func (c *ExpressionConstraint) DisplayName() string { return c.displayName }

// Expression returns the source text the constraint was compiled from.
func (c *ExpressionConstraint) Expression() string { return c.expression }

// InputProperties returns the declared input properties, in order.
func (c *ExpressionConstraint) InputProperties() []*models.Property { return c.input }

func (c *ExpressionConstraint) CreateCheck() Check {
	input := make([]*models.Property, len(c.input))
	for i, p := range c.input {
		cp := *p
		input[i] = &cp
	}
	return &expressionCheck{constraint: c, input: input, ctx: NewContext()}
}

type expressionCheck struct {
	constraint *ExpressionConstraint
	input      []*models.Property
	ctx        *Context
}

func (c *expressionCheck) Constraint() Constraint        { return c.constraint }
func (c *expressionCheck) Input() []*models.Property     { return c.input }
func (c *expressionCheck) AddContext(name string, v any) { c.ctx.Set(name, v) }

// Execute runs the compiled expression against the current input and
// subject context. A panic inside the expression (e.g. a nil map access)
// is recovered and reported as an evaluation error rather than crossing
// the API boundary. An unset string property reads as the empty string;
// other unset properties are absent from input.
func (c *expressionCheck) Execute() (satisfied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constraint %q: expression panicked: %v", c.constraint.name, r)
		}
	}()

	inputValues := make(map[string]any, len(c.input))
	for _, p := range c.input {
		if p.HasValue() {
			inputValues[p.Name] = p.Get()
		} else if p.Type == models.PropertyTypeString {
			inputValues[p.Name] = ""
		}
	}
	subjectValues := map[string]any{}
	if v, ok := c.ctx.Get("subject"); ok {
		if m, ok := v.(map[string]any); ok {
			subjectValues = m
		}
	}

	out, err := expr.Run(c.constraint.program, map[string]any{
		"input":   inputValues,
		"subject": subjectValues,
	})
	if err != nil {
		return false, fmt.Errorf("constraint %q: %w", c.constraint.name, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("constraint %q: expression did not evaluate to a bool", c.constraint.name)
	}
	return result, nil
}
