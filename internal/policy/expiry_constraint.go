package policy

import (
	"fmt"
	"time"

	"github.com/org/jitaccess/pkg/models"
)

// ExpiryConstraint bounds how long a granted membership lasts. A fixed
// constraint (MinDuration == MaxDuration) takes no input and is always
// satisfied; a user-defined range exposes a single required Duration
// property the subject must supply within [MinDuration, MaxDuration].
type ExpiryConstraint struct {
	name        string
	displayName string
	min         time.Duration
	max         time.Duration
}

// NewFixedExpiryConstraint creates a constraint granting exactly duration,
// with no input required from the subject.
func NewFixedExpiryConstraint(name, displayName string, duration time.Duration) *ExpiryConstraint {
	return &ExpiryConstraint{name: name, displayName: displayName, min: duration, max: duration}
}

// NewRangeExpiryConstraint creates a constraint requiring the subject to
// supply a duration within [min, max].
func NewRangeExpiryConstraint(name, displayName string, min, max time.Duration) (*ExpiryConstraint, error) {
	if min <= 0 || max <= 0 || min > max {
		return nil, fmt.Errorf("constraint %q: invalid range [%s, %s]", name, min, max)
	}
	return &ExpiryConstraint{name: name, displayName: displayName, min: min, max: max}, nil
}

func (c *ExpiryConstraint) Name() string        { return c.name }
func (c *ExpiryConstraint) DisplayName() string { return c.displayName }

// IsFixed reports whether this constraint grants a single fixed duration.
func (c *ExpiryConstraint) IsFixed() bool { return c.min == c.max }

// MinDuration and MaxDuration expose the configured bounds.
func (c *ExpiryConstraint) MinDuration() time.Duration { return c.min }
func (c *ExpiryConstraint) MaxDuration() time.Duration { return c.max }

const expiryPropertyName = "expiry"

func (c *ExpiryConstraint) CreateCheck() Check {
	var input []*models.Property
	if !c.IsFixed() {
		minSecs := c.min.Seconds()
		maxSecs := c.max.Seconds()
		input = []*models.Property{
			models.NewProperty(expiryPropertyName, "Requested duration", models.PropertyTypeDuration, true, &minSecs, &maxSecs),
		}
	}
	return &expiryCheck{constraint: c, input: input, ctx: NewContext()}
}

type expiryCheck struct {
	constraint *ExpiryConstraint
	input      []*models.Property
	ctx        *Context
}

func (c *expiryCheck) Constraint() Constraint           { return c.constraint }
func (c *expiryCheck) Input() []*models.Property        { return c.input }
func (c *expiryCheck) AddContext(name string, v any)    { c.ctx.Set(name, v) }

// Execute is satisfied unconditionally for a fixed constraint; for a ranged
// constraint it requires the expiry property to have been set, which
// Property.Set already validated against [min, max].
func (c *expiryCheck) Execute() (bool, error) {
	if c.constraint.IsFixed() {
		return true, nil
	}
	if len(c.input) == 0 {
		return false, fmt.Errorf("constraint %q: missing input property", c.constraint.name)
	}
	return c.input[0].HasValue(), nil
}

// Expiry returns the concrete duration this satisfied check grants: the
// fixed duration, or the subject-supplied value for a range constraint.
func (c *expiryCheck) Expiry() (time.Duration, bool) {
	if c.constraint.IsFixed() {
		return c.constraint.min, true
	}
	if len(c.input) == 0 || !c.input[0].HasValue() {
		return 0, false
	}
	d, ok := c.input[0].Get().(time.Duration)
	return d, ok
}

// ExtractExpiry locates the sole satisfied ExpiryConstraint check among
// checks and returns the duration it grants. Multiple satisfied expiry
// checks are resolved by taking the first in declared order, matching the
// order EffectiveConstraints returns them in.
func ExtractExpiry(checks []Check) (time.Duration, error) {
	for _, chk := range checks {
		ec, ok := chk.(*expiryCheck)
		if !ok {
			continue
		}
		if d, ok := ec.Expiry(); ok {
			return d, nil
		}
	}
	return 0, fmt.Errorf("no satisfied expiry constraint found")
}
