// Package analysis evaluates a subject's access to a policy node: ACL
// permission plus the constraints of whichever constraint classes the
// caller opted into, producing a Result the caller can inspect or collapse
// into a single allow/deny decision.
package analysis

import (
	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

// AccessOptions controls how VerifyAccessAllowed collapses a Result.
type AccessOptions int

const (
	// Default requires the ACL to allow the request and every evaluated
	// constraint to be satisfied.
	Default AccessOptions = iota
	// IgnoreConstraints requires only that the ACL allows the request,
	// regardless of constraint outcomes. Used for the self-approve probe.
	IgnoreConstraints
)

// Result is the outcome of one PolicyAnalysis.Execute call.
type Result struct {
	AccessAllowed     bool
	Satisfied         []policy.Constraint
	Unsatisfied       []policy.Constraint
	Failed            map[policy.Constraint]error
	Input             []*models.Property
	ActiveMembership  *models.Principal
	checksByConstraint map[policy.Constraint]policy.Check
}

// VerifyAccessAllowed collapses the Result per options, returning nil if
// access is granted or an *apperrors.Error describing why not.
func (r *Result) VerifyAccessAllowed(options AccessOptions) error {
	if !r.AccessAllowed {
		return apperrors.AccessDenied("access control list does not grant the requested permission")
	}
	if options == IgnoreConstraints {
		return nil
	}
	if len(r.Failed) > 0 {
		for c, err := range r.Failed {
			return apperrors.Wrap(apperrors.KindConstraintFailed, err, "constraint \""+c.Name()+"\" failed to evaluate")
		}
	}
	if len(r.Unsatisfied) > 0 {
		return apperrors.Newf(apperrors.KindConstraintUnsatisfied, "%d constraint(s) not satisfied", len(r.Unsatisfied))
	}
	return nil
}

// Check returns the Check instance used to evaluate constraint, if it was
// part of this analysis. Callers use this to read input/expiry after the
// fact (see policy.ExtractExpiry, which takes a []policy.Check directly).
func (r *Result) Check(c policy.Constraint) (policy.Check, bool) {
	chk, ok := r.checksByConstraint[c]
	return chk, ok
}

// Checks returns the Checks of the satisfied constraints only, in
// evaluation order. Used by callers that need to extract a value (such as
// the granted expiry) from whichever check turned out satisfied.
func (r *Result) Checks() []policy.Check {
	out := make([]policy.Check, 0, len(r.Satisfied)+len(r.Unsatisfied)+len(r.Failed))
	for _, c := range r.Satisfied {
		if chk, ok := r.checksByConstraint[c]; ok {
			out = append(out, chk)
		}
	}
	return out
}

// builtCheck pairs a constraint with the Check instance materialized for
// it, so a PolicyAnalysis only ever constructs its checks (and the input
// properties they own) once, no matter how many times Input or Execute is
// called.
type builtCheck struct {
	constraint policy.Constraint
	check      policy.Check
}

// PolicyAnalysis evaluates subject's access to node for permissions, plus
// the effective constraints of every class added via ApplyConstraints.
type PolicyAnalysis struct {
	node        policy.Policy
	subject     models.Subject
	permissions models.PolicyPermission
	classes     []models.ConstraintClass
	seenClass   map[models.ConstraintClass]bool

	built   bool
	checks  []builtCheck
	input   []*models.Property
}

// New starts an analysis of subject's request for permissions against node.
func New(node policy.Policy, subject models.Subject, permissions models.PolicyPermission) *PolicyAnalysis {
	return &PolicyAnalysis{
		node:        node,
		subject:     subject,
		permissions: permissions,
		seenClass:   make(map[models.ConstraintClass]bool),
	}
}

// ApplyConstraints adds class to the set of constraint classes this
// analysis evaluates. It is idempotent and returns the receiver for
// chaining, mirroring the builder-style call sites in the join pipeline.
func (a *PolicyAnalysis) ApplyConstraints(class models.ConstraintClass) *PolicyAnalysis {
	if !a.seenClass[class] {
		a.seenClass[class] = true
		a.classes = append(a.classes, class)
	}
	return a
}

// build materializes this analysis's checks (and the input properties they
// own) exactly once. Callers that read Input before Execute see the same
// *models.Property instances Execute later runs against, so values a
// caller sets on them via Property.Set survive into evaluation.
func (a *PolicyAnalysis) build() {
	if a.built {
		return
	}
	a.built = true

	sharedProperties := make(map[string]*models.Property)

	for _, class := range a.classes {
		for _, constraint := range a.node.EffectiveConstraints(class) {
			check := constraint.CreateCheck()
			check.AddContext("subject", subjectAttributes(a.subject))

			for i, prop := range check.Input() {
				if shared, ok := sharedProperties[prop.Name]; ok {
					check.Input()[i] = shared
					continue
				}
				sharedProperties[prop.Name] = prop
				a.input = append(a.input, prop)
			}

			a.checks = append(a.checks, builtCheck{constraint: constraint, check: check})
		}
	}
}

// Input returns the input properties this analysis's constraints require,
// built on first call and stable across subsequent calls (and Execute).
func (a *PolicyAnalysis) Input() []*models.Property {
	a.build()
	return a.input
}

// Execute evaluates the ACL and every applied constraint class, returning
// the combined Result. It never itself returns an error; evaluation
// failures are captured per-constraint in Result.Failed. Checks are built
// once per analysis; Execute may be called repeatedly and will re-run the
// same checks against whatever values their input properties currently
// hold.
func (a *PolicyAnalysis) Execute() *Result {
	a.build()

	result := &Result{
		AccessAllowed: a.node.IsAllowedByACL(a.subject, a.permissions),
		Failed:        make(map[policy.Constraint]error),
		Input:         a.input,
	}
	checksByConstraint := make(map[policy.Constraint]policy.Check)

	for _, bc := range a.checks {
		checksByConstraint[bc.constraint] = bc.check
		satisfied, err := bc.check.Execute()
		switch {
		case err != nil:
			result.Failed[bc.constraint] = err
		case satisfied:
			result.Satisfied = append(result.Satisfied, bc.constraint)
		default:
			result.Unsatisfied = append(result.Unsatisfied, bc.constraint)
		}
	}

	result.checksByConstraint = checksByConstraint

	if group, ok := a.node.(interface{ ID() models.JitGroupID }); ok {
		if membership, found := a.subject.ActiveMembership(group.ID()); found {
			result.ActiveMembership = &membership
		}
	}

	return result
}

// subjectAttributes projects a Subject into the generic map Expression
// constraints evaluate "subject.<attr>" against.
func subjectAttributes(s models.Subject) map[string]any {
	groups := make([]string, 0, len(s.Principals()))
	for _, p := range s.Principals() {
		if p.Kind == models.PrincipalGroup {
			groups = append(groups, p.Value)
		}
	}
	return map[string]any{
		"user":   s.User.Value,
		"groups": groups,
	}
}
