package catalog

import (
	"context"
	"time"

	"github.com/org/jitaccess/internal/analysis"
	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

// Provisioner is the contract JoinOperation.Execute uses to materialize a
// successful join as a group membership and IAM bindings.
type Provisioner interface {
	ProvisionAccess(ctx context.Context, group *policy.JitGroupPolicy, member string, expiry time.Time) error
}


// JitGroupView is a JitGroupPolicy scoped to the subject that looked it up.
type JitGroupView struct {
	catalog *Catalog
	subject models.Subject
	policy  *policy.JitGroupPolicy
}

// ID returns the group's fully-qualified identifier.
func (v *JitGroupView) ID() models.JitGroupID { return v.policy.ID() }

// Description returns the group's description.
func (v *JitGroupView) Description() string { return v.policy.Description() }

// ActiveMembership reports the subject's current membership in this group,
// if any.
func (v *JitGroupView) ActiveMembership() (models.Principal, bool) {
	return v.subject.ActiveMembership(v.ID())
}

// Join evaluates whether the subject's request to join this group can be
// self-approved, mirroring the exact branching the original JitGroup.join
// performs: probe under IGNORE_CONSTRAINTS with both JOIN and APPROVE_SELF
// permission and both constraint classes; if that probe's ACL check
// passes, the join is self-approvable and carries the full (JOIN-only)
// analysis for Execute to verify for real. Otherwise it requires approval
// and carries a JOIN-only analysis with no APPROVE_SELF permission probed.
func (v *JitGroupView) Join() *JoinOperation {
	probe := v.analyze(models.PermissionJoin | models.PermissionApproveSelf).
		ApplyConstraints(models.ConstraintClassJoin).
		ApplyConstraints(models.ConstraintClassApprove)

	selfApprovable := probe.Execute().VerifyAccessAllowed(analysis.IgnoreConstraints) == nil

	joinAnalysis := v.analyze(models.PermissionJoin).
		ApplyConstraints(models.ConstraintClassJoin)

	return &JoinOperation{
		view:             v,
		requiresApproval: !selfApprovable,
		analysis:         joinAnalysis,
	}
}

// JoinOperation is a proposed join, not yet executed. Calling Execute
// performs the real verification (under default options, so constraints
// must actually be satisfied) and provisions access on success.
type JoinOperation struct {
	view             *JitGroupView
	requiresApproval bool
	analysis         *analysis.PolicyAnalysis
}

// RequiresApproval reports whether this join needs an approver's sign-off
// before it can be executed, or can be executed immediately by the
// requester themself.
func (op *JoinOperation) RequiresApproval() bool { return op.requiresApproval }

// GroupID returns the id of the group being joined.
func (op *JoinOperation) GroupID() models.JitGroupID { return op.view.ID() }

// Input returns the input properties the subject must populate (e.g. a
// user-supplied expiry) before Execute can succeed. The returned
// properties are the exact instances Execute evaluates against, so
// setting a value on one here is reflected when Execute runs.
func (op *JoinOperation) Input() []*models.Property {
	return op.analysis.Input()
}

// VerifyForApproval re-verifies access under default options before the
// join is handed off to an approver, mirroring the check Execute performs
// for a self-approvable join. RequiresApproval alone only reflects whether
// the self-approval probe passed; it says nothing about whether the
// subject holds JOIN at all or whether a join-class constraint is
// satisfiable, so a deferral path must run this before minting a token.
// Fails with apperrors.AccessDenied if the subject has no access, or
// ConstraintUnsatisfied/Failed if a join-class constraint does not hold.
func (op *JoinOperation) VerifyForApproval() error {
	if !op.requiresApproval {
		return apperrors.AccessDenied("join operation does not require approval")
	}
	return op.analysis.Execute().VerifyAccessAllowed(analysis.Default)
}

// Execute re-verifies access under default options (ACL and constraints
// both must hold), extracts the granted expiry from the satisfied expiry
// constraint, provisions the membership, and returns the resulting
// principal. It fails with apperrors.AccessDenied or
// apperrors.ConstraintUnsatisfied/Failed if verification does not pass,
// regardless of what Join concluded earlier. Join's probe is advisory,
// Execute is authoritative: it rejects a join that requires approval on its
// own, rather than trusting a caller to have checked RequiresApproval first.
func (op *JoinOperation) Execute(ctx context.Context) (models.Principal, error) {
	if op.requiresApproval {
		return models.Principal{}, apperrors.AccessDenied("join requires approval and cannot be self-executed")
	}

	result := op.analysis.Execute()
	if err := result.VerifyAccessAllowed(analysis.Default); err != nil {
		return models.Principal{}, err
	}

	duration, err := policy.ExtractExpiry(result.Checks())
	if err != nil {
		return models.Principal{}, err
	}
	expiry := time.Now().Add(duration)

	member := op.view.subject.User.Value
	if err := op.view.catalog.provisioner.ProvisionAccess(ctx, op.view.policy, member, expiry); err != nil {
		return models.Principal{}, err
	}

	return models.NewJitGroupMembershipPrincipal(op.GroupID(), expiry), nil
}
