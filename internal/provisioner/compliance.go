package provisioner

import (
	"context"

	"github.com/org/jitaccess/internal/idp"
	"github.com/org/jitaccess/internal/logging"
	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

// ComplianceReport is the result of reconciling every group a policy tree
// names against what the IdP actually holds.
type ComplianceReport struct {
	// Orphaned lists JIT-managed groups that exist in the IdP but no
	// longer correspond to any group in the policy tree.
	Orphaned []idp.GroupKey
	// NonCompliant lists groups whose provisioned state could not be
	// brought in line with policy, keyed by group id, with the underlying
	// structured error preserved rather than collapsed to a string.
	NonCompliant map[models.JitGroupID]error
	// Reconciled counts groups that were already, or were made, compliant.
	Reconciled int
}

// Reconcile walks every group under env, provisioning (or re-provisioning)
// its IAM bindings so that actual state matches policy, and separately
// reports any JIT-managed group found in the IdP that no longer maps to a
// policy group.
func (p *Provisioner) Reconcile(ctx context.Context, env *policy.EnvironmentPolicy, allGroupKeys []idp.GroupKey) ComplianceReport {
	report := ComplianceReport{NonCompliant: make(map[models.JitGroupID]error)}

	known := make(map[string]bool)
	for _, sys := range env.Systems() {
		for _, group := range sys.Groups() {
			known[p.mapping.GroupEmail(group.ID(), p.domain)] = true

			email := p.mapping.GroupEmail(group.ID(), p.domain)
			key, err := p.provisionGroup(ctx, group, email)
			if err != nil {
				report.NonCompliant[group.ID()] = err
				continue
			}
			bindings := iamBindings(group.Privileges())
			if err := p.provisionIAMBindings(ctx, key, email, group.ID().String(), bindings); err != nil {
				report.NonCompliant[group.ID()] = err
				continue
			}
			report.Reconciled++
		}
	}

	for _, key := range allGroupKeys {
		if p.mapping.IsJitGroup(key) && !known[string(key)] {
			report.Orphaned = append(report.Orphaned, key)
		}
	}

	p.logger.Info("reconciliation complete",
		logging.WithEvent(logging.EventReconcile),
		logging.Field("reconciled", report.Reconciled),
		logging.Field("orphaned", len(report.Orphaned)),
		logging.Field("non_compliant", len(report.NonCompliant)),
	)
	return report
}
