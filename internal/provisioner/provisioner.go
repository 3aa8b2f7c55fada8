// Package provisioner materializes a successful join as a group
// membership and a set of IAM bindings, idempotently: re-running
// ProvisionAccess against state that already matches the policy is a
// cheap no-op rather than a redundant write.
package provisioner

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/idp"
	"github.com/org/jitaccess/internal/logging"
	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/internal/resourcemanager"
	"github.com/org/jitaccess/internal/subject"
	"github.com/org/jitaccess/pkg/models"
)

// maxIAMConflictRetries bounds how many times ModifyIamPolicy is attempted
// on one resource while the resource manager keeps reporting an
// optimistic-concurrency conflict, before the provisioner gives up and
// surfaces the conflict to the caller.
const maxIAMConflictRetries = 5

// Provisioner combines group and IAM binding provisioning for a JIT group.
type Provisioner struct {
	idpClient    idp.Client
	rmClient     resourcemanager.Client
	mapping      subject.GroupMapping
	domain       string
	logger       logging.Logger
}

// New creates a Provisioner. domain is the IdP domain group emails are
// provisioned under.
func New(idpClient idp.Client, rmClient resourcemanager.Client, mapping subject.GroupMapping, domain string, logger logging.Logger) *Provisioner {
	return &Provisioner{idpClient: idpClient, rmClient: rmClient, mapping: mapping, domain: domain, logger: logger}
}

// ProvisionAccess creates the group if needed, adds member's timed
// membership, and reconciles the group's IAM bindings to match group's
// privileges. It satisfies catalog.Provisioner.
func (p *Provisioner) ProvisionAccess(ctx context.Context, group *policy.JitGroupPolicy, member string, expiry time.Time) error {
	email := p.mapping.GroupEmail(group.ID(), p.domain)

	key, err := p.provisionGroup(ctx, group, email)
	if err != nil {
		return err
	}
	if err := p.idpClient.AddMembership(ctx, key, member, expiry); err != nil {
		return apperrors.Wrap(apperrors.KindTransport, err, "adding membership")
	}
	p.logger.Info("provisioned group membership",
		logging.WithEvent(logging.EventProvisionMember),
		logging.Field("group", group.ID().String()),
		logging.Field("member", member),
	)

	bindings := iamBindings(group.Privileges())
	if err := p.provisionIAMBindings(ctx, key, email, group.ID().String(), bindings); err != nil {
		return err
	}
	return nil
}

func (p *Provisioner) provisionGroup(ctx context.Context, group *policy.JitGroupPolicy, email string) (idp.GroupKey, error) {
	existing, err := p.idpClient.GetGroup(ctx, idp.GroupKey(email))
	if err == nil {
		return existing.Key, nil
	}
	if !apperrors.IsKind(err, apperrors.KindResourceNotFound) {
		return "", apperrors.Wrap(apperrors.KindTransport, err, "looking up group")
	}

	id := group.ID()
	displayName := fmt.Sprintf("JIT Group %s › %s › %s", id.Environment, id.System, id.Name)
	key, err := p.idpClient.CreateGroup(ctx, id.String(), email, displayName, ZeroChecksum.ToTaggedDescription(group.Description()))
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindTransport, err, "creating group")
	}
	return key, nil
}

func iamBindings(privileges []models.Privilege) []models.IamRoleBinding {
	var out []models.IamRoleBinding
	for _, p := range privileges {
		if b, ok := p.(models.IamRoleBinding); ok {
			out = append(out, b)
		}
	}
	return out
}

// provisionIAMBindings reconciles the resources named by bindings so that
// member group holds exactly those role grants, using the group's tagged
// description to skip the work entirely when nothing has changed.
func (p *Provisioner) provisionIAMBindings(ctx context.Context, group idp.GroupKey, groupEmail, groupIDString string, bindings []models.IamRoleBinding) error {
	expected := FromBindings(bindings)

	current, err := p.idpClient.GetGroup(ctx, group)
	if err != nil {
		return apperrors.Wrap(apperrors.KindTransport, err, "fetching group for checksum comparison")
	}
	actual, _ := FromTaggedDescription(current.Description)
	if actual == expected {
		return nil // already reconciled
	}

	byResource := make(map[models.Resource][]models.IamRoleBinding)
	for _, b := range bindings {
		byResource[b.Resource] = append(byResource[b.Resource], b)
	}

	resources := make([]models.Resource, 0, len(byResource))
	for r := range byResource {
		resources = append(resources, r)
	}
	sort.Slice(resources, func(i, j int) bool {
		if resources[i].Type != resources[j].Type {
			return resources[i].Type < resources[j].Type
		}
		return resources[i].ID < resources[j].ID
	})

	for _, resource := range resources {
		wanted := byResource[resource]
		if err := p.modifyIamPolicyWithRetry(ctx, resource, groupEmail, wanted, groupIDString); err != nil {
			return err
		}
	}
	// Only resources named by bindings are visited. Bindings this group
	// holds on a resource that no longer appears in bindings are not
	// removed, here or by Reconcile, which runs this same routine.

	newDescription := expected.ToTaggedDescription(current.Description)
	if err := p.idpClient.PatchGroup(ctx, group, newDescription); err != nil {
		return apperrors.Wrap(apperrors.KindTransport, err, "patching group description")
	}
	p.logger.Info("provisioned IAM bindings",
		logging.WithEvent(logging.EventProvisionIAMBindings),
		logging.Field("group", groupIDString),
		logging.Field("checksum", expected.String()),
		logging.Field("resource_count", len(resources)),
	)
	return nil
}

// modifyIamPolicyWithRetry applies wanted's bindings for groupEmail on
// resource, retrying with jittered backoff when the resource manager
// reports a concurrent-modification conflict. MemoryClient never returns
// one (its ModifyIamPolicy is atomic under its own lock), so this only
// engages against a resource manager with real optimistic concurrency.
func (p *Provisioner) modifyIamPolicyWithRetry(ctx context.Context, resource models.Resource, groupEmail string, wanted []models.IamRoleBinding, groupIDString string) error {
	rationale := fmt.Sprintf("Provisioning JIT group %s", groupIDString)

	var lastErr error
	for attempt := 0; attempt < maxIAMConflictRetries; attempt++ {
		err := p.rmClient.ModifyIamPolicy(ctx, resource.Type, resource.ID, func(current resourcemanager.Policy) resourcemanager.Policy {
			return replaceBindingsForPrincipal(current, groupEmail, wanted)
		}, rationale)
		if err == nil {
			return nil
		}
		if !apperrors.IsKind(err, apperrors.KindConflict) {
			return apperrors.Wrap(apperrors.KindTransport, err, "modifying IAM policy on "+resource.Type+":"+resource.ID)
		}
		lastErr = err

		backoff := time.Duration(attempt+1) * 5 * time.Millisecond
		backoff += time.Duration(rand.Intn(5)) * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.KindTransport, ctx.Err(), "modifying IAM policy on "+resource.Type+":"+resource.ID)
		}
	}
	return apperrors.Wrap(apperrors.KindConflict, lastErr, "exhausted retries modifying IAM policy on "+resource.Type+":"+resource.ID)
}

// replaceBindingsForPrincipal removes principal from every existing
// binding's members, drops bindings left with no members, and adds wanted
// as fresh bindings for principal.
func replaceBindingsForPrincipal(current resourcemanager.Policy, principal string, wanted []models.IamRoleBinding) resourcemanager.Policy {
	out := resourcemanager.Policy{}
	for _, b := range current.Bindings {
		members := make([]string, 0, len(b.Members))
		for _, m := range b.Members {
			if m != principal {
				members = append(members, m)
			}
		}
		if len(members) > 0 {
			out.Bindings = append(out.Bindings, resourcemanager.Binding{Role: b.Role, Members: members, Condition: b.Condition})
		}
	}
	for _, w := range wanted {
		out.Bindings = append(out.Bindings, resourcemanager.Binding{
			Role:      w.Role,
			Members:   []string{principal},
			Condition: w.Condition,
		})
	}
	return out
}
