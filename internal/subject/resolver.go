// Package subject resolves an authenticated user into the full set of
// principals policy evaluation needs: the user itself, the groups they
// belong to, and any active JIT group memberships with their expiry.
package subject

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/idp"
	"github.com/org/jitaccess/internal/logging"
	"github.com/org/jitaccess/pkg/models"
)

// Resolver builds a Subject for a user, fanning out membership-detail
// lookups with bounded concurrency.
type Resolver struct {
	client      idp.Client
	mapping     GroupMapping
	concurrency int
	logger      logging.Logger
}

// NewResolver creates a Resolver. concurrency bounds how many GetMembership
// calls run at once; values <= 0 default to 8.
func NewResolver(client idp.Client, mapping GroupMapping, concurrency int, logger logging.Logger) *Resolver {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Resolver{client: client, mapping: mapping, concurrency: concurrency, logger: logger}
}

// Resolve lists user's memberships and expands each into a Principal. A
// non-JIT group becomes a Group principal directly from the listing; a JIT
// group requires a further GetMembership round trip to learn its expiry.
// Resolve fails only if the initial listing call fails; individual
// membership-detail failures are logged and dropped.
func (r *Resolver) Resolve(ctx context.Context, userEmail string) (models.Subject, error) {
	memberships, err := r.client.ListMembershipsByUser(ctx, userEmail)
	if err != nil {
		return models.Subject{}, apperrors.Wrap(apperrors.KindTransport, err, "listing memberships")
	}

	user := models.NewUserPrincipal(userEmail)

	var direct []models.Principal
	var jit []idp.Membership
	for _, m := range memberships {
		if r.mapping.IsJitGroup(m.GroupID) {
			jit = append(jit, m)
			continue
		}
		direct = append(direct, models.NewGroupPrincipal(string(m.GroupID)))
	}

	resolved := r.resolveJitMemberships(ctx, jit)

	extra := make([]models.Principal, 0, len(direct)+len(resolved))
	extra = append(extra, direct...)
	extra = append(extra, resolved...)

	subject := models.NewSubject(user, extra...)
	r.logger.Info("subject resolved",
		logging.Field("user", userEmail),
		logging.Field("group_count", len(direct)),
		logging.Field("jit_membership_count", len(resolved)),
	)
	return subject, nil
}

// resolveJitMemberships fans out GetMembership across at most r.concurrency
// goroutines. A per-membership error is logged and the membership dropped;
// it never fails the group.
func (r *Resolver) resolveJitMemberships(ctx context.Context, memberships []idp.Membership) []models.Principal {
	if len(memberships) == 0 {
		return nil
	}

	results := make([]models.Principal, len(memberships))
	ok := make([]bool, len(memberships))

	sem := make(chan struct{}, r.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, m := range memberships {
		i, m := i, m
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			details, err := r.client.GetMembership(gctx, m.ID)
			switch {
			case apperrors.IsKind(err, apperrors.KindResourceNotFound):
				r.logger.Warn("membership expired before it could be resolved",
					logging.Field("membership_id", string(m.ID)))
				return nil
			case err != nil:
				r.logger.Error("failed to resolve membership", err,
					logging.Field("membership_id", string(m.ID)))
				return nil
			}
			if details.Expiry == nil {
				r.logger.Warn("jit group membership has no expiry, dropping",
					logging.Field("membership_id", string(m.ID)))
				return nil
			}
			groupID, valid := r.mapping.JitGroupID(m.GroupID)
			if !valid {
				r.logger.Warn("jit group key did not decode to a group id",
					logging.Field("group_key", string(m.GroupID)))
				return nil
			}
			results[i] = models.NewJitGroupMembershipPrincipal(groupID, *details.Expiry)
			ok[i] = true
			return nil
		})
	}

	// errgroup.Wait only ever returns an error if one of the Go funcs
	// returned a non-nil error, which this loop never does: every failure
	// path is logged and absorbed instead.
	_ = g.Wait()

	out := make([]models.Principal, 0, len(memberships))
	for i, present := range ok {
		if present {
			out = append(out, results[i])
		}
	}
	return out
}
