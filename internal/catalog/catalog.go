// Package catalog is the read/write entry point over the policy tree: it
// filters every listing by the subject's VIEW permission, analyzes access
// on lookup, and hosts the join-operation pipeline.
package catalog

import (
	"context"
	"sort"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/policy"
	"github.com/org/jitaccess/pkg/models"
)

// Source supplies environment policy trees by name. An environment cache
// satisfies this interface; tests can supply a static map.
type Source interface {
	// Environments lists every known environment name. No permission check
	// is applied here deliberately, to avoid loading every environment's
	// tree just to answer "which environments exist".
	Environments(ctx context.Context) ([]string, error)
	// Lookup loads and returns the policy tree for name.
	Lookup(ctx context.Context, name string) (*policy.EnvironmentPolicy, error)
}

// Catalog is the root of the read API; each lookup is scoped to the subject
// passed to it.
type Catalog struct {
	source      Source
	provisioner Provisioner
}

// New creates a Catalog backed by source.
func New(source Source, provisioner Provisioner) *Catalog {
	return &Catalog{source: source, provisioner: provisioner}
}

// Environments lists every known environment name, unfiltered.
func (c *Catalog) Environments(ctx context.Context) ([]string, error) {
	names, err := c.source.Environments(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Environment loads environment name and returns a view scoped to subject,
// or apperrors.ResourceNotFound if subject cannot view it or it does not
// exist.
func (c *Catalog) Environment(ctx context.Context, subject models.Subject, name string) (*EnvironmentView, error) {
	env, err := c.source.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !env.IsAllowedByACL(subject, models.PermissionView) {
		return nil, apperrors.ResourceNotFound("environment " + name + " not found")
	}
	return &EnvironmentView{catalog: c, subject: subject, policy: env}, nil
}

// Group resolves a fully-qualified group id to a view, or
// apperrors.ResourceNotFound if any ancestor is not visible to subject.
func (c *Catalog) Group(ctx context.Context, subject models.Subject, id models.JitGroupID) (*JitGroupView, error) {
	envView, err := c.Environment(ctx, subject, id.Environment)
	if err != nil {
		return nil, err
	}
	sysView, err := envView.System(id.System)
	if err != nil {
		return nil, err
	}
	return sysView.Group(id.Name)
}
