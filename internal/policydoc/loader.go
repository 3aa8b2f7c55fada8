package policydoc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/policy"
)

// DocumentStore fetches the raw text of a policy document given the
// opaque source string configured for an environment (a bucket object
// path, a config-map key, whatever the deployment uses).
type DocumentStore interface {
	Fetch(ctx context.Context, source string) (string, error)
}

// EnvLoader loads environment policy trees by name, looking up each name's
// document source from a static map (typically populated from
// RESOURCE_ENVIRONMENT_<name> configuration) and fetching its text from a
// DocumentStore. It satisfies envcache.Loader.
type EnvLoader struct {
	sources map[string]string
	store   DocumentStore
}

// NewEnvLoader creates an EnvLoader. sources maps environment name to the
// document source string a DocumentStore understands.
func NewEnvLoader(sources map[string]string, store DocumentStore) *EnvLoader {
	return &EnvLoader{sources: sources, store: store}
}

// Names lists every configured environment name, sorted.
func (l *EnvLoader) Names(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(l.sources))
	for name := range l.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Load fetches and parses the document configured for name. A fatal
// validation issue is surfaced as an error; the tree is never returned
// half-built.
func (l *EnvLoader) Load(ctx context.Context, name string) (*policy.EnvironmentPolicy, error) {
	source, ok := l.sources[name]
	if !ok {
		return nil, apperrors.ResourceNotFound("no policy document configured for environment " + name)
	}

	text, err := l.store.Fetch(ctx, source)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransport, err, "fetching policy document for "+name)
	}

	env, issues, err := FromString(text, policy.Metadata{Source: source, LastModified: time.Now()})
	if err != nil {
		return nil, fmt.Errorf("environment %q: %w", name, err)
	}
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return nil, fmt.Errorf("environment %q: %s", name, issue)
		}
	}
	return env, nil
}
