package subject

import (
	"strings"

	"github.com/org/jitaccess/internal/idp"
	"github.com/org/jitaccess/pkg/models"
)

// GroupMapping translates between the IdP's notion of a group key and the
// catalog's JitGroupID, and tells the resolver which of a user's groups are
// JIT groups (needing expiry resolution) versus plain groups.
type GroupMapping struct {
	prefix string
}

// NewGroupMapping creates a mapping using prefix ("jit-" by default) to
// recognize JIT-managed group emails.
func NewGroupMapping(prefix string) GroupMapping {
	if prefix == "" {
		prefix = "jit-"
	}
	return GroupMapping{prefix: prefix}
}

// IsJitGroup reports whether key looks like a JIT-managed group, by its
// local part (before '@', if any).
func (m GroupMapping) IsJitGroup(key idp.GroupKey) bool {
	local := string(key)
	if i := strings.IndexByte(local, '@'); i >= 0 {
		local = local[:i]
	}
	return strings.HasPrefix(local, m.prefix)
}

// JitGroupID derives the JitGroupID a JIT group key encodes. Keys are
// expected in the form "<prefix><env>-<system>-<name>[@domain]".
func (m GroupMapping) JitGroupID(key idp.GroupKey) (models.JitGroupID, bool) {
	local := string(key)
	if i := strings.IndexByte(local, '@'); i >= 0 {
		local = local[:i]
	}
	local = strings.TrimPrefix(local, m.prefix)
	parts := strings.SplitN(local, "-", 3)
	if len(parts) != 3 {
		return models.JitGroupID{}, false
	}
	return models.JitGroupID{Environment: parts[0], System: parts[1], Name: parts[2]}, true
}

// GroupEmail renders the IdP email a JIT group id should be provisioned
// under, the inverse of JitGroupID.
func (m GroupMapping) GroupEmail(id models.JitGroupID, domain string) string {
	return m.prefix + id.Environment + "-" + id.System + "-" + id.Name + "@" + domain
}
