package policy

import "github.com/org/jitaccess/pkg/models"

// EntryEffect is whether an AccessControlEntry grants or denies its mask.
type EntryEffect int

const (
	EffectAllow EntryEffect = iota
	EffectDeny
)

// AccessControlEntry (ACE) grants or denies a permission mask to a principal.
type AccessControlEntry struct {
	Effect    EntryEffect
	Principal models.Principal
	Mask      models.PolicyPermission
}

// Allow creates an Allow entry.
func Allow(principal models.Principal, mask models.PolicyPermission) AccessControlEntry {
	return AccessControlEntry{Effect: EffectAllow, Principal: principal, Mask: mask}
}

// Deny creates a Deny entry.
func Deny(principal models.Principal, mask models.PolicyPermission) AccessControlEntry {
	return AccessControlEntry{Effect: EffectDeny, Principal: principal, Mask: mask}
}

// AccessControlList is an ordered sequence of Allow/Deny entries.
//
// Evaluation for subject requesting mask M: traverse entries in declared
// order; any matching Deny whose mask intersects M denies the whole
// request; otherwise the union of matching Allow masks must cover M.
// A nil *AccessControlList (absent on a node) means allow-all; a non-nil
// AccessControlList with zero entries means deny-all.
type AccessControlList struct {
	Entries []AccessControlEntry
}

// NewAccessControlList builds an ACL from the given entries, preserving order.
func NewAccessControlList(entries ...AccessControlEntry) *AccessControlList {
	return &AccessControlList{Entries: entries}
}

// IsAllowed evaluates the ACL for subject requesting mask against this ACL only
// (no ancestor inheritance, see node.IsAllowedByACL for that).
func (a *AccessControlList) IsAllowed(subject models.Subject, mask models.PolicyPermission) bool {
	if a == nil {
		// Absent ACL: allow-all.
		return true
	}

	var allowed models.PolicyPermission
	for _, entry := range a.Entries {
		if !subject.Has(entry.Principal) {
			continue
		}
		switch entry.Effect {
		case EffectDeny:
			if entry.Mask.Intersects(mask) {
				// A matching Deny always wins, regardless of any Allow entries
				// seen before or after it.
				return false
			}
		case EffectAllow:
			allowed |= entry.Mask
		}
	}
	return allowed.Has(mask)
}
