package models

import "hash/crc32"

// Resource is opaque to the core: the Provisioner passes its type string
// and identifier through to the resource-manager client, which alone
// interprets them.
type Resource struct {
	Type string
	ID   string
}

// Privilege is a tagged variant of the access a JitGroup membership confers.
// IamRoleBinding is the only variant the core requires.
type Privilege interface {
	// Checksum returns a stable 32-bit checksum over all fields, used for
	// order-independent, idempotent reconciliation.
	Checksum() uint32
}

// IamRoleBinding grants a role on a resource, optionally gated by a CEL-style
// condition expression evaluated by the resource manager.
type IamRoleBinding struct {
	Resource    Resource
	Role        string
	Description string
	Condition   string
}

// Checksum hashes every field so that any change to the binding changes the
// checksum, and equal bindings always produce the same checksum regardless
// of in-memory identity.
func (b IamRoleBinding) Checksum() uint32 {
	h := crc32.NewIEEE()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0}) // separator to avoid field-concatenation collisions
	}
	write(b.Resource.Type)
	write(b.Resource.ID)
	write(b.Role)
	write(b.Description)
	write(b.Condition)
	return h.Sum32()
}

// Equal reports field-wise equality.
func (b IamRoleBinding) Equal(other IamRoleBinding) bool {
	return b == other
}
