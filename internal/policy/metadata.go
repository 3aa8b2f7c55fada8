package policy

import "time"

// Metadata describes the provenance of a policy document: where it came
// from and when it was last modified. Every node in a tree either declares
// its own Metadata (the root, an EnvironmentPolicy) or defaults to its
// parent's.
type Metadata struct {
	Source       string
	LastModified time.Time
}
