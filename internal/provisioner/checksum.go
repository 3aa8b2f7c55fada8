package provisioner

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/org/jitaccess/pkg/models"
)

// Checksum is an order-independent 32-bit digest over a set of bindings,
// used to detect whether a group's provisioned IAM bindings already match
// its policy without re-reading every resource's policy on every request.
// XOR makes the combination commutative and self-canceling, so the same
// set of bindings always checksums the same way regardless of order, and
// adding then removing a binding returns to the original value.
type Checksum uint32

// ZeroChecksum is the checksum of an empty binding set.
const ZeroChecksum Checksum = 0

// FromBindings computes the checksum of bindings.
func FromBindings(bindings []models.IamRoleBinding) Checksum {
	var sum Checksum
	for _, b := range bindings {
		sum ^= Checksum(b.Checksum())
	}
	return sum
}

var taggedDescriptionPattern = regexp.MustCompile(`#([a-f0-9]{2,8})$`)

// ToTaggedDescription appends (or replaces) a trailing "#[hex]" tag on
// baseDescription encoding c, stripping any previous tag first.
func (c Checksum) ToTaggedDescription(baseDescription string) string {
	base := taggedDescriptionPattern.ReplaceAllString(baseDescription, "")
	base = trimTrailingSpace(base)
	return fmt.Sprintf("%s #%08x", base, uint32(c))
}

// FromTaggedDescription extracts the checksum tag from description, if
// present. A description with no tag (e.g. a group not yet provisioned by
// this service) yields ZeroChecksum, false.
func FromTaggedDescription(description string) (Checksum, bool) {
	m := taggedDescriptionPattern.FindStringSubmatch(description)
	if m == nil {
		return ZeroChecksum, false
	}
	v, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return ZeroChecksum, false
	}
	return Checksum(v), true
}

func (c Checksum) String() string {
	return fmt.Sprintf("%08x", uint32(c))
}

func trimTrailingSpace(s string) string {
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}
