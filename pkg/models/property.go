package models

import (
	"fmt"
	"strconv"
	"time"
)

// PropertyType is the declared type of a constraint input.
type PropertyType int

const (
	PropertyTypeString PropertyType = iota
	PropertyTypeBool
	PropertyTypeLong
	PropertyTypeDuration
)

// Property is a typed, named input to a Constraint check. Two constraints
// within the same class that declare a property with the same name share
// the same Property instance (see analysis.PolicyAnalysis).
type Property struct {
	Name         string
	DisplayName  string
	Type         PropertyType
	Required     bool
	MinInclusive *float64 // interpreted per Type: Long -> integer seconds/count, Duration -> seconds
	MaxInclusive *float64

	value    any
	hasValue bool
}

// NewProperty creates a Property with the given constraints. min/max are
// ignored for PropertyTypeString and PropertyTypeBool.
func NewProperty(name, displayName string, typ PropertyType, required bool, min, max *float64) *Property {
	return &Property{
		Name:         name,
		DisplayName:  displayName,
		Type:         typ,
		Required:     required,
		MinInclusive: min,
		MaxInclusive: max,
	}
}

// Set parses raw according to the property's declared type and, for ranged
// types, validates it against MinInclusive/MaxInclusive. It returns a
// PropertyError on failure; callers surface that as apperrors.InvalidInput.
func (p *Property) Set(raw string) error {
	switch p.Type {
	case PropertyTypeString:
		p.value = raw
	case PropertyTypeBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return &PropertyError{Property: p.Name, Reason: fmt.Sprintf("%q is not a valid bool", raw)}
		}
		p.value = v
	case PropertyTypeLong:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return &PropertyError{Property: p.Name, Reason: fmt.Sprintf("%q is not a valid integer", raw)}
		}
		if err := p.checkRange(float64(v)); err != nil {
			return err
		}
		p.value = v
	case PropertyTypeDuration:
		secs, err := parseDurationSeconds(raw)
		if err != nil {
			return &PropertyError{Property: p.Name, Reason: fmt.Sprintf("%q is not a valid duration: %v", raw, err)}
		}
		if err := p.checkRange(secs); err != nil {
			return err
		}
		p.value = time.Duration(secs) * time.Second
	default:
		return &PropertyError{Property: p.Name, Reason: "unsupported property type"}
	}
	p.hasValue = true
	return nil
}

// SetValue assigns an already-typed value directly, bypassing parsing. Used
// when constructing context programmatically (e.g. from a deferral token).
func (p *Property) SetValue(v any) {
	p.value = v
	p.hasValue = true
}

func (p *Property) checkRange(v float64) error {
	if p.MinInclusive != nil && v < *p.MinInclusive {
		return &PropertyError{Property: p.Name, Reason: fmt.Sprintf("value %v is below the minimum of %v", v, *p.MinInclusive)}
	}
	if p.MaxInclusive != nil && v > *p.MaxInclusive {
		return &PropertyError{Property: p.Name, Reason: fmt.Sprintf("value %v exceeds the maximum of %v", v, *p.MaxInclusive)}
	}
	return nil
}

// Get returns the currently-set value, or nil if unset.
func (p *Property) Get() any {
	return p.value
}

// HasValue reports whether Set/SetValue has been called successfully.
func (p *Property) HasValue() bool {
	return p.hasValue
}

// PropertyError reports that a property failed to parse or validate.
type PropertyError struct {
	Property string
	Reason   string
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("property %q: %s", e.Property, e.Reason)
}

// parseDurationSeconds accepts both Go duration syntax ("90s", "2h") and a
// bare integer number of seconds, matching how the REST layer forwards
// "expiry=120" style form values.
func parseDurationSeconds(raw string) (float64, error) {
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return secs, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}
