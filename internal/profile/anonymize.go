package profile

import (
	"crypto/sha256"
	"fmt"
)

// Profile kinds carried by AnonymizedProfile.
const (
	KindChild  = "child"
	KindFamily = "family"
)

// AnonymizedProfile is a transient view of a profile with the direct identifier
// replaced by a one-way hash and only matching-relevant attributes retained.
// It is never persisted and never reused outside a single matching call.
type AnonymizedProfile struct {
	Ref  string
	Kind string

	Age             int
	Composition     string
	Region          string
	Interests       []string
	SpecialNeeds    []string
	Traits          []string
	Specializations []string
	Preferences     []string
	Available       bool
	Notes           string
}

// hashRefLen keeps the reference short enough to be unrecognizable while still
// unique within a single matching call.
const hashRefLen = 8

// HashIdentifier deterministically maps an identifier to a short one-way hash.
// Reversal requires a separate lookup table held by the caller.
func HashIdentifier(id string) string {
	sum := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%x", sum)[:hashRefLen]
}

// Anonymize returns the matching view of the child profile. Pure: the input is
// never modified and identical inputs yield identical output. Missing optional
// fields become empty containers.
func (c *ChildProfile) Anonymize() AnonymizedProfile {
	return AnonymizedProfile{
		Ref:          HashIdentifier(c.ID),
		Kind:         KindChild,
		Age:          c.Age,
		Region:       c.Region,
		Interests:    sortedCopy(c.Interests),
		SpecialNeeds: sortedCopy(c.SpecialNeeds),
		Traits:       sortedCopy(c.Traits),
		Notes:        c.Notes,
	}
}

// Anonymize returns the matching view of the family profile.
func (f *FamilyProfile) Anonymize() AnonymizedProfile {
	return AnonymizedProfile{
		Ref:             HashIdentifier(f.ID),
		Kind:            KindFamily,
		Composition:     f.Composition,
		Region:          f.Region,
		Specializations: sortedCopy(f.Specializations),
		Preferences:     sortedCopy(f.Preferences),
		Available:       f.Available,
		Notes:           f.Notes,
	}
}
