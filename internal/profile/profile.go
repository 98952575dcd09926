package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalid marks profiles rejected before any network call is made.
var ErrInvalid = errors.New("invalid profile")

// ChildProfile describes a child waiting for placement. Immutable after
// creation except through an explicit store update; the identifier is stable
// for the profile's lifetime.
type ChildProfile struct {
	ID           string   `mapstructure:"id" json:"id"`
	Age          int      `mapstructure:"age" json:"age"`
	Interests    []string `mapstructure:"interests" json:"interests"`
	SpecialNeeds []string `mapstructure:"special_needs" json:"special_needs"`
	Traits       []string `mapstructure:"traits" json:"traits"`
	Region       string   `mapstructure:"region" json:"region"`
	Notes        string   `mapstructure:"notes" json:"notes"`
}

// FamilyProfile describes a prospective family.
type FamilyProfile struct {
	ID              string   `mapstructure:"id" json:"id"`
	Composition     string   `mapstructure:"composition" json:"composition"`
	Region          string   `mapstructure:"region" json:"region"`
	Specializations []string `mapstructure:"specializations" json:"specializations"`
	Preferences     []string `mapstructure:"preferences" json:"preferences"`
	Available       bool     `mapstructure:"available" json:"available"`
	Notes           string   `mapstructure:"notes" json:"notes"`
}

// Validate checks the fields required before a child profile may enter the
// matching pipeline.
func (c *ChildProfile) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: child profile is nil", ErrInvalid)
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: child identifier is required", ErrInvalid)
	}
	if c.Age < 0 {
		return fmt.Errorf("%w: child age must not be negative", ErrInvalid)
	}
	return nil
}

// Validate checks the fields required before a family profile may be scored.
func (f *FamilyProfile) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: family profile is nil", ErrInvalid)
	}
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: family identifier is required", ErrInvalid)
	}
	return nil
}

func sortedCopy(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
