// Package store persists the roster of children and candidate families as a
// single JSON document collection and reloads it when the file changes.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/heartmatch/heartmatch/internal/profile"
)

const (
	DocChild  = "child"
	DocFamily = "family"
)

// Document is one keyed roster entry. Attributes stay schemaless on disk and
// are decoded into the typed profile for the document's type on load.
type Document struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

type rosterFile struct {
	Documents []Document `json:"documents"`
}

// Roster is the loaded, typed view of the store file.
type Roster struct {
	children map[string]*profile.ChildProfile
	families map[string]*profile.FamilyProfile
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{
		children: make(map[string]*profile.ChildProfile),
		families: make(map[string]*profile.FamilyProfile),
	}
}

// Load reads and decodes the roster file. Documents that fail validation are
// rejected, not skipped: a broken roster should be fixed, not silently thinned.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}

	var file rosterFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}

	roster := NewRoster()
	for _, doc := range file.Documents {
		if err := roster.add(doc); err != nil {
			return nil, fmt.Errorf("roster %s: document %q: %w", path, doc.ID, err)
		}
	}
	return roster, nil
}

func (r *Roster) add(doc Document) error {
	switch doc.Type {
	case DocChild:
		child := &profile.ChildProfile{}
		if err := decodeAttributes(doc.Attributes, child); err != nil {
			return err
		}
		child.ID = doc.ID
		if err := child.Validate(); err != nil {
			return err
		}
		r.children[doc.ID] = child
	case DocFamily:
		family := &profile.FamilyProfile{}
		if err := decodeAttributes(doc.Attributes, family); err != nil {
			return err
		}
		family.ID = doc.ID
		if err := family.Validate(); err != nil {
			return err
		}
		r.families[doc.ID] = family
	default:
		return fmt.Errorf("unknown document type %q", doc.Type)
	}
	return nil
}

// decodeAttributes maps the schemaless attribute bag onto a typed profile.
// Weak typing tolerates JSON numbers arriving as float64.
func decodeAttributes(attrs map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(attrs)
}

// AddChild inserts or replaces a child profile.
func (r *Roster) AddChild(child *profile.ChildProfile) error {
	if err := child.Validate(); err != nil {
		return err
	}
	r.children[child.ID] = child
	return nil
}

// AddFamily inserts or replaces a family profile.
func (r *Roster) AddFamily(family *profile.FamilyProfile) error {
	if err := family.Validate(); err != nil {
		return err
	}
	r.families[family.ID] = family
	return nil
}

// Child looks up a child profile by identifier.
func (r *Roster) Child(id string) (*profile.ChildProfile, bool) {
	child, ok := r.children[id]
	return child, ok
}

// Family looks up a family profile by identifier.
func (r *Roster) Family(id string) (*profile.FamilyProfile, bool) {
	family, ok := r.families[id]
	return family, ok
}

// Children returns all child profiles ordered by identifier.
func (r *Roster) Children() []*profile.ChildProfile {
	out := make([]*profile.ChildProfile, 0, len(r.children))
	for _, child := range r.children {
		out = append(out, child)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Families returns all family profiles ordered by identifier.
func (r *Roster) Families() []*profile.FamilyProfile {
	out := make([]*profile.FamilyProfile, 0, len(r.families))
	for _, family := range r.families {
		out = append(out, family)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Save writes the roster back as a document collection, ordered by identifier
// so repeated saves of the same roster produce identical files.
func (r *Roster) Save(path string) error {
	file := rosterFile{Documents: make([]Document, 0, len(r.children)+len(r.families))}

	for _, child := range r.Children() {
		file.Documents = append(file.Documents, Document{
			ID:   child.ID,
			Type: DocChild,
			Attributes: map[string]any{
				"age":           child.Age,
				"interests":     child.Interests,
				"special_needs": child.SpecialNeeds,
				"traits":        child.Traits,
				"region":        child.Region,
				"notes":         child.Notes,
			},
		})
	}
	for _, family := range r.Families() {
		file.Documents = append(file.Documents, Document{
			ID:   family.ID,
			Type: DocFamily,
			Attributes: map[string]any{
				"composition":     family.Composition,
				"region":          family.Region,
				"specializations": family.Specializations,
				"preferences":     family.Preferences,
				"available":       family.Available,
				"notes":           family.Notes,
			},
		})
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("writing roster %s: %w", path, err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("encoding roster %s: %w", path, err)
	}
	return nil
}

// SampleRoster returns the demo roster used by --init-sample: a demo child and
// three candidate families with distinct regions and specializations, enough
// to exercise the matching pipeline end to end.
func SampleRoster() *Roster {
	roster := NewRoster()
	roster.children["C001"] = &profile.ChildProfile{
		ID:        "C001",
		Age:       8,
		Interests: []string{"art", "sports", "music", "reading"},
		Traits:    []string{"creative", "curious"},
		Region:    "Boston Metro",
		Notes:     "Does best with a steady routine and plenty of encouragement.",
	}
	roster.families["F001"] = &profile.FamilyProfile{
		ID:              "F001",
		Composition:     "Married Couple",
		Region:          "Boston Metro",
		Specializations: []string{"children with learning differences", "teens"},
		Preferences:     []string{"outdoor activities", "education", "community service"},
		Available:       true,
		Notes:           "Single family home with yard. Two friendly dogs. Values education, creativity, outdoor activities.",
	}
	roster.families["F002"] = &profile.FamilyProfile{
		ID:              "F002",
		Composition:     "Single Parent",
		Region:          "Western Massachusetts",
		Specializations: []string{"young children", "artistic development"},
		Preferences:     []string{"art", "music", "cooking"},
		Available:       true,
		Notes:           "Cozy apartment with art studio. One cat. Values creativity, self-expression, academic achievement.",
	}
	roster.families["F003"] = &profile.FamilyProfile{
		ID:              "F003",
		Composition:     "Same-Sex Couple",
		Region:          "Central Massachusetts",
		Specializations: []string{"athletic children", "cultural diversity"},
		Preferences:     []string{"sports", "travel", "volunteering"},
		Available:       true,
		Notes:           "Suburban home with sports facilities. No pets. Values physical activity, cultural awareness, community involvement.",
	}
	return roster
}
