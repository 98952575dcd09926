package profile

import (
	"reflect"
	"strings"
	"testing"
)

func TestAnonymizeDeterministic(t *testing.T) {
	child := &ChildProfile{
		ID:        "C-1042",
		Age:       9,
		Interests: []string{"soccer", "art"},
		Region:    "Boston Metro",
		Notes:     "loves dogs",
	}

	first := child.Anonymize()
	second := child.Anonymize()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical anonymized views, got %+v and %+v", first, second)
	}
}

func TestAnonymizeHidesIdentifier(t *testing.T) {
	child := &ChildProfile{ID: "C-1042", Age: 9}
	anon := child.Anonymize()

	if anon.Ref == "" {
		t.Fatal("expected non-empty reference")
	}
	if strings.Contains(anon.Ref, child.ID) {
		t.Fatalf("reference %q leaks original identifier", anon.Ref)
	}
	if len(anon.Ref) != hashRefLen {
		t.Fatalf("expected %d-char reference, got %q", hashRefLen, anon.Ref)
	}
}

func TestAnonymizeSortsAttributeSets(t *testing.T) {
	family := &FamilyProfile{
		ID:              "F002",
		Specializations: []string{"teens", "artistic development", " young children "},
	}

	anon := family.Anonymize()
	want := []string{"artistic development", "teens", "young children"}
	if !reflect.DeepEqual(anon.Specializations, want) {
		t.Fatalf("expected sorted specializations %v, got %v", want, anon.Specializations)
	}
}

func TestAnonymizeEmptyOptionalFields(t *testing.T) {
	child := &ChildProfile{ID: "C-7"}
	anon := child.Anonymize()

	if anon.Interests == nil || anon.SpecialNeeds == nil || anon.Traits == nil {
		t.Fatal("expected empty containers for missing optional fields")
	}
	if len(anon.Interests) != 0 {
		t.Fatalf("expected no interests, got %v", anon.Interests)
	}
}

func TestAnonymizeDistinctIdentifiers(t *testing.T) {
	a := (&FamilyProfile{ID: "F001"}).Anonymize()
	b := (&FamilyProfile{ID: "F002"}).Anonymize()

	if a.Ref == b.Ref {
		t.Fatalf("expected distinct references, both %q", a.Ref)
	}
}

func TestValidate(t *testing.T) {
	if err := (&ChildProfile{ID: "C-1", Age: 8}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (&ChildProfile{Age: 8}).Validate(); err == nil {
		t.Fatal("expected error for missing identifier")
	}
	if err := (&ChildProfile{ID: "C-1", Age: -1}).Validate(); err == nil {
		t.Fatal("expected error for negative age")
	}
	if err := (&FamilyProfile{}).Validate(); err == nil {
		t.Fatal("expected error for missing family identifier")
	}
}
