package court

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEvidenceSet_AppendNeverOverwrites(t *testing.T) {
	s := NewEvidenceSet()
	s.Append("repo", []EvidenceItem{{Category: CategoryRepo, Claim: "atomic commits", Confidence: 0.8}})
	s.Append("docs", []EvidenceItem{{Category: CategoryRepo, Claim: "report mentions graph", Confidence: 0.6}})

	v := s.Freeze()
	items := v.Items(CategoryRepo)
	if len(items) != 2 {
		t.Fatalf("expected 2 repo items, got %d", len(items))
	}
	if items[0].ProducedBy != "docs" || items[1].ProducedBy != "repo" {
		t.Errorf("canonical order by producer broken: %+v", items)
	}
}

func TestEvidenceSet_AssignsStableIDs(t *testing.T) {
	s := NewEvidenceSet()
	s.Append("repo", []EvidenceItem{
		{Category: CategoryRepo, Claim: "a", Confidence: 0.5},
		{Category: CategoryRepo, Claim: "b", Confidence: 0.5},
		{Category: CategorySecurityFlaw, Claim: "c", Confidence: 0.9, ID: "custom"},
	})
	v := s.Freeze()

	want := []string{"repo/repo-analysis#0", "repo/repo-analysis#1"}
	var got []string
	for _, it := range v.Items(CategoryRepo) {
		got = append(got, it.ID)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ids mismatch:\n%s", diff)
	}
	if it, ok := v.Lookup("repo/custom"); !ok || it.Claim != "c" {
		t.Error("explicit id should be kept under the producer's namespace")
	}
}

func TestEvidenceSet_ProducerFieldsDoNotDependOnOrder(t *testing.T) {
	batches := map[string][]EvidenceItem{
		"p1": {
			{Category: CategoryRepo, Claim: "one", Confidence: 0.5, ProducedBy: "shared"},
			{Category: CategoryRepo, Claim: "explicit", Confidence: 0.5, ID: "e1"},
		},
		"p2": {
			{Category: CategoryRepo, Claim: "two", Confidence: 0.5, ProducedBy: "shared"},
			{Category: CategorySecurityFlaw, Claim: "flaw", Confidence: 0.9, ID: "e1"},
		},
	}

	var first *EvidenceView
	for _, order := range [][]string{{"p1", "p2"}, {"p2", "p1"}} {
		s := NewEvidenceSet()
		for _, p := range order {
			s.Append(p, batches[p])
		}
		v := s.Freeze()

		if v.Len() != 4 || len(v.All()) != 4 {
			t.Errorf("order %v: Len() = %d, All() = %d, want 4", order, v.Len(), len(v.All()))
		}
		for id, claim := range map[string]string{
			"p1/repo-analysis#0": "one",
			"p2/repo-analysis#0": "two",
			"p1/e1":              "explicit",
			"p2/e1":              "flaw",
		} {
			it, ok := v.Lookup(id)
			if !ok || it.Claim != claim {
				t.Errorf("order %v: Lookup(%q) = %q, %v; want %q", order, id, it.Claim, ok, claim)
			}
		}
		if diff := cmp.Diff([]string{"p1", "p2"}, v.Producers()); diff != "" {
			t.Errorf("order %v: producers mismatch:\n%s", order, diff)
		}

		if first == nil {
			first = v
			continue
		}
		if diff := cmp.Diff(first.All(), v.All()); diff != "" {
			t.Errorf("order %v produced a different view:\n%s", order, diff)
		}
	}
}

func TestEvidenceSet_CollidingIDsWithinProducer(t *testing.T) {
	s := NewEvidenceSet()
	s.Append("repo", []EvidenceItem{
		{Category: CategoryRepo, Claim: "auto", Confidence: 0.5},
		{Category: CategoryRepo, Claim: "explicit", Confidence: 0.5, ID: "repo-analysis#0"},
	})
	v := s.Freeze()
	if v.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", v.Len())
	}
	if it, _ := v.Lookup("repo/repo-analysis#0"); it.Claim != "auto" {
		t.Errorf("first item lost its id: %+v", it)
	}
	if it, _ := v.Lookup("repo/repo-analysis#0~1"); it.Claim != "explicit" {
		t.Errorf("colliding id not suffixed: %+v", it)
	}
}

func TestValidateEvidence(t *testing.T) {
	cases := []struct {
		name  string
		items []EvidenceItem
		ok    bool
	}{
		{"distinct ids", []EvidenceItem{
			{Category: CategoryRepo, Claim: "a", Confidence: 0.5, ID: "x"},
			{Category: CategoryRepo, Claim: "b", Confidence: 0.5},
			{Category: CategoryRepo, Claim: "c", Confidence: 0.5},
		}, true},
		{"duplicate id", []EvidenceItem{
			{Category: CategoryRepo, Claim: "a", Confidence: 0.5, ID: "x"},
			{Category: CategoryDocument, Claim: "b", Confidence: 0.5, ID: "x"},
		}, false},
		{"slash in id", []EvidenceItem{
			{Category: CategoryRepo, Claim: "a", Confidence: 0.5, ID: "other/x"},
		}, false},
		{"bad confidence", []EvidenceItem{
			{Category: CategoryRepo, Claim: "a", Confidence: 2},
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEvidence(tc.items)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidEvidence) {
				t.Errorf("got %v, want ErrInvalidEvidence", err)
			}
		})
	}
}

func TestEvidenceSet_MergeOrderIndependent(t *testing.T) {
	batches := map[string][]EvidenceItem{
		"a": {{Category: CategoryRepo, Claim: "a1", Confidence: 0.1}, {Category: CategoryRepo, Claim: "a2", Confidence: 0.2}},
		"b": {{Category: CategoryRepo, Claim: "b1", Confidence: 0.3}},
		"c": {{Category: CategoryDocument, Claim: "c1", Confidence: 0.4}},
	}
	orders := [][]string{{"a", "b", "c"}, {"c", "b", "a"}, {"b", "a", "c"}}

	var first []EvidenceItem
	for i, order := range orders {
		s := NewEvidenceSet()
		for _, p := range order {
			s.Append(p, batches[p])
		}
		all := s.Freeze().All()
		if i == 0 {
			first = all
			continue
		}
		if diff := cmp.Diff(first, all); diff != "" {
			t.Errorf("order %v produced different view:\n%s", order, diff)
		}
	}
}

func TestEvidenceSet_FrozenAppendPanics(t *testing.T) {
	s := NewEvidenceSet()
	s.Freeze()
	defer func() {
		if recover() == nil {
			t.Error("expected panic on append after freeze")
		}
	}()
	s.Append("late", []EvidenceItem{{Category: CategoryRepo, Claim: "x"}})
}

func TestEvidenceView_ReturnsCopies(t *testing.T) {
	s := NewEvidenceSet()
	s.Append("repo", []EvidenceItem{{Category: CategoryRepo, Claim: "original", Confidence: 0.5}})
	v := s.Freeze()

	items := v.Items(CategoryRepo)
	items[0].Claim = "tampered"
	if got := v.Items(CategoryRepo)[0].Claim; got != "original" {
		t.Errorf("view was mutated through returned slice: %q", got)
	}
}

func TestEvidenceItem_Validate(t *testing.T) {
	cases := []struct {
		name string
		item EvidenceItem
		ok   bool
	}{
		{"valid", EvidenceItem{Category: CategoryVisual, Claim: "diagram", Confidence: 1}, true},
		{"unknown category", EvidenceItem{Category: "astrology", Claim: "x", Confidence: 0.5}, false},
		{"empty claim", EvidenceItem{Category: CategoryRepo, Confidence: 0.5}, false},
		{"confidence above one", EvidenceItem{Category: CategoryRepo, Claim: "x", Confidence: 1.2}, false},
		{"negative confidence", EvidenceItem{Category: CategoryRepo, Claim: "x", Confidence: -0.1}, false},
		{"nan confidence", EvidenceItem{Category: CategoryRepo, Claim: "x", Confidence: math.NaN()}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.item.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidEvidence) {
				t.Fatalf("expected ErrInvalidEvidence, got %v", err)
			}
		})
	}
}

func TestLocator_String(t *testing.T) {
	cases := []struct {
		loc  Locator
		want string
	}{
		{Locator{Path: "main.go", LineStart: 3}, "main.go:3"},
		{Locator{Path: "main.go", LineStart: 3, LineEnd: 9}, "main.go:3-9"},
		{Locator{Path: "report.pdf", Page: 2}, "report.pdf p.2"},
		{Locator{}, ""},
	}
	for _, tc := range cases {
		if got := tc.loc.String(); got != tc.want {
			t.Errorf("%+v.String() = %q, want %q", tc.loc, got, tc.want)
		}
	}
}
