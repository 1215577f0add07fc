package court

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Category groups evidence by the kind of forensic analysis that produced it.
type Category string

const (
	CategoryRepo         Category = "repo-analysis"
	CategoryDocument     Category = "document-analysis"
	CategoryVisual       Category = "visual-analysis"
	CategorySecurityFlaw Category = "security-flaw"
)

// KnownCategories returns the fixed category set in display order.
func KnownCategories() []Category {
	return []Category{CategoryRepo, CategoryDocument, CategoryVisual, CategorySecurityFlaw}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range KnownCategories() {
		if c == k {
			return true
		}
	}
	return false
}

// Locator points at where a finding was made. All fields are optional.
type Locator struct {
	Path      string `json:"path,omitempty"`
	LineStart int    `json:"line_start,omitempty"`
	LineEnd   int    `json:"line_end,omitempty"`
	Page      int    `json:"page,omitempty"`
}

// IsZero reports whether the locator carries no reference at all.
func (l Locator) IsZero() bool {
	return l == Locator{}
}

func (l Locator) String() string {
	s := l.Path
	switch {
	case l.LineStart > 0 && l.LineEnd > l.LineStart:
		s += ":" + strconv.Itoa(l.LineStart) + "-" + strconv.Itoa(l.LineEnd)
	case l.LineStart > 0:
		s += ":" + strconv.Itoa(l.LineStart)
	}
	if l.Page > 0 {
		if s != "" {
			s += " "
		}
		s += "p." + strconv.Itoa(l.Page)
	}
	return s
}

// EvidenceItem is a single forensic finding. Items are values; the set
// stores copies, so a producer cannot change an item after handing it over.
type EvidenceItem struct {
	// ID is the reference opinions cite. On merge it becomes
	// "<producer>/<id>", or "<producer>/<category>#n" when empty, so IDs
	// from different producers never collide. An explicit ID must not
	// contain a slash.
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Claim    string   `json:"claim"`
	// Found reports whether the artifact the detective looked for exists.
	// A false item is evidence of absence. Security flaws are always found.
	Found      bool    `json:"found"`
	Confidence float64 `json:"confidence"`
	Locator    Locator `json:"locator,omitzero"`
	// ProducedBy is always the id of the producer that merged the item.
	ProducedBy string `json:"produced_by"`
}

// Validate checks the invariants a producer's output must satisfy before merge.
func (e EvidenceItem) Validate() error {
	if !e.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidEvidence, e.Category)
	}
	if e.Claim == "" {
		return fmt.Errorf("%w: empty claim in category %q", ErrInvalidEvidence, e.Category)
	}
	if math.IsNaN(e.Confidence) || e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidEvidence, e.Confidence)
	}
	if strings.Contains(e.ID, "/") {
		return fmt.Errorf("%w: id %q contains a slash", ErrInvalidEvidence, e.ID)
	}
	return nil
}

// ValidateEvidence checks every item of one producer's output and rejects
// explicit IDs used twice.
func ValidateEvidence(items []EvidenceItem) error {
	seen := make(map[string]bool)
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if it.ID == "" {
			continue
		}
		if seen[it.ID] {
			return fmt.Errorf("item %d: %w: duplicate id %q", i, ErrInvalidEvidence, it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

// EvidenceSet is the accumulator of the evidence stage: category -> items.
// It is not safe for concurrent use; the scheduler serializes merges.
type EvidenceSet struct {
	byCategory map[Category][]EvidenceItem
	ids        map[string]bool
	frozen     bool
}

// NewEvidenceSet returns an empty, writable set.
func NewEvidenceSet() *EvidenceSet {
	return &EvidenceSet{byCategory: make(map[Category][]EvidenceItem), ids: make(map[string]bool)}
}

// Append adds a producer's items. It never replaces existing items: each
// category is append-only. Every item is stamped with producer and its ID
// is namespaced by it (see EvidenceItem.ID). An ID already taken within the
// producer's own output gets a "~n" suffix.
func (s *EvidenceSet) Append(producer string, items []EvidenceItem) {
	if s.frozen {
		panic("court: append to frozen evidence set")
	}
	for _, it := range items {
		it.ProducedBy = producer
		if it.ID == "" {
			n := 0
			for _, prior := range s.byCategory[it.Category] {
				if prior.ProducedBy == producer {
					n++
				}
			}
			it.ID = fmt.Sprintf("%s/%s#%d", producer, it.Category, n)
		} else {
			it.ID = producer + "/" + it.ID
		}
		if s.ids[it.ID] {
			base := it.ID
			for n := 1; s.ids[it.ID]; n++ {
				it.ID = base + "~" + strconv.Itoa(n)
			}
		}
		s.ids[it.ID] = true
		s.byCategory[it.Category] = append(s.byCategory[it.Category], it)
	}
}

// Len returns the total number of items across categories.
func (s *EvidenceSet) Len() int {
	n := 0
	for _, items := range s.byCategory {
		n += len(items)
	}
	return n
}

// Freeze ends the write phase and returns the read-only view. Within each
// category items are put in canonical order (by producer, then by the order
// the producer emitted them) so the view does not depend on which producer
// finished first.
func (s *EvidenceSet) Freeze() *EvidenceView {
	s.frozen = true
	v := &EvidenceView{
		byCategory: make(map[Category][]EvidenceItem, len(s.byCategory)),
		index:      make(map[string]EvidenceItem),
	}
	for cat, items := range s.byCategory {
		sorted := make([]EvidenceItem, len(items))
		copy(sorted, items)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].ProducedBy < sorted[j].ProducedBy
		})
		v.byCategory[cat] = sorted
		for _, it := range sorted {
			v.index[it.ID] = it
		}
	}
	return v
}

// EvidenceView is the frozen, read-only face of an EvidenceSet. Every
// accessor returns copies.
type EvidenceView struct {
	byCategory map[Category][]EvidenceItem
	index      map[string]EvidenceItem
}

// Categories returns the categories holding at least one item, sorted.
func (v *EvidenceView) Categories() []Category {
	out := make([]Category, 0, len(v.byCategory))
	for c, items := range v.byCategory {
		if len(items) > 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Items returns the items of one category in canonical order.
func (v *EvidenceView) Items(c Category) []EvidenceItem {
	items := v.byCategory[c]
	out := make([]EvidenceItem, len(items))
	copy(out, items)
	return out
}

// All returns every item, grouped by sorted category.
func (v *EvidenceView) All() []EvidenceItem {
	var out []EvidenceItem
	for _, c := range v.Categories() {
		out = append(out, v.byCategory[c]...)
	}
	return out
}

// Lookup resolves an evidence reference.
func (v *EvidenceView) Lookup(id string) (EvidenceItem, bool) {
	it, ok := v.index[id]
	return it, ok
}

// Len returns the number of items in the view.
func (v *EvidenceView) Len() int {
	n := 0
	for _, items := range v.byCategory {
		n += len(items)
	}
	return n
}

// Producers returns the distinct producers that contributed, sorted.
func (v *EvidenceView) Producers() []string {
	seen := make(map[string]bool)
	for _, items := range v.byCategory {
		for _, it := range items {
			seen[it.ProducedBy] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
