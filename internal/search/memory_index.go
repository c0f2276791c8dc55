package search

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// MemoryIndex evaluates queries in process with the same filters, ranking and
// sorts as the OpenSearch translation. Text matching lowercases and splits on
// non letter or digit runes.
type MemoryIndex struct {
	mu     sync.RWMutex
	exists bool
	docs   map[uuid.UUID]ListingDocument
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: map[uuid.UUID]ListingDocument{}}
}

func (m *MemoryIndex) Exists(context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exists, nil
}

func (m *MemoryIndex) Ensure(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = true
	return nil
}

func (m *MemoryIndex) Recreate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = true
	m.docs = map[uuid.UUID]ListingDocument{}
	return nil
}

func (m *MemoryIndex) Upsert(_ context.Context, doc ListingDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = true
	m.docs[doc.ID] = doc
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = true
	delete(m.docs, id)
	return nil
}

func (m *MemoryIndex) BulkUpsert(_ context.Context, docs []ListingDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = true
	for _, doc := range docs {
		m.docs[doc.ID] = doc
	}
	return nil
}

func (m *MemoryIndex) Ping(context.Context) error { return nil }

// Get returns a stored document.
func (m *MemoryIndex) Get(id uuid.UUID) (ListingDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok
}

// IDs lists stored document ids in no particular order.
func (m *MemoryIndex) IDs() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids
}

type scoredDocument struct {
	doc   ListingDocument
	score float64
}

func (m *MemoryIndex) Search(_ context.Context, query Query) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.exists {
		return nil, ErrIndexMissing
	}

	terms := tokenize(query.Text)
	matched := make([]scoredDocument, 0, len(m.docs))
	for _, doc := range m.docs {
		if !matchesFilters(doc, query) {
			continue
		}
		text := 0.0
		if len(terms) > 0 {
			text = textScore(doc, terms)
			if text == 0 {
				continue
			}
		}
		matched = append(matched, scoredDocument{doc: doc, score: text + promotionScore(doc)})
	}

	slices.SortFunc(matched, compareFor(query.Sort))

	page := &Page{Total: len(matched), Categories: categoryFacets(matched)}
	start := min(max(query.Offset, 0), len(matched))
	end := len(matched)
	if query.Limit > 0 {
		end = min(start+query.Limit, len(matched))
	}
	page.Documents = make([]ListingDocument, 0, end-start)
	for _, entry := range matched[start:end] {
		page.Documents = append(page.Documents, entry.doc)
	}
	return page, nil
}

func matchesFilters(doc ListingDocument, q Query) bool {
	if doc.Status != enums.ListingStatusPublished {
		return false
	}
	if q.CategoryID != nil && doc.CategoryID != *q.CategoryID {
		return false
	}
	if !sameID(q.CityID, doc.CityID) || !sameID(q.RegionID, doc.RegionID) || !sameID(q.DealerID, doc.DealerID) {
		return false
	}
	if q.HasMedia && !doc.HasMedia {
		return false
	}
	return inRange(doc.Price, q.PriceFrom, q.PriceTo) && inRange(doc.Year, q.YearFrom, q.YearTo)
}

func sameID(want, got *uuid.UUID) bool {
	if want == nil {
		return true
	}
	return got != nil && *got == *want
}

// inRange fails documents without a value whenever a bound is set.
func inRange(value, from, to *float64) bool {
	if from == nil && to == nil {
		return true
	}
	if value == nil {
		return false
	}
	if from != nil && *value < *from {
		return false
	}
	if to != nil && *value > *to {
		return false
	}
	return true
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// textScore counts term hits per field, title weighted like title^3.
func textScore(doc ListingDocument, terms []string) float64 {
	title := tokenize(doc.Title)
	description := tokenize(doc.Description)
	score := 0.0
	for _, term := range terms {
		score += titleWeight * float64(countToken(title, term))
		score += float64(countToken(description, term))
	}
	return score
}

func countToken(tokens []string, term string) int {
	n := 0
	for _, token := range tokens {
		if token == term {
			n++
		}
	}
	return n
}

func compareFor(option enums.SortOption) func(a, b scoredDocument) int {
	byCreated := func(a, b scoredDocument) int { return newerFirst(a.doc.CreatedAt, b.doc.CreatedAt) }
	byScore := func(a, b scoredDocument) int { return cmp.Compare(b.score, a.score) }
	byID := func(a, b scoredDocument) int { return strings.Compare(a.doc.ID.String(), b.doc.ID.String()) }

	chain := func(steps ...func(a, b scoredDocument) int) func(a, b scoredDocument) int {
		return func(a, b scoredDocument) int {
			for _, step := range steps {
				if c := step(a, b); c != 0 {
					return c
				}
			}
			return 0
		}
	}

	switch option {
	case enums.SortNewest:
		return chain(byCreated, byScore, byID)
	case enums.SortPriceAsc:
		return chain(missingLast(func(d ListingDocument) *float64 { return d.Price }, false), byCreated, byID)
	case enums.SortPriceDesc:
		return chain(missingLast(func(d ListingDocument) *float64 { return d.Price }, true), byCreated, byID)
	case enums.SortYearDesc:
		return chain(missingLast(func(d ListingDocument) *float64 { return d.Year }, true), byCreated, byID)
	default:
		return chain(byScore, byCreated, byID)
	}
}

func missingLast(field func(ListingDocument) *float64, desc bool) func(a, b scoredDocument) int {
	return func(a, b scoredDocument) int {
		av, bv := field(a.doc), field(b.doc)
		switch {
		case av == nil && bv == nil:
			return 0
		case av == nil:
			return 1
		case bv == nil:
			return -1
		case desc:
			return cmp.Compare(*bv, *av)
		default:
			return cmp.Compare(*av, *bv)
		}
	}
}

// categoryFacets counts the whole filtered set, largest bucket first.
func categoryFacets(matched []scoredDocument) []FacetBucket {
	counts := map[string]int{}
	for _, entry := range matched {
		counts[entry.doc.CategoryID.String()]++
	}
	out := make([]FacetBucket, 0, len(counts))
	for id, count := range counts {
		out = append(out, FacetBucket{ID: id, Count: count})
	}
	slices.SortFunc(out, func(a, b FacetBucket) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(out) > facetCategoryBucketMax {
		out = out[:facetCategoryBucketMax]
	}
	return out
}

var _ Index = (*MemoryIndex)(nil)
