package search

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// roundTrip renders the body the way the client sends it.
func roundTrip(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	return out
}

func dig(t *testing.T, value any, path ...string) any {
	t.Helper()
	for _, key := range path {
		object, ok := value.(map[string]any)
		if !ok {
			t.Fatalf("expected object at %q, got %T", key, value)
		}
		value = object[key]
	}
	return value
}

func TestBuildSearchBodyFiltersAndText(t *testing.T) {
	category := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	dealer := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	from, to := 1000.0, 5000.0
	year := 2015.0

	body := roundTrip(t, buildSearchBody(Query{
		Text:       "автокран",
		CategoryID: &category,
		DealerID:   &dealer,
		HasMedia:   true,
		PriceFrom:  &from,
		PriceTo:    &to,
		YearFrom:   &year,
		Offset:     40,
		Limit:      20,
	}))

	if body["from"] != float64(40) || body["size"] != float64(20) || body["track_total_hits"] != true {
		t.Fatalf("unexpected paging %v %v", body["from"], body["size"])
	}

	boolQuery := dig(t, body, "query", "function_score", "query", "bool")
	filters := dig(t, boolQuery, "filter").([]any)
	want := []any{
		map[string]any{"term": map[string]any{"status": "PUBLISHED"}},
		map[string]any{"term": map[string]any{"categoryId": category.String()}},
		map[string]any{"term": map[string]any{"dealerId": dealer.String()}},
		map[string]any{"term": map[string]any{"hasMedia": true}},
		map[string]any{"range": map[string]any{"price": map[string]any{"gte": 1000.0, "lte": 5000.0}}},
		map[string]any{"range": map[string]any{"year": map[string]any{"gte": 2015.0}}},
	}
	if !reflect.DeepEqual(filters, want) {
		t.Fatalf("unexpected filters\n got %v\nwant %v", filters, want)
	}

	must := dig(t, boolQuery, "must").([]any)
	match := dig(t, must[0], "multi_match")
	if dig(t, match, "type") != "most_fields" || dig(t, match, "query") != "автокран" {
		t.Fatalf("unexpected multi_match %v", match)
	}
	if fields := dig(t, match, "fields"); !reflect.DeepEqual(fields, []any{"title^3", "description"}) {
		t.Fatalf("unexpected fields %v", fields)
	}

	terms := dig(t, body, "aggs", "categories", "terms")
	if dig(t, terms, "field") != "categoryId" || dig(t, terms, "size") != float64(50) {
		t.Fatalf("unexpected facet aggregation %v", terms)
	}
}

func TestBuildSearchBodyWithoutTextHasOnlyStatusFilter(t *testing.T) {
	body := roundTrip(t, buildSearchBody(Query{Limit: 20}))
	boolQuery := dig(t, body, "query", "function_score", "query", "bool").(map[string]any)
	if _, ok := boolQuery["must"]; ok {
		t.Fatalf("must clause should be absent without text")
	}
	if filters := boolQuery["filter"].([]any); len(filters) != 1 {
		t.Fatalf("expected only the status filter, got %v", filters)
	}
}

func TestRankingFunctions(t *testing.T) {
	body := roundTrip(t, buildSearchBody(Query{Limit: 20}))
	score := dig(t, body, "query", "function_score")
	if dig(t, score, "score_mode") != "sum" || dig(t, score, "boost_mode") != "sum" {
		t.Fatalf("expected additive scoring, got %v", score)
	}
	functions := dig(t, score, "functions").([]any)
	if len(functions) != 5 {
		t.Fatalf("expected five functions, got %d", len(functions))
	}
	weights := []float64{4, 2, 1.2}
	for i, weight := range weights {
		if got := dig(t, functions[i], "weight"); got != weight {
			t.Fatalf("function %d: expected weight %v got %v", i, weight, got)
		}
	}
	topExcludesVIP := dig(t, functions[1], "filter", "bool", "must_not").([]any)
	if !reflect.DeepEqual(topExcludesVIP[0], map[string]any{"term": map[string]any{"isVIP": true}}) {
		t.Fatalf("TOP bonus must exclude VIP documents, got %v", topExcludesVIP)
	}
	boost := dig(t, functions[3], "field_value_factor")
	if dig(t, boost, "field") != "boostScore" || dig(t, boost, "factor") != 1.5 {
		t.Fatalf("unexpected boost factor %v", boost)
	}
	fresh := dig(t, functions[4], "field_value_factor")
	if dig(t, fresh, "field") != "freshnessScore" || dig(t, fresh, "factor") != 2.0 || dig(t, fresh, "missing") != 0.1 {
		t.Fatalf("unexpected freshness factor %v", fresh)
	}
}

func TestBuildSort(t *testing.T) {
	created := map[string]any{"createdAt": map[string]any{"order": "desc"}}
	score := map[string]any{"_score": map[string]any{"order": "desc"}}
	tests := []struct {
		option enums.SortOption
		want   []any
	}{
		{option: enums.SortRelevance, want: []any{score, created}},
		{option: "", want: []any{score, created}},
		{option: enums.SortNewest, want: []any{created, score}},
		{option: enums.SortPriceAsc, want: []any{map[string]any{"price": map[string]any{"order": "asc", "missing": "_last"}}, created}},
		{option: enums.SortPriceDesc, want: []any{map[string]any{"price": map[string]any{"order": "desc", "missing": "_last"}}, created}},
		{option: enums.SortYearDesc, want: []any{map[string]any{"year": map[string]any{"order": "desc", "missing": "_last"}}, created}},
	}
	for _, tt := range tests {
		if got := buildSort(tt.option); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("sort %q: got %v want %v", tt.option, got, tt.want)
		}
	}
}

func TestDecodeCategoryFacets(t *testing.T) {
	raw := json.RawMessage(`{"categories":{"buckets":[{"key":"c1","doc_count":7},{"key":"c2","doc_count":2}]}}`)
	got, err := decodeCategoryFacets(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []FacetBucket{{ID: "c1", Count: 7}, {ID: "c2", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got, _ := decodeCategoryFacets(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil facets, got %#v", got)
	}
}

func TestListingsMappingIsValidJSON(t *testing.T) {
	var mapping map[string]any
	if err := json.Unmarshal([]byte(listingsMapping), &mapping); err != nil {
		t.Fatalf("mapping is not valid json: %v", err)
	}
	if dig(t, mapping, "mappings", "properties", "geo", "type") != "geo_point" {
		t.Fatalf("geo must be mapped as geo_point")
	}
}
