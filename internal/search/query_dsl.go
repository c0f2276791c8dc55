package search

import (
	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// listingsMapping is the index definition used by Ensure and Recreate.
const listingsMapping = `{
  "settings": {
    "index": {"number_of_shards": 1, "number_of_replicas": 0},
    "analysis": {
      "analyzer": {
        "listing_text": {"type": "custom", "tokenizer": "standard", "filter": ["lowercase"]}
      }
    }
  },
  "mappings": {
    "dynamic": "strict",
    "properties": {
      "id": {"type": "keyword"},
      "title": {"type": "text", "analyzer": "listing_text"},
      "description": {"type": "text", "analyzer": "listing_text"},
      "slug": {"type": "keyword"},
      "categoryId": {"type": "keyword"},
      "categorySlug": {"type": "keyword"},
      "cityId": {"type": "keyword"},
      "citySlug": {"type": "keyword"},
      "regionId": {"type": "keyword"},
      "dealerId": {"type": "keyword"},
      "dealerPlan": {"type": "keyword"},
      "dealType": {"type": "keyword"},
      "sellerType": {"type": "keyword"},
      "status": {"type": "keyword"},
      "year": {"type": "integer"},
      "price": {"type": "double"},
      "priceCurrency": {"type": "keyword"},
      "createdAt": {"type": "date"},
      "updatedAt": {"type": "date"},
      "expiresAt": {"type": "date"},
      "publishedAt": {"type": "date"},
      "mediaCount": {"type": "integer"},
      "hasMedia": {"type": "boolean"},
      "isVIP": {"type": "boolean"},
      "isTOP": {"type": "boolean"},
      "isHighlight": {"type": "boolean"},
      "boostScore": {"type": "float"},
      "freshnessScore": {"type": "float"},
      "geo": {"type": "geo_point"},
      "attributes": {
        "type": "nested",
        "properties": {
          "key": {"type": "keyword"},
          "value": {"type": "keyword"},
          "numeric": {"type": "double"}
        }
      }
    }
  }
}`

// buildSearchBody translates a Query into an OpenSearch request body.
func buildSearchBody(q Query) map[string]any {
	return map[string]any{
		"from":             q.Offset,
		"size":             q.Limit,
		"track_total_hits": true,
		"query": map[string]any{
			"function_score": map[string]any{
				"query":      buildBoolQuery(q),
				"score_mode": "sum",
				"boost_mode": "sum",
				"functions":  rankingFunctions(),
			},
		},
		"sort": buildSort(q.Sort),
		"aggs": map[string]any{
			"categories": map[string]any{
				"terms": map[string]any{"field": "categoryId", "size": facetCategoryBucketMax},
			},
		},
	}
}

func buildBoolQuery(q Query) map[string]any {
	filter := []any{term("status", string(enums.ListingStatusPublished))}
	for _, exact := range []struct {
		field string
		id    *uuid.UUID
	}{
		{"categoryId", q.CategoryID},
		{"cityId", q.CityID},
		{"regionId", q.RegionID},
		{"dealerId", q.DealerID},
	} {
		if exact.id != nil {
			filter = append(filter, term(exact.field, exact.id.String()))
		}
	}
	if q.HasMedia {
		filter = append(filter, term("hasMedia", true))
	}
	if r := rangeClause(q.PriceFrom, q.PriceTo); r != nil {
		filter = append(filter, map[string]any{"range": map[string]any{"price": r}})
	}
	if r := rangeClause(q.YearFrom, q.YearTo); r != nil {
		filter = append(filter, map[string]any{"range": map[string]any{"year": r}})
	}

	boolQuery := map[string]any{"filter": filter}
	if q.Text != "" {
		boolQuery["must"] = []any{map[string]any{
			"multi_match": map[string]any{
				"query":  q.Text,
				"type":   "most_fields",
				"fields": []string{"title^3", "description"},
			},
		}}
	}
	return map[string]any{"bool": boolQuery}
}

// rankingFunctions mirrors promotionScore. Tier filters exclude higher tiers so
// only the top qualifying bonus is added.
func rankingFunctions() []any {
	return []any{
		map[string]any{"filter": term("isVIP", true), "weight": vipBonus},
		map[string]any{"filter": tierOnly("isTOP", "isVIP"), "weight": topBonus},
		map[string]any{"filter": tierOnly("isHighlight", "isTOP"), "weight": highlightBonus},
		map[string]any{"field_value_factor": map[string]any{"field": "boostScore", "factor": boostFactor, "missing": 0}},
		map[string]any{"field_value_factor": map[string]any{"field": "freshnessScore", "factor": freshnessFactor, "missing": missingFreshness}},
	}
}

func buildSort(option enums.SortOption) []any {
	createdDesc := map[string]any{"createdAt": map[string]any{"order": "desc"}}
	scoreDesc := map[string]any{"_score": map[string]any{"order": "desc"}}
	switch option {
	case enums.SortNewest:
		return []any{createdDesc, scoreDesc}
	case enums.SortPriceAsc:
		return []any{map[string]any{"price": map[string]any{"order": "asc", "missing": "_last"}}, createdDesc}
	case enums.SortPriceDesc:
		return []any{map[string]any{"price": map[string]any{"order": "desc", "missing": "_last"}}, createdDesc}
	case enums.SortYearDesc:
		return []any{map[string]any{"year": map[string]any{"order": "desc", "missing": "_last"}}, createdDesc}
	default:
		return []any{scoreDesc, createdDesc}
	}
}

func term(field string, value any) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

func tierOnly(field, higher string) map[string]any {
	return map[string]any{"bool": map[string]any{
		"filter":   []any{term(field, true)},
		"must_not": []any{term(higher, true)},
	}}
}

func rangeClause(from, to *float64) map[string]any {
	if from == nil && to == nil {
		return nil
	}
	r := map[string]any{}
	if from != nil {
		r["gte"] = *from
	}
	if to != nil {
		r["lte"] = *to
	}
	return r
}
