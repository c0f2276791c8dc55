package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
)

const (
	refreshWaitFor = "wait_for"
	refreshNow     = "true"
)

// OpenSearchIndex stores listing documents in one OpenSearch index.
type OpenSearchIndex struct {
	client *opensearchapi.Client
	name   string

	mu      sync.Mutex
	ensured bool
}

func NewOpenSearchIndex(client *opensearchapi.Client, name string) (*OpenSearchIndex, error) {
	if client == nil {
		return nil, errors.New("opensearch client required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("index name required")
	}
	return &OpenSearchIndex{client: client, name: name}, nil
}

func (i *OpenSearchIndex) Exists(ctx context.Context) (bool, error) {
	resp, err := i.client.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{i.name}})
	if isNotFound(resp) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", i.name, err)
	}
	return true, nil
}

// Ensure creates the index with its mapping once per process.
func (i *OpenSearchIndex) Ensure(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ensured {
		return nil
	}
	exists, err := i.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if err := i.create(ctx); err != nil {
			return err
		}
	}
	i.ensured = true
	return nil
}

// Recreate drops the index (ignoring a missing one) and creates it empty.
func (i *OpenSearchIndex) Recreate(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ensured = false

	resp, err := i.client.Indices.Delete(ctx, opensearchapi.IndicesDeleteReq{Indices: []string{i.name}})
	if err != nil && (resp == nil || !isNotFound(resp.Inspect().Response)) {
		return fmt.Errorf("delete index %s: %w", i.name, err)
	}
	if err := i.create(ctx); err != nil {
		return err
	}
	i.ensured = true
	return nil
}

func (i *OpenSearchIndex) create(ctx context.Context) error {
	_, err := i.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: i.name,
		Body:  strings.NewReader(listingsMapping),
	})
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.name, err)
	}
	return nil
}

func (i *OpenSearchIndex) Upsert(ctx context.Context, doc ListingDocument) error {
	if err := i.Ensure(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode listing document: %w", err)
	}
	_, err = i.client.Index(ctx, opensearchapi.IndexReq{
		Index:      i.name,
		DocumentID: doc.ID.String(),
		Body:       bytes.NewReader(body),
		Params:     opensearchapi.IndexParams{Refresh: refreshWaitFor},
	})
	if err != nil {
		return fmt.Errorf("index listing %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes one document. A missing document is not an error.
func (i *OpenSearchIndex) Delete(ctx context.Context, id uuid.UUID) error {
	if err := i.Ensure(ctx); err != nil {
		return err
	}
	resp, err := i.client.Document.Delete(ctx, opensearchapi.DocumentDeleteReq{
		Index:      i.name,
		DocumentID: id.String(),
		Params:     opensearchapi.DocumentDeleteParams{Refresh: refreshWaitFor},
	})
	if err != nil && (resp == nil || !isNotFound(resp.Inspect().Response)) {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	return nil
}

func (i *OpenSearchIndex) BulkUpsert(ctx context.Context, docs []ListingDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if err := i.Ensure(ctx); err != nil {
		return err
	}
	var body bytes.Buffer
	encoder := json.NewEncoder(&body)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": i.name, "_id": doc.ID.String()}}
		if err := encoder.Encode(action); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encode listing document: %w", err)
		}
	}

	resp, err := i.client.Bulk(ctx, opensearchapi.BulkReq{
		Body:   &body,
		Params: opensearchapi.BulkParams{Refresh: refreshNow},
	})
	if err != nil {
		return fmt.Errorf("bulk index %d listings: %w", len(docs), err)
	}
	if resp.Errors {
		for _, item := range resp.Items {
			for _, result := range item {
				if result.Error != nil {
					return fmt.Errorf("bulk index listing %s: %s: %s", result.ID, result.Error.Type, result.Error.Reason)
				}
			}
		}
		return errors.New("bulk index reported errors")
	}
	return nil
}

func (i *OpenSearchIndex) Search(ctx context.Context, query Query) (*Page, error) {
	body, err := json.Marshal(buildSearchBody(query))
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}
	resp, err := i.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{i.name},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		if resp != nil && isNotFound(resp.Inspect().Response) {
			return nil, ErrIndexMissing
		}
		return nil, fmt.Errorf("search %s: %w", i.name, err)
	}

	page := &Page{Total: resp.Hits.Total.Value, Documents: make([]ListingDocument, 0, len(resp.Hits.Hits))}
	for _, hit := range resp.Hits.Hits {
		if len(hit.Source) == 0 {
			continue
		}
		var doc ListingDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", hit.ID, err)
		}
		page.Documents = append(page.Documents, doc)
	}
	page.Categories, err = decodeCategoryFacets(resp.Aggregations)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (i *OpenSearchIndex) Ping(ctx context.Context) error {
	if _, err := i.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping opensearch: %w", err)
	}
	return nil
}

func decodeCategoryFacets(raw json.RawMessage) ([]FacetBucket, error) {
	out := []FacetBucket{}
	if len(raw) == 0 {
		return out, nil
	}
	var aggs struct {
		Categories struct {
			Buckets []struct {
				Key      any `json:"key"`
				DocCount int `json:"doc_count"`
			} `json:"buckets"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(raw, &aggs); err != nil {
		return nil, fmt.Errorf("decode category facets: %w", err)
	}
	for _, bucket := range aggs.Categories.Buckets {
		out = append(out, FacetBucket{ID: fmt.Sprint(bucket.Key), Count: bucket.DocCount})
	}
	return out, nil
}

func isNotFound(resp *opensearch.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

var _ Index = (*OpenSearchIndex)(nil)
