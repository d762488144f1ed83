package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/storage"
)

// Index wraps a Bleve search index over notice text
type Index struct {
	index bleve.Index
}

// IndexedNotice is the document stored in the index
type IndexedNotice struct {
	ID        string
	Key       string
	Location  string
	Body      string
	Text      string
	QCode     string
	Subject   string
	Condition string
	Permanent bool
	Estimated bool
}

// SearchResult is one hit
type SearchResult struct {
	ID        uint32
	Key       string
	Location  string
	Score     float64
	Fragments map[string][]string // Highlighted snippets
}

// Open opens or creates a Bleve index
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// NewMemOnly creates an index that lives in memory
func NewMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

// buildIndexMapping analyzes notice text in English and keeps codes as
// exact keywords
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "en"

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("ID", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Key", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Location", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("QCode", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Body", textFieldMapping)
	docMapping.AddFieldMappingsAt("Text", textFieldMapping)
	docMapping.AddFieldMappingsAt("Subject", textFieldMapping)
	docMapping.AddFieldMappingsAt("Condition", textFieldMapping)
	docMapping.AddFieldMappingsAt("Permanent", bleve.NewBooleanFieldMapping())
	docMapping.AddFieldMappingsAt("Estimated", bleve.NewBooleanFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	indexMapping.DefaultField = "Body"

	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

func toIndexed(r notice.Record) *IndexedNotice {
	return &IndexedNotice{
		ID:        strconv.FormatUint(uint64(r.ID), 10),
		Key:       r.Key,
		Location:  r.Location,
		Body:      r.Body,
		Text:      r.All,
		QCode:     r.QCode,
		Subject:   r.Subject,
		Condition: r.Condition,
		Permanent: r.Permanent,
		Estimated: r.Estimated,
	}
}

// IndexNotices adds or updates records in one batch
func (i *Index) IndexNotices(records []notice.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := i.index.NewBatch()
	for _, r := range records {
		doc := toIndexed(r)
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Delete removes a notice from the index
func (i *Index) Delete(id uint32) error {
	return i.index.Delete(strconv.FormatUint(uint64(id), 10))
}

// Search runs a query string (quotes, boolean operators, fuzzy ~) over
// notice text. A non-empty locations list restricts hits to those codes.
func (i *Index) Search(queryStr string, locations []string, limit int) ([]*SearchResult, error) {
	var q query.Query = bleve.NewQueryStringQuery(queryStr)

	if len(locations) > 0 {
		var locQueries []query.Query
		for _, loc := range locations {
			tq := bleve.NewTermQuery(strings.ToUpper(strings.TrimSpace(loc)))
			tq.SetField("Location")
			locQueries = append(locQueries, tq)
		}
		q = bleve.NewConjunctionQuery(q, bleve.NewDisjunctionQuery(locQueries...))
	}

	search := bleve.NewSearchRequestOptions(q, limit, 0, false)
	search.Highlight = bleve.NewHighlightWithStyle("html")
	search.Fields = []string{"Key", "Location"}

	results, err := i.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var searchResults []*SearchResult
	for _, hit := range results.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 32)
		if err != nil {
			continue
		}

		result := &SearchResult{
			ID:        uint32(id),
			Score:     hit.Score,
			Fragments: hit.Fragments,
		}
		if key, ok := hit.Fields["Key"].(string); ok {
			result.Key = key
		}
		if loc, ok := hit.Fields["Location"].(string); ok {
			result.Location = loc
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// IndexFromStore indexes every stored notice
func (i *Index) IndexFromStore(ctx context.Context, store storage.NoticeStore) (int, error) {
	records, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notices: %w", err)
	}

	if err := i.IndexNotices(records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Prune deletes indexed notices the store no longer holds and returns how
// many were removed
func (i *Index) Prune(ctx context.Context, store storage.NoticeStore) (int, error) {
	records, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notices: %w", err)
	}
	keep := make(map[string]struct{}, len(records))
	for _, r := range records {
		keep[strconv.FormatUint(uint64(r.ID), 10)] = struct{}{}
	}

	count, err := i.index.DocCount()
	if err != nil || count == 0 {
		return 0, err
	}

	all := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	results, err := i.index.Search(all)
	if err != nil {
		return 0, fmt.Errorf("list indexed notices: %w", err)
	}

	var pruned int
	for _, hit := range results.Hits {
		if _, ok := keep[hit.ID]; ok {
			continue
		}
		id, err := strconv.ParseUint(hit.ID, 10, 32)
		if err != nil {
			continue
		}
		if err := i.Delete(uint32(id)); err != nil {
			return pruned, fmt.Errorf("delete %s: %w", hit.ID, err)
		}
		pruned++
	}
	return pruned, nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
