// Package esindex is the production storage.Index implementation,
// backed by Elasticsearch via github.com/olivere/elastic/v7.
package esindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olivere/elastic/v7"

	"github.com/mirraman/logpipe/pkg/model"
)

// indexMapping is the schema spec.md §4.5 names: single shard, no
// replica, 5-second refresh interval; message gets a keyword subfield
// capped at 256 characters.
const indexMapping = `{
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0,
		"refresh_interval": "5s"
	},
	"mappings": {
		"properties": {
			"id": {"type": "keyword"},
			"app_name": {"type": "keyword"},
			"level": {"type": "keyword"},
			"timestamp": {"type": "date"},
			"message": {
				"type": "text",
				"fields": {
					"keyword": {"type": "keyword", "ignore_above": 256}
				}
			},
			"attributes": {"type": "object"}
		}
	}
}`

// Index wraps an *elastic.Client to satisfy storage.Index.
type Index struct {
	client *elastic.Client
	logger *slog.Logger
}

// New creates an Index against the Elasticsearch cluster at url.
func New(url string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheckTimeoutStartup(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to elasticsearch at %s: %w", url, err)
	}
	return &Index{client: client, logger: logger}, nil
}

// EnsureIndices creates logs-hot and logs-cold if either is absent.
func (i *Index) EnsureIndices(ctx context.Context) error {
	for _, name := range []string{"logs-hot", "logs-cold"} {
		exists, err := i.client.IndexExists(name).Do(ctx)
		if err != nil {
			return fmt.Errorf("check index %s: %w", name, err)
		}
		if exists {
			continue
		}
		if _, err := i.client.CreateIndex(name).BodyString(indexMapping).Do(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
		i.logger.Info("created index", "index", name)
	}
	return nil
}

// Upsert bulk-indexes entries into index, keyed by id.
func (i *Index) Upsert(ctx context.Context, index string, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	bulk := i.client.Bulk()
	for _, e := range entries {
		bulk.Add(elastic.NewBulkIndexRequest().Index(index).Id(e.ID).Doc(e))
	}

	resp, err := bulk.Do(ctx)
	if err != nil {
		return fmt.Errorf("bulk upsert into %s: %w", index, err)
	}
	if resp.Errors {
		i.logger.Error("bulk upsert had partial failures", "index", index, "failed", len(resp.Failed()))
	}
	return nil
}

// Search builds a boolean-AND query from query's set fields and runs it
// against indices, sorted by timestamp descending.
func (i *Index) Search(ctx context.Context, indices []string, query model.SearchQuery) ([]model.LogEntry, error) {
	esQuery := buildQuery(query)

	searchResult, err := i.client.Search().
		Index(indices...).
		Query(esQuery).
		Sort("timestamp", false).
		Size(query.EffectiveLimit()).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]model.LogEntry, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		entry, ok := parseHit(hit.Source)
		if !ok {
			continue
		}
		results = append(results, entry)
	}
	return results, nil
}

func buildQuery(q model.SearchQuery) elastic.Query {
	boolQuery := elastic.NewBoolQuery()
	clauses := 0

	if q.AppName != nil {
		boolQuery = boolQuery.Must(elastic.NewTermQuery("app_name", *q.AppName))
		clauses++
	}
	if q.Level != nil {
		boolQuery = boolQuery.Must(elastic.NewTermQuery("level", string(*q.Level)))
		clauses++
	}
	if q.From != nil || q.To != nil {
		rangeQuery := elastic.NewRangeQuery("timestamp")
		if q.From != nil {
			rangeQuery = rangeQuery.Gte(q.From.Format(time.RFC3339))
		}
		if q.To != nil {
			rangeQuery = rangeQuery.Lte(q.To.Format(time.RFC3339))
		}
		boolQuery = boolQuery.Must(rangeQuery)
		clauses++
	}
	for key, value := range q.Attributes {
		boolQuery = boolQuery.Must(elastic.NewTermQuery("attributes."+key, value))
		clauses++
	}

	if clauses == 0 {
		return elastic.NewMatchAllQuery()
	}
	return boolQuery
}

func parseHit(raw json.RawMessage) (model.LogEntry, bool) {
	var doc struct {
		ID         string            `json:"id"`
		AppName    string            `json:"app_name"`
		Level      string            `json:"level"`
		Timestamp  string            `json:"timestamp"`
		Message    string            `json:"message"`
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.LogEntry{}, false
	}

	level, ok := model.ParseLevel(doc.Level)
	if !ok {
		return model.LogEntry{}, false
	}
	ts, err := time.Parse(time.RFC3339, doc.Timestamp)
	if err != nil {
		return model.LogEntry{}, false
	}

	return model.LogEntry{
		ID:         doc.ID,
		AppName:    doc.AppName,
		Level:      level,
		Timestamp:  ts,
		Message:    doc.Message,
		Attributes: doc.Attributes,
	}, true
}

// ReindexOlderThan copies matching documents from srcIndex into
// dstIndex using Elasticsearch's reindex API, leaving srcIndex untouched.
func (i *Index) ReindexOlderThan(ctx context.Context, srcIndex, dstIndex string, before time.Time) error {
	source := elastic.NewSearchSource().Query(elastic.NewRangeQuery("timestamp").Lt(before.Format(time.RFC3339)))

	_, err := i.client.Reindex().
		SourceIndex(srcIndex).
		SourceQuery(source.Query()).
		DestinationIndex(dstIndex).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("reindex %s -> %s: %w", srcIndex, dstIndex, err)
	}
	return nil
}

// DeleteOlderThan removes documents older than before from index via
// delete-by-query.
func (i *Index) DeleteOlderThan(ctx context.Context, index string, before time.Time) error {
	rangeQuery := elastic.NewRangeQuery("timestamp").Lt(before.Format(time.RFC3339))

	_, err := i.client.DeleteByQuery(index).Query(rangeQuery).Do(ctx)
	if err != nil {
		return fmt.Errorf("delete-by-query on %s: %w", index, err)
	}
	return nil
}
