package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/pointid"
)

const (
	fieldVideoID = "video_id"
	fieldIndex   = "index"
	fieldStart   = "start"
	fieldText    = "text"

	deleteBatchSize = 1000
)

// momentDoc is the indexed form of a transcript entry.
type momentDoc struct {
	VideoID string  `json:"video_id"`
	Index   int     `json:"index"`
	Start   float64 `json:"start"`
	Text    string  `json:"text"`
}

// BleveIndex implements MomentIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// momentMapping indexes entry text with the standard analyzer (lowercase + tokenize, no stemming)
// so spoken words match as said, and the video id as a single exact term.
func momentMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldText, textFieldMapping)
	videoFieldMapping := bleve.NewTextFieldMapping()
	videoFieldMapping.Analyzer = keywordanalyzer.Name
	docMapping.AddFieldMappingsAt(fieldVideoID, videoFieldMapping)
	docMapping.AddFieldMappingsAt(fieldIndex, bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt(fieldStart, bleve.NewNumericFieldMapping())
	im.AddDocumentMapping("moment", docMapping)
	im.DefaultType = "moment"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, momentMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemBleveIndex creates an in-memory index, used when no index path is configured.
func NewMemBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(momentMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexTranscript replaces the video's entries in one batch. Entries with no text are skipped.
func (b *BleveIndex) IndexTranscript(ctx context.Context, t *models.Transcript) error {
	if err := b.DeleteVideo(ctx, t.VideoID); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for i, e := range t.Entries {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		doc := momentDoc{VideoID: t.VideoID, Index: i, Start: e.StartTime, Text: text}
		if err := batch.Index(pointid.EntryID(t.VideoID, i), doc); err != nil {
			return fmt.Errorf("failed to add entry %d to batch: %w", i, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index transcript: %w", err)
	}
	return nil
}

func videoQuery(videoID string) *blevequery.TermQuery {
	q := bleve.NewTermQuery(videoID)
	q.SetField(fieldVideoID)
	return q
}

// DeleteVideo removes every entry of videoID.
func (b *BleveIndex) DeleteVideo(ctx context.Context, videoID string) error {
	for {
		req := bleve.NewSearchRequest(videoQuery(videoID))
		req.Size = deleteBatchSize
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to list entries of %s: %w", videoID, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete entries of %s: %w", videoID, err)
		}
	}
}

// Search returns entries of videoID matching query, best first. With FuzzyFallback, a query that
// matches nothing exactly is retried with fuzzy term matching.
func (b *BleveIndex) Search(ctx context.Context, videoID, query string, limit int, opts *SearchOptions) ([]*MomentHit, error) {
	phraseBoost := 1.0
	fuzzyFallback := false
	fuzziness := 1
	if opts != nil {
		if opts.PhraseBoost > 0 {
			phraseBoost = opts.PhraseBoost
		}
		fuzzyFallback = opts.FuzzyFallback
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	if limit <= 0 {
		limit = 10
	}

	match := bleve.NewMatchQuery(query)
	match.SetField(fieldText)
	hits, err := b.search(ctx, videoID, match, query, limit, phraseBoost)
	if err != nil || len(hits) > 0 || !fuzzyFallback {
		return hits, err
	}

	fuzzy := buildFuzzyQuery(query, fuzziness)
	if fuzzy == nil {
		return hits, nil
	}
	hits, err = b.search(ctx, videoID, fuzzy, query, limit, 1)
	for _, h := range hits {
		h.Fuzzy = true
	}
	return hits, err
}

func (b *BleveIndex) search(ctx context.Context, videoID string, textQuery blevequery.Query, query string, limit int, phraseBoost float64) ([]*MomentHit, error) {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(videoQuery(videoID), textQuery)
	if phraseBoost > 1 && len(tokenizeQuery(query)) > 1 {
		phrase := bleve.NewMatchPhraseQuery(query)
		phrase.SetField(fieldText)
		phrase.SetBoost(phraseBoost)
		bq.AddShould(phrase)
	}
	req := bleve.NewSearchRequest(bq)
	req.Size = limit
	req.Fields = []string{fieldVideoID, fieldIndex, fieldStart, fieldText}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*MomentHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h := &MomentHit{ID: hit.ID, VideoID: videoID, Score: hit.Score}
		if v, ok := hit.Fields[fieldIndex].(float64); ok {
			h.Index = int(v)
		}
		if v, ok := hit.Fields[fieldStart].(float64); ok {
			h.StartTime = v
		}
		if v, ok := hit.Fields[fieldText].(string); ok {
			h.Text = v
		}
		out = append(out, h)
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries over the text field, one per term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		return nil
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(fieldText)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the total number of indexed entries.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
