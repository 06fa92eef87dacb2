package chromem

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"sitechat-rag/internal/models"
	"sitechat-rag/internal/store"
)

const compress = false

// Store is an embedded corpus store backed by chromem-go, for single-binary
// deployments without an external database. Each (site, kind) pair maps to
// its own collection so a full replace is a collection swap.
type Store struct {
	db *chromem.DB
}

// New opens the store at path, or fully in-memory when path is empty.
func New(path string) (*Store, error) {
	if path == "" {
		return &Store{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("open vector database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) ReplaceAll(ctx context.Context, siteID string, kind models.SourceKind, recs []models.Record) (int, int, error) {
	name := collectionName(siteID, kind)

	deleted := 0
	if existing := s.db.GetCollection(name, nil); existing != nil {
		deleted = existing.Count()
		if err := s.db.DeleteCollection(name); err != nil {
			// fail closed: deletion status unknown, do not insert
			return 0, 0, fmt.Errorf("clear %s records for site %s: %w", kind, siteID, err)
		}
	}

	if len(recs) == 0 {
		return deleted, 0, nil
	}

	collection, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return deleted, 0, fmt.Errorf("create collection %s: %w", name, err)
	}

	docs := make([]chromem.Document, len(recs))
	for i, rec := range recs {
		docs[i] = toDocument(rec, i)
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return deleted, 0, fmt.Errorf("insert %s records for site %s: %w", kind, siteID, err)
	}
	return deleted, len(docs), nil
}

func (s *Store) FindBySequence(ctx context.Context, siteID string, kind models.SourceKind, seq int) (models.Record, error) {
	collection := s.db.GetCollection(collectionName(siteID, kind), nil)
	if collection == nil {
		return models.Record{}, store.ErrNotFound
	}
	doc, err := collection.GetByID(ctx, documentID(siteID, kind, seq))
	if err != nil {
		return models.Record{}, store.ErrNotFound
	}
	return fromDocument(doc, 0), nil
}

func (s *Store) VectorSearch(ctx context.Context, q store.SimilarityQuery) ([]models.Record, error) {
	q = q.WithDefaults()

	// Search is exact here, so the candidate pool collapses into the
	// result limit. Both kinds share the site's ranking.
	type scored struct {
		rec models.Record
		sim float32
	}
	var merged []scored
	for _, kind := range []models.SourceKind{models.SourceDocument, models.SourceProduct} {
		collection := s.db.GetCollection(collectionName(q.SiteID, kind), nil)
		if collection == nil {
			continue
		}
		n := q.Limit
		if count := collection.Count(); count < n {
			n = count
		}
		if n == 0 {
			continue
		}
		results, err := collection.QueryWithOptions(ctx, chromem.QueryOptions{
			QueryEmbedding: q.Vector,
			NResults:       n,
		})
		if err != nil {
			return nil, fmt.Errorf("vector search for site %s: %w", q.SiteID, err)
		}
		for _, res := range results {
			merged = append(merged, scored{rec: resultToRecord(res), sim: res.Similarity})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].sim > merged[j].sim })
	if len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}
	out := make([]models.Record, len(merged))
	for i, m := range merged {
		out[i] = m.rec
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}

func collectionName(siteID string, kind models.SourceKind) string {
	return fmt.Sprintf("%s-%s", siteID, kind)
}

// documentID is deterministic for document chunks so neighbors resolve by
// ID; product records get a per-batch position instead.
func documentID(siteID string, kind models.SourceKind, seq int) string {
	return fmt.Sprintf("%s-%s-%d", siteID, kind, seq)
}

func toDocument(rec models.Record, batchPos int) chromem.Document {
	pos := rec.Sequence
	if !rec.HasSequence() {
		pos = batchPos
	}
	return chromem.Document{
		ID:      documentID(rec.SiteID, rec.Kind, pos),
		Content: rec.Text,
		Metadata: map[string]string{
			"site_id":           rec.SiteID,
			"kind":              string(rec.Kind),
			"sequence":          strconv.Itoa(rec.Sequence),
			"name":              rec.Name,
			"permalink":         rec.Permalink,
			"description":       rec.Description,
			"short_description": rec.ShortDescription,
			"price":             rec.Price,
			"stock_status":      rec.StockStatus,
		},
		Embedding: rec.Embedding,
	}
}

func fromDocument(doc chromem.Document, _ float32) models.Record {
	meta := doc.Metadata
	return models.Record{
		ID:               doc.ID,
		SiteID:           meta["site_id"],
		Kind:             models.ParseSourceKind(meta["kind"]),
		Sequence:         parseSequence(meta["sequence"]),
		Text:             doc.Content,
		Name:             meta["name"],
		Permalink:        meta["permalink"],
		Description:      meta["description"],
		ShortDescription: meta["short_description"],
		Price:            meta["price"],
		StockStatus:      meta["stock_status"],
		Embedding:        doc.Embedding,
	}
}

func resultToRecord(res chromem.Result) models.Record {
	return fromDocument(chromem.Document{
		ID:        res.ID,
		Content:   res.Content,
		Metadata:  res.Metadata,
		Embedding: res.Embedding,
	}, res.Similarity)
}

// parseSequence normalizes the string metadata back into the semantic
// integer; anything unparseable means "no sequence".
func parseSequence(s string) int {
	seq, err := strconv.Atoi(s)
	if err != nil || seq < 0 {
		return models.NoSequence
	}
	return seq
}
