package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"sitechat-rag/internal/config"
	"sitechat-rag/internal/models"
	"sitechat-rag/internal/store"
)

// Store is the Qdrant-backed corpus store. All sites share one collection;
// scoping happens through payload filters on site_id and kind.
type Store struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
}

// New creates a Qdrant client from the storage config.
func New(cfg *config.StorageConfig) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	parsedURL := cfg.URL
	if !strings.HasPrefix(parsedURL, "http://") && !strings.HasPrefix(parsedURL, "https://") {
		parsedURL = "https://" + parsedURL
	}
	u, err := url.Parse(parsedURL)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}

	host := u.Hostname()
	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.Collection,
		dimension:  uint64(cfg.Dimension),
	}, nil
}

// Init creates the collection when it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, siteID string, kind models.SourceKind, recs []models.Record) (int, int, error) {
	filter := siteKindFilter(siteID, kind)

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("count %s records for site %s: %w", kind, siteID, err)
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		// fail closed: deletion status unknown, do not insert
		return 0, 0, fmt.Errorf("clear %s records for site %s: %w", kind, siteID, err)
	}
	deleted := int(count)

	if len(recs) == 0 {
		return deleted, 0, nil
	}

	points := make([]*qdrant.PointStruct, len(recs))
	for i, rec := range recs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: recordPayload(rec),
		}
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return deleted, 0, fmt.Errorf("insert %s records for site %s: %w", kind, siteID, err)
	}
	return deleted, len(points), nil
}

func (s *Store) FindBySequence(ctx context.Context, siteID string, kind models.SourceKind, seq int) (models.Record, error) {
	filter := siteKindFilter(siteID, kind)
	filter.Must = append(filter.Must, qdrant.NewMatchInt("sequence", int64(seq)))

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return models.Record{}, fmt.Errorf("find sequence %d for site %s: %w", seq, siteID, err)
	}
	if len(points) == 0 {
		return models.Record{}, store.ErrNotFound
	}
	return payloadToRecord(pointID(points[0].Id), points[0].Payload), nil
}

func (s *Store) VectorSearch(ctx context.Context, q store.SimilarityQuery) ([]models.Record, error) {
	q = q.WithDefaults()

	limit := uint64(q.Limit)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(q.Vector...),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("site_id", q.SiteID)},
		},
		Params: &qdrant.SearchParams{
			HnswEf: qdrant.PtrOf(uint64(q.CandidatePool)),
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vector search for site %s: %w", q.SiteID, err)
	}

	out := make([]models.Record, 0, len(points))
	for _, point := range points {
		out = append(out, payloadToRecord(pointID(point.Id), point.Payload))
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func siteKindFilter(siteID string, kind models.SourceKind) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("site_id", siteID),
			qdrant.NewMatch("kind", string(kind)),
		},
	}
}

func recordPayload(rec models.Record) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		"site_id":           rec.SiteID,
		"kind":              string(rec.Kind),
		"sequence":          int64(rec.Sequence),
		"text":              rec.Text,
		"name":              rec.Name,
		"permalink":         rec.Permalink,
		"description":       rec.Description,
		"short_description": rec.ShortDescription,
		"price":             rec.Price,
		"stock_status":      rec.StockStatus,
	})
}

// payloadToRecord normalizes the qdrant payload back into the
// storage-agnostic record, including the integer sequence.
func payloadToRecord(id string, payload map[string]*qdrant.Value) models.Record {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	seq := models.NoSequence
	if v, ok := payload["sequence"]; ok {
		if n := v.GetIntegerValue(); n >= 0 {
			seq = int(n)
		}
	}
	return models.Record{
		ID:               id,
		SiteID:           str("site_id"),
		Kind:             models.ParseSourceKind(str("kind")),
		Sequence:         seq,
		Text:             str("text"),
		Name:             str("name"),
		Permalink:        str("permalink"),
		Description:      str("description"),
		ShortDescription: str("short_description"),
		Price:            str("price"),
		StockStatus:      str("stock_status"),
	}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}
