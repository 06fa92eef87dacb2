package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"sitechat-rag/internal/config"
	"sitechat-rag/internal/models"
	"sitechat-rag/internal/store"
)

type record struct {
	bun.BaseModel `bun:"table:corpus_records,alias:r"`
	ID            int64     `bun:"id,pk,autoincrement"`
	SiteID        string    `bun:"site_id,notnull"`
	Kind          string    `bun:"source_kind,notnull"`
	Sequence      int64     `bun:"sequence,notnull"`
	Text          string    `bun:"text,notnull"`
	Name          string    `bun:"name"`
	Permalink     string    `bun:"permalink"`
	Description   string    `bun:"description"`
	ShortDesc     string    `bun:"short_description"`
	Price         string    `bun:"price"`
	StockStatus   string    `bun:"stock_status"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector(768)"`
}

// Store is the pgvector-backed corpus store.
type Store struct {
	db *bun.DB
}

// Connect opens the Postgres connection. The URL can point at any
// pgvector-enabled Postgres, Supabase included.
func Connect(cfg *config.DBConfig) (*Store, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(buildDSN(cfg.URL)), pgdriver.WithPassword(cfg.Password)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}, nil
}

// Init creates the records table and its lookup index.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*record)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS corpus_records_site_kind_seq ON corpus_records (site_id, source_kind, sequence)")
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, siteID string, kind models.SourceKind, recs []models.Record) (int, int, error) {
	res, err := s.db.NewDelete().
		Model((*record)(nil)).
		Where("site_id = ?", siteID).
		Where("source_kind = ?", string(kind)).
		Exec(ctx)
	if err != nil {
		// fail closed: deletion status unknown, do not insert
		return 0, 0, fmt.Errorf("clear %s records for site %s: %w", kind, siteID, err)
	}
	deleted, _ := res.RowsAffected()

	if len(recs) == 0 {
		return int(deleted), 0, nil
	}

	rows := make([]record, len(recs))
	for i, rec := range recs {
		rows[i] = fromModel(rec)
	}
	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return int(deleted), 0, fmt.Errorf("insert %s records for site %s: %w", kind, siteID, err)
	}
	return int(deleted), len(rows), nil
}

func (s *Store) FindBySequence(ctx context.Context, siteID string, kind models.SourceKind, seq int) (models.Record, error) {
	var row record
	err := s.db.NewSelect().
		Model(&row).
		Where("site_id = ?", siteID).
		Where("source_kind = ?", string(kind)).
		Where("sequence = ?", seq).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, store.ErrNotFound
		}
		return models.Record{}, fmt.Errorf("find sequence %d for site %s: %w", seq, siteID, err)
	}
	return toModel(row), nil
}

func (s *Store) VectorSearch(ctx context.Context, q store.SimilarityQuery) ([]models.Record, error) {
	q = q.WithDefaults()

	var rows []record
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// map the candidate pool onto the HNSW search width, scoped to
		// this transaction
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", q.CandidatePool)); err != nil {
			return err
		}
		return tx.NewSelect().
			Model(&rows).
			Where("site_id = ?", q.SiteID).
			OrderExpr("embedding <-> ?", q.Vector).
			Limit(q.Limit).
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("vector search for site %s: %w", q.SiteID, err)
	}

	out := make([]models.Record, len(rows))
	for i, row := range rows {
		out[i] = toModel(row)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// buildDSN appends sslmode=disable with the right query separator; the URL
// may already carry parameters of its own.
func buildDSN(url string) string {
	if strings.Contains(url, "?") {
		return url + "&sslmode=disable"
	}
	return url + "?sslmode=disable"
}

func fromModel(rec models.Record) record {
	return record{
		SiteID:      rec.SiteID,
		Kind:        string(rec.Kind),
		Sequence:    int64(rec.Sequence),
		Text:        rec.Text,
		Name:        rec.Name,
		Permalink:   rec.Permalink,
		Description: rec.Description,
		ShortDesc:   rec.ShortDescription,
		Price:       rec.Price,
		StockStatus: rec.StockStatus,
		Embedding:   rec.Embedding,
	}
}

// toModel normalizes the stored row back into the storage-agnostic record,
// including the wire-shape-to-int sequence normalization.
func toModel(row record) models.Record {
	seq := int(row.Sequence)
	if seq < 0 {
		seq = models.NoSequence
	}
	return models.Record{
		ID:               fmt.Sprintf("%d", row.ID),
		SiteID:           row.SiteID,
		Kind:             models.ParseSourceKind(row.Kind),
		Sequence:         seq,
		Text:             row.Text,
		Name:             row.Name,
		Permalink:        row.Permalink,
		Description:      row.Description,
		ShortDescription: row.ShortDesc,
		Price:            row.Price,
		StockStatus:      row.StockStatus,
		Embedding:        row.Embedding,
	}
}
