package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"sitechat-rag/internal/answer"
	"sitechat-rag/internal/chunker"
	"sitechat-rag/internal/config"
	"sitechat-rag/internal/embedding"
	"sitechat-rag/internal/models"
	"sitechat-rag/internal/store"
)

// Service wires retrieval and context assembly: chunking and embedding on
// the ingestion path, vector search plus routing on the chat path. All
// collaborators are injected at construction; the service itself holds no
// per-request state.
type Service struct {
	store            store.CorpusStore
	embedder         embedding.Embedder
	docResponder     answer.Responder
	productResponder answer.Responder
	splitter         *chunker.Splitter

	embedWorkers  int
	searchLimit   int
	candidatePool int

	// serializes delete-then-insert per (site, kind) so concurrent
	// ingestions cannot interleave and corrupt the full-replace invariant.
	// The map holds one mutex per key for the process lifetime and is never
	// pruned; the key space is bounded by the number of registered sites.
	mu        sync.Mutex
	siteLocks map[string]*sync.Mutex
}

func NewService(st store.CorpusStore, embedder embedding.Embedder, docResponder, productResponder answer.Responder, cfg *config.RAGConfig) *Service {
	return &Service{
		store:            st,
		embedder:         embedder,
		docResponder:     docResponder,
		productResponder: productResponder,
		splitter:         chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedWorkers:     cfg.EmbedWorkers,
		searchLimit:      cfg.SearchLimit,
		candidatePool:    cfg.CandidatePool,
		siteLocks:        map[string]*sync.Mutex{},
	}
}

// IngestDocument chunks, embeds and stores text for a site, replacing the
// site's previous document corpus in full.
func (s *Service) IngestDocument(ctx context.Context, siteID, text string) (int, int, error) {
	if strings.TrimSpace(siteID) == "" {
		return 0, 0, fmt.Errorf("%w: site_id is required", models.ErrInvalidInput)
	}

	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, 0, fmt.Errorf("%w: no chunks were generated from the text", models.ErrInvalidInput)
	}

	vectors, err := embedding.EmbedAll(ctx, s.embedder, chunks, s.embedWorkers)
	if err != nil {
		return 0, 0, fmt.Errorf("generate embeddings: %w", err)
	}

	recs := make([]models.Record, len(chunks))
	for i := range chunks {
		recs[i] = models.Record{
			SiteID:    siteID,
			Kind:      models.SourceDocument,
			Sequence:  i,
			Text:      chunks[i],
			Embedding: vectors[i],
		}
	}

	unlock := s.lockSite(siteID, models.SourceDocument)
	defer unlock()
	deleted, inserted, err := s.store.ReplaceAll(ctx, siteID, models.SourceDocument, recs)
	if err != nil {
		return 0, 0, err
	}
	log.Info().Str("site_id", siteID).Int("deleted", deleted).Int("inserted", inserted).
		Msg("replaced document corpus")
	return deleted, inserted, nil
}

// IngestProducts derives the combined text per product, embeds it and
// replaces the site's product catalog in full. An empty product list is a
// valid replace that just clears the catalog.
func (s *Service) IngestProducts(ctx context.Context, siteID string, products []models.Product) (int, int, error) {
	if strings.TrimSpace(siteID) == "" {
		return 0, 0, fmt.Errorf("%w: site_id is required", models.ErrInvalidInput)
	}

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = models.CombinedText(p)
	}
	vectors, err := embedding.EmbedAll(ctx, s.embedder, texts, s.embedWorkers)
	if err != nil {
		return 0, 0, fmt.Errorf("generate embeddings: %w", err)
	}

	recs := make([]models.Record, len(products))
	for i, p := range products {
		recs[i] = models.Record{
			SiteID:           siteID,
			Kind:             models.SourceProduct,
			Sequence:         models.NoSequence,
			Text:             texts[i],
			Name:             p.Title,
			Permalink:        p.Link,
			Description:      p.Description,
			ShortDescription: p.ShortDescription,
			Price:            p.Price,
			StockStatus:      p.StockStatus,
			Embedding:        vectors[i],
		}
	}

	unlock := s.lockSite(siteID, models.SourceProduct)
	defer unlock()
	deleted, inserted, err := s.store.ReplaceAll(ctx, siteID, models.SourceProduct, recs)
	if err != nil {
		return 0, 0, err
	}
	log.Info().Str("site_id", siteID).Int("deleted", deleted).Int("inserted", inserted).
		Msg("replaced product catalog")
	return deleted, inserted, nil
}

// Chat answers one user message against the site's corpus. It always
// returns a reply string; failures on the query path degrade to fixed
// responses because the chat surface has a single return channel.
func (s *Service) Chat(ctx context.Context, siteID, message string, history []models.ChatTurn) string {
	vector, err := s.embedder.EmbedQuery(ctx, message)
	if err != nil {
		log.Error().Err(err).Str("site_id", siteID).Msg("embedding query failed")
		return models.SearchErrorResponse
	}

	matches, err := s.store.VectorSearch(ctx, store.SimilarityQuery{
		Vector:        vector,
		SiteID:        siteID,
		Limit:         s.searchLimit,
		CandidatePool: s.candidatePool,
	})
	if err != nil {
		log.Error().Err(err).Str("site_id", siteID).Msg("vector search failed")
		return models.SearchErrorResponse
	}

	return s.route(ctx, matches, message, history)
}

// route inspects the kind of the best match and dispatches to the matching
// answer strategy. Documents widen context through the best match's
// neighbors; products widen through breadth across all product matches.
func (s *Service) route(ctx context.Context, matches []models.Record, query string, history []models.ChatTurn) string {
	if len(matches) == 0 {
		return models.NoResultsResponse
	}

	best := matches[0]
	switch best.Kind {
	case models.SourceDocument:
		contextText := s.assembleContext(ctx, best)
		reply, err := s.docResponder.Respond(ctx, query, contextText, history)
		if err != nil || reply == "" {
			log.Error().Err(err).Str("site_id", best.SiteID).Msg("document responder failed")
			return models.AnswerErrorResponse
		}
		return reply

	case models.SourceProduct:
		var blocks strings.Builder
		for _, m := range matches {
			if m.Kind == models.SourceProduct {
				blocks.WriteString(formatProductBlock(m))
			}
		}
		reply, err := s.productResponder.Respond(ctx, query, blocks.String(), history)
		if err != nil || reply == "" {
			log.Error().Err(err).Str("site_id", best.SiteID).Msg("product responder failed")
			return models.AnswerErrorResponse
		}
		return reply

	default:
		log.Warn().Str("site_id", best.SiteID).Str("kind", string(best.Kind)).
			Msg("unrecognized source kind in best match")
		return fmt.Sprintf(models.UnknownKindResponseFmt, string(best.Kind))
	}
}

// assembleContext reconstructs a locally coherent window around the best
// match: its immediate predecessor and successor, blank-line separated.
// Missing neighbors are omitted, never an error.
func (s *Service) assembleContext(ctx context.Context, best models.Record) string {
	if !best.HasSequence() {
		return best.Text
	}

	var parts []string
	if prev := best.Sequence - 1; prev >= 0 {
		if rec, err := s.store.FindBySequence(ctx, best.SiteID, models.SourceDocument, prev); err == nil {
			parts = append(parts, rec.Text)
		}
	}
	parts = append(parts, best.Text)
	if rec, err := s.store.FindBySequence(ctx, best.SiteID, models.SourceDocument, best.Sequence+1); err == nil {
		parts = append(parts, rec.Text)
	}
	return strings.Join(parts, "\n\n")
}

func formatProductBlock(m models.Record) string {
	return fmt.Sprintf(
		"ID: %s\nName: %s\nDescription: %s\nShort Description: %s\nPrice: %s\nStock Status: %s\nPermalink: %s\n\n--------------------\n",
		m.ID, m.Name, m.Description, m.ShortDescription, m.Price, m.StockStatus, m.Permalink,
	)
}

func (s *Service) lockSite(siteID string, kind models.SourceKind) func() {
	key := siteID + "/" + string(kind)
	s.mu.Lock()
	m, ok := s.siteLocks[key]
	if !ok {
		m = &sync.Mutex{}
		s.siteLocks[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}
