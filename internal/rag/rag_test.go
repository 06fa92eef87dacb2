package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sitechat-rag/internal/config"
	"sitechat-rag/internal/models"
	"sitechat-rag/internal/store"
)

type fakeStore struct {
	records []models.Record

	replaceErr  error
	searchErr   error
	searchHits  []models.Record
	replaceWith []models.Record
	replaced    bool
}

func (f *fakeStore) ReplaceAll(_ context.Context, siteID string, kind models.SourceKind, recs []models.Record) (int, int, error) {
	if f.replaceErr != nil {
		return 0, 0, f.replaceErr
	}
	deleted := 0
	var kept []models.Record
	for _, r := range f.records {
		if r.SiteID == siteID && r.Kind == kind {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.records = append(kept, recs...)
	f.replaceWith = recs
	f.replaced = true
	return deleted, len(recs), nil
}

func (f *fakeStore) FindBySequence(_ context.Context, siteID string, kind models.SourceKind, seq int) (models.Record, error) {
	for _, r := range f.records {
		if r.SiteID == siteID && r.Kind == kind && r.Sequence == seq {
			return r, nil
		}
	}
	return models.Record{}, store.ErrNotFound
}

func (f *fakeStore) VectorSearch(_ context.Context, _ store.SimilarityQuery) ([]models.Record, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

type fakeResponder struct {
	reply       string
	err         error
	gotQuery    string
	gotContext  string
	gotHistory  []models.ChatTurn
	invocations int
}

func (f *fakeResponder) Respond(_ context.Context, query, contextText string, history []models.ChatTurn) (string, error) {
	f.invocations++
	f.gotQuery = query
	f.gotContext = contextText
	f.gotHistory = history
	return f.reply, f.err
}

func newTestService(st *fakeStore, emb *fakeEmbedder, doc, prod *fakeResponder) *Service {
	cfg := &config.RAGConfig{ChunkSize: 500, ChunkOverlap: 50, SearchLimit: 5, CandidatePool: 100, EmbedWorkers: 2}
	return NewService(st, emb, doc, prod, cfg)
}

func TestIngestDocument_SequencesFromZero(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st, &fakeEmbedder{}, &fakeResponder{}, &fakeResponder{})

	var b strings.Builder
	for i := 1; i <= 40; i++ {
		fmt.Fprintf(&b, "This is sentence number %d of the ingested document. ", i)
	}
	_, inserted, err := svc.IngestDocument(context.Background(), "s1", b.String())
	require.NoError(t, err)
	require.GreaterOrEqual(t, inserted, 2)
	require.True(t, st.replaced)
	for i, rec := range st.replaceWith {
		require.Equal(t, i, rec.Sequence)
		require.Equal(t, models.SourceDocument, rec.Kind)
		require.Equal(t, "s1", rec.SiteID)
		require.NotEmpty(t, rec.Embedding)
	}
}

func TestIngestDocument_Validation(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeEmbedder{}, &fakeResponder{}, &fakeResponder{})

	_, _, err := svc.IngestDocument(context.Background(), "", "Some text.")
	require.ErrorIs(t, err, models.ErrInvalidInput)

	_, _, err = svc.IngestDocument(context.Background(), "s1", "   ")
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestIngestDocument_EmbedFailureAbortsBeforeStore(t *testing.T) {
	st := &fakeStore{}
	emb := &fakeEmbedder{err: errors.New("gateway down")}
	svc := newTestService(st, emb, &fakeResponder{}, &fakeResponder{})

	_, _, err := svc.IngestDocument(context.Background(), "s1", "One sentence. Another sentence.")
	require.Error(t, err)
	require.False(t, st.replaced, "store must not be touched after an embedding failure")
}

func TestIngestDocument_StoreFailurePropagates(t *testing.T) {
	boom := errors.New("delete failed")
	st := &fakeStore{replaceErr: boom}
	svc := newTestService(st, &fakeEmbedder{}, &fakeResponder{}, &fakeResponder{})

	_, _, err := svc.IngestDocument(context.Background(), "s1", "One sentence here.")
	require.ErrorIs(t, err, boom)
}

func TestIngestProducts_DerivesCombinedText(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st, &fakeEmbedder{}, &fakeResponder{}, &fakeResponder{})

	products := []models.Product{
		{Title: "Blue Mug", Link: "https://shop/mug", Description: "A mug.", ShortDescription: "Mug", Price: "12", StockStatus: "instock"},
	}
	_, inserted, err := svc.IngestProducts(context.Background(), "s1", products)
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	rec := st.replaceWith[0]
	require.Equal(t, models.SourceProduct, rec.Kind)
	require.Equal(t, models.CombinedText(products[0]), rec.Text)
	require.False(t, rec.HasSequence())
	require.Equal(t, "Blue Mug", rec.Name)
	require.Equal(t, "https://shop/mug", rec.Permalink)
}

func TestChat_DocumentRouting_AssemblesNeighbors(t *testing.T) {
	best := models.Record{SiteID: "s1", Kind: models.SourceDocument, Sequence: 4, Text: "middle chunk"}
	st := &fakeStore{
		records: []models.Record{
			{SiteID: "s1", Kind: models.SourceDocument, Sequence: 3, Text: "previous chunk"},
			best,
			{SiteID: "s1", Kind: models.SourceDocument, Sequence: 5, Text: "next chunk"},
		},
		searchHits: []models.Record{best},
	}
	doc := &fakeResponder{reply: "answered"}
	prod := &fakeResponder{reply: "should not run"}
	svc := newTestService(st, &fakeEmbedder{}, doc, prod)

	reply := svc.Chat(context.Background(), "s1", "what is in the middle?", nil)
	require.Equal(t, "answered", reply)
	require.Equal(t, 1, doc.invocations)
	require.Zero(t, prod.invocations)
	require.Equal(t, "previous chunk\n\nmiddle chunk\n\nnext chunk", doc.gotContext)
}

func TestChat_DocumentRouting_MissingNeighborOmitted(t *testing.T) {
	best := models.Record{SiteID: "s1", Kind: models.SourceDocument, Sequence: 4, Text: "middle chunk"}
	st := &fakeStore{
		records: []models.Record{
			{SiteID: "s1", Kind: models.SourceDocument, Sequence: 3, Text: "previous chunk"},
			best,
		},
		searchHits: []models.Record{best},
	}
	doc := &fakeResponder{reply: "answered"}
	svc := newTestService(st, &fakeEmbedder{}, doc, &fakeResponder{})

	svc.Chat(context.Background(), "s1", "q", nil)
	require.Equal(t, "previous chunk\n\nmiddle chunk", doc.gotContext)
}

func TestChat_FirstChunkHasNoPredecessor(t *testing.T) {
	best := models.Record{SiteID: "s1", Kind: models.SourceDocument, Sequence: 0, Text: "first chunk"}
	st := &fakeStore{
		records: []models.Record{
			best,
			{SiteID: "s1", Kind: models.SourceDocument, Sequence: 1, Text: "second chunk"},
		},
		searchHits: []models.Record{best},
	}
	doc := &fakeResponder{reply: "answered"}
	svc := newTestService(st, &fakeEmbedder{}, doc, &fakeResponder{})

	svc.Chat(context.Background(), "s1", "q", nil)
	require.Equal(t, "first chunk\n\nsecond chunk", doc.gotContext)
}

func TestChat_ProductRouting_AllProductMatches(t *testing.T) {
	hits := []models.Record{
		{SiteID: "s1", Kind: models.SourceProduct, Sequence: models.NoSequence, Name: "Blue Mug", Price: "12"},
		{SiteID: "s1", Kind: models.SourceDocument, Sequence: 2, Text: "a stray document chunk"},
		{SiteID: "s1", Kind: models.SourceProduct, Sequence: models.NoSequence, Name: "Red Mug", Price: "14"},
	}
	st := &fakeStore{searchHits: hits}
	doc := &fakeResponder{reply: "should not run"}
	prod := &fakeResponder{reply: "recommended"}
	svc := newTestService(st, &fakeEmbedder{}, doc, prod)

	reply := svc.Chat(context.Background(), "s1", "any mugs?", nil)
	require.Equal(t, "recommended", reply)
	require.Zero(t, doc.invocations)
	require.Contains(t, prod.gotContext, "Blue Mug")
	require.Contains(t, prod.gotContext, "Red Mug")
	require.NotContains(t, prod.gotContext, "stray document chunk")
}

func TestChat_EmptyResults(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeEmbedder{}, &fakeResponder{}, &fakeResponder{})
	reply := svc.Chat(context.Background(), "s1", "anything?", nil)
	require.Equal(t, models.NoResultsResponse, reply)
}

func TestChat_UnknownKindDiagnostic(t *testing.T) {
	st := &fakeStore{searchHits: []models.Record{
		{SiteID: "s1", Kind: models.SourceUnknown, Text: "internal record state"},
	}}
	svc := newTestService(st, &fakeEmbedder{}, &fakeResponder{}, &fakeResponder{})

	reply := svc.Chat(context.Background(), "s1", "q", nil)
	require.Contains(t, reply, "unrecognized source kind")
	require.NotContains(t, reply, "internal record state", "diagnostic must not leak record contents")
}

func TestChat_SearchErrorDegrades(t *testing.T) {
	st := &fakeStore{searchErr: errors.New("index offline")}
	svc := newTestService(st, &fakeEmbedder{}, &fakeResponder{}, &fakeResponder{})

	reply := svc.Chat(context.Background(), "s1", "q", nil)
	require.Equal(t, models.SearchErrorResponse, reply)
}

func TestChat_EmbeddingErrorDegrades(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeEmbedder{err: errors.New("gateway down")}, &fakeResponder{}, &fakeResponder{})
	reply := svc.Chat(context.Background(), "s1", "q", nil)
	require.Equal(t, models.SearchErrorResponse, reply)
}

func TestChat_ResponderErrorDegrades(t *testing.T) {
	best := models.Record{SiteID: "s1", Kind: models.SourceDocument, Sequence: 0, Text: "chunk"}
	st := &fakeStore{records: []models.Record{best}, searchHits: []models.Record{best}}
	doc := &fakeResponder{err: errors.New("upstream 500")}
	svc := newTestService(st, &fakeEmbedder{}, doc, &fakeResponder{})

	reply := svc.Chat(context.Background(), "s1", "q", nil)
	require.Equal(t, models.AnswerErrorResponse, reply)
}

func TestChat_HistoryReachesResponder(t *testing.T) {
	best := models.Record{SiteID: "s1", Kind: models.SourceDocument, Sequence: 0, Text: "chunk"}
	st := &fakeStore{records: []models.Record{best}, searchHits: []models.Record{best}}
	doc := &fakeResponder{reply: "ok"}
	svc := newTestService(st, &fakeEmbedder{}, doc, &fakeResponder{})

	history := []models.ChatTurn{{Role: "user", Content: "hello"}}
	svc.Chat(context.Background(), "s1", "q", history)
	require.Equal(t, history, doc.gotHistory)
}
