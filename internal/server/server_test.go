package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sitechat-rag/internal/models"
)

type fakeService struct {
	docSiteID   string
	docText     string
	docErr      error
	prodSiteID  string
	prodList    []models.Product
	chatReply   string
	chatSiteID  string
	chatMessage string
	chatHistory []models.ChatTurn
}

func (f *fakeService) IngestDocument(_ context.Context, siteID, text string) (int, int, error) {
	if f.docErr != nil {
		return 0, 0, f.docErr
	}
	f.docSiteID = siteID
	f.docText = text
	return 2, 3, nil
}

func (f *fakeService) IngestProducts(_ context.Context, siteID string, products []models.Product) (int, int, error) {
	f.prodSiteID = siteID
	f.prodList = products
	return 0, len(products), nil
}

func (f *fakeService) Chat(_ context.Context, siteID, message string, history []models.ChatTurn) string {
	f.chatSiteID = siteID
	f.chatMessage = message
	f.chatHistory = history
	return f.chatReply
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body
}

func TestChatEndpoint(t *testing.T) {
	svc := &fakeService{chatReply: "hello there"}
	handler := New(svc).Handler()

	payload := `{"site_id":"s1","message":"hi","chat_history":[{"role":"user","content":"earlier"}]}`
	req := httptest.NewRequest(http.MethodPost, "/plugin/chat", strings.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody(t, res)
	require.Equal(t, "hello there", body["response"])
	require.Equal(t, "s1", svc.chatSiteID)
	require.Equal(t, "hi", svc.chatMessage)
	require.Len(t, svc.chatHistory, 1)
	require.NotEmpty(t, res.Header().Get("X-Request-ID"))
}

func TestChatEndpoint_MissingFields(t *testing.T) {
	handler := New(&fakeService{}).Handler()

	for _, payload := range []string{
		`{"message":"hi"}`,
		`{"site_id":"s1"}`,
		`{}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/plugin/chat", strings.NewReader(payload))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusBadRequest, res.Code, "payload %s", payload)
		require.Contains(t, decodeBody(t, res)["error"], "required")
	}
}

func TestManualEndpoint(t *testing.T) {
	svc := &fakeService{}
	handler := New(svc).Handler()

	form := url.Values{"site_id": {"s1"}, "manual_faq": {"Q: when? A: now."}}
	req := httptest.NewRequest(http.MethodPost, "/plugin/manual", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "s1", svc.docSiteID)
	require.Equal(t, "Q: when? A: now.", svc.docText)
	body := decodeBody(t, res)
	require.EqualValues(t, 3, body["inserted_count"])
}

func TestManualEndpoint_EmptyContent(t *testing.T) {
	handler := New(&fakeService{}).Handler()

	form := url.Values{"site_id": {"s1"}, "manual_faq": {"   "}}
	req := httptest.NewRequest(http.MethodPost, "/plugin/manual", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestDocEndpoint(t *testing.T) {
	svc := &fakeService{}
	handler := New(svc).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("site_id", "s1"))
	fw, err := mw.CreateFormFile("file", "faq.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Uploaded FAQ text."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/plugin/doc", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "s1", svc.docSiteID)
	require.Equal(t, "Uploaded FAQ text.", svc.docText)
}

func TestDocEndpoint_UnsupportedFile(t *testing.T) {
	handler := New(&fakeService{}).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("site_id", "s1"))
	fw, err := mw.CreateFormFile("file", "image.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte{0x89, 0x50})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/plugin/doc", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestProductsEndpoint(t *testing.T) {
	svc := &fakeService{}
	handler := New(svc).Handler()

	payload := `{"site_url":"https://shop.example","site_id":"s1","products":[{"title":"Blue Mug","link":"https://shop.example/mug","price":"12","stock_status":"instock"}]}`
	req := httptest.NewRequest(http.MethodPost, "/plugin/api", strings.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody(t, res)
	require.Equal(t, "success", body["status"])
	require.EqualValues(t, 1, body["products_processed"])
	require.Equal(t, "s1", svc.prodSiteID)
	require.Len(t, svc.prodList, 1)
	require.Equal(t, "Blue Mug", svc.prodList[0].Title)
}

func TestIngestError_MapsToServerFault(t *testing.T) {
	svc := &fakeService{docErr: errors.New("storage offline")}
	handler := New(svc).Handler()

	form := url.Values{"site_id": {"s1"}, "manual_faq": {"text"}}
	req := httptest.NewRequest(http.MethodPost, "/plugin/manual", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := New(&fakeService{}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/plugin/chat", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, "*", res.Header().Get("Access-Control-Allow-Origin"))
}
