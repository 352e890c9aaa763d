package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studykit/qadex/internal/ingest"
	apperrors "github.com/studykit/qadex/pkg/errors"
)

type stubPublisher struct {
	resp    *ingest.Response
	err     error
	lastReq *ingest.Request
}

func (s *stubPublisher) Ingest(ctx context.Context, req *ingest.Request) (*ingest.Response, error) {
	s.lastReq = req
	return s.resp, s.err
}

func postEntry(h *Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/entries", strings.NewReader(body))
	h.Ingest(rec, req)
	return rec
}

func validBody(t *testing.T) string {
	t.Helper()
	body, err := json.Marshal(ingest.Request{
		Category: "Concurrency",
		Question: "What is a channel?",
		Answer:   "A typed conduit between goroutines.",
	})
	require.NoError(t, err)
	return string(body)
}

func TestIngestAccepted(t *testing.T) {
	pub := &stubPublisher{resp: &ingest.Response{EntryID: "abc", Status: "PENDING", Partition: 2}}
	h := New(pub)

	rec := postEntry(h, validBody(t))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp ingest.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.EntryID)
	assert.Equal(t, 2, resp.Partition)
	require.NotNil(t, pub.lastReq)
	assert.Equal(t, "Concurrency", pub.lastReq.Category)
}

func TestIngestInvalidJSON(t *testing.T) {
	h := New(&stubPublisher{})

	rec := postEntry(h, "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestValidationFailure(t *testing.T) {
	pub := &stubPublisher{}
	h := New(pub)

	rec := postEntry(h, `{"category":"Concurrency"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.Contains(t, resp.Fields, "question")
	assert.Contains(t, resp.Fields, "answer")
	// Invalid requests never reach the publisher.
	assert.Nil(t, pub.lastReq)
}

func TestIngestIdempotencyConflict(t *testing.T) {
	pub := &stubPublisher{
		err: apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict, "key reused"),
	}
	h := New(pub)

	rec := postEntry(h, validBody(t))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIngestPublisherFailure(t *testing.T) {
	pub := &stubPublisher{err: apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "db down")}
	h := New(pub)

	rec := postEntry(h, validBody(t))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
