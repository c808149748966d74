package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"aiact-rag/internal/index"
	"aiact-rag/internal/pipeline"
	"aiact-rag/internal/provider"
)

type stubIndexService struct {
	handle     *index.Handle
	err        error
	status     pipeline.Status
	gotPath    string
	gotRebuild bool
}

func (s *stubIndexService) IngestDocument(_ context.Context, path string) (*index.Handle, error) {
	s.gotPath = path
	return s.handle, s.err
}

func (s *stubIndexService) Rebuild(_ context.Context) (*index.Handle, error) {
	s.gotRebuild = true
	return s.handle, s.err
}

func (s *stubIndexService) Status() pipeline.Status {
	return s.status
}

func builtHandle() *index.Handle {
	return &index.Handle{
		Location: "/data/indexes/act-abc123",
		Manifest: index.Manifest{
			ContentHash:   "abc123",
			Fingerprint:   provider.Fingerprint{Provider: "openai", Model: "m", Dimensions: 3},
			EntryCount:    12,
			DocumentTitle: "EU AI Act",
		},
	}
}

func TestIndexHandler_Ingest(t *testing.T) {
	service := &stubIndexService{handle: builtHandle()}
	handler := NewIndexHandler(service)

	rec := postJSON(t, handler, "/api/index", IndexRequest{Path: "/docs/act.html"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if service.gotPath != "/docs/act.html" {
		t.Errorf("service got path %q", service.gotPath)
	}

	var resp IndexResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Entries != 12 || resp.ContentHash != "abc123" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Fingerprint != "openai/m/3" {
		t.Errorf("fingerprint = %q", resp.Fingerprint)
	}
}

func TestIndexHandler_Rebuild(t *testing.T) {
	service := &stubIndexService{handle: builtHandle()}
	handler := NewIndexHandler(service)

	rec := postJSON(t, handler, "/api/index", IndexRequest{Rebuild: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !service.gotRebuild {
		t.Error("rebuild was not invoked")
	}
}

func TestIndexHandler_BusyConflict(t *testing.T) {
	service := &stubIndexService{err: index.ErrIndexBusy}
	handler := NewIndexHandler(service)

	rec := postJSON(t, handler, "/api/index", IndexRequest{Path: "/docs/act.html"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestIndexHandler_MissingPathAndRebuild(t *testing.T) {
	handler := NewIndexHandler(&stubIndexService{})

	rec := postJSON(t, handler, "/api/index", IndexRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIndexHandler_StatusGet(t *testing.T) {
	service := &stubIndexService{status: pipeline.Status{Ready: true, Entries: 12, DocumentTitle: "EU AI Act"}}
	handler := NewIndexHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/index", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status pipeline.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !status.Ready || status.Entries != 12 {
		t.Errorf("status = %+v", status)
	}
}

func TestIndexHandler_MethodNotAllowed(t *testing.T) {
	handler := NewIndexHandler(&stubIndexService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/index", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
