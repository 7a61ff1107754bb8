package quality

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := NewClient(Config{URL: "not a url"}); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestClient_UpsertIndicator(t *testing.T) {
	var gotUID, gotPath string
	var gotBody []Indicator
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = r.Header.Get(HeaderUserID)
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":0,"data":true}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{URL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ok, err := c.UpsertIndicator(t.Context(), "alice", "proj", []Indicator{{Name: "cov", CnName: "Coverage", DataType: "FLOAT"}})
	if err != nil {
		t.Fatalf("UpsertIndicator: %v", err)
	}
	if !ok {
		t.Error("expected ok")
	}
	if gotUID != "alice" {
		t.Errorf("uid header = %q", gotUID)
	}
	if gotPath != "/quality/api/build/indicator/v3/project/proj/upsertIndicator" {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotBody) != 1 || gotBody[0].CnName != "Coverage" {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestClient_SaveMetadata(t *testing.T) {
	var query map[string]string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query = map[string]string{
			"elementType": q.Get("elementType"),
			"taskId":      q.Get("taskId"),
			"taskName":    q.Get("taskName"),
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":0,"data":false}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ok, err := c.SaveMetadata(t.Context(), "t-1", "Build", map[string]string{"cov": "0.8"})
	if err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	if ok {
		t.Error("expected data=false to be reported")
	}
	if query["elementType"] != DefaultElementType || query["taskId"] != "t-1" || query["taskName"] != "Build" {
		t.Errorf("query = %v", query)
	}
	if body["cov"] != "0.8" {
		t.Errorf("body = %v", body)
	}
}

func TestClient_RetriesAndStatusError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{URL: srv.URL, Retries: 0})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.SaveMetadata(t.Context(), "t", "n", nil)
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if errors.Is(err, ErrMetadataRejected) {
		t.Error("transport errors should not be ErrMetadataRejected")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
