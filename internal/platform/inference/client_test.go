package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestClassify(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq classifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(classifyResponse{
			Model: gotReq.Model,
			Results: [][]LabelScore{{
				{Label: "joy", Score: 0.9},
				{Label: "sadness", Score: 0.1},
			}},
		})
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL + "/", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	scores, err := c.Classify(context.Background(), "some/model", "what a day")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(scores) != 2 || scores[0].Label != "joy" || scores[0].Score != 0.9 {
		t.Fatalf("scores = %+v", scores)
	}
	if gotPath != "/v1/classify" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotReq.Model != "some/model" || len(gotReq.Inputs) != 1 || gotReq.Inputs[0] != "what a day" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestClassifyValidation(t *testing.T) {
	c, err := New(Options{BaseURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Classify(context.Background(), "  ", "text"); err == nil {
		t.Fatal("expected model validation error")
	}

	if _, err := New(Options{}); err == nil {
		t.Fatal("expected baseURL validation error")
	}
}

func TestClassifyEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(classifyResponse{Model: "m"})
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Classify(context.Background(), "m", "text"); err == nil {
		t.Fatal("expected error on empty results")
	}
}

func TestClassifyRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(classifyResponse{
			Results: [][]LabelScore{{{Label: "neutral", Score: 1}}},
		})
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, MaxRetries: 2})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	scores, err := c.Classify(context.Background(), "m", "text")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if scores[0].Label != "neutral" {
		t.Fatalf("scores = %+v", scores)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestClassifyDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Classify(context.Background(), "m", "text"); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}
