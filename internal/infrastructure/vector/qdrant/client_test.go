package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

func TestIndexLearningsEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	var pointIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/learnings":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/learnings/points":
			var body struct {
				Points []struct {
					ID string `json:"id"`
				} `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			for _, p := range body.Points {
				pointIDs = append(pointIDs, p.ID)
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "learnings")
	learnings := []domain.Learning{{ID: "l-1", Content: "a"}, {ID: "l-2", Content: "b"}}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	for i := 0; i < 2; i++ {
		if err := client.IndexLearnings(context.Background(), learnings, vectors); err != nil {
			t.Fatalf("IndexLearnings() #%d error = %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	want := []string{PointID("l-1"), PointID("l-2"), PointID("l-1"), PointID("l-2")}
	if diff := cmp.Diff(want, pointIDs); diff != "" {
		t.Fatalf("point ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchLearningsDecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/learnings/points/search" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"result":[{"score":0.82,"payload":{
			"learning_id":"l-9","category":"bank","scenario":"mortgage_payments",
			"kind":"flagged","content":"Split principal and interest","keywords":["mortgage","interest"]}}]}`))
	}))
	defer server.Close()

	got, err := New(server.URL, "learnings").SearchLearnings(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("SearchLearnings() error = %v", err)
	}
	want := []domain.Learning{{
		ID: "l-9", Category: "bank", Scenario: "mortgage_payments", Kind: domain.LearningFlagged,
		Content: "Split principal and interest", Keywords: []string{"mortgage", "interest"}, Score: 0.82,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("learnings mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchLearningsTreatsMissingCollectionAsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"Not found: Collection learnings"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	got, err := New(server.URL, "learnings").SearchLearnings(context.Background(), []float32{0.1}, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/learnings" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "learnings")
	err := client.IndexLearnings(context.Background(), []domain.Learning{{ID: "l-1"}}, [][]float32{{0.1, 0.2}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
