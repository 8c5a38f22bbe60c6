package httpadapter

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/progress"
)

func readSSE(t *testing.T, body string) []domain.ProgressEvent {
	t.Helper()
	var events []domain.ProgressEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestEventsStreamsUntilTerminalAndReleasesChannel(t *testing.T) {
	registry := progress.NewRegistry()
	ch, err := registry.Open("task-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = ch.Emit(domain.StageInitializing, "Starting", nil, 0)
	_ = ch.Emit(domain.StageExtractingBatch, "Analyzing 1/2", nil, 0.5)
	_ = ch.Complete(map[string]any{"status": "complete"}, "")

	res := httptest.NewRecorder()
	newTestRouter(&submitterFake{}, taskReaderFake{}, registry).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reviews/task-1/events", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	events := readSSE(t, res.Body.String())
	var stages []domain.Stage
	for _, ev := range events {
		stages = append(stages, ev.Stage)
	}
	if diff := cmp.Diff([]domain.Stage{domain.StageInitializing, domain.StageExtractingBatch, domain.StageComplete}, stages); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}
	if events[1].Progress != 37.5 || events[2].Progress != 100 {
		t.Fatalf("unexpected progress values %v, %v", events[1].Progress, events[2].Progress)
	}
	if registry.Len() != 0 {
		t.Fatalf("expected channel released after terminal event")
	}
}

func TestEventsRejectsSecondSubscriber(t *testing.T) {
	registry := progress.NewRegistry()
	ch, _ := registry.Open("task-1")
	if _, err := ch.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	res := httptest.NewRecorder()
	newTestRouter(&submitterFake{}, taskReaderFake{}, registry).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reviews/task-1/events", nil))
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestEventsReconnectAfterClientDisconnect(t *testing.T) {
	registry := progress.NewRegistry()
	ch, _ := registry.Open("task-1")
	_ = ch.Emit(domain.StageInitializing, "Starting", nil, 0)
	router := newTestRouter(&submitterFake{}, taskReaderFake{}, registry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gone := httptest.NewRequest(http.MethodGet, "/v1/reviews/task-1/events", nil).WithContext(ctx)
	router.ServeHTTP(httptest.NewRecorder(), gone)

	if _, ok := registry.Get("task-1"); !ok {
		t.Fatalf("channel should stay registered after a disconnect")
	}
	if ch.Subscribed() {
		t.Fatalf("disconnect should free the subscriber slot")
	}

	_ = ch.Complete(map[string]any{"status": "complete"}, "")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reviews/task-1/events", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected reconnect to succeed, got %d", res.Code)
	}
	events := readSSE(t, res.Body.String())
	if len(events) == 0 || events[len(events)-1].Stage != domain.StageComplete {
		t.Fatalf("expected stream to end with complete, got %+v", events)
	}
	if registry.Len() != 0 {
		t.Fatalf("expected channel released after terminal event")
	}
}
