package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/progress"
)

// streamEvents relays a task's progress channel as server-sent events until
// the terminal event. The channel is released once fully delivered; a dropped
// connection frees the subscriber slot instead.
func (rt *Router) streamEvents(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	ch, ok := rt.registry.Get(taskID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no live progress for task " + taskID})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported by response writer"})
		return
	}
	sub, err := ch.Subscribe()
	if err != nil {
		if errors.Is(err, progress.ErrAlreadySubscribed) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err = sub.Stream(r.Context(), rt.cfg.KeepaliveInterval(),
		func(ev domain.ProgressEvent) error {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		},
		func() error {
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		},
	)
	if err == nil {
		rt.registry.Release(taskID)
		return
	}
	// The channel stays registered so the client can reconnect and resume.
	sub.Unsubscribe()
	if errors.Is(err, context.Canceled) {
		slog.Info("progress_stream_disconnected", "task_id", taskID, "request_id", requestIDFromContext(r.Context()))
		return
	}
	slog.Warn("progress_stream_failed", "task_id", taskID, "error", err)
}
