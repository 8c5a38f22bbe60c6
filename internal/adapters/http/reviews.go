package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
)

const multipartMemory = 32 << 20

type reviewAccepted struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Documents int    `json:"documents"`
	EventsURL string `json:"events_url"`
}

func (rt *Router) createReview(w http.ResponseWriter, r *http.Request) {
	if limit := rt.cfg.MaxUploadBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse upload", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	returnCtx, err := parseReturnContext(r.MultipartForm)
	if err != nil {
		writeError(w, r, err)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	uploads := make([]ports.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "open upload", err))
			return
		}
		defer f.Close()
		uploads = append(uploads, ports.Upload{
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Body:     f,
		})
	}

	task, err := rt.submitter.Submit(r.Context(), returnCtx, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, reviewAccepted{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Documents: len(task.Documents),
		EventsURL: "/v1/reviews/" + task.ID + "/events",
	})
}

func (rt *Router) getReview(w http.ResponseWriter, r *http.Request) {
	task, err := rt.tasks.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// parseReturnContext reads a JSON "context" field when present and falls back
// to individual form fields.
func parseReturnContext(form *multipart.Form) (domain.ReturnContext, error) {
	var rc domain.ReturnContext
	if raw := formValue(form, "context"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rc); err != nil {
			return rc, domain.WrapError(domain.ErrInvalidInput, "parse return context", err)
		}
		return rc, nil
	}

	rc.ClientName = formValue(form, "client_name")
	rc.PropertyAddress = formValue(form, "property_address")
	rc.TaxYear = formValue(form, "tax_year")
	rc.PropertyType = domain.PropertyType(formValue(form, "property_type"))
	if v := formValue(form, "gst_registered"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return rc, domain.WrapError(domain.ErrInvalidInput, "parse return context", fmt.Errorf("gst_registered: %w", err))
		}
		rc.GSTRegistered = parsed
	}
	if v := formValue(form, "year_of_ownership"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return rc, domain.WrapError(domain.ErrInvalidInput, "parse return context", fmt.Errorf("year_of_ownership: %w", err))
		}
		rc.YearOfOwnership = parsed
	}
	return rc, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}
