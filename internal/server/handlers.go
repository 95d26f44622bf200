package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roach88/widgetd/internal/widget"
)

// maxBodyBytes caps request bodies; widget requests are a handful of ints.
const maxBodyBytes = 64 << 10

// pageRequest is the optional JSON body of a page listing.
type pageRequest struct {
	Page *int `json:"page"`
	Size *int `json:"size"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	all, err := s.repo.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// handleListPage reads page and size from the query string, falling back to
// a JSON body and then to page 0 with the default size.
func (s *Server) handleListPage(w http.ResponseWriter, r *http.Request) {
	var body pageRequest
	if err := decodeBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, r, err)
		return
	}

	page := 0
	if body.Page != nil {
		page = *body.Page
	}
	size := s.defaultPageSize
	if body.Size != nil {
		size = *body.Size
	}

	q := r.URL.Query()
	var err error
	if page, err = intParam(q.Get("page"), page); err != nil {
		s.fail(w, r, badRequest("page: %v", err))
		return
	}
	if size, err = intParam(q.Get("size"), size); err != nil {
		s.fail(w, r, badRequest("size: %v", err))
		return
	}

	widgets, err := s.repo.ListPage(r.Context(), page, size)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, widgets)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	got, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req widget.Request
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	created, err := s.repo.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/widgets/%d", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req widget.Request
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	updated, err := s.repo.Update(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (widget.ID, error) {
	raw := mux.Vars(r)["id"]
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid widget id %q", raw)
	}
	return widget.ID(n), nil
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// decodeBody decodes a JSON body into v. An empty body yields io.EOF.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return &requestError{message: "malformed request body", err: err}
	}
	return nil
}
