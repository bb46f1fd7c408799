package handlers

import (
	"errors"
	"net/http"

	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/catalog/store"
)

// EntryHandler handles backup-entry API endpoints. Entries are
// append-only scanner decisions; the API never mutates them.
type EntryHandler struct {
	store store.Store
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(s store.Store) *EntryHandler {
	return &EntryHandler{store: s}
}

// List handles GET /api/v1/entries.
// Returns the most recent entries across all jobs, newest first,
// capped by ?limit= (default 100).
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	entries, err := h.store.ListAllEntries(r.Context(), limit)
	if err != nil {
		InternalServerError(w, "Failed to list entries")
		return
	}
	WriteJSONOK(w, entries)
}

// Get handles GET /api/v1/entries/{id}.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	entry, err := h.store.GetEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrEntryNotFound) {
			NotFound(w, "Entry not found")
			return
		}
		InternalServerError(w, "Failed to get entry")
		return
	}

	WriteJSONOK(w, entry)
}
