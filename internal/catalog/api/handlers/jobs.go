package handlers

import (
	"errors"
	"net/http"

	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/catalog/store"
)

// JobHandler handles expected-job API endpoints.
//
// Reads are available to every authenticated user; mutations are
// admin-only (enforced by the router's middleware stack).
type JobHandler struct {
	store store.Store
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(s store.Store) *JobHandler {
	return &JobHandler{store: s}
}

// JobRequest is the request body for POST /api/v1/jobs and
// PUT /api/v1/jobs/{id}. Pointer fields distinguish "absent" from
// "zero" on update; Create fills absent fields with defaults.
type JobRequest struct {
	Year         *int    `json:"year"`
	Company      *string `json:"company"`
	City         *string `json:"city"`
	Neighborhood *string `json:"neighborhood"`
	DatabaseName *string `json:"database_name"`

	ExpectedHourUTC   *int `json:"expected_hour_utc"`
	ExpectedMinuteUTC *int `json:"expected_minute_utc"`

	Frequency  *string `json:"frequency,omitempty"`
	DaysOfWeek *string `json:"days_of_week,omitempty"`

	FinalStorageTemplate   *string `json:"final_storage_template,omitempty"`
	NotificationRecipients *string `json:"notification_recipients,omitempty"`
	IsActive               *bool   `json:"is_active,omitempty"`
}

// apply copies the request's present fields onto the job.
func (req *JobRequest) apply(job *models.ExpectedJob) {
	if req.Year != nil {
		job.Year = *req.Year
	}
	if req.Company != nil {
		job.Company = *req.Company
	}
	if req.City != nil {
		job.City = *req.City
	}
	if req.Neighborhood != nil {
		job.Neighborhood = *req.Neighborhood
	}
	if req.DatabaseName != nil {
		job.DatabaseName = *req.DatabaseName
	}
	if req.ExpectedHourUTC != nil {
		job.ExpectedHourUTC = *req.ExpectedHourUTC
	}
	if req.ExpectedMinuteUTC != nil {
		job.ExpectedMinuteUTC = *req.ExpectedMinuteUTC
	}
	if req.Frequency != nil {
		job.Frequency = models.Frequency(*req.Frequency)
	}
	if req.DaysOfWeek != nil {
		job.DaysOfWeek = *req.DaysOfWeek
	}
	if req.FinalStorageTemplate != nil {
		job.FinalStorageTemplate = *req.FinalStorageTemplate
	}
	if req.NotificationRecipients != nil {
		job.NotificationRecipients = *req.NotificationRecipients
	}
	if req.IsActive != nil {
		job.IsActive = *req.IsActive
	}
}

// Create handles POST /api/v1/jobs (admin only).
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	job := &models.ExpectedJob{
		Frequency:  models.FrequencyDaily,
		DaysOfWeek: models.DefaultDaysOfWeek,
		IsActive:   true,
	}
	req.apply(job)

	if err := job.Validate(); err != nil {
		UnprocessableEntity(w, err.Error())
		return
	}

	id, err := h.store.CreateJob(r.Context(), job)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateJob) {
			Conflict(w, "A job with the same identity already exists")
			return
		}
		InternalServerError(w, "Failed to create job")
		return
	}

	job.ID = id
	WriteJSONCreated(w, job)
}

// List handles GET /api/v1/jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list jobs")
		return
	}
	WriteJSONOK(w, jobs)
}

// Get handles GET /api/v1/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			NotFound(w, "Job not found")
			return
		}
		InternalServerError(w, "Failed to get job")
		return
	}

	WriteJSONOK(w, job)
}

// Update handles PUT /api/v1/jobs/{id} (admin only).
//
// Only operator-editable fields change here; scanner-owned fields
// (current_status, timestamps, previous hash) are never touched by
// this endpoint.
func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req JobRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			NotFound(w, "Job not found")
			return
		}
		InternalServerError(w, "Failed to get job")
		return
	}

	req.apply(job)

	if err := job.Validate(); err != nil {
		UnprocessableEntity(w, err.Error())
		return
	}

	if err := h.store.UpdateJob(r.Context(), job); err != nil {
		switch {
		case errors.Is(err, models.ErrJobNotFound):
			NotFound(w, "Job not found")
		case errors.Is(err, models.ErrDuplicateJob):
			Conflict(w, "A job with the same identity already exists")
		default:
			InternalServerError(w, "Failed to update job")
		}
		return
	}

	WriteJSONOK(w, job)
}

// Delete handles DELETE /api/v1/jobs/{id} (admin only).
// The job's history entries are deleted with it.
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteJob(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			NotFound(w, "Job not found")
			return
		}
		InternalServerError(w, "Failed to delete job")
		return
	}

	WriteNoContent(w)
}

// ListEntries handles GET /api/v1/jobs/{id}/entries.
// Returns the job's history, newest first, capped by ?limit=.
func (h *JobHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	// Surface 404 for unknown jobs instead of an empty list.
	if _, err := h.store.GetJob(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			NotFound(w, "Job not found")
			return
		}
		InternalServerError(w, "Failed to get job")
		return
	}

	limit := queryInt(r, "limit", 100)
	entries, err := h.store.ListEntries(r.Context(), id, limit)
	if err != nil {
		InternalServerError(w, "Failed to list entries")
		return
	}

	WriteJSONOK(w, entries)
}
