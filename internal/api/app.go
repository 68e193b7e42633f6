package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/migration"
	"github.com/kalambet/jobtrail/internal/records"
)

const maxRequestBodySize = 1 << 20 // 1MB

type PostingRequest struct {
	URL         string         `json:"url"`
	Company     string         `json:"company"`
	CompanyLogo string         `json:"companyLogo"`
	Title       string         `json:"title"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	Salary      string         `json:"salary"`
	Status      records.Status `json:"status"`
	Interest    int            `json:"interest"`
	Tags        []string       `json:"tags"`
	Notes       string         `json:"notes"`
}

func (req PostingRequest) posting() records.Posting {
	return records.Posting{
		URL:         req.URL,
		Company:     req.Company,
		CompanyLogo: req.CompanyLogo,
		Title:       req.Title,
		Location:    req.Location,
		Description: req.Description,
		Salary:      req.Salary,
		Status:      req.Status,
		Interest:    req.Interest,
		Tags:        req.Tags,
		Notes:       req.Notes,
	}
}

type ConnectionRequest struct {
	Name                 string                   `json:"name"`
	Company              string                   `json:"company"`
	Role                 string                   `json:"role"`
	Email                string                   `json:"email"`
	LinkedInURL          string                   `json:"linkedInUrl"`
	RelationshipType     records.RelationshipType `json:"relationshipType"`
	HowWeMet             string                   `json:"howWeMet"`
	RelationshipStrength *int                     `json:"relationshipStrength"`
	Notes                string                   `json:"notes"`
}

func (req ConnectionRequest) connection() records.Connection {
	c := records.Connection{
		Name:                 req.Name,
		Company:              req.Company,
		Role:                 req.Role,
		RelationshipStrength: req.RelationshipStrength,
	}
	// Empty strings stay absent so the defaults apply.
	if req.Email != "" {
		c.Email = records.Ptr(req.Email)
	}
	if req.LinkedInURL != "" {
		c.LinkedInURL = records.Ptr(req.LinkedInURL)
	}
	if req.RelationshipType != "" {
		c.RelationshipType = records.Ptr(req.RelationshipType)
	}
	if req.HowWeMet != "" {
		c.HowWeMet = records.Ptr(req.HowWeMet)
	}
	if req.Notes != "" {
		c.Notes = records.Ptr(req.Notes)
	}
	return c
}

// MigrationStatus is the body of GET /migration/status.
type MigrationStatus struct {
	Detected       migration.DataVersion `json:"detected"`
	SchemaVersion  int                   `json:"schemaVersion"`
	CurrentVersion int                   `json:"currentVersion"`
}

type AppDeps struct {
	Collection *collection.Repository
	Migrator   *migration.Migrator
	Token      string
}

// NewAppHandler returns the local REST API. /health is open; every other
// route requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/postings", handleListPostings(deps))
		r.Post("/postings", handleCreatePosting(deps))
		r.Delete("/postings/{id}", handleDeletePosting(deps))
		r.Post("/postings/{id}/connections/{connectionID}", handleLinkConnection(deps))
		r.Get("/connections", handleListConnections(deps))
		r.Post("/connections", handleCreateConnection(deps))
		r.Get("/migration/status", handleMigrationStatus(deps))
		r.Post("/migration/run", handleMigrationRun(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListPostings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 0, 0)
		offset := parseIntParam(r, "offset", 0, 0)
		status := records.Status(r.URL.Query().Get("status"))

		postings, err := deps.Collection.Postings(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list postings: %v", err)
			return
		}

		postings = filterPostings(postings, status)
		postings = page(postings, limit, offset)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(postings)
	}
}

// filterPostings keeps postings with the given status; an empty status keeps all.
func filterPostings(ps []records.Posting, status records.Status) []records.Posting {
	if status == "" {
		return ps
	}
	out := make([]records.Posting, 0, len(ps))
	for _, p := range ps {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// page slices items by offset and limit (0 = no limit). The result is never nil.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	if items == nil {
		return []T{}
	}
	return items
}

func handleCreatePosting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req PostingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.URL) == "" && strings.TrimSpace(req.Title) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of url or title is required")
			return
		}

		p, err := deps.Collection.AddPosting(r.Context(), req.posting())
		if err != nil {
			collectionError(w, "failed to add posting", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(p)
	}
}

func handleDeletePosting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := deps.Collection.DeletePosting(r.Context(), id); err != nil {
			collectionError(w, "failed to delete posting", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleLinkConnection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postingID := chi.URLParam(r, "id")
		connectionID := chi.URLParam(r, "connectionID")

		if err := deps.Collection.LinkConnection(r.Context(), postingID, connectionID); err != nil {
			collectionError(w, "failed to link connection", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "linked"})
	}
}

func handleListConnections(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 0, 0)
		offset := parseIntParam(r, "offset", 0, 0)

		conns, err := deps.Collection.Connections(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list connections: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page(conns, limit, offset))
	}
}

func handleCreateConnection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ConnectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		c, err := deps.Collection.AddConnection(r.Context(), req.connection())
		if err != nil {
			collectionError(w, "failed to add connection", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(c)
	}
}

func handleMigrationStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detected, err := deps.Migrator.DetectDataVersion(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to detect data version: %v", err)
			return
		}
		v, err := deps.Migrator.Registry().Version(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read schema version: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(MigrationStatus{
			Detected:       detected,
			SchemaVersion:  v,
			CurrentVersion: records.CurrentSchemaVersion,
		})
	}
}

func handleMigrationRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rep migration.Report
		err := deps.Collection.WithWriteLock(func() error {
			var err error
			rep, err = deps.Migrator.RunIfNeeded(r.Context())
			return err
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "migration failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rep)
	}
}

// collectionError maps repository errors onto HTTP statuses.
func collectionError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, collection.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%s: %v", msg, err)
	case errors.Is(err, collection.ErrDuplicateURL), errors.Is(err, collection.ErrDuplicateID):
		httpError(w, http.StatusConflict, "conflict", "%s: %v", msg, err)
	case errors.Is(err, collection.ErrInvalid):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s: %v", msg, err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%s: %v", msg, err)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
