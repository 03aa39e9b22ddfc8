package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/LoanIngest/internal/core"
	"github.com/JonMunkholm/LoanIngest/internal/ingest"
	"github.com/JonMunkholm/LoanIngest/internal/logging"
	"github.com/JonMunkholm/LoanIngest/internal/report"
	"github.com/JonMunkholm/LoanIngest/internal/source"
	"github.com/JonMunkholm/LoanIngest/internal/storage"
)

// maxRejectedInResponse caps the rejected records echoed by the ingest endpoint.
const maxRejectedInResponse = 100

var errNoFile = errors.New("no file provided")

// IngestResponse is the JSON body of a finished ingestion.
type IngestResponse struct {
	IngestionID string                `json:"ingestion_id"`
	Status      string                `json:"status"`
	DryRun      bool                  `json:"dry_run"`
	Duplicates  int                   `json:"duplicate_records"`
	Quality     core.QualityMetrics   `json:"quality"`
	Business    core.BusinessMetrics  `json:"business"`
	Rejected    []core.RejectedRecord `json:"rejected"`
	Truncated   bool                  `json:"rejected_truncated,omitempty"`
	ReportURL   string                `json:"report_url"`
}

func newIngestResponse(res *ingest.Result) IngestResponse {
	resp := IngestResponse{
		IngestionID: res.Run.IngestionID,
		Status:      res.Run.Status,
		DryRun:      res.DryRun,
		Duplicates:  res.Run.Duplicates,
		Quality:     res.Quality,
		Business:    res.Business,
		Rejected:    res.Rejected,
		ReportURL:   "/runs/" + res.Run.IngestionID,
	}
	if resp.Rejected == nil {
		resp.Rejected = []core.RejectedRecord{}
	}
	if len(resp.Rejected) > maxRejectedInResponse {
		resp.Rejected = resp.Rejected[:maxRejectedInResponse]
		resp.Truncated = true
	}
	return resp
}

// handleIngest accepts a client file either as the "file" field of a
// multipart form or as the raw request body, and runs it synchronously.
// ?dry_run=true classifies without storing.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	client := chi.URLParam(r, "client")
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	if s.maxFile > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxFile+uploadSlack)
	}

	body, name, err := uploadedFile(r)
	if err != nil {
		respondError(w, r, err, statusFor(err), "")
		return
	}

	res, err := s.service.Ingest(r.Context(), ingest.Request{
		Client: client,
		Source: name,
		Body:   body,
		DryRun: dryRun,
	})
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = source.ErrFileTooLarge
		}
		id := ""
		if res != nil {
			id = res.Run.IngestionID
		}
		respondError(w, r, err, statusFor(err), id)
		return
	}

	writeJSON(w, http.StatusOK, newIngestResponse(res))
}

// uploadedFile finds the file in r. Multipart bodies are streamed part by
// part, so the upload is never buffered in full.
func uploadedFile(r *http.Request) (io.Reader, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		name := r.URL.Query().Get("filename")
		if name == "" {
			name = "upload"
		}
		return r.Body, name, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", errNoFile
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, "", errNoFile
		}
		if err != nil {
			return nil, "", err
		}
		if part.FormName() == "file" {
			return part, part.FileName(), nil
		}
	}
}

type clientsResponse struct {
	Clients  []string          `json:"clients"`
	Reloaded bool              `json:"reloaded,omitempty"`
	Invalid  map[string]string `json:"invalid,omitempty"`
}

// handleListClients lists the configured clients. With ?reload=true it first
// drops the cached configs and re-reads each client, reporting the ones that
// no longer load.
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	cat := s.service.Catalog()
	reload, _ := strconv.ParseBool(r.URL.Query().Get("reload"))
	if reload {
		cat.Reload()
	}

	names, err := cat.Clients()
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError, "")
		return
	}
	if names == nil {
		names = []string{}
	}

	resp := clientsResponse{Clients: names, Reloaded: reload}
	if reload {
		for _, name := range names {
			if _, err := cat.Load(name); err != nil {
				if resp.Invalid == nil {
					resp.Invalid = make(map[string]string)
				}
				resp.Invalid[name] = err.Error()
			}
		}
		logging.FromContext(r.Context()).Info("client configs reloaded",
			"count", len(names), "invalid", len(resp.Invalid))
	}
	writeJSON(w, http.StatusOK, resp)
}

type runsResponse struct {
	Runs []storage.Run `json:"runs"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns(r.Context(), parseIntParam(r, "limit", 50))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError, "")
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingestionID")
	res, err := s.service.Result(id)
	if err != nil {
		respondError(w, r, err, statusFor(err), id)
		return
	}
	writeJSON(w, http.StatusOK, newIngestResponse(res))
}

// handleRunReport renders the HTML report of a run kept in memory.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingestionID")
	res, err := s.service.Result(id)
	if err != nil {
		respondError(w, r, err, statusFor(err), id)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RunPage(res.Summary()).Render(r.Context(), w); err != nil {
		respondError(w, r, err, http.StatusInternalServerError, id)
	}
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := strings.TrimSpace(r.URL.Query().Get(name))
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
