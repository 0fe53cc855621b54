package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/cardconv/internal/core"
	"github.com/JonMunkholm/cardconv/internal/logging"
	"github.com/JonMunkholm/cardconv/internal/web/templates"
)

const (
	// multipartOverhead is allowed on top of the file size for form framing.
	multipartOverhead = 1 << 20
	defaultRunsLimit  = 20
	maxRunsLimit      = 100
	pageRunsLimit     = 10
)

// handleIndex renders the converter page for the caller's session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	snap := s.service.Snapshot(sid)

	runs, err := s.service.ListRuns(r.Context(), sid, pageRunsLimit)
	if err != nil {
		logging.FromContext(r.Context()).Error("list runs failed", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Page(snap, runs).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page failed", "error", err)
	}
}

// handleConvert starts a run from a multipart upload and returns its id.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	runID, err := s.startRun(w, r)
	if err != nil {
		respondRunError(w, r, err, statusFor(err), runID)
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]string{"run_id": runID})
}

// handleConvertForm is the no-script form target. Failures recorded on the
// session are shown by the page, so both outcomes redirect home.
func (s *Server) handleConvertForm(w http.ResponseWriter, r *http.Request) {
	runID, err := s.startRun(w, r)
	if err != nil && runID == "" {
		respondError(w, r, err, statusFor(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// startRun reads the "file" field and starts a run on the caller's
// session. A request without a file starts a run with no input, which the
// service records as failed.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) (string, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	var (
		input    io.Reader
		fileName string
	)
	err := r.ParseMultipartForm(maxSize)
	switch {
	case err == nil:
		file, header, ferr := r.FormFile("file")
		if ferr == nil {
			defer file.Close()
			input, fileName = file, header.Filename
		} else if !errors.Is(ferr, http.ErrMissingFile) {
			return "", fmt.Errorf("read upload: %w", ferr)
		}
	case errors.Is(err, http.ErrNotMultipart):
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return "", fmt.Errorf("file too large: %w", err)
		}
		return "", fmt.Errorf("read upload: %w", err)
	}

	sid := sessionID(r)
	runID, err := s.service.StartRun(r.Context(), sid, fileName, input)
	if err != nil {
		return runID, err
	}
	logging.WithFields(r.Context(), "run_id", runID, "session", sid).Info("run started", "file", fileName)
	return runID, nil
}

// handleStatus returns the snapshot of the session's latest run.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Snapshot(sessionID(r)))
}

// handleProgress streams the session's run progress via Server-Sent Events.
// Event ids are the progress percentage; a reconnecting client passing
// Last-Event-ID (or ?lastEventId=) skips events it has already seen.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	lastID := r.Header.Get("Last-Event-ID")
	if q := r.URL.Query().Get("lastEventId"); q != "" {
		lastID = q
	}
	resumeFrom := -1
	if lastID != "" {
		if n, err := strconv.Atoi(lastID); err == nil {
			resumeFrom = n
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	progressCh := s.service.Subscribe(sessionID(r))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case p, ok := <-progressCh:
			if !ok {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			pct := p.Percent()
			if pct <= resumeFrom && !p.State.Terminal() {
				continue
			}
			data, err := json.Marshal(p)
			if err != nil {
				logging.FromContext(r.Context()).Error("encode progress failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", pct, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleOutputCSV downloads the session's converted file.
func (s *Server) handleOutputCSV(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Snapshot(sessionID(r))
	if snap.State != core.StateCompleted || snap.Result == nil {
		respondError(w, r, core.ErrNoOutput, http.StatusNotFound)
		return
	}
	writeCSV(w, r, "moxfield.csv", snap.Result.Records)
}

// handleMissingIDs returns the missing ids, one per line, for copying.
func (s *Server) handleMissingIDs(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Snapshot(sessionID(r))
	if snap.State != core.StateCompleted || snap.Result == nil {
		respondError(w, r, core.ErrNoOutput, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, snap.Result.MissingIDs())
}

// handleLimiterStatus reports run slot usage.
func (s *Server) handleLimiterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.LimiterStatus())
}

// runSummary is a history entry without its records.
type runSummary struct {
	ID         string          `json:"id"`
	FileName   string          `json:"file_name"`
	State      core.State      `json:"state"`
	Variant    string          `json:"variant,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Stats      core.Stats      `json:"stats"`
	Error      *core.ErrorInfo `json:"error,omitempty"`
}

// handleListRuns lists the session's past runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid limit",
				Message: "invalid limit",
				Code:    "VAL002",
			})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.service.ListRuns(r.Context(), sessionID(r), limit)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	out := make([]runSummary, len(runs))
	for i, run := range runs {
		out[i] = runSummary{
			ID:         run.ID,
			FileName:   run.FileName,
			State:      run.State,
			Variant:    run.Variant,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			Stats:      run.Stats,
			Error:      run.Error,
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleGetRun returns one past run with its records and diagnostics.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), sessionID(r), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// handleRunOutputCSV downloads the converted file of a past run.
func (s *Server) handleRunOutputCSV(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), sessionID(r), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if run.State != core.StateCompleted {
		respondError(w, r, core.ErrNoOutput, http.StatusNotFound)
		return
	}
	writeCSV(w, r, "moxfield-"+run.ID+".csv", run.Records)
}

func writeCSV(w http.ResponseWriter, r *http.Request, name string, records []core.OutputRecord) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := core.WriteRecords(w, records); err != nil {
		logging.FromContext(r.Context()).Error("write csv failed", "error", err)
	}
}
