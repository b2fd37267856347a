package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/engine"
	"github.com/harmonize-tools/s4h-workbench/internal/sandbox"
	"github.com/harmonize-tools/s4h-workbench/internal/workspace"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// maxBodyBytes caps request bodies; snippets are the largest payload.
const maxBodyBytes = 1 << 20

// OutcomeResponse is the JSON form of a stage outcome.
type OutcomeResponse struct {
	OK         bool           `json:"ok"`
	Stage      string         `json:"stage"`
	Level      engine.Level   `json:"level"`
	Message    string         `json:"message"`
	Details    []string       `json:"details,omitempty"`
	Kind       core.ErrorKind `json:"kind,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

func newOutcomeResponse(out engine.Outcome) OutcomeResponse {
	return OutcomeResponse{
		OK:         out.OK(),
		Stage:      string(out.Stage),
		Level:      out.Level,
		Message:    out.Message,
		Details:    out.Details,
		Kind:       out.Kind,
		RunID:      out.RunID,
		DurationMS: out.Duration.Milliseconds(),
	}
}

// statusFor maps an outcome to its HTTP status.
func statusFor(out engine.Outcome) int {
	switch out.Kind {
	case core.KindNone:
		if out.OK() {
			return http.StatusOK
		}
		return http.StatusInternalServerError
	case core.KindPrecondition:
		return http.StatusConflict
	case core.KindParameter:
		return http.StatusUnprocessableEntity
	case core.KindCollaborator:
		return http.StatusBadGateway
	case core.KindSnippet:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	SessionID string `json:"session_id"`
	workspace.Snapshot
}

// Preview is a bounded rendering of a dataset.
type Preview struct {
	Name    string     `json:"name"`
	Rows    int        `json:"rows"`
	Columns []string   `json:"columns"`
	Data    [][]string `json:"data"`
}

func newPreview(ds *core.Dataset, limit int) *Preview {
	if ds == nil {
		return nil
	}
	head := ds.Head(limit)
	p := &Preview{Name: ds.Name(), Rows: ds.NumRows(), Columns: ds.ColumnNames(), Data: make([][]string, head.NumRows())}
	for i := range p.Data {
		row := head.Row(i)
		p.Data[i] = make([]string, len(row))
		for j, v := range row {
			p.Data[i][j] = v.String()
		}
	}
	return p
}

// ExploreResponse is returned by POST /api/explore.
type ExploreResponse struct {
	OK         bool     `json:"ok"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	Error      string   `json:"error,omitempty"`
	Bound      []string `json:"bound"`
	Result     *Preview `json:"result,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

type dictionaryRequest struct {
	Path        string `json:"path"`
	Standardize *bool  `json:"standardize"`
	Separator   string `json:"separator"`
	Encoding    string `json:"encoding"`
}

type extractRequest struct {
	Source     string   `json:"source"`
	Inputs     []string `json:"inputs"`
	Query      string   `json:"query"`
	Depth      *int     `json:"depth"`
	Keywords   []string `json:"keywords"`
	Separator  string   `json:"separator"`
	Encoding   string   `json:"encoding"`
	Extensions []string `json:"extensions"`
	OutputDir  string   `json:"output_dir"`
}

type pruneRequest struct {
	NaNThreshold   *float64 `json:"nan_threshold"`
	SampleFraction *float64 `json:"sample_fraction"`
}

type mergeRequest struct {
	SimilarityThreshold *float64 `json:"similarity_threshold"`
}

type translateRequest struct {
	Fields   []string `json:"fields"`
	Language string   `json:"language"`
}

type classifyRequest struct {
	Model    string `json:"model"`
	Language string `json:"language"`
}

type exploreRequest struct {
	Snippet string `json:"snippet"`
	Sample  string `json:"sample"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{SessionID: s.engine.SessionID(), Snapshot: s.engine.Status()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	all := r.URL.Query().Get("all") == "true"
	runs, err := s.engine.History(r.Context(), limit, all)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleColumns(w http.ResponseWriter, _ *http.Request) {
	cols := s.engine.AvailableColumns()
	if cols == nil {
		cols = []string{}
	}
	writeJSON(w, http.StatusOK, cols)
}

func (s *Server) handleSamples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sandbox.Samples)
}

func (s *Server) handleDictionary(w http.ResponseWriter, r *http.Request) {
	var req dictionaryRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	standardize := req.Standardize == nil || *req.Standardize
	opts := adapter.ParseOptions{Separator: req.Separator, Encoding: req.Encoding}
	if opts.Encoding == "" {
		opts.Encoding = s.settings.Extract.Encoding
	}
	s.respond(w, func() engine.Outcome {
		return s.engine.LoadDictionary(r.Context(), req.Path, opts, standardize)
	})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	s.respond(w, func() engine.Outcome { return s.engine.ParseLayout(r.Context()) })
}

func (s *Server) handleDisableLayout(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.engine.DisableFixedWidth()
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !decode(w, r, &req) {
		return
	}
	ex := s.settings.Extract
	er := adapter.ExtractRequest{
		Kind:      adapter.SourceKind(ex.Source),
		Inputs:    req.Inputs,
		Query:     req.Query,
		Depth:     ex.Depth,
		Keywords:  ex.Keywords,
		OutputDir: ex.OutputDir,
		Options: adapter.ParseOptions{
			Separator:  ex.Separator,
			Encoding:   ex.Encoding,
			Extensions: ex.Extensions,
		},
	}
	if req.Source != "" {
		er.Kind = adapter.SourceKind(req.Source)
	}
	if er.Kind == adapter.SourceHTTP {
		er.Timeout = ex.HTTPTimeout
	}
	if req.Depth != nil {
		er.Depth = *req.Depth
	}
	if len(req.Keywords) > 0 {
		er.Keywords = req.Keywords
	}
	if req.OutputDir != "" {
		er.OutputDir = req.OutputDir
	}
	if req.Separator != "" {
		er.Options.Separator = req.Separator
	}
	if req.Encoding != "" {
		er.Options.Encoding = req.Encoding
	}
	if len(req.Extensions) > 0 {
		er.Options.Extensions = req.Extensions
	}
	s.respond(w, func() engine.Outcome { return s.engine.Extract(r.Context(), er) })
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if !decode(w, r, &req) {
		return
	}
	params := s.settings.Harmonize.PruneParams()
	if req.NaNThreshold != nil {
		params.NaNThreshold = *req.NaNThreshold
	}
	if req.SampleFraction != nil {
		params.SampleFraction = *req.SampleFraction
	}
	s.respond(w, func() engine.Outcome { return s.engine.Prune(r.Context(), params) })
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !decode(w, r, &req) {
		return
	}
	params := s.settings.Harmonize.MergeParams()
	if req.SimilarityThreshold != nil {
		params.SimilarityThreshold = *req.SimilarityThreshold
	}
	s.respond(w, func() engine.Outcome { return s.engine.Merge(r.Context(), params) })
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 {
		req.Fields = s.settings.Translate.Fields
	}
	if req.Language == "" {
		req.Language = s.settings.Translate.Language
	}
	s.respond(w, func() engine.Outcome { return s.engine.Translate(r.Context(), req.Fields, req.Language) })
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Model == "" {
		req.Model = s.settings.Classify.Model
	}
	if req.Language == "" {
		req.Language = s.settings.Translate.Language
	}
	s.respond(w, func() engine.Outcome { return s.engine.Classify(r.Context(), req.Model, req.Language) })
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req core.SelectParams
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, func() engine.Outcome { return s.engine.Select(r.Context(), req) })
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	var req exploreRequest
	if !decode(w, r, &req) {
		return
	}
	snippet := req.Snippet
	if req.Sample != "" {
		sample, ok := sandbox.SampleByName(req.Sample)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown sample %q", req.Sample))
			return
		}
		snippet = sample.Code
	}

	s.mu.Lock()
	out := s.engine.Explore(r.Context(), snippet)
	s.mu.Unlock()
	s.notifier.Broadcast(engine.SnippetOutcome(out))

	resp := ExploreResponse{
		OK:         !out.Failed(),
		Stdout:     out.Stdout,
		Stderr:     out.Stderr,
		Bound:      out.Bound,
		Result:     newPreview(out.Result, s.settings.Sandbox.PreviewRows),
		DurationMS: out.Duration.Milliseconds(),
	}
	if out.Failed() {
		resp.Error = out.Err.Error()
	}
	if resp.Bound == nil {
		resp.Bound = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdopt(w http.ResponseWriter, r *http.Request) {
	s.respond(w, func() engine.Outcome { return s.engine.AdoptResult(r.Context()) })
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req engine.ExportRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, func() engine.Outcome { return s.engine.Export(r.Context(), req) })
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.engine.Reset()
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// respond runs a stage under the server lock, broadcasts its outcome and
// writes it.
func (s *Server) respond(w http.ResponseWriter, run func() engine.Outcome) {
	s.mu.Lock()
	out := run()
	s.mu.Unlock()

	s.notifier.Broadcast(out)
	writeJSON(w, statusFor(out), newOutcomeResponse(out))
}

// decode reads a JSON body. An empty body leaves v at its zero value.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
