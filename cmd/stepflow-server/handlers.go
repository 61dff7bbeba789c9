package main

import (
	"errors"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/stepflow/stepflow/pkg/stepflow"
)

// maxImportBytes bounds the size of an import request body
const maxImportBytes = 16 << 20

type server struct {
	rt     *stepflow.Runtime
	logger *zap.Logger
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type importResponse struct {
	Mode       string   `json:"mode"`
	Target     string   `json:"targetWorkspaceId,omitempty"`
	Workspaces []string `json:"workspaces,omitempty"`
	Scenarios  []string `json:"scenarios,omitempty"`
	Dropped    int      `json:"dropped"`
}

type pluginResponse struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func newServer(rt *stepflow.Runtime, logger *zap.Logger) http.Handler {
	s := &server{rt: rt, logger: logger.Named("http")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "stepflow server is running. See /healthz, /metrics, /debug/vars")
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("GET /metrics", promMetricsHandler)
	mux.Handle("GET /debug/vars", expvar.Handler())

	mux.HandleFunc("GET /state", s.exportState)
	mux.HandleFunc("POST /import", s.importDocument)
	mux.HandleFunc("GET /plugins", s.listPlugins)
	mux.HandleFunc("GET /items", s.listItems)
	mux.HandleFunc("POST /items", s.saveItem)
	mux.HandleFunc("POST /items/{id}/load", s.loadItem)
	mux.HandleFunc("DELETE /items/{id}", s.deleteItem)
	return mux
}

func (s *server) exportState(w http.ResponseWriter, r *http.Request) {
	data, err := s.rt.Export()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *server) importDocument(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(data) > maxImportBytes {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Kind:    "parse",
			Message: fmt.Sprintf("import document exceeds %d bytes", maxImportBytes),
		})
		return
	}
	q := r.URL.Query()
	res, err := s.rt.Import(data, stepflow.ImportOptions{
		Mode:              stepflow.ImportMode(q.Get("mode")),
		TargetWorkspaceID: q.Get("target"),
		Edges:             stepflow.EdgePolicy(q.Get("edges")),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := importResponse{Mode: string(res.Mode), Target: res.TargetWorkspaceID, Dropped: res.Dropped}
	for _, ws := range res.Workspaces {
		out.Workspaces = append(out.Workspaces, ws.ID)
	}
	for _, sc := range res.Scenarios {
		out.Scenarios = append(out.Scenarios, sc.ID)
	}
	s.writeJSON(w, http.StatusCreated, out)
}

func (s *server) listPlugins(w http.ResponseWriter, r *http.Request) {
	plugins := s.rt.Plugins()
	out := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, pluginResponse{Type: string(p.Type), Name: p.Name, Category: string(p.Category)})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *server) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := stepflow.Filter{Type: q.Get("type")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	items, err := s.rt.List(r.Context(), provider(r), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if items == nil {
		items = []*stepflow.StoredItem{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *server) saveItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := s.rt.Save(r.Context(), stepflow.SaveOptions{
		Provider:  provider(r),
		ItemID:    q.Get("id"),
		ItemTitle: q.Get("title"),
		ItemType:  q.Get("type"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *server) loadItem(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.Load(r.Context(), provider(r), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.Delete(r.Context(), provider(r), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// provider reads the provider query parameter, defaulting to the local store
func provider(r *http.Request) stepflow.Provider {
	if p := r.URL.Query().Get("provider"); p != "" {
		return stepflow.Provider(p)
	}
	return stepflow.ProviderLocal
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Kind: stepflow.ErrorKind(err), Message: stepflow.UserMessage(err)})
}

// statusFor maps an error kind to an HTTP status
func statusFor(err error) int {
	if errors.Is(err, stepflow.ErrItemNotFound) {
		return http.StatusNotFound
	}
	switch stepflow.ErrorKind(err) {
	case "parse", "configuration":
		return http.StatusBadRequest
	case "integrity":
		return http.StatusUnprocessableEntity
	case "io":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
