package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Someblueman/lootforge/internal/config"
	"github.com/Someblueman/lootforge/internal/contract"
)

// Server is the HTTP facade over the stage entry points (spec §6): each
// pipeline command is mirrored as POST /v1/tools/<name>, plus a
// canonical end-to-end POST /v1/generation/requests and GET contract
// introspection endpoints. It never implements stage logic itself — it
// only decodes a request, calls into Engine, and encodes the result.
type Server struct {
	Engine *Engine
	Logger *zap.Logger
}

// New builds a Server bound to the given configuration and logger.
func New(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{Engine: &Engine{Config: cfg, Logger: logger}, Logger: logger}
}

// Handler returns the complete stdlib net/http mux for the facade,
// grounded on the teacher's server-side HTTP pattern
// (internal/auth/antigravity/server.go's http.NewServeMux-based
// routing; no third-party router appears anywhere in the retrieval
// pack).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	tools := map[string]func(Params) (interface{}, error){
		"init":       func(p Params) (interface{}, error) { return nil, fmt.Errorf("service: init is a CLI-only scaffolding command") },
		"plan":       func(p Params) (interface{}, error) { return s.Engine.Plan(p) },
		"validate":   func(p Params) (interface{}, error) { return s.Engine.Validate(p) },
		"generate":   func(p Params) (interface{}, error) { return s.Engine.Generate(p) },
		"regenerate": func(p Params) (interface{}, error) { return s.Engine.Regenerate(p) },
		"process":    func(p Params) (interface{}, error) { return s.Engine.Process(p) },
		"eval":       func(p Params) (interface{}, error) { return s.Engine.Eval(p) },
		"select":     func(p Params) (interface{}, error) { return s.Engine.Select(p) },
		"atlas":      func(p Params) (interface{}, error) { return s.Engine.Atlas(p) },
		"review":     func(p Params) (interface{}, error) { return s.Engine.Review(p) },
		"package":    func(p Params) (interface{}, error) { return s.Engine.Package(p) },
	}

	for name, fn := range tools {
		name, fn := name, fn
		mux.HandleFunc("/v1/tools/"+name, func(w http.ResponseWriter, r *http.Request) {
			s.handleTool(w, r, fn)
		})
	}

	mux.HandleFunc("/v1/generation/requests", s.handleGenerationRequest)
	mux.HandleFunc("/v1/contracts/", s.handleContractIntrospect)
	mux.HandleFunc("/v1/contracts", s.handleContractList)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// ListenAndServe starts the HTTP facade at addr; it always returns a
// non-nil error (http.ErrServerClosed on graceful shutdown).
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	if s.Logger != nil {
		s.Logger.Info("lootforge service listening", zap.String("addr", addr))
	}
	return srv.ListenAndServe()
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request, fn func(Params) (interface{}, error)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	var p Params
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode params: %w", err))
			return
		}
	}
	result, err := fn(p)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerationRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	var req GenerationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
	}
	resp, err := s.Engine.RunGeneration(req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleContractList reports the five stage-artifact kinds and the
// single version string that governs all of them (spec §6: "the only
// supported way to evolve the inter-stage wire format").
func (s *Server) handleContractList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": contract.Version,
		"kinds": []contract.Kind{
			contract.KindTargetsIndex,
			contract.KindProvenanceRun,
			contract.KindAcceptanceReport,
			contract.KindEvalReport,
			contract.KindSelectionLock,
		},
	})
}

// handleContractIntrospect validates a posted document body against the
// kind named in the path (GET with a body is unusual but this endpoint
// is introspection-only and has no side effects, matching spec §6's
// "GET contract endpoints for introspection").
func (s *Server) handleContractIntrospect(w http.ResponseWriter, r *http.Request) {
	kind := contract.Kind(strings.TrimPrefix(r.URL.Path, "/v1/contracts/"))
	if kind == "" {
		s.handleContractList(w, r)
		return
	}

	var decoded interface{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
	}
	if decoded == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "version": contract.Version})
		return
	}
	if err := contract.Validate(kind, decoded, ""); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "valid": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
