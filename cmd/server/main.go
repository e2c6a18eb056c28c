package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/mrhapile/wasmcall/fluid"
	"github.com/mrhapile/wasmcall/runtime"
)

// Call paths accepted in Request.Path
const (
	PathRunner  = "runner"
	PathContext = "context"
)

// Request represents the JSON request body for POST /run
type Request struct {
	Module string   `json:"module"` // Module name (e.g., "fib")
	Export string   `json:"export"` // Exported function to call
	Args   []string `json:"args"`   // Typed arguments, e.g. ["i32:10"]
	Path   string   `json:"path"`   // "runner" (default) or "context"
}

// Response represents the JSON response body
type Response struct {
	Results []string `json:"results"` // Typed results, e.g. ["i32:89"]
}

// ErrorResponse represents an error in JSON format
type ErrorResponse struct {
	Error string `json:"error"`           // Human-readable error message
	Stage string `json:"stage,omitempty"` // Failing runtime stage, if any
	Kind  string `json:"kind,omitempty"`  // Failure kind, if any
}

// ExportInfo describes one callable export in GET /exports
type ExportInfo struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// Server serves module calls over HTTP.
type Server struct {
	store  fluid.ModuleStore
	log    *zap.Logger
	opts   []runtime.Option
	runner *runtime.Runner
}

// NewServer creates a Server resolving modules from store.
func NewServer(store fluid.ModuleStore, log *zap.Logger, opts ...runtime.Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	opts = append([]runtime.Option{runtime.WithLogger(log)}, opts...)
	return &Server{
		store:  store,
		log:    log,
		opts:   opts,
		runner: runtime.NewRunner(opts...),
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/exports", s.handleExports)
	return mux
}

// handleRun handles POST /run requests
//
// Request lifecycle per call:
// 1. Parse and validate JSON request
// 2. Resolve the module file through the store
// 3. Parse the typed arguments
// 4. Call the export on the requested path (fresh VM or fresh Context)
// 5. Return JSON response
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if req.Module == "" {
		writeError(w, http.StatusBadRequest, "module name is required")
		return
	}
	if !fluid.ValidName(req.Module) {
		writeError(w, http.StatusBadRequest, "invalid module name")
		return
	}
	if req.Export == "" {
		writeError(w, http.StatusBadRequest, "export name is required")
		return
	}
	if req.Path == "" {
		req.Path = PathRunner
	}
	if req.Path != PathRunner && req.Path != PathContext {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown call path %q", req.Path))
		return
	}

	args, err := runtime.ParseValues(req.Args)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid arguments: %v", err))
		return
	}

	modulePath, err := s.store.Resolve(req.Module)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	var results []runtime.Value
	if req.Path == PathContext {
		results, err = s.callInContext(modulePath, req.Module, req.Export, args)
	} else {
		results, err = s.callWithRunner(modulePath, req.Export, args)
	}
	if err != nil {
		s.log.Info("call failed",
			zap.String("module", req.Module),
			zap.String("export", req.Export),
			zap.String("path", req.Path),
			zap.Error(err))
		writeRuntimeError(w, err)
		return
	}

	out := make([]string, len(results))
	for i, v := range results {
		out[i] = v.String()
	}
	writeJSON(w, http.StatusOK, Response{Results: out})
}

// handleExports handles GET /exports?module=<name>
func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := r.URL.Query().Get("module")
	if !fluid.ValidName(name) {
		writeError(w, http.StatusBadRequest, "invalid module name")
		return
	}

	modulePath, err := s.store.Resolve(name)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	mod, err := runtime.LoadFile(modulePath)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	defer mod.Close()

	exports := make([]ExportInfo, 0)
	for _, export := range mod.Exports() {
		sig, _ := mod.Signature(export)
		exports = append(exports, ExportInfo{Name: export, Signature: sig.String()})
	}
	writeJSON(w, http.StatusOK, exports)
}

// callWithRunner uses the one-shot path: a fresh VM for this call.
func (s *Server) callWithRunner(modulePath, export string, args []runtime.Value) ([]runtime.Value, error) {
	wasmBytes, err := runtime.ReadModuleFile(modulePath)
	if err != nil {
		return nil, err
	}
	return s.runner.Run(wasmBytes, export, args...)
}

// callInContext uses the manual path with a single-use Context.
//
// This function guarantees the module and the Context are always released.
func (s *Server) callInContext(modulePath, name, export string, args []runtime.Value) ([]runtime.Value, error) {
	mod, err := runtime.LoadFile(modulePath)
	if err != nil {
		return nil, err
	}
	defer mod.Close()

	ctx, err := runtime.NewContext(s.opts...)
	if err != nil {
		return nil, err
	}
	defer ctx.Close()

	if err := ctx.Register(name, mod); err != nil {
		return nil, err
	}
	fn, err := ctx.Lookup(name, export)
	if err != nil {
		return nil, err
	}
	return ctx.Call(fn, args...)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fluid.ErrModuleNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, fluid.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("module store failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// statusFor maps a runtime failure kind to an HTTP status code.
func statusFor(kind runtime.Kind) int {
	switch kind {
	case runtime.KindNotFound, runtime.KindArityMismatch, runtime.KindTypeMismatch, runtime.KindInvalidInput:
		return http.StatusBadRequest
	case runtime.KindSyntax, runtime.KindMalformed, runtime.KindInvalid, runtime.KindInstantiation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeRuntimeError(w http.ResponseWriter, err error) {
	var rerr *runtime.Error
	if !errors.As(err, &rerr) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, statusFor(rerr.Kind), ErrorResponse{
		Error: err.Error(),
		Stage: string(rerr.Stage),
		Kind:  string(rerr.Kind),
	})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	runtime.SetLogger(log)

	store, err := fluid.New(cfg.Store.Kind, cfg.Store.Path)
	if err != nil {
		log.Fatal("invalid module store", zap.Error(err))
	}

	var opts []runtime.Option
	if cfg.Runtime.MaxMemoryPages > 0 {
		opts = append(opts, runtime.WithMaxMemoryPages(cfg.Runtime.MaxMemoryPages))
	}
	srv := NewServer(store, log, opts...)

	log.Info("starting WASM call server",
		zap.String("listen", cfg.Listen),
		zap.String("store", cfg.Store.Kind),
		zap.String("path", cfg.Store.Path))

	if err := http.ListenAndServe(cfg.Listen, srv.Handler()); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
