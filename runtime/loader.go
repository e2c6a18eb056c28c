package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/second-state/WasmEdge-go/wasmedge"
	"github.com/wippyai/wasm-runtime/wasm"
	"go.uber.org/zap"
)

// Module is a decoded and validated WebAssembly module, ready to be
// registered into a Context. Its exported function signatures are known
// without running any code.
//
// A Module is read-only once loaded. It owns the WasmEdge AST and must be closed with
// Close() once no Context needs to register it again; instances already
// registered are unaffected.
type Module struct {
	source  string               // file path, or "" for in-memory bytes
	ast     *wasmedge.AST        // WasmEdge loaded + validated module
	exports map[string]Signature // callable function exports
}

// Load decodes and validates binary module bytes.
//
// Loading happens in two passes:
// 1. The binary is decoded to learn every function export and its signature
// 2. WasmEdge loads the bytes into an AST and validates it
//
// If either pass fails, nothing is kept and an *Error with Stage "load" is
// returned: Kind "malformed" for decoding failures, "invalid" for
// validation failures.
func Load(wasmBytes []byte) (*Module, error) {
	return load(wasmBytes, "")
}

// LoadFile loads a module from disk. Files ending in .wat are converted from
// text first; everything else is read as binary.
//
// Example:
//
//	mod, err := runtime.LoadFile("plugins/fib/fib.wat")
//	if err != nil {
//	    return err
//	}
//	defer mod.Close()
func LoadFile(path string) (*Module, error) {
	data, err := ReadModuleFile(path)
	if err != nil {
		return nil, err
	}
	return load(data, path)
}

// ReadModuleFile returns the binary module stored at path, converting .wat
// text files. Use it to feed Run with a module kept on disk.
func ReadModuleFile(path string) ([]byte, error) {
	// Verify file exists before attempting to load
	if _, err := os.Stat(path); err != nil {
		return nil, newError(StageLoad, KindNotFound, path, "module file not found", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(StageLoad, KindInvalidInput, path, "failed to read module file", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".wat") {
		return Convert(string(data))
	}
	return data, nil
}

func load(wasmBytes []byte, source string) (*Module, error) {
	exports, err := decodeExports(wasmBytes)
	if err != nil {
		return nil, err
	}

	loader := wasmedge.NewLoader()
	if loader == nil {
		return nil, newError(StageLoad, KindInvalid, source, "failed to create WasmEdge loader", nil)
	}
	defer loader.Release()

	ast, err := loader.LoadBuffer(wasmBytes)
	if err != nil {
		return nil, newError(StageLoad, KindMalformed, source, "WasmEdge failed to load module", err)
	}

	validator := wasmedge.NewValidator()
	if validator == nil {
		ast.Release()
		return nil, newError(StageLoad, KindInvalid, source, "failed to create WasmEdge validator", nil)
	}
	defer validator.Release()

	if err := validator.Validate(ast); err != nil {
		ast.Release()
		return nil, newError(StageLoad, KindInvalid, source, "module validation failed", err)
	}

	Logger().Debug("module loaded",
		zap.String("source", source),
		zap.Int("bytes", len(wasmBytes)),
		zap.Int("exports", len(exports)))

	return &Module{
		source:  source,
		ast:     ast,
		exports: exports,
	}, nil
}

// decodeExports decodes the binary and returns the signature of every
// function export with numeric parameters and results.
func decodeExports(wasmBytes []byte) (map[string]Signature, error) {
	if len(wasmBytes) == 0 {
		return nil, newError(StageLoad, KindMalformed, "", "empty module", nil)
	}

	m, err := wasm.ParseModule(wasmBytes)
	if err != nil {
		return nil, newError(StageLoad, KindMalformed, "", "failed to decode module", err)
	}
	if err := m.Validate(); err != nil {
		return nil, newError(StageLoad, KindInvalid, "", "module structure is invalid", err)
	}

	exports := make(map[string]Signature)
	for _, exp := range m.Exports {
		if exp.Kind != wasm.KindFunc {
			continue
		}
		ft := m.GetFuncType(exp.Idx)
		if ft == nil {
			return nil, newError(StageLoad, KindInvalid, exp.Name,
				fmt.Sprintf("export refers to unknown function %d", exp.Idx), nil)
		}
		sig, ok := signatureOf(ft)
		if !ok {
			continue
		}
		exports[exp.Name] = sig
	}
	return exports, nil
}

func signatureOf(ft *wasm.FuncType) (Signature, bool) {
	sig := Signature{
		Params:  make([]ValueType, 0, len(ft.Params)),
		Results: make([]ValueType, 0, len(ft.Results)),
	}
	for _, p := range ft.Params {
		t, ok := fromWasmValType(p)
		if !ok {
			return Signature{}, false
		}
		sig.Params = append(sig.Params, t)
	}
	for _, r := range ft.Results {
		t, ok := fromWasmValType(r)
		if !ok {
			return Signature{}, false
		}
		sig.Results = append(sig.Results, t)
	}
	return sig, true
}

// Exports returns the names of the callable function exports, sorted.
func (m *Module) Exports() []string {
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Signature returns the signature of a function export.
func (m *Module) Signature(export string) (Signature, bool) {
	sig, ok := m.exports[export]
	return sig, ok
}

// Source returns the file the module was loaded from, or "" for bytes.
func (m *Module) Source() string {
	return m.source
}

// Close releases the WasmEdge AST. It's safe to call Close() multiple times.
func (m *Module) Close() {
	if m.ast != nil {
		m.ast.Release()
		m.ast = nil
	}
}

func (m *Module) closed() bool {
	return m == nil || m.ast == nil
}
