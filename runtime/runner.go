package runtime

import (
	"fmt"

	"github.com/second-state/WasmEdge-go/wasmedge"
	"go.uber.org/zap"
)

// Runner is the one-shot call path: every Run creates a fresh WasmEdge VM,
// loads the bytes, calls one export and releases the VM.
//
// Run is observably equivalent to Load, NewContext, Register under an
// anonymous name, Lookup and Call on a single-use Context. Failures carry
// the stage that failed, with the same kinds the manual path reports.
type Runner struct {
	opts options
}

// NewRunner creates a Runner. A Runner holds no engine state between calls.
func NewRunner(opts ...Option) *Runner {
	return &Runner{opts: buildOptions(opts)}
}

// Run calls export in the module given as binary bytes using a default
// Runner.
func Run(wasmBytes []byte, export string, args ...Value) ([]Value, error) {
	return NewRunner().Run(wasmBytes, export, args...)
}

// RunText converts source and runs export from the resulting module.
func RunText(source, export string, args ...Value) ([]Value, error) {
	wasmBytes, err := Convert(source)
	if err != nil {
		return nil, err
	}
	return Run(wasmBytes, export, args...)
}

// Run executes the complete sequence on a fresh VM:
// 1. Decode the export signatures
// 2. Create the configuration and VM
// 3. Load and validate the module bytes
// 4. Instantiate the module
// 5. Check export, arity and argument types
// 6. Execute the export
//
// The VM is always released before Run returns.
func (r *Runner) Run(wasmBytes []byte, export string, args ...Value) ([]Value, error) {
	exports, err := decodeExports(wasmBytes)
	if err != nil {
		return nil, err
	}

	conf := r.opts.newConfigure()
	if conf == nil {
		return nil, fmt.Errorf("failed to create WasmEdge configuration")
	}
	defer conf.Release()

	vm := wasmedge.NewVMWithConfig(conf)
	if vm == nil {
		return nil, fmt.Errorf("failed to create WasmEdge VM")
	}
	defer vm.Release()

	if err := vm.LoadWasmBuffer(wasmBytes); err != nil {
		return nil, newError(StageLoad, KindMalformed, "", "WasmEdge failed to load module", err)
	}
	if err := vm.Validate(); err != nil {
		return nil, newError(StageLoad, KindInvalid, "", "module validation failed", err)
	}
	if err := vm.Instantiate(); err != nil {
		return nil, newError(StageRegister, KindInstantiation, "", "WasmEdge failed to instantiate module", err)
	}

	sig, ok := exports[export]
	if !ok || vm.GetFunctionType(export) == nil {
		return nil, newError(StageLookup, KindNotFound, export, "module has no exported function with this name", nil)
	}

	params, err := checkArgs(export, sig, args)
	if err != nil {
		return nil, err
	}

	raw, err := vm.Execute(export, params...)
	if err != nil {
		r.opts.logger.Debug("function trapped", zap.String("function", export), zap.Error(err))
		return nil, newError(StageCall, KindTrap, export, "execution failed", err)
	}

	results, err := convertResults(export, sig, raw)
	if err != nil {
		return nil, err
	}

	r.opts.logger.Debug("function run",
		zap.String("function", export),
		zap.Stringers("args", args),
		zap.Stringers("results", results))
	return results, nil
}
