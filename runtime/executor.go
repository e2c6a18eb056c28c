package runtime

import (
	"fmt"
	"sort"

	"github.com/second-state/WasmEdge-go/wasmedge"
	"go.uber.org/zap"
)

// Context owns a WasmEdge store and executor and the module instances
// registered into them. It plays the "store" and "executor" roles of the
// manual call path: Register, then Lookup, then Call.
//
// Instance state (linear memory, globals) mutated by Call stays inside the
// Context that owns it. A Context is not safe for concurrent use - caller
// must synchronize access, or use one Context per goroutine.
type Context struct {
	conf     *wasmedge.Configure
	store    *wasmedge.Store
	executor *wasmedge.Executor

	instances map[string]*wasmedge.Module // registration name -> instance
	modules   map[string]*Module          // registration name -> loaded module
	names     map[*Module]string          // loaded module -> registration name

	log *zap.Logger
}

// Function is an exported function resolved by Context.Lookup. It is only
// valid while its Context is open.
type Function struct {
	ctx    *Context
	inst   *wasmedge.Function
	module string
	export string
	sig    Signature
}

// Name returns "module.export".
func (f *Function) Name() string {
	return f.module + "." + f.export
}

// Signature returns the declared parameter and result types.
func (f *Function) Signature() Signature {
	return f.sig
}

// NewContext creates an empty execution context.
//
// The returned Context must be closed with Close() when no longer needed.
// If any WasmEdge object cannot be created, the ones already created are
// released before returning the error.
func NewContext(opts ...Option) (*Context, error) {
	o := buildOptions(opts)

	conf := o.newConfigure()
	if conf == nil {
		return nil, fmt.Errorf("failed to create WasmEdge configuration")
	}

	store := wasmedge.NewStore()
	if store == nil {
		conf.Release()
		return nil, fmt.Errorf("failed to create WasmEdge store")
	}

	executor := wasmedge.NewExecutorWithConfig(conf)
	if executor == nil {
		store.Release()
		conf.Release()
		return nil, fmt.Errorf("failed to create WasmEdge executor")
	}

	return &Context{
		conf:      conf,
		store:     store,
		executor:  executor,
		instances: make(map[string]*wasmedge.Module),
		modules:   make(map[string]*Module),
		names:     make(map[*Module]string),
		log:       o.logger,
	}, nil
}

// Register instantiates m into the context under name.
//
// Returns an error if:
// - the context is closed
// - name is empty, or m is nil or closed
// - name is already registered in this context
// - m is already registered in this context under another name
// - WasmEdge fails to instantiate the module (e.g. unresolved imports)
func (c *Context) Register(name string, m *Module) error {
	if c.closed() {
		return newError(StageRegister, KindClosed, name, "context is closed", nil)
	}
	if name == "" {
		return newError(StageRegister, KindInvalidInput, name, "registration name is required", nil)
	}
	if m.closed() {
		return newError(StageRegister, KindInvalidInput, name, "module is nil or closed", nil)
	}
	if _, exists := c.instances[name]; exists {
		return newError(StageRegister, KindNameConflict, name, "name is already registered", nil)
	}
	if prev, exists := c.names[m]; exists {
		return newError(StageRegister, KindNameConflict, name,
			fmt.Sprintf("module is already registered as %q", prev), nil)
	}

	inst, err := c.executor.Register(c.store, m.ast, name)
	if err != nil {
		return newError(StageRegister, KindInstantiation, name, "WasmEdge failed to instantiate module", err)
	}

	c.instances[name] = inst
	c.modules[name] = m
	c.names[m] = name

	c.log.Debug("module registered",
		zap.String("name", name),
		zap.Strings("exports", m.Exports()))
	return nil
}

// Lookup resolves an exported function of a registered module.
//
// Returns an error with Kind "not_found" if either the registration name or
// the export does not exist.
func (c *Context) Lookup(name, export string) (*Function, error) {
	if c.closed() {
		return nil, newError(StageLookup, KindClosed, name, "context is closed", nil)
	}

	inst, ok := c.instances[name]
	if !ok {
		return nil, newError(StageLookup, KindNotFound, name, "no module registered under this name", nil)
	}

	sig, ok := c.modules[name].Signature(export)
	if !ok {
		return nil, newError(StageLookup, KindNotFound, export,
			fmt.Sprintf("module %q has no exported function with this name", name), nil)
	}

	fn := inst.FindFunction(export)
	if fn == nil {
		return nil, newError(StageLookup, KindNotFound, export,
			fmt.Sprintf("WasmEdge found no function export in module %q", name), nil)
	}

	return &Function{
		ctx:    c,
		inst:   fn,
		module: name,
		export: export,
		sig:    sig,
	}, nil
}

// Call invokes fn with args and returns its results in declared order.
//
// Arguments are checked against the signature before the engine is
// touched, so an arity or type mismatch never changes instance state.
// Runtime faults raised by the engine are returned with Kind "trap".
func (c *Context) Call(fn *Function, args ...Value) ([]Value, error) {
	if c.closed() {
		return nil, newError(StageCall, KindClosed, "", "context is closed", nil)
	}
	if fn == nil || fn.ctx != c {
		return nil, newError(StageCall, KindInvalidInput, "", "function does not belong to this context", nil)
	}

	params, err := checkArgs(fn.Name(), fn.sig, args)
	if err != nil {
		return nil, err
	}

	raw, err := c.executor.Invoke(fn.inst, params...)
	if err != nil {
		c.log.Debug("function trapped", zap.String("function", fn.Name()), zap.Error(err))
		return nil, newError(StageCall, KindTrap, fn.Name(), "execution failed", err)
	}

	results, err := convertResults(fn.Name(), fn.sig, raw)
	if err != nil {
		return nil, err
	}

	c.log.Debug("function called",
		zap.String("function", fn.Name()),
		zap.Stringers("args", args),
		zap.Stringers("results", results))
	return results, nil
}

// Modules returns the registration names in this context, sorted.
func (c *Context) Modules() []string {
	names := make([]string, 0, len(c.instances))
	for name := range c.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every registered instance and the WasmEdge store,
// executor and configuration. It's safe to call Close() multiple times;
// after the first call every other method returns a "closed" error.
//
// Modules passed to Register are not closed; they belong to the caller.
func (c *Context) Close() {
	for name, inst := range c.instances {
		inst.Release()
		delete(c.instances, name)
	}
	c.modules = make(map[string]*Module)
	c.names = make(map[*Module]string)

	if c.executor != nil {
		c.executor.Release()
		c.executor = nil
	}
	if c.store != nil {
		c.store.Release()
		c.store = nil
	}
	if c.conf != nil {
		c.conf.Release()
		c.conf = nil
	}
}

func (c *Context) closed() bool {
	return c.executor == nil
}

// checkArgs validates arity and per-position types and converts the
// arguments to the values WasmEdge accepts.
func checkArgs(name string, sig Signature, args []Value) ([]interface{}, error) {
	if len(args) != len(sig.Params) {
		return nil, newError(StageCall, KindArityMismatch, name,
			fmt.Sprintf("expected %d arguments, got %d", len(sig.Params), len(args)), nil)
	}

	params := make([]interface{}, len(args))
	for i, arg := range args {
		if arg.Type() != sig.Params[i] {
			return nil, newError(StageCall, KindTypeMismatch, name,
				fmt.Sprintf("argument %d: expected %s, got %s", i, sig.Params[i], arg.Type()), nil)
		}
		params[i] = arg.toEngine()
	}
	return params, nil
}

// convertResults checks engine results against the declared result types.
func convertResults(name string, sig Signature, raw []interface{}) ([]Value, error) {
	if len(raw) != len(sig.Results) {
		return nil, newError(StageCall, KindTypeMismatch, name,
			fmt.Sprintf("engine returned %d results, signature declares %d", len(raw), len(sig.Results)), nil)
	}

	results := make([]Value, len(raw))
	for i, r := range raw {
		v, ok := fromEngine(r, sig.Results[i])
		if !ok {
			return nil, newError(StageCall, KindTypeMismatch, name,
				fmt.Sprintf("result %d: expected %s, got %T", i, sig.Results[i], r), nil)
		}
		results[i] = v
	}
	return results, nil
}
