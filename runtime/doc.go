// Package runtime embeds the WasmEdge virtual machine to call exported
// WebAssembly functions with typed arguments.
//
// Two call paths are provided and return identical results:
//
//	// One-shot: fresh VM per call
//	results, err := runtime.RunText(source, "fib", runtime.ValueI32(10))
//
//	// Manual: load, register, lookup, call
//	wasmBytes, err := runtime.Convert(source)
//	mod, err := runtime.Load(wasmBytes)
//	defer mod.Close()
//	ctx, err := runtime.NewContext()
//	defer ctx.Close()
//	err = ctx.Register("extern", mod)
//	fn, err := ctx.Lookup("extern", "fib")
//	results, err := ctx.Call(fn, runtime.ValueI32(10))
//
// Every failure is an *Error naming the stage (convert, load, register,
// lookup, call) and kind. Use errors.Is with the Err* sentinels to test
// the kind.
package runtime
