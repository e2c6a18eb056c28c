package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mrhapile/wasmcall/runtime"
)

// fibSource is the recursive Fibonacci module in the legacy text form:
// get_local and a folded if without a then clause.
const fibSource = `
(module
  (export "fib" (func $fib))
  (func $fib (param $n i32) (result i32)
    (if
      (i32.lt_s (get_local $n) (i32.const 2))
      (return (i32.const 1)))
    (return
      (i32.add
        (call $fib (i32.sub (get_local $n) (i32.const 2)))
        (call $fib (i32.sub (get_local $n) (i32.const 1)))))))
`

func main() {
	n := flag.Int("n", 10, "argument passed to fib")
	path := flag.String("path", "vm", "call path: vm (one-shot Run) or store (Context)")
	flag.Parse()

	// Convert the text module to binary once; both paths share the bytes
	wasmBytes, err := runtime.Convert(fibSource)
	if err != nil {
		fmt.Printf("Error converting module: %v\n", err)
		os.Exit(1)
	}

	arg := runtime.ValueI32(int32(*n))

	var results []runtime.Value
	switch *path {
	case "vm":
		results, err = runtime.Run(wasmBytes, "fib", arg)
	case "store":
		results, err = callWithContext(wasmBytes, arg)
	default:
		fmt.Printf("Error: unknown path %q (want vm or store)\n", *path)
		os.Exit(2)
	}
	if err != nil {
		fmt.Printf("Error calling fib: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(results[0].I32())
}

// callWithContext walks the manual path: load, register, look up, call.
func callWithContext(wasmBytes []byte, arg runtime.Value) ([]runtime.Value, error) {
	mod, err := runtime.Load(wasmBytes)
	if err != nil {
		return nil, err
	}
	defer mod.Close()

	ctx, err := runtime.NewContext()
	if err != nil {
		return nil, err
	}
	defer ctx.Close()

	if err := ctx.Register("fib", mod); err != nil {
		return nil, err
	}

	fn, err := ctx.Lookup("fib", "fib")
	if err != nil {
		return nil, err
	}
	return ctx.Call(fn, arg)
}
