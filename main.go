package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mrhapile/wasmcall/runtime"
)

const usage = `usage: wasmcall [-manual] [-v] <file.wasm|file.wat> <export> [type:value ...]

Calls an exported function and prints one typed result per line.
Arguments are written as i32:10, i64:-1, f32:1.5, f64:2.25; a bare
integer is an i32.
`

func main() {
	manual := flag.Bool("manual", false, "use Load/Register/Lookup/Call instead of the one-shot runner")
	verbose := flag.Bool("v", false, "log every step to stderr")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}
	path, export := flag.Arg(0), flag.Arg(1)

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		runtime.SetLogger(log)
	}

	// Step 1: Parse the typed arguments
	args, err := runtime.ParseValues(flag.Args()[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(2)
	}

	// Step 2: Call the export on the chosen path
	var results []runtime.Value
	if *manual {
		results, err = callManual(path, export, args)
	} else {
		results, err = callRunner(path, export, args)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Step 3: Print results in declared order
	for _, v := range results {
		fmt.Println(v)
	}
}

func callRunner(path, export string, args []runtime.Value) ([]runtime.Value, error) {
	wasmBytes, err := runtime.ReadModuleFile(path)
	if err != nil {
		return nil, err
	}
	return runtime.Run(wasmBytes, export, args...)
}

func callManual(path, export string, args []runtime.Value) ([]runtime.Value, error) {
	mod, err := runtime.LoadFile(path)
	if err != nil {
		return nil, err
	}
	defer mod.Close()

	ctx, err := runtime.NewContext()
	if err != nil {
		return nil, err
	}
	defer ctx.Close()

	if err := ctx.Register("main", mod); err != nil {
		return nil, err
	}
	fn, err := ctx.Lookup("main", export)
	if err != nil {
		return nil, err
	}
	return ctx.Call(fn, args...)
}
