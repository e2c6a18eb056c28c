package runtime_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mrhapile/wasmcall/runtime"
)

// callManually runs export through a single-use Context.
func callManually(wasmBytes []byte, export string, args ...runtime.Value) ([]runtime.Value, error) {
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

	if err := ctx.Register("extern", mod); err != nil {
		return nil, err
	}
	fn, err := ctx.Lookup("extern", export)
	if err != nil {
		return nil, err
	}
	return ctx.Call(fn, args...)
}

var _ = Describe("Runner", func() {
	var (
		fibWasm   []byte
		mixedWasm []byte
	)

	BeforeEach(func() {
		var err error
		fibWasm, err = runtime.Convert(fixture("fib.wat"))
		Expect(err).NotTo(HaveOccurred())
		mixedWasm, err = runtime.Convert(fixture("mixed.wat"))
		Expect(err).NotTo(HaveOccurred())
	})

	DescribeTable("Run fib",
		func(n, want int32) {
			results, err := runtime.Run(fibWasm, "fib", runtime.ValueI32(n))

			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(Equal([]runtime.Value{runtime.ValueI32(want)}))
		},
		Entry("n = 0", int32(0), int32(1)),
		Entry("n = 1", int32(1), int32(1)),
		Entry("n = 10", int32(10), int32(89)),
	)

	It("should run straight from module text", func() {
		results, err := runtime.RunText(fixture("fib.wat"), "fib", runtime.ValueI32(10))

		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].I32()).To(Equal(int32(89)))
	})

	It("should run the legacy fib text on both paths", func() {
		results, err := runtime.RunText(fixture("fib_legacy.wat"), "fib", runtime.ValueI32(10))
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(Equal([]runtime.Value{runtime.ValueI32(89)}))

		legacyWasm, err := runtime.Convert(fixture("fib_legacy.wat"))
		Expect(err).NotTo(HaveOccurred())
		manual, err := callManually(legacyWasm, "fib", runtime.ValueI32(10))
		Expect(err).NotTo(HaveOccurred())
		Expect(manual).To(Equal(results))
	})

	It("should start every run from fresh state", func() {
		for i := 0; i < 3; i++ {
			results, err := runtime.Run(mixedWasm, "bump")
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].I32()).To(Equal(int32(1)))
		}
	})

	// =========================================================================
	// TEST: Equivalence of the two call paths
	// Why: Run is a convenience composition; it must return exactly what the
	//      manual load/register/lookup/call sequence returns.
	// =========================================================================
	Describe("equivalence with the manual path", func() {
		type call struct {
			wasm   func() []byte
			export string
			args   []runtime.Value
		}

		DescribeTable("should return identical results",
			func(c call) {
				viaRunner, err := runtime.Run(c.wasm(), c.export, c.args...)
				Expect(err).NotTo(HaveOccurred())

				viaContext, err := callManually(c.wasm(), c.export, c.args...)
				Expect(err).NotTo(HaveOccurred())

				Expect(viaRunner).To(Equal(viaContext))
			},
			Entry("fib(10)", call{func() []byte { return fibWasm }, "fib", []runtime.Value{runtime.ValueI32(10)}}),
			Entry("fib(0)", call{func() []byte { return fibWasm }, "fib", []runtime.Value{runtime.ValueI32(0)}}),
			Entry("add64", call{func() []byte { return mixedWasm }, "add64", []runtime.Value{runtime.ValueI64(-3), runtime.ValueI64(5)}}),
			Entry("scale", call{func() []byte { return mixedWasm }, "scale", []runtime.Value{runtime.ValueF32(0.25), runtime.ValueF64(8)}}),
			Entry("swap", call{func() []byte { return mixedWasm }, "swap", []runtime.Value{runtime.ValueI32(1), runtime.ValueI64(2)}}),
		)

		DescribeTable("should fail with the same stage and kind",
			func(c call, kind error) {
				_, runErr := runtime.Run(c.wasm(), c.export, c.args...)
				_, ctxErr := callManually(c.wasm(), c.export, c.args...)

				Expect(errors.Is(runErr, kind)).To(BeTrue())
				Expect(errors.Is(ctxErr, kind)).To(BeTrue())

				var a, b *runtime.Error
				Expect(errors.As(runErr, &a)).To(BeTrue())
				Expect(errors.As(ctxErr, &b)).To(BeTrue())
				Expect(a.Stage).To(Equal(b.Stage))
			},
			Entry("missing export", call{func() []byte { return fibWasm }, "nope", nil}, runtime.ErrNotFound),
			Entry("arity", call{func() []byte { return fibWasm }, "fib", nil}, runtime.ErrArityMismatch),
			Entry("type", call{func() []byte { return fibWasm }, "fib", []runtime.Value{runtime.ValueI64(10)}}, runtime.ErrTypeMismatch),
			Entry("trap", call{func() []byte { return mixedWasm }, "crash", []runtime.Value{runtime.ValueI32(0)}}, runtime.ErrTrap),
			Entry("malformed", call{func() []byte { return []byte("garbage") }, "fib", nil}, runtime.ErrMalformed),
		)
	})

	Describe("NewRunner", func() {
		It("should honor options", func() {
			r := runtime.NewRunner(runtime.WithMaxMemoryPages(16))

			results, err := r.Run(fibWasm, "fib", runtime.ValueI32(10))

			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].I32()).To(Equal(int32(89)))
		})
	})
})
