package runtime_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mrhapile/wasmcall/runtime"
)

var _ = Describe("Logging", func() {
	var (
		fibWasm []byte
		logs    *observer.ObservedLogs
		log     *zap.Logger
	)

	BeforeEach(func() {
		var err error
		fibWasm, err = runtime.Convert(fixture("fib.wat"))
		Expect(err).NotTo(HaveOccurred())

		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		log = zap.New(core)
	})

	AfterEach(func() {
		runtime.SetLogger(nil)
	})

	It("should be a no-op logger by default", func() {
		Expect(runtime.Logger()).NotTo(BeNil())
		Expect(runtime.Logger().Core().Enabled(zapcore.ErrorLevel)).To(BeFalse())
	})

	It("should log loading through the package logger", func() {
		runtime.SetLogger(log)

		mod, err := runtime.Load(fibWasm)
		Expect(err).NotTo(HaveOccurred())
		defer mod.Close()

		loaded := logs.FilterMessage("module loaded").All()
		Expect(loaded).To(HaveLen(1))
		Expect(loaded[0].ContextMap()).To(HaveKeyWithValue("exports", int64(1)))
	})

	It("should log context calls through WithLogger", func() {
		mod, err := runtime.Load(fibWasm)
		Expect(err).NotTo(HaveOccurred())
		defer mod.Close()

		ctx, err := runtime.NewContext(runtime.WithLogger(log))
		Expect(err).NotTo(HaveOccurred())
		defer ctx.Close()

		Expect(ctx.Register("fib", mod)).To(Succeed())
		fn, err := ctx.Lookup("fib", "fib")
		Expect(err).NotTo(HaveOccurred())
		_, err = ctx.Call(fn, runtime.ValueI32(5))
		Expect(err).NotTo(HaveOccurred())

		Expect(logs.FilterMessage("module registered").Len()).To(Equal(1))
		called := logs.FilterMessage("function called").All()
		Expect(called).To(HaveLen(1))
		Expect(called[0].ContextMap()).To(HaveKeyWithValue("function", "fib.fib"))
	})

	It("should log runner traps through WithLogger", func() {
		_, err := runtime.NewRunner(runtime.WithLogger(log)).Run(fibWasm, "fib")
		Expect(err).To(MatchError(runtime.ErrArityMismatch))
		Expect(logs.Len()).To(Equal(0))

		mixed, err := runtime.Convert(fixture("mixed.wat"))
		Expect(err).NotTo(HaveOccurred())
		_, err = runtime.NewRunner(runtime.WithLogger(log)).Run(mixed, "crash", runtime.ValueI32(0))
		Expect(err).To(MatchError(runtime.ErrTrap))
		Expect(logs.FilterMessage("function trapped").Len()).To(Equal(1))
	})

	It("should restore the no-op logger on nil", func() {
		runtime.SetLogger(log)
		runtime.SetLogger(nil)
		Expect(runtime.Logger().Core().Enabled(zapcore.ErrorLevel)).To(BeFalse())
	})
})
