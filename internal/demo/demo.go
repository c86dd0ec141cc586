// Package demo runs a two node custom operator graph through an engine and
// checks the result: output = round(x + y) on random float inputs.
package demo

import (
	"math"
	"math/rand/v2"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/ortkit/customop"
	"github.com/born-ml/ortkit/internal/kernels"
	"github.com/born-ml/ortkit/internal/onnx"
	"github.com/born-ml/ortkit/ort"
)

// ErrMismatch is returned when the engine's output differs from the
// expected values.
var ErrMismatch = errors.New("output tensor does not match expectations")

// Result holds the data of one run.
type Result struct {
	Seed     uint64
	X, Y     []float32
	Output   []int32
	Expected []int32
}

// Descriptors returns the demo's operators: a float add and a float to int32
// round.
func Descriptors() []customop.Descriptor {
	return []customop.Descriptor{
		kernels.AddDescriptor(AddOp),
		kernels.RoundDescriptor(RoundOp),
	}
}

// Run registers descs (Descriptors when nil) in cfg.Domain, creates a session
// for the demo model and runs it on random inputs. An invalid cfg fails with
// ErrInvalidConfig before any engine call. It returns ErrMismatch,
// along with the result, when the output is not round(x + y).
//
//nolint:gocyclo // Run mirrors the engine call sequence one step at a time.
func Run(api ort.API, cfg Config, descs []customop.Descriptor) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if descs == nil {
		descs = Descriptors()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	klog.V(1).Infof("demo: seed %d, shape %dx%d", seed, cfg.Rows, cfg.Cols)

	env, err := api.CreateEnv(ort.LoggingLevelWarning, "custom-op-demo")
	if err != nil {
		return nil, err
	}
	defer api.ReleaseEnv(env)

	reg, err := customop.RegisterAll(api, 0, cfg.Domain, descs)
	defer func() {
		if err := reg.Close(); err != nil {
			klog.Errorf("demo: releasing operators: %v", err)
		}
	}()
	if err != nil {
		return nil, err
	}

	options, err := api.CreateSessionOptions()
	if err != nil {
		return nil, err
	}
	defer api.ReleaseSessionOptions(options)
	if err := api.AddCustomOpDomain(options, reg.Domain); err != nil {
		return nil, err
	}

	session, err := createSession(api, env, options, cfg)
	if err != nil {
		return nil, err
	}
	defer api.ReleaseSession(session)

	memoryInfo, err := api.CreateCPUMemoryInfo(ort.ArenaAllocator, ort.MemTypeDefault)
	if err != nil {
		return nil, err
	}
	defer api.ReleaseMemoryInfo(memoryInfo)

	n := int(cfg.Rows * cfg.Cols)
	shape := []int64{cfg.Rows, cfg.Cols}
	res := &Result{
		Seed:     seed,
		X:        make([]float32, n),
		Y:        make([]float32, n),
		Output:   make([]int32, n),
		Expected: make([]int32, n),
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	randomFill(rng, res.X)
	randomFill(rng, res.Y)
	for i := range res.Expected {
		res.Expected[i] = int32(math.Round(float64(res.X[i] + res.Y[i])))
	}

	x, err := api.CreateTensorWithDataAsValue(memoryInfo, bytesOf(res.X), shape, ort.Float)
	if err != nil {
		return nil, err
	}
	defer api.ReleaseValue(x)
	y, err := api.CreateTensorWithDataAsValue(memoryInfo, bytesOf(res.Y), shape, ort.Float)
	if err != nil {
		return nil, err
	}
	defer api.ReleaseValue(y)
	out, err := api.CreateTensorWithDataAsValue(memoryInfo, bytesOf(res.Output), shape, ort.Int32)
	if err != nil {
		return nil, err
	}
	defer api.ReleaseValue(out)

	err = api.Run(session, 0, []string{InputX, InputY}, []ort.Value{x, y}, []string{Output}, []ort.Value{out})
	if err != nil {
		return nil, err
	}

	for i := range res.Output {
		if res.Output[i] != res.Expected[i] {
			return res, errors.WithMessagef(ErrMismatch, "element %d: got %d, want %d", i, res.Output[i], res.Expected[i])
		}
	}
	return res, nil
}

func createSession(api ort.API, env ort.Env, options ort.SessionOptions, cfg Config) (ort.Session, error) {
	if cfg.ModelPath != "" {
		return api.CreateSession(env, cfg.ModelPath, options)
	}
	model := Model(cfg.Domain, cfg.Rows, cfg.Cols)
	if cfg.WriteModel != "" {
		if err := onnx.WriteFile(cfg.WriteModel, model); err != nil {
			return 0, err
		}
		klog.V(1).Infof("demo: wrote model to %s", cfg.WriteModel)
	}
	return api.CreateSessionFromArray(env, onnx.Marshal(model), options)
}

// randomFill fills buf with values in [0, 1).
func randomFill(rng *rand.Rand, buf []float32) {
	for i := range buf {
		buf[i] = rng.Float32()
	}
}

// bytesOf returns the memory of s as bytes without copying.
func bytesOf[T int32 | float32](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	//nolint:gosec // reinterpret the slice's memory, 4-byte elements
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*4)
}
