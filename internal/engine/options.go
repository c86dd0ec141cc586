package engine

import "github.com/born-ml/ortkit/internal/parallel"

// Options configures an Engine.
type Options struct {
	// StrictTypes checks element types of node inputs and outputs against the
	// operator declarations when a session is created and after every custom
	// kernel runs (default: true).
	StrictTypes bool

	// DefaultAllocator configures the allocator returned by
	// GetAllocatorWithDefaultOptions.
	DefaultAllocator AllocatorConfig

	// ExecutionProviders lists the providers custom operators may ask for.
	// An operator reporting "" runs on the first one.
	ExecutionProviders []string

	// Parallel splits standard operators over large tensors across
	// goroutines. Custom kernels are not affected.
	Parallel parallel.Config
}

// AllocatorConfig bounds an allocator. Zero values mean unbounded.
type AllocatorConfig struct {
	Name string
	// LimitBytes caps the bytes live at any time.
	LimitBytes int
	// MaxLiveBlocks caps the number of blocks live at any time.
	MaxLiveBlocks int
}

// CPUExecutionProvider is the only provider the engine implements.
const CPUExecutionProvider = "CPUExecutionProvider"

// DefaultOptions returns default engine options.
//
// Default configuration:
//   - Strict type checking: enabled
//   - Default allocator: "Cpu", unbounded
//   - Execution providers: CPUExecutionProvider
//   - Parallel standard operators: one worker per CPU
func DefaultOptions() Options {
	return Options{
		StrictTypes:        true,
		DefaultAllocator:   AllocatorConfig{Name: "Cpu"},
		ExecutionProviders: []string{CPUExecutionProvider},
		Parallel:           parallel.DefaultConfig(),
	}
}
