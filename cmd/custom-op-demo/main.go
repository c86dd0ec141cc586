// Package main provides the custom-op-demo CLI.
//
// It registers two custom operators, runs the custom_op_test graph on random
// inputs through the reference engine and checks the output:
//
//	custom-op-demo                         # build the model in memory
//	custom-op-demo --model custom_op_test.onnx
//	custom-op-demo --write-model custom_op_test.onnx --seed 42
//	custom-op-demo inspect custom_op_test.onnx
package main

import (
	"errors"
	goflag "flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/ortkit/engine"
	"github.com/born-ml/ortkit/internal/demo"
	"github.com/born-ml/ortkit/onnx"
	"github.com/born-ml/ortkit/ort"
)

const version = "v0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	defer klog.Flush()
	code := 0
	root := newRootCmd(stdout, stderr, &code)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return code
}

func newRootCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	cfg := demo.DefaultConfig()
	opts := engine.DefaultOptions()

	root := &cobra.Command{
		Use:           "custom-op-demo",
		Short:         "Run a graph of custom operators and check its output",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			*code = runDemo(stdout, stderr, cfg, opts)
			return nil
		},
	}

	root.Flags().StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "ONNX model to load (default: build the model in memory)")
	root.Flags().StringVar(&cfg.WriteModel, "write-model", cfg.WriteModel, "save the in-memory model to this path before running it")
	root.Flags().StringVar(&cfg.Domain, "domain", cfg.Domain, "custom operator domain")
	root.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "input generator seed (0: from the clock)")
	root.Flags().Int64Var(&cfg.Rows, "rows", cfg.Rows, "input rows")
	root.Flags().Int64Var(&cfg.Cols, "cols", cfg.Cols, "input columns")
	root.Flags().IntVar(&opts.DefaultAllocator.LimitBytes, "allocator-limit", 0, "byte limit of the default allocator (0: unbounded)")

	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(newInspectCmd(stdout), newVersionCmd(stdout))
	return root
}

// runDemo runs the demo and reports the outcome the way the exit code does.
func runDemo(stdout, stderr io.Writer, cfg demo.Config, opts engine.Options) int {
	eng := engine.New(opts)
	defer func() {
		if err := eng.Close(); err != nil {
			klog.Warningf("engine: %v", err)
		}
	}()

	res, err := demo.Run(eng, cfg, nil)
	var status *ort.Status
	switch {
	case err == nil:
		klog.V(1).Infof("seed %d: output %v", res.Seed, res.Output)
		fmt.Fprintln(stdout, "success!")
		return 0
	case errors.Is(err, demo.ErrMismatch):
		klog.Errorf("seed %d: %v", res.Seed, err)
		fmt.Fprintln(stderr, demo.ErrMismatch)
		return 1
	case errors.As(err, &status):
		fmt.Fprintf(stderr, "ORT error: %s\n", status.Message)
		return 1
	default:
		fmt.Fprintln(stderr, err)
		return 1
	}
}

func newInspectCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect MODEL",
		Short: "Show the inputs, outputs and operators of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			info, err := onnx.GetModelInfo(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Producer:  %s %s\n", info.ProducerName, info.ProducerVersion)
			fmt.Fprintf(stdout, "IR:        %d\n", info.IRVersion)
			fmt.Fprintf(stdout, "Opset:     %d\n", info.OpsetVersion)
			fmt.Fprintf(stdout, "Inputs:    %s\n", strings.Join(info.InputNames, ", "))
			fmt.Fprintf(stdout, "Outputs:   %s\n", strings.Join(info.OutputNames, ", "))
			fmt.Fprintf(stdout, "Nodes:     %d\n", info.NodeCount)
			fmt.Fprintf(stdout, "Operators: %s\n", strings.Join(info.Operators, ", "))
			if missing := onnx.UnsupportedOps(info); len(missing) > 0 {
				fmt.Fprintf(stdout, "Custom:    %s\n", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(stdout, "custom-op-demo %s\n", version)
		},
	}
}
