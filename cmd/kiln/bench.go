package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/backend/native"
	"github.com/kiln-ml/kiln/internal/backend/webgpu"
	"github.com/kiln-ml/kiln/internal/pooling"
	"github.com/kiln-ml/kiln/internal/tensor"
)

func benchCmd() *cli.Command {
	var (
		batch    int64
		channels int64
		height   int64
		width    int64
		kernel   int64
		stride   int64
		pad      int64
		poolType string
		engine   string
		iters    int64
		training bool
		global   bool
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Benchmark pooling forward/backward on random input",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "batch", Aliases: []string{"n"}, Usage: "batch size", Value: 8, Destination: &batch},
			&cli.Int64Flag{Name: "channels", Aliases: []string{"c"}, Usage: "channel count", Value: 64, Destination: &channels},
			&cli.Int64Flag{Name: "height", Usage: "input height", Value: 112, Destination: &height},
			&cli.Int64Flag{Name: "width", Usage: "input width", Value: 112, Destination: &width},
			&cli.Int64Flag{Name: "kernel", Aliases: []string{"k"}, Usage: "kernel extent (square)", Value: 3, Destination: &kernel},
			&cli.Int64Flag{Name: "stride", Aliases: []string{"s"}, Usage: "stride (both axes)", Value: 2, Destination: &stride},
			&cli.Int64Flag{Name: "pad", Aliases: []string{"p"}, Usage: "symmetric padding", Value: 1, Destination: &pad},
			&cli.StringFlag{Name: "pool", Usage: "pooling type: max or avg", Value: "max", Destination: &poolType},
			&cli.StringFlag{Name: "engine", Usage: "compute engine: native or webgpu (default from config)", Destination: &engine},
			&cli.Int64Flag{Name: "iters", Usage: "timed iterations", Value: 100, Destination: &iters},
			&cli.BoolFlag{Name: "training", Usage: "include the backward pass", Destination: &training},
			&cli.BoolFlag{Name: "global", Usage: "global pooling (ignores kernel/stride/pad)", Destination: &global},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if engine == "" {
				engine = cfg.Engine
			}

			eng, err := newEngine(engine)
			if err != nil {
				return err
			}

			params, err := benchParams(poolType, int(kernel), int(stride), int(pad), global)
			if err != nil {
				return err
			}

			shape := tensor.Shape{int(batch), int(channels), int(height), int(width)}
			return runBench(eng, params, shape, int(iters), training)
		},
	}
}

func newEngine(name string) (backend.Engine, error) {
	switch name {
	case "native":
		return native.New(), nil
	case "webgpu":
		return webgpu.New()
	default:
		return nil, fmt.Errorf("unknown engine %q (want native or webgpu)", name)
	}
}

func benchParams(poolType string, kernel, stride, pad int, global bool) (pooling.Params, error) {
	var pt pooling.PoolType
	switch poolType {
	case "max":
		pt = pooling.Max
	case "avg":
		pt = pooling.Avg
	default:
		return pooling.Params{}, fmt.Errorf("unknown pool type %q (want max or avg)", poolType)
	}

	params := pooling.NewParams(pt, [2]int{kernel, kernel}, [2]int{stride, stride}, [2]int{pad, pad})
	params.GlobalPool = global
	return params, nil
}

func runBench(eng backend.Engine, params pooling.Params, shape tensor.Shape, iters int, training bool) error {
	outShape, err := pooling.OutputShape(params, shape)
	if err != nil {
		return err
	}

	input, err := tensor.NewRaw(shape, tensor.Float32, eng.Device())
	if err != nil {
		return err
	}
	defer input.Release()
	rng := rand.New(rand.NewSource(42))
	data := input.AsFloat32()
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}

	output, err := tensor.NewRaw(outShape, tensor.Float32, eng.Device())
	if err != nil {
		return err
	}
	defer output.Release()

	ctx := pooling.NewOpContext(eng, training)

	var workspace *tensor.RawTensor
	if pooling.RequiresWorkspace(params, training) {
		workspace, err = tensor.NewRaw(outShape, tensor.Int32, eng.Device())
		if err != nil {
			return err
		}
		defer workspace.Release()
	}

	var outputGrad, inputGrad *tensor.RawTensor
	if training {
		outputGrad, err = tensor.NewRaw(outShape, tensor.Float32, eng.Device())
		if err != nil {
			return err
		}
		defer outputGrad.Release()
		og := outputGrad.AsFloat32()
		for i := range og {
			og[i] = 1
		}

		inputGrad, err = tensor.NewRaw(shape, tensor.Float32, eng.Device())
		if err != nil {
			return err
		}
		defer inputGrad.Release()
	}

	step := func() error {
		if err := pooling.Forward(ctx, params, input, pooling.WriteTo, output, workspace); err != nil {
			return err
		}
		if training {
			return pooling.Backward(ctx, params, outputGrad, input, workspace, pooling.WriteTo, inputGrad)
		}
		return nil
	}

	// Warmup compiles and caches the plans.
	if err := step(); err != nil {
		return err
	}

	start := time.Now()
	for i := 0; i < iters; i++ {
		if err := step(); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	perIter := elapsed / time.Duration(iters)
	elems := int64(shape.NumElements()) * int64(iters)
	rate := float64(elems) / elapsed.Seconds()

	fmt.Printf("engine:      %s\n", eng.Name())
	fmt.Printf("pool:        %s %v/%v pad %v (training=%v)\n",
		params.Type, params.Kernel, params.Stride, params.Pad, training)
	fmt.Printf("input:       %v (%s)\n", shape, humanize.Bytes(uint64(input.ByteSize())))
	fmt.Printf("output:      %v (%s)\n", outShape, humanize.Bytes(uint64(output.ByteSize())))
	fmt.Printf("iterations:  %s in %v (%v/iter)\n", humanize.Comma(int64(iters)), elapsed.Round(time.Millisecond), perIter.Round(time.Microsecond))
	fmt.Printf("throughput:  %s elements/s\n", humanize.CommafWithDigits(rate, 0))
	return nil
}
