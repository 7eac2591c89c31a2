package native

import (
	"testing"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

func desc4(shape tensor.Shape, dtype tensor.DataType) tensor.Descriptor {
	d := tensor.Descriptor{
		Rank:   len(shape),
		DType:  dtype,
		Layout: tensor.LayoutCanonical,
		Device: tensor.CPU,
	}
	copy(d.Dims[:], shape)
	return d
}

func poolDesc(alg backend.Algorithm, kind backend.PropKind, in, out tensor.Shape,
	kernel, stride, padLow, padHigh [2]int) backend.PoolingDescriptor {
	return backend.PoolingDescriptor{
		Alg:     alg,
		Kind:    kind,
		Kernel:  kernel,
		Stride:  stride,
		PadLow:  padLow,
		PadHigh: padHigh,
		Src:     desc4(in, tensor.Float32),
		Dst:     desc4(out, tensor.Float32),
	}
}

func newFilled(t *testing.T, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	copy(r.AsFloat32(), values)
	return r
}

func TestEngine_New(t *testing.T) {
	eng := New()
	if eng == nil {
		t.Fatal("New() returned nil")
	}
	if eng.Name() != "native" {
		t.Errorf("Expected name 'native', got '%s'", eng.Name())
	}
	if eng.Device() != tensor.CPU {
		t.Errorf("Expected device CPU, got %v", eng.Device())
	}
}

func TestAxisSpans_Clamping(t *testing.T) {
	// extent 5, kernel 2, stride 2, padLow 0, output extent 3 (one trailing pad).
	spans := axisSpans(3, 5, 2, 2, 0)
	want := []span{{0, 2}, {2, 4}, {4, 5}}
	for i, s := range spans {
		if s != want[i] {
			t.Errorf("span[%d]: expected %v, got %v", i, want[i], s)
		}
	}

	// Leading padding clamps the first window's start to 0.
	spans = axisSpans(2, 3, 2, 2, 1)
	want = []span{{0, 1}, {1, 3}}
	for i, s := range spans {
		if s != want[i] {
			t.Errorf("padded span[%d]: expected %v, got %v", i, want[i], s)
		}
	}
}

func TestValidateDescriptor_Errors(t *testing.T) {
	good := poolDesc(backend.AlgMax, backend.Inference,
		tensor.Shape{1, 2, 4, 4}, tensor.Shape{1, 2, 2, 2},
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	if err := validateDescriptor(good); err != nil {
		t.Fatalf("valid descriptor rejected: %v", err)
	}

	bad := good
	bad.Dst.Dims[2] = 3
	if err := validateDescriptor(bad); err == nil {
		t.Error("expected error for inconsistent dst extent")
	}

	bad = good
	bad.Src.Rank = 3
	if err := validateDescriptor(bad); err == nil {
		t.Error("expected error for non-4D src")
	}

	bad = good
	bad.Dst.DType = tensor.Float64
	if err := validateDescriptor(bad); err == nil {
		t.Error("expected error for dtype mismatch")
	}

	bad = good
	bad.Src.Layout = tensor.LayoutBlocked8c
	if err := validateDescriptor(bad); err == nil {
		t.Error("expected error for non-canonical layout")
	}

	bad = good
	bad.Dst.Dims[1] = 3
	if err := validateDescriptor(bad); err == nil {
		t.Error("expected error for channel mismatch")
	}
}

func TestForwardPlan_Workspace(t *testing.T) {
	eng := New()

	desc := poolDesc(backend.AlgMax, backend.Training,
		tensor.Shape{1, 2, 4, 4}, tensor.Shape{1, 2, 2, 2},
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	plan, err := eng.CompilePoolingForward(desc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}

	wsDesc, required := plan.WorkspaceDescriptor()
	if !required {
		t.Fatal("training max plan should require a workspace")
	}
	if wsDesc.DType != tensor.Int32 {
		t.Errorf("workspace dtype: expected int32, got %s", wsDesc.DType)
	}
	if wsDesc.Dims != desc.Dst.Dims {
		t.Errorf("workspace dims: expected %v, got %v", desc.Dst.Dims, wsDesc.Dims)
	}

	// Inference max and any avg need no workspace.
	desc.Kind = backend.Inference
	plan, err = eng.CompilePoolingForward(desc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}
	if _, required := plan.WorkspaceDescriptor(); required {
		t.Error("inference max plan should not require a workspace")
	}
}

func TestRun_MaxForward(t *testing.T) {
	eng := New()

	desc := poolDesc(backend.AlgMax, backend.Training,
		tensor.Shape{1, 1, 4, 4}, tensor.Shape{1, 1, 2, 2},
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	plan, err := eng.CompilePoolingForward(desc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}

	src := newFilled(t, tensor.Shape{1, 1, 4, 4}, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})
	dst, _ := tensor.NewRaw(tensor.Shape{1, 1, 2, 2}, tensor.Float32, tensor.CPU)
	ws, _ := tensor.NewRaw(tensor.Shape{1, 1, 2, 2}, tensor.Int32, tensor.CPU)

	if err := eng.Run(plan, backend.Args{Src: src, Dst: dst, Workspace: ws}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantDst := []float32{6, 8, 14, 16}
	for i, v := range dst.AsFloat32() {
		if v != wantDst[i] {
			t.Errorf("dst[%d]: expected %v, got %v", i, wantDst[i], v)
		}
	}
	wantWs := []int32{5, 7, 13, 15}
	for i, v := range ws.AsInt32() {
		if v != wantWs[i] {
			t.Errorf("ws[%d]: expected %v, got %v", i, wantWs[i], v)
		}
	}
}

// TestRun_MaxForward_NegativeInput checks the max reduction on all-negative
// input: the initial sentinel must never leak into the output.
func TestRun_MaxForward_NegativeInput(t *testing.T) {
	eng := New()

	desc := poolDesc(backend.AlgMax, backend.Inference,
		tensor.Shape{1, 1, 2, 2}, tensor.Shape{1, 1, 1, 1},
		[2]int{2, 2}, [2]int{1, 1}, [2]int{0, 0}, [2]int{0, 0})
	plan, err := eng.CompilePoolingForward(desc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}

	src := newFilled(t, tensor.Shape{1, 1, 2, 2}, []float32{-5, -3, -9, -7})
	dst, _ := tensor.NewRaw(tensor.Shape{1, 1, 1, 1}, tensor.Float32, tensor.CPU)

	if err := eng.Run(plan, backend.Args{Src: src, Dst: dst}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := dst.AsFloat32()[0]; got != -3 {
		t.Errorf("expected -3, got %v", got)
	}
}

// TestRun_MaxForward_TieBreaksFirst verifies the first window element wins a
// tie, keeping the backward routing deterministic.
func TestRun_MaxForward_TieBreaksFirst(t *testing.T) {
	eng := New()

	desc := poolDesc(backend.AlgMax, backend.Training,
		tensor.Shape{1, 1, 2, 2}, tensor.Shape{1, 1, 1, 1},
		[2]int{2, 2}, [2]int{1, 1}, [2]int{0, 0}, [2]int{0, 0})
	plan, err := eng.CompilePoolingForward(desc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}

	src := newFilled(t, tensor.Shape{1, 1, 2, 2}, []float32{7, 7, 7, 7})
	dst, _ := tensor.NewRaw(tensor.Shape{1, 1, 1, 1}, tensor.Float32, tensor.CPU)
	ws, _ := tensor.NewRaw(tensor.Shape{1, 1, 1, 1}, tensor.Int32, tensor.CPU)

	if err := eng.Run(plan, backend.Args{Src: src, Dst: dst, Workspace: ws}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := ws.AsInt32()[0]; got != 0 {
		t.Errorf("tie should keep the first position, got index %d", got)
	}
}

func TestRun_AvgForward_Padded(t *testing.T) {
	eng := New()

	// 3x3 input, 2x2 kernel, stride 2, symmetric pad 1 -> 2x2 output.
	src := newFilled(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	dst, _ := tensor.NewRaw(tensor.Shape{1, 1, 2, 2}, tensor.Float32, tensor.CPU)

	for _, tt := range []struct {
		alg  backend.Algorithm
		want []float32
	}{
		{backend.AlgAvgIncludePadding, []float32{0.25, 1.25, 2.75, 7}},
		{backend.AlgAvgExcludePadding, []float32{1, 2.5, 5.5, 7}},
	} {
		desc := poolDesc(tt.alg, backend.Inference,
			tensor.Shape{1, 1, 3, 3}, tensor.Shape{1, 1, 2, 2},
			[2]int{2, 2}, [2]int{2, 2}, [2]int{1, 1}, [2]int{0, 0})
		plan, err := eng.CompilePoolingForward(desc)
		if err != nil {
			t.Fatalf("%s: CompilePoolingForward failed: %v", tt.alg, err)
		}
		if err := eng.Run(plan, backend.Args{Src: src, Dst: dst}); err != nil {
			t.Fatalf("%s: Run failed: %v", tt.alg, err)
		}
		for i, v := range dst.AsFloat32() {
			if v != tt.want[i] {
				t.Errorf("%s dst[%d]: expected %v, got %v", tt.alg, i, tt.want[i], v)
			}
		}
	}
}

func TestRun_MaxBackward(t *testing.T) {
	eng := New()

	fwdDesc := poolDesc(backend.AlgMax, backend.Training,
		tensor.Shape{1, 1, 4, 4}, tensor.Shape{1, 1, 2, 2},
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	fwdPlan, err := eng.CompilePoolingForward(fwdDesc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}
	bwdPlan, err := eng.CompilePoolingBackward(fwdDesc, fwdPlan)
	if err != nil {
		t.Fatalf("CompilePoolingBackward failed: %v", err)
	}

	ws, _ := tensor.NewRaw(tensor.Shape{1, 1, 2, 2}, tensor.Int32, tensor.CPU)
	copy(ws.AsInt32(), []int32{5, 7, 13, 15})

	diffDst := newFilled(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	diffSrc, _ := tensor.NewRaw(tensor.Shape{1, 1, 4, 4}, tensor.Float32, tensor.CPU)
	// Preexisting garbage must be overwritten, not accumulated into.
	diffSrc.AsFloat32()[0] = 99

	if err := eng.Run(bwdPlan, backend.Args{DiffSrc: diffSrc, DiffDst: diffDst, Workspace: ws}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := make([]float32, 16)
	want[5], want[7], want[13], want[15] = 1, 2, 3, 4
	for i, v := range diffSrc.AsFloat32() {
		if v != want[i] {
			t.Errorf("diffSrc[%d]: expected %v, got %v", i, want[i], v)
		}
	}
}

func TestRun_AvgBackward(t *testing.T) {
	eng := New()

	fwdDesc := poolDesc(backend.AlgAvgIncludePadding, backend.Inference,
		tensor.Shape{1, 1, 4, 4}, tensor.Shape{1, 1, 2, 2},
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	fwdPlan, err := eng.CompilePoolingForward(fwdDesc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}
	bwdPlan, err := eng.CompilePoolingBackward(fwdDesc, fwdPlan)
	if err != nil {
		t.Fatalf("CompilePoolingBackward failed: %v", err)
	}
	if _, required := bwdPlan.WorkspaceDescriptor(); required {
		t.Fatal("avg backward plan should not require a workspace")
	}

	diffDst := newFilled(t, tensor.Shape{1, 1, 2, 2}, []float32{4, 8, 12, 16})
	diffSrc, _ := tensor.NewRaw(tensor.Shape{1, 1, 4, 4}, tensor.Float32, tensor.CPU)

	if err := eng.Run(bwdPlan, backend.Args{DiffSrc: diffSrc, DiffDst: diffDst}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	for i, v := range diffSrc.AsFloat32() {
		if v != want[i] {
			t.Errorf("diffSrc[%d]: expected %v, got %v", i, want[i], v)
		}
	}
}

// TestRun_BackwardReusesForwardSpans checks that a backward plan built with
// a matching forward hint shares the forward plan's precomputed spans.
func TestRun_BackwardReusesForwardSpans(t *testing.T) {
	eng := New()

	desc := poolDesc(backend.AlgMax, backend.Training,
		tensor.Shape{1, 1, 5, 5}, tensor.Shape{1, 1, 3, 3},
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{1, 1})
	fwdPlan, err := eng.CompilePoolingForward(desc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}
	bwdPlan, err := eng.CompilePoolingBackward(desc, fwdPlan)
	if err != nil {
		t.Fatalf("CompilePoolingBackward failed: %v", err)
	}

	fp := fwdPlan.(*forwardPlan)
	bp := bwdPlan.(*backwardPlan)
	if &fp.rows[0] != &bp.rows[0] || &fp.cols[0] != &bp.cols[0] {
		t.Error("backward plan should reuse the forward hint's spans")
	}
}

func TestRun_BufferMismatch(t *testing.T) {
	eng := New()

	desc := poolDesc(backend.AlgMax, backend.Inference,
		tensor.Shape{1, 1, 4, 4}, tensor.Shape{1, 1, 2, 2},
		[2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0}, [2]int{0, 0})
	plan, err := eng.CompilePoolingForward(desc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}

	// Wrong input extent.
	src, _ := tensor.NewRaw(tensor.Shape{1, 1, 6, 6}, tensor.Float32, tensor.CPU)
	dst, _ := tensor.NewRaw(tensor.Shape{1, 1, 2, 2}, tensor.Float32, tensor.CPU)
	if err := eng.Run(plan, backend.Args{Src: src, Dst: dst}); err == nil {
		t.Error("expected error for mismatched src buffer")
	}

	// Missing buffers.
	if err := eng.Run(plan, backend.Args{}); err == nil {
		t.Error("expected error for missing buffers")
	}
}

func TestRun_Float16(t *testing.T) {
	eng := New()

	desc := poolDesc(backend.AlgAvgIncludePadding, backend.Inference,
		tensor.Shape{1, 1, 2, 2}, tensor.Shape{1, 1, 1, 1},
		[2]int{2, 2}, [2]int{1, 1}, [2]int{0, 0}, [2]int{0, 0})
	desc.Src.DType = tensor.Float16
	desc.Dst.DType = tensor.Float16
	plan, err := eng.CompilePoolingForward(desc)
	if err != nil {
		t.Fatalf("CompilePoolingForward failed: %v", err)
	}

	src, _ := tensor.NewRaw(tensor.Shape{1, 1, 2, 2}, tensor.Float16, tensor.CPU)
	bits := src.AsFloat16Bits()
	for i, v := range []float32{1, 2, 3, 4} {
		bits[i] = tensor.Float16FromFloat32(v)
	}
	dst, _ := tensor.NewRaw(tensor.Shape{1, 1, 1, 1}, tensor.Float16, tensor.CPU)

	if err := eng.Run(plan, backend.Args{Src: src, Dst: dst}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := tensor.Float16ToFloat32(dst.AsFloat16Bits()[0]); got != 2.5 {
		t.Errorf("expected 2.5, got %v", got)
	}
}
