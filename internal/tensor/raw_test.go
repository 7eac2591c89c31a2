package tensor

import (
	"testing"
)

func TestNewRaw(t *testing.T) {
	r, err := NewRaw(Shape{2, 3, 4, 4}, Float32, CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	if r.NumElements() != 96 {
		t.Errorf("Expected 96 elements, got %d", r.NumElements())
	}
	if r.ByteSize() != 96*4 {
		t.Errorf("Expected %d bytes, got %d", 96*4, r.ByteSize())
	}
	if !r.IsCanonical() {
		t.Error("new tensor should be canonical")
	}
	for i, v := range r.AsFloat32() {
		if v != 0 {
			t.Fatalf("element %d not zero-initialized: %v", i, v)
		}
	}
}

func TestNewRaw_InvalidShape(t *testing.T) {
	if _, err := NewRaw(Shape{2, -1}, Float32, CPU); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestAsFloat32_WrongDType(t *testing.T) {
	r, _ := NewRaw(Shape{2, 2}, Float64, CPU)
	defer func() {
		if recover() == nil {
			t.Error("expected panic for dtype mismatch")
		}
	}()
	r.AsFloat32()
}

func TestCloneSharesBuffer(t *testing.T) {
	r, _ := NewRaw(Shape{4}, Float32, CPU)
	r.AsFloat32()[0] = 42

	c := r.Clone()
	if c.AsFloat32()[0] != 42 {
		t.Error("clone should share the underlying buffer")
	}

	c.AsFloat32()[1] = 7
	if r.AsFloat32()[1] != 7 {
		t.Error("writes through a clone should be visible in the original")
	}
	c.Release()
	if r.AsFloat32()[0] != 42 {
		t.Error("releasing a clone must not free the shared buffer")
	}
}

func TestNarrow(t *testing.T) {
	r, _ := NewRaw(Shape{4, 2}, Float32, CPU)
	data := r.AsFloat32()
	for i := range data {
		data[i] = float32(i)
	}

	v, err := r.Narrow(1, 2)
	if err != nil {
		t.Fatalf("Narrow failed: %v", err)
	}
	if !v.Shape().Equal(Shape{2, 2}) {
		t.Errorf("view shape: expected [2 2], got %v", v.Shape())
	}
	if !v.IsView() {
		t.Error("narrowed tensor should report IsView")
	}
	if v.IsCanonical() {
		t.Error("a view is not safe to hand to a canonical plan")
	}

	got := v.AsFloat32()
	want := []float32{2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("view[%d]: expected %v, got %v", i, want[i], got[i])
		}
	}

	if _, err := r.Narrow(3, 2); err == nil {
		t.Error("expected error for out-of-bounds narrow")
	}
}

func TestCanonicalize_View(t *testing.T) {
	r, _ := NewRaw(Shape{4, 2}, Float32, CPU)
	data := r.AsFloat32()
	for i := range data {
		data[i] = float32(i)
	}

	v, _ := r.Narrow(2, 1)
	c, err := v.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if !c.IsCanonical() {
		t.Error("canonicalized tensor should be canonical")
	}
	got := c.AsFloat32()
	if got[0] != 4 || got[1] != 5 {
		t.Errorf("expected [4 5], got %v", got)
	}

	// Already-canonical tensors come back unchanged.
	same, err := r.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if same != r {
		t.Error("canonical tensor should be returned as-is")
	}
}

func TestBlocked8c_RoundTrip(t *testing.T) {
	r, _ := NewRaw(Shape{2, 8, 3, 3}, Float32, CPU)
	data := r.AsFloat32()
	for i := range data {
		data[i] = float32(i)
	}

	blocked, err := r.ToBlocked8c()
	if err != nil {
		t.Fatalf("ToBlocked8c failed: %v", err)
	}
	if blocked.Layout() != LayoutBlocked8c {
		t.Errorf("expected nChw8c layout, got %s", blocked.Layout())
	}
	if blocked.IsCanonical() {
		t.Error("blocked tensor must not report canonical")
	}

	back, err := blocked.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	got := back.AsFloat32()
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("round trip mismatch at %d: expected %v, got %v", i, data[i], got[i])
		}
	}
}

func TestToBlocked8c_Errors(t *testing.T) {
	// Channels not a multiple of the block.
	r, _ := NewRaw(Shape{1, 3, 2, 2}, Float32, CPU)
	if _, err := r.ToBlocked8c(); err == nil {
		t.Error("expected error for channels not divisible by 8")
	}

	// Non-4D tensor.
	r, _ = NewRaw(Shape{8, 2}, Float32, CPU)
	if _, err := r.ToBlocked8c(); err == nil {
		t.Error("expected error for non-4D tensor")
	}
}

func TestDescribe(t *testing.T) {
	r, _ := NewRaw(Shape{1, 2, 4, 4}, Float32, CPU)
	d := Describe(r)

	if d.Rank != 4 {
		t.Errorf("expected rank 4, got %d", d.Rank)
	}
	if !d.Shape().Equal(Shape{1, 2, 4, 4}) {
		t.Errorf("expected shape [1 2 4 4], got %v", d.Shape())
	}
	if d.NumElements() != 32 {
		t.Errorf("expected 32 elements, got %d", d.NumElements())
	}

	// Descriptors are comparable values: same structure, equal keys.
	r2, _ := NewRaw(Shape{1, 2, 4, 4}, Float32, CPU)
	if d != Describe(r2) {
		t.Error("structurally identical tensors should describe equal")
	}

	r3, _ := NewRaw(Shape{1, 2, 4, 4}, Float64, CPU)
	if d == Describe(r3) {
		t.Error("different dtypes should describe unequal")
	}
}

func TestBlockedIndex(t *testing.T) {
	// Channel 9 in a 16-channel image sits in block 1, lane 1.
	H, W := 2, 3
	idx := blockedIndex(9, 1, 2, H, W)
	want := ((1*H+1)*W+2)*channelBlock + 1
	if idx != want {
		t.Errorf("expected %d, got %d", want, idx)
	}
}

func TestFloat16Conversions(t *testing.T) {
	for _, v := range []float32{0, 1, -2.5, 1024} {
		bits := Float16FromFloat32(v)
		if got := Float16ToFloat32(bits); got != v {
			t.Errorf("round trip of %v gave %v", v, got)
		}
	}
}
