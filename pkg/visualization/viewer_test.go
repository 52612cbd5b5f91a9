package visualization

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"bioclassify/pkg/tensor"
	"bioclassify/pkg/verify"
)

// TestRenderChannel maps the tensor value range onto 16-bit grayscale
func TestRenderChannel(t *testing.T) {
	tn, _ := tensor.FromData(1, 3, 1, []float64{-1, 0, 1})

	img, err := RenderChannel(tn, 0)
	if err != nil {
		t.Fatalf("RenderChannel failed: %v", err)
	}

	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("Expected *image.Gray16, got %T", img)
	}
	if gray.Gray16At(0, 0).Y != 0 {
		t.Errorf("Expected minimum to map to 0, got %d", gray.Gray16At(0, 0).Y)
	}
	if gray.Gray16At(2, 0).Y != 65535 {
		t.Errorf("Expected maximum to map to 65535, got %d", gray.Gray16At(2, 0).Y)
	}
	mid := gray.Gray16At(1, 0).Y
	if mid < 32000 || mid > 33500 {
		t.Errorf("Expected midpoint near 32767, got %d", mid)
	}

	if _, err := RenderChannel(tn, 2); err == nil {
		t.Errorf("Expected error for out-of-range channel")
	}
}

// TestRenderChannelConstant handles a tensor with no value range
func TestRenderChannelConstant(t *testing.T) {
	tn, _ := tensor.FromData(2, 2, 1, []float64{5, 5, 5, 5})

	img, err := RenderChannel(tn, 0)
	if err != nil {
		t.Fatalf("RenderChannel failed: %v", err)
	}
	gray := img.(*image.Gray16)
	if gray.Gray16At(0, 0).Y != 0 {
		t.Errorf("Expected constant tensor to render as 0, got %d", gray.Gray16At(0, 0).Y)
	}
}

// TestSaveTensor writes one PNG per channel
func TestSaveTensor(t *testing.T) {
	dir := t.TempDir()
	v := NewViewer(dir, 0)

	tn, _ := tensor.New(4, 4, 2)
	tn.Set(0, 0, 0, 1)
	if err := v.SaveTensor(tn, "sample"); err != nil {
		t.Fatalf("SaveTensor failed: %v", err)
	}

	for _, name := range []string{"sample_c0.png", "sample_c1.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to be written: %v", name, err)
		}
	}
}

// TestSaveResult writes the full verification set, skipping absent tensors
func TestSaveResult(t *testing.T) {
	dir := t.TempDir()
	v := NewViewer(dir, 0)

	input, _ := tensor.New(4, 4, 1)
	predicted, _ := tensor.New(4, 4, 1)
	result := &verify.Result{Input: input, Predicted: predicted}

	if err := v.SaveResult("model", result); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	for _, name := range []string{"model-input_c0.png", "model-prediction_c0.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to be written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "model-target_c0.png")); err == nil {
		t.Errorf("Expected no target image for a result without target")
	}

	// A nil result is a no-op
	if err := v.SaveResult("model", nil); err != nil {
		t.Errorf("Expected nil result to be skipped, got %v", err)
	}
}

// TestPreviewCapsSize verifies the longer edge is scaled down to the cap
func TestPreviewCapsSize(t *testing.T) {
	v := NewViewer(t.TempDir(), 8)

	img := image.NewGray16(image.Rect(0, 0, 32, 16))
	out := v.preview(img)
	bounds := out.Bounds()
	if bounds.Dx() != 8 {
		t.Errorf("Expected width capped to 8, got %d", bounds.Dx())
	}
	if bounds.Dy() != 4 {
		t.Errorf("Expected height scaled to 4, got %d", bounds.Dy())
	}

	// Small images pass through untouched
	small := image.NewGray16(image.Rect(0, 0, 4, 4))
	if v.preview(small) != small {
		t.Errorf("Expected small image to pass through unscaled")
	}
}
