package classifier

import (
	"path/filepath"
	"testing"

	"bioclassify/internal/models"
	"bioclassify/pkg/ops"
	"bioclassify/pkg/tensor"
)

// TestBuildRequiresPrediction ensures a classifier cannot be built without
// a prediction operation
func TestBuildRequiresPrediction(t *testing.T) {
	b := &Builder{PatchWidth: 64, PatchHeight: 64}
	p, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if _, err := Build(p); err == nil {
		t.Errorf("Expected error building classifier without prediction op")
	}
}

// TestBuildComposesPipeline checks that pre, predict and post run in order
func TestBuildComposesPipeline(t *testing.T) {
	b := &Builder{
		ModelName:   "m",
		PatchWidth:  64,
		PatchHeight: 64,
		Preprocessing: []ops.ImageOp{
			&ops.ScaleLinear{Gain: []float64{2}},
		},
		Prediction: identityOp{},
		Postprocessing: []ops.ImageOp{
			&ops.ScaleLinear{Offset: []float64{1}},
		},
	}
	p, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	c, err := Build(p)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	in, _ := tensor.FromData(1, 1, 1, []float64{3})
	out, err := c.ApplyToTile(in)
	if err != nil {
		t.Fatalf("ApplyToTile failed: %v", err)
	}
	// (3 * 2) + 1
	if out.At(0, 0, 0) != 7 {
		t.Errorf("Expected pipeline output 7, got %f", out.At(0, 0, 0))
	}
}

// TestWriteReadClassifier round-trips the saved configuration
func TestWriteReadClassifier(t *testing.T) {
	b := &Builder{
		ModelName:   "nucleus model",
		PatchWidth:  96,
		PatchHeight: 64,
		Downsample:  2,
		Geometry:    models.TileGeometry{Width: 96, Height: 64, StepWidth: 16, StepHeight: 16},
		InputChannels: []models.ChannelSelector{
			{Kind: models.SelectChannel, Channel: 1, Name: "DAPI"},
			{Kind: models.SelectMean},
		},
		OutputClasses:     []string{"Nucleus", "Background"},
		OutputChannelType: models.OutputClassification,
		Prediction:        identityOp{},
	}
	p, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	c, err := Build(p)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "saved", "classifier.json")
	if err := WriteClassifier(c, path); err != nil {
		t.Fatalf("WriteClassifier failed: %v", err)
	}

	back, err := ReadClassifier(path)
	if err != nil {
		t.Fatalf("ReadClassifier failed: %v", err)
	}
	if back.Name() != "nucleus model" {
		t.Errorf("Expected name to survive round trip, got %q", back.Name())
	}
	if len(back.OutputClasses()) != 2 || back.OutputClasses()[0] != "Nucleus" {
		t.Errorf("Expected output classes to survive round trip, got %v", back.OutputClasses())
	}
	if back.outputChannelType != models.OutputClassification {
		t.Errorf("Expected classification output type, got %v", back.outputChannelType)
	}
	if back.geometry.StepWidth != 16 {
		t.Errorf("Expected tile geometry to survive round trip, got %+v", back.geometry)
	}
	if len(back.inputChannels) != 2 || back.inputChannels[0].Name != "DAPI" {
		t.Errorf("Expected input channels to survive round trip, got %+v", back.inputChannels)
	}
	if back.Pipeline() != nil {
		t.Errorf("Expected loaded classifier to carry no pipeline")
	}
}

// TestReadClassifierMissingFile surfaces I/O errors
func TestReadClassifierMissingFile(t *testing.T) {
	if _, err := ReadClassifier(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Errorf("Expected error for missing classifier file")
	}
}
