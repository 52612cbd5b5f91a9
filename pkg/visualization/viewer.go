// Package visualization renders image tensors to files for inspection.
// It stands in for the interactive viewer of the host application: every
// tensor produced by a verification run is written out as a grayscale
// image per channel, optionally downscaled to a preview size.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"

	"bioclassify/pkg/tensor"
	"bioclassify/pkg/verify"
)

// Viewer writes labeled tensors as PNG files into an output directory.
type Viewer struct {
	// outputDir is where images are written
	outputDir string

	// previewMaxSize caps the longer image edge in pixels; 0 disables scaling
	previewMaxSize int
}

// NewViewer creates a viewer writing into the given directory.
func NewViewer(outputDir string, previewMaxSize int) *Viewer {
	return &Viewer{outputDir: outputDir, previewMaxSize: previewMaxSize}
}

// RenderChannel converts one tensor channel to a 16-bit grayscale image,
// scaling the tensor's value range onto [0, 65535].
func RenderChannel(t *tensor.Tensor, channel int) (image.Image, error) {
	if channel < 0 || channel >= t.Channels() {
		return nil, fmt.Errorf("channel %d out of range [0,%d)", channel, t.Channels())
	}
	min, max := t.MinMax()
	scale := 0.0
	if max > min {
		scale = 65535 / (max - min)
	}
	img := image.NewGray16(image.Rect(0, 0, t.Cols(), t.Rows()))
	for y := 0; y < t.Rows(); y++ {
		for x := 0; x < t.Cols(); x++ {
			value := uint16((t.At(y, x, channel) - min) * scale)
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// SaveTensor writes every channel of a tensor as <label>_c<N>.png.
func (v *Viewer) SaveTensor(t *tensor.Tensor, label string) error {
	if err := os.MkdirAll(v.outputDir, 0755); err != nil {
		return err
	}
	for ch := 0; ch < t.Channels(); ch++ {
		img, err := RenderChannel(t, ch)
		if err != nil {
			return err
		}
		img = v.preview(img)
		filename := filepath.Join(v.outputDir, fmt.Sprintf("%s_c%d.png", label, ch))
		if err := saveImage(img, filename); err != nil {
			return err
		}
	}
	return nil
}

// SaveResult writes the full set of tensors from one verification run,
// using the model name as the file prefix. Absent tensors are skipped.
func (v *Viewer) SaveResult(modelName string, r *verify.Result) error {
	if r == nil {
		return nil
	}
	labeled := []struct {
		t     *tensor.Tensor
		label string
	}{
		{r.Input, modelName + "-input"},
		{r.Predicted, modelName + "-prediction"},
		{r.Target, modelName + "-target"},
		{r.Difference, modelName + "-difference"},
	}
	for _, entry := range labeled {
		if entry.t == nil {
			continue
		}
		if err := v.SaveTensor(entry.t, entry.label); err != nil {
			return fmt.Errorf("saving %s: %w", entry.label, err)
		}
	}
	return nil
}

// preview downscales an image so its longer edge fits previewMaxSize.
func (v *Viewer) preview(img image.Image) image.Image {
	if v.previewMaxSize <= 0 {
		return img
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= v.previewMaxSize && h <= v.previewMaxSize {
		return img
	}
	if w >= h {
		return resize.Resize(uint(v.previewMaxSize), 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, uint(v.previewMaxSize), img, resize.Lanczos3)
}

func saveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}
