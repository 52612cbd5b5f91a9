package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"bioclassify/pkg/classifier"
	"bioclassify/pkg/config"
	"bioclassify/pkg/spec"
	"bioclassify/pkg/verify"
	"bioclassify/pkg/visualization"
)

func main() {
	// Parse command line arguments
	modelPath := flag.String("model", "", "Path to the model descriptor (rdf.yaml)")
	outputPath := flag.String("output", "", "Output classifier JSON filename (default: <model name>.json)")
	name := flag.String("name", "", "Classifier name (default: model name)")
	configPath := flag.String("config", "bioclassify.yaml", "Path to the configuration file")
	downsample := flag.Float64("downsample", 0, "Downsample factor for the input image (default: from config)")
	skipVerify := flag.Bool("skip-verify", false, "Skip running the model's bundled test tensors")
	flag.Parse()

	// Validate inputs
	if *modelPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("BIOIMAGE MODEL ZOO TO PIXEL CLASSIFIER")
	fmt.Println("================================")

	// Parse and validate the model descriptor
	model, err := spec.Parse(*modelPath)
	if err != nil {
		log.Fatalf("Error loading model: %v", err)
	}
	if err := model.CheckSupported(); err != nil {
		log.Fatalf("Cannot use this model: %v", err)
	}
	fmt.Printf("Loaded model: %s (format %s)\n", model.Name, model.FormatVersion)

	// Assemble classifier parameters from the descriptor
	builder, err := classifier.FromModel(model, cfg)
	if err != nil {
		log.Fatalf("Error building classifier parameters: %v", err)
	}
	if *downsample > 0 {
		builder.Downsample = *downsample
	}
	if *name != "" {
		builder.ModelName = *name
	}

	params, err := builder.Finalize()
	if err != nil {
		log.Fatalf("Invalid classifier parameters: %v", err)
	}

	geometry := params.Geometry()
	if geometry.Fixed() {
		fmt.Printf("Tile size fixed to %d x %d\n", geometry.Width, geometry.Height)
	} else {
		fmt.Printf("Tile size %d x %d (adjustable in steps of %d x %d, up to %d)\n",
			geometry.Width, geometry.Height,
			geometry.StepWidth, geometry.StepHeight, geometry.MaxTile())
	}

	// Build the classifier and save it
	built, err := classifier.Build(params)
	if err != nil {
		log.Fatalf("No pixel classifier created: %v", err)
	}
	defer closePrediction(params)

	out := *outputPath
	if out == "" {
		out = sanitizeName(built.Name()) + ".json"
	}
	if err := classifier.WriteClassifier(built, out); err != nil {
		log.Fatalf("Failed to save classifier: %v", err)
	}
	fmt.Printf("Pixel classifier saved to: %s\n", out)

	// Run the model's own test tensors, if present. Verification failures
	// never invalidate the classifier saved above.
	if *skipVerify || !cfg.Verification.Enabled {
		return
	}
	verifier := verify.New(model)
	defer verifier.Close()
	if !verifier.HasInput() {
		fmt.Println("Model bundles no test input; skipping verification.")
		return
	}

	fmt.Println("Running model test tensors...")
	result, err := verifier.Verify(params)
	if err != nil {
		log.Printf("Verification failed: %v", err)
		log.Printf("The saved classifier is unaffected; see the log above for details.")
		return
	}
	if result == nil {
		return
	}
	if result.ShapeMismatch {
		fmt.Println("Warning: target output and prediction have different shapes!")
	} else if result.Difference != nil {
		min, max := result.Difference.MinMax()
		fmt.Printf("Prediction vs. target difference range: [%.6f, %.6f]\n", min, max)
	}

	viewer := visualization.NewViewer(cfg.Verification.OutputDir, cfg.Verification.PreviewMaxSize)
	if err := viewer.SaveResult(sanitizeName(model.Name), result); err != nil {
		log.Printf("Warning: failed to save verification images: %v", err)
		return
	}
	fmt.Printf("Verification images saved to: %s\n", cfg.Verification.OutputDir)
}

// closePrediction releases the prediction operation's native resources when
// it holds any.
func closePrediction(params *classifier.Params) {
	if closer, ok := params.Prediction().(interface{ Close() }); ok {
		closer.Close()
	}
}

// sanitizeName turns a model name into a safe file name component.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "classifier"
	}
	replacer := strings.NewReplacer(" ", "_", string(filepath.Separator), "_", ":", "_")
	return replacer.Replace(name)
}
