package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"ctperf/pkg/analysis"
	"ctperf/pkg/config"
	"ctperf/pkg/dicomload"
	"ctperf/pkg/storage"
	"ctperf/pkg/visualization"
)

func main() {
	// Parse command line arguments
	dicomDir := flag.String("dicom", "", "Directory containing the CT perfusion DICOM study")
	outputDir := flag.String("output", "ctperf_results", "Directory to save metrics and masks")
	configPath := flag.String("config", "ctperf.yaml", "Path to YAML configuration file")
	pvtThreshold := flag.Float64("pvt-threshold", 0, "Override PVT Tmax threshold in seconds (0 = use config)")
	hypoThreshold := flag.Float64("hypo-threshold", 0, "Override hypoperfusion Tmax threshold in seconds (0 = use config)")
	quiet := flag.Bool("quiet", false, "Suppress progress output")
	flag.Parse()

	if *dicomDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *pvtThreshold > 0 {
		cfg.Thresholds.PVTTmaxS = *pvtThreshold
	}
	if *hypoThreshold > 0 {
		cfg.Thresholds.HypoperfusionTmaxS = *hypoThreshold
	}
	if *quiet {
		cfg.Output.Verbose = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("CT PERFUSION STROKE BIOMARKER ANALYSIS")
	fmt.Println("RGB map inversion, lesion segmentation and venous transit assessment")
	fmt.Println("================================")

	fmt.Printf("Loading DICOM study from %s...\n", *dicomDir)
	study, err := dicomload.LoadStudy(*dicomDir)
	if err != nil {
		log.Fatalf("Failed to load study: %v", err)
	}
	for role, slices := range study.Series {
		fmt.Printf("  found %s series with %d slices\n", role, len(slices))
	}

	startTime := time.Now()
	result, err := analysis.New(cfg).Run(study)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	fmt.Printf("\nAnalysis completed in %.2f seconds\n\n", time.Since(startTime).Seconds())

	m := result.Metrics
	fmt.Println("Results:")
	fmt.Println("========")
	fmt.Printf("Brain volume:          %.2f ml\n", m.BrainVolumeML)
	fmt.Printf("Hypoperfusion volume:  %.2f ml\n", m.HypoperfusionVolumeML)
	fmt.Printf("Infarct core volume:   %.2f ml (%s)\n", m.CoreVolumeML, m.CoreDefinition)
	fmt.Printf("Penumbra volume:       %.2f ml\n", m.PenumbraVolumeML)
	fmt.Printf("Mismatch ratio:        %s\n", m.MismatchRatio)
	fmt.Printf("CBV index:             %s (collaterals: %s)\n", m.CBVIndex, m.CollateralGrade)
	fmt.Printf("HIR:                   %.2f\n", m.HIR)
	fmt.Printf("PRR:                   %.2f\n", m.PRR)
	fmt.Printf("PVT status:            %s\n", m.PVTStatus)

	// Persist the run outputs
	metricsPath := filepath.Join(*outputDir, "metrics.json")
	if err := storage.SaveMetrics(metricsPath, &m); err != nil {
		log.Fatalf("Failed to save metrics: %v", err)
	}
	fmt.Printf("\nMetrics saved to: %s\n", metricsPath)

	statsPath := filepath.Join(*outputDir, "slice_statistics.csv")
	if err := storage.SaveSliceStats(statsPath, m.SliceStats); err != nil {
		log.Fatalf("Failed to save slice statistics: %v", err)
	}
	fmt.Printf("Slice statistics saved to: %s\n", statsPath)

	if cfg.Output.SaveMasks {
		masksPath := filepath.Join(*outputDir, "masks.bin.gz")
		if err := storage.SaveMasks(masksPath, result.Masks); err != nil {
			log.Fatalf("Failed to save masks: %v", err)
		}
		fmt.Printf("Masks saved to: %s\n", masksPath)
	}

	if cfg.Output.SaveOverlays {
		overlayDir := filepath.Join(*outputDir, "overlays")
		renderer := visualization.NewRenderer(result.Tmax,
			result.Masks["core"], result.Masks["penumbra"], cfg.Decoding.TmaxMaxS)
		if err := renderer.SaveOverlays(overlayDir); err != nil {
			log.Fatalf("Failed to save overlays: %v", err)
		}
		fmt.Printf("Overlay images saved to: %s\n", overlayDir)
	}

	// An indeterminate venous assessment is a degraded result, not a
	// failure: every other metric above is valid.
	if result.VenousIndeterminate {
		fmt.Println("\nNote: analysis completed with indeterminate venous assessment")
		fmt.Println("(venous ROI placement found no brain tissue; check volume geometry)")
	}
}
