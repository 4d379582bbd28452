// File: cmd/analyze/main.go
//
// One-shot sketch analysis: reads an image from disk, runs it through the
// configured vision provider and prints the structured result as JSON.
// Exit code 0 on success, 1 on any failure.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bidforge/internal/config"
	"bidforge/internal/domain/model"
	"bidforge/internal/infra/adapters/vision"
	"bidforge/internal/infra/imaging"
	"bidforge/internal/infra/logging"
	"bidforge/internal/usecase"
)

type output struct {
	Success   bool                  `json:"success"`
	Result    *model.SketchAnalysis `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorType string                `json:"error_type,omitempty"`
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	projectContext := flag.String("context", "", "optional project context, e.g. \"G+3 residential Dubai\"")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: analyze [-config config.yaml] [-context text] <image-path>")
		os.Exit(1)
	}
	imagePath := flag.Arg(0)

	out := run(context.Background(), *cfgPath, imagePath, *projectContext)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)

	if !out.Success {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, imagePath, projectContext string) output {
	cfg, err := config.LoadConfig(cfgPath, false)
	if err != nil {
		return fail("ConfigError", err)
	}
	logger := logging.New(cfg.Log, false)

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fail("FileNotFound", fmt.Errorf("image not found: %s", imagePath))
	}

	img, err := imaging.Optimize(data)
	if err != nil {
		return fail("DecodeError", fmt.Errorf("failed to load image: %w", err))
	}

	visionAdapter, err := vision.NewAdapter(ctx, cfg.Vision)
	if err != nil {
		return fail("ProviderError", err)
	}

	sketchUC, err := usecase.NewSketchUseCase(visionAdapter, nil, nil, cfg.Vision, logger)
	if err != nil {
		return fail("ProviderError", err)
	}

	base := filepath.Base(imagePath)
	meta := model.SketchMetadata{
		SketchID:   strings.TrimSuffix(base, filepath.Ext(base)),
		Filename:   base,
		FileSize:   int64(len(data)),
		Format:     img.MIMEType,
		Width:      img.Width,
		Height:     img.Height,
		UploadedAt: time.Now(),
	}

	result, err := sketchUC.AnalyzeSketch(ctx, img, meta, projectContext)
	if err != nil {
		return fail("AnalysisError", err)
	}
	return output{Success: true, Result: result}
}

func fail(kind string, err error) output {
	return output{Success: false, Error: err.Error(), ErrorType: kind}
}
