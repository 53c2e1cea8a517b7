package main

// Run one analysis over local files and print the result:
//   go run ./cmd/analyze -prompt "summarize yields" data/yields.csv data/rules.pdf

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"farmdata-backend/internal/analysis"
	"farmdata-backend/internal/bootstrap"
	"farmdata-backend/internal/files"
	"farmdata-backend/internal/llm"
	"farmdata-backend/internal/shared/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		exitErr(err.Error())
	}

	prompt := flag.String("prompt", "", "Analysis request")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	temperature := flag.Float64("temperature", -1, "Sampling temperature, 0-2 (unset uses the default)")
	maxTokens := flag.Int("max-tokens", 0, "Output token cap, 1-4000 (unset uses the default)")
	outPath := flag.String("out", "", "Path to write the result JSON (optional)")
	flag.Parse()

	if strings.TrimSpace(*prompt) == "" {
		exitErr("prompt is required")
	}
	if flag.NArg() == 0 {
		exitErr("at least one file path is required")
	}

	client, err := bootstrap.BuildLLM(cfg)
	if err != nil {
		exitErr(err.Error())
	}
	llm.SetDefaultCapabilities(llm.NewCapabilities(cfg.ReasoningModelPrefixes...))

	req := analysis.Request{
		FileIDs: flag.Args(),
		Prompt:  *prompt,
		Model:   *model,
	}
	if *temperature >= 0 {
		req.Temperature = temperature
	}
	if *maxTokens != 0 {
		req.MaxTokens = maxTokens
	}

	svc := analysis.NewService(diskFiles{}, client, nil, cfg.LLMModel)
	result, err := svc.Analyze(context.Background(), "cli", true, req)
	if err != nil {
		exitErr(fmt.Sprintf("analyze: %v", err))
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("encode result: %v", err))
	}
	if strings.TrimSpace(*outPath) != "" {
		if err := os.WriteFile(*outPath, out, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	fmt.Println(string(out))
}

// diskFiles resolves file ids as local paths.
type diskFiles struct{}

func (diskFiles) Resolve(_ context.Context, _ string, id string) (files.Resolved, error) {
	data, err := os.ReadFile(id)
	if err != nil {
		if os.IsNotExist(err) {
			return files.Resolved{}, files.ErrNotFound
		}
		return files.Resolved{}, err
	}
	return files.Resolved{
		File: files.File{ID: id, Name: filepath.Base(id), Size: int64(len(data))},
		Data: data,
	}, nil
}

func exitErr(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
