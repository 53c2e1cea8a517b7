package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"farmdata-backend/internal/extract"
	"farmdata-backend/internal/files"
	"farmdata-backend/internal/history"
	"farmdata-backend/internal/llm"
	"farmdata-backend/internal/shared/config"
	"farmdata-backend/internal/shared/metrics"
	"farmdata-backend/internal/shared/telemetry"
)

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 4000
)

// Request is one analysis submission.
type Request struct {
	FileIDs     []string `json:"fileIds"`
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	Model       string   `json:"model,omitempty"`
}

// Result is returned once per analysis and never stored.
type Result struct {
	RunID          string     `json:"runId"`
	Model          string     `json:"model"`
	ModelClass     string     `json:"modelClass"`
	GeneratedText  string     `json:"generatedText"`
	Artifact       *Artifact  `json:"artifact,omitempty"`
	Statistics     Statistics `json:"statistics"`
	SkippedFileIDs []string   `json:"skippedFileIds,omitempty"`
}

// FileResolver loads a selected file by id for its owner.
type FileResolver interface {
	Resolve(ctx context.Context, owner, id string) (files.Resolved, error)
}

// Service runs analyses against the configured provider.
type Service struct {
	Files        FileResolver
	LLM          llm.Client
	History      history.Repo
	Capabilities *llm.Capabilities
	DefaultModel string
	Extract      func(ctx context.Context, name string, data []byte) (string, error)
	Now          func() time.Time
	NewID        func() string
}

// NewService constructs a Service with the default extractor and clock.
func NewService(resolver FileResolver, client llm.Client, runs history.Repo, defaultModel string) *Service {
	return &Service{
		Files:        resolver,
		LLM:          client,
		History:      runs,
		DefaultModel: defaultModel,
	}
}

// Analyze validates req, builds the prompt from the owner's files in the
// requested order, calls the provider and classifies the reply.
func (s *Service) Analyze(ctx context.Context, owner string, guest bool, req Request) (Result, error) {
	if strings.TrimSpace(owner) == "" {
		return Result{}, ErrUnauthorized
	}
	if err := validate(req); err != nil {
		return Result{}, err
	}
	metrics.IncAnalysisStarted()

	sections, skipped, err := s.collectSections(ctx, owner, req.FileIDs)
	if err != nil {
		metrics.IncAnalysisFailed("canceled")
		return Result{}, err
	}
	if len(sections) == 0 {
		metrics.IncAnalysisFailed("no_readable_content")
		return Result{}, ErrNoReadableContent
	}

	model := s.model(req.Model)
	capability := s.capabilities().Classify(model)
	maxTokens := 0
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	chatReq := llm.NewChatRequest(capability, model, llm.SystemPrompt, llm.BuildPrompt(sections, req.Prompt), req.Temperature, maxTokens)

	start := s.now()
	resp, err := s.LLM.Complete(ctx, chatReq)
	elapsed := s.now().Sub(start)
	metrics.ObserveProviderDuration(string(capability.Class), elapsed)
	if err != nil {
		metrics.IncAnalysisFailed("provider")
		telemetry.Error("analysis.provider_failed", map[string]any{
			"model": model,
			"error": err.Error(),
		})
		return Result{}, fmt.Errorf("analyze: %w", err)
	}

	stats := NewStatistics(elapsed, resp.Usage)
	metrics.AddTokens(string(capability.Class), stats.InputTokens, stats.OutputTokens, stats.ReasoningTokens)

	text, substituted := FinalText(strings.TrimSpace(resp.Text), stats, chatReq.MaxOutput())
	result := Result{
		RunID:          s.newID(),
		Model:          model,
		ModelClass:     string(capability.Class),
		GeneratedText:  text,
		Statistics:     stats,
		SkippedFileIDs: skipped,
	}
	if substituted {
		telemetry.Warn("analysis.empty_text", map[string]any{
			"model":            model,
			"max_output":       chatReq.MaxOutput(),
			"reasoning_tokens": stats.ReasoningTokens,
			"output_tokens":    stats.OutputTokens,
		})
	} else if artifact, ok := Classify(text); ok {
		result.Artifact = &artifact
		metrics.IncArtifact(artifact.Kind)
	}

	s.record(ctx, owner, guest, req, result)
	metrics.IncAnalysisCompleted()
	telemetry.Info("analysis.completed", map[string]any{
		"run_id":        result.RunID,
		"model":         model,
		"model_class":   result.ModelClass,
		"file_count":    len(sections),
		"skipped_count": len(skipped),
		"artifact_kind": artifactKind(result.Artifact),
		"total_tokens":  stats.TotalTokens,
	})
	return result, nil
}

// ListRuns returns the owner's recorded runs, newest first.
func (s *Service) ListRuns(ctx context.Context, owner string, limit, offset int) ([]history.Run, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrUnauthorized
	}
	if s.History == nil {
		return []history.Run{}, nil
	}
	return s.History.ListByUser(ctx, owner, limit, offset)
}

// GetRun returns one of the owner's recorded runs.
func (s *Service) GetRun(ctx context.Context, owner, runID string) (history.Run, error) {
	if strings.TrimSpace(owner) == "" {
		return history.Run{}, ErrUnauthorized
	}
	if strings.TrimSpace(runID) == "" {
		return history.Run{}, validationError("run id is required")
	}
	if s.History == nil {
		return history.Run{}, ErrRunNotFound
	}
	run, err := s.History.GetByID(ctx, owner, runID)
	if errors.Is(err, history.ErrNotFound) {
		return history.Run{}, ErrRunNotFound
	}
	if err != nil {
		return history.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Models returns the capability table in lookup order.
func (s *Service) Models() []llm.Capability {
	return s.capabilities().Entries()
}

// ResolvedDefaultModel is the model used when a request names none.
func (s *Service) ResolvedDefaultModel() string {
	return s.model("")
}

func validate(req Request) error {
	if len(req.FileIDs) == 0 {
		return validationError("at least one file must be selected")
	}
	for _, id := range req.FileIDs {
		if strings.TrimSpace(id) == "" {
			return validationError("file ids must not be blank")
		}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return validationError("prompt is required")
	}
	if t := req.Temperature; t != nil && (*t < MinTemperature || *t > MaxTemperature) {
		return validationError("temperature must be between %g and %g", MinTemperature, MaxTemperature)
	}
	if m := req.MaxTokens; m != nil && (*m < MinMaxTokens || *m > MaxMaxTokens) {
		return validationError("maxTokens must be between %d and %d", MinMaxTokens, MaxMaxTokens)
	}
	return nil
}

// collectSections resolves and extracts each file in caller order. Missing or
// unreadable files are logged and skipped; only context cancellation aborts.
func (s *Service) collectSections(ctx context.Context, owner string, ids []string) ([]llm.FileSection, []string, error) {
	sections := make([]llm.FileSection, 0, len(ids))
	var skipped []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		resolved, err := s.Files.Resolve(ctx, owner, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, err
			}
			s.skip(id, "resolve", err)
			skipped = append(skipped, id)
			continue
		}
		name := resolved.Name
		if name == "" {
			name = id
		}
		text, err := s.extract(ctx, name, resolved.Data)
		if err != nil {
			s.skip(id, "extract", err)
			skipped = append(skipped, id)
			continue
		}
		sections = append(sections, llm.FileSection{Name: name, Text: text})
	}
	return sections, skipped, nil
}

func (s *Service) skip(id, stage string, err error) {
	metrics.IncFileSkipped()
	telemetry.Warn("analysis.file_skipped", map[string]any{
		"file_id": id,
		"stage":   stage,
		"error":   err.Error(),
	})
}

func (s *Service) record(ctx context.Context, owner string, guest bool, req Request, result Result) {
	if s.History == nil || guest {
		return
	}
	run := history.Run{
		ID:                    result.RunID,
		UserID:                owner,
		Model:                 result.Model,
		ModelClass:            result.ModelClass,
		FileIDs:               append([]string(nil), req.FileIDs...),
		Prompt:                strings.TrimSpace(req.Prompt),
		ArtifactKind:          artifactKind(result.Artifact),
		ProcessingTimeSeconds: result.Statistics.ProcessingTimeSeconds,
		InputTokens:           result.Statistics.InputTokens,
		OutputTokens:          result.Statistics.OutputTokens,
		ReasoningTokens:       result.Statistics.ReasoningTokens,
		TotalTokens:           result.Statistics.TotalTokens,
		CreatedAt:             s.now(),
	}
	if err := s.History.Create(ctx, run); err != nil {
		telemetry.Warn("analysis.history_failed", map[string]any{
			"run_id": run.ID,
			"error":  err.Error(),
		})
	}
}

func (s *Service) model(requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	if m := strings.TrimSpace(s.DefaultModel); m != "" {
		return m
	}
	return config.DefaultModel
}

func (s *Service) capabilities() *llm.Capabilities {
	if s.Capabilities != nil {
		return s.Capabilities
	}
	return llm.DefaultCapabilities()
}

func (s *Service) extract(ctx context.Context, name string, data []byte) (string, error) {
	if s.Extract != nil {
		return s.Extract(ctx, name, data)
	}
	return extract.Text(ctx, name, data)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func artifactKind(a *Artifact) string {
	if a == nil {
		return ""
	}
	return a.Kind
}
