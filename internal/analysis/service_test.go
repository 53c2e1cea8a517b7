package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"farmdata-backend/internal/files"
	"farmdata-backend/internal/llm"
	localstore "farmdata-backend/internal/shared/storage/object/local"
)

func TestAnalyzeRejectsBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "no files", req: Request{Prompt: "summarize"}},
		{name: "blank file id", req: Request{FileIDs: []string{" "}, Prompt: "summarize"}},
		{name: "blank prompt", req: Request{FileIDs: []string{"a.csv"}, Prompt: "  \n"}},
		{name: "temperature too high", req: Request{FileIDs: []string{"a.csv"}, Prompt: "p", Temperature: floatPtr(2.5)}},
		{name: "temperature negative", req: Request{FileIDs: []string{"a.csv"}, Prompt: "p", Temperature: floatPtr(-0.1)}},
		{name: "max tokens zero", req: Request{FileIDs: []string{"a.csv"}, Prompt: "p", MaxTokens: intPtr(0)}},
		{name: "max tokens too high", req: Request{FileIDs: []string{"a.csv"}, Prompt: "p", MaxTokens: intPtr(4001)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{files: map[string]string{"a.csv": "x,y"}}
			client := &fakeLLM{}
			svc, _ := newTestService(resolver, client)

			_, err := svc.Analyze(context.Background(), "user-1", false, tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if len(resolver.calls) != 0 || len(client.requests) != 0 {
				t.Fatalf("expected no resolution or provider call, got %d/%d", len(resolver.calls), len(client.requests))
			}
		})
	}
}

func TestAnalyzeRequiresIdentity(t *testing.T) {
	client := &fakeLLM{}
	svc, _ := newTestService(&fakeResolver{}, client)
	_, err := svc.Analyze(context.Background(), "", false, Request{FileIDs: []string{"a"}, Prompt: "p"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("provider should not be called")
	}
}

func TestAnalyzePreservesFileOrder(t *testing.T) {
	resolver := &fakeResolver{files: map[string]string{
		"a.csv": "field,yield\nA,10",
		"b.csv": "field,yield\nB,20",
	}}
	client := &fakeLLM{resp: llm.Response{Text: "ok"}}
	svc, _ := newTestService(resolver, client)

	_, err := svc.Analyze(context.Background(), "user-1", false, Request{
		FileIDs: []string{"b.csv", "a.csv"},
		Prompt:  "compare yields",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(client.requests) != 1 {
		t.Fatalf("expected one provider call, got %d", len(client.requests))
	}
	prompt := client.requests[0].Messages[1].Content
	b := strings.Index(prompt, "=== File: b.csv ===")
	a := strings.Index(prompt, "=== File: a.csv ===")
	if b < 0 || a < 0 || b > a {
		t.Fatalf("expected b.csv section before a.csv section:\n%s", prompt)
	}
	if !strings.Contains(prompt, "User request: compare yields") {
		t.Fatalf("prompt missing user request:\n%s", prompt)
	}
	if client.requests[0].Messages[0].Content != llm.SystemPrompt {
		t.Fatalf("unexpected system prompt")
	}
}

func TestAnalyzeSkipsUnreadableFiles(t *testing.T) {
	resolver := &fakeResolver{files: map[string]string{
		"good.csv":  "field,yield\nA,10",
		"empty.txt": "   ",
	}}
	client := &fakeLLM{resp: llm.Response{Text: "fine"}}
	svc, _ := newTestService(resolver, client)

	result, err := svc.Analyze(context.Background(), "user-1", false, Request{
		FileIDs: []string{"missing.csv", "good.csv", "empty.txt"},
		Prompt:  "summarize",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := strings.Join(result.SkippedFileIDs, ","); got != "missing.csv,empty.txt" {
		t.Fatalf("unexpected skipped ids %q", got)
	}
	prompt := client.requests[0].Messages[1].Content
	if strings.Contains(prompt, "missing.csv") || strings.Contains(prompt, "empty.txt") {
		t.Fatalf("skipped files leaked into prompt:\n%s", prompt)
	}
}

func TestAnalyzeNoReadableContent(t *testing.T) {
	client := &fakeLLM{}
	svc, runs := newTestService(&fakeResolver{files: map[string]string{}}, client)

	_, err := svc.Analyze(context.Background(), "user-1", false, Request{FileIDs: []string{"x", "y"}, Prompt: "p"})
	if !errors.Is(err, ErrNoReadableContent) {
		t.Fatalf("expected ErrNoReadableContent, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("provider should not be called")
	}
	listed, _ := runs.ListByUser(context.Background(), "user-1", 10, 0)
	if len(listed) != 0 {
		t.Fatalf("failed analyses must not be recorded")
	}
}

func TestAnalyzeShapesRequestByModelClass(t *testing.T) {
	tests := []struct {
		name          string
		model         string
		maxTokens     *int
		wantTemp      bool
		wantLegacyCap int
		wantReasonCap int
	}{
		{name: "legacy default", model: "", wantTemp: true, wantLegacyCap: 2000},
		{name: "legacy no floor", model: "gpt-4o", maxTokens: intPtr(50), wantTemp: true, wantLegacyCap: 50},
		{name: "reasoning floor", model: "gpt-5-mini", maxTokens: intPtr(50), wantReasonCap: 1000},
		{name: "reasoning above floor", model: "o3-mini", maxTokens: intPtr(3000), wantReasonCap: 3000},
		{name: "reasoning default", model: "GPT-4.1", wantReasonCap: 2000},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeLLM{resp: llm.Response{Text: "done"}}
			svc, _ := newTestService(&fakeResolver{files: map[string]string{"a.csv": "x,y"}}, client)

			_, err := svc.Analyze(context.Background(), "user-1", false, Request{
				FileIDs:     []string{"a.csv"},
				Prompt:      "p",
				Model:       tt.model,
				Temperature: floatPtr(0.2),
				MaxTokens:   tt.maxTokens,
			})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			req := client.requests[0]
			if (req.Temperature != nil) != tt.wantTemp {
				t.Fatalf("temperature presence = %v, want %v", req.Temperature != nil, tt.wantTemp)
			}
			if tt.wantTemp && *req.Temperature != 0.2 {
				t.Fatalf("expected caller temperature, got %v", *req.Temperature)
			}
			if tt.wantLegacyCap > 0 {
				if req.MaxTokens == nil || *req.MaxTokens != tt.wantLegacyCap || req.MaxCompletionTokens != nil {
					t.Fatalf("expected max_tokens=%d only, got %+v", tt.wantLegacyCap, req)
				}
			}
			if tt.wantReasonCap > 0 {
				if req.MaxCompletionTokens == nil || *req.MaxCompletionTokens != tt.wantReasonCap || req.MaxTokens != nil {
					t.Fatalf("expected max_completion_tokens=%d only, got %+v", tt.wantReasonCap, req)
				}
			}
		})
	}
}

func TestAnalyzeReturnsArtifactAndRecordsRun(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{
		Text:  "  a,b\n1,2  ",
		Usage: llm.Usage{InputTokens: 10, OutputTokens: 5},
	}}
	svc, runs := newTestService(&fakeResolver{files: map[string]string{"a.csv": "x,y"}}, client)

	result, err := svc.Analyze(context.Background(), "user-1", false, Request{FileIDs: []string{"a.csv"}, Prompt: "table please"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.GeneratedText != "a,b\n1,2" {
		t.Fatalf("expected trimmed text, got %q", result.GeneratedText)
	}
	if result.Artifact == nil || result.Artifact.Kind != "csv" || result.Artifact.Content != "a,b\n1,2" {
		t.Fatalf("unexpected artifact %+v", result.Artifact)
	}
	if result.Statistics.TotalTokens != 15 {
		t.Fatalf("expected total 15, got %d", result.Statistics.TotalTokens)
	}
	if result.Statistics.ProcessingTimeSeconds != 1.5 {
		t.Fatalf("expected 1.5s, got %v", result.Statistics.ProcessingTimeSeconds)
	}
	if result.ModelClass != string(llm.ClassLegacy) || result.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model info %q/%q", result.Model, result.ModelClass)
	}

	listed, err := runs.ListByUser(context.Background(), "user-1", 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "run-1" || listed[0].ArtifactKind != "csv" || listed[0].TotalTokens != 15 {
		t.Fatalf("unexpected runs %+v", listed)
	}
}

func TestAnalyzeGuestRunsAreNotRecorded(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{Text: "ok"}}
	svc, runs := newTestService(&fakeResolver{files: map[string]string{"a.csv": "x,y"}}, client)

	if _, err := svc.Analyze(context.Background(), "guest:abc", true, Request{FileIDs: []string{"a.csv"}, Prompt: "p"}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	listed, _ := runs.ListByUser(context.Background(), "guest:abc", 10, 0)
	if len(listed) != 0 {
		t.Fatalf("guest runs must not be recorded, got %d", len(listed))
	}
}

func TestAnalyzeSubstitutesDiagnosticForEmptyText(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{
		Text:  "",
		Usage: llm.Usage{InputTokens: 100, OutputTokens: 1500, ReasoningTokens: 42, TotalTokens: 1600},
	}}
	svc, _ := newTestService(&fakeResolver{files: map[string]string{"a.csv": "x,y"}}, client)

	result, err := svc.Analyze(context.Background(), "user-1", false, Request{
		FileIDs:   []string{"a.csv"},
		Prompt:    "p",
		Model:     "gpt-5-mini",
		MaxTokens: intPtr(1500),
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.GeneratedText == "" || !strings.Contains(result.GeneratedText, "1500") {
		t.Fatalf("expected diagnostic naming the cap, got %q", result.GeneratedText)
	}
	if result.Statistics.ReasoningTokens != 42 {
		t.Fatalf("reasoning tokens changed: %d", result.Statistics.ReasoningTokens)
	}
	if result.Artifact != nil {
		t.Fatalf("diagnostic text must not produce an artifact")
	}
}

func TestAnalyzeSurfacesProviderError(t *testing.T) {
	client := &fakeLLM{err: &llm.ProviderError{StatusCode: 429, Body: `{"error":{"message":"slow down"}}`}}
	svc, runs := newTestService(&fakeResolver{files: map[string]string{"a.csv": "x,y"}}, client)

	_, err := svc.Analyze(context.Background(), "user-1", false, Request{FileIDs: []string{"a.csv"}, Prompt: "p"})
	var providerErr *llm.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.StatusCode != 429 || !strings.Contains(providerErr.Body, "slow down") {
		t.Fatalf("provider error not surfaced untranslated: %+v", providerErr)
	}
	if len(client.requests) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(client.requests))
	}
	listed, _ := runs.ListByUser(context.Background(), "user-1", 10, 0)
	if len(listed) != 0 {
		t.Fatalf("failed analyses must not be recorded")
	}
}

func TestAnalyzeCanceledContext(t *testing.T) {
	client := &fakeLLM{}
	svc, _ := newTestService(&fakeResolver{files: map[string]string{"a.csv": "x,y"}}, client)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, "user-1", false, Request{FileIDs: []string{"a.csv"}, Prompt: "p"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("provider should not be called")
	}
}

func TestAnalyzeWithStoredFiles(t *testing.T) {
	store := files.NewService(localstore.New(t.TempDir()))
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	farm, err := store.Upload(context.Background(), "user-1", files.CategoryFarmData, "yields.csv", strings.NewReader("field,yield\nA,10"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	now = now.Add(time.Second)
	cert, err := store.Upload(context.Background(), "user-1", files.CategoryCertification, "rules.txt", strings.NewReader("No synthetic inputs."))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	client := &fakeLLM{resp: llm.Response{Text: "compliant"}}
	svc := NewService(store, client, nil, "gpt-4o-mini")

	result, err := svc.Analyze(context.Background(), "user-1", false, Request{
		FileIDs: []string{cert.ID, farm.ID},
		Prompt:  "check compliance",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.GeneratedText != "compliant" {
		t.Fatalf("unexpected text %q", result.GeneratedText)
	}
	prompt := client.requests[0].Messages[1].Content
	if !strings.Contains(prompt, "=== File: rules.txt ===\nNo synthetic inputs.") {
		t.Fatalf("missing certification section:\n%s", prompt)
	}
	if strings.Index(prompt, "rules.txt") > strings.Index(prompt, "yields.csv") {
		t.Fatalf("caller order not preserved:\n%s", prompt)
	}

	if _, err := svc.Analyze(context.Background(), "user-2", false, Request{FileIDs: []string{farm.ID}, Prompt: "p"}); !errors.Is(err, ErrNoReadableContent) {
		t.Fatalf("another user's file must not resolve, got %v", err)
	}
}

func TestGetRunErrors(t *testing.T) {
	svc, _ := newTestService(&fakeResolver{}, &fakeLLM{})
	noHistory, _ := newTestService(&fakeResolver{}, &fakeLLM{})
	noHistory.History = nil

	tests := []struct {
		name    string
		svc     *Service
		owner   string
		runID   string
		wantErr error
	}{
		{name: "no owner", svc: svc, owner: " ", runID: "run-1", wantErr: ErrUnauthorized},
		{name: "blank id", svc: svc, owner: "user-1", runID: "", wantErr: ErrValidation},
		{name: "unknown id", svc: svc, owner: "user-1", runID: "run-9", wantErr: ErrRunNotFound},
		{name: "history disabled", svc: noHistory, owner: "user-1", runID: "run-1", wantErr: ErrRunNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.svc.GetRun(context.Background(), tt.owner, tt.runID); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
