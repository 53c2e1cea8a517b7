package analysis

import (
	"context"
	"time"

	"farmdata-backend/internal/files"
	"farmdata-backend/internal/history"
	"farmdata-backend/internal/llm"
)

type fakeResolver struct {
	files map[string]string
	calls []string
}

func (f *fakeResolver) Resolve(_ context.Context, _ string, id string) (files.Resolved, error) {
	f.calls = append(f.calls, id)
	text, ok := f.files[id]
	if !ok {
		return files.Resolved{}, files.ErrNotFound
	}
	return files.Resolved{File: files.File{ID: id, Name: id}, Data: []byte(text)}, nil
}

type fakeLLM struct {
	resp     llm.Response
	err      error
	requests []llm.ChatRequest
}

func (f *fakeLLM) Complete(_ context.Context, req llm.ChatRequest) (llm.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return f.resp, nil
}

func newTestService(resolver *fakeResolver, client *fakeLLM) (*Service, *history.MemoryRepo) {
	runs := history.NewMemoryRepo()
	svc := NewService(resolver, client, runs, "gpt-4o-mini")
	svc.Capabilities = llm.NewCapabilities()
	start := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	ticks := 0
	svc.Now = func() time.Time {
		ticks++
		return start.Add(time.Duration(ticks) * 1500 * time.Millisecond)
	}
	svc.NewID = func() string { return "run-1" }
	return svc, runs
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
