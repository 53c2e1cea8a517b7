package files

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	localstore "farmdata-backend/internal/shared/storage/object/local"
	"farmdata-backend/internal/shared/util"
)

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	svc := NewService(localstore.New(t.TempDir()))
	svc.Now = func() time.Time { return now }
	return svc, &now
}

func TestUploadBuildsScopedKey(t *testing.T) {
	svc, _ := newTestService(t)

	file, err := svc.Upload(context.Background(), "google:123", CategoryFarmData, "field notes.csv", strings.NewReader("a,b\n1,2"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	wantID := "1772445600000_field_notes.csv"
	if file.ID != wantID {
		t.Fatalf("expected id %q, got %q", wantID, file.ID)
	}
	wantKey := util.HashUserKey("google:123") + "/farm-data/" + wantID
	if file.StorageKey != wantKey {
		t.Fatalf("expected key %q, got %q", wantKey, file.StorageKey)
	}
	if strings.Contains(file.StorageKey, ":") {
		t.Fatalf("owner id leaked into key %q", file.StorageKey)
	}
	if file.Name != "field_notes.csv" || file.Size != 7 || file.Category != CategoryFarmData {
		t.Fatalf("unexpected file %+v", file)
	}
}

func TestUploadLegacyHasNoCategorySegment(t *testing.T) {
	svc, _ := newTestService(t)

	file, err := svc.Upload(context.Background(), "user-1", CategoryLegacy, "report.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if want := util.HashUserKey("user-1") + "/1772445600000_report.pdf"; file.StorageKey != want {
		t.Fatalf("expected key %q, got %q", want, file.StorageKey)
	}
}

func TestUploadKeepsDotsInsideName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	file, err := svc.Upload(ctx, "user-1", CategoryFarmData, "yields..2024.csv", strings.NewReader("a,b"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if file.ID != "1772445600000_yields..2024.csv" || file.Name != "yields..2024.csv" {
		t.Fatalf("unexpected file %+v", file)
	}
	if _, err := svc.Resolve(ctx, "user-1", file.ID); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func TestUploadRejections(t *testing.T) {
	svc, _ := newTestService(t)
	svc.MaxSize = 8

	tests := []struct {
		name    string
		owner   string
		file    string
		body    string
		wantErr error
	}{
		{name: "unsupported", owner: "u", file: "virus.exe", body: "x", wantErr: ErrUnsupportedType},
		{name: "binary xls", owner: "u", file: "yields.xls", body: "x", wantErr: ErrUnsupportedType},
		{name: "too large", owner: "u", file: "big.csv", body: "123456789", wantErr: ErrTooLarge},
		{name: "empty", owner: "u", file: "empty.csv", body: "", wantErr: ErrInvalidInput},
		{name: "no owner", owner: " ", file: "a.csv", body: "x", wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.owner, CategoryFarmData, tt.file, strings.NewReader(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestListNewestFirstAndScoped(t *testing.T) {
	svc, now := newTestService(t)
	ctx := context.Background()

	for i, name := range []string{"first.csv", "second.csv", "third.csv"} {
		*now = now.Add(time.Duration(i+1) * time.Minute)
		if _, err := svc.Upload(ctx, "user-1", CategoryFarmData, name, strings.NewReader("x")); err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
	}
	if _, err := svc.Upload(ctx, "user-1", CategoryCertification, "rules.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("upload rules: %v", err)
	}
	if _, err := svc.Upload(ctx, "user-1", CategoryLegacy, "legacy.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("upload legacy: %v", err)
	}
	if _, err := svc.Upload(ctx, "user-2", CategoryFarmData, "other.csv", strings.NewReader("x")); err != nil {
		t.Fatalf("upload other: %v", err)
	}

	got, err := svc.List(ctx, "user-1", CategoryFarmData)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 files, got %+v", got)
	}
	if got[0].Name != "third.csv" || got[2].Name != "first.csv" {
		t.Fatalf("expected newest first, got %s..%s", got[0].Name, got[2].Name)
	}

	legacy, err := svc.List(ctx, "user-1", CategoryLegacy)
	if err != nil {
		t.Fatalf("List legacy: %v", err)
	}
	if len(legacy) != 1 || legacy[0].Name != "legacy.txt" {
		t.Fatalf("expected only the legacy file, got %+v", legacy)
	}
}

func TestResolvePrefersFarmData(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	farm, err := svc.Upload(ctx, "user-1", CategoryFarmData, "plan.txt", strings.NewReader("farm copy"))
	if err != nil {
		t.Fatalf("upload farm: %v", err)
	}
	if _, err := svc.Upload(ctx, "user-1", CategoryCertification, "plan.txt", strings.NewReader("cert copy")); err != nil {
		t.Fatalf("upload cert: %v", err)
	}

	got, err := svc.Resolve(ctx, "user-1", farm.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(got.Data) != "farm copy" || got.Category != CategoryFarmData {
		t.Fatalf("expected farm-data copy, got %q from %s", got.Data, got.Category)
	}
}

func TestResolveFallsBackToCertification(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cert, err := svc.Upload(ctx, "user-1", CategoryCertification, "standard.txt", strings.NewReader("cert only"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	got, err := svc.Resolve(ctx, "user-1", cert.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Category != CategoryCertification || string(got.Data) != "cert only" {
		t.Fatalf("unexpected resolution %+v", got.File)
	}
}

func TestResolveMissingAndForeign(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	other, err := svc.Upload(ctx, "user-2", CategoryFarmData, "secret.csv", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := svc.Resolve(ctx, "user-1", other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner's file, got %v", err)
	}
	if _, err := svc.Resolve(ctx, "user-1", "123_missing.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Resolve(ctx, "user-1", "../etc/passwd"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOpenAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	file, err := svc.Upload(ctx, "user-1", CategoryFarmData, "a.json", strings.NewReader(`{"a":1}`))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	_, rc, err := svc.Open(ctx, "user-1", CategoryFarmData, file.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected content %q", data)
	}

	if err := svc.Delete(ctx, "user-1", CategoryFarmData, file.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "user-1", CategoryFarmData, file.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory(" Farm-Data "); err != nil || c != CategoryFarmData {
		t.Fatalf("unexpected %q %v", c, err)
	}
	if _, err := ParseCategory("photos"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
