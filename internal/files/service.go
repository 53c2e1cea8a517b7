package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"farmdata-backend/internal/shared/metrics"
	"farmdata-backend/internal/shared/storage/object"
	"farmdata-backend/internal/shared/telemetry"
	"farmdata-backend/internal/shared/util"
)

// MaxUploadSize caps a single upload.
const MaxUploadSize = 10 << 20

// Service stores, lists and resolves per-user files in the object store.
type Service struct {
	Store   object.ObjectStore
	Now     func() time.Time
	MaxSize int64
}

// NewService constructs a Service over store.
func NewService(store object.ObjectStore) *Service {
	return &Service{Store: store, Now: time.Now, MaxSize: MaxUploadSize}
}

// Upload stores r under <ownerKey>/<category>/<unix-millis>_<name>.
// CategoryLegacy stores directly under the owner key.
func (s *Service) Upload(ctx context.Context, owner string, category Category, name string, r io.Reader) (File, error) {
	ownerKey, err := ownerKeyFor(owner)
	if err != nil {
		return File{}, err
	}
	contentType, ok := contentTypeFor(name)
	if !ok {
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedType, path.Ext(name))
	}
	id, err := util.TimestampedName(path.Base(strings.ReplaceAll(name, "\\", "/")), s.now())
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	limit := s.maxSize()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return File{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return File{}, ErrTooLarge
	}
	if len(data) == 0 {
		return File{}, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}

	key := objectKey(ownerKey, category, id)
	size, err := s.Store.Put(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return File{}, fmt.Errorf("store upload: %w", err)
	}
	metrics.IncFileUploaded(string(category))

	return s.fileFromKey(ownerKey, category, object.ObjectInfo{Key: key, Size: size}), nil
}

// List returns the owner's files in category, newest first.
func (s *Service) List(ctx context.Context, owner string, category Category) ([]File, error) {
	ownerKey, err := ownerKeyFor(owner)
	if err != nil {
		return nil, err
	}
	folder := objectKey(ownerKey, category, "")
	infos, err := s.Store.List(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	out := make([]File, 0, len(infos))
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Key, folder+"/")
		if rest == info.Key || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, s.fileFromKey(ownerKey, category, info))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Open streams one file. The caller closes the reader.
func (s *Service) Open(ctx context.Context, owner string, category Category, id string) (File, io.ReadCloser, error) {
	ownerKey, err := ownerKeyFor(owner)
	if err != nil {
		return File{}, nil, err
	}
	if err := validateID(id); err != nil {
		return File{}, nil, err
	}
	key := objectKey(ownerKey, category, id)
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return File{}, nil, ErrNotFound
		}
		return File{}, nil, fmt.Errorf("open file: %w", err)
	}
	return s.fileFromKey(ownerKey, category, object.ObjectInfo{Key: key}), rc, nil
}

// Delete removes one file.
func (s *Service) Delete(ctx context.Context, owner string, category Category, id string) error {
	ownerKey, err := ownerKeyFor(owner)
	if err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, objectKey(ownerKey, category, id)); err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Resolve finds id for analysis, trying each folder in ResolveOrder.
// It returns ErrNotFound when no folder holds the file.
func (s *Service) Resolve(ctx context.Context, owner, id string) (Resolved, error) {
	for _, category := range ResolveOrder {
		file, rc, err := s.Open(ctx, owner, category, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Resolved{}, err
		}
		data, readErr := io.ReadAll(io.LimitReader(rc, s.maxSize()+1))
		rc.Close()
		if readErr != nil {
			return Resolved{}, fmt.Errorf("read %s: %w", id, readErr)
		}
		file.Size = int64(len(data))
		telemetry.Info("files.resolved", map[string]any{
			"file_id":  id,
			"category": string(category),
			"size":     file.Size,
		})
		return Resolved{File: file, Data: data}, nil
	}
	return Resolved{}, ErrNotFound
}

func (s *Service) fileFromKey(ownerKey string, category Category, info object.ObjectInfo) File {
	id := path.Base(info.Key)
	created, ok := util.UploadedAt(id)
	if !ok {
		created = info.LastModified
	}
	return File{
		ID:         id,
		Name:       util.OriginalName(id),
		Category:   category,
		Size:       info.Size,
		CreatedAt:  created,
		StorageKey: info.Key,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) maxSize() int64 {
	if s.MaxSize > 0 {
		return s.MaxSize
	}
	return MaxUploadSize
}

func ownerKeyFor(owner string) (string, error) {
	if strings.TrimSpace(owner) == "" {
		return "", fmt.Errorf("%w: missing owner", ErrInvalidInput)
	}
	return util.HashUserKey(owner), nil
}

func validateID(id string) error {
	clean, err := util.SanitizeFileName(id)
	if err != nil || clean != id {
		return fmt.Errorf("%w: invalid file id", ErrInvalidInput)
	}
	return nil
}

func objectKey(ownerKey string, category Category, id string) string {
	return path.Join(ownerKey, string(category), id)
}
