package files

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Category is the storage folder a file lives in below its owner key.
type Category string

const (
	CategoryFarmData      Category = "farm-data"
	CategoryCertification Category = "certification-requirements"
	// CategoryLegacy marks single-file uploads stored directly under the owner key.
	CategoryLegacy Category = ""
)

// ResolveOrder is the lookup order for analysis; farm data wins name collisions.
var ResolveOrder = []Category{CategoryFarmData, CategoryCertification}

// ParseCategory validates a category from a request.
func ParseCategory(raw string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategoryFarmData, CategoryCertification:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, raw)
	}
}

// File is a stored upload. ID is the object name, unique per owner and category.
type File struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   Category  `json:"category,omitempty"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
	StorageKey string    `json:"storageKey"`
}

// Resolved is a file found for analysis along with its raw bytes.
type Resolved struct {
	File
	Data []byte
}

// AllowedExtensions lists the accepted upload types with their content types.
// Binary .xls has no extractor and is not accepted.
var AllowedExtensions = map[string]string{
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".json": "application/json",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".xml":  "application/xml",
}

func contentTypeFor(name string) (string, bool) {
	ct, ok := AllowedExtensions[strings.ToLower(path.Ext(name))]
	return ct, ok
}
