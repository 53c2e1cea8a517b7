package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Service encapsulates health-related checks.
type Service struct {
	DB          *sql.DB
	ObjectStore string
}

// NewService constructs a new health service. db may be nil when the
// in-memory repositories are in use.
func NewService(db *sql.DB, objectStore string) *Service {
	return &Service{DB: db, ObjectStore: objectStore}
}

// Status is the health payload.
type Status struct {
	OK          bool   `json:"ok"`
	Database    string `json:"database"`
	ObjectStore string `json:"objectStore"`
}

// Status reports whether the service can reach its database.
func (s *Service) Status(ctx context.Context) Status {
	status := Status{OK: true, Database: "memory", ObjectStore: s.ObjectStore}
	if s.DB == nil {
		return status
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		status.OK = false
		status.Database = "down"
		return status
	}
	status.Database = "up"
	return status
}
