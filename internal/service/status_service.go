package service

import (
	"context"
)

// CacheInfo reports cache server diagnostics. *cache.Client satisfies it.
type CacheInfo interface {
	Info(ctx context.Context) (string, error)
}

// Pinger checks database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatusReport is the diagnostic payload of GET /v1/status.
type StatusReport struct {
	Cache string `json:"cache"`
	DB    string `json:"db"`
}

// StatusService gathers diagnostics from the backing services.
type StatusService interface {
	Report(ctx context.Context) StatusReport
}

type statusService struct {
	cache CacheInfo
	db    Pinger
}

// NewStatusService creates a status service. A nil db means the in-memory
// store is in use.
func NewStatusService(cache CacheInfo, db Pinger) StatusService {
	return &statusService{cache: cache, db: db}
}

// Report never fails; each probe's error text becomes its field.
func (s *statusService) Report(ctx context.Context) StatusReport {
	var report StatusReport

	if s.cache == nil {
		report.Cache = "disabled"
	} else if info, err := s.cache.Info(ctx); err != nil {
		report.Cache = err.Error()
	} else {
		report.Cache = info
	}

	if s.db == nil {
		report.DB = "memory"
	} else if err := s.db.PingContext(ctx); err != nil {
		report.DB = err.Error()
	} else {
		report.DB = "ok"
	}

	return report
}
