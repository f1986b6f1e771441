package cache

import (
	"context"
	"time"
)

// ReportCache stores computed reports. Keys embed a per-store version so a
// Bump invalidates every report of that store at once.
type ReportCache interface {
	Version(ctx context.Context, storeID string) (int64, error)
	Bump(ctx context.Context, storeID string) error
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Version(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (NoopReportCache) Bump(_ context.Context, _ string) error {
	return nil
}

func (NoopReportCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}
