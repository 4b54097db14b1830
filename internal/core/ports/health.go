package ports

import "context"

// HealthChecker checks one dependency of the cache process.
// Check returns a non-nil error when the dependency is unusable.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}
