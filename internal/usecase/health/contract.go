package health

import "context"

// Pinger checks store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker checks an external provider (embedding API, chat model, cross-encoder).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
