package repo

import "go.uber.org/zap"

// Repository aggregates the gateway's Redis-backed stores.
type Repository struct {
	log    *zap.Logger
	client *RedisClient

	Invocations *InvocationRepository
}

// NewRepository connects to Redis and wires the per-concern repositories.
func NewRepository(log *zap.Logger, addr string) *Repository {
	log = log.Named("repo")
	client := newRedisClient(addr, 0, log)

	return &Repository{
		log:         log,
		client:      client,
		Invocations: newInvocationRepository(log, client),
	}
}

// Close releases the underlying Redis connection pool.
func (r *Repository) Close() error {
	return r.client.Close()
}
