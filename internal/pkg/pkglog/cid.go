package pkglog

import "context"

type chainIDContextKey struct{}

type jobIDContextKey struct{}

// GetCorrelationID returns the correlation ID stored in the context.
//
// Middleware is expected to set this value early in the request lifecycle so
// it can be attached to logs and propagated to downstream calls.
func GetCorrelationID(ctx context.Context) string {
	clm, ok := ctx.Value(chainIDContextKey{}).(string)
	if !ok {
		return "[invalid_chain_id]"
	}
	return clm
}

// SetCorrelationID stores a correlation ID into the context.
func SetCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, chainIDContextKey{}, cid)
}

// GetJobID returns the ingestion job ID stored in the context, or "".
func GetJobID(ctx context.Context) string {
	id, _ := ctx.Value(jobIDContextKey{}).(string)
	return id
}

// SetJobID stores an ingestion job ID so background logs carry it.
func SetJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDContextKey{}, jobID)
}
