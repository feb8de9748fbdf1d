package model

import "context"

// Store is the durable key/value store behind the analysis cache and the
// settings record. Values are serialized text.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Notifier sends notifications for newly matching listings.
type Notifier interface {
	Notify(ctx context.Context, entries []CacheEntry) error
}

// ListingFilter decides whether a listing is worth dispatching at all.
type ListingFilter interface {
	Match(l Listing) bool
}

// AnalysisService evaluates one listing against the user's criteria.
type AnalysisService interface {
	Evaluate(ctx context.Context, req AnalysisRequest, settings Settings) (Verdict, string, error)
}
