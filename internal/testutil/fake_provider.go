// Package testutil provides configurable test fakes for gateway interfaces.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// FakeProvider is a configurable gateway.Provider for testing.
type FakeProvider struct {
	ProviderName string
	FetchFn      func(ctx context.Context, target string) ([]byte, error)

	calls atomic.Int32
}

// Name returns the configured provider name.
func (f *FakeProvider) Name() string { return f.ProviderName }

// Fetch delegates to FetchFn or returns a small JSON document.
func (f *FakeProvider) Fetch(ctx context.Context, target string) ([]byte, error) {
	f.calls.Add(1)
	if f.FetchFn != nil {
		return f.FetchFn(ctx, target)
	}
	return []byte(`{"source":"` + f.ProviderName + `"}`), nil
}

// Calls reports how many times Fetch was invoked.
func (f *FakeProvider) Calls() int { return int(f.calls.Load()) }

// Failing returns a provider whose every call fails with err.
func Failing(name string, err error) *FakeProvider {
	return &FakeProvider{
		ProviderName: name,
		FetchFn: func(context.Context, string) ([]byte, error) {
			return nil, err
		},
	}
}

// Returning returns a provider whose every call succeeds with body.
func Returning(name string, body string) *FakeProvider {
	return &FakeProvider{
		ProviderName: name,
		FetchFn: func(context.Context, string) ([]byte, error) {
			return []byte(body), nil
		},
	}
}

// FakeRecorder collects fetch records in memory.
type FakeRecorder struct {
	mu      sync.Mutex
	records []gateway.FetchRecord
}

// Record stores r.
func (r *FakeRecorder) Record(rec gateway.FetchRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (r *FakeRecorder) Records() []gateway.FetchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gateway.FetchRecord(nil), r.records...)
}
