package worker

import (
	"context"
	"time"
)

const dnsRefreshInterval = 5 * time.Minute

// DNSRefresher is satisfied by *dnscache.Resolver.
type DNSRefresher interface {
	Refresh(clearUnused bool)
}

// DNSRefreshWorker keeps the provider transport's DNS cache warm and evicts
// hosts that stopped being dialed.
type DNSRefreshWorker struct {
	resolver DNSRefresher
	interval time.Duration
}

// NewDNSRefreshWorker creates a DNSRefreshWorker.
func NewDNSRefreshWorker(resolver DNSRefresher, interval time.Duration) *DNSRefreshWorker {
	if interval <= 0 {
		interval = dnsRefreshInterval
	}
	return &DNSRefreshWorker{resolver: resolver, interval: interval}
}

// Name returns the worker identifier.
func (w *DNSRefreshWorker) Name() string { return "dns_refresh" }

// Run refreshes cached lookups on every tick until ctx is cancelled.
func (w *DNSRefreshWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.resolver.Refresh(true)
		case <-ctx.Done():
			return nil
		}
	}
}
