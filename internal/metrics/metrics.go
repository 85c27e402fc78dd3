// Package metrics collects in-process counters for wallet sessions and chain requests.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// Wallet session requests (eth_requestAccounts, personal_sign, ...)
	sessionRequests     atomic.Int64
	sessionErrors       atomic.Int64
	sessionLatencyNanos atomic.Int64

	// Chain RPC requests made through the request client
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcLatencyNanos atomic.Int64

	// Adapter operations (connect, sign, switch, ...)
	walletOpsTotal  atomic.Int64
	walletOpsErrors atomic.Int64

	// Chain client cache
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	// Per-blockchain RPC calls, keyed by blockchain name
	chainCalls sync.Map
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordSessionRequest records a wallet session request.
func (m *Metrics) RecordSessionRequest(duration time.Duration, err error) {
	m.sessionRequests.Add(1)
	m.sessionLatencyNanos.Add(duration.Nanoseconds())
	if err != nil {
		m.sessionErrors.Add(1)
	}
}

// RecordRPCCall records a chain RPC call with its duration and success status.
func (m *Metrics) RecordRPCCall(blockchain string, duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}

	counter, _ := m.chainCalls.LoadOrStore(blockchain, &atomic.Int64{})
	counter.(*atomic.Int64).Add(1)
}

// RecordWalletOp records an adapter operation.
func (m *Metrics) RecordWalletOp(err error) {
	m.walletOpsTotal.Add(1)
	if err != nil {
		m.walletOpsErrors.Add(1)
	}
}

// RecordCacheHit records a chain client cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a chain client cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	SessionRequests     int64            `json:"session_requests"`
	SessionErrors       int64            `json:"session_errors"`
	SessionLatencyNanos int64            `json:"session_latency_nanos"`
	RPCCallsTotal       int64            `json:"rpc_calls_total"`
	RPCErrorsTotal      int64            `json:"rpc_errors_total"`
	RPCLatencyNanos     int64            `json:"rpc_latency_nanos"`
	WalletOpsTotal      int64            `json:"wallet_ops_total"`
	WalletOpsErrors     int64            `json:"wallet_ops_errors"`
	CacheHits           int64            `json:"cache_hits"`
	CacheMisses         int64            `json:"cache_misses"`
	ChainCalls          map[string]int64 `json:"chain_calls"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		SessionRequests:     m.sessionRequests.Load(),
		SessionErrors:       m.sessionErrors.Load(),
		SessionLatencyNanos: m.sessionLatencyNanos.Load(),
		RPCCallsTotal:       m.rpcCallsTotal.Load(),
		RPCErrorsTotal:      m.rpcErrorsTotal.Load(),
		RPCLatencyNanos:     m.rpcLatencyNanos.Load(),
		WalletOpsTotal:      m.walletOpsTotal.Load(),
		WalletOpsErrors:     m.walletOpsErrors.Load(),
		CacheHits:           m.cacheHits.Load(),
		CacheMisses:         m.cacheMisses.Load(),
		ChainCalls:          m.chainCallCounts(),
	}
}

// ChainCalls returns the number of RPC calls made against a blockchain.
func (m *Metrics) ChainCalls(blockchain string) int64 {
	if counter, ok := m.chainCalls.Load(blockchain); ok {
		return counter.(*atomic.Int64).Load()
	}
	return 0
}

// Blockchains returns the blockchains with recorded calls, sorted.
func (m *Metrics) Blockchains() []string {
	var names []string
	m.chainCalls.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

func (m *Metrics) chainCallCounts() map[string]int64 {
	out := make(map[string]int64)
	m.chainCalls.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

// SessionRequests returns the total number of session requests.
func (m *Metrics) SessionRequests() int64 {
	return m.sessionRequests.Load()
}

// SessionErrors returns the number of failed session requests.
func (m *Metrics) SessionErrors() int64 {
	return m.sessionErrors.Load()
}

// RPCCallsTotal returns the total number of RPC calls made.
func (m *Metrics) RPCCallsTotal() int64 {
	return m.rpcCallsTotal.Load()
}

// RPCErrorsTotal returns the total number of RPC errors.
func (m *Metrics) RPCErrorsTotal() int64 {
	return m.rpcErrorsTotal.Load()
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	return avgMs(m.rpcLatencyNanos.Load(), m.rpcCallsTotal.Load())
}

// SessionLatencyAvgMs returns the average session request latency in milliseconds.
func (m *Metrics) SessionLatencyAvgMs() float64 {
	return avgMs(m.sessionLatencyNanos.Load(), m.sessionRequests.Load())
}

func avgMs(nanos, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(nanos) / float64(count) / 1e6
}

// CacheHitRate returns the cache hit rate as a percentage (0-100).
// Returns 0 if no cache operations have occurred.
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.sessionRequests.Store(0)
	m.sessionErrors.Store(0)
	m.sessionLatencyNanos.Store(0)
	m.rpcCallsTotal.Store(0)
	m.rpcErrorsTotal.Store(0)
	m.rpcLatencyNanos.Store(0)
	m.walletOpsTotal.Store(0)
	m.walletOpsErrors.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.chainCalls.Range(func(k, _ any) bool {
		m.chainCalls.Delete(k)
		return true
	})
}
