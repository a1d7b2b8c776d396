// Package miner implements the Block Production Engine (PoA Proposer) of
// spec.md §4.3: genesis, slot scheduling, the production step, and circuit
// breaker-guarded failure handling — a single long-lived goroutine styled
// after the teacher's miner/worker.go sealing loop.
package miner

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/aitbc-network/chain-node/consensus/poa"
	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/txpool"
	"github.com/aitbc-network/chain-node/core/types"
	"github.com/aitbc-network/chain-node/gossip"
	"github.com/aitbc-network/chain-node/log"
	"github.com/aitbc-network/chain-node/metrics"
)

var minerLog = log.New("miner")

var metricSanitize = regexp.MustCompile(`[^0-9a-zA-Z]+`)

func sanitizeMetricSuffix(value string) string {
	s := metricSanitize.ReplaceAllString(value, "_")
	s = trimUnderscores(s)
	if s == "" {
		return "unknown"
	}
	return s
}

func trimUnderscores(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == '_' {
		start++
	}
	for end > start && s[end-1] == '_' {
		end--
	}
	return s[start:end]
}

var (
	perProposerCounters   = make(map[string]*metrics.Counter)
	perProposerCountersMu sync.Mutex
)

// perProposerCounter returns (creating if necessary) the
// poa_blocks_proposed_total_{sanitized_proposer_id} counter named in
// spec.md §4.3.
func perProposerCounter(proposerID string) *metrics.Counter {
	suffix := sanitizeMetricSuffix(proposerID)
	perProposerCountersMu.Lock()
	defer perProposerCountersMu.Unlock()
	if c, ok := perProposerCounters[suffix]; ok {
		return c
	}
	c := metrics.NewRegisteredCounter("poa_blocks_proposed_total_"+suffix, "blocks proposed by this proposer id")
	perProposerCounters[suffix] = c
	return c
}

var (
	metricBlocksProposed        = metrics.NewRegisteredCounter("blocks_proposed_total", "blocks locally produced")
	metricChainHeadHeight       = metrics.NewRegisteredGauge("chain_head_height", "height of the local chain head")
	metricLastBlockTxCount      = metrics.NewRegisteredGauge("last_block_tx_count", "tx count of the last produced block")
	metricLastBlockTotalFees    = metrics.NewRegisteredGauge("last_block_total_fees", "sum of fees in the last produced block")
	metricBlockBuildDuration    = metrics.NewRegisteredSummary("block_build_duration_seconds", "wall time spent building a block")
	metricBlockInterval         = metrics.NewRegisteredSummary("block_interval_seconds", "observed interval between consecutive blocks")
	metricProposeErrors         = metrics.NewRegisteredCounter("poa_propose_errors_total", "production steps that failed")
	metricSkippedCircuitBreaker = metrics.NewRegisteredCounter("blocks_skipped_circuit_breaker_total", "production attempts skipped while the breaker is open")
	metricProposerRotations     = metrics.NewRegisteredCounter("poa_proposer_rotations_total", "times the effective proposer id changed between blocks")
	metricDBErrors              = metrics.NewRegisteredCounter("poa_db_errors_total", "head reads that exhausted their retry budget")
	metricProposerRunning       = metrics.NewRegisteredGauge("poa_proposer_running", "1 while the proposer loop is active")
)

// Config bundles the tunables of spec.md §4.3.
type Config struct {
	ChainID           string
	ProposerID        string
	IntervalSeconds   int
	MaxBlockSizeBytes int
	MaxTxsPerBlock    int
}

// Miner is the long-lived block-production task. Start is idempotent; Stop
// signals cooperative cancellation and waits for the loop to exit.
type Miner struct {
	cfg     Config
	store   *rawdb.ChainStore
	pool    txpool.Pool
	broker  *gossip.Broker
	breaker *poa.CircuitBreaker

	mu              sync.Mutex
	cancel          context.CancelFunc
	done            chan struct{}
	lastProposerID  string
	publisher       *publisher
}

// New constructs a Miner over the given storage, mempool, and gossip
// broker.
func New(cfg Config, store *rawdb.ChainStore, pool txpool.Pool, broker *gossip.Broker, breaker *poa.CircuitBreaker) *Miner {
	if breaker == nil {
		breaker = poa.NewCircuitBreaker(5, 30*time.Second)
	}
	return &Miner{
		cfg:       cfg,
		store:     store,
		pool:      pool,
		broker:    broker,
		breaker:   breaker,
		publisher: newPublisher(broker, 64),
	}
}

// Start is idempotent: a second call while already running is a no-op. It
// ensures genesis exists, then launches the production loop.
func (m *Miner) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	if err := m.ensureGenesis(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.publisher.start()

	minerLog.Info("starting PoA proposer loop", "interval_seconds", m.cfg.IntervalSeconds)
	go m.runLoop(runCtx)
	return nil
}

// Stop signals cancellation and waits for the loop to exit.
func (m *Miner) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	minerLog.Info("stopping PoA proposer loop")
	cancel()
	<-done
	m.publisher.stop()
}

// IsHealthy reports whether the circuit breaker is not open.
func (m *Miner) IsHealthy() bool {
	return m.breaker.State() != poa.StateOpen
}

func (m *Miner) runLoop(ctx context.Context) {
	defer close(m.done)
	metricProposerRunning.Set(1)
	defer metricProposerRunning.Set(0)

	for {
		if !m.waitUntilNextSlot(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !m.breaker.AllowRequest() {
			minerLog.Warn("circuit breaker open, skipping block proposal")
			metricSkippedCircuitBreaker.Inc()
			continue
		}

		if err := m.proposeBlock(); err != nil {
			m.breaker.RecordFailure()
			minerLog.Error("failed to propose block", "err", err)
			metricProposeErrors.Inc()
			continue
		}
		m.breaker.RecordSuccess()
	}
}

// waitUntilNextSlot sleeps until T seconds have elapsed since the head's
// timestamp, waking early and returning false on cancellation.
func (m *Miner) waitUntilNextSlot(ctx context.Context) bool {
	head, ok := m.fetchHeadWithRetry()
	if !ok {
		return ctx.Err() == nil
	}
	if head == nil {
		return true
	}

	elapsed := time.Since(head.Timestamp)
	sleepFor := time.Duration(m.cfg.IntervalSeconds)*time.Second - elapsed
	if sleepFor <= 0 {
		return true
	}

	timer := time.NewTimer(sleepFor)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// fetchHeadWithRetry retries a head read up to three times with linear
// back-off (0.1s, 0.2s) per spec.md §4.3 failure semantics.
func (m *Miner) fetchHeadWithRetry() (*types.Block, bool) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		head, err := m.store.GetHead()
		if err == nil {
			return head, true
		}
		lastErr = err
		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
		}
	}
	minerLog.Error("failed to fetch chain head after 3 attempts", "err", lastErr)
	metricDBErrors.Inc()
	return nil, false
}
