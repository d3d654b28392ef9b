// Package service ties scanning, querying, confirmation and deletion together
// behind the operations the bot commands and the CLI call.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chat-purge/internal/cache"
	"chat-purge/internal/index"
	"chat-purge/internal/logger"
	"chat-purge/internal/metrics"
	"chat-purge/internal/models"
	"chat-purge/internal/pending"
	"chat-purge/internal/platform"
	"chat-purge/internal/purge"
	"chat-purge/internal/query"
	"chat-purge/internal/scanner"
	"chat-purge/internal/storage"
)

var (
	// ErrScanInProgress is returned when a scan is requested while one is running
	ErrScanInProgress = errors.New("a scan is already in progress")
	// ErrInvalidPercentage is returned for percentages outside 1..100
	ErrInvalidPercentage = errors.New("percentage must be between 1 and 100")
	// ErrNothingSelected means matches were found but the percentage selects none of them
	ErrNothingSelected = errors.New("percentage selects no messages")
)

// QueryRequest is one purge search. Percentage 0 means 100.
type QueryRequest struct {
	SearchText         string
	ChannelID          string
	CurrentChannelOnly bool
	TargetAuthorID     string
	Percentage         int
}

type QueryResult struct {
	// OperationID names the pending request this query opened
	OperationID string
	Found       int
	Selected    int
	Percentage  int
	ExpiresAt   time.Time
}

// CacheStatus describes the current snapshot
type CacheStatus struct {
	Present     bool
	SnapshotID  string
	ScannedAt   time.Time
	Age         time.Duration
	MaxAge      time.Duration
	Fresh       bool
	Messages    int
	Channels    int
	UniqueWords int
	Pending     int
	LastScan    *models.ScanRecord
}

type Options struct {
	Platform  platform.Platform
	Cache     *cache.Store
	Pending   *pending.Store
	Scanner   *scanner.Scanner
	Scheduler *purge.Scheduler
	History   storage.ScanHistory
}

// Purger is safe for concurrent use. Only one scan runs at a time; queries
// keep using the previous snapshot until a scan replaces it.
type Purger struct {
	platform  platform.Platform
	cache     *cache.Store
	engine    *query.Engine
	pending   *pending.Store
	scanner   *scanner.Scanner
	scheduler *purge.Scheduler
	history   storage.ScanHistory

	now    func() time.Time
	scanMu sync.Mutex
}

func NewPurger(opts Options) *Purger {
	p := &Purger{
		platform:  opts.Platform,
		cache:     opts.Cache,
		engine:    query.NewEngine(),
		pending:   opts.Pending,
		scanner:   opts.Scanner,
		scheduler: opts.Scheduler,
		history:   opts.History,
		now:       time.Now,
	}
	if p.pending == nil {
		p.pending = pending.NewStore(pending.DefaultTTL)
	}
	if p.history == nil {
		p.history = storage.NewMemoryScanHistory()
	}
	if p.scanner == nil {
		p.scanner = scanner.New(opts.Platform, 0)
	}
	if p.scheduler == nil {
		p.scheduler = purge.NewScheduler(opts.Platform, purge.DefaultOptions())
		p.scheduler.OnDeletion = metrics.ObserveDeletion
	}
	return p
}

// SetClock replaces the time source, including the one stamping new snapshots
func (p *Purger) SetClock(now func() time.Time) {
	p.now = now
	p.scanner.SetClock(now)
}

// PendingTTL is how long a query waits for confirmation
func (p *Purger) PendingTTL() time.Duration {
	return p.pending.TTL()
}

// CacheMaxAge is the snapshot freshness window
func (p *Purger) CacheMaxAge() time.Duration {
	return p.cache.MaxAge()
}

func (p *Purger) PlatformName() string {
	return p.platform.Name()
}

// Scan rebuilds the snapshot from the platform's full history
func (p *Purger) Scan(ctx context.Context, progress scanner.ProgressFunc) (scanner.Summary, error) {
	if !p.scanMu.TryLock() {
		return scanner.Summary{}, ErrScanInProgress
	}
	defer p.scanMu.Unlock()

	logger.Infof("Starting %s history scan", p.platform.Name())
	snap, summary, err := p.scanner.Run(ctx, progress)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("failed").Inc()
		return summary, err
	}

	if err := p.cache.Replace(snap); err != nil {
		metrics.ScansTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("failed to store snapshot: %w", err)
	}
	metrics.ScansTotal.WithLabelValues("ok").Inc()
	metrics.ScannedMessagesTotal.Add(float64(summary.TotalMessages))
	metrics.SnapshotMessages.Set(float64(snap.Len()))

	rec := &models.ScanRecord{
		SnapshotID:      snap.ID,
		Platform:        p.platform.Name(),
		TotalMessages:   summary.TotalMessages,
		TotalChannels:   summary.TotalChannels,
		SkippedChannels: summary.SkippedChannels,
		UniqueWords:     summary.UniqueWords,
		ScannedAt:       snap.ScannedAt,
	}
	if err := p.history.Add(ctx, rec); err != nil {
		logger.Warningf("Failed to record scan %s: %v", snap.ID, err)
	}
	return summary, nil
}

// Query searches the snapshot and stores the selection as the requester's
// pending purge, replacing any earlier one.
func (p *Purger) Query(requesterID string, req QueryRequest) (QueryResult, error) {
	pct := req.Percentage
	if pct == 0 {
		pct = 100
	}
	if pct < 1 || pct > 100 {
		metrics.QueriesTotal.WithLabelValues("invalid").Inc()
		return QueryResult{}, ErrInvalidPercentage
	}

	now := p.now()
	snap, err := p.cache.Check(now)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(cacheOutcome(err)).Inc()
		return QueryResult{}, err
	}

	q := query.Query{Phrase: req.SearchText, AuthorID: req.TargetAuthorID}
	if req.CurrentChannelOnly {
		q.ChannelID = req.ChannelID
	}

	matches, err := p.engine.Find(snap, q)
	if err != nil {
		switch {
		case errors.Is(err, query.ErrNoMatches):
			metrics.QueriesTotal.WithLabelValues("no_matches").Inc()
		default:
			metrics.QueriesTotal.WithLabelValues("invalid").Inc()
		}
		return QueryResult{}, err
	}

	res := QueryResult{Found: len(matches), Percentage: pct}
	if len(pending.Truncate(matches, pct)) == 0 {
		// the new query still replaces whatever was pending
		_ = p.pending.Cancel(requesterID)
		metrics.QueriesTotal.WithLabelValues("nothing_selected").Inc()
		return res, ErrNothingSelected
	}

	op := p.pending.Open(requesterID, matches, strings.TrimSpace(req.SearchText), pct, now)
	res.OperationID = op.ID
	res.Selected = len(op.Matches)
	res.ExpiresAt = op.ExpiresAt(p.pending.TTL())
	metrics.QueriesTotal.WithLabelValues("matched").Inc()

	logger.Infof("Requester %s queried %q: %d found, %d selected (%d%%)",
		requesterID, req.SearchText, res.Found, res.Selected, pct)
	return res, nil
}

func cacheOutcome(err error) string {
	if errors.Is(err, cache.ErrCacheStale) {
		return "stale"
	}
	return "missing"
}

// Deletion is a pending selection that has been claimed for deletion. Nobody
// else can confirm it any more; Run performs it.
type Deletion struct {
	Op          models.PendingClear
	ConfirmedAt time.Time

	scheduler *purge.Scheduler
}

// Len returns how many messages will be attempted
func (d *Deletion) Len() int {
	return len(d.Op.Matches)
}

// Run deletes the claimed messages, splitting them by age at confirmation time
func (d *Deletion) Run(ctx context.Context, progress purge.ProgressFunc) purge.Result {
	return d.scheduler.Run(ctx, d.Op.Matches, d.ConfirmedAt, progress)
}

// Claim takes the requester's pending selection out of the store. With a
// non-empty opID only that request is accepted; a newer one yields
// pending.ErrReplaced and stays pending.
func (p *Purger) Claim(requesterID, opID string) (*Deletion, error) {
	now := p.now()
	op, err := p.pending.Claim(requesterID, opID, now)
	if err != nil {
		return nil, err
	}

	logger.Infof("Requester %s confirmed deletion of %d messages matching %q", requesterID, len(op.Matches), op.SearchText)
	return &Deletion{Op: op, ConfirmedAt: now, scheduler: p.scheduler}, nil
}

// Confirm claims and deletes the requester's pending selection. Deletion is
// not cancellable once started; ctx only bounds the underlying API calls.
func (p *Purger) Confirm(ctx context.Context, requesterID string, progress purge.ProgressFunc) (purge.Result, error) {
	d, err := p.Claim(requesterID, "")
	if err != nil {
		return purge.Result{}, err
	}
	return d.Run(ctx, progress), nil
}

// Cancel discards the requester's pending selection
func (p *Purger) Cancel(requesterID string) error {
	return p.pending.Cancel(requesterID)
}

// CancelOperation discards the pending selection only if it is opID
func (p *Purger) CancelOperation(requesterID, opID string) error {
	return p.pending.Discard(requesterID, opID)
}

// Pending returns the requester's pending selection without consuming it
func (p *Purger) Pending(requesterID string) (models.PendingClear, error) {
	return p.pending.Peek(requesterID, p.now())
}

// Status reports on the current snapshot. Loading a corrupt cache file is
// reported as no snapshot.
func (p *Purger) Status(ctx context.Context) CacheStatus {
	now := p.now()
	st := CacheStatus{MaxAge: p.cache.MaxAge(), Pending: p.pending.Len()}

	if last, err := p.history.Latest(ctx); err != nil {
		logger.Warningf("Failed to read scan history: %v", err)
	} else {
		st.LastScan = last
	}

	snap, err := p.cache.Load()
	if err != nil {
		return st
	}
	fillStatus(&st, snap, now)
	return st
}

func fillStatus(st *CacheStatus, snap *index.Snapshot, now time.Time) {
	st.Present = true
	st.SnapshotID = snap.ID
	st.ScannedAt = snap.ScannedAt
	st.Age = snap.Age(now)
	st.Fresh = snap.IsFresh(now, st.MaxAge)
	st.Messages = snap.Len()
	st.Channels = snap.Channels()
	st.UniqueWords = snap.UniqueWords()
}
