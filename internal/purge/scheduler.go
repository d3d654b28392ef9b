// Package purge deletes a confirmed match set, choosing per message between
// the platform's bulk delete (recent messages) and single deletes (old ones).
package purge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-purge/internal/logger"
	"chat-purge/internal/models"
	"chat-purge/internal/platform"
)

const (
	PathBatch  = "batch"
	PathSingle = "single"
)

// Options tunes chunking and pacing
type Options struct {
	// BatchMaxAge is the oldest a message may be for bulk deletion
	BatchMaxAge time.Duration
	// BatchSize is the largest bulk-delete chunk (platform limit 100)
	BatchSize int
	// BatchPause separates consecutive bulk-delete calls
	BatchPause time.Duration
	// SinglePause is inserted after every SinglePauseEvery single deletes
	SinglePause      time.Duration
	SinglePauseEvery int
	// ProgressEverySingle reports progress every n single deletes
	ProgressEverySingle int
}

func DefaultOptions() Options {
	return Options{
		BatchMaxAge:         14 * 24 * time.Hour,
		BatchSize:           100,
		BatchPause:          time.Second,
		SinglePause:         time.Second,
		SinglePauseEvery:    5,
		ProgressEverySingle: 20,
	}
}

// Progress is a running tally
type Progress struct {
	Deleted int
	Failed  int
	Total   int
}

type ProgressFunc func(Progress)

// Result is the final tally; Deleted+Failed == Attempted
type Result struct {
	Attempted     int
	Deleted       int
	Failed        int
	ChannelErrors map[string]error
}

// Scheduler runs deletions. It never fails as a whole: per-message and
// per-chunk errors are counted, and a channel the bot cannot delete in is
// counted as failed in full.
type Scheduler struct {
	deleter platform.Deleter
	opts    Options

	// Sleep blocks for d or until ctx is done
	Sleep func(ctx context.Context, d time.Duration) error
	// OnDeletion observes every deletion call outcome, n messages at a time
	OnDeletion func(path string, ok bool, n int)
}

func NewScheduler(deleter platform.Deleter, opts Options) *Scheduler {
	defaults := DefaultOptions()
	if opts.BatchSize <= 0 || opts.BatchSize > defaults.BatchSize {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.BatchMaxAge <= 0 {
		opts.BatchMaxAge = defaults.BatchMaxAge
	}
	if opts.SinglePauseEvery <= 0 {
		opts.SinglePauseEvery = defaults.SinglePauseEvery
	}
	if opts.ProgressEverySingle <= 0 {
		opts.ProgressEverySingle = defaults.ProgressEverySingle
	}
	return &Scheduler{
		deleter: deleter,
		opts:    opts,
		Sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// channelGroup is one channel's matches split by age
type channelGroup struct {
	channelID string
	recent    []models.MessageRef
	old       []models.MessageRef
}

// partition groups refs by channel, in first-seen order, and splits each group
// into messages no older than maxAge at now and the rest.
func partition(refs []models.MessageRef, now time.Time, maxAge time.Duration) []channelGroup {
	cutoff := now.Add(-maxAge)
	var groups []channelGroup
	byChannel := make(map[string]int)

	for _, ref := range refs {
		i, ok := byChannel[ref.ChannelID]
		if !ok {
			i = len(groups)
			byChannel[ref.ChannelID] = i
			groups = append(groups, channelGroup{channelID: ref.ChannelID})
		}
		if ref.CreatedAt.Before(cutoff) {
			groups[i].old = append(groups[i].old, ref)
		} else {
			groups[i].recent = append(groups[i].recent, ref)
		}
	}
	return groups
}

// Run deletes refs; now is the confirmation time used for the age split
func (s *Scheduler) Run(ctx context.Context, refs []models.MessageRef, now time.Time, progress ProgressFunc) Result {
	r := &run{
		s:        s,
		progress: progress,
		result:   Result{Attempted: len(refs), ChannelErrors: make(map[string]error)},
	}

	strategies := []struct {
		strategy strategy
		pick     func(channelGroup) []models.MessageRef
	}{
		{batchStrategy{}, func(g channelGroup) []models.MessageRef { return g.recent }},
		{singleStrategy{}, func(g channelGroup) []models.MessageRef { return g.old }},
	}

	for _, g := range partition(refs, now, s.opts.BatchMaxAge) {
		var abort error
		for _, st := range strategies {
			items := st.pick(g)
			if len(items) == 0 {
				continue
			}
			if abort != nil {
				r.fail(len(items))
				continue
			}
			if done, err := st.strategy.run(ctx, r, g.channelID, items); err != nil {
				abort = err
				r.fail(len(items) - done)
			}
		}

		if abort != nil {
			r.result.ChannelErrors[g.channelID] = abort
			logger.Warningf("Stopped deleting in channel %s: %v", g.channelID, abort)
		}
		r.report()
	}

	logger.Infof("Purge finished: %d attempted, %d deleted, %d failed, %d channel errors",
		r.result.Attempted, r.result.Deleted, r.result.Failed, len(r.result.ChannelErrors))
	return r.result
}

// run is the state shared by both strategies during one Scheduler.Run
type run struct {
	s        *Scheduler
	progress ProgressFunc
	result   Result

	batchCalls  int
	singleCalls int
}

func (r *run) record(path string, n int, err error) {
	if err != nil {
		r.result.Failed += n
	} else {
		r.result.Deleted += n
	}
	if r.s.OnDeletion != nil {
		r.s.OnDeletion(path, err == nil, n)
	}
}

// fail counts messages that were never sent to the platform
func (r *run) fail(n int) {
	r.result.Failed += n
}

func (r *run) report() {
	if r.progress == nil {
		return
	}
	r.progress(Progress{Deleted: r.result.Deleted, Failed: r.result.Failed, Total: r.result.Attempted})
}

// fatal reports whether err stops all further work in the channel
func fatal(ctx context.Context, err error) error {
	if errors.Is(err, platform.ErrAccessDenied) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("purge interrupted: %w", ctxErr)
	}
	return nil
}

// strategy deletes one channel's messages along one deletion path. It returns
// how many items it dealt with and a non-nil error if the rest of the channel
// must be abandoned.
type strategy interface {
	run(ctx context.Context, r *run, channelID string, refs []models.MessageRef) (int, error)
}

type batchStrategy struct{}

func (batchStrategy) run(ctx context.Context, r *run, channelID string, refs []models.MessageRef) (int, error) {
	size := r.s.opts.BatchSize
	done := 0
	for start := 0; start < len(refs); start += size {
		if err := ctx.Err(); err != nil {
			return done, fmt.Errorf("purge interrupted: %w", err)
		}
		if r.batchCalls > 0 {
			if err := r.s.Sleep(ctx, r.s.opts.BatchPause); err != nil {
				return done, fmt.Errorf("purge interrupted: %w", err)
			}
		}

		chunk := refs[start:min(start+size, len(refs))]
		ids := make([]string, len(chunk))
		for i, ref := range chunk {
			ids[i] = ref.MessageID
		}

		err := r.s.deleter.DeleteBatch(ctx, channelID, ids)
		r.batchCalls++
		r.record(PathBatch, len(chunk), err)
		done += len(chunk)
		if err != nil {
			logger.Warningf("Bulk delete of %d messages in channel %s failed: %v", len(chunk), channelID, err)
		}
		r.report()

		if err != nil {
			if abort := fatal(ctx, err); abort != nil {
				return done, abort
			}
		}
	}
	return done, nil
}

type singleStrategy struct{}

func (singleStrategy) run(ctx context.Context, r *run, channelID string, refs []models.MessageRef) (int, error) {
	every := r.s.opts.SinglePauseEvery
	done := 0
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return done, fmt.Errorf("purge interrupted: %w", err)
		}
		if r.singleCalls > 0 && r.singleCalls%every == 0 {
			if err := r.s.Sleep(ctx, r.s.opts.SinglePause); err != nil {
				return done, fmt.Errorf("purge interrupted: %w", err)
			}
		}

		err := r.s.deleter.DeleteOne(ctx, channelID, ref.MessageID)
		r.singleCalls++
		r.record(PathSingle, 1, err)
		done++
		if err != nil {
			logger.Debugf("Delete of message %s in channel %s failed: %v", ref.MessageID, channelID, err)
		}
		if r.singleCalls%r.s.opts.ProgressEverySingle == 0 {
			r.report()
		}

		if err != nil {
			if abort := fatal(ctx, err); abort != nil {
				return done, abort
			}
		}
	}
	return done, nil
}
