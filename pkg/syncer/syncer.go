package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bucketsync/bucketsync/pkg/cache"
	"github.com/bucketsync/bucketsync/pkg/identity"
	"github.com/bucketsync/bucketsync/pkg/s3client"
)

// The cache is flushed every persistEvery processed records, bounding data
// loss on abrupt termination to the records since the last flush rather
// than paying a disk write per record.
const persistEvery = 10

const defaultCacheFile = ".bucketsync"

// Syncer drives a full sync run: it consumes a stream of file records,
// reconciles each against the remote store, keeps the local cache and the
// reporter informed, and once the stream has drained, runs the remote
// delete scan.
type Syncer struct {
	store    s3client.Store
	cache    *cache.Cache
	reporter Reporter
	planner  *Planner
	scanner  *Scanner
	opts     Options
	seen     mapset.Set[string]

	mu        sync.Mutex
	processed int
}

// New creates a Syncer. The store is the one dependency with no default;
// its absence is a configuration error. The cache file is loaded here, and
// a missing or corrupt file silently yields an empty cache.
func New(store s3client.Store, opts Options, reporter Reporter) (*Syncer, error) {
	if store == nil {
		return nil, errors.New("syncer: remote store is required")
	}
	if opts.CacheFile == "" {
		opts.CacheFile = defaultCacheFile
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	return &Syncer{
		store:    store,
		cache:    cache.Load(opts.CacheFile),
		reporter: reporter,
		planner:  NewPlanner(store, opts),
		scanner:  NewScanner(store, opts.Prefix, opts.Whitelist),
		opts:     opts,
		seen:     mapset.NewSet[string](),
	}, nil
}

// Run consumes records until the channel closes, then (when deletion is
// enabled) runs the delete scan and persists the cache one final time.
//
// produceErrs, when non-nil, carries the producer's terminal error and must
// be settled by the time records closes. A producer failure, like a
// canceled context, means the stream was truncated and the seen-key set is
// incomplete: the delete scan must not run against it.
//
// Records are processed by a bounded worker pool. A record's head-then-put
// sequence runs entirely inside one worker, every seen-key registration
// happens before the scan starts, and the first fatal error stops further
// records from starting; in-flight uploads are left to finish.
func (s *Syncer) Run(ctx context.Context, records <-chan *FileRecord, produceErrs <-chan error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

intake:
	for {
		select {
		case <-gctx.Done():
			break intake
		case rec, ok := <-records:
			if !ok {
				break intake
			}
			g.Go(func() error {
				return s.process(gctx, rec)
			})
		}
	}

	if err := g.Wait(); err != nil {
		// Unblock the producer; nothing further will be processed.
		go func() {
			for range records {
			}
		}()
		s.persist()
		return err
	}

	if err := ctx.Err(); err != nil {
		s.persist()
		return err
	}
	if produceErrs != nil {
		if err := <-produceErrs; err != nil {
			s.persist()
			return fmt.Errorf("produce records: %w", err)
		}
	}

	// The stream has fully drained: the seen-key set is complete and the
	// delete scan may compute the remote set-difference.
	if s.opts.Delete && !s.opts.Simulate {
		if err := s.scanner.Scan(ctx, s.seen, s.finish); err != nil {
			s.persist()
			return fmt.Errorf("delete scan: %w", err)
		}
	}

	if s.opts.Simulate {
		return nil
	}
	if err := s.cache.Persist(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// SeenKeys returns the set of destination keys registered this run.
func (s *Syncer) SeenKeys() mapset.Set[string] {
	return s.seen
}

func (s *Syncer) process(ctx context.Context, rec *FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec.Outcome.Key = DestinationKey(s.opts.Prefix, rec.Path)
	s.seen.Add(rec.Outcome.Key)

	if rec.Body == nil && rec.Reader != nil {
		return fmt.Errorf("%s: %w", rec.Path, ErrStreamedContent)
	}

	if s.opts.UseCache && !s.opts.Simulate && !s.opts.Force {
		fingerprint := identity.Fingerprint(rec.Body)
		if cached, ok := s.cache.Get(rec.Outcome.Key); ok && identity.Equal(cached, fingerprint) {
			rec.Outcome.Fingerprint = fingerprint
			rec.Outcome.State = StateCache
			s.finish(rec)
			return nil
		}
	}

	if err := s.planner.Reconcile(ctx, rec); err != nil {
		return err
	}
	s.finish(rec)
	return nil
}

// finish routes a settled record to the cache and the reporter. It is also
// the sink for the scanner's synthetic delete records.
func (s *Syncer) finish(rec *FileRecord) {
	if !s.opts.Simulate {
		s.record(rec)
	}
	if s.reporter != nil {
		s.reporter.Report(rec)
	}
}

func (s *Syncer) record(rec *FileRecord) {
	out := rec.Outcome
	switch {
	case out.State == StateDelete:
		s.cache.Remove(out.Key)
	case out.State == StateCache:
		// Already synchronized, nothing to change.
	case out.Fingerprint != "":
		s.cache.Put(out.Key, out.Fingerprint)
	}

	s.mu.Lock()
	s.processed++
	flush := s.processed%persistEvery == 0
	s.mu.Unlock()

	if flush {
		s.persist()
	}
}

func (s *Syncer) persist() {
	if s.opts.Simulate {
		return
	}
	if err := s.cache.Persist(); err != nil {
		slog.Warn("cache persist failed", "file", s.opts.CacheFile, "error", err)
	}
}
