package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/bucketsync/bucketsync/pkg/s3client"
	"github.com/bucketsync/bucketsync/pkg/whitelist"
)

// Scanner reconciles remote deletions: after the local stream has drained it
// lists the remote prefix, diffs it against the keys seen this run, and bulk
// deletes whatever is left unprotected.
type Scanner struct {
	store     s3client.Store
	prefix    string
	whitelist []string
}

// NewScanner creates a delete scanner over store. Whitelist rules are
// compiled when first evaluated, so an invalid pattern surfaces during the
// scan rather than at construction.
func NewScanner(store s3client.Store, prefix string, rules []string) *Scanner {
	return &Scanner{
		store:     store,
		prefix:    prefix,
		whitelist: rules,
	}
}

// Scan lists the remote prefix and deletes every key not in seen, unless a
// whitelist rule protects it. One synthetic delete record per candidate is
// passed to emit before the bulk delete is issued, so cache updates and
// reporting observe the deletions. Listing or deleting failures are fatal to
// the scan.
func (s *Scanner) Scan(ctx context.Context, seen mapset.Set[string], emit func(*FileRecord)) error {
	rules, err := whitelist.Compile(s.whitelist)
	if err != nil {
		return fmt.Errorf("whitelist: %w", err)
	}

	objects, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return fmt.Errorf("list remote keys: %w", err)
	}

	var candidates []string
	for _, obj := range objects {
		if seen.Contains(obj.Key) {
			continue
		}
		if whitelist.Protected(rules, s.relativeKey(obj.Key)) {
			slog.Debug("key whitelisted, not deleting", "key", obj.Key)
			continue
		}
		candidates = append(candidates, obj.Key)
	}

	if len(candidates) == 0 {
		return nil
	}
	sort.Strings(candidates)

	for _, key := range candidates {
		rec := &FileRecord{
			Outcome: Outcome{Key: key, State: StateDelete},
		}
		if emit != nil {
			emit(rec)
		}
	}

	if err := s.store.DeleteMulti(ctx, candidates); err != nil {
		return fmt.Errorf("delete %d remote keys: %w", len(candidates), err)
	}
	return nil
}

// relativeKey strips the configured prefix, so whitelist rules are written
// against the same relative paths the local producer yields.
func (s *Scanner) relativeKey(key string) string {
	if s.prefix == "" {
		return key
	}
	prefix := strings.TrimSuffix(s.prefix, "/") + "/"
	return strings.TrimPrefix(key, prefix)
}
