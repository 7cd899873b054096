// Package syncer implements one-way synchronization of a local file set to
// a remote object-storage bucket: each incoming file is reconciled against
// the remote store, changed content is uploaded, and once the input stream
// has fully drained, remote keys with no local counterpart are deleted in a
// single quiet bulk call, subject to a whitelist.
package syncer

import (
	"errors"
	"io"
	"strings"
	"time"
)

// State is the sync outcome of a single record.
type State string

const (
	// StateCreate means the key did not exist remotely and was uploaded.
	StateCreate State = "create"
	// StateUpdate means the key existed remotely and was overwritten.
	StateUpdate State = "update"
	// StateSkip means the remote copy is already current (or createOnly
	// forbids touching it).
	StateSkip State = "skip"
	// StateDelete means the remote key has no local counterpart and was
	// removed.
	StateDelete State = "delete"
	// StateCache means the local cache already holds this fingerprint, so
	// no remote call was made at all.
	StateCache State = "cache"
)

// ErrStreamedContent is returned for records that carry a reader instead of
// buffered bytes. Streamed content is unsupported and is rejected before any
// of it is read.
var ErrStreamedContent = errors.New("streamed content is not supported")

// FileRecord is one local file flowing through the pipeline. The producer
// fills Path, Body and optionally Headers; the pipeline attaches the Outcome
// before the record reaches the reporter.
type FileRecord struct {
	Path    string            // relative path, forward slashes
	Body    []byte            // full contents; streamed input is rejected
	Reader  io.Reader         // unsupported; presence alone is an error
	Headers map[string]string // pre-set object headers, optional
	Outcome Outcome
}

// Outcome records what the sync decided for a record. State is assigned
// exactly once, before the record leaves the planner; Fingerprint is always
// the hash of the local bytes (absent on synthetic delete records) while
// RemoteETag and LastModified carry what the remote store reported.
type Outcome struct {
	Key          string
	State        State
	Fingerprint  string
	Headers      map[string]string
	RemoteETag   string
	LastModified time.Time
}

// Reporter receives each record after its outcome is final. Reporting is
// for display only; a nil reporter is valid.
type Reporter interface {
	Report(rec *FileRecord)
}

// Options configures a sync run.
type Options struct {
	// Prefix is prepended to every relative path to form the destination
	// key. Empty by default.
	Prefix string
	// CreateOnly skips any key that already exists remotely, without
	// comparing fingerprints. A changed file is silently never updated
	// under this option; that is its documented contract.
	CreateOnly bool
	// Force uploads every file regardless of fingerprint match.
	Force bool
	// Simulate computes fingerprints and headers but makes no remote calls
	// and assigns no state.
	Simulate bool
	// UseCache short-circuits records whose cached fingerprint matches the
	// local one, assigning StateCache without a remote round-trip.
	UseCache bool
	// Delete enables the remote delete scan after the input drains.
	Delete bool
	// Whitelist protects remote keys from deletion. Each entry is an exact
	// key or a glob pattern, evaluated relative to Prefix.
	Whitelist []string
	// CacheFile is the durable cache location. Defaults to ".bucketsync".
	CacheFile string
	// Concurrency bounds the worker pool. Defaults to 1, which preserves
	// strictly sequential per-file processing.
	Concurrency int
}

// DestinationKey joins the configured prefix and a relative path into a
// remote object key.
func DestinationKey(prefix, relPath string) string {
	key := strings.ReplaceAll(relPath, "\\", "/")
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}
