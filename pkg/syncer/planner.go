package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bucketsync/bucketsync/pkg/identity"
	"github.com/bucketsync/bucketsync/pkg/s3client"
)

// Planner reconciles a single record against the remote store and decides
// its action: upload it (create or update), or skip it.
type Planner struct {
	store      s3client.Store
	createOnly bool
	force      bool
	simulate   bool
}

// NewPlanner creates a planner over store.
func NewPlanner(store s3client.Store, opts Options) *Planner {
	return &Planner{
		store:      store,
		createOnly: opts.CreateOnly,
		force:      opts.Force,
		simulate:   opts.Simulate,
	}
}

// Reconcile fingerprints rec, attaches content headers, and settles its
// state against the remote copy of rec.Outcome.Key. A missing remote object
// is an expected condition; any other remote failure aborts the record and
// propagates.
func (p *Planner) Reconcile(ctx context.Context, rec *FileRecord) error {
	if rec.Body == nil && rec.Reader != nil {
		return fmt.Errorf("%s: %w", rec.Path, ErrStreamedContent)
	}

	rec.Outcome.Fingerprint = identity.Fingerprint(rec.Body)
	attachHeaders(rec)

	// Simulate stops here: headers and fingerprint are available for
	// preview, nothing touches the network.
	if p.simulate {
		return nil
	}

	key := rec.Outcome.Key
	info, err := p.store.Head(ctx, key)
	if err != nil && !errors.Is(err, s3client.ErrNotFound) {
		return fmt.Errorf("head %s: %w", key, err)
	}
	exists := err == nil

	if exists && p.createOnly {
		p.skip(rec, info)
		return nil
	}
	if exists && !p.force && identity.Equal(info.ETag, rec.Outcome.Fingerprint) {
		p.skip(rec, info)
		return nil
	}

	if err := p.store.Put(ctx, key, rec.Body, rec.Headers); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if exists {
		rec.Outcome.State = StateUpdate
	} else {
		rec.Outcome.State = StateCreate
	}
	return nil
}

// skip marks rec as already current and keeps what the remote store reported
// about it, which downstream consumers may want.
func (p *Planner) skip(rec *FileRecord, info *s3client.ObjectInfo) {
	rec.Outcome.State = StateSkip
	rec.Outcome.RemoteETag = info.ETag
	rec.Outcome.LastModified = info.LastModified
}

func attachHeaders(rec *FileRecord) {
	if rec.Headers == nil {
		rec.Headers = make(map[string]string)
	}
	if _, ok := rec.Headers["Content-Type"]; !ok {
		if contentType := identity.ContentType(rec.Path); contentType != "" {
			rec.Headers["Content-Type"] = contentType
		}
	}
	if _, ok := rec.Headers["Content-Length"]; !ok {
		rec.Headers["Content-Length"] = strconv.Itoa(len(rec.Body))
	}
	rec.Outcome.Headers = rec.Headers
}
