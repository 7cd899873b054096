package syncer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bucketsync/bucketsync/pkg/identity"
	"github.com/bucketsync/bucketsync/pkg/s3client"
)

// fakeStore is an in-memory s3client.Store that records every call, in the
// spirit of a real bucket: Head reports ErrNotFound for absent keys, Put
// stores the body with its fingerprint as ETag, DeleteMulti is quiet.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]fakeObject

	headErr   error
	headErrOn string // inject headErr only for this key; empty means all
	putErr    error
	listErr   error
	deleteErr error

	headCalls   []string
	putCalls    []string
	listCalls   int
	deleteCalls [][]string
}

type fakeObject struct {
	body         []byte
	etag         string
	lastModified time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]fakeObject)}
}

func (f *fakeStore) seed(key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = fakeObject{
		body:         []byte(body),
		etag:         identity.Fingerprint([]byte(body)),
		lastModified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeStore) Head(_ context.Context, key string) (*s3client.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls = append(f.headCalls, key)

	if f.headErr != nil && (f.headErrOn == "" || f.headErrOn == key) {
		return nil, f.headErr
	}

	obj, ok := f.objects[key]
	if !ok {
		return nil, s3client.ErrNotFound
	}
	return &s3client.ObjectInfo{
		ETag:         obj.etag,
		Size:         int64(len(obj.body)),
		LastModified: obj.lastModified,
	}, nil
}

func (f *fakeStore) Put(_ context.Context, key string, body []byte, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls = append(f.putCalls, key)

	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = fakeObject{
		body:         body,
		etag:         identity.Fingerprint(body),
		lastModified: time.Now(),
	}
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]s3client.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	if f.listErr != nil {
		return nil, f.listErr
	}
	var objects []s3client.Object
	for key, obj := range f.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, s3client.Object{Key: key, Size: int64(len(obj.body))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (f *fakeStore) DeleteMulti(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, keys)

	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, key := range keys {
		delete(f.objects, key)
	}
	return nil
}

// recordingReporter captures every reported record in order.
type recordingReporter struct {
	mu      sync.Mutex
	records []*FileRecord
}

func (r *recordingReporter) Report(rec *FileRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordingReporter) states() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make(map[string]State, len(r.records))
	for _, rec := range r.records {
		states[rec.Outcome.Key] = rec.Outcome.State
	}
	return states
}

func stream(recs ...*FileRecord) <-chan *FileRecord {
	ch := make(chan *FileRecord, len(recs))
	for _, rec := range recs {
		ch <- rec
	}
	close(ch)
	return ch
}
