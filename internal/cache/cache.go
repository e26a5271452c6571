// Package cache is the durable, named response cache shared by the offline worker.
// A Storage holds any number of named caches; each cache maps a request key
// (the absolute request URL) to a stored response.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotFound is returned when an operation targets a cache that does not exist.
var ErrNotFound = errors.New("cache not found")

// Entry is a stored response. Bodies are held in full.
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

// Cache is one named cache.
type Cache interface {
	Match(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, e *Entry) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Storage is the set of named caches. Keys lists names in creation order and
// Match searches caches in that order.
type Storage interface {
	Open(ctx context.Context, name string) (Cache, error)
	Has(ctx context.Context, name string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
	Match(ctx context.Context, key string) (*Entry, bool, error)
	Ping(ctx context.Context) error
}

// ReadEntry drains and closes resp.Body and returns it as an Entry. Use
// Entry.Response to hand out as many independent copies as needed.
func ReadEntry(resp *http.Response) (*Entry, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	url := ""
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.URL.String()
	}
	return &Entry{
		URL:      url,
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now().UTC(),
	}, nil
}

// Response builds a fresh *http.Response over the stored body.
func (e *Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// OK reports whether the stored status is 2xx.
func (e *Entry) OK() bool {
	return e.Status >= 200 && e.Status < 300
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Header = e.Header.Clone()
	c.Body = append([]byte(nil), e.Body...)
	return &c
}

// matchAll searches every cache in creation order. Backends without a native
// cross-cache lookup use it for Storage.Match.
func matchAll(ctx context.Context, s Storage, key string) (*Entry, bool, error) {
	names, err := s.Keys(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, name := range names {
		c, err := s.Open(ctx, name)
		if err != nil {
			return nil, false, err
		}
		e, ok, err := c.Match(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("match %s in %s: %w", key, name, err)
		}
		if ok {
			return e, true, nil
		}
	}
	return nil, false, nil
}
