package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/fedtrust/fedtrust/pkg/transport"
)

// fakeFetcher serves canned documents keyed by URL.
type fakeFetcher struct {
	mu        sync.Mutex
	docs      map[string]any
	status    map[string]int
	redirects map[string]string
	calls     []string
	headers   []http.Header
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		docs:      map[string]any{},
		status:    map[string]int{},
		redirects: map[string]string{},
	}
}

func (f *fakeFetcher) Send(_ context.Context, url string, req *transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	f.headers = append(f.headers, req.Header)

	final := url
	for i := 0; i < 5; i++ {
		next, ok := f.redirects[final]
		if !ok {
			break
		}
		final = next
	}

	if code, ok := f.status[final]; ok {
		return &transport.Response{StatusCode: code, URL: final, Header: http.Header{}}, nil
	}
	doc, ok := f.docs[final]
	if !ok {
		return &transport.Response{StatusCode: http.StatusNotFound, URL: final, Header: http.Header{}}, nil
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return &transport.Response{
		StatusCode: http.StatusOK,
		URL:        final,
		Header:     http.Header{"Content-Type": {"application/activity+json"}},
		Body:       body,
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func note(id string, extra map[string]any) map[string]any {
	doc := map[string]any{
		"@context": []any{"https://www.w3.org/ns/activitystreams", "https://w3id.org/security/v1"},
		"id":       id,
		"type":     "Note",
	}
	for k, v := range extra {
		doc[k] = v
	}
	return doc
}
