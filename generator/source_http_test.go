package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndjsonServer(t *testing.T, lines map[int][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, ok := lines[req.Index]
		if !ok {
			http.Error(w, "unknown batch", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range body {
			fmt.Fprintln(w, l)
			w.(http.Flusher).Flush()
		}
	}))
}

func TestHTTPBatchSource_ThroughOrchestrator(t *testing.T) {
	ok := []string{
		`{"text":"[Variation 1]\nfirst body text\n[Change Point] a\n---\n"}`,
		``,
		`not json`,
		`{"text":"[Variation 2]\nsecond body text\n[Change Point] b\n"}`,
		`{"done":true}`,
	}
	srv := ndjsonServer(t, map[int][]string{
		0: ok,
		1: {`{"text":"[Variation 1]\nhalf"}`, `{"error":"boom"}`},
		2: ok,
	})
	defer srv.Close()

	o := &Orchestrator{Source: HTTPBatchSource{BaseURL: srv.URL, Client: srv.Client()}}
	res := o.Run(context.Background(), scriptRunRequest(), nil)
	require.Len(t, res.Variations, 4)
	assert.Equal(t, "first body text", res.Variations[0].Body)
	assert.Equal(t, "second body text", res.Variations[3].Body)
	assert.Equal(t, "boom", res.Batches[1].Err)
}

func TestHTTPBatchSource_UpstreamStatus(t *testing.T) {
	srv := ndjsonServer(t, map[int][]string{})
	defer srv.Close()

	_, err := HTTPBatchSource{BaseURL: srv.URL}.OpenBatch(context.Background(), BatchRequest{Index: 0})
	assert.ErrorContains(t, err, "upstream status 502")
}

func TestDecodeEventLine(t *testing.T) {
	ev, ok := decodeEventLine([]byte(`{"text":"hi"}`))
	assert.True(t, ok)
	assert.Equal(t, BatchEvent{Text: "hi"}, ev)

	ev, ok = decodeEventLine([]byte(`{"done":true}`))
	assert.True(t, ok)
	assert.True(t, ev.Done)

	_, ok = decodeEventLine([]byte(`{}`))
	assert.False(t, ok)
	_, ok = decodeEventLine([]byte(`{"text":`))
	assert.False(t, ok)
}
