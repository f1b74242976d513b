package generator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// HTTPBatchSource consumes the server's JSON-lines batch endpoint, the same
// way a browser client would.
type HTTPBatchSource struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (s HTTPBatchSource) OpenBatch(ctx context.Context, req BatchRequest) (<-chan BatchEvent, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.BaseURL, "/")+"/api/generate/stream", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("batch %d: upstream status %d: %s", req.Index, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out := make(chan BatchEvent)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			ev, ok := decodeEventLine(sc.Bytes())
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Done || ev.Error != "" {
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case out <- BatchEvent{Error: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// decodeEventLine 解析一行 {text?}/{done?}/{error?}，空行或非法 JSON 跳过。
func decodeEventLine(line []byte) (BatchEvent, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return BatchEvent{}, false
	}
	res := gjson.ParseBytes(line)
	ev := BatchEvent{
		Text:  res.Get("text").String(),
		Done:  res.Get("done").Bool(),
		Error: res.Get("error").String(),
	}
	if ev.Text == "" && !ev.Done && ev.Error == "" {
		return BatchEvent{}, false
	}
	return ev, true
}
