package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/nodegraph/internal/events"
)

// Events opens the server's event stream and delivers each frame until ctx
// is done or the server closes the connection. topics is a comma-separated
// list of NATS-style patterns; empty means every topic.
func (c *HTTPEditor) Events(ctx context.Context, topics string) (<-chan events.Message, error) {
	path := "/v1/events/stream"
	if topics != "" {
		path += "?topics=" + url.QueryEscape(topics)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.t.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.t.authorize(req)
	resp, err := c.t.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, newAPIError(resp.StatusCode, body)
	}

	ch := make(chan events.Message, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		readStream(ctx, bufio.NewScanner(resp.Body), ch)
	}()
	return ch, nil
}

// readStream parses "event:" and "data:" lines into messages. A blank line
// ends a frame; comment lines (keepalives) are skipped.
func readStream(ctx context.Context, sc *bufio.Scanner, ch chan<- events.Message) {
	sc.Buffer(make([]byte, 64*1024), 8<<20)
	var msg events.Message
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if msg.Topic == "" && data.Len() == 0 {
				continue
			}
			msg.Data = json.RawMessage(data.String())
			select {
			case ch <- msg:
			case <-ctx.Done():
				return
			}
			msg = events.Message{}
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			msg.Topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
