package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aep/mintdb/api"
	"github.com/aep/mintdb/db"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Client struct {
	address string
	http    *http.Client
}

// New returns a client for the gateway at address, e.g.
// "http://localhost:5052". Requests carry the caller's trace context.
func New(address string) *Client {
	return &Client{
		address: strings.TrimRight(address, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
}

// keyPath matches the gateway's path key encoding: "_" then unpadded
// URL-safe base64, so the empty key is addressable.
func keyPath(key []byte) string {
	return "/v1/kv/_" + base64.RawURLEncoding.EncodeToString(key)
}

// do sends body as JSON and decodes a 2xx response into out. For
// non-2xx responses it returns *Error, and still decodes into out when
// decodeOnError is set.
func (c *Client) do(ctx context.Context, method, path string, body, out any, decodeOnError bool) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.address+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rsp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer rsp.Body.Close()

	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return err
	}

	if rsp.StatusCode >= 200 && rsp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.Unmarshal(data, out)
	}

	e := &Error{Code: rsp.StatusCode}
	if decodeOnError && out != nil {
		if json.Unmarshal(data, out) == nil {
			if br, ok := out.(*api.BatchResponse); ok {
				e.Message = br.Error
			}
		}
	}
	if e.Message == "" {
		var er api.ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Message != "" {
			e.Message = er.Message
		} else {
			e.Message = http.StatusText(rsp.StatusCode)
		}
	}
	return e
}

// Get returns the value under key, and false if absent.
func (c *Client) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var rsp api.GetResponse
	err := c.do(ctx, http.MethodGet, keyPath(key), nil, &rsp, false)
	if hasCode(err, http.StatusNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if rsp.Value == nil {
		rsp.Value = []byte{}
	}
	return rsp.Value, true, nil
}

// Insert stores value under key and returns the previous value.
func (c *Client) Insert(ctx context.Context, key, value []byte) ([]byte, bool, error) {
	if value == nil {
		value = []byte{}
	}
	var rsp api.PrevResponse
	if err := c.do(ctx, http.MethodPut, keyPath(key), api.PutRequest{Value: value}, &rsp, false); err != nil {
		return nil, false, err
	}
	return previous(rsp), rsp.Existed, nil
}

// Remove deletes key and returns the value it held.
func (c *Client) Remove(ctx context.Context, key []byte) ([]byte, bool, error) {
	var rsp api.PrevResponse
	if err := c.do(ctx, http.MethodDelete, keyPath(key), nil, &rsp, false); err != nil {
		return nil, false, err
	}
	return previous(rsp), rsp.Existed, nil
}

func previous(rsp api.PrevResponse) []byte {
	if rsp.Existed && rsp.Previous == nil {
		return []byte{}
	}
	return rsp.Previous
}

func (c *Client) ScanPrefix(ctx context.Context, prefix []byte) ([]api.Entry, error) {
	path := "/v1/scan?prefix=" + url.QueryEscape(base64.RawURLEncoding.EncodeToString(prefix))
	var rsp api.ScanResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &rsp, false); err != nil {
		return nil, err
	}
	if rsp.Entries == nil {
		rsp.Entries = []api.Entry{}
	}
	return rsp.Entries, nil
}

// Apply sends batch to the gateway. The response is returned alongside
// an *Error when the batch stopped early, so callers can see how many
// items were applied.
func (c *Client) Apply(ctx context.Context, batch db.Batch, atomic bool) (*api.BatchResponse, error) {
	req := api.BatchRequest{
		Items:  make([]api.BatchItem, len(batch)),
		Atomic: atomic,
	}
	for i, item := range batch {
		bi := api.BatchItem{Op: db.OpName(item), Key: db.KeyOf(item)}
		switch item := item.(type) {
		case db.InsertNew:
			bi.Value = item.Value
		case db.Insert:
			bi.Value = item.Value
		}
		req.Items[i] = bi
	}

	var rsp api.BatchResponse
	err := c.do(ctx, http.MethodPost, "/v1/batch", req, &rsp, true)
	return &rsp, err
}
