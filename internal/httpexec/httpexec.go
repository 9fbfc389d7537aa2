// Package httpexec builds subschema executors that speak GraphQL over
// HTTP: the outgoing document is rendered to source, POSTed as JSON, and
// the JSON response is decoded back into a result.
package httpexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	eventbus "github.com/BigSchema/stitch/internal/eventbus"
	events "github.com/BigSchema/stitch/internal/events"
	language "github.com/BigSchema/stitch/internal/language"
	result "github.com/BigSchema/stitch/internal/result"
	superschema "github.com/BigSchema/stitch/internal/superschema"
)

// Options configures an HTTP executor.
type Options struct {
	// Client is the HTTP client to use; http.DefaultClient when nil.
	Client *http.Client

	// Headers are added to every outgoing request.
	Headers http.Header
}

type Option func(*Options)

func WithClient(c *http.Client) Option { return func(o *Options) { o.Client = c } }

func WithHeader(key, value string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = http.Header{}
		}
		o.Headers.Add(key, value)
	}
}

type wireRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type wireError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

type wireResponse struct {
	Data   map[string]any `json:"data"`
	Errors []wireError    `json:"errors,omitempty"`
}

// NewExecutor returns an executor that resolves requests against the
// GraphQL endpoint at url.
func NewExecutor(name, url string, opts ...Option) superschema.ExecutorFunc {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context, req superschema.Request) (*result.Result, error) {
		opName := ""
		if len(req.Document.Operations) > 0 {
			opName = req.Document.Operations[0].Name
		}
		start := time.Now()
		eventbus.Publish(ctx, events.SubschemaStart{Subschema: name, OperationName: opName, URL: url})

		res, err := post(ctx, client, url, o.Headers, req)

		errCount := 0
		if res != nil {
			errCount = len(res.Errors)
		}
		eventbus.Publish(ctx, events.SubschemaFinish{
			Subschema:     name,
			OperationName: opName,
			URL:           url,
			ErrorCount:    errCount,
			Err:           err,
			Duration:      time.Since(start),
		})
		return res, err
	}
}

func post(ctx context.Context, client *http.Client, url string, headers http.Header, req superschema.Request) (*result.Result, error) {
	body, err := json.Marshal(wireRequest{
		Query:     language.FormatQueryDocument(req.Document),
		Variables: req.Variables,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, values := range headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	httpRes, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpRes.Body.Close()

	payload, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpRes.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subschema returned status %d", httpRes.StatusCode)
	}

	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	res := &result.Result{Data: wire.Data}
	for _, we := range wire.Errors {
		res.Errors = append(res.Errors, &result.Error{Message: we.Message, Path: decodePath(we.Path)})
	}
	return res, nil
}

func decodePath(raw []any) language.Path {
	if len(raw) == 0 {
		return nil
	}
	path := make(language.Path, 0, len(raw))
	for _, elem := range raw {
		switch v := elem.(type) {
		case string:
			path = append(path, language.PathName(v))
		case float64:
			path = append(path, language.PathIndex(int(v)))
		}
	}
	return path
}
