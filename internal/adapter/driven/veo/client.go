// Package veo implements the ProviderAdapter port for Google Veo on Vertex AI.
// Generation is a long-running operation: Start calls predictLongRunning and
// CheckStatus reads the operation until it is done.
package veo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gregjones/httpcache"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProviderAdapter = (*Client)(nil)

const (
	DefaultLocation = "asia-south1"
	DefaultModel    = "veo-3.1-fast-generate-001"

	requestTimeout = 60 * time.Second
	// maxErrorBody bounds how much of a failed response is read for its message.
	maxErrorBody = 64 << 10
)

const (
	msgRequestFailed = "Vertex AI request failed."
	msgFailed        = "Video generation failed."
	msgNoOutput      = "Video generation completed without output."
	msgUnparseable   = "Unable to parse video output."
	msgStoreFailed   = "Unable to store video output."
)

// Options selects the Vertex AI project, region and model.
type Options struct {
	Project  string
	Location string
	Model    string
	// BaseURL overrides the regional endpoint, e.g. for tests.
	BaseURL string
}

func (o Options) withDefaults() Options {
	if o.Location == "" {
		o.Location = DefaultLocation
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.BaseURL == "" {
		o.BaseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com", o.Location)
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return o
}

// Client talks to the Vertex AI REST API. The credential passed to Start and
// CheckStatus is used as the bearer token.
type Client struct {
	http      *http.Client
	opts      Options
	artifacts driven.ArtifactStore
	logger    *slog.Logger
}

// NewClient creates a Veo client with the following transport stack:
//  1. httpcache (bypassed per request; see do)
//  2. go-github-ratelimit (sleeps on 429 responses carrying Retry-After)
//
// artifacts receives inline video bytes; it may be nil when only
// storage-URI output is expected.
func NewClient(opts Options, artifacts driven.ArtifactStore, logger *slog.Logger) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	httpClient := github_ratelimit.NewClient(cacheTransport)
	httpClient.Timeout = requestTimeout

	return NewClientWithHTTPClient(httpClient, opts, artifacts, logger)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client. Tests
// use it with an httptest server and Options.BaseURL.
func NewClientWithHTTPClient(httpClient *http.Client, opts Options, artifacts driven.ArtifactStore, logger *slog.Logger) *Client {
	return &Client{
		http:      httpClient,
		opts:      opts.withDefaults(),
		artifacts: artifacts,
		logger:    logger,
	}
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	AspectRatio     string `json:"aspectRatio"`
	DurationSeconds int    `json:"durationSeconds"`
}

type rpcStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type errorEnvelope struct {
	Error *rpcStatus `json:"error"`
}

type operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *rpcStatus         `json:"error"`
	Response *operationResponse `json:"response"`
}

type operationResponse struct {
	Predictions []videoOutput `json:"predictions"`
	Outputs     []videoOutput `json:"outputs"`
	Videos      []videoOutput `json:"videos"`
}

type videoOutput struct {
	GCSURI             string       `json:"gcsUri"`
	StorageURI         string       `json:"storageUri"`
	URI                string       `json:"uri"`
	BytesBase64Encoded string       `json:"bytesBase64Encoded"`
	BytesBase64        string       `json:"bytesBase64"`
	VideoBytesBase64   string       `json:"videoBytesBase64"`
	MimeType           string       `json:"mimeType"`
	Video              *videoOutput `json:"video"`
}

// Start submits the prompt to predictLongRunning and returns the operation name.
func (c *Client) Start(ctx context.Context, prompt string, settings model.Settings, credential string) (model.JobHandle, error) {
	endpoint := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predictLongRunning",
		c.opts.BaseURL,
		url.PathEscape(c.opts.Project),
		url.PathEscape(c.opts.Location),
		url.PathEscape(c.opts.Model),
	)

	body := predictRequest{
		Instances: []predictInstance{{Prompt: prompt}},
		Parameters: predictParameters{
			AspectRatio:     string(settings.AspectRatio),
			DurationSeconds: settings.Duration,
		},
	}

	var op operation
	if err := c.do(ctx, http.MethodPost, endpoint, credential, body, &op); err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", &model.ProviderError{Message: msgRequestFailed}
	}

	c.logger.Debug("veo operation started", "operation", op.Name)
	return model.JobHandle(op.Name), nil
}

// CheckStatus reads the operation and maps it to a PollResult.
func (c *Client) CheckStatus(ctx context.Context, handle model.JobHandle, credential string) (model.PollResult, error) {
	endpoint := c.opts.BaseURL + "/v1/" + c.operationPath(handle)

	var op operation
	if err := c.do(ctx, http.MethodGet, endpoint, credential, nil, &op); err != nil {
		return model.PollResult{}, err
	}

	if op.Error != nil {
		return failed(op.Error.Message, msgFailed), nil
	}
	if !op.Done {
		return model.PollResult{State: model.PollRunning}, nil
	}
	if op.Response == nil {
		return failed("", msgNoOutput), nil
	}

	out, ok := op.Response.first()
	if !ok {
		return failed("", msgUnparseable), nil
	}
	return c.resolveOutput(ctx, handle, out), nil
}

// operationPath expands a bare operation id into its full resource name.
func (c *Client) operationPath(handle model.JobHandle) string {
	h := strings.TrimPrefix(string(handle), "/")
	if strings.HasPrefix(h, "projects/") {
		return h
	}
	return fmt.Sprintf("projects/%s/locations/%s/operations/%s", c.opts.Project, c.opts.Location, h)
}

func (r *operationResponse) first() (videoOutput, bool) {
	for _, list := range [][]videoOutput{r.Predictions, r.Outputs, r.Videos} {
		if len(list) > 0 {
			return list[0], true
		}
	}
	return videoOutput{}, false
}

func (v videoOutput) reference() string {
	return firstNonEmpty(v.GCSURI, v.StorageURI, v.URI)
}

func (v videoOutput) inline() string {
	return firstNonEmpty(v.BytesBase64Encoded, v.BytesBase64, v.VideoBytesBase64)
}

func (c *Client) resolveOutput(ctx context.Context, handle model.JobHandle, out videoOutput) model.PollResult {
	candidates := []videoOutput{out}
	if out.Video != nil {
		candidates = append(candidates, *out.Video)
	}

	for _, v := range candidates {
		if ref := v.reference(); ref != "" {
			return model.PollResult{State: model.PollCompleted, ResultReference: ref}
		}
	}

	for _, v := range candidates {
		encoded := v.inline()
		if encoded == "" {
			continue
		}
		ref, err := c.saveInline(ctx, handle, encoded, v.MimeType)
		if err != nil {
			c.logger.Warn("veo inline output not stored", "operation", handle, "error", err)
			return failed("", msgStoreFailed)
		}
		return model.PollResult{State: model.PollCompleted, ResultReference: ref}
	}

	return failed("", msgUnparseable)
}

func (c *Client) saveInline(ctx context.Context, handle model.JobHandle, encoded, mimeType string) (string, error) {
	if c.artifacts == nil {
		return "", errors.New("no artifact store configured")
	}

	data, err := decodeBase64(encoded)
	if err != nil {
		return "", err
	}

	if mimeType == "" {
		mimeType = "video/mp4"
	}
	name := artifactName(handle, mimeType)

	ref, err := c.artifacts.Save(ctx, name, mimeType, data)
	if err != nil {
		return "", fmt.Errorf("save artifact %s: %w", name, err)
	}
	return ref, nil
}

// do sends a JSON request and decodes a 2xx JSON response into out. Non-2xx
// responses become *model.ProviderError carrying the API's error message.
func (c *Client) do(ctx context.Context, method, endpoint, credential string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")
	// Operation state changes between reads and the cache key ignores the
	// bearer token, so every read goes to the network and nothing is stored.
	req.Header.Set("Cache-Control", "no-cache, no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", model.ErrProvider, method, redactedPath(endpoint), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := msgRequestFailed
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error != nil && env.Error.Message != "" {
			message = env.Error.Message
		}
		c.logger.Warn("veo request rejected", "method", method, "status", resp.StatusCode, "message", message)
		return &model.ProviderError{Message: message, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.ProviderError{Message: msgRequestFailed, StatusCode: resp.StatusCode}
	}
	return nil
}

func failed(reason, fallback string) model.PollResult {
	if reason == "" {
		reason = fallback
	}
	return model.PollResult{State: model.PollFailed, Reason: reason}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// redactedPath drops the query string from endpoint for logs and errors.
func redactedPath(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		u.RawQuery = ""
		return u.String()
	}
	return endpoint
}
