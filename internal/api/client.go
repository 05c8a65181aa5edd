package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"loadctl/internal/logging"
	"loadctl/internal/services"
)

const (
	component = "api"

	defaultTimeout       = 30 * time.Second
	defaultUploadTimeout = 5 * time.Minute

	// maxErrorBody bounds how much of a failed response is read for message extraction.
	maxErrorBody = 64 * 1024
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
	HTTPClient    HTTPDoer
	Logger        *slog.Logger
}

// Client talks to one backend instance.
type Client struct {
	baseURL       string
	http          HTTPDoer
	timeout       time.Duration
	uploadTimeout time.Duration
	logger        *slog.Logger
}

// New constructs a Client. BaseURL must be an absolute http or https URL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url, got %q", opts.BaseURL)
	}

	client := &Client{
		baseURL:       base,
		http:          opts.HTTPClient,
		timeout:       opts.Timeout,
		uploadTimeout: opts.UploadTimeout,
		logger:        logging.NewComponentLogger(opts.Logger, component),
	}
	if client.http == nil {
		client.http = &http.Client{}
	}
	if client.timeout <= 0 {
		client.timeout = defaultTimeout
	}
	if client.uploadTimeout <= 0 {
		client.uploadTimeout = defaultUploadTimeout
	}
	return client, nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends the file as multipart field "file".
func (c *Client) Upload(ctx context.Context, name, mimeType string, content io.Reader) (UploadResult, error) {
	const op = "upload"
	if content == nil {
		return UploadResult{}, services.Wrap(services.ErrValidation, component, op, "upload content is required", nil)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeFilePart(writer, name, mimeType, content))
	}()

	body, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/upload",
		body:        pr,
		contentType: writer.FormDataContentType(),
		timeout:     c.uploadTimeout,
	})
	// Unblocks the writer goroutine when the request failed before draining the pipe.
	_ = pr.Close()
	if err != nil {
		return UploadResult{}, err
	}
	return UploadResult{Raw: rawOrString(body)}, nil
}

func writeFilePart(writer *multipart.Writer, name, mimeType string, content io.Reader) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return writer.Close()
}

// Convert triggers server-side conversion of the uploaded capture. A 2xx
// response without flow_data is a services.ErrContract failure.
func (c *Client) Convert(ctx context.Context, req ConvertRequest) (ConvertResult, error) {
	const op = "convert"
	payload := map[string]any{"timestamp": FormatTimestamp(req.Timestamp)}
	if name := strings.TrimSpace(req.Filename); name != "" {
		payload["filename"] = name
	}
	body, err := c.doJSON(ctx, op, http.MethodPost, "/convert", nil, payload)
	if err != nil {
		return ConvertResult{}, err
	}
	flow, err := decodeConvert(body)
	if err != nil {
		return ConvertResult{}, err
	}
	return ConvertResult{FlowData: flow, Raw: rawOrString(body)}, nil
}

// Generate asks the backend to produce a load-test script from flow data.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	const op = "generate"
	payload, err := generatePayload(req)
	if err != nil {
		return GenerateResult{}, services.Wrap(services.ErrValidation, component, op, "flow data is not valid JSON", err)
	}
	body, err := c.doJSON(ctx, op, http.MethodPost, "/generate", nil, payload)
	if err != nil {
		return GenerateResult{}, err
	}
	name, err := decodeGenerate(body)
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{Filename: name, Raw: rawOrString(body)}, nil
}

func generatePayload(req GenerateRequest) (map[string]any, error) {
	payload := map[string]any{}
	if raw := bytes.TrimSpace(req.FlowData); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		if fields, ok := value.(map[string]any); ok {
			for key, v := range fields {
				payload[key] = v
			}
		} else {
			payload["flow_data"] = value
		}
	}
	payload["filename"] = req.Filename
	payload["host"] = req.Host
	payload["replace_existing"] = req.ReplaceExisting
	payload["timestamp"] = FormatTimestamp(req.Timestamp)
	payload["type"] = "load_test"
	return payload, nil
}

// Scripts fetches the catalog of previously generated scripts.
func (c *Client) Scripts(ctx context.Context) ([]Script, error) {
	body, err := c.doJSON(ctx, "scripts", http.MethodGet, "/scripts", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeCatalog(body)
}

// RunByQuery starts script via GET /run?script=.
func (c *Client) RunByQuery(ctx context.Context, script string) (RunStatus, error) {
	query := url.Values{"script": []string{script}}
	body, err := c.doJSON(ctx, "run", http.MethodGet, "/run", query, nil)
	if err != nil {
		return RunStatus{}, err
	}
	return decodeRunStatus("run", body)
}

// RunByBody starts script via POST /run {"script": ...}.
func (c *Client) RunByBody(ctx context.Context, script string) (RunStatus, error) {
	body, err := c.doJSON(ctx, "run", http.MethodPost, "/run", nil, map[string]string{"script": script})
	if err != nil {
		return RunStatus{}, err
	}
	return decodeRunStatus("run", body)
}

// Stop ends the run identified by processID.
func (c *Client) Stop(ctx context.Context, processID string) error {
	id := strings.TrimSpace(processID)
	if id == "" {
		return services.Wrap(services.ErrValidation, component, "stop", "process id is required", nil)
	}
	_, err := c.doJSON(ctx, "stop", http.MethodPost, "/stop/"+url.PathEscape(id), nil, nil)
	return err
}

// StopAll ends every run on the backend.
func (c *Client) StopAll(ctx context.Context) error {
	_, err := c.doJSON(ctx, "stop-all", http.MethodPost, "/stop-all", nil, nil)
	return err
}

// Status returns the current run. No active run is reported as
// services.ErrNotFound.
func (c *Client) Status(ctx context.Context) (RunStatus, error) {
	body, err := c.doJSON(ctx, "status", http.MethodGet, "/status", nil, nil)
	if err != nil {
		return RunStatus{}, err
	}
	return decodeRunStatus("status", body)
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) (HealthResult, error) {
	body, err := c.doJSON(ctx, "health", http.MethodGet, "/health", nil, nil)
	if err != nil {
		return HealthResult{}, err
	}
	return decodeHealth(body), nil
}

// Info fetches GET / for the server version.
func (c *Client) Info(ctx context.Context) (ServerInfo, error) {
	body, err := c.doJSON(ctx, "info", http.MethodGet, "/", nil, nil)
	if err != nil {
		return ServerInfo{}, err
	}
	return decodeInfo(body), nil
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	timeout     time.Duration
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	req := request{op: op, method: method, path: path, query: query, timeout: c.timeout}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, component, op, "encode request body", err)
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
		ctx = services.WithRequestID(ctx, requestID)
	}
	logger := logging.WithContext(ctx, c.logger)

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, endpoint, r.body)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, r.op, "build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if r.contentType != "" {
		httpReq.Header.Set("Content-Type", r.contentType)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Debug("api request failed",
			logging.String("method", r.method),
			logging.String("path", r.path),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
		)
		return nil, transportError(r.op, err)
	}
	defer resp.Body.Close()

	logger.Debug("api request",
		logging.String("method", r.method),
		logging.String("path", r.path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(r.op, r.method, r.path, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(r.op, fmt.Errorf("read response: %w", err))
	}
	return body, nil
}
