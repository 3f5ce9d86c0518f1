//go:build functional

// Package functional provides functional tests for the inventory HTTP API and stock feed.
package functional

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-store/internal/auth"
	"github.com/vyrodovalexey/inventory-store/internal/config"
	"github.com/vyrodovalexey/inventory-store/internal/server"
	"github.com/vyrodovalexey/inventory-store/internal/store"
)

// Environment variable names for test configuration.
const (
	EnvTestServerHost = "TEST_SERVER_HOST"
	EnvTestTimeout    = "TEST_TIMEOUT"
)

// Default test configuration values.
const (
	DefaultTestHost         = "localhost"
	DefaultTestTimeout      = 30 * time.Second
	DefaultRequestTimeout   = 5 * time.Second
	DefaultWebSocketTimeout = 10 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
)

// TestConfig holds test configuration loaded from environment.
type TestConfig struct {
	Host    string
	Timeout time.Duration
}

// LoadTestConfig loads test configuration from environment variables.
func LoadTestConfig() *TestConfig {
	cfg := &TestConfig{
		Host:    DefaultTestHost,
		Timeout: DefaultTestTimeout,
	}

	if host := os.Getenv(EnvTestServerHost); host != "" {
		cfg.Host = host
	}

	if timeoutStr := os.Getenv(EnvTestTimeout); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	return cfg
}

// ServerOption adjusts the configuration of a TestServer before it is built.
type ServerOption func(*config.Config)

// WithInventoryFile points the server at an existing inventory file.
func WithInventoryFile(path string) ServerOption {
	return func(c *config.Config) { c.InventoryFile = path }
}

// WithAutoSave enables saving after every mutation.
func WithAutoSave() ServerOption {
	return func(c *config.Config) { c.AutoSave = true }
}

// TestServer wraps the server for testing purposes.
type TestServer struct {
	Server  *server.Server
	Store   *store.Guarded
	Config  *config.Config
	BaseURL string
	WSURL   string
	timeout time.Duration
	t       *testing.T
	mu      sync.Mutex
	started bool
}

// NewTestServer creates a test server on a free port backed by a file in a
// temporary directory.
func NewTestServer(t *testing.T, opts ...ServerOption) *TestServer {
	t.Helper()
	return newTestServer(t, nil, opts...)
}

// NewAuthTestServer creates a test server guarding /api with authenticator.
func NewAuthTestServer(t *testing.T, authenticator auth.Authenticator, opts ...ServerOption) *TestServer {
	t.Helper()
	return newTestServer(t, authenticator, opts...)
}

func newTestServer(t *testing.T, authenticator auth.Authenticator, opts ...ServerOption) *TestServer {
	t.Helper()

	testCfg := LoadTestConfig()

	listener, err := net.Listen("tcp", testCfg.Host+":0")
	if err != nil {
		t.Fatalf("Failed to find available port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	cfg := &config.Config{
		ServerPort:        port,
		LogLevel:          "error",
		ShutdownTimeout:   DefaultShutdownTimeout,
		InventoryFile:     filepath.Join(t.TempDir(), "inventory.json"),
		LowStockThreshold: config.DefaultLowStockThreshold,
		AuthMode:          "none",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	inv := store.NewGuarded(store.NewInventory())
	if err := inv.Load(cfg.InventoryFile); err != nil {
		t.Fatalf("Failed to load inventory: %v", err)
	}

	return &TestServer{
		Server:  server.New(cfg, zap.NewNop(), inv, authenticator, nil),
		Store:   inv,
		Config:  cfg,
		BaseURL: fmt.Sprintf("http://%s:%d", testCfg.Host, port),
		WSURL:   fmt.Sprintf("ws://%s:%d", testCfg.Host, port),
		timeout: testCfg.Timeout,
		t:       t,
	}
}

// Start starts the test server and waits for it to report ready.
func (ts *TestServer) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return
	}

	go func() {
		if err := ts.Server.Start(); err != nil {
			ts.t.Logf("Server error: %v", err)
		}
	}()
	ts.Server.SetReady(true)

	ts.waitForReady()
	ts.started = true
}

// waitForReady waits for the server to be ready to accept connections.
func (ts *TestServer) waitForReady() {
	ctx, cancel := context.WithTimeout(context.Background(), ts.timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ts.t.Fatalf("Server did not become ready within timeout")
		case <-ticker.C:
			resp, err := http.Get(ts.BaseURL + "/ready")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return
				}
			}
		}
	}
}

// Stop shuts the server down, which also saves the inventory file.
func (ts *TestServer) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := ts.Server.Shutdown(ctx); err != nil {
		ts.t.Logf("Server shutdown error: %v", err)
	}

	ts.started = false
}

// HTTPClient provides a configured HTTP client for tests.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a new HTTP client for testing.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: DefaultRequestTimeout},
		baseURL: baseURL,
	}
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Do executes an HTTP request and returns the response.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			bodyReader = bytes.NewBufferString(v)
		default:
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewBuffer(jsonBody)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, headers)
}

// Post performs a POST request.
func (c *HTTPClient) Post(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, headers)
}

// AddStock posts an add request for item.
func (c *HTTPClient) AddStock(ctx context.Context, item string, qty int, headers map[string]string) (*Response, error) {
	return c.Post(ctx, "/api/v1/items/"+item+"/add", QuantityBody(qty), headers)
}

// RemoveStock posts a remove request for item.
func (c *HTTPClient) RemoveStock(ctx context.Context, item string, qty int, headers map[string]string) (*Response, error) {
	return c.Post(ctx, "/api/v1/items/"+item+"/remove", QuantityBody(qty), headers)
}

// QuantityBody renders a quantity request body.
func QuantityBody(qty int) string {
	return `{"quantity": ` + strconv.Itoa(qty) + `}`
}

// APIResponse represents a generic API response structure.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ParseData decodes the data field of a successful API response into v.
func ParseData(t *testing.T, resp *Response, v any) {
	t.Helper()

	var apiResp APIResponse
	if err := json.Unmarshal(resp.Body, &apiResp); err != nil {
		t.Fatalf("Failed to parse API response: %v (body %s)", err, resp.Body)
	}
	if !apiResp.Success {
		t.Fatalf("Expected success=true, got false. Body: %s", resp.Body)
	}
	if err := json.Unmarshal(apiResp.Data, v); err != nil {
		t.Fatalf("Failed to parse data: %v", err)
	}
}

// ParseErrorResponse parses an error response from bytes.
func ParseErrorResponse(body []byte) (*ErrorResponse, error) {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse error response: %w", err)
	}
	return &resp, nil
}

// AssertStatusCode asserts that the response has the expected status code.
func AssertStatusCode(t *testing.T, resp *Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// LogTestStart logs the start of a test.
func LogTestStart(t *testing.T, testID, testName string) {
	t.Helper()
	t.Logf("Starting test %s: %s", testID, testName)
}

// LogTestEnd logs the end of a test.
func LogTestEnd(t *testing.T, testID string) {
	t.Helper()
	t.Logf("Completed test %s", testID)
}
