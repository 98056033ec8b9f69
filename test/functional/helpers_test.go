//go:build functional

// Package functional provides functional tests for the REST API and WebSocket server.
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
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/robsonsouzans/listans/internal/auth"
	"github.com/robsonsouzans/listans/internal/config"
	"github.com/robsonsouzans/listans/internal/server"
	"github.com/robsonsouzans/listans/internal/shopping"
	"github.com/robsonsouzans/listans/internal/store"
)

// Environment variable names for test configuration.
const (
	EnvTestServerHost    = "TEST_SERVER_HOST"
	EnvTestServerPort    = "TEST_SERVER_PORT"
	EnvTestTimeout       = "TEST_TIMEOUT"
	EnvTestLogLevel      = "TEST_LOG_LEVEL"
	EnvTestMetricsEnable = "TEST_METRICS_ENABLED"
)

// Default test configuration values.
const (
	DefaultTestHost         = "localhost"
	DefaultTestPort         = 0 // 0 means auto-assign
	DefaultTestTimeout      = 30 * time.Second
	DefaultRequestTimeout   = 5 * time.Second
	DefaultWebSocketTimeout = 10 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
	DefaultLogLevel         = "error"
	DefaultMetricsEnabled   = false
)

// TestConfig holds test configuration loaded from environment.
type TestConfig struct {
	Host           string
	Port           int
	Timeout        time.Duration
	LogLevel       string
	MetricsEnabled bool
}

// LoadTestConfig loads test configuration from environment variables.
func LoadTestConfig() *TestConfig {
	cfg := &TestConfig{
		Host:           DefaultTestHost,
		Port:           DefaultTestPort,
		Timeout:        DefaultTestTimeout,
		LogLevel:       DefaultLogLevel,
		MetricsEnabled: DefaultMetricsEnabled,
	}

	if host := os.Getenv(EnvTestServerHost); host != "" {
		cfg.Host = host
	}

	if portStr := os.Getenv(EnvTestServerPort); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}

	if timeoutStr := os.Getenv(EnvTestTimeout); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	if logLevel := os.Getenv(EnvTestLogLevel); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if metricsStr := os.Getenv(EnvTestMetricsEnable); metricsStr != "" {
		if enabled, err := strconv.ParseBool(metricsStr); err == nil {
			cfg.MetricsEnabled = enabled
		}
	}

	return cfg
}

// TestServer wraps the server for testing purposes.
type TestServer struct {
	Server   *server.Server
	Store    *store.MemoryStore
	BaseURL  string
	WSURL    string
	Port     int
	listener net.Listener
	t        *testing.T
	mu       sync.Mutex
	started  bool
}

// NewTestServer creates a new test server instance backed by a memory store.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testCfg := LoadTestConfig()

	// Find an available port
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", testCfg.Host, testCfg.Port))
	if err != nil {
		t.Fatalf("Failed to find available port: %v", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port

	cfg := &config.Config{
		ServerPort:      port,
		LogLevel:        testCfg.LogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  testCfg.MetricsEnabled,
		StoreBackend:    "memory",
		StoreTimeout:    DefaultRequestTimeout,
	}

	// Use nop logger for tests to reduce noise
	logger := zap.NewNop()

	st := store.NewMemoryStore()
	service := shopping.NewService(st, logger, cfg.StoreTimeout)
	sessions := auth.NewSessionRegistry()
	gateway := auth.NewGateway(st, sessions, logger, bcrypt.MinCost)

	srv := server.New(cfg, logger, st, service, gateway, sessions)

	ts := &TestServer{
		Server:   srv,
		Store:    st,
		BaseURL:  fmt.Sprintf("http://%s:%d", testCfg.Host, port),
		WSURL:    fmt.Sprintf("ws://%s:%d", testCfg.Host, port),
		Port:     port,
		listener: listener,
		t:        t,
	}

	return ts
}

// Start starts the test server.
func (ts *TestServer) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return
	}

	// Close the listener we used to find the port
	ts.listener.Close()

	// Start server in goroutine
	go func() {
		if err := ts.Server.Start(); err != nil && err != http.ErrServerClosed {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	// Wait for server to be ready
	ts.waitForReady()
	ts.started = true
}

// waitForReady waits for the server to be ready to accept connections.
func (ts *TestServer) waitForReady() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ts.t.Fatalf("Server did not become ready within timeout")
		case <-ticker.C:
			resp, err := http.Get(ts.BaseURL + "/health")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return
				}
			}
		}
	}
}

// Stop stops the test server.
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
	t       *testing.T
}

// NewHTTPClient creates a new HTTP client for testing.
func NewHTTPClient(t *testing.T, baseURL string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
		baseURL: baseURL,
		t:       t,
	}
}

// Request represents an HTTP request configuration.
type Request struct {
	Method  string
	Path    string
	Body    interface{}
	Headers map[string]string
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Do executes an HTTP request and returns the response.
func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		switch v := req.Body.(type) {
		case string:
			bodyReader = bytes.NewBufferString(v)
		case []byte:
			bodyReader = bytes.NewBuffer(v)
		default:
			jsonBody, err := json.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewBuffer(jsonBody)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set default content type for requests with body
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// Set custom headers
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{
		Method:  http.MethodGet,
		Path:    path,
		Headers: headers,
	})
}

// Post performs a POST request.
func (c *HTTPClient) Post(ctx context.Context, path string, body interface{}, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    path,
		Body:    body,
		Headers: headers,
	})
}

// Patch performs a PATCH request.
func (c *HTTPClient) Patch(ctx context.Context, path string, body interface{}, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{
		Method:  http.MethodPatch,
		Path:    path,
		Body:    body,
		Headers: headers,
	})
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{
		Method:  http.MethodDelete,
		Path:    path,
		Headers: headers,
	})
}

// BearerHeaders builds the Authorization header for a session token.
func BearerHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
	}
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
	Details string `json:"details,omitempty"`
}

// SessionResponse represents a signup or login response.
type SessionResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ListResponse represents a shopping list in API responses.
type ListResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID      string         `json:"id"`
	ListID  string         `json:"list_id"`
	Name    string         `json:"name"`
	Color   string         `json:"color"`
	Icon    string         `json:"icon"`
	Version int64          `json:"version"`
	Items   []ItemResponse `json:"items"`
}

// ItemResponse represents an item in API responses.
type ItemResponse struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price_cents"`
	Purchased bool   `json:"purchased"`
	Version   int64  `json:"version"`
}

// GroupSummaryResponse represents per-group totals in API responses.
type GroupSummaryResponse struct {
	GroupID         string `json:"group_id"`
	Total           int64  `json:"total_cents"`
	TotalDisplay    string `json:"total"`
	ItemCount       int    `json:"item_count"`
	PurchasedCount  int    `json:"purchased_count"`
	ProgressPercent int    `json:"progress_percent"`
}

// SummaryResponse represents list totals in API responses.
type SummaryResponse struct {
	ListID                string                 `json:"list_id"`
	GrandTotal            int64                  `json:"grand_total_cents"`
	GrandTotalDisplay     string                 `json:"grand_total"`
	PurchasedTotal        int64                  `json:"purchased_total_cents"`
	PurchasedTotalDisplay string                 `json:"purchased_total"`
	TotalItems            int                    `json:"total_items"`
	TotalPurchased        int                    `json:"total_purchased"`
	GlobalProgressPercent int                    `json:"progress_percent"`
	Groups                []GroupSummaryResponse `json:"groups"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents a readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// ParseAPIResponse parses an API response from bytes.
func ParseAPIResponse(body []byte) (*APIResponse, error) {
	var resp APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	return &resp, nil
}

// ParseErrorResponse parses an error response from bytes.
func ParseErrorResponse(body []byte) (*ErrorResponse, error) {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse error response: %w", err)
	}
	return &resp, nil
}

// ParseInto parses API response data into the given value.
func ParseInto(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// SignupRequest represents a request to register a user.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a request to open a session.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateGroupRequest represents a request to create a group.
type CreateGroupRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// CreateItemRequest represents a request to create an item.
type CreateItemRequest struct {
	Name     string `json:"name"`
	Unit     string `json:"unit,omitempty"`
	Quantity int64  `json:"quantity,omitempty"`
	Price    int64  `json:"price_cents,omitempty"`
}

// TogglePurchasedRequest represents a request to set an item's purchased flag.
type TogglePurchasedRequest struct {
	Purchased bool `json:"purchased"`
}

// ShareRequest represents a request to share a list with another user.
type ShareRequest struct {
	Email string `json:"email"`
}

// Signup registers a user through the API and returns the session token.
func Signup(ctx context.Context, t *testing.T, client *HTTPClient, name, email string) string {
	t.Helper()

	resp, err := client.Post(ctx, "/api/v1/auth/signup", SignupRequest{
		Name:     name,
		Email:    email,
		Password: "secret1",
	}, nil)
	if err != nil {
		t.Fatalf("Signup request failed: %v", err)
	}
	AssertStatusCode(t, resp, http.StatusCreated)

	apiResp, err := ParseAPIResponse(resp.Body)
	if err != nil {
		t.Fatalf("Failed to parse signup response: %v", err)
	}

	var session SessionResponse
	if err := ParseInto(apiResp.Data, &session); err != nil {
		t.Fatalf("Failed to parse session: %v", err)
	}
	if session.Token == "" {
		t.Fatal("Signup returned an empty session token")
	}
	return session.Token
}

// DefaultList fetches the user's lists, triggering default list creation,
// and returns the first list's ID.
func DefaultList(ctx context.Context, t *testing.T, client *HTTPClient, token string) string {
	t.Helper()

	resp, err := client.Get(ctx, "/api/v1/lists", BearerHeaders(token))
	if err != nil {
		t.Fatalf("Lists request failed: %v", err)
	}
	AssertStatusCode(t, resp, http.StatusOK)

	apiResp, err := ParseAPIResponse(resp.Body)
	if err != nil {
		t.Fatalf("Failed to parse lists response: %v", err)
	}

	var lists []ListResponse
	if err := ParseInto(apiResp.Data, &lists); err != nil {
		t.Fatalf("Failed to parse lists: %v", err)
	}
	if len(lists) == 0 {
		t.Fatal("Expected at least one list")
	}
	return lists[0].ID
}

// CreateGroup creates a group through the API and returns it.
func CreateGroup(ctx context.Context, t *testing.T, client *HTTPClient, token, listID string, req CreateGroupRequest) GroupResponse {
	t.Helper()

	resp, err := client.Post(ctx, "/api/v1/lists/"+listID+"/groups", req, BearerHeaders(token))
	if err != nil {
		t.Fatalf("Create group request failed: %v", err)
	}
	AssertStatusCode(t, resp, http.StatusCreated)

	apiResp, err := ParseAPIResponse(resp.Body)
	if err != nil {
		t.Fatalf("Failed to parse group response: %v", err)
	}

	var group GroupResponse
	if err := ParseInto(apiResp.Data, &group); err != nil {
		t.Fatalf("Failed to parse group: %v", err)
	}
	return group
}

// CreateItem creates an item through the API and returns it.
func CreateItem(ctx context.Context, t *testing.T, client *HTTPClient, token, groupID string, req CreateItemRequest) ItemResponse {
	t.Helper()

	resp, err := client.Post(ctx, "/api/v1/groups/"+groupID+"/items", req, BearerHeaders(token))
	if err != nil {
		t.Fatalf("Create item request failed: %v", err)
	}
	AssertStatusCode(t, resp, http.StatusCreated)

	apiResp, err := ParseAPIResponse(resp.Body)
	if err != nil {
		t.Fatalf("Failed to parse item response: %v", err)
	}

	var item ItemResponse
	if err := ParseInto(apiResp.Data, &item); err != nil {
		t.Fatalf("Failed to parse item: %v", err)
	}
	return item
}

// AssertStatusCode asserts that the response has the expected status code.
func AssertStatusCode(t *testing.T, resp *Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// AssertHeader asserts that the response has the expected header value.
func AssertHeader(t *testing.T, resp *Response, key, expected string) {
	t.Helper()
	actual := resp.Headers.Get(key)
	if actual != expected {
		t.Errorf("Expected header %s to be %q, got %q", key, expected, actual)
	}
}

// AssertSuccess asserts that the API response indicates success.
func AssertSuccess(t *testing.T, apiResp *APIResponse) {
	t.Helper()
	if !apiResp.Success {
		t.Errorf("Expected success=true, got false. Error: %s", apiResp.Error)
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
