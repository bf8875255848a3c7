package cloud

import (
	"context"
	"crypto/md5" //nolint:gosec // the cloud API mandates MD5 signatures
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/cloudlink-core/internal/device"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/config"
)

// API paths.
const (
	PathLogin         = "/v1/Auth/Login"
	PathLogout        = "/v1/Profile/logout"
	PathDeviceList    = "/v1/Device/devList"
	PathHubSubDevices = "/v1/Hub/getSubDevices"
)

// maxResponseSize bounds the body read from the API (4MB).
const maxResponseSize = 4 << 20

// apiStatus values that mean the caller is not authorised.
var unauthorizedStatuses = map[int]bool{
	1000: true, // wrong password
	1001: true, // invalid password format
	1002: true, // account does not exist
	1019: true, // token expired
	1022: true, // token invalid
	1200: true, // token expired
}

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Credentials are returned by Login and identify the account on the broker.
type Credentials struct {
	Token      string `json:"token"`
	Key        string `json:"key"`
	UserID     string `json:"userid"`
	Email      string `json:"email"`
	Domain     string `json:"domain"`
	MQTTDomain string `json:"mqttDomain"`
}

// envelope is the common response wrapper.
type envelope struct {
	APIStatus int             `json:"apiStatus"`
	Info      string          `json:"info"`
	Data      json.RawMessage `json:"data"`
}

// Client calls the cloud HTTP API.
//
// It implements the device discovery collaborator of the session manager.
// All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	signingKey string
	httpClient *http.Client

	now   func() time.Time
	nonce func() string

	mu     sync.RWMutex
	creds  *Credentials
	logger Logger
}

// New creates a client for the API at cfg.BaseURL.
func New(cfg config.CloudConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		signingKey: cfg.SigningKey,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		now:        time.Now,
		nonce:      newNonce,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// Credentials returns the credentials of the current login.
func (c *Client) Credentials() (Credentials, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.creds == nil {
		return Credentials{}, false
	}
	return *c.creds, true
}

// Login authenticates the account and stores the returned token for later calls.
//
// Parameters:
//   - ctx: Context for cancellation
//   - email: Account email
//   - password: Account password
//
// Returns:
//   - *Credentials: Token, key, and user ID for the push channel
//   - error: ErrUnauthorized if the credentials are rejected
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	var creds Credentials
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, PathLogin, "", body, &creds); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if creds.Token == "" || creds.Key == "" || creds.UserID == "" {
		return nil, fmt.Errorf("login: %w: incomplete credentials", ErrUnexpectedResponse)
	}

	c.mu.Lock()
	c.creds = &creds
	c.mu.Unlock()

	c.getLogger().Info("logged in to cloud", "user_id", creds.UserID)
	return &creds, nil
}

// Logout invalidates the current token. Logging out without a login is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	token, err := c.token()
	if errors.Is(err, ErrNotLoggedIn) {
		return nil
	}
	if err := c.call(ctx, PathLogout, token, map[string]any{}, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	c.mu.Lock()
	c.creds = nil
	c.mu.Unlock()
	return nil
}

// ListDevices returns the descriptors of every device bound to the account.
func (c *Client) ListDevices(ctx context.Context) ([]device.Descriptor, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var descs []device.Descriptor
	if err := c.call(ctx, PathDeviceList, token, map[string]any{}, &descs); err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return descs, nil
}

// ListHubSubDevices returns the descriptors of the sub-devices paired to a hub.
func (c *Client) ListHubSubDevices(ctx context.Context, hubUUID string) ([]device.Descriptor, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var descs []device.Descriptor
	body := map[string]any{"uuid": hubUUID}
	if err := c.call(ctx, PathHubSubDevices, token, body, &descs); err != nil {
		return nil, fmt.Errorf("listing sub-devices of %s: %w", hubUUID, err)
	}
	return descs, nil
}

func (c *Client) token() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.creds == nil || c.creds.Token == "" {
		return "", ErrNotLoggedIn
	}
	return c.creds.Token, nil
}

// call performs one signed POST and decodes the envelope data into out.
func (c *Client) call(ctx context.Context, path, token string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	params := base64.StdEncoding.EncodeToString(raw)
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	nonce := c.nonce()

	form := url.Values{}
	form.Set("params", params)
	form.Set("timestamp", timestamp)
	form.Set("nonce", nonce)
	form.Set("sign", Sign(c.signingKey, timestamp, nonce, params))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+token)
	req.Header.Set("vender", "Meross")
	req.Header.Set("AppLanguage", "EN")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.getLogger().Debug("cloud api call", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrUnexpectedResponse, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	if env.APIStatus != 0 {
		if unauthorizedStatuses[env.APIStatus] {
			return fmt.Errorf("%w: apiStatus %d: %s", ErrUnauthorized, env.APIStatus, env.Info)
		}
		return fmt.Errorf("%w: apiStatus %d: %s", ErrAPIStatus, env.APIStatus, env.Info)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decoding data: %w", ErrUnexpectedResponse, err)
	}
	return nil
}

// Sign computes the request signature: md5(signingKey + timestamp + nonce + params).
func Sign(signingKey, timestamp, nonce, params string) string {
	sum := md5.Sum([]byte(signingKey + timestamp + nonce + params)) //nolint:gosec // protocol requirement
	return hex.EncodeToString(sum[:])
}

// newNonce returns a random 16-character upper-case nonce.
func newNonce() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
