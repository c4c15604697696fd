/**
 * @description
 * This package provides a client for the remote banking API. It wraps every call
 * with consistent error handling: transport failures become NetworkError, non-2xx
 * responses become HTTPError, and success envelopes of the shape
 * {success, data, error, message} are unwrapped.
 *
 * @dependencies
 * - net/http, encoding/json, net/url: request construction and decoding.
 */
package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request to the banking API.
const DefaultTimeout = 15 * time.Second

const defaultErrorMessage = "An error occurred"

// ErrNetworkUnavailable is matched by every NetworkError.
var ErrNetworkUnavailable = errors.New("network unavailable")

// NetworkError reports that the banking API could not be reached.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "Network error. Please check your connection and try again."
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetworkUnavailable }

// HTTPError is a non-2xx response, or a 2xx envelope reporting success:false.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return defaultErrorMessage
	}
	return e.Message
}

// envelope is the optional wrapper the banking API puts around responses.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// Client is a client for the banking API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	formEncoded bool
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithFormEncoding makes typed endpoints send request bodies as
// application/x-www-form-urlencoded instead of JSON.
func WithFormEncoding(enabled bool) Option {
	return func(c *Client) { c.formEncoded = enabled }
}

// NewClient creates a new banking API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Call performs a request against endpoint. payload may be nil, url.Values (sent
// form encoded), or any JSON-encodable value. When out is non-nil the response data
// is decoded into it.
func (c *Client) Call(ctx context.Context, method, endpoint string, payload any, out any) error {
	return c.do(ctx, method, endpoint, payload, nil, out)
}

// CallAuthenticated is Call with an Authorization bearer header when token is set.
func (c *Client) CallAuthenticated(ctx context.Context, token, method, endpoint string, payload any, out any) error {
	var headers http.Header
	if token = strings.TrimSpace(token); token != "" {
		headers = http.Header{}
		headers.Set("Authorization", "Bearer "+token)
	}
	return c.do(ctx, method, endpoint, payload, headers, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, headers http.Header, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("bank api base url is empty")
	}

	body, contentType, err := encodeBody(method, payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json") || json.Valid(bytes.TrimSpace(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(raw, isJSON)}
	}

	data := bytes.TrimSpace(raw)
	if isJSON && len(data) > 0 {
		var env envelope
		if data[0] == '{' && json.Unmarshal(data, &env) == nil && env.Success != nil {
			if !*env.Success {
				message := env.Error
				if message == "" {
					message = env.Message
				}
				if message == "" {
					message = defaultErrorMessage
				}
				return &HTTPError{StatusCode: resp.StatusCode, Message: message}
			}
			data = env.Data
		}
	}

	if out == nil || len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if !isJSON {
		if text, ok := out.(*string); ok {
			*text = string(data)
			return nil
		}
		return fmt.Errorf("failed to decode response: unexpected non-JSON body")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func encodeBody(method string, payload any) (io.Reader, string, error) {
	const jsonType = "application/json"
	if payload == nil || method == http.MethodGet || method == http.MethodDelete {
		return nil, jsonType, nil
	}
	if form, ok := payload.(url.Values); ok {
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}
	return bytes.NewReader(encoded), jsonType, nil
}

// errorMessage prefers message, then error, then the raw text.
func errorMessage(raw []byte, isJSON bool) string {
	trimmed := strings.TrimSpace(string(raw))
	if isJSON {
		var body struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &body) == nil {
			if body.Message != "" {
				return body.Message
			}
			if body.Error != "" {
				return body.Error
			}
		}
	}
	if trimmed != "" {
		return trimmed
	}
	return defaultErrorMessage
}

// Health reports whether the banking API answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// toForm flattens a JSON-encodable struct into url.Values.
func toForm(payload any) (url.Values, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to flatten request: %w", err)
	}
	form := url.Values{}
	for key, value := range fields {
		switch v := value.(type) {
		case nil:
		case string:
			form.Set(key, v)
		default:
			form.Set(key, fmt.Sprint(v))
		}
	}
	return form, nil
}

// body returns payload in the encoding this client is configured for.
func (c *Client) body(payload any) (any, error) {
	if !c.formEncoded || payload == nil {
		return payload, nil
	}
	return toForm(payload)
}
