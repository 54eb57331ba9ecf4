package m2m

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://ooinet.oceanobservatories.org"
	defaultTimeout = 30 * time.Second
	userAgent      = "ingestctl-m2m/1.0.0"

	ingestRequestPath = "api/m2m/12589/ingestrequest/"
	annotationPath    = "api/m2m/12580/anno/"
)

// Client is the M2M API client.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	token      string
	userAgent  string
	limiter    *rate.Limiter

	// Service clients
	Ingest     *IngestService
	Annotation *AnnotationService
}

// NewClient creates a new M2M API client.
func NewClient(baseURL string, opts ...Option) *Client {
	parsedURL, err := url.Parse(baseURL)
	if err != nil || parsedURL.Host == "" {
		parsedURL, _ = url.Parse(defaultBaseURL)
	}
	parsedURL.Path = strings.TrimSuffix(parsedURL.Path, "/")

	c := &Client{
		baseURL:    parsedURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  userAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Ingest = &IngestService{client: c}
	c.Annotation = &AnnotationService{client: c}

	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// doRequest performs an HTTP request. requestPath is relative to the base URL and
// keeps its trailing slash, which the M2M collection endpoints require.
func (c *Client) doRequest(ctx context.Context, method, requestPath string, body interface{}, queryParams map[string]string) (*http.Response, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + requestPath
	u.RawQuery = ""

	if len(queryParams) > 0 {
		q := u.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if c.apiKey != "" {
		req.SetBasicAuth(c.apiKey, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	return resp, nil
}

// doJSON performs a request and decodes the JSON response into the result.
// Any status outside 2xx is returned as *APIError.
func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, result interface{}, queryParams map[string]string) error {
	resp, err := c.doRequest(ctx, method, requestPath, body, queryParams)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handleErrorResponse(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// doWrite performs a write request. A 2xx body that is not a JSON object is kept
// as the response message instead of failing the call.
func (c *Client) doWrite(ctx context.Context, method, requestPath string, body interface{}) (*APIResponse, error) {
	resp, err := c.doRequest(ctx, method, requestPath, body, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, handleErrorResponse(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result := &APIResponse{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			result.Message = strings.TrimSpace(string(raw))
		}
	}
	result.HTTPStatus = resp.StatusCode
	return result, nil
}
