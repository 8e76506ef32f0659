// Package assist calls the text-processing service used to summarize and
// translate glove session logs. The service is an opaque text-in/text-out
// network endpoint; responses are cached in memory so repeated requests for
// the same input do not hit the network.
package assist

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/glovelink/glovelink/internal/log"
	"github.com/glovelink/glovelink/pkg/transport"
)

// MaxResponseLength caps the byte-length of service responses.
const MaxResponseLength = 100000

// DefaultCacheEntries bounds the response cache unless overridden.
const DefaultCacheEntries = 128

// ErrTokenExpired indicates the configured bearer token is past its expiry
// claim. Refresh the credential before retrying.
var ErrTokenExpired = transport.NewError("assist token has expired", false, false)

// HTTPError reports a non-success status from the assist service.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Code)
	}
	return e.Message
}

func (e *HTTPError) Temporary() bool {
	return e.Code == http.StatusServiceUnavailable ||
		e.Code == http.StatusGatewayTimeout ||
		e.Code == http.StatusRequestTimeout ||
		e.Code == http.StatusTooManyRequests
}

func (e *HTTPError) UserInitiated() bool {
	return false
}

// Client talks to one assist service endpoint.
type Client struct {
	// UserAgent is sent with every request.
	UserAgent string

	baseURL    string
	authHeader string
	client     *http.Client

	maxEntries int
	lock       sync.Mutex
	cache      map[string]string
	order      []string
}

// NewClient returns a Client for the service at baseURL. If token is a JWT,
// its expiry claim is checked (without signature verification) so a stale
// credential fails here rather than on the first request; opaque tokens are
// passed through as-is.
func NewClient(baseURL, token string) (*Client, error) {
	if token != "" {
		if err := checkTokenExpiry(token); err != nil {
			return nil, err
		}
	}
	c := &Client{
		UserAgent:  "glovelink",
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxEntries: DefaultCacheEntries,
		cache:      make(map[string]string),
	}
	if token != "" {
		c.authHeader = "Bearer " + token
	}
	return c, nil
}

func checkTokenExpiry(token string) error {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		// Not a JWT; treat as an opaque credential.
		log.Debug("assist: token is not a JWT, skipping expiry check")
		return nil
	}
	expiry, err := parsed.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return nil
	}
	if expiry.Before(time.Now()) {
		return ErrTokenExpired
	}
	return nil
}

// Summarize returns a short summary of text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	return c.post(ctx, "summarize", map[string]string{"text": text})
}

// Translate returns text translated into the target language.
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	return c.post(ctx, "translate", map[string]string{"text": text, "target": target})
}

func (c *Client) post(ctx context.Context, endpoint string, payload map[string]string) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	key := cacheKey(endpoint, body)
	c.lock.Lock()
	if cached, ok := c.cache[key]; ok {
		c.lock.Unlock()
		log.Debug("assist: cache hit for %s", endpoint)
		return cached, nil
	}
	c.lock.Unlock()

	url := c.baseURL + "/" + endpoint
	log.Debug("assist: sending request to %s", url)
	request, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("User-Agent", c.UserAgent)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if c.authHeader != "" {
		request.Header.Set("Authorization", c.authHeader)
	}

	result, err := c.client.Do(request)
	if err != nil {
		return "", err
	}
	defer result.Body.Close()

	data, err := io.ReadAll(io.LimitReader(result.Body, MaxResponseLength+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxResponseLength {
		return "", fmt.Errorf("assist: response exceeds maximum length")
	}
	if result.StatusCode != http.StatusOK {
		return "", &HTTPError{Code: result.StatusCode, Message: string(bytes.TrimSpace(data))}
	}

	var response struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return "", fmt.Errorf("assist: invalid response: %s", err)
	}

	c.store(key, response.Text)
	return response.Text, nil
}

func cacheKey(endpoint string, body []byte) string {
	digest := sha256.New()
	digest.Write([]byte(endpoint))
	digest.Write([]byte{0})
	digest.Write(body)
	return hex.EncodeToString(digest.Sum(nil))
}

// store inserts with least-recently-inserted eviction once the cache is full.
func (c *Client) store(key, value string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.cache[key]; ok {
		return
	}
	c.cache[key] = value
	c.order = append(c.order, key)
	for c.maxEntries > 0 && len(c.order) > c.maxEntries {
		delete(c.cache, c.order[0])
		c.order = c.order[1:]
	}
}
