package chat

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// HTTP pool tuning for a desktop client issuing bursty, infrequent requests:
// keep a couple of warm connections per provider host, fail connects fast,
// and hard-cap the whole request.
const (
	httpOverallTimeout  = 45 * time.Second
	httpConnectTimeout  = 5 * time.Second
	httpIdleConnTimeout = 90 * time.Second
	httpKeepAlive       = 60 * time.Second
	httpMaxIdlePerHost  = 8
)

type openAIEntry struct {
	apiKey   string
	baseURL  string
	provider *openAIProvider
}

type geminiEntry struct {
	apiKey   string
	provider *geminiProvider
}

// ClientCache memoizes network-ready provider clients, one slot per backend,
// keyed by the (credential, base URL) fingerprint. A slot is replaced when
// its fingerprint changes and is never evicted otherwise. The underlying
// pooled HTTP transport is built once and shared by both providers.
//
// The cache is written only from the session loop; the busy gate already
// serializes the submit path, so last-build-wins replacement is sufficient.
type ClientCache struct {
	httpClient *http.Client

	openai *openAIEntry
	gemini *geminiEntry
}

func NewClientCache() *ClientCache {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   httpConnectTimeout,
			KeepAlive: httpKeepAlive,
		}).DialContext,
		MaxIdleConnsPerHost: httpMaxIdlePerHost,
		IdleConnTimeout:     httpIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &ClientCache{
		httpClient: &http.Client{
			Timeout:   httpOverallTimeout,
			Transport: transport,
		},
	}
}

// HTTPClient exposes the shared pooled client for sibling subsystems
// (model catalog) so the whole process reuses one connection pool.
func (c *ClientCache) HTTPClient() *http.Client {
	if c == nil {
		return nil
	}
	return c.httpClient
}

// Provider returns the cached client for the backend selected by the model
// id, rebuilding it when the credential or base URL changed.
func (c *ClientCache) Provider(cfg Config) (ChatProvider, error) {
	if IsGeminiModel(cfg.ModelID) {
		return c.geminiProvider(strings.TrimSpace(cfg.GeminiKey))
	}
	return c.openAIProvider(strings.TrimSpace(cfg.OpenAIKey), strings.TrimSpace(cfg.OpenAIBaseURL))
}

func (c *ClientCache) openAIProvider(apiKey string, baseURL string) (ChatProvider, error) {
	if e := c.openai; e != nil && e.apiKey == apiKey && e.baseURL == baseURL {
		return e.provider, nil
	}
	p := newOpenAIProvider(c.httpClient, apiKey, baseURL)
	c.openai = &openAIEntry{apiKey: apiKey, baseURL: baseURL, provider: p}
	return p, nil
}

func (c *ClientCache) geminiProvider(apiKey string) (ChatProvider, error) {
	if e := c.gemini; e != nil && e.apiKey == apiKey {
		return e.provider, nil
	}
	p, err := newGeminiProvider(context.Background(), c.httpClient, apiKey)
	if err != nil {
		return nil, err
	}
	c.gemini = &geminiEntry{apiKey: apiKey, provider: p}
	return p, nil
}

// Cached reports which provider slots currently hold a client.
func (c *ClientCache) Cached() (openaiCached bool, geminiCached bool) {
	if c == nil {
		return false, false
	}
	return c.openai != nil, c.gemini != nil
}
