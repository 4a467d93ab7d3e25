package controllers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepdash/prepdash/config"
	"github.com/prepdash/prepdash/utils"
)

const (
	graphqlCacheControl  = "public, s-maxage=300, stale-while-revalidate=600"
	problemsCacheControl = "public, s-maxage=86400, stale-while-revalidate=604800"

	graphqlCacheTTL  = 5 * time.Minute
	problemsCacheTTL = time.Hour
)

// ProxyController relays dashboard requests to LeetCode's GraphQL and REST
// endpoints. The browser cannot call them directly because of CORS, so the
// proxy answers with permissive CORS headers and keeps browser-like request
// headers on the upstream side.
type ProxyController struct {
	GraphQLURL  string
	ProblemsURL string
	Client      *http.Client
	// UseCache mirrors upstream responses into redis alongside the edge
	// cache headers; disabled in tests.
	UseCache bool
}

// NewProxyController builds the controller from application config.
func NewProxyController() *ProxyController {
	cfg := config.Get()
	return &ProxyController{
		GraphQLURL:  cfg.LeetCodeGraphQLURL,
		ProblemsURL: cfg.LeetCodeProblemsURL,
		Client:      &http.Client{Timeout: 20 * time.Second},
		UseCache:    true,
	}
}

// GraphQL forwards a POST body verbatim to the upstream GraphQL endpoint.
func (p *ProxyController) GraphQL(ctx *gin.Context) {
	setProxyCORS(ctx)

	switch ctx.Request.Method {
	case http.MethodOptions:
		ctx.Status(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		return
	}

	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		proxyError(ctx)
		return
	}

	cacheKey := "proxy:lc:gql:" + hashKey(body)
	if p.UseCache {
		if raw, ok := utils.CacheGetBytes(cacheKey); ok {
			if contentType, cached, ok := decodeCacheEntry(raw); ok {
				ctx.Header("Cache-Control", graphqlCacheControl)
				ctx.Data(http.StatusOK, contentType, cached)
				return
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx.Request.Context(), http.MethodPost, p.GraphQLURL, bytes.NewReader(body))
	if err != nil {
		proxyError(ctx)
		return
	}
	spoofHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		proxyError(ctx)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		proxyError(ctx)
		return
	}

	if p.UseCache && resp.StatusCode == http.StatusOK {
		utils.CacheSetBytes(cacheKey, encodeCacheEntry(contentTypeOf(resp), respBody), graphqlCacheTTL)
	}

	ctx.Header("Cache-Control", graphqlCacheControl)
	ctx.Data(resp.StatusCode, contentTypeOf(resp), respBody)
}

// Problems forwards a GET to the upstream problem-list endpoint.
func (p *ProxyController) Problems(ctx *gin.Context) {
	setProxyCORS(ctx)

	switch ctx.Request.Method {
	case http.MethodOptions:
		ctx.Status(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		return
	}

	cacheKey := "proxy:lc:problems:" + hashKey([]byte(ctx.Request.URL.RawQuery))
	if p.UseCache {
		if raw, ok := utils.CacheGetBytes(cacheKey); ok {
			if contentType, cached, ok := decodeCacheEntry(raw); ok {
				ctx.Header("Cache-Control", problemsCacheControl)
				ctx.Data(http.StatusOK, contentType, cached)
				return
			}
		}
	}

	upstream := p.ProblemsURL
	if q := ctx.Request.URL.RawQuery; q != "" {
		upstream += "?" + q
	}

	req, err := http.NewRequestWithContext(ctx.Request.Context(), http.MethodGet, upstream, nil)
	if err != nil {
		proxyError(ctx)
		return
	}
	spoofHeaders(req)

	resp, err := p.Client.Do(req)
	if err != nil {
		proxyError(ctx)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		proxyError(ctx)
		return
	}

	if p.UseCache && resp.StatusCode == http.StatusOK {
		utils.CacheSetBytes(cacheKey, encodeCacheEntry(contentTypeOf(resp), respBody), problemsCacheTTL)
	}

	ctx.Header("Cache-Control", problemsCacheControl)
	ctx.Data(resp.StatusCode, contentTypeOf(resp), respBody)
}

// setProxyCORS answers for any origin; the proxied data is public.
func setProxyCORS(ctx *gin.Context) {
	ctx.Header("Access-Control-Allow-Origin", "*")
	ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	ctx.Header("Access-Control-Allow-Headers", "Content-Type")
}

// spoofHeaders makes the upstream see a browser-like client; LeetCode rejects
// obviously non-browser requests.
func spoofHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	req.Header.Set("Referer", "https://leetcode.com/")
	req.Header.Set("Origin", "https://leetcode.com")
	req.Header.Set("Accept", "application/json")
}

func proxyError(ctx *gin.Context) {
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Proxy error"})
}

func contentTypeOf(resp *http.Response) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}

func hashKey(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// cacheEntry keeps the upstream content type with the body, so a cache hit
// replays exactly what the miss path relayed.
type cacheEntry struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

func encodeCacheEntry(contentType string, body []byte) []byte {
	b, _ := json.Marshal(cacheEntry{ContentType: contentType, Body: body})
	return b
}

// decodeCacheEntry rejects entries it cannot parse; the caller then falls
// through to the upstream as if the key had missed.
func decodeCacheEntry(raw []byte) (string, []byte, bool) {
	var e cacheEntry
	if err := json.Unmarshal(raw, &e); err != nil || len(e.Body) == 0 {
		return "", nil, false
	}
	if e.ContentType == "" {
		e.ContentType = "application/json"
	}
	return e.ContentType, e.Body, true
}
