package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"
	"triage_service/internal/clients"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ChatProxyConfig struct {
	Target  string
	APIKey  string
	Timeout time.Duration
}

// NewChatProxy forwards request bodies unchanged to the upstream chat
// endpoint, replacing the caller's Authorization with the server's key.
// The upstream status and body are mirrored back.
func NewChatProxy(cfg ChatProxyConfig, log *logrus.Logger) (*httputil.ReverseProxy, error) {
	targetURL, err := url.Parse(cfg.Target)
	if err != nil || targetURL.Scheme == "" || targetURL.Host == "" {
		log.Errorf("Failed to parse target URL '%s': %v", cfg.Target, err)
		return nil, fmt.Errorf("invalid target URL %q", cfg.Target)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	p := &httputil.ReverseProxy{Transport: transport}
	p.Director = func(req *http.Request) {
		req.URL.Scheme = targetURL.Scheme
		req.URL.Host = targetURL.Host
		req.URL.Path = targetURL.Path
		req.URL.RawPath = targetURL.RawPath
		req.Host = targetURL.Host

		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
		// the upstream sees the server, not the browser
		req.Header.Del("Cookie")
		req.Header.Del("Origin")

		log.Debugf("Proxy Director: Forwarding to %s", req.URL.Redacted())
	}

	p.ErrorHandler = func(rw http.ResponseWriter, req *http.Request, err error) {
		status := http.StatusBadGateway
		body := map[string]string{"error": "Bad Gateway", "details": "Could not connect to Deepseek API"}
		if clients.IsTimeout(err) {
			status = http.StatusGatewayTimeout
			body = map[string]string{"error": "Gateway Timeout", "details": "Request to Deepseek API timed out"}
		}
		log.Errorf("Reverse proxy error to target '%s': %v (responding %d)", targetURL.Redacted(), err, status)

		rw.Header().Set("Content-Type", "application/json; charset=utf-8")
		rw.WriteHeader(status)
		_ = json.NewEncoder(rw).Encode(body)
	}

	log.Infof("Reverse proxy created for target: %s", targetURL.Redacted())
	return p, nil
}

// ProxyHandler answers 500 without contacting the upstream when no API key
// is configured.
func ProxyHandler(p *httputil.ReverseProxy, apiKeySet bool, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !apiKeySet {
			log.Error("ProxyHandler: Deepseek API key not found in environment variables")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Server configuration error",
				"details": "API key not configured",
			})
			return
		}
		log.Infof("ProxyHandler: Forwarding chat request (%d bytes)", c.Request.ContentLength)
		p.ServeHTTP(c.Writer, c.Request)
	}
}
