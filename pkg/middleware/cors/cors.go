package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders = "Authorization, Content-Type, X-Request-ID, Idempotency-Key"
	allowedMethods = "GET, POST, PATCH, DELETE, OPTIONS"
	exposedHeaders = "X-Request-ID"
)

// New returns a CORS middleware for the given origins. An empty list allows any
// origin without credentials. Entries of the form "*.example.com" match subdomains.
func New(allowedOrigins []string) gin.HandlerFunc {
	policy := newOriginPolicy(allowedOrigins)

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		origin := strings.TrimRight(c.GetHeader("Origin"), "/")
		switch {
		case policy.allowAll:
			header.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && policy.allows(origin):
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
		case origin != "" && c.Request.Method == http.MethodOptions:
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		header.Set("Access-Control-Expose-Headers", exposedHeaders)

		if c.Request.Method == http.MethodOptions {
			header.Set("Access-Control-Allow-Headers", allowedHeaders)
			header.Set("Access-Control-Allow-Methods", allowedMethods)
			header.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type originPolicy struct {
	allowAll bool
	exact    map[string]struct{}
	suffixes []string
}

func newOriginPolicy(origins []string) originPolicy {
	policy := originPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case origin == "*":
			policy.allowAll = true
		case strings.Contains(origin, "*."):
			policy.suffixes = append(policy.suffixes, origin[strings.Index(origin, "*.")+1:])
		default:
			policy.exact[origin] = struct{}{}
		}
	}
	if len(policy.exact) == 0 && len(policy.suffixes) == 0 {
		policy.allowAll = true
	}
	return policy
}

func (p originPolicy) allows(origin string) bool {
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
