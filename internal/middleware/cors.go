package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowHeaders = "Authorization, Content-Type, X-Request-Id"
	corsAllowMethods = "GET, POST, PATCH, OPTIONS"
	corsMaxAge       = "600"
)

type wildcardOrigin struct {
	scheme string
	suffix string
}

// originPolicy decides which browser origins may call the API with
// credentials. Entries are exact origins or "scheme://*.domain" patterns.
type originPolicy struct {
	allowAll  bool
	exact     map[string]struct{}
	wildcards []wildcardOrigin
}

func newOriginPolicy(allowedOrigins []string) originPolicy {
	p := originPolicy{exact: make(map[string]struct{}, len(allowedOrigins))}
	for _, entry := range allowedOrigins {
		entry = strings.TrimRight(strings.TrimSpace(entry), "/")
		switch {
		case entry == "":
		case entry == "*":
			p.allowAll = true
		case strings.Contains(entry, "://*."):
			idx := strings.Index(entry, "://*.")
			p.wildcards = append(p.wildcards, wildcardOrigin{
				scheme: strings.ToLower(entry[:idx]),
				suffix: strings.ToLower(entry[idx+len("://*"):]),
			})
		default:
			p.exact[strings.ToLower(entry)] = struct{}{}
		}
	}
	if len(p.exact) == 0 && len(p.wildcards) == 0 {
		p.allowAll = true
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if p.allowAll {
		return true
	}
	origin = strings.ToLower(origin)
	if _, ok := p.exact[origin]; ok {
		return true
	}
	if len(p.wildcards) == 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, w := range p.wildcards {
		if u.Scheme == w.scheme && strings.HasSuffix(u.Host, w.suffix) {
			return true
		}
	}
	return false
}

// CORS answers cross-origin requests for the configured origins. An empty
// list allows every origin, which is meant for development only. Session
// cookies travel cross-origin only to a matched origin, and a preflight from
// any other origin is refused with 403.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	policy := newOriginPolicy(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		header := c.Writer.Header()
		header.Add("Vary", "Origin")
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""

		if !policy.allows(origin) {
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Expose-Headers", requestIDHeader)

		if preflight {
			header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			header.Set("Access-Control-Allow-Methods", corsAllowMethods)
			header.Set("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
