package middleware

import (
	"regexp"
	"strings"

	"github.com/valyala/fasthttp"
)

type CORSMiddleware struct {
	allowedOrigins []string
	localhostRegex *regexp.Regexp
}

func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &CORSMiddleware{
		allowedOrigins: origins,
		localhostRegex: regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1)(:\d+)?$`),
	}
}

func (cm *CORSMiddleware) Handle(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		origin := string(ctx.Request.Header.Peek("Origin"))

		switch {
		case cm.wildcard():
			ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && cm.AllowsOrigin(origin):
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Set("Vary", "Origin")
		}

		ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Range")
		ctx.Response.Header.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		ctx.Response.Header.Set("Access-Control-Max-Age", "86400")

		if ctx.IsOptions() {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		next(ctx)
	}
}

// AllowsOrigin reports whether a browser origin may call the API.
func (cm *CORSMiddleware) AllowsOrigin(origin string) bool {
	if cm.wildcard() {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	for _, allowed := range cm.allowedOrigins {
		if allowed == origin {
			return true
		}
		if (allowed == "http://localhost:*" || allowed == "https://localhost:*") && cm.localhostRegex.MatchString(origin) {
			return true
		}
	}
	return false
}

func (cm *CORSMiddleware) wildcard() bool {
	return len(cm.allowedOrigins) == 1 && cm.allowedOrigins[0] == "*"
}
