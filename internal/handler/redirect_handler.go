package handler

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/linkpulse/internal/middleware"
	"github.com/user/linkpulse/internal/service"
	"go.uber.org/zap"
)

// Resolver turns a visit into a redirect decision.
type Resolver interface {
	Resolve(ctx context.Context, req service.ResolveRequest) (*service.Resolution, error)
}

// RedirectHandler serves short links.
type RedirectHandler struct {
	resolver Resolver
	log      *zap.Logger
}

// NewRedirectHandler creates a new redirect handler.
func NewRedirectHandler(resolver Resolver, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{resolver: resolver, log: log}
}

// ===========================================
// GET /:shortCode
// ===========================================
// Redirects to the original URL with 302. A 301 would be cached by
// browsers and later visits would never be counted.
func (h *RedirectHandler) Redirect(c *gin.Context) {
	h.resolve(c, nil, http.StatusFound)
}

// ===========================================
// POST /:shortCode
// ===========================================
// Same as GET, with the password from form field "password".
// Answers 303 so the browser follows with a GET.
func (h *RedirectHandler) Unlock(c *gin.Context) {
	password := c.PostForm("password")
	h.resolve(c, &password, http.StatusSeeOther)
}

func (h *RedirectHandler) resolve(c *gin.Context, password *string, status int) {
	shortCode := c.Param("shortCode")

	res, err := h.resolver.Resolve(c.Request.Context(), service.ResolveRequest{
		ShortCode: shortCode,
		Password:  password,
		IP:        middleware.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	})
	if err != nil {
		if isPasswordError(err) && wantsHTML(c) {
			h.renderPasswordForm(c, shortCode, err)
			return
		}
		handleError(c, h.log, err)
		return
	}

	c.Redirect(status, res.URL)
}

func isPasswordError(err error) bool {
	return errors.Is(err, service.ErrPasswordRequired) || errors.Is(err, service.ErrUnauthorized)
}

// wantsHTML reports whether the client prefers HTML to JSON.
// Clients that send no Accept header get JSON.
func wantsHTML(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML
}

// ===========================================
// Password Form
// ===========================================

type passwordPage struct {
	ShortCode string
	Wrong     bool
}

var passwordTemplate = template.Must(template.New("password").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta name="robots" content="noindex">
    <title>Protected link</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 50%, #0f3460 100%);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #fff;
        }
        .card {
            width: 90%;
            max-width: 420px;
            background: rgba(255, 255, 255, 0.05);
            border-radius: 20px;
            padding: 40px;
            border: 1px solid rgba(255, 255, 255, 0.1);
        }
        h1 { font-size: 1.5rem; margin-bottom: 8px; }
        p { color: #94a3b8; margin-bottom: 24px; }
        input[type="password"] {
            width: 100%;
            padding: 14px 18px;
            border: 2px solid rgba(255, 255, 255, 0.1);
            border-radius: 12px;
            background: rgba(255, 255, 255, 0.05);
            color: #fff;
            font-size: 1rem;
        }
        button {
            width: 100%;
            margin-top: 16px;
            padding: 14px;
            border: none;
            border-radius: 12px;
            background: linear-gradient(90deg, #00d2ff, #3a7bd5);
            color: #fff;
            font-size: 1rem;
            font-weight: 600;
            cursor: pointer;
        }
        .error { color: #ff6b6b; margin-bottom: 16px; }
    </style>
</head>
<body>
    <form class="card" method="POST" action="/{{.ShortCode}}">
        <h1>This link is protected</h1>
        <p>Enter the password to continue to /{{.ShortCode}}.</p>
        {{if .Wrong}}<div class="error">Wrong password. Try again.</div>{{end}}
        <input type="password" name="password" placeholder="Password" autofocus required>
        <button type="submit">Continue</button>
    </form>
</body>
</html>`))

// passwordPageCSP allows the page's own inline styles. It sets no
// form-action: browsers apply that directive to the redirect after the
// submit, and the unlocked destination is on another origin.
const passwordPageCSP = "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'"

func (h *RedirectHandler) renderPasswordForm(c *gin.Context, shortCode string, err error) {
	status := http.StatusUnauthorized
	wrong := errors.Is(err, service.ErrUnauthorized)
	if wrong {
		status = http.StatusForbidden
	}

	var buf bytes.Buffer
	if tplErr := passwordTemplate.Execute(&buf, passwordPage{ShortCode: shortCode, Wrong: wrong}); tplErr != nil {
		handleError(c, h.log, tplErr)
		return
	}

	c.Header("Content-Security-Policy", passwordPageCSP)
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
