package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// ETagConfig controls the validators and Cache-Control sent on GET responses.
type ETagConfig struct {
	// MaxAge in seconds. Zero sends no-cache so clients always revalidate.
	MaxAge int
	// Private keeps shared caches from storing per-user responses.
	Private bool
	Vary    []string
}

// DefaultETagConfig suits per-user dashboard JSON: private and always
// revalidated.
func DefaultETagConfig() ETagConfig {
	return ETagConfig{
		Private: true,
		Vary:    []string{"Accept", "Authorization", "Cookie"},
	}
}

// bufferedWriter holds the body until the ETag is known.
type bufferedWriter struct {
	header http.Header
	buf    bytes.Buffer
	status int
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *bufferedWriter) WriteHeader(code int) { w.status = code }

// ETag hashes successful GET bodies into a strong ETag and answers a
// matching If-None-Match with 304.
func ETag(cfg ETagConfig) echo.MiddlewareFunc {
	cacheControl := buildCacheControl(cfg)
	vary := strings.Join(cfg.Vary, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}

			res := c.Response()
			orig := res.Writer
			buf := &bufferedWriter{header: orig.Header(), status: http.StatusOK}
			res.Writer = buf
			err := next(c)
			res.Writer = orig
			if err != nil {
				return err
			}

			if buf.status >= 200 && buf.status < 300 {
				etag := computeETag(buf.buf.Bytes())
				h := orig.Header()
				h.Set("ETag", etag)
				h.Set("Cache-Control", cacheControl)
				if vary != "" {
					h.Set("Vary", vary)
				}
				if etagMatch(req.Header.Get("If-None-Match"), etag) {
					h.Del("Content-Length")
					orig.WriteHeader(http.StatusNotModified)
					return nil
				}
			}

			orig.WriteHeader(buf.status)
			_, werr := orig.Write(buf.buf.Bytes())
			return werr
		}
	}
}

func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func buildCacheControl(cfg ETagConfig) string {
	parts := []string{}
	if cfg.Private {
		parts = append(parts, "private")
	}
	if cfg.MaxAge > 0 {
		parts = append(parts, "max-age="+strconv.Itoa(cfg.MaxAge))
	} else {
		parts = append(parts, "no-cache")
	}
	return strings.Join(parts, ", ")
}

// etagMatch handles lists, "*" and weak validators in If-None-Match.
func etagMatch(header, etag string) bool {
	if header == "" {
		return false
	}
	if strings.TrimSpace(header) == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == etag {
			return true
		}
	}
	return false
}
