package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"focuscache/internal/auth"
	"focuscache/internal/cache"
)

// responseRecorder writes through to the client while keeping a copy of the
// body so the response can be stored in the cache afterwards.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.body.Write(b)
	return rr.ResponseWriter.Write(b)
}

// CachingMiddleware serves GET responses from the response cache and stores
// fresh ones subject to the endpoint policy and cacheability gate. Cache
// keys include the caller identity, so users never see each other's cached
// responses. Hits and misses are reported via the X-Cache header. Only JSON
// bodies are cached; everything else passes through untouched.
//
// A cache failure on either path never fails the request: a broken cache
// just means the handler runs.
func CachingMiddleware(responses *cache.ResponseCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := responses.KeyFor(r.Method, r.URL.Path, auth.CallerID(r), r.URL.Query())
			noCache := strings.Contains(r.Header.Get("Cache-Control"), "no-cache")

			if !noCache {
				if body, ok := responses.Get(r.Context(), key); ok {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Cache", "HIT")
					w.WriteHeader(http.StatusOK)
					w.Write(body)
					return
				}
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			recorder.Header().Set("X-Cache", "MISS")

			next.ServeHTTP(recorder, r)

			responses.Store(r.Context(), r.URL.Path, key, recorder.body.Bytes(), recorder.statusCode, noCache)
		})
	}
}
