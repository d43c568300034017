package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"estate/api/internal/util"
)

const maxRequestIDLength = 64

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type accessLogLine struct {
	RequestID  string `json:"request_id"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	Bytes      int    `json:"bytes"`
	DurationMS int64  `json:"duration_ms"`
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = util.NewID("req")
		}
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		header := writer.Header()
		s.setCORSHeaders(header, r.Header.Get("Origin"))
		header.Set("X-Request-ID", requestID)
		header.Set("Cache-Control", "no-store")
		header.Set("Content-Type", "application/json")

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		line, _ := json.Marshal(accessLogLine{
			RequestID:  requestID,
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     writer.status,
			Bytes:      writer.bytes,
			DurationMS: time.Since(started).Milliseconds(),
		})
		log.Print(string(line))
	})
}

// setCORSHeaders echoes the request origin when it is in the allowed list.
// A "*" entry allows any origin but never with credentials.
func (s *HTTPServer) setCORSHeaders(header http.Header, origin string) {
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Add("Vary", "Origin")

	for _, allowed := range s.corsOrigins {
		switch {
		case allowed == "*":
			header.Set("Access-Control-Allow-Origin", "*")
			return
		case origin != "" && strings.EqualFold(allowed, origin):
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
			return
		}
	}
}

func parseOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}
