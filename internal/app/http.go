package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/s4cindia/ninja-backend-sub007/internal/auth"
	"github.com/s4cindia/ninja-backend-sub007/internal/export"
	"github.com/s4cindia/ninja-backend-sub007/internal/metrics"
	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
	"github.com/s4cindia/ninja-backend-sub007/internal/util"
)

// ServerOptions configures an HTTPServer.
type ServerOptions struct {
	CORSOrigin string
	Verifier   *auth.Verifier
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type HTTPServer struct {
	service    *Service
	corsOrigin string
	verifier   *auth.Verifier
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func NewHTTPServer(service *Service, opts ServerOptions) *HTTPServer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = auth.NewVerifier("")
	}
	return &HTTPServer{
		service:    service,
		corsOrigin: opts.CORSOrigin,
		verifier:   verifier,
		log:        log,
		metrics:    opts.Metrics,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.metrics.Handler().ServeHTTP(w, r)
		return
	}

	if err := s.verifier.VerifyRequest(r); err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized", nil)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "documents" && parts[2] != "" {
		s.handleDocuments(w, r, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, codeNotFound, "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ready(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// handleDocuments routes /api/documents/{id}/{rest...}.
func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, documentID string, rest []string) {
	switch {
	case len(rest) == 1 && rest[0] == "changes" && r.Method == http.MethodPost:
		var body ChangeInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		change, err := s.service.AppendChange(r.Context(), documentID, body)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"change": change})

	case len(rest) == 1 && rest[0] == "changes" && r.Method == http.MethodGet:
		items, err := s.service.ListChanges(r.Context(), documentID)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documentId": documentID, "changes": items})

	case len(rest) == 3 && rest[0] == "changes" && (rest[2] == "revert" || rest[2] == "restore") && r.Method == http.MethodPost:
		change, err := s.service.SetReverted(r.Context(), documentID, rest[1], rest[2] == "revert")
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"change": change})

	case len(rest) == 1 && rest[0] == "plan" && r.Method == http.MethodGet:
		mode := strings.TrimSpace(r.URL.Query().Get("mode"))
		plan, err := s.service.Plan(r.Context(), documentID, mode)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)

	case len(rest) == 1 && rest[0] == "export" && r.Method == http.MethodPost:
		s.handleExport(w, r, documentID)

	case len(rest) == 2 && rest[0] == "export" && rest[1] == "report" && r.Method == http.MethodGet:
		rep, err := s.service.LatestReport(r.Context(), documentID)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": rep})

	default:
		writeError(w, http.StatusNotFound, codeNotFound, "Not found", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, documentID string) {
	var body struct {
		Mode   string `json:"mode"`
		Author string `json:"author"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	result, err := s.service.Export(r.Context(), export.Request{
		DocumentID: documentID,
		Mode:       strings.TrimSpace(body.Mode),
		Author:     strings.TrimSpace(body.Author),
	})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", result.MimeType)
	header.Set("Content-Disposition", contentDisposition(result.Filename))
	header.Set("Content-Length", strconv.Itoa(len(result.Data)))
	header.Set("X-Export-Mode", string(result.Mode))
	header.Set("X-Export-Applied", strconv.Itoa(result.Applied))
	header.Set("X-Export-Skipped", strconv.Itoa(len(result.Skipped)))
	header.Set("X-Export-Fallback", strconv.FormatBool(result.Fallback))
	header.Set("X-Revision-Date", result.Timestamp.Format(time.RFC3339))
	if result.Mode == reconcile.ModeTracked {
		header.Set("X-Revision-Author", result.Author)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.metrics.IncHTTPRequest(r.Method, writer.status)
		s.log.Info("HTTP request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-Export-Mode, X-Export-Applied, X-Export-Skipped, X-Export-Fallback, X-Revision-Author, X-Revision-Date")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// contentDisposition names the attachment with an ASCII fallback and the
// exact filename in RFC 5987 form.
func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, asciiFilename(filename), encodeExtValue(filename))
}

func asciiFilename(filename string) string {
	ext := asciiOnly(path.Ext(filename))
	stem := strings.Trim(asciiOnly(strings.TrimSuffix(filename, path.Ext(filename))), "._-")
	if len(stem) > 80 {
		stem = stem[:80]
	}
	if stem == "" {
		stem = "document"
	}
	return stem + ext
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.', r == '(', r == ')':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}

func encodeExtValue(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			strings.IndexByte("!#$&+-.^_`|~", c) >= 0:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
