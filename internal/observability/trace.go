package observability

import "net/http"

// Trace creates a middleware that injects trace, span and request ids into
// every request context. An inbound X-Request-Id is reused so metering audit
// rows correlate with the caller's logs, and an X-User-Id header tags the
// billed user before the body is even decoded.
func Trace() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			traceID := GenerateTraceID()
			ctx = WithTraceID(ctx, traceID)
			ctx = WithSpanID(ctx, GenerateSpanID())

			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = GenerateRequestID()
			}
			ctx = WithRequestID(ctx, requestID)

			if userID := r.Header.Get("X-User-Id"); userID != "" {
				ctx = WithUserID(ctx, userID)
			}

			w.Header().Set("X-Trace-Id", traceID)
			w.Header().Set("X-Request-Id", requestID)

			FromContext(ctx).Info("request started",
				String("method", r.Method),
				String("path", r.URL.Path),
				String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
