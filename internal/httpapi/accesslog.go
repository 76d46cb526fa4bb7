package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const clfTimeLayout = "02/Jan/2006:15:04:05 -0700"

// logRequests writes an Apache combined log line for every request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.accessLog == nil {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := s.now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			s.accessLog.Print(`%s - - [%s] "%s %s %s" %d %d "%s" "%s" %s`,
				remoteHost(r.RemoteAddr),
				started.Format(clfTimeLayout),
				r.Method,
				r.URL.RequestURI(),
				r.Proto,
				status,
				ww.BytesWritten(),
				orDash(r.Referer()),
				orDash(r.UserAgent()),
				s.now().Sub(started).Round(time.Millisecond),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
