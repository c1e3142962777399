package httpserver

import (
	"net/http"
	"time"
)

// Timeouts sized for bill document uploads: a create/update request may
// carry five 15 MB files, so body reads get minutes while headers get
// seconds. Idle keep-alive connections are recycled well before typical
// load-balancer limits.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 3 * time.Minute
	writeTimeout      = 3 * time.Minute
	idleTimeout       = 90 * time.Second
)

// New builds the HTTP server. Graceful shutdown is driven by the caller.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
