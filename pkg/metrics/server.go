package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/avoiney/oppy/pkg/logger"
)

// StartServer exposes m on addr under /metrics while the CLI runs. The
// listener is bound before returning so a taken port is reported at once;
// serve errors after that are logged.
func StartServer(addr string, m *Metrics) (shutdown func(context.Context) error, err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	log := logger.WithComponent("metrics").With("addr", ln.Addr().String())
	go func() {
		log.Debug("metrics server listening")
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	return srv.Shutdown, nil
}
