// Package server provides the HTTP server exposing the exporter's metrics.
//
// This package implements an HTTP server with multiple endpoints for serving
// Prometheus metrics, health checks, and a web UI. It provides graceful
// shutdown support and configurable timeouts.
//
// Available endpoints:
//   - /           : Web UI showing exporter and per-poller status
//   - /metrics    : Prometheus metrics endpoint
//   - /health     : Liveness probe (always returns 200)
//   - /ready      : Readiness probe (returns 200 only once every poller has
//     completed a successful pass)
//
// The server is configured with sensible timeout defaults:
//   - Read timeout: 15 seconds
//   - Write timeout: 15 seconds
//   - Idle timeout: 60 seconds
//
// The main type is Server. It serves a caller-supplied Prometheus registry,
// so only metric families the exporter registered (plus the scrape handler's
// own instrumentation) appear on /metrics, and it reads poller state through
// the PollerStatus interface.
//
// Example usage:
//
//	srv := server.NewServer(cfg, registry, statuses, log)
//
//	// Start server in a goroutine
//	serverErrors := make(chan error, 1)
//	go func() {
//		serverErrors <- srv.Start()
//	}()
//
//	// Wait for shutdown signal
//	shutdown := make(chan os.Signal, 1)
//	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
//
//	select {
//	case err := <-serverErrors:
//		log.Fatalf("Server error: %v", err)
//	case <-shutdown:
//		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//		defer cancel()
//		if err := srv.Shutdown(ctx); err != nil {
//			log.Printf("Error during shutdown: %v", err)
//		}
//	}
package server
