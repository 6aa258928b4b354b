// Package lottery provides an embeddable lottery bet server.
//
// Agencies connect over TCP, upload their bets in batches, announce that
// they are done and ask for their winners. Winner lists are only released
// once every configured agency has finished.
//
// # Basic Usage
//
//	cfg := lottery.DefaultConfig()
//	cfg.Agencies = 3
//	cfg.Store = "memory"
//
//	srv, err := lottery.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := srv.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Storage
//
// Bets are stored in a CSV file by default. Set Store to "memory" for an
// in-process store or "redis" to keep bets in Redis lists. A custom
// [BetStore] can be injected with [WithStore].
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for defaults) and
// pass it via [WithEventHandler]. Events are called synchronously from
// session goroutines and must return quickly.
//
// # Metrics
//
// Prometheus metrics are always recorded. Set MetricsAddr to serve them on
// /metrics, or mount [Lottery.MetricsHandler] in your own mux.
package lottery
