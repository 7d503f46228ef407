// internal/metrics/metrics.go
// Package metrics exposes keyer activity as Prometheus counters.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ColonelBlimp/cwkeyer/internal/cw"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cwkeyer"

// Metrics holds the keyer counters. It satisfies the engine observer.
type Metrics struct {
	symbols  prometheus.Counter
	decoded  prometheus.Counter
	unknown  prometheus.Counter
	words    prometheus.Counter
	dropped  prometheus.Counter
	overflow prometheus.Counter
	sent     prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		symbols:  counter("symbols_total", "Dots and dashes committed by the classifier"),
		decoded:  counter("characters_decoded_total", "Characters decoded from the key, unknown included"),
		unknown:  counter("characters_unknown_total", "Symbol sequences without a character"),
		words:    counter("word_spaces_total", "Word boundaries detected"),
		dropped:  counter("queue_dropped_total", "Characters lost to a full queue"),
		overflow: counter("symbol_overflow_total", "Symbols lost to a full symbol sequence"),
		sent:     counter("characters_sent_total", "Characters keyed by the encoder"),
	}
}

// Classified counts the outcome of one classifier tick.
func (m *Metrics) Classified(ev cw.Event) {
	if ev.Has(cw.EventSymbol) {
		m.symbols.Inc()
	}
	if ev.Has(cw.EventChar) {
		m.decoded.Inc()
	}
	if ev.Has(cw.EventUnknown) {
		m.unknown.Inc()
	}
	if ev.Has(cw.EventWord) {
		m.words.Inc()
	}
	if ev.Has(cw.EventDropped) {
		m.dropped.Inc()
	}
	if ev.Has(cw.EventOverflow) {
		m.overflow.Inc()
	}
}

// Sent counts one keyed character.
func (m *Metrics) Sent(byte) {
	m.sent.Inc()
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("METRICS: Serving on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
