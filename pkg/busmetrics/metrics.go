// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package busmetrics exports decoder counters to Prometheus
package busmetrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

// Frame outcomes
const (
	OutcomeValid         = "valid"
	OutcomeUnimplemented = "unimplemented"
	OutcomeChecksum      = "checksum"
	OutcomeParity        = "parity"
	OutcomeUnclassified  = "unclassified"
	OutcomeNoMatch       = "no_match"
	OutcomeAmbiguous     = "ambiguous"
	OutcomeOverflow      = "overflow"
	OutcomeOther         = "other"
)

var (
	registerOnce sync.Once

	bytesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "xbusmon",
			Subsystem: "bus",
			Name:      "bytes_total",
			Help:      "Bytes read from the bus.",
		},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xbusmon",
			Subsystem: "decoder",
			Name:      "frames_total",
			Help:      "Decoded frames by outcome.",
		},
		[]string{"outcome"},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xbusmon",
			Subsystem: "decoder",
			Name:      "messages_total",
			Help:      "Decoded messages by name.",
		},
		[]string{"name"},
	)
	anomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xbusmon",
			Subsystem: "decoder",
			Name:      "anomalies_total",
			Help:      "Semantic anomalies found in decoded messages.",
		},
		[]string{"type"},
	)
	protocolVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "xbusmon",
			Subsystem: "decoder",
			Name:      "protocol_version",
			Help:      "Protocol version the decoder applies.",
		},
	)
)

// RegisterMetrics registers the collectors with the default registry
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(bytesReceived, frames, messages, anomalies, protocolVersion)
	})
}

// Outcome classifies a decode result
func Outcome(m *xpressnet.Message, err error) string {
	switch {
	case err == nil && m != nil && m.Name() == xpressnet.MsgUnimplemented:
		return OutcomeUnimplemented
	case err == nil:
		return OutcomeValid
	case errors.Is(err, xpressnet.ErrChecksum):
		return OutcomeChecksum
	case errors.Is(err, xpressnet.ErrParity):
		return OutcomeParity
	case errors.Is(err, xpressnet.ErrUnclassifiedCall):
		return OutcomeUnclassified
	case errors.Is(err, xpressnet.ErrNoMatchingDefinition):
		return OutcomeNoMatch
	case errors.Is(err, xpressnet.ErrAmbiguousDefinition):
		return OutcomeAmbiguous
	case errors.Is(err, xpressnet.ErrFrameOverflow):
		return OutcomeOverflow
	default:
		return OutcomeOther
	}
}

// RecordResult counts one decode result and its anomalies
func RecordResult(r xpressnet.Result, verrs []xpressnet.ValidationError) {
	RegisterMetrics()
	if r.Message == nil && r.Err == nil {
		return
	}
	frames.WithLabelValues(Outcome(r.Message, r.Err)).Inc()
	if r.Err == nil && r.Message != nil {
		messages.WithLabelValues(r.Message.Name().String()).Inc()
	}
	for _, v := range verrs {
		anomalies.WithLabelValues(v.Type.String()).Inc()
	}
}

// RecordBytes counts bytes read from the transport
func RecordBytes(n int) {
	RegisterMetrics()
	bytesReceived.Add(float64(n))
}

// SetProtocolVersion publishes the version the decoder applies
func SetProtocolVersion(v xpressnet.Version) {
	RegisterMetrics()
	protocolVersion.Set(float64(v))
}

// Handler returns the metrics endpoint handler
func Handler() http.Handler {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
