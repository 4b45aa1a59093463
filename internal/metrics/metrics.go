/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package metrics

import (
	"context"
	"time"

	"github.com/kentakayama/nzcp-over-http/internal/nzcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Verifications        *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	AuthorityFetch       *prometheus.HistogramVec
}

// New registers the verifier metrics with reg, or with the default registry when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nzcp_verifications_total",
			Help: "Total number of verified or rejected passes",
		}, []string{"outcome"}),
		VerificationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nzcp_verification_duration_seconds",
			Help:    "Duration of a full pass verification, authority fetch included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		AuthorityFetch: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nzcp_authority_fetch_duration_seconds",
			Help:    "Duration of trust authority DID document fetches",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
	}
}

// Record implements nzcp.Recorder.
func (m *Metrics) Record(_ context.Context, o nzcp.Observation) {
	if o.Result == nil {
		return
	}
	m.Verifications.WithLabelValues(o.Result.Outcome()).Inc()
	m.VerificationDuration.Observe(o.Elapsed.Seconds())
}

// ObserveFetch implements authority.FetchObserver.
func (m *Metrics) ObserveFetch(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.AuthorityFetch.WithLabelValues(result).Observe(elapsed.Seconds())
}
