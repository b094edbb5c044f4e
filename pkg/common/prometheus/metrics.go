/*
Copyright 2021 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// PrometheusPassStatus represents a successful run.
	PrometheusPassStatus = "pass"
	// PrometheusFailStatus represents an unsuccessful run.
	PrometheusFailStatus = "fail"
	// PrometheusTimeoutStatus represents a wait that ran out of time.
	PrometheusTimeoutStatus = "timeout"

	// GR operation types

	// PrometheusSwitchoverOpType represents the geo switchover command.
	PrometheusSwitchoverOpType = "switchover"
	// PrometheusStatusOpType represents the geo status command.
	PrometheusStatusOpType = "status"
	// PrometheusAvailabilityOpType represents the geo availability command.
	PrometheusAvailabilityOpType = "availability"
	// PrometheusRecoveryStatusOpType represents the geo recovery-status command.
	PrometheusRecoveryStatusOpType = "recovery-status"
	// PrometheusUpdateRecoveryStateOpType represents the geo update-recovery-state command.
	PrometheusUpdateRecoveryStateOpType = "update-recovery-state"
	// PrometheusCollectLogsOpType represents the collect-logs command.
	PrometheusCollectLogsOpType = "collect-logs"
)

var (
	// GRInfo is a gauge metric to observe the tool version.
	GRInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eo_gr_testing_info",
		Help: "GR testing tool info",
	}, []string{"version"})

	// DMCommandOpsHistVec is a histogram vector metric to observe Deployment
	// Manager command durations.
	DMCommandOpsHistVec = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "eo_gr_dm_command_seconds",
		Help: "Histogram vector for Deployment Manager commands.",
		// Switchover runs for tens of minutes, status commands take seconds.
		Buckets: []float64{2, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 5400},
	},
		// Possible optype - "switchover", "status", "availability", "recovery-status", ...
		// Possible status - "pass", "fail"
		[]string{"optype", "status"})

	// SwitchoverOutcomeCounterVec counts switchover outcomes by classification.
	SwitchoverOutcomeCounterVec = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eo_gr_switchover_outcome_total",
		Help: "Switchover outcomes by classification.",
	},
		// Possible classification - "success", "failure", "unknown", "ambiguous"
		[]string{"classification"})

	// PollWaitHistVec is a histogram vector metric to observe condition waits.
	PollWaitHistVec = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eo_gr_poll_wait_seconds",
		Help:    "Histogram vector for condition waits.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800},
	}, []string{"condition", "status"})

	// HealthCheckFailuresGaugeVec is a gauge metric holding the number of
	// failures found by the last health check of a site.
	HealthCheckFailuresGaugeVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eo_gr_healthcheck_failures",
		Help: "Number of failures found by the last health check",
	}, []string{"site"})
)
