package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "backy_moderation_classifications_total",
	Help: "Number of intake classifications, by subject kind, resulting status and deciding flag",
}, []string{"kind", "status", "flag"})

var escalations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "backy_moderation_report_escalations_total",
	Help: "Number of approved comments moved to spam by accumulated reports",
})
