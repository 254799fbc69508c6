// ABOUTME: Prometheus counters for access decisions, labelled by kind and outcome.
// ABOUTME: The orphaned and config_error outcomes are how operators spot data bugs.
package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// decisions counts CanAccess outcomes. End users only ever see "forbidden";
// the taxonomy lives here and in the logs.
var decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delegator_access_decisions_total",
	Help: "Access decisions by resource kind and outcome.",
}, []string{"kind", "outcome"})

const (
	outcomeAllow       = "allow"
	outcomeDeny        = "deny"
	outcomeOrphaned    = "orphaned"
	outcomeConfigError = "config_error"
	outcomeError       = "error"
)
