/*
Package metrics provides Prometheus metrics for the ppppl scheduler.

The scheduler calls StepsTotal.Inc once per Step, records the outcome on
TriggeredTotal or DeadlocksTotal, increments FaultsTotal on evaluation or
storage errors, and times each Step with a Timer observed against
StepDuration. A triggered block also has its elapsed time recorded against
BlockDuration, labeled by block name, so a slow block doesn't hide behind
the step-wide aggregate. Handler exposes the registry over HTTP for
scraping.

# Usage

	timer := metrics.NewTimer()
	outcome, err := sched.Step()
	timer.ObserveDuration(metrics.StepDuration)
	timer.ObserveDurationVec(metrics.BlockDuration, blockName)
	metrics.StepsTotal.Inc()

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
