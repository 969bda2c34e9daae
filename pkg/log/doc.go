/*
Package log provides structured logging for ppppl using zerolog.

A single global logger is configured once via Init and used from every
package: the scheduler logs one line per triggered or deadlocked step, and
the CLI's run command logs step faults and metrics-server errors.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	log.Info("ppppl starting")

	base := log.WithComponent("scheduler")
	stepLog := log.WithStep(base, n)
	log.WithBlock(stepLog, name).Info().Msg("triggered")

# Context loggers

WithComponent tags a logger with a component name ("scheduler", "cli").
WithStep and WithBlock each extend a given logger with one more of the
per-step correlation fields the scheduler attaches to every line it emits
for one Step call; chain them off WithComponent's result to keep all three
fields on the line.
*/
package log
