/*
Package scheduler implements the guarded-command step loop: enumerate every
eligible (block, parameter-binding) instance, choose one uniformly at
random, stage its assignments against a snapshot of memory, and apply them
atomically.

# Step

	sched := scheduler.New(store, nil)
	outcome, err := sched.Step()

Step returns a Deadlock outcome when no instance is eligible, or a
TriggeredBlock outcome naming the block and the parameter bindings chosen.
A non-nil error means assignment evaluation or a storage operation failed;
memory is left untouched in that case.

# Instance enumeration

For each block, parameters are bound left to right: a parameter's
expression must evaluate to a Dict, and every key of that Dict is bound to
that parameter in turn before the next parameter's expression is evaluated. Any evaluator error, or a non-Dict
result, prunes that branch silently — guards and parameter expressions are
filters, not obligations, so their errors never abort a Step. Once all
parameters are bound, every guard is evaluated; the instance is eligible
only if every guard evaluates to Bool true.

# Two-phase assignment

Assignments within a triggered block are staged before any of them are
applied: every right-hand side is evaluated against the pre-step snapshot,
then every staged (path, value) pair is written in source order. This
gives a block's assignments simultaneous-assignment semantics even when
one assignment's right-hand side reads another's target.

# Randomness

Source abstracts the scheduler's random choice so tests can drive a fixed
sequence of steps. NewMathRandSource returns the time-seeded default used
outside tests.

# Logging

Each Step is tagged with a monotonically increasing step number via
log.WithStep, and a triggered outcome adds the block name via
log.WithBlock, so the deadlock or triggered log line for one step can be
correlated with whatever else was logged during it.
*/
package scheduler
