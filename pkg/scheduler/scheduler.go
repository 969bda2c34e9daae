// Package scheduler drives one guarded-command step at a time: enumerate
// every (block, parameter-binding) instance whose guards hold, pick one
// uniformly at random, stage and apply its assignments, and commit.
package scheduler

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/pppplang/ppppl/pkg/ast"
	"github.com/pppplang/ppppl/pkg/eval"
	"github.com/pppplang/ppppl/pkg/log"
	"github.com/pppplang/ppppl/pkg/metrics"
	"github.com/pppplang/ppppl/pkg/storage"
	"github.com/pppplang/ppppl/pkg/value"
)

// Source supplies the scheduler's random choice among eligible instances.
// Tests supply a deterministic Source to drive a known sequence of steps;
// production code uses NewMathRandSource.
type Source interface {
	Intn(n int) int
}

// mathRandSource is the default Source, backed by math/rand.
type mathRandSource struct {
	r *rand.Rand
}

// NewMathRandSource returns a Source seeded from the current time.
func NewMathRandSource() Source {
	return &mathRandSource{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (m *mathRandSource) Intn(n int) int {
	return m.r.Intn(n)
}

// Outcome is the result of one Step: either TriggeredBlock or Deadlock.
type Outcome interface {
	isOutcome()
}

// TriggeredBlock reports that the named block fired with the given
// parameter bindings.
type TriggeredBlock struct {
	Name  string
	Names eval.Names
}

func (TriggeredBlock) isOutcome() {}

// Deadlock reports that no instance was eligible; memory is unchanged.
type Deadlock struct{}

func (Deadlock) isOutcome() {}

// Scheduler runs steps against a durable store.
type Scheduler struct {
	store  *storage.Store
	src    Source
	logger zerolog.Logger
	step   uint64
}

// New creates a Scheduler over store. If src is nil, a time-seeded
// math/rand source is used.
func New(store *storage.Store, src Source) *Scheduler {
	if src == nil {
		src = NewMathRandSource()
	}
	return &Scheduler{
		store:  store,
		src:    src,
		logger: log.WithComponent("scheduler"),
	}
}

// instance is one eligible (block, binding) pair.
type instance struct {
	block ast.Block
	names eval.Names
}

// Step performs exactly one atomic transition of the program state, or
// reports deadlock. It returns a non-nil error only when evaluation of a
// chosen instance's assignments, or a storage operation, fails; in that
// case memory is left unmodified.
func (s *Scheduler) Step() (Outcome, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StepDuration)
	metrics.StepsTotal.Inc()

	stepLog := log.WithStep(s.logger, s.step)
	s.step++

	tx, err := s.store.Begin()
	if err != nil {
		metrics.FaultsTotal.WithLabelValues("storage").Inc()
		return nil, fmt.Errorf("scheduler: beginning transaction: %w", err)
	}

	mod, err := tx.ReadCode()
	if err != nil {
		tx.Rollback()
		metrics.FaultsTotal.WithLabelValues("storage").Inc()
		return nil, fmt.Errorf("scheduler: reading program: %w", err)
	}

	instances := findEligible(tx, mod)
	if len(instances) == 0 {
		tx.Rollback()
		metrics.DeadlocksTotal.Inc()
		stepLog.Info().Dur("elapsed", timer.Duration()).Msg("deadlock")
		return Deadlock{}, nil
	}

	chosen := instances[s.src.Intn(len(instances))]
	blockTimer := metrics.NewTimer()

	type staged struct {
		path []value.Value
		val  value.Value
	}
	writes := make([]staged, 0, len(chosen.block.Assignments))
	for _, a := range chosen.block.Assignments {
		path, err := eval.EvalLVal(a.LVal, tx, chosen.names)
		if err != nil {
			tx.Rollback()
			metrics.FaultsTotal.WithLabelValues("eval").Inc()
			return nil, fmt.Errorf("scheduler: staging assignment in block %q: %w", chosen.block.Name, err)
		}
		val, err := eval.Eval(a.Exp, tx, chosen.names)
		if err != nil {
			tx.Rollback()
			metrics.FaultsTotal.WithLabelValues("eval").Inc()
			return nil, fmt.Errorf("scheduler: staging assignment in block %q: %w", chosen.block.Name, err)
		}
		writes = append(writes, staged{path: path, val: val})
	}

	for _, w := range writes {
		// A soft failure here (non-Dict intermediate) is not a fault: it
		// mirrors the original interpreter's exec_block, which ignores
		// write_memory's success bool.
		if _, err := tx.WriteMemory(w.path, w.val); err != nil {
			tx.Rollback()
			metrics.FaultsTotal.WithLabelValues("storage").Inc()
			return nil, fmt.Errorf("scheduler: applying assignment in block %q: %w", chosen.block.Name, err)
		}
	}
	blockTimer.ObserveDurationVec(metrics.BlockDuration, chosen.block.Name)

	if err := tx.Commit(); err != nil {
		metrics.FaultsTotal.WithLabelValues("storage").Inc()
		return nil, fmt.Errorf("scheduler: committing step: %w", err)
	}

	metrics.TriggeredTotal.WithLabelValues(chosen.block.Name).Inc()
	log.WithBlock(stepLog, chosen.block.Name).Info().Dur("elapsed", timer.Duration()).Msg("triggered")
	return TriggeredBlock{Name: chosen.block.Name, Names: chosen.names}, nil
}

// findEligible enumerates every eligible (block, binding) instance across
// every block in mod, in block order. Guard and parameter-instantiation
// errors prune that branch rather than propagating.
func findEligible(tx eval.Storage, mod ast.Module) []instance {
	var out []instance
	for _, b := range mod.Blocks {
		instantiate(tx, b, 0, eval.Names{}, &out)
	}
	return out
}

// instantiate recursively binds b.Parameters[i:], appending one instance
// per fully-bound leaf whose guards all hold.
func instantiate(tx eval.Storage, b ast.Block, i int, names eval.Names, out *[]instance) {
	if i == len(b.Parameters) {
		if guardsHold(tx, b.Guards, names) {
			*out = append(*out, instance{block: b, names: cloneNames(names)})
		}
		return
	}

	p := b.Parameters[i]
	v, err := eval.Eval(p.Exp, tx, names)
	if err != nil || v.Kind != value.KindDict {
		return
	}
	for _, pair := range v.Dict {
		next := cloneNames(names)
		next[p.Name] = pair.Key
		instantiate(tx, b, i+1, next, out)
	}
}

func guardsHold(tx eval.Storage, guards []ast.Exp, names eval.Names) bool {
	for _, g := range guards {
		v, err := eval.Eval(g, tx, names)
		if err != nil || v.Kind != value.KindBool || !v.Bool {
			return false
		}
	}
	return true
}

func cloneNames(names eval.Names) eval.Names {
	next := make(eval.Names, len(names)+1)
	for k, v := range names {
		next[k] = v
	}
	return next
}
