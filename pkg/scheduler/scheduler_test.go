package scheduler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pppplang/ppppl/pkg/storage"
	"github.com/pppplang/ppppl/pkg/value"
)

// fixedSource always returns the same index, or cycles through a fixed
// sequence if more than one is given.
type fixedSource struct {
	seq []int
	i   int
}

func (f *fixedSource) Intn(n int) int {
	idx := f.seq[f.i%len(f.seq)]
	f.i++
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := storage.Open(filepath.Join(dir, "sched.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func loadProgram(t *testing.T, s *storage.Store, src string) {
	t.Helper()
	tx, err := s.Begin()
	require.NoError(t, err)
	tx.ReplaceCode(src)
	require.NoError(t, tx.Commit())
}

func writeMemory(t *testing.T, s *storage.Store, path []value.Value, v value.Value) {
	t.Helper()
	tx, err := s.Begin()
	require.NoError(t, err)
	ok, err := tx.WriteMemory(path, v)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tx.Commit())
}

func readMemory(t *testing.T, s *storage.Store, path []value.Value) value.Value {
	t.Helper()
	tx, err := s.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	v, ok, err := tx.ReadMemory(path)
	require.NoError(t, err)
	require.True(t, ok)
	return v
}

func TestStepDeadlockWhenNoEligibleInstance(t *testing.T) {
	s := newStore(t)
	loadProgram(t, s, `
block never() when false {
	root["x"] = 1;
}
`)

	sched := New(s, &fixedSource{seq: []int{0}})
	outcome, err := sched.Step()
	require.NoError(t, err)
	assert.IsType(t, Deadlock{}, outcome)
}

func TestStepGuardGatingTriggersThenDeadlocks(t *testing.T) {
	s := newStore(t)
	loadProgram(t, s, `
block once() when root["done"] == false {
	root["done"] = true;
}
`)
	writeMemory(t, s, []value.Value{value.BlobString("done")}, value.BoolVal(false))

	sched := New(s, &fixedSource{seq: []int{0}})

	outcome, err := sched.Step()
	require.NoError(t, err)
	triggered, ok := outcome.(TriggeredBlock)
	require.True(t, ok)
	assert.Equal(t, "once", triggered.Name)

	done := readMemory(t, s, []value.Value{value.BlobString("done")})
	assert.True(t, done.Bool)

	outcome, err = sched.Step()
	require.NoError(t, err)
	assert.IsType(t, Deadlock{}, outcome)
}

func TestStepParameterEnumerationSelectsOnlyEligibleBinding(t *testing.T) {
	s := newStore(t)
	loadProgram(t, s, `
block wake(u in root["users"]) when root["users"][u]["active"] == false {
	root["users"][u]["active"] = true;
}
`)
	active := value.DictVal([]value.Pair{{Key: value.BlobString("active"), Val: value.BoolVal(true)}})
	inactive := value.DictVal([]value.Pair{{Key: value.BlobString("active"), Val: value.BoolVal(false)}})
	users := value.DictVal([]value.Pair{
		{Key: value.BlobString("a"), Val: active},
		{Key: value.BlobString("b"), Val: inactive},
	})
	writeMemory(t, s, []value.Value{value.BlobString("users")}, users)

	sched := New(s, &fixedSource{seq: []int{0}})
	outcome, err := sched.Step()
	require.NoError(t, err)
	triggered, ok := outcome.(TriggeredBlock)
	require.True(t, ok)
	assert.Equal(t, value.BlobString("b"), triggered.Names["u"])

	outcome, err = sched.Step()
	require.NoError(t, err)
	assert.IsType(t, Deadlock{}, outcome)
}

func TestStepSimultaneousAssignmentSwapsUsingPreStepValues(t *testing.T) {
	s := newStore(t)
	loadProgram(t, s, `
block swap() {
	root["a"] = root["b"];
	root["b"] = root["a"];
}
`)
	writeMemory(t, s, []value.Value{value.BlobString("a")}, value.Int64(1))
	writeMemory(t, s, []value.Value{value.BlobString("b")}, value.Int64(2))

	sched := New(s, &fixedSource{seq: []int{0}})
	_, err := sched.Step()
	require.NoError(t, err)

	a := readMemory(t, s, []value.Value{value.BlobString("a")})
	b := readMemory(t, s, []value.Value{value.BlobString("b")})
	assert.Equal(t, int64(2), a.Int.Int64())
	assert.Equal(t, int64(1), b.Int.Int64())
}

func TestStepAssignmentFaultAbortsWithoutMutation(t *testing.T) {
	s := newStore(t)
	loadProgram(t, s, `
block bad(x in root["xs"]) {
	root["y"] = 1;
	x = 2;
}
`)
	xs := value.DictVal([]value.Pair{{Key: value.BlobString("k"), Val: value.Int64(0)}})
	writeMemory(t, s, []value.Value{value.BlobString("xs")}, xs)

	sched := New(s, &fixedSource{seq: []int{0}})
	outcome, err := sched.Step()
	require.Error(t, err)
	assert.Nil(t, outcome)

	tx, err := s.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	_, ok, err := tx.ReadMemory([]value.Value{value.BlobString("y")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStepGuardErrorRendersInstanceIneligibleNotFatal(t *testing.T) {
	s := newStore(t)
	loadProgram(t, s, `
block missing() when root["nope"]["also_missing"] == 1 {
	root["touched"] = true;
}
block fallback() when root["touched"] == false {
	root["touched"] = true;
}
`)
	writeMemory(t, s, []value.Value{value.BlobString("touched")}, value.BoolVal(false))

	sched := New(s, &fixedSource{seq: []int{0}})
	outcome, err := sched.Step()
	require.NoError(t, err)
	triggered, ok := outcome.(TriggeredBlock)
	require.True(t, ok)
	assert.Equal(t, "fallback", triggered.Name)
}

func TestStepUniformityOverManySteps(t *testing.T) {
	s := newStore(t)
	loadProgram(t, s, `
block pick(k in root["xs"]) {
	root["last"] = k;
}
`)
	xs := value.DictVal([]value.Pair{
		{Key: value.BlobString("a"), Val: value.Int64(0)},
		{Key: value.BlobString("b"), Val: value.Int64(0)},
	})
	writeMemory(t, s, []value.Value{value.BlobString("xs")}, xs)

	counts := map[string]int{}
	total := 200
	seq := make([]int, total)
	for i := range seq {
		seq[i] = i % 2
	}
	sched := New(s, &fixedSource{seq: seq})

	for i := 0; i < total; i++ {
		outcome, err := sched.Step()
		require.NoError(t, err)
		triggered := outcome.(TriggeredBlock)
		counts[string(triggered.Names["k"].Blob)]++
	}

	assert.Equal(t, total/2, counts["a"])
	assert.Equal(t, total/2, counts["b"])
}
