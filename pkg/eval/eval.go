// Package eval implements the pure expression evaluator and l-value
// resolver that the scheduler drives once per candidate (block, binding)
// instance and once per triggered block's assignments.
package eval

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/pppplang/ppppl/pkg/ast"
	"github.com/pppplang/ppppl/pkg/value"
)

// Storage is the read-only capability the evaluator needs from a
// transaction. pkg/storage.Tx satisfies it; tests can supply a fake.
type Storage interface {
	ReadMemory(path []value.Value) (value.Value, bool, error)
}

// ErrStorageRootVanished is returned if the root memory cell is somehow
// absent from an open transaction. It should never happen in practice: the
// store always initializes root to an empty Dict.
var ErrStorageRootVanished = errors.New("storage root somehow vanished")

// CannotEvalUnaryError reports a unary operator applied to a value it does
// not accept (NOT on non-Bool, NEGATE on non-Int).
type CannotEvalUnaryError struct {
	Op ast.UnaryOp
	V  value.Value
}

func (e *CannotEvalUnaryError) Error() string {
	return fmt.Sprintf("cannot evaluate unary %s on %s", e.Op, e.V.Kind)
}

// CannotEvalBinaryError reports a binary operator applied to operand kinds
// it does not accept.
type CannotEvalBinaryError struct {
	Op   ast.BinaryOp
	X, Y value.Value
}

func (e *CannotEvalBinaryError) Error() string {
	return fmt.Sprintf("cannot evaluate %s %s %s", e.X.Kind, e.Op, e.Y.Kind)
}

// CannotEvalIfError reports a ternary whose condition did not evaluate to
// Bool.
type CannotEvalIfError struct {
	Cond value.Value
}

func (e *CannotEvalIfError) Error() string {
	return fmt.Sprintf("cannot evaluate if on non-boolean condition of kind %s", e.Cond.Kind)
}

// MissingKeyError reports Dict[key] where key is absent.
type MissingKeyError struct {
	Dict, Key value.Value
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing key %s in %s", e.Key, e.Dict)
}

// CannotWriteToBoundParameterError reports an assignment whose l-value names
// a currently-bound block parameter rather than a storage path.
type CannotWriteToBoundParameterError struct {
	Name string
}

func (e *CannotWriteToBoundParameterError) Error() string {
	return fmt.Sprintf("cannot write to bound parameter %q", e.Name)
}

// Names is the set of block-parameter bindings in scope during evaluation,
// keyed by parameter name.
type Names map[string]value.Value

func rootExp(pos ast.Pos, name string) ast.Exp {
	return ast.Binary{
		Pos: pos,
		Op:  ast.INDEX,
		X:   ast.Root{Pos: pos},
		Y:   ast.Literal{Pos: pos, Val: value.BlobString(name)},
	}
}

// Eval evaluates an expression against a transaction and a set of bound
// parameter names. It is pure with respect to Go state: any durable
// mutation happens later, when the scheduler stages and applies an
// assignment's already-evaluated Value.
func Eval(e ast.Exp, tx Storage, names Names) (value.Value, error) {
	switch n := e.(type) {
	case ast.Root:
		v, ok, err := tx.ReadMemory(nil)
		if err != nil {
			return value.Value{}, err
		}
		if !ok {
			return value.Value{}, ErrStorageRootVanished
		}
		return v, nil

	case ast.Name:
		if v, ok := names[n.Name]; ok {
			return v, nil
		}
		return Eval(rootExp(n.Pos, n.Name), tx, names)

	case ast.Literal:
		return n.Val, nil

	case ast.Unary:
		x, err := Eval(n.X, tx, names)
		if err != nil {
			return value.Value{}, err
		}
		return evalUnary(n.Op, x)

	case ast.Binary:
		x, err := Eval(n.X, tx, names)
		if err != nil {
			return value.Value{}, err
		}
		// AND and OR short-circuit: a Bool left operand that decides the
		// result means the right operand is never evaluated.
		if x.Kind == value.KindBool && ((n.Op == ast.AND && !x.Bool) || (n.Op == ast.OR && x.Bool)) {
			return x, nil
		}
		y, err := Eval(n.Y, tx, names)
		if err != nil {
			return value.Value{}, err
		}
		return evalBinary(n.Op, x, y)

	case ast.Ternary:
		cond, err := Eval(n.Cond, tx, names)
		if err != nil {
			return value.Value{}, err
		}
		if cond.Kind != value.KindBool {
			return value.Value{}, &CannotEvalIfError{Cond: cond}
		}
		if cond.Bool {
			return Eval(n.Then, tx, names)
		}
		return Eval(n.Else, tx, names)

	default:
		return value.Value{}, fmt.Errorf("eval: unhandled expression node %T", e)
	}
}

func evalUnary(op ast.UnaryOp, v value.Value) (value.Value, error) {
	switch {
	case op == ast.NOT && v.Kind == value.KindBool:
		return value.BoolVal(!v.Bool), nil
	case op == ast.NEGATE && v.Kind == value.KindInt:
		return value.IntVal(new(big.Int).Neg(v.Int)), nil
	default:
		return value.Value{}, &CannotEvalUnaryError{Op: op, V: v}
	}
}

func evalBinary(op ast.BinaryOp, x, y value.Value) (value.Value, error) {
	switch op {
	case ast.EQ:
		return value.BoolVal(value.Equal(x, y)), nil
	case ast.NE:
		return value.BoolVal(!value.Equal(x, y)), nil
	case ast.LT:
		return value.BoolVal(value.Less(x, y)), nil
	case ast.LE:
		return value.BoolVal(!value.Less(y, x)), nil
	case ast.GT:
		return value.BoolVal(value.Less(y, x)), nil
	case ast.GE:
		return value.BoolVal(!value.Less(x, y)), nil
	case ast.AND:
		if x.Kind != value.KindBool || y.Kind != value.KindBool {
			return value.Value{}, &CannotEvalBinaryError{Op: op, X: x, Y: y}
		}
		return value.BoolVal(x.Bool && y.Bool), nil
	case ast.OR:
		if x.Kind != value.KindBool || y.Kind != value.KindBool {
			return value.Value{}, &CannotEvalBinaryError{Op: op, X: x, Y: y}
		}
		return value.BoolVal(x.Bool || y.Bool), nil
	case ast.PLUS:
		if x.Kind == value.KindInt && y.Kind == value.KindInt {
			return value.IntVal(new(big.Int).Add(x.Int, y.Int)), nil
		}
	case ast.MINUS:
		if x.Kind == value.KindInt && y.Kind == value.KindInt {
			return value.IntVal(new(big.Int).Sub(x.Int, y.Int)), nil
		}
	case ast.TIMES:
		if x.Kind == value.KindInt && y.Kind == value.KindInt {
			return value.IntVal(new(big.Int).Mul(x.Int, y.Int)), nil
		}
	case ast.DIVIDE:
		if x.Kind == value.KindInt && y.Kind == value.KindInt {
			if y.Int.Sign() == 0 {
				return value.Value{}, &CannotEvalBinaryError{Op: op, X: x, Y: y}
			}
			return value.IntVal(new(big.Int).Quo(x.Int, y.Int)), nil
		}
	case ast.MOD:
		if x.Kind == value.KindInt && y.Kind == value.KindInt {
			if y.Int.Sign() == 0 {
				return value.Value{}, &CannotEvalBinaryError{Op: op, X: x, Y: y}
			}
			return value.IntVal(new(big.Int).Rem(x.Int, y.Int)), nil
		}
	case ast.CONCAT:
		if x.Kind == value.KindBlob && y.Kind == value.KindBlob {
			out := make([]byte, 0, len(x.Blob)+len(y.Blob))
			out = append(out, x.Blob...)
			out = append(out, y.Blob...)
			return value.BlobVal(out), nil
		}
	case ast.IN:
		if y.Kind == value.KindDict {
			_, ok := y.Get(x)
			return value.BoolVal(ok), nil
		}
	case ast.INDEX:
		if x.Kind == value.KindDict {
			v, ok := x.Get(y)
			if !ok {
				return value.Value{}, &MissingKeyError{Dict: x, Key: y}
			}
			return v, nil
		}
	}
	return value.Value{}, &CannotEvalBinaryError{Op: op, X: x, Y: y}
}

// EvalLVal resolves an l-value to a storage path: a sequence of Dict keys
// from the root. A bare Name that shadows a currently-bound parameter is
// rejected, matching the original interpreter's rule that parameters are
// read-only within the block that binds them.
func EvalLVal(lv ast.LVal, tx Storage, names Names) ([]value.Value, error) {
	switch n := lv.(type) {
	case ast.LRoot:
		return nil, nil
	case ast.LName:
		if _, ok := names[n.Name]; ok {
			return nil, &CannotWriteToBoundParameterError{Name: n.Name}
		}
		return EvalLVal(ast.LIndex{
			Pos: n.Pos,
			Of:  ast.LRoot{Pos: n.Pos},
			Key: ast.Literal{Pos: n.Pos, Val: value.BlobString(n.Name)},
		}, tx, names)
	case ast.LIndex:
		prefix, err := EvalLVal(n.Of, tx, names)
		if err != nil {
			return nil, err
		}
		key, err := Eval(n.Key, tx, names)
		if err != nil {
			return nil, err
		}
		return append(prefix, key), nil
	default:
		return nil, fmt.Errorf("eval_lval: unhandled l-value node %T", lv)
	}
}
