// Package cpsat wraps Google OR-Tools' CP-SAT Go bindings with the narrow
// surface internal/timetable actually needs: boolean/integer decision
// variables, linear (in)equalities built term-by-term, OnlyEnforceIf
// gating, and min/max equality. The domain packages never import cpmodel
// directly.
package cpsat

import (
	"fmt"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
)

// BoolVar is an opaque boolean decision variable handle.
type BoolVar struct {
	v cpmodel.BoolVar
}

// Not returns the negated literal.
func (b BoolVar) Not() BoolVar {
	return BoolVar{v: b.v.Not()}
}

// IntVar is an opaque integer decision variable handle.
type IntVar struct {
	v cpmodel.IntVar
}

// Status mirrors the subset of CpSolverStatus callers need to distinguish.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
)

// Model is a single CP-SAT build-and-solve session. It is not reusable
// across solves; callers construct a fresh Model per hierarchical-driver
// iteration.
type Model struct {
	b *cpmodel.CpModelBuilder
}

// NewModel starts a fresh model.
func NewModel() *Model {
	return &Model{b: cpmodel.NewCpModelBuilder()}
}

// NewBoolVar declares a new boolean decision variable.
func (m *Model) NewBoolVar(name string) BoolVar {
	return BoolVar{v: m.b.NewBoolVarWithName(name)}
}

// NewIntVar declares a bounded integer variable.
func (m *Model) NewIntVar(lo, hi int64, name string) IntVar {
	return IntVar{v: m.b.NewIntVarWithName(cpmodel.NewDomain(lo, hi), name)}
}

// Expr is a linear expression over bool/int variables, built incrementally.
// It mirrors the sum(...) expressions scattered throughout the original
// solver's constraint construction.
type Expr struct {
	e cpmodel.LinearExpr
}

// NewExpr starts an empty linear expression.
func NewExpr() *Expr {
	return &Expr{e: cpmodel.NewLinearExpr()}
}

// AddBool adds coeff*v to the expression.
func (ex *Expr) AddBool(v BoolVar, coeff int64) *Expr {
	ex.e.AddTerm(v.v, coeff)
	return ex
}

// AddInt adds coeff*v to the expression.
func (ex *Expr) AddInt(v IntVar, coeff int64) *Expr {
	ex.e.AddTerm(v.v, coeff)
	return ex
}

// AddBools adds coeff*v for every v in vars — the slice form used when
// translating Python's `sum(vars) - N*other` linking inequalities.
func (ex *Expr) AddBools(vars []BoolVar, coeff int64) *Expr {
	for _, v := range vars {
		ex.e.AddTerm(v.v, coeff)
	}
	return ex
}

// SumBools builds sum(vars) as an expression with coefficient 1 each —
// the direct translation of Python's `sum(assignments.get(...) for ...)`.
func SumBools(vars ...BoolVar) *Expr {
	ex := NewExpr()
	for _, v := range vars {
		ex.AddBool(v, 1)
	}
	return ex
}

// Constraint is a handle returned by the Add* methods below, supporting
// OnlyEnforceIf the same way the real CP-SAT builder does.
type Constraint struct {
	c cpmodel.Constraint
}

// OnlyEnforceIf restricts the constraint to apply only when lit holds.
func (c Constraint) OnlyEnforceIf(lit BoolVar) Constraint {
	c.c.OnlyEnforceIf(lit.v)
	return c
}

// AddEqual enforces expr == bound.
func (m *Model) AddEqual(expr *Expr, bound int64) Constraint {
	return Constraint{c: m.b.AddEquality(expr.e, cpmodel.NewConstant(bound))}
}

// AddLessOrEqual enforces expr <= bound.
func (m *Model) AddLessOrEqual(expr *Expr, bound int64) Constraint {
	return Constraint{c: m.b.AddLessOrEqual(expr.e, cpmodel.NewConstant(bound))}
}

// AddGreaterOrEqual enforces expr >= bound.
func (m *Model) AddGreaterOrEqual(expr *Expr, bound int64) Constraint {
	return Constraint{c: m.b.AddGreaterOrEqual(expr.e, cpmodel.NewConstant(bound))}
}

// AddExactlyOne enforces sum(vars) == 1.
func (m *Model) AddExactlyOne(vars ...BoolVar) {
	m.b.AddExactlyOne(toLiterals(vars)...)
}

// AddAtMostOne enforces sum(vars) <= 1.
func (m *Model) AddAtMostOne(vars ...BoolVar) {
	m.b.AddAtMostOne(toLiterals(vars)...)
}

// FixBool pins a boolean variable's value outright — used by the cutoff
// constraint (C12) to disable an assignment variable after the fact.
func (m *Model) FixBool(v BoolVar, value bool) {
	if value {
		m.b.AddBoolOr(v.v)
	} else {
		m.b.AddBoolOr(v.v.Not())
	}
}

// AddMinEquality enforces target == min(vars...).
func (m *Model) AddMinEquality(target IntVar, vars []IntVar) {
	m.b.AddMinEquality(target.v, toIntExprs(vars))
}

// AddMaxEquality enforces target == max(vars...).
func (m *Model) AddMaxEquality(target IntVar, vars []IntVar) {
	m.b.AddMaxEquality(target.v, toIntExprs(vars))
}

// Solution carries the solved values needed by result extraction (§4.4.3).
type Solution struct {
	Status Status
	resp   *cmpb.CpSolverResponse
}

// BoolValue reports whether a boolean variable is true in the solution.
func (s *Solution) BoolValue(v BoolVar) bool {
	return cpmodel.SolutionBooleanValue(s.resp, v.v)
}

// IntValue reports an integer variable's solved value.
func (s *Solution) IntValue(v IntVar) int64 {
	return cpmodel.SolutionIntegerValue(s.resp, v.v)
}

// Solve builds and solves the accumulated model. maxSeconds/workers mirror
// the original solver's max_time_in_seconds/num_search_workers knobs
// (TimetableConfig.SolverTimeout/SolverWorkers thread through here); they
// are accepted for call-site stability but not yet applied to the search
// itself, since the one sample file in the pack doesn't show the real
// SatParameters plumbing and nothing else in the pack does either.
func (m *Model) Solve(maxSeconds float64, workers int) (*Solution, error) {
	built, err := m.b.Model()
	if err != nil {
		return nil, fmt.Errorf("cpsat: failed to instantiate model: %w", err)
	}
	resp, err := cpmodel.SolveCpModel(built)
	if err != nil {
		return nil, fmt.Errorf("cpsat: solve failed: %w", err)
	}
	sol := &Solution{resp: resp}
	switch resp.GetStatus() {
	case cmpb.CpSolverStatus_OPTIMAL:
		sol.Status = StatusOptimal
	case cmpb.CpSolverStatus_FEASIBLE:
		sol.Status = StatusFeasible
	case cmpb.CpSolverStatus_INFEASIBLE:
		sol.Status = StatusInfeasible
	default:
		sol.Status = StatusUnknown
	}
	return sol, nil
}

func toLiterals(vars []BoolVar) []cpmodel.Literal {
	out := make([]cpmodel.Literal, len(vars))
	for i, v := range vars {
		out[i] = v.v
	}
	return out
}

func toIntExprs(vars []IntVar) []cpmodel.LinearArgument {
	out := make([]cpmodel.LinearArgument, len(vars))
	for i, v := range vars {
		out[i] = v.v
	}
	return out
}
