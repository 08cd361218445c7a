package solver

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// VarKind is the domain of a decision variable.
type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

// Status is the terminal state reported by a backend after a solve.
type Status int

const (
	StatusUndefined Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "undefined"
	}
}

// VarID identifies a variable within a Problem.
type VarID int

// Variable is a decision variable with bounds and a domain.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Term is a single coefficient on a variable.
type Term struct {
	Var  VarID
	Coef float64
}

// Expr is a linear expression over problem variables. Adding the same
// variable twice accumulates its coefficient.
type Expr struct {
	coefs map[VarID]float64
	order []VarID
}

// Add accumulates coef onto the coefficient of v and returns the expression
// for chaining.
func (e *Expr) Add(v VarID, coef float64) *Expr {
	if e.coefs == nil {
		e.coefs = make(map[VarID]float64)
	}
	if _, ok := e.coefs[v]; !ok {
		e.order = append(e.order, v)
	}
	e.coefs[v] += coef
	return e
}

// Terms returns the expression's terms in insertion order.
func (e *Expr) Terms() []Term {
	terms := make([]Term, 0, len(e.order))
	for _, v := range e.order {
		terms = append(terms, Term{Var: v, Coef: e.coefs[v]})
	}
	return terms
}

// Len returns the number of distinct variables in the expression.
func (e *Expr) Len() int { return len(e.order) }

// Constraint bounds a linear expression: Lower <= Expr <= Upper. Use
// math.Inf for one-sided constraints; equal bounds fix the expression.
type Constraint struct {
	Name  string
	Expr  Expr
	Lower float64
	Upper float64
}

// Problem is a mixed-integer program with a linear minimization objective.
type Problem struct {
	vars      []Variable
	cons      []Constraint
	objective Expr
}

// NewProblem returns an empty minimization problem.
func NewProblem() *Problem {
	return &Problem{}
}

// AddVariable adds a decision variable and returns its identifier.
func (p *Problem) AddVariable(name string, kind VarKind, lower, upper float64) VarID {
	p.vars = append(p.vars, Variable{Name: name, Kind: kind, Lower: lower, Upper: upper})
	return VarID(len(p.vars) - 1)
}

// AddConstraint adds lower <= expr <= upper.
func (p *Problem) AddConstraint(expr Expr, lower, upper float64, name string) {
	p.cons = append(p.cons, Constraint{Name: name, Expr: expr, Lower: lower, Upper: upper})
}

// SetObjective sets the expression to minimize.
func (p *Problem) SetObjective(expr Expr) {
	p.objective = expr
}

// Variables returns the problem's variables in declaration order.
func (p *Problem) Variables() []Variable { return p.vars }

// Constraints returns the problem's constraints in declaration order.
func (p *Problem) Constraints() []Constraint { return p.cons }

// Objective returns the minimization objective.
func (p *Problem) Objective() Expr { return p.objective }

// Solution is the outcome of a solve. Values holds one entry per problem
// variable, indexed by VarID, and is only meaningful when Status is
// StatusOptimal.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
}

// Solver is the external MIP engine contract. A non-optimal terminal status
// is reported through Solution.Status, not as an error; errors are reserved
// for backend failures.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)

	// BackendType returns the backend's registered name.
	BackendType() string
}

// Factory builds a Solver from backend-specific options. Option values are
// passed through opaquely; unknown keys are ignored by backends.
type Factory func(opts map[string]any) (Solver, error)

var backends = map[string]Factory{}

// Register makes a backend available under the given name. Intended to be
// called from backend init functions.
func Register(name string, f Factory) {
	backends[name] = f
}

// New creates a solver for the named backend.
func New(name string, opts map[string]any) (Solver, error) {
	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown solver backend %q (available: %v)", name, Backends())
	}
	return f(opts)
}

// Backends lists registered backend names.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Inf is a convenience for unbounded constraint and variable bounds.
func Inf() float64 { return math.Inf(1) }
