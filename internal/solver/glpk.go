package solver

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/lukpank/go-glpk/glpk"
)

func init() {
	Register("glpk", func(opts map[string]any) (Solver, error) {
		s := &GLPKSolver{presolve: true}
		if v, ok := opts["presolve"].(bool); ok {
			s.presolve = v
		}
		return s, nil
	})
}

// The GLPK environment is process-global and not thread-safe; solves are
// serialized even though each call builds its own problem object.
var glpkMu sync.Mutex

// GLPKSolver solves MIP instances with GNU GLPK's branch-and-cut (glp_intopt).
type GLPKSolver struct {
	presolve bool
}

// BackendType returns "glpk".
func (s *GLPKSolver) BackendType() string { return "glpk" }

// Solve translates the problem into a GLPK instance and runs the MIP solver.
func (s *GLPKSolver) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	glpkMu.Lock()
	defer glpkMu.Unlock()

	lp := glpk.New()
	defer lp.Delete()
	lp.SetObjDir(glpk.MIN)

	vars := p.Variables()
	if len(vars) > 0 {
		lp.AddCols(len(vars))
	}
	for i, v := range vars {
		col := i + 1
		lp.SetColName(col, v.Name)
		lp.SetColBnds(col, bndsType(v.Lower, v.Upper), finite(v.Lower), finite(v.Upper))
		switch v.Kind {
		case Integer:
			lp.SetColKind(col, glpk.IV)
		case Binary:
			lp.SetColKind(col, glpk.BV)
		default:
			lp.SetColKind(col, glpk.CV)
		}
	}

	cons := p.Constraints()
	if len(cons) > 0 {
		lp.AddRows(len(cons))
	}
	for i, c := range cons {
		row := i + 1
		lp.SetRowName(row, c.Name)
		lp.SetRowBnds(row, bndsType(c.Lower, c.Upper), finite(c.Lower), finite(c.Upper))

		terms := c.Expr.Terms()
		ind := make([]int32, len(terms)+1)
		val := make([]float64, len(terms)+1)
		for j, t := range terms {
			ind[j+1] = int32(t.Var) + 1
			val[j+1] = t.Coef
		}
		lp.SetMatRow(row, ind, val)
	}

	obj := p.Objective()
	for _, t := range obj.Terms() {
		lp.SetObjCoef(int(t.Var)+1, t.Coef)
	}

	iocp := glpk.NewIocp()
	iocp.SetPresolve(s.presolve)

	if err := lp.Intopt(iocp); err != nil {
		if optErr, ok := err.(glpk.OptError); ok && (optErr == glpk.ENOPFS || optErr == glpk.ENODFS) {
			// The presolver proved the relaxation infeasible or unbounded
			// before branching.
			return &Solution{Status: StatusInfeasible}, nil
		}
		return nil, fmt.Errorf("glpk intopt: %w", err)
	}

	sol := &Solution{Status: mipStatus(lp.MipStatus())}
	if sol.Status != StatusOptimal {
		return sol, nil
	}

	sol.Values = make([]float64, len(vars))
	for i := range vars {
		sol.Values[i] = lp.MipColVal(i + 1)
	}
	sol.Objective = lp.MipObjVal()
	return sol, nil
}

func mipStatus(st glpk.SolStat) Status {
	switch st {
	case glpk.OPT:
		return StatusOptimal
	case glpk.NOFEAS, glpk.INFEAS:
		return StatusInfeasible
	case glpk.UNBND:
		return StatusUnbounded
	default:
		return StatusUndefined
	}
}

// bndsType maps a [lower, upper] pair onto GLPK's bound classification.
func bndsType(lower, upper float64) glpk.BndsType {
	lowInf := math.IsInf(lower, -1)
	upInf := math.IsInf(upper, 1)
	switch {
	case lowInf && upInf:
		return glpk.FR
	case lowInf:
		return glpk.UP
	case upInf:
		return glpk.LO
	case lower == upper:
		return glpk.FX
	default:
		return glpk.DB
	}
}

// finite replaces infinities with zero; GLPK ignores the bound value for
// unbounded sides but rejects IEEE infinities.
func finite(v float64) float64 {
	if math.IsInf(v, 0) {
		return 0
	}
	return v
}
