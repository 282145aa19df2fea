package cegar

import (
	"log"
	"os"

	"github.com/benbjohnson/cegar/smt"
	"github.com/benbjohnson/cegar/symbolic"
)

// Outcome is the three-state result of running the CEGAR loop to
// completion, per §6: the program is proven correct, a genuine bug was
// found, or the loop gave up without deciding either way.
type Outcome int

const (
	Correct Outcome = iota
	Buggy
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Correct:
		return "correct"
	case Buggy:
		return "buggy"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds the CEGAR loop's tunables.
type Config struct {
	// MaxIterations bounds how many Abstract/Reach/Check/Refine rounds Run
	// will attempt before giving up with Failed. Zero means DefaultMaxIterations.
	MaxIterations int
}

// DefaultMaxIterations is used when Config.MaxIterations is zero.
const DefaultMaxIterations = 20

// Result is everything Run reports back: the outcome, and, for Buggy, the
// concrete witness trace that demonstrates it; for Correct and Failed,
// Trace is nil.
type Result struct {
	Outcome    Outcome
	Trace      []Traceable
	Iterations int
}

// PredicateSeed primes a Runner's predicate set before the first Abstract
// call, for a benchmark program whose invariant is already known rather
// than discovered by refinement.
type PredicateSeed struct {
	Scope string
	Expr  Expr
}

// Runner drives the Abstract -> Reach -> Check -> Refine state machine of
// §4.8 over one program at a time. It exists (rather than a bare function)
// so Logger and the seed predicate set can be configured once and reused
// across Run calls, matching the teacher's options-struct-with-defaults
// construction style for Executor.
type Runner struct {
	Config

	// Logger receives, for each iteration, trace lines for the abstracted
	// program and the state the loop reaches; defaults to stderr with no
	// prefix or timestamp.
	Logger *log.Logger

	seeds []PredicateSeed
}

// NewRunner returns a Runner configured with cfg (MaxIterations defaulting
// to DefaultMaxIterations if zero) and seeds, the predicate set Run starts
// from instead of empty.
func NewRunner(cfg Config, seeds []PredicateSeed) *Runner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Runner{
		Config: cfg,
		Logger: log.New(os.Stderr, "", 0),
		seeds:  seeds,
	}
}

// Run executes the CEGAR loop against prog to completion: starting from
// r's seed predicates, it repeatedly abstracts prog, builds the abstract
// program's symbolic CFG, computes forward reachability, and either
// reports the program correct (the bad state is abstractly unreachable),
// reports it buggy (a witness trace lifted from the abstract
// counterexample is concretely feasible), or refines the predicate set
// from the trace's interpolants and loops. It reports Failed if
// refinement doesn't grow the predicate set on some round (§8 scenario
// S6), and gives up with Failed after MaxIterations rounds regardless.
//
// prog must already satisfy Validate. solver and enc are the SMT oracle
// used throughout — for predicate dedup, feasibility checking, and Craig
// interpolation.
func (r *Runner) Run(prog *Program, solver smt.Solver, enc Encoder) (Result, error) {
	preds := NewPredicateList()
	for _, seed := range r.seeds {
		if _, _, err := preds.Extend(seed.Expr, seed.Scope, solver, enc, false); err != nil {
			return Result{Outcome: Failed}, err
		}
	}

	for iter := 1; iter <= r.MaxIterations; iter++ {
		// Abstract.
		abstracted, shadow, err := Abstract(prog, preds, solver, enc)
		if err != nil {
			return Result{Outcome: Failed, Iterations: iter}, err
		}
		r.Logger.Printf("[cegar] iteration %d: abstracted program with %d predicate(s):\n%s", iter, len(preds.All()), abstracted)
		compiled, err := BuildCFG(abstracted, shadow)
		if err != nil {
			return Result{Outcome: Failed, Iterations: iter}, err
		}
		defer compiled.CFG.Close()

		// Reach.
		reach := symbolic.Reachable(compiled.CFG, compiled.Init, compiled.Bad, true)
		mgr := compiled.CFG.Manager()
		if mgr.And(reach, compiled.Bad) == mgr.Zero() {
			r.Logger.Printf("[cegar] iteration %d: bad state unreachable, reporting correct", iter)
			return Result{Outcome: Correct, Iterations: iter}, nil
		}

		// Check: extract and lift the abstract counterexample.
		trace, found, err := ExtractTrace(compiled, reach)
		if err != nil {
			return Result{Outcome: Failed, Iterations: iter}, err
		}
		if !found {
			// reach and Bad overlap yet find_path found nothing: reach and
			// the graph it was computed over have gone inconsistent.
			panic("cegar: bad state reachable but find_path found no witness")
		}

		feasible, _, err := Feasible(trace, solver, enc)
		if err != nil {
			return Result{Outcome: Failed, Iterations: iter}, err
		}
		if feasible {
			r.Logger.Printf("[cegar] iteration %d: counterexample is feasible, reporting buggy", iter)
			return Result{Outcome: Buggy, Trace: trace, Iterations: iter}, nil
		}

		// Refine: the counterexample is spurious. Interpolate its SSA
		// encoding and extend the predicate set.
		r.Logger.Printf("[cegar] iteration %d: counterexample is spurious, refining", iter)
		constraints := SSAConstraints(trace, prog)
		interpolants, err := Interpolants(constraints, solver, enc)
		if err != nil {
			return Result{Outcome: Failed, Iterations: iter}, err
		}
		if interpolants == nil {
			// A single-statement trace can't be split for interpolation.
			return Result{Outcome: Failed, Iterations: iter}, ErrInterpolationFailed
		}

		grew, err := RefinePredicates(interpolants, prog, preds, solver, enc)
		if err != nil {
			return Result{Outcome: Failed, Iterations: iter}, err
		}
		if !grew {
			r.Logger.Printf("[cegar] iteration %d: refinement added no new predicates, giving up", iter)
			return Result{Outcome: Failed, Iterations: iter}, ErrRefinementStuck
		}
	}

	r.Logger.Printf("[cegar] exceeded %d iterations, giving up", r.MaxIterations)
	return Result{Outcome: Failed, Iterations: r.MaxIterations}, ErrRefinementStuck
}
