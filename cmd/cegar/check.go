package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/benbjohnson/cegar"
	"github.com/benbjohnson/cegar/parser"
	"github.com/benbjohnson/cegar/smt"
	"github.com/benbjohnson/cegar/smt/z3"
)

// exit codes for the "check" subcommand, per the spec's three-state outcome:
// correct, buggy, or failed to decide either way.
const (
	exitCorrect = 0
	exitBuggy   = 1
	exitFailed  = 2
)

// CheckCommand represents the "check" subcommand: run the CEGAR loop over a
// source file and report whether it is correct, buggy, or undecided.
type CheckCommand struct{}

// NewCheckCommand returns a new instance of CheckCommand.
func NewCheckCommand() *CheckCommand {
	return &CheckCommand{}
}

// Run executes the "check" subcommand.
func (cmd *CheckCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cegar-check", flag.ContinueOnError)
	maxIter := fs.Int("max-iterations", cegar.DefaultMaxIterations, "maximum CEGAR iterations before giving up")
	verbose := fs.Bool("v", false, "log each CEGAR iteration to stderr")
	stats := fs.Bool("stats", false, "print solver statistics after checking")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("source file required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many files specified")
	}

	prog, err := parser.Parse(fs.Arg(0))
	if err != nil {
		return err
	}

	solver := z3.NewSolver()
	defer solver.Close()

	runner := cegar.NewRunner(cegar.Config{MaxIterations: *maxIter}, nil)
	if !*verbose {
		runner.Logger.SetOutput(ioutil.Discard)
	}

	result, err := runner.Run(prog, solver, encodeTerm)
	if err != nil && err != cegar.ErrRefinementStuck && err != cegar.ErrInterpolationFailed {
		return err
	}

	fmt.Printf("%s (%d iteration(s))\n", result.Outcome, result.Iterations)
	if result.Outcome == cegar.Buggy {
		for _, st := range result.Trace {
			fmt.Println(st)
		}
	}
	if *stats {
		printStats(os.Stdout, solver.Stats())
	}

	switch result.Outcome {
	case cegar.Correct:
		os.Exit(exitCorrect)
	case cegar.Buggy:
		os.Exit(exitBuggy)
	default:
		os.Exit(exitFailed)
	}
	return nil
}

// encodeTerm is the z3 Encoder: z3.Solver's own methods accept a
// cegar.Expr directly as smt.Term (translating it to a Z3_ast lazily,
// inside Assert/Interpolate), so encoding ahead of time is the identity.
func encodeTerm(e cegar.Expr) (smt.Term, error) { return e, nil }

func printStats(w io.Writer, s smt.Stats) {
	fmt.Fprintf(w, "check-sat calls: %d (%s)\n", s.CheckSatN, s.CheckSatTime)
	fmt.Fprintf(w, "interpolate calls: %d (%s)\n", s.InterpolateN, s.InterpolateTime)
}

func (cmd *CheckCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: cegar check [arguments] <file>

Arguments:

	-max-iterations int
	    Maximum CEGAR iterations before giving up (default 20).
	-v
	    Log each CEGAR iteration to stderr.
	-stats
	    Print solver statistics after checking.
`[1:])
}
