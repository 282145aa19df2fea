package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/benbjohnson/cegar"
	"github.com/benbjohnson/cegar/parser"
	"github.com/benbjohnson/cegar/smt/z3"
)

// CFGCommand represents the "cfg" subcommand: abstract a source file
// against an empty predicate set (every condition collapses to a
// nondeterministic boolean guard) and dump the resulting control-flow
// graph as Graphviz dot source — useful for inspecting a program's block
// structure without running the CEGAR loop.
type CFGCommand struct{}

// NewCFGCommand returns a new instance of CFGCommand.
func NewCFGCommand() *CFGCommand {
	return &CFGCommand{}
}

// Run executes the "cfg" subcommand.
func (cmd *CFGCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cegar-cfg", flag.ContinueOnError)
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

	abstracted, shadow, err := cegar.Abstract(prog, cegar.NewPredicateList(), solver, encodeTerm)
	if err != nil {
		return err
	}

	compiled, err := cegar.BuildCFG(abstracted, shadow)
	if err != nil {
		return err
	}
	defer compiled.CFG.Close()

	return compiled.CFG.WriteDOT(os.Stdout)
}

func (cmd *CFGCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: cegar cfg <file>

Dumps file's control-flow graph, abstracted against an empty predicate set,
as Graphviz dot source on stdout.
`[1:])
}
