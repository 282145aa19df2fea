package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var cmd string
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "", "-h", "--help", "help":
		usage()
		return flag.ErrHelp
	case "check":
		return NewCheckCommand().Run(ctx, args)
	case "cfg":
		return NewCFGCommand().Run(ctx, args)
	default:
		return fmt.Errorf(`cegar %s: unknown command`, cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `
Cegar is a counterexample-guided abstraction refinement checker for a small
imperative language.

Usage:

	cegar <command> [arguments]

The commands are:

	check       check a program, reporting correct/buggy/failed
	cfg         dump a program's compiled control-flow graph as Graphviz dot
	help        this screen
`[1:])
}
