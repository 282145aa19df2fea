package parser_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/benbjohnson/cegar"
	"github.com/benbjohnson/cegar/parser"
)

func mustParse(t *testing.T, src string) *cegar.Program {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.go")
	writeFile(t, path, src)
	prog, err := parser.Parse(path)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return prog
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParse_SimpleAssertion(t *testing.T) {
	// Scenario S1: int x; void main(){ x = 1; assert(x == 1); }
	prog := mustParse(t, `package main

var x int

func main() {
	x = 1
	assert(x == 1)
}
`)

	if got, exp := len(prog.Globals), 1; got != exp {
		t.Fatalf("len(Globals)=%d, expected %d", got, exp)
	}
	want := cegar.VarDef{Name: "x", Type: cegar.Int, Scope: cegar.GlobalScope}
	if diff := cmp.Diff(want, *prog.Globals[0]); diff != "" {
		t.Fatalf("Globals[0] mismatch (-want +got):\n%s", diff)
	}

	main := prog.Main()
	// AddInitializers prepends one SimpleAssignment (x := 0) ahead of the
	// two parsed statements.
	if got, exp := len(main.Body), 3; got != exp {
		t.Fatalf("len(main.Body)=%d, expected %d", got, exp)
	}
	if _, ok := main.Body[len(main.Body)-1].(*cegar.Assert); !ok {
		t.Fatalf("last statement is %T, expected *cegar.Assert", main.Body[len(main.Body)-1])
	}
}

func TestParse_IfGuardedAssertion(t *testing.T) {
	// Scenario S2: int x; void main(){ x = 0; if (x == 0) { assert(x != 0); } }
	prog := mustParse(t, `package main

var x int

func main() {
	x = 0
	if x == 0 {
		assert(x != 0)
	}
}
`)

	main := prog.Main()
	ite, ok := main.Body[len(main.Body)-1].(*cegar.Ite)
	if !ok {
		t.Fatalf("last statement is %T, expected *cegar.Ite", main.Body[len(main.Body)-1])
	}
	if got, exp := len(ite.Then), 1; got != exp {
		t.Fatalf("len(Then)=%d, expected %d", got, exp)
	}
	if _, ok := ite.Then[0].(*cegar.Assert); !ok {
		t.Fatalf("Then[0] is %T, expected *cegar.Assert", ite.Then[0])
	}
	if got, exp := len(ite.Else), 0; got != exp {
		t.Fatalf("len(Else)=%d, expected %d", got, exp)
	}
}

func TestParse_WhileAndProcedureCall(t *testing.T) {
	prog := mustParse(t, `package main

var n int

func helper() {
	n = n + 1
}

func main() {
	n = 0
	for n < 3 {
		helper()
	}
}
`)

	if got, exp := len(prog.Funcs), 2; got != exp {
		t.Fatalf("len(Funcs)=%d, expected %d", got, exp)
	}

	main := prog.Main()
	loop, ok := main.Body[len(main.Body)-1].(*cegar.While)
	if !ok {
		t.Fatalf("last statement is %T, expected *cegar.While", main.Body[len(main.Body)-1])
	}
	call, ok := loop.Body[0].(*cegar.CallStmt)
	if !ok {
		t.Fatalf("loop body[0] is %T, expected *cegar.CallStmt", loop.Body[0])
	}
	if got, exp := call.Target, "helper"; got != exp {
		t.Fatalf("call.Target=%q, expected %q", got, exp)
	}
}

func TestParse_DocStringSurvives(t *testing.T) {
	prog := mustParse(t, `package main

func main() {
	"checking the loop invariant"
}
`)

	main := prog.Main()
	var found bool
	for _, s := range main.Body {
		if doc, ok := s.(*cegar.DocString); ok {
			found = true
			if got, exp := doc.Text, "checking the loop invariant"; got != exp {
				t.Fatalf("DocString.Text=%q, expected %q", got, exp)
			}
		}
	}
	if !found {
		t.Fatal("expected a *cegar.DocString in main.Body")
	}
}

func TestParse_RejectsUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "function with parameters",
			src: `package main
func main(x int) {}
`,
		},
		{
			name: "for loop with init clause",
			src: `package main
func main() {
	for i := 0; i < 3; i++ {
	}
}
`,
		},
		{
			name: "undeclared variable",
			src: `package main
func main() {
	y = 1
}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prog.go")
			writeFile(t, path, tt.src)
			if _, err := parser.Parse(path); err == nil {
				t.Fatal("expected an error, got nil")
			} else if !strings.Contains(err.Error(), "cegar:") {
				t.Fatalf("error %q does not look like a cegar error", err.Error())
			}
		})
	}
}
