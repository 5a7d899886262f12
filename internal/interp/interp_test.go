package interp

import (
	"strings"
	"testing"

	"wabbitc/internal/diag"
	"wabbitc/internal/irgen"
	"wabbitc/internal/parser"
	"wabbitc/internal/sema"
)

// runSrc compiles src end to end and returns everything main printed,
// one line per Print statement, in order.
func runSrc(t *testing.T, src string) []string {
	t.Helper()
	f, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	sink := diag.NewSink("test.wb")
	res := sema.Check(f, sink)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Errors())
	}
	mod := irgen.Generate(f, res)

	it := New(mod)
	var out strings.Builder
	it.Out = &out
	if _, err := it.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}

func TestInterpArithmetic(t *testing.T) {
	lines := runSrc(t, `func main() { print 2 + 3 * 4; }`)
	want := []string{"14"}
	if len(lines) != 1 || lines[0] != want[0] {
		t.Errorf("got %v, want %v", lines, want)
	}
}

func TestInterpFloatArithmetic(t *testing.T) {
	lines := runSrc(t, `func main() { print 1.5 + 2.25; }`)
	if len(lines) != 1 || lines[0] != "3.75" {
		t.Errorf("got %v, want [3.75]", lines)
	}
}

func TestInterpIfElse(t *testing.T) {
	lines := runSrc(t, `
		func main() {
			var x int = 10;
			if x > 5 {
				print 1;
			} else {
				print 0;
			}
		}
	`)
	if len(lines) != 1 || lines[0] != "1" {
		t.Errorf("got %v, want [1]", lines)
	}
}

func TestInterpWhileLoopSum(t *testing.T) {
	lines := runSrc(t, `
		func main() {
			var i int = 0;
			var total int = 0;
			while i < 5 {
				total = total + i;
				i = i + 1;
			}
			print total;
		}
	`)
	if len(lines) != 1 || lines[0] != "10" {
		t.Errorf("got %v, want [10]", lines)
	}
}

func TestInterpRecursiveFunctionCall(t *testing.T) {
	lines := runSrc(t, `
		func fact(n int) int {
			if n < 2 {
				return 1;
			}
			return n * fact(n - 1);
		}
		func main() {
			print fact(5);
		}
	`)
	if len(lines) != 1 || lines[0] != "120" {
		t.Errorf("got %v, want [120]", lines)
	}
}

func TestInterpMemoryRoundTrip(t *testing.T) {
	lines := runSrc(t, "func main() { var p int = ^8; `p = 99; print `p; }")
	if len(lines) != 1 || lines[0] != "99" {
		t.Errorf("got %v, want [99]", lines)
	}
}

func TestInterpImportFuncHostCallback(t *testing.T) {
	f, err := parser.Parse(`
		import func double(x int) int;
		func main() { print double(21); }
	`)
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	sink := diag.NewSink("test.wb")
	res := sema.Check(f, sink)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Errors())
	}
	mod := irgen.Generate(f, res)

	it := New(mod)
	it.Register("double", func(args []Value) Value {
		return vi(args[0].I * 2)
	})
	var out strings.Builder
	it.Out = &out
	if _, err := it.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}
	got := strings.TrimSpace(out.String())
	if got != "42" {
		t.Errorf("got %q, want %q", got, "42")
	}
}

func TestInterpCallToUnregisteredImportPanics(t *testing.T) {
	f, err := parser.Parse(`
		import func mystery(x int) int;
		func main() { print mystery(1); }
	`)
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	sink := diag.NewSink("test.wb")
	res := sema.Check(f, sink)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Errors())
	}
	mod := irgen.Generate(f, res)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic for an unregistered import function")
		}
	}()
	New(mod).Run()
}

func TestInterpIntegerDivisionTruncates(t *testing.T) {
	lines := runSrc(t, `func main() { print 7 / 2; }`)
	if len(lines) != 1 || lines[0] != "3" {
		t.Errorf("got %v, want [3]", lines)
	}
}

func TestInterpLogicalOperators(t *testing.T) {
	lines := runSrc(t, `
		func main() {
			if true && false {
				print 1;
			} else {
				print 0;
			}
			if true || false {
				print 1;
			} else {
				print 0;
			}
		}
	`)
	want := []string{"0", "1"}
	if len(lines) != 2 || lines[0] != want[0] || lines[1] != want[1] {
		t.Errorf("got %v, want %v", lines, want)
	}
}
