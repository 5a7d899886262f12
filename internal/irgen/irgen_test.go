package irgen

import (
	"testing"

	"wabbitc/internal/diag"
	"wabbitc/internal/ir"
	"wabbitc/internal/parser"
	"wabbitc/internal/sema"
	"wabbitc/internal/types"
)

func generate(t *testing.T, src string) *ir.Module {
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
	return Generate(f, res)
}

func mainFunc(t *testing.T, mod *ir.Module) *ir.Function {
	t.Helper()
	fn := mod.FindFunc("main")
	if fn == nil {
		t.Fatal("expected a main function in the generated module")
	}
	return fn
}

func opsOf(code []ir.Instr) []ir.Op {
	ops := make([]ir.Op, len(code))
	for i, c := range code {
		ops[i] = c.Op
	}
	return ops
}

func TestGenerateArithmetic(t *testing.T) {
	mod := generate(t, `func main() { print 1 + 2 * 3; }`)
	fn := mainFunc(t, mod)
	ops := opsOf(fn.Code)
	want := []ir.Op{ir.ConstI, ir.ConstI, ir.ConstI, ir.MulI, ir.AddI, ir.PrintI}
	if len(ops) != len(want) {
		t.Fatalf("opcode sequence length mismatch: got %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("opcode %d: got %s, want %s", i, ops[i], want[i])
		}
	}
}

func TestGenerateFloatArithmeticUsesFloatOpcodes(t *testing.T) {
	mod := generate(t, `func main() { print 1.0 + 2.0; }`)
	fn := mainFunc(t, mod)
	ops := opsOf(fn.Code)
	want := []ir.Op{ir.ConstF, ir.ConstF, ir.AddF, ir.PrintF}
	if len(ops) != len(want) {
		t.Fatalf("opcode sequence length mismatch: got %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("opcode %d: got %s, want %s", i, ops[i], want[i])
		}
	}
}

func TestGenerateIfEmitsStructuredMarkers(t *testing.T) {
	mod := generate(t, `
		func main() {
			if true {
				print 1;
			} else {
				print 2;
			}
		}
	`)
	fn := mainFunc(t, mod)
	ops := opsOf(fn.Code)
	var hasIf, hasElse, hasEndIf bool
	for _, op := range ops {
		switch op {
		case ir.If:
			hasIf = true
		case ir.Else:
			hasElse = true
		case ir.EndIf:
			hasEndIf = true
		}
	}
	if !hasIf || !hasElse || !hasEndIf {
		t.Fatalf("expected If/Else/EndIf markers, got %v", ops)
	}
}

func TestGenerateWhileEmitsLoopMarkers(t *testing.T) {
	mod := generate(t, `func main() { while true { print 1; } }`)
	fn := mainFunc(t, mod)
	ops := opsOf(fn.Code)
	want := []ir.Op{ir.Loop, ir.ConstI, ir.CBreak, ir.ConstI, ir.PrintI, ir.EndLoop}
	if len(ops) != len(want) {
		t.Fatalf("opcode sequence length mismatch: got %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("opcode %d: got %s, want %s", i, ops[i], want[i])
		}
	}
}

func TestGenerateCallEmitsArgsThenCall(t *testing.T) {
	mod := generate(t, `
		func add(x int, y int) int { return x + y; }
		func main() { print add(1, 2); }
	`)
	fn := mainFunc(t, mod)
	ops := opsOf(fn.Code)
	want := []ir.Op{ir.ConstI, ir.ConstI, ir.Call, ir.PrintI}
	if len(ops) != len(want) {
		t.Fatalf("opcode sequence length mismatch: got %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("opcode %d: got %s, want %s", i, ops[i], want[i])
		}
	}
	call := fn.Code[2]
	if call.Name != "add" || call.Argc != 2 {
		t.Errorf("unexpected call instruction: %+v", call)
	}
}

func TestGenerateMemoryOperators(t *testing.T) {
	mod := generate(t, "func main() { var p int = ^8; `p = 42; print `p; }")
	fn := mainFunc(t, mod)
	ops := opsOf(fn.Code)
	var hasGrow, hasPoke, hasPeek bool
	for _, op := range ops {
		switch op {
		case ir.GrowI:
			hasGrow = true
		case ir.PokeI:
			hasPoke = true
		case ir.PeekI:
			hasPeek = true
		}
	}
	if !hasGrow || !hasPoke || !hasPeek {
		t.Fatalf("expected GrowI/PokeI/PeekI, got %v", ops)
	}
}

func TestGenerateLocalsTrackDeclarationTypes(t *testing.T) {
	mod := generate(t, `
		func main() {
			var a int = 1;
			var b float = 2.0;
			print a;
			print b;
		}
	`)
	fn := mainFunc(t, mod)
	if len(fn.Locals) != 2 {
		t.Fatalf("expected 2 local slots, got %d", len(fn.Locals))
	}
	if fn.Locals[0] != types.Int || fn.Locals[1] != types.Float {
		t.Errorf("expected local types [int float], got %v", fn.Locals)
	}
	if fn.NumLocals() != len(fn.Params)+2 {
		t.Errorf("NumLocals() mismatch: got %d", fn.NumLocals())
	}
}

func TestGenerateGlobalConstFoldsInitializer(t *testing.T) {
	mod := generate(t, `
		const pi float = 3.5;
		func main() { print pi; }
	`)
	if len(mod.Globals) != 1 {
		t.Fatalf("expected 1 global, got %d", len(mod.Globals))
	}
	g := mod.Globals[0]
	if g.Name != "pi" || g.Mutable {
		t.Errorf("unexpected global signature: %+v", g)
	}
	if len(g.Init) != 1 || g.Init[0].Op != ir.ConstF || g.Init[0].Float != 3.5 {
		t.Errorf("unexpected global init code: %+v", g.Init)
	}
}
