package parser

import (
	"testing"

	"wabbitc/internal/ast"
)

func mustParse(t *testing.T, src string) *ast.File {
	t.Helper()
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): unexpected error: %s", src, err)
	}
	return f
}

func TestParseMinimalMain(t *testing.T) {
	f := mustParse(t, `func main() { print 1; }`)
	if len(f.Decls) != 1 {
		t.Fatalf("expected 1 decl, got %d", len(f.Decls))
	}
	fn, ok := f.Decls[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("expected *ast.FuncDecl, got %T", f.Decls[0])
	}
	if fn.Name != "main" {
		t.Errorf("expected func name main, got %q", fn.Name)
	}
	if len(fn.Body) != 1 {
		t.Fatalf("expected 1 statement in body, got %d", len(fn.Body))
	}
	if _, ok := fn.Body[0].(*ast.Print); !ok {
		t.Errorf("expected *ast.Print, got %T", fn.Body[0])
	}
}

func TestParseRejectsTopLevelStatement(t *testing.T) {
	_, err := Parse(`print 1;`)
	if err == nil {
		t.Fatal("expected error for top-level statement outside a declaration")
	}
}

func TestParseFuncWithParamsAndReturn(t *testing.T) {
	f := mustParse(t, `func add(x int, y int) int { return x + y; }`)
	fn := f.Decls[0].(*ast.FuncDecl)
	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}
	if fn.Params[0].Name != "x" || fn.Params[1].Name != "y" {
		t.Errorf("unexpected param names: %+v", fn.Params)
	}
	ret := fn.Body[0].(*ast.Return)
	infix, ok := ret.Value.(*ast.InfixOp)
	if !ok {
		t.Fatalf("expected *ast.InfixOp, got %T", ret.Value)
	}
	if infix.Op != "+" {
		t.Errorf("expected op '+', got %q", infix.Op)
	}
}

func TestParseImportFunc(t *testing.T) {
	f := mustParse(t, `
		import func sin(x float) float;
		func main() { }
	`)
	imp, ok := f.Decls[0].(*ast.ImportFunc)
	if !ok {
		t.Fatalf("expected *ast.ImportFunc, got %T", f.Decls[0])
	}
	if imp.Name != "sin" || len(imp.Params) != 1 {
		t.Errorf("unexpected import decl: %+v", imp)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	// 1 + 2 * 3 should parse as 1 + (2 * 3).
	f := mustParse(t, `func main() { print 1 + 2 * 3; }`)
	fn := f.Decls[0].(*ast.FuncDecl)
	top := fn.Body[0].(*ast.Print).Expr.(*ast.InfixOp)
	if top.Op != "+" {
		t.Fatalf("expected top operator '+', got %q", top.Op)
	}
	rhs, ok := top.Right.(*ast.InfixOp)
	if !ok || rhs.Op != "*" {
		t.Fatalf("expected right-hand side to be a '*' expression, got %#v", top.Right)
	}
}

func TestLeftAssociativity(t *testing.T) {
	// 1 - 2 - 3 should parse as (1 - 2) - 3.
	f := mustParse(t, `func main() { print 1 - 2 - 3; }`)
	fn := f.Decls[0].(*ast.FuncDecl)
	top := fn.Body[0].(*ast.Print).Expr.(*ast.InfixOp)
	if top.Op != "-" {
		t.Fatalf("expected top operator '-', got %q", top.Op)
	}
	if _, ok := top.Left.(*ast.InfixOp); !ok {
		t.Fatalf("expected left-associative nesting on the left, got %#v", top.Left)
	}
	if _, ok := top.Right.(*ast.IntegerLit); !ok {
		t.Fatalf("expected a literal on the right, got %#v", top.Right)
	}
}

func TestMemoryOperators(t *testing.T) {
	f := mustParse(t, `func main() { var x int = ^8; `+"`"+`x = 42; }`)
	fn := f.Decls[0].(*ast.FuncDecl)
	v := fn.Body[0].(*ast.VarDecl)
	if _, ok := v.Value.(*ast.MemGrow); !ok {
		t.Fatalf("expected *ast.MemGrow, got %T", v.Value)
	}
	assign := fn.Body[1].(*ast.Assign)
	if _, ok := assign.Target.(*ast.MemLoad); !ok {
		t.Fatalf("expected *ast.MemLoad target, got %T", assign.Target)
	}
}

func TestIfElseIfChain(t *testing.T) {
	f := mustParse(t, `
		func main() {
			if true {
				print 1;
			} else if false {
				print 2;
			} else {
				print 3;
			}
		}
	`)
	fn := f.Decls[0].(*ast.FuncDecl)
	outer := fn.Body[0].(*ast.If)
	if len(outer.Else) != 1 {
		t.Fatalf("expected else-if to nest as a single-element Else, got %d", len(outer.Else))
	}
	inner, ok := outer.Else[0].(*ast.If)
	if !ok {
		t.Fatalf("expected nested *ast.If, got %T", outer.Else[0])
	}
	if len(inner.Else) != 1 {
		t.Fatalf("expected final else block, got %d stmts", len(inner.Else))
	}
}

func TestWhileLoop(t *testing.T) {
	f := mustParse(t, `func main() { while true { print 1; } }`)
	fn := f.Decls[0].(*ast.FuncDecl)
	if _, ok := fn.Body[0].(*ast.While); !ok {
		t.Fatalf("expected *ast.While, got %T", fn.Body[0])
	}
}

func TestCallExpressionAndStatement(t *testing.T) {
	f := mustParse(t, `
		import func sin(x float) float;
		func main() {
			sin(1.0);
			var y float = sin(2.0);
		}
	`)
	fn := f.Decls[1].(*ast.FuncDecl)
	if _, ok := fn.Body[0].(*ast.ExprStmt); !ok {
		t.Fatalf("expected *ast.ExprStmt for call statement, got %T", fn.Body[0])
	}
	v := fn.Body[1].(*ast.VarDecl)
	if _, ok := v.Value.(*ast.Call); !ok {
		t.Fatalf("expected *ast.Call initializer, got %T", v.Value)
	}
}

func TestConstWithAndWithoutTypeAnnotation(t *testing.T) {
	f := mustParse(t, `
		const pi float = 3.14;
		const answer = 42;
		func main() { }
	`)
	withType := f.Decls[0].(*ast.ConstDecl)
	if withType.Typ == 0 {
		t.Errorf("expected annotated type to survive parsing")
	}
	withoutType := f.Decls[1].(*ast.ConstDecl)
	if withoutType.Typ != 0 {
		t.Errorf("expected unannotated const to carry types.Invalid, got %v", withoutType.Typ)
	}
}

func TestSyntaxErrorReportsPosition(t *testing.T) {
	_, err := Parse("func main() { print 1 }")
	if err == nil {
		t.Fatal("expected a missing-semicolon syntax error")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	// The error points at the `}` that stands where `;` was expected.
	if perr.Pos.Line != 1 || perr.Pos.Col != 23 {
		t.Errorf("expected position 1:23, got %d:%d", perr.Pos.Line, perr.Pos.Col)
	}
}
