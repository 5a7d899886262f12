// Package irgen lowers a type-checked Wabbit AST into the stack IR
// defined by internal/ir. It never re-resolves names or re-derives
// types: it trusts the annotations and symbol resolution produced by
// internal/sema, the same division of labor the teacher's own
// ir/lir.Transform keeps from its checker (ir/validate.go).
package irgen

import (
	"wabbitc/internal/ast"
	"wabbitc/internal/ir"
	"wabbitc/internal/sema"
	"wabbitc/internal/types"
)

type generator struct {
	res *sema.Result
}

// Generate lowers file into a Module. file must already have passed
// sema.Check with no diagnostics; res is that call's Result.
func Generate(file *ast.File, res *sema.Result) *ir.Module {
	g := &generator{res: res}
	mod := &ir.Module{Entry: "main"}

	for _, d := range file.Decls {
		if imp, ok := d.(*ast.ImportFunc); ok {
			mod.Imports = append(mod.Imports, ir.ImportSig{
				Name:   imp.Name,
				Params: paramTypes(imp.Params),
				Ret:    imp.Ret,
			})
		}
	}

	for _, d := range file.Decls {
		switch decl := d.(type) {
		case *ast.ConstDecl:
			sym, _ := res.Global.LookupLocal(decl.Name)
			mod.Globals = append(mod.Globals, ir.GlobalSig{
				Name: decl.Name, Typ: sym.Type, Mutable: false,
				Init: g.genExpr(decl.Value),
			})
		case *ast.VarDecl:
			sym, _ := res.Global.LookupLocal(decl.Name)
			var init []ir.Instr
			if decl.Value != nil {
				init = g.genExpr(decl.Value)
			} else {
				init = genZero(sym.Type)
			}
			mod.Globals = append(mod.Globals, ir.GlobalSig{
				Name: decl.Name, Typ: sym.Type, Mutable: true, Init: init,
			})
		}
	}

	for _, d := range file.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			mod.Funcs = append(mod.Funcs, g.genFunc(fn))
		}
	}

	return mod
}

func paramTypes(params []ast.Param) []types.Type {
	out := make([]types.Type, len(params))
	for i, p := range params {
		out[i] = p.Typ
	}
	return out
}

func genZero(t types.Type) []ir.Instr {
	if t == types.Float {
		return []ir.Instr{{Op: ir.ConstF, Float: 0}}
	}
	return []ir.Instr{{Op: ir.ConstI, Int: 0}}
}

// exprType extracts the type the checker annotated e with.
func exprType(e ast.Expr) types.Type {
	switch ex := e.(type) {
	case *ast.IntegerLit:
		return ex.Typ
	case *ast.FloatLit:
		return ex.Typ
	case *ast.BoolLit:
		return ex.Typ
	case *ast.Name:
		return ex.Typ
	case *ast.InfixOp:
		return ex.Typ
	case *ast.PrefixOp:
		return ex.Typ
	case *ast.Call:
		return ex.Typ
	case *ast.MemLoad:
		return types.Int
	case *ast.MemGrow:
		return types.Int
	}
	return types.Invalid
}

func (g *generator) genFunc(fn *ast.FuncDecl) *ir.Function {
	f := &ir.Function{
		Name:   fn.Name,
		Params: paramTypes(fn.Params),
		Ret:    fn.Ret,
	}
	var locals []types.Type
	code := g.genStmts(fn.Body, &locals)
	f.Code = code
	f.Locals = locals
	return f
}

// genStmts lowers a statement list, appending to *locals whenever it
// passes a local ConstDecl/VarDecl so the Function ends up knowing every
// local slot's type across every nested block.
func (g *generator) genStmts(stmts []ast.Stmt, locals *[]types.Type) []ir.Instr {
	var out []ir.Instr
	for _, s := range stmts {
		out = append(out, g.genStmt(s, locals)...)
	}
	return out
}

func (g *generator) genStmt(s ast.Stmt, locals *[]types.Type) []ir.Instr {
	switch st := s.(type) {
	case *ast.Print:
		code := g.genExpr(st.Expr)
		if exprType(st.Expr) == types.Float {
			return append(code, ir.Instr{Op: ir.PrintF})
		}
		return append(code, ir.Instr{Op: ir.PrintI})

	case *ast.ConstDecl:
		sym := g.res.Locals[st]
		*locals = append(*locals, sym.Type)
		code := g.genExpr(st.Value)
		return append(code, setLocalInstr(sym))

	case *ast.VarDecl:
		sym := g.res.Locals[st]
		*locals = append(*locals, sym.Type)
		var code []ir.Instr
		if st.Value != nil {
			code = g.genExpr(st.Value)
		} else {
			code = genZero(sym.Type)
		}
		return append(code, setLocalInstr(sym))

	case *ast.Assign:
		return g.genAssign(st)

	case *ast.If:
		code := g.genExpr(st.Cond)
		code = append(code, ir.Instr{Op: ir.If})
		code = append(code, g.genStmts(st.Then, locals)...)
		if st.Else != nil {
			code = append(code, ir.Instr{Op: ir.Else})
			code = append(code, g.genStmts(st.Else, locals)...)
		}
		code = append(code, ir.Instr{Op: ir.EndIf})
		return code

	case *ast.While:
		var code []ir.Instr
		code = append(code, ir.Instr{Op: ir.Loop})
		code = append(code, g.genExpr(st.Cond)...)
		code = append(code, ir.Instr{Op: ir.CBreak})
		code = append(code, g.genStmts(st.Body, locals)...)
		code = append(code, ir.Instr{Op: ir.EndLoop})
		return code

	case *ast.Return:
		if st.Value == nil {
			return []ir.Instr{{Op: ir.Ret}}
		}
		code := g.genExpr(st.Value)
		return append(code, ir.Instr{Op: ir.Ret})

	case *ast.ExprStmt:
		code := g.genExpr(st.X)
		if call, ok := st.X.(*ast.Call); ok && call.Typ != types.Void {
			code = append(code, ir.Instr{Op: ir.Drop})
		}
		return code
	}
	return nil
}

func setLocalInstr(sym *sema.Symbol) ir.Instr {
	if sym.Type == types.Float {
		return ir.Instr{Op: ir.LocalSetF, Int: int64(sym.Index)}
	}
	return ir.Instr{Op: ir.LocalSetI, Int: int64(sym.Index)}
}

func (g *generator) genAssign(st *ast.Assign) []ir.Instr {
	switch target := st.Target.(type) {
	case *ast.Name:
		sym := g.res.Symbols[target]
		code := g.genExpr(st.Value)
		if sym.Storage == sema.Local {
			return append(code, setLocalInstr(sym))
		}
		if sym.Type == types.Float {
			return append(code, ir.Instr{Op: ir.GlobalSetF, Int: int64(sym.Index)})
		}
		return append(code, ir.Instr{Op: ir.GlobalSetI, Int: int64(sym.Index)})
	case *ast.MemLoad:
		code := g.genExpr(target.Addr)
		code = append(code, g.genExpr(st.Value)...)
		return append(code, ir.Instr{Op: ir.PokeI})
	}
	return nil
}

func (g *generator) genExpr(e ast.Expr) []ir.Instr {
	switch ex := e.(type) {
	case *ast.IntegerLit:
		return []ir.Instr{{Op: ir.ConstI, Int: ex.Value}}
	case *ast.FloatLit:
		return []ir.Instr{{Op: ir.ConstF, Float: ex.Value}}
	case *ast.BoolLit:
		v := int64(0)
		if ex.Value {
			v = 1
		}
		return []ir.Instr{{Op: ir.ConstI, Int: v}}
	case *ast.Name:
		sym := g.res.Symbols[ex]
		if sym.Storage == sema.Local {
			if sym.Type == types.Float {
				return []ir.Instr{{Op: ir.LocalGetF, Int: int64(sym.Index)}}
			}
			return []ir.Instr{{Op: ir.LocalGetI, Int: int64(sym.Index)}}
		}
		if sym.Type == types.Float {
			return []ir.Instr{{Op: ir.GlobalGetF, Int: int64(sym.Index)}}
		}
		return []ir.Instr{{Op: ir.GlobalGetI, Int: int64(sym.Index)}}
	case *ast.InfixOp:
		return g.genInfix(ex)
	case *ast.PrefixOp:
		return g.genPrefix(ex)
	case *ast.Call:
		sym := g.res.Symbols[ex]
		var code []ir.Instr
		for _, a := range ex.Args {
			code = append(code, g.genExpr(a)...)
		}
		return append(code, ir.Instr{Op: ir.Call, Name: sym.Name, Argc: len(ex.Args)})
	case *ast.MemLoad:
		code := g.genExpr(ex.Addr)
		return append(code, ir.Instr{Op: ir.PeekI})
	case *ast.MemGrow:
		code := g.genExpr(ex.Size)
		return append(code, ir.Instr{Op: ir.GrowI})
	}
	return nil
}

func (g *generator) genInfix(ex *ast.InfixOp) []ir.Instr {
	code := g.genExpr(ex.Left)
	code = append(code, g.genExpr(ex.Right)...)
	operand := exprType(ex.Left)
	isFloat := operand == types.Float

	var op ir.Op
	switch ex.Op {
	case "+":
		op = pick(isFloat, ir.AddI, ir.AddF)
	case "-":
		op = pick(isFloat, ir.SubI, ir.SubF)
	case "*":
		op = pick(isFloat, ir.MulI, ir.MulF)
	case "/":
		op = pick(isFloat, ir.DivI, ir.DivF)
	case "<":
		op = pick(isFloat, ir.LtI, ir.LtF)
	case "<=":
		op = pick(isFloat, ir.LeI, ir.LeF)
	case ">":
		op = pick(isFloat, ir.GtI, ir.GtF)
	case ">=":
		op = pick(isFloat, ir.GeI, ir.GeF)
	case "==":
		op = pick(isFloat, ir.EqI, ir.EqF)
	case "!=":
		op = pick(isFloat, ir.NeI, ir.NeF)
	case "&&":
		op = ir.AndI
	case "||":
		op = ir.OrI
	}
	return append(code, ir.Instr{Op: op})
}

func pick(isFloat bool, i, f ir.Op) ir.Op {
	if isFloat {
		return f
	}
	return i
}

func (g *generator) genPrefix(ex *ast.PrefixOp) []ir.Instr {
	code := g.genExpr(ex.Operand)
	isFloat := exprType(ex.Operand) == types.Float
	switch ex.Op {
	case "-":
		return append(code, ir.Instr{Op: pick(isFloat, ir.NegI, ir.NegF)})
	case "+":
		return code
	case "!":
		return append(code, ir.Instr{Op: ir.NotI})
	}
	return code
}
