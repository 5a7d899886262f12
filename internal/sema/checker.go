package sema

import (
	"wabbitc/internal/ast"
	"wabbitc/internal/diag"
	"wabbitc/internal/types"
)

// Result is everything the checker produces: the populated module scope
// and a side table resolving every *ast.Name and *ast.Call in the tree
// to the Symbol it names. Keeping symbol resolution out-of-band (rather
// than mutating the AST nodes themselves) keeps ast a plain data
// structure, per this project's design notes.
type Result struct {
	Global  *Scope
	Symbols map[ast.Expr]*Symbol
	Locals  map[ast.Stmt]*Symbol // local ConstDecl/VarDecl statements -> their Symbol
}

// Checker implements the two-pass check described in spec.md §4.3:
// hoist every top-level declaration into the module scope, then walk
// every function body annotating expression types and resolving names.
type Checker struct {
	sink   *diag.Sink
	global *Scope
	syms   map[ast.Expr]*Symbol
	locals map[ast.Stmt]*Symbol

	funcRet types.Type // declared return type of the function being checked
	localSeq int        // next local storage index within the function being checked
}

// Check runs both passes over file, reporting problems to sink. It
// always returns a Result; callers must check sink.HasErrors() before
// trusting it, per the propagation policy in spec.md §7.
func Check(file *ast.File, sink *diag.Sink) *Result {
	c := &Checker{
		sink:   sink,
		global: NewScope(nil),
		syms:   make(map[ast.Expr]*Symbol),
		locals: make(map[ast.Stmt]*Symbol),
	}
	c.hoist(file)
	if !sink.HasErrors() {
		c.checkGlobalInits(file)
	}
	if !sink.HasErrors() {
		c.checkBodies(file)
	}
	if !sink.HasErrors() {
		if sym, ok := c.global.Lookup("main"); !ok || sym.Kind != FuncKind {
			sink.Add(diag.NameError, ast.Pos{}, "missing entry point function main")
		}
	}
	return &Result{Global: c.global, Symbols: c.syms, Locals: c.locals}
}

// ---------------------------------------------------------------------
// Pass 1: hoisting
// ---------------------------------------------------------------------

func (c *Checker) hoist(file *ast.File) {
	globalIndex := 0
	for _, d := range file.Decls {
		switch decl := d.(type) {
		case *ast.FuncDecl:
			params := paramTypes(decl.Params)
			sym := &Symbol{Name: decl.Name, Kind: FuncKind, Type: decl.Ret, Storage: Global, Params: params}
			if !c.global.Define(sym) {
				c.sink.Add(diag.NameError, decl.Pos, "duplicate declaration of %q", decl.Name)
			}
		case *ast.ImportFunc:
			params := paramTypes(decl.Params)
			sym := &Symbol{Name: decl.Name, Kind: ImportKind, Type: decl.Ret, Storage: Global, Params: params}
			if !c.global.Define(sym) {
				c.sink.Add(diag.NameError, decl.Pos, "duplicate declaration of %q", decl.Name)
			}
		case *ast.ConstDecl:
			sym := &Symbol{Name: decl.Name, Kind: ConstKind, Type: decl.Typ, Storage: Global, Index: globalIndex}
			globalIndex++
			if !c.global.Define(sym) {
				c.sink.Add(diag.NameError, decl.Pos, "duplicate declaration of %q", decl.Name)
			}
		case *ast.VarDecl:
			sym := &Symbol{Name: decl.Name, Kind: VarKind, Type: decl.Typ, Storage: Global, Index: globalIndex}
			globalIndex++
			if !c.global.Define(sym) {
				c.sink.Add(diag.NameError, decl.Pos, "duplicate declaration of %q", decl.Name)
			}
		}
	}
}

func paramTypes(params []ast.Param) []types.Type {
	out := make([]types.Type, len(params))
	for i, p := range params {
		out[i] = p.Typ
	}
	return out
}

// ---------------------------------------------------------------------
// Pass 2a: global initializers
// ---------------------------------------------------------------------

// checkGlobalInits type-checks global const/var initializers in
// declaration order. Globals may only refer to globals declared earlier
// in the file: unlike functions, they are not fully hoisted before
// typing, because their own type may depend on the initializer. hoist
// already defined every global's Symbol (so mutually-recursive-looking
// lookups resolve at all), so the earlier-only rule is enforced here by
// checking each Name reference against the set of globals whose own
// initializer has already been checked, not by scope visibility.
func (c *Checker) checkGlobalInits(file *ast.File) {
	seen := make(map[string]bool, len(file.Decls))
	for _, d := range file.Decls {
		switch decl := d.(type) {
		case *ast.ConstDecl:
			sym, _ := c.global.LookupLocal(decl.Name)
			c.checkGlobalRefs(decl.Value, decl.Pos, seen)
			t := c.checkExpr(decl.Value, c.global)
			if decl.Typ == types.Invalid {
				sym.Type = t
			} else if t != types.Invalid && t != decl.Typ {
				c.sink.Add(diag.TypeError, decl.Pos, "const %q declared as %s but initializer has type %s", decl.Name, decl.Typ, t)
			}
			seen[decl.Name] = true
		case *ast.VarDecl:
			if decl.Value != nil {
				c.checkGlobalRefs(decl.Value, decl.Pos, seen)
				t := c.checkExpr(decl.Value, c.global)
				if t != types.Invalid && t != decl.Typ {
					c.sink.Add(diag.TypeError, decl.Pos, "var %q declared as %s but initializer has type %s", decl.Name, decl.Typ, t)
				}
			}
			seen[decl.Name] = true
		}
	}
}

// checkGlobalRefs walks e for *ast.Name references to other globals and
// reports any that name a const/var not yet in seen -- a forward or
// (self-referencing) recursive global initializer, which every back end's
// declaration-order global init would read as zero rather than the
// intended value.
func (c *Checker) checkGlobalRefs(e ast.Expr, pos ast.Pos, seen map[string]bool) {
	switch ex := e.(type) {
	case *ast.Name:
		if sym, ok := c.global.LookupLocal(ex.Ident); ok && (sym.Kind == ConstKind || sym.Kind == VarKind) && !seen[ex.Ident] {
			c.sink.Add(diag.NameError, pos, "global %q initializer may only refer to globals declared earlier in the file", ex.Ident)
		}
	case *ast.InfixOp:
		c.checkGlobalRefs(ex.Left, pos, seen)
		c.checkGlobalRefs(ex.Right, pos, seen)
	case *ast.PrefixOp:
		c.checkGlobalRefs(ex.Operand, pos, seen)
	case *ast.Call:
		for _, a := range ex.Args {
			c.checkGlobalRefs(a, pos, seen)
		}
	case *ast.MemLoad:
		c.checkGlobalRefs(ex.Addr, pos, seen)
	case *ast.MemGrow:
		c.checkGlobalRefs(ex.Size, pos, seen)
	}
}

// ---------------------------------------------------------------------
// Pass 2b: function bodies
// ---------------------------------------------------------------------

func (c *Checker) checkBodies(file *ast.File) {
	for _, d := range file.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		c.checkFunc(fn)
	}
}

func (c *Checker) checkFunc(fn *ast.FuncDecl) {
	scope := NewScope(c.global)
	c.funcRet = fn.Ret
	c.localSeq = len(fn.Params)

	seen := make(map[string]bool, len(fn.Params))
	for i, p := range fn.Params {
		if seen[p.Name] {
			c.sink.Add(diag.NameError, fn.Pos, "duplicate parameter %q in function %q", p.Name, fn.Name)
			continue
		}
		seen[p.Name] = true
		scope.Define(&Symbol{Name: p.Name, Kind: ParamKind, Type: p.Typ, Storage: Local, Index: i})
	}

	c.checkStmts(fn.Body, scope)
}

func (c *Checker) checkStmts(stmts []ast.Stmt, scope *Scope) {
	for _, s := range stmts {
		c.checkStmt(s, scope)
	}
}

func (c *Checker) checkStmt(s ast.Stmt, scope *Scope) {
	switch st := s.(type) {
	case *ast.Print:
		t := c.checkExpr(st.Expr, scope)
		if t == types.Void {
			c.sink.Add(diag.TypeError, st.Pos, "cannot print a void value")
		}
	case *ast.ConstDecl:
		t := c.checkExpr(st.Value, scope)
		declType := st.Typ
		if declType == types.Invalid {
			declType = t
		} else if t != types.Invalid && t != declType {
			c.sink.Add(diag.TypeError, st.Pos, "const %q declared as %s but initializer has type %s", st.Name, declType, t)
		}
		sym := &Symbol{Name: st.Name, Kind: ConstKind, Type: declType, Storage: Local, Index: c.localSeq}
		c.localSeq++
		if !scope.Define(sym) {
			c.sink.Add(diag.NameError, st.Pos, "duplicate declaration of %q", st.Name)
		}
		c.locals[st] = sym
	case *ast.VarDecl:
		if st.Value != nil {
			t := c.checkExpr(st.Value, scope)
			if t != types.Invalid && t != st.Typ {
				c.sink.Add(diag.TypeError, st.Pos, "var %q declared as %s but initializer has type %s", st.Name, st.Typ, t)
			}
		}
		sym := &Symbol{Name: st.Name, Kind: VarKind, Type: st.Typ, Storage: Local, Index: c.localSeq}
		c.localSeq++
		if !scope.Define(sym) {
			c.sink.Add(diag.NameError, st.Pos, "duplicate declaration of %q", st.Name)
		}
		c.locals[st] = sym
	case *ast.Assign:
		c.checkAssign(st, scope)
	case *ast.If:
		condT := c.checkExpr(st.Cond, scope)
		if condT != types.Invalid && condT != types.Bool {
			c.sink.Add(diag.TypeError, st.Pos, "if condition must be bool, got %s", condT)
		}
		c.checkStmts(st.Then, NewScope(scope))
		if st.Else != nil {
			c.checkStmts(st.Else, NewScope(scope))
		}
	case *ast.While:
		condT := c.checkExpr(st.Cond, scope)
		if condT != types.Invalid && condT != types.Bool {
			c.sink.Add(diag.TypeError, st.Pos, "while condition must be bool, got %s", condT)
		}
		c.checkStmts(st.Body, NewScope(scope))
	case *ast.Return:
		if st.Value == nil {
			if c.funcRet != types.Void {
				c.sink.Add(diag.ReturnError, st.Pos, "missing return value: function returns %s", c.funcRet)
			}
			return
		}
		t := c.checkExpr(st.Value, scope)
		if c.funcRet == types.Void {
			c.sink.Add(diag.ReturnError, st.Pos, "unexpected return value in function returning void")
		} else if t != types.Invalid && t != c.funcRet {
			c.sink.Add(diag.ReturnError, st.Pos, "return type mismatch: function returns %s, got %s", c.funcRet, t)
		}
	case *ast.ExprStmt:
		c.checkExpr(st.X, scope)
	}
}

func (c *Checker) checkAssign(st *ast.Assign, scope *Scope) {
	switch target := st.Target.(type) {
	case *ast.Name:
		sym, ok := scope.Lookup(target.Ident)
		if !ok {
			c.sink.Add(diag.NameError, target.Pos, "undeclared identifier %q", target.Ident)
			c.checkExpr(st.Value, scope)
			return
		}
		if sym.Kind == FuncKind || sym.Kind == ImportKind {
			c.sink.Add(diag.NameError, target.Pos, "%q is a function, not a variable", target.Ident)
			return
		}
		if sym.Kind == ConstKind {
			c.sink.Add(diag.NameError, target.Pos, "cannot assign to constant %q", target.Ident)
			return
		}
		c.syms[target] = sym
		target.Typ = sym.Type
		t := c.checkExpr(st.Value, scope)
		if t != types.Invalid && t != sym.Type {
			c.sink.Add(diag.TypeError, st.Pos, "cannot assign %s to %q of type %s", t, target.Ident, sym.Type)
		}
	case *ast.MemLoad:
		addrT := c.checkExpr(target.Addr, scope)
		if addrT != types.Invalid && addrT != types.Int {
			c.sink.Add(diag.TypeError, target.Pos, "memory address must be int, got %s", addrT)
		}
		t := c.checkExpr(st.Value, scope)
		if t != types.Invalid && t != types.Int {
			c.sink.Add(diag.TypeError, st.Pos, "memory store value must be int, got %s", t)
		}
	default:
		c.sink.Add(diag.TypeError, st.Pos, "invalid assignment target")
	}
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

func (c *Checker) checkExpr(e ast.Expr, scope *Scope) types.Type {
	switch ex := e.(type) {
	case *ast.IntegerLit:
		ex.Typ = types.Int
		return types.Int
	case *ast.FloatLit:
		ex.Typ = types.Float
		return types.Float
	case *ast.BoolLit:
		ex.Typ = types.Bool
		return types.Bool
	case *ast.Name:
		sym, ok := scope.Lookup(ex.Ident)
		if !ok {
			c.sink.Add(diag.NameError, ex.Pos, "undeclared identifier %q", ex.Ident)
			ex.Typ = types.Invalid
			return types.Invalid
		}
		if sym.Kind == FuncKind || sym.Kind == ImportKind {
			c.sink.Add(diag.NameError, ex.Pos, "%q is a function, not a value", ex.Ident)
			ex.Typ = types.Invalid
			return types.Invalid
		}
		c.syms[ex] = sym
		ex.Typ = sym.Type
		return sym.Type
	case *ast.InfixOp:
		return c.checkInfix(ex, scope)
	case *ast.PrefixOp:
		return c.checkPrefix(ex, scope)
	case *ast.Call:
		return c.checkCall(ex, scope)
	case *ast.MemLoad:
		t := c.checkExpr(ex.Addr, scope)
		if t != types.Invalid && t != types.Int {
			c.sink.Add(diag.TypeError, ex.Pos, "memory address must be int, got %s", t)
		}
		return types.Int
	case *ast.MemGrow:
		t := c.checkExpr(ex.Size, scope)
		if t != types.Invalid && t != types.Int {
			c.sink.Add(diag.TypeError, ex.Pos, "memory grow size must be int, got %s", t)
		}
		return types.Int
	}
	return types.Invalid
}

var arithOps = map[string]bool{"+": true, "-": true, "*": true, "/": true}
var relOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true}
var eqOps = map[string]bool{"==": true, "!=": true}
var logicOps = map[string]bool{"&&": true, "||": true}

func (c *Checker) checkInfix(ex *ast.InfixOp, scope *Scope) types.Type {
	lt := c.checkExpr(ex.Left, scope)
	rt := c.checkExpr(ex.Right, scope)
	if lt == types.Invalid || rt == types.Invalid {
		ex.Typ = types.Invalid
		return types.Invalid
	}
	if lt != rt {
		c.sink.Add(diag.TypeError, ex.Pos, "operator %s: operand types differ (%s vs %s); no implicit conversion", ex.Op, lt, rt)
		ex.Typ = types.Invalid
		return types.Invalid
	}

	switch {
	case arithOps[ex.Op]:
		if lt == types.Int || lt == types.Float {
			ex.Typ = lt
			return lt
		}
	case relOps[ex.Op]:
		if lt == types.Int || lt == types.Float {
			ex.Typ = types.Bool
			return types.Bool
		}
	case eqOps[ex.Op]:
		if lt == types.Int || lt == types.Float || lt == types.Bool {
			ex.Typ = types.Bool
			return types.Bool
		}
	case logicOps[ex.Op]:
		if lt == types.Bool {
			ex.Typ = types.Bool
			return types.Bool
		}
	}
	c.sink.Add(diag.TypeError, ex.Pos, "operator %s is not defined for %s", ex.Op, lt)
	ex.Typ = types.Invalid
	return types.Invalid
}

func (c *Checker) checkPrefix(ex *ast.PrefixOp, scope *Scope) types.Type {
	t := c.checkExpr(ex.Operand, scope)
	if t == types.Invalid {
		ex.Typ = types.Invalid
		return types.Invalid
	}
	switch ex.Op {
	case "-", "+":
		if t == types.Int || t == types.Float {
			ex.Typ = t
			return t
		}
	case "!":
		if t == types.Bool {
			ex.Typ = types.Bool
			return types.Bool
		}
	}
	c.sink.Add(diag.TypeError, ex.Pos, "unary operator %s is not defined for %s", ex.Op, t)
	ex.Typ = types.Invalid
	return types.Invalid
}

func (c *Checker) checkCall(ex *ast.Call, scope *Scope) types.Type {
	sym, ok := scope.Lookup(ex.Func)
	if !ok || (sym.Kind != FuncKind && sym.Kind != ImportKind) {
		c.sink.Add(diag.NameError, ex.Pos, "call to undeclared function %q", ex.Func)
		ex.Typ = types.Invalid
		return types.Invalid
	}
	c.syms[ex] = sym

	argTypes := make([]types.Type, len(ex.Args))
	for i, a := range ex.Args {
		argTypes[i] = c.checkExpr(a, scope)
	}
	if len(ex.Args) != len(sym.Params) {
		c.sink.Add(diag.TypeError, ex.Pos, "function %q expects %d argument(s), got %d", ex.Func, len(sym.Params), len(ex.Args))
		ex.Typ = sym.Type
		return sym.Type
	}
	for i, want := range sym.Params {
		if argTypes[i] != types.Invalid && argTypes[i] != want {
			c.sink.Add(diag.TypeError, ex.Pos, "function %q argument %d expects %s, got %s", ex.Func, i+1, want, argTypes[i])
		}
	}
	ex.Typ = sym.Type
	return sym.Type
}
