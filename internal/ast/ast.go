// Package ast defines the closed set of Wabbit syntax tree nodes.
//
// The teaching compiler this package descends from represents its syntax
// tree with a single generic Node{Typ NodeType, Data interface{}, Children
// []*Node} struct and a big type switch (ir/nodetype.go). Per this
// project's design notes that representation is replaced with a closed
// Go sum type: Expr, Stmt and Decl are interfaces implemented by a fixed
// set of concrete node structs, so the compiler can pattern-match
// exhaustively instead of dispatching on a NodeType tag.
package ast

import (
	"wabbitc/internal/types"
)

// Pos is a 1-indexed source position.
type Pos struct {
	Line int
	Col  int
}

// Expr is implemented by every expression node.
type Expr interface {
	Position() Pos
	exprNode()
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Position() Pos
	stmtNode()
}

// Decl is implemented by every top-level declaration node.
type Decl interface {
	Position() Pos
	declNode()
}

// File is the root of a parsed Wabbit module: an ordered list of
// top-level declarations (functions, imports, and global consts/vars).
type File struct {
	Decls []Decl
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

// IntegerLit is an integer literal.
type IntegerLit struct {
	Pos   Pos
	Value int64
	Typ   types.Type // always types.Int once annotated
}

// FloatLit is a floating point literal.
type FloatLit struct {
	Pos   Pos
	Value float64
	Typ   types.Type // always types.Float once annotated
}

// BoolLit is a `true`/`false` literal.
type BoolLit struct {
	Pos   Pos
	Value bool
	Typ   types.Type // always types.Bool once annotated
}

// Name is a reference to a constant, variable, or parameter.
type Name struct {
	Pos   Pos
	Ident string
	Typ   types.Type // filled in by the checker
}

// InfixOp is a binary operator expression: `+ - * / < <= > >= == != && ||`.
type InfixOp struct {
	Pos   Pos
	Op    string
	Left  Expr
	Right Expr
	Typ   types.Type // result type, filled in by the checker
}

// PrefixOp is a unary operator expression: `+ - !`. The memory load
// `` ` `` is parsed to a MemLoad, not a PrefixOp.
type PrefixOp struct {
	Pos     Pos
	Op      string
	Operand Expr
	Typ     types.Type
}

// Call is a function call expression.
type Call struct {
	Pos  Pos
	Func string
	Args []Expr
	Typ  types.Type // the called function's declared return type
}

// MemLoad reads one int-sized cell from raw memory (`` `addr ``).
type MemLoad struct {
	Pos  Pos
	Addr Expr
}

// MemGrow grows raw memory by Size bytes and evaluates to the new size
// (`^size`).
type MemGrow struct {
	Pos  Pos
	Size Expr
}

func (*IntegerLit) exprNode() {}
func (*FloatLit) exprNode()   {}
func (*BoolLit) exprNode()    {}
func (*Name) exprNode()       {}
func (*InfixOp) exprNode()    {}
func (*PrefixOp) exprNode()   {}
func (*Call) exprNode()       {}
func (*MemLoad) exprNode()    {}
func (*MemGrow) exprNode()    {}

func (n *IntegerLit) Position() Pos { return n.Pos }
func (n *FloatLit) Position() Pos   { return n.Pos }
func (n *BoolLit) Position() Pos    { return n.Pos }
func (n *Name) Position() Pos       { return n.Pos }
func (n *InfixOp) Position() Pos    { return n.Pos }
func (n *PrefixOp) Position() Pos   { return n.Pos }
func (n *Call) Position() Pos       { return n.Pos }
func (n *MemLoad) Position() Pos    { return n.Pos }
func (n *MemGrow) Position() Pos    { return n.Pos }

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

// Print is a `print expr;` statement.
type Print struct {
	Pos  Pos
	Expr Expr
}

// Assign is `target = expr;` where Target is a *Name or a *MemLoad.
type Assign struct {
	Pos    Pos
	Target Expr
	Value  Expr
}

// ConstDecl declares an immutable binding, local or global. Typ may be
// types.Invalid if no annotation was given in the source, in which case
// the checker infers it from Value's type.
type ConstDecl struct {
	Pos   Pos
	Name  string
	Typ   types.Type
	Value Expr
}

// VarDecl declares a mutable binding, local or global. Value may be nil.
type VarDecl struct {
	Pos   Pos
	Name  string
	Typ   types.Type
	Value Expr // nil if uninitialized
}

// If is an `if cond { then } [else { else }]` statement.
type If struct {
	Pos  Pos
	Cond Expr
	Then []Stmt
	Else []Stmt // nil if there is no else clause
}

// While is a `while cond { body }` statement.
type While struct {
	Pos  Pos
	Cond Expr
	Body []Stmt
}

// Return is a `return [expr];` statement. Value is nil for a bare return.
type Return struct {
	Pos   Pos
	Value Expr
}

// ExprStmt is an expression evaluated for its side effect (currently only
// Call expressions are legal in statement position).
type ExprStmt struct {
	Pos Pos
	X   Expr
}

func (*Print) stmtNode()     {}
func (*Assign) stmtNode()    {}
func (*ConstDecl) stmtNode() {}
func (*VarDecl) stmtNode()   {}
func (*If) stmtNode()        {}
func (*While) stmtNode()     {}
func (*Return) stmtNode()    {}
func (*ExprStmt) stmtNode()  {}

func (n *Print) Position() Pos     { return n.Pos }
func (n *Assign) Position() Pos    { return n.Pos }
func (n *ConstDecl) Position() Pos { return n.Pos }
func (n *VarDecl) Position() Pos   { return n.Pos }
func (n *If) Position() Pos        { return n.Pos }
func (n *While) Position() Pos     { return n.Pos }
func (n *Return) Position() Pos    { return n.Pos }
func (n *ExprStmt) Position() Pos  { return n.Pos }

// ---------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------

// Param is one parameter of a FuncDecl or ImportFunc.
type Param struct {
	Name string
	Typ  types.Type
}

// FuncDecl declares a Wabbit function with a body.
type FuncDecl struct {
	Pos    Pos
	Name   string
	Params []Param
	Ret    types.Type
	Body   []Stmt
}

// ImportFunc declares an externally-provided function with no body.
type ImportFunc struct {
	Pos    Pos
	Name   string
	Params []Param
	Ret    types.Type
}

func (*ConstDecl) declNode()  {}
func (*VarDecl) declNode()    {}
func (*FuncDecl) declNode()   {}
func (*ImportFunc) declNode() {}

func (n *FuncDecl) Position() Pos   { return n.Pos }
func (n *ImportFunc) Position() Pos { return n.Pos }
