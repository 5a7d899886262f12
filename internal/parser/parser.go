// Package parser implements a hand-written recursive-descent parser for
// Wabbit, with expressions parsed by precedence climbing (a Pratt
// parser). This replaces the teacher compiler's goyacc-generated parser
// (frontend/tree.go drives `yyParse` over a grammar file) with direct,
// explicit control flow, per this project's design notes: a target
// language implementation should use a closed sum type and pattern
// matching rather than a table-driven generated parser plus visitor
// dispatch. The overall shape — a Parser pulling tokens one at a time
// off the lexer, in lock-step, with one token of lookahead and no error
// recovery — mirrors frontend/tree.go's Parse function driving its
// lexer/parser pair.
package parser

import (
	"fmt"

	"wabbitc/internal/ast"
	"wabbitc/internal/lexer"
	"wabbitc/internal/token"
	"wabbitc/internal/types"
)

// Error is a syntax error: an unexpected token or a missing one.
type Error struct {
	Pos      ast.Pos
	Expected string
	Got      token.Token
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: expected %s, got %s", e.Pos.Line, e.Pos.Col, e.Expected, e.Got)
}

// Parser parses a single Wabbit source file into an *ast.File. There is
// no error recovery: the first syntax error aborts parsing, per spec.
type Parser struct {
	lex *lexer.Lexer
	tok token.Token
}

// New creates a Parser over src and primes its first lookahead token.
func New(src string) *Parser {
	p := &Parser{lex: lexer.New(src)}
	p.advance()
	return p
}

// Parse parses an entire source file.
func Parse(src string) (*ast.File, error) {
	return New(src).ParseFile()
}

func (p *Parser) advance() {
	p.tok = p.lex.Next()
}

func (p *Parser) pos() ast.Pos {
	return ast.Pos{Line: p.tok.Line, Col: p.tok.Col}
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return &Error{Pos: p.pos(), Expected: fmt.Sprintf(format, args...), Got: p.tok}
}

// expect consumes the current token if it has type t, returning it.
// Otherwise it returns a syntax error without consuming anything.
func (p *Parser) expect(t token.Type) (token.Token, error) {
	if p.tok.Type == token.ERROR {
		return token.Token{}, fmt.Errorf("%d:%d: %s", p.tok.Line, p.tok.Col, p.tok.Lit)
	}
	if p.tok.Type != t {
		return token.Token{}, p.errorf("%s", t)
	}
	tok := p.tok
	p.advance()
	return tok, nil
}

// ---------------------------------------------------------------------
// Top level
// ---------------------------------------------------------------------

// ParseFile parses the whole token stream as a module: an ordered list
// of top-level declarations. Per the Open Question in spec.md §9, this
// implementation requires an explicit `main` function — bare top-level
// statements are rejected by the parser, never gathered into an implicit
// entry point.
func (p *Parser) ParseFile() (*ast.File, error) {
	f := &ast.File{}
	for p.tok.Type != token.EOF {
		if p.tok.Type == token.ERROR {
			return nil, fmt.Errorf("%d:%d: %s", p.tok.Line, p.tok.Col, p.tok.Lit)
		}
		d, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		f.Decls = append(f.Decls, d)
	}
	return f, nil
}

func (p *Parser) parseDecl() (ast.Decl, error) {
	switch p.tok.Type {
	case token.FUNC:
		return p.parseFuncDecl()
	case token.IMPORT:
		return p.parseImportFunc()
	case token.CONST:
		return p.parseConstDecl()
	case token.VAR:
		return p.parseVarDecl()
	default:
		return nil, p.errorf("a declaration (func, import, const or var)")
	}
}

func (p *Parser) parseFuncDecl() (*ast.FuncDecl, error) {
	pos := p.pos()
	if _, err := p.expect(token.FUNC); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	ret := types.Void
	if p.tok.Type == token.INTTYPE || p.tok.Type == token.FLOATTYPE {
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Pos: pos, Name: name.Lit, Params: params, Ret: ret, Body: body}, nil
}

func (p *Parser) parseImportFunc() (*ast.ImportFunc, error) {
	pos := p.pos()
	if _, err := p.expect(token.IMPORT); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.FUNC); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	ret := types.Void
	if p.tok.Type == token.INTTYPE || p.tok.Type == token.FLOATTYPE {
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.ImportFunc{Pos: pos, Name: name.Lit, Params: params, Ret: ret}, nil
}

func (p *Parser) parseParams() ([]ast.Param, error) {
	var params []ast.Param
	if p.tok.Type == token.RPAREN {
		return params, nil
	}
	for {
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: name.Lit, Typ: typ})
		if p.tok.Type == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return params, nil
}

func (p *Parser) parseType() (types.Type, error) {
	switch p.tok.Type {
	case token.INTTYPE:
		p.advance()
		return types.Int, nil
	case token.FLOATTYPE:
		p.advance()
		return types.Float, nil
	default:
		return types.Invalid, p.errorf("a type (int or float)")
	}
}

func (p *Parser) parseConstDecl() (*ast.ConstDecl, error) {
	pos := p.pos()
	if _, err := p.expect(token.CONST); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	typ := types.Invalid
	if p.tok.Type == token.INTTYPE || p.tok.Type == token.FLOATTYPE {
		typ, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.ConstDecl{Pos: pos, Name: name.Lit, Typ: typ, Value: val}, nil
}

func (p *Parser) parseVarDecl() (*ast.VarDecl, error) {
	pos := p.pos()
	if _, err := p.expect(token.VAR); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	var val ast.Expr
	if p.tok.Type == token.ASSIGN {
		p.advance()
		val, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.VarDecl{Pos: pos, Name: name.Lit, Typ: typ, Value: val}, nil
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for p.tok.Type != token.RBRACE {
		if p.tok.Type == token.EOF || p.tok.Type == token.ERROR {
			return nil, p.errorf("%s", token.RBRACE)
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	p.advance()
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.tok.Type {
	case token.PRINT:
		pos := p.pos()
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return &ast.Print{Pos: pos, Expr: e}, nil
	case token.VAR:
		return p.parseVarDecl()
	case token.CONST:
		return p.parseConstDecl()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.RETURN:
		pos := p.pos()
		p.advance()
		if p.tok.Type == token.SEMI {
			p.advance()
			return &ast.Return{Pos: pos}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return &ast.Return{Pos: pos, Value: e}, nil
	case token.BACKTICK:
		pos := p.pos()
		p.advance()
		addr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.ASSIGN); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return &ast.Assign{Pos: pos, Target: &ast.MemLoad{Pos: pos, Addr: addr}, Value: val}, nil
	case token.IDENT:
		pos := p.pos()
		name := p.tok.Lit
		p.advance()
		switch p.tok.Type {
		case token.ASSIGN:
			p.advance()
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.SEMI); err != nil {
				return nil, err
			}
			return &ast.Assign{Pos: pos, Target: &ast.Name{Pos: pos, Ident: name}, Value: val}, nil
		case token.LPAREN:
			call, err := p.parseCallArgs(name, pos)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.SEMI); err != nil {
				return nil, err
			}
			return &ast.ExprStmt{Pos: pos, X: call}, nil
		default:
			return nil, p.errorf("%s or %s", token.ASSIGN, token.LPAREN)
		}
	default:
		return nil, p.errorf("a statement")
	}
}

func (p *Parser) parseIfStmt() (ast.Stmt, error) {
	pos := p.pos()
	if _, err := p.expect(token.IF); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var els []ast.Stmt
	if p.tok.Type == token.ELSE {
		p.advance()
		if p.tok.Type == token.IF {
			elseIf, err := p.parseIfStmt()
			if err != nil {
				return nil, err
			}
			els = []ast.Stmt{elseIf}
		} else {
			els, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.If{Pos: pos, Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhileStmt() (ast.Stmt, error) {
	pos := p.pos()
	if _, err := p.expect(token.WHILE); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.While{Pos: pos, Cond: cond, Body: body}, nil
}

// ---------------------------------------------------------------------
// Expressions: precedence climbing (Pratt parsing)
// ---------------------------------------------------------------------

// precedence returns the binding power of a binary operator token, per
// the table in spec.md §4.2. 0 means "not a binary operator".
func precedence(t token.Type) int {
	switch t {
	case token.OR:
		return 1
	case token.AND:
		return 2
	case token.EQ, token.NE:
		return 3
	case token.LT, token.LE, token.GT, token.GE:
		return 4
	case token.PLUS, token.MINUS:
		return 5
	case token.STAR, token.SLASH:
		return 6
	}
	return 0
}

// parseExpr parses a full expression, starting at the lowest precedence
// level (`||`).
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseBinary(1)
}

// parseBinary implements precedence climbing: it parses a unary
// expression then repeatedly folds in binary operators at least as
// tight as minPrec. All binary operators are left associative, so the
// recursive call for the right-hand side climbs to one above the
// current operator's precedence (prec+1).
func (p *Parser) parseBinary(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec := precedence(p.tok.Type)
		if prec == 0 || prec < minPrec {
			return left, nil
		}
		opTok := p.tok
		p.advance()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.InfixOp{Pos: ast.Pos{Line: opTok.Line, Col: opTok.Col}, Op: opTok.Lit, Left: left, Right: right}
	}
}

// parseUnary handles the right-associative unary operators `+ - ! `` ``.
func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.tok.Type {
	case token.PLUS, token.MINUS, token.NOT:
		opTok := p.tok
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.PrefixOp{Pos: ast.Pos{Line: opTok.Line, Col: opTok.Col}, Op: opTok.Lit, Operand: operand}, nil
	case token.BACKTICK:
		pos := p.pos()
		p.advance()
		addr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.MemLoad{Pos: pos, Addr: addr}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.tok.Type {
	case token.INT:
		tok := p.tok
		p.advance()
		v, err := parseInt(tok.Lit)
		if err != nil {
			return nil, fmt.Errorf("%d:%d: %s", tok.Line, tok.Col, err)
		}
		return &ast.IntegerLit{Pos: ast.Pos{Line: tok.Line, Col: tok.Col}, Value: v}, nil
	case token.FLOAT:
		tok := p.tok
		p.advance()
		v, err := parseFloat(tok.Lit)
		if err != nil {
			return nil, fmt.Errorf("%d:%d: %s", tok.Line, tok.Col, err)
		}
		return &ast.FloatLit{Pos: ast.Pos{Line: tok.Line, Col: tok.Col}, Value: v}, nil
	case token.TRUE:
		pos := p.pos()
		p.advance()
		return &ast.BoolLit{Pos: pos, Value: true}, nil
	case token.FALSE:
		pos := p.pos()
		p.advance()
		return &ast.BoolLit{Pos: pos, Value: false}, nil
	case token.CARET:
		pos := p.pos()
		p.advance()
		size, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.MemGrow{Pos: pos, Size: size}, nil
	case token.IDENT:
		pos := p.pos()
		name := p.tok.Lit
		p.advance()
		if p.tok.Type == token.LPAREN {
			return p.parseCallArgs(name, pos)
		}
		return &ast.Name{Pos: pos, Ident: name}, nil
	case token.LPAREN:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, p.errorf("an expression")
	}
}

func (p *Parser) parseCallArgs(name string, pos ast.Pos) (ast.Expr, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if p.tok.Type != token.RPAREN {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.tok.Type == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.Call{Pos: pos, Func: name, Args: args}, nil
}
