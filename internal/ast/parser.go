package ast

import (
	"fmt"
	"strconv"
	"strings"

	"filament/internal/lexer"
	"filament/internal/source"
	"filament/internal/token"
)

// SyntaxError is the first problem found in a snippet.
type SyntaxError struct {
	Span source.Span
	Msg  string
}

func (e *SyntaxError) Error() string { return e.Msg }

// parser is a recursive descent parser over one snippet. The first error
// sticks: later calls become no-ops and return zero values.
type parser struct {
	lx   *lexer.Lexer
	tok  token.Token
	prev token.Token
	err  *SyntaxError
}

func (p *parser) Report(sp source.Span, msg string) { p.fail(sp, msg) }

func newParser(c lexer.Cursor) *parser {
	p := &parser{}
	p.lx = lexer.NewAt(c, lexer.Options{Reporter: p})
	p.tok = p.lx.Next()
	return p
}

// scratch wraps text that is not part of a loaded file. Spans into it are
// not valid.
func scratch(text string) lexer.Cursor {
	f := &source.File{ID: source.NoFile, Path: "<input>", Content: []byte(text)}
	return lexer.NewCursor(f)
}

func (p *parser) fail(sp source.Span, msg string) {
	if p.err == nil {
		p.err = &SyntaxError{Span: sp, Msg: msg}
	}
}

func (p *parser) failf(format string, args ...any) {
	p.fail(p.tok.Span, fmt.Sprintf(format, args...))
}

func (p *parser) bump() token.Token {
	p.prev = p.tok
	if p.err == nil {
		p.tok = p.lx.Next()
	}
	return p.prev
}

func (p *parser) at(k token.Kind) bool { return p.err == nil && p.tok.Kind == k }

func (p *parser) eat(k token.Kind) bool {
	if p.at(k) {
		p.bump()
		return true
	}
	return false
}

func (p *parser) expect(k token.Kind) token.Token {
	if p.at(k) {
		return p.bump()
	}
	if p.tok.Kind == token.EOF {
		p.failf("expected `%s', found end of input", k)
	} else {
		p.failf("expected `%s', found `%s'", k, p.tok.Text)
	}
	return token.Token{Kind: k, Span: p.tok.Span}
}

func (p *parser) spanFrom(start source.Span) source.Span {
	return start.Cover(p.prev.Span)
}

// finish requires the whole snippet to be consumed.
func (p *parser) finish() error {
	if p.err == nil && p.tok.Kind != token.EOF {
		p.failf("unexpected `%s'", p.tok.Text)
	}
	if p.err != nil {
		return p.err
	}
	return nil
}

func (p *parser) ident() Ident {
	t := p.expect(token.Ident)
	return Ident{Name: t.Text, Span: t.Span}
}

func (p *parser) number() uint64 {
	t := p.expect(token.IntLit)
	if p.err != nil {
		return 0
	}
	text := strings.ReplaceAll(t.Text, "_", "")
	base := 10
	if len(text) > 1 && text[0] == '0' && !isDigit(text[1]) {
		base = 0
	}
	v, err := strconv.ParseUint(text, base, 64)
	if err != nil {
		p.fail(t.Span, fmt.Sprintf("invalid number %s: %v", t.Text, err))
	}
	return v
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ---- expressions ----

func (p *parser) expr() *Expr {
	l := p.term()
	for p.at(token.Plus) || p.at(token.Minus) {
		op := OpAdd
		if p.bump().Kind == token.Minus {
			op = OpSub
		}
		r := p.term()
		l = &Expr{Kind: ExprBin, Op: op, Args: []*Expr{l, r}, Span: l.Span.Cover(r.Span)}
	}
	return l
}

func (p *parser) term() *Expr {
	l := p.primary()
	for p.at(token.Star) || p.at(token.Slash) || p.at(token.Percent) {
		var op Op
		switch p.bump().Kind {
		case token.Star:
			op = OpMul
		case token.Slash:
			op = OpDiv
		default:
			op = OpMod
		}
		r := p.primary()
		l = &Expr{Kind: ExprBin, Op: op, Args: []*Expr{l, r}, Span: l.Span.Cover(r.Span)}
	}
	return l
}

func (p *parser) primary() *Expr {
	start := p.tok.Span
	switch {
	case p.at(token.IntLit):
		return &Expr{Kind: ExprConcrete, Value: p.number(), Span: start}
	case p.at(token.LParen):
		p.bump()
		e := p.expr()
		p.expect(token.RParen)
		return e
	case p.at(token.KwIf):
		p.bump()
		cond := p.constraint()
		p.expect(token.LBrace)
		then := p.expr()
		p.expect(token.RBrace)
		p.expect(token.KwElse)
		p.expect(token.LBrace)
		alt := p.expr()
		p.expect(token.RBrace)
		return &Expr{Kind: ExprIf, Cond: &cond, Args: []*Expr{then, alt}, Span: p.spanFrom(start)}
	case p.at(token.Ident):
		name := p.ident()
		if p.eat(token.ColonColon) {
			param := p.ident()
			return &Expr{Kind: ExprParamAccess, Inst: name, Name: param, Span: p.spanFrom(start)}
		}
		if p.eat(token.LParen) {
			var args []*Expr
			for !p.at(token.RParen) && p.err == nil {
				args = append(args, p.expr())
				if !p.eat(token.Comma) {
					break
				}
			}
			p.expect(token.RParen)
			return &Expr{Kind: ExprApp, Name: name, Args: args, Span: p.spanFrom(start)}
		}
		return &Expr{Kind: ExprParam, Name: name, Span: start}
	}
	if p.err == nil {
		p.failf("expected an expression, found `%s'", p.tok.Text)
	}
	return Num(0)
}

// cmp parses a comparison operator. swap is set for < and <=.
func (p *parser) cmp() (op Cmp, swap bool) {
	switch p.bump().Kind {
	case token.Gt:
		return CmpGt, false
	case token.GtEq:
		return CmpGte, false
	case token.EqEq:
		return CmpEq, false
	case token.Lt:
		return CmpGt, true
	case token.LtEq:
		return CmpGte, true
	}
	p.fail(p.prev.Span, fmt.Sprintf("expected a comparison, found `%s'", p.prev.Text))
	return CmpEq, false
}

func (p *parser) constraint() Constraint {
	start := p.tok.Span
	l := p.expr()
	op, swap := p.cmp()
	r := p.expr()
	if swap {
		l, r = r, l
	}
	return Constraint{Left: l, Right: r, Op: op, Span: p.spanFrom(start)}
}

func (p *parser) implication() Implication {
	start := p.tok.Span
	c := p.constraint()
	if p.eat(token.FatArrow) {
		cons := p.constraint()
		return Implication{Guard: &c, Cons: cons, Span: p.spanFrom(start)}
	}
	return Implication{Cons: c, Span: p.spanFrom(start)}
}

// ---- times ----

func (p *parser) time() Time {
	start := p.tok.Span
	p.expect(token.Tick)
	ev := p.ident()
	t := Time{Event: ev}
	if p.eat(token.Plus) {
		t.Offset = p.term()
		for p.at(token.Plus) {
			p.bump()
			r := p.term()
			t.Offset = &Expr{Kind: ExprBin, Op: OpAdd, Args: []*Expr{t.Offset, r}, Span: t.Offset.Span.Cover(r.Span)}
		}
	}
	t.Span = p.spanFrom(start)
	return t
}

func (p *parser) timeSub() TimeSub {
	start := p.tok.Span
	if p.eat(token.Pipe) {
		l := p.time()
		p.expect(token.Minus)
		r := p.time()
		p.expect(token.Pipe)
		return TimeSub{L: &l, R: &r, Span: p.spanFrom(start)}
	}
	e := p.expr()
	return TimeSub{Unit: e, Span: e.Span}
}

func (p *parser) timeConstraint() TimeConstraint {
	start := p.tok.Span
	l := p.time()
	op, swap := p.cmp()
	r := p.time()
	if swap {
		l, r = r, l
	}
	return TimeConstraint{Left: l, Right: r, Op: op, Span: p.spanFrom(start)}
}

func (p *parser) rng() Range {
	start := p.tok.Span
	p.expect(token.LBracket)
	s := p.time()
	p.expect(token.Comma)
	e := p.time()
	p.expect(token.RBracket)
	return Range{Start: s, End: e, Span: p.spanFrom(start)}
}

// ---- ports ----

// portDef parses name[len]..: [for<i, ..>] range width.
func (p *parser) portDef() PortDef {
	start := p.tok.Span
	def := PortDef{Name: p.ident()}
	for p.eat(token.LBracket) {
		def.Lens = append(def.Lens, p.expr())
		p.expect(token.RBracket)
	}
	p.expect(token.Colon)
	if p.eat(token.KwFor) {
		p.expect(token.Lt)
		for p.at(token.Ident) {
			def.Idxs = append(def.Idxs, p.ident())
			if !p.eat(token.Comma) {
				break
			}
		}
		p.expect(token.Gt)
	}
	def.Live = p.rng()
	def.Width = p.expr()
	def.Span = p.spanFrom(start)
	if len(def.Lens) == 0 {
		def.Lens = []*Expr{Num(1)}
	}
	if len(def.Idxs) > len(def.Lens) {
		p.fail(def.Span, fmt.Sprintf("%d dimensions specified but %d parameters provided", len(def.Lens), len(def.Idxs)))
	}
	for i := len(def.Idxs); i < len(def.Lens); i++ {
		def.Idxs = append(def.Idxs, Ident{Name: fmt.Sprintf("_%d", i), Span: source.NoSpan})
	}
	return def
}

func (p *parser) port() Port {
	start := p.tok.Span
	var port Port
	name := p.ident()
	if p.eat(token.Dot) {
		port.Inv = name
		port.Name = p.ident()
	} else {
		port.Name = name
	}
	for p.at(token.LBrace) {
		as := p.tok.Span
		p.bump()
		s := p.expr()
		var e *Expr
		if p.eat(token.DotDot) {
			e = p.expr()
		} else {
			e = &Expr{Kind: ExprBin, Op: OpAdd, Args: []*Expr{s, Num(1)}, Span: s.Span}
		}
		p.expect(token.RBrace)
		port.Access = append(port.Access, Access{Start: s, End: e, Span: p.spanFrom(as)})
	}
	port.Span = p.spanFrom(start)
	return port
}

// ---- commands ----

func (p *parser) commands(end token.Kind) []Command {
	var cmds []Command
	for !p.at(end) && p.err == nil {
		if p.at(token.EOF) {
			p.failf("expected `%s', found end of input", end)
			break
		}
		cmds = append(cmds, p.command()...)
	}
	return cmds
}

func (p *parser) command() []Command {
	start := p.tok.Span
	switch {
	case p.eat(token.KwLet):
		name := p.ident()
		p.expect(token.Assign)
		var e *Expr
		if !p.eat(token.Question) {
			e = p.expr()
		}
		p.expect(token.Semicolon)
		return []Command{&ParamLet{Name: name, Expr: e}}
	case p.eat(token.KwExists):
		name := p.ident()
		p.expect(token.Assign)
		e := p.expr()
		p.expect(token.Semicolon)
		return []Command{&Exists{Name: name, Expr: e}}
	case p.at(token.KwAssert) || p.at(token.KwAssume):
		checked := p.bump().Kind == token.KwAssert
		cons := p.implication()
		p.expect(token.Semicolon)
		return []Command{&Fact{Checked: checked, Cons: cons, Span: p.spanFrom(start)}}
	case p.eat(token.KwFor):
		idx := p.ident()
		p.expect(token.KwIn)
		s := p.expr()
		p.expect(token.DotDot)
		e := p.expr()
		p.expect(token.LBrace)
		body := p.commands(token.RBrace)
		p.expect(token.RBrace)
		return []Command{&ForLoop{Index: idx, Start: s, End: e, Body: body}}
	case p.at(token.KwIf):
		return []Command{p.ifCmd()}
	case p.eat(token.KwBundle):
		def := p.portDef()
		p.expect(token.Semicolon)
		return []Command{&Bundle{Def: def}}
	case p.at(token.Ident):
		return p.assignment()
	}
	p.failf("expected a command, found `%s'", p.tok.Text)
	return nil
}

func (p *parser) ifCmd() *If {
	p.expect(token.KwIf)
	cond := p.constraint()
	p.expect(token.LBrace)
	then := p.commands(token.RBrace)
	p.expect(token.RBrace)
	var alt []Command
	if p.eat(token.KwElse) {
		if p.at(token.KwIf) {
			alt = []Command{p.ifCmd()}
		} else {
			p.expect(token.LBrace)
			alt = p.commands(token.RBrace)
			p.expect(token.RBrace)
		}
	}
	return &If{Cond: cond, Then: then, Alt: alt}
}

// assignment parses the commands that start with a name: instances,
// invocations and connections.
func (p *parser) assignment() []Command {
	start := p.tok.Span
	port := p.port()
	if port.Inv.Name == "" && len(port.Access) == 0 && p.eat(token.ColonAssign) {
		return p.binding(port.Name, start)
	}
	p.expect(token.Assign)
	src := p.port()
	p.expect(token.Semicolon)
	return []Command{&Connect{Dst: port, Src: src, Span: p.spanFrom(start)}}
}

func (p *parser) binding(name Ident, start source.Span) []Command {
	if !p.eat(token.KwNew) {
		inst := p.ident()
		events, ports := p.invokeArgs()
		p.expect(token.Semicolon)
		return []Command{&Invoke{Name: name, Inst: inst, Events: events, Ports: ports, Span: p.spanFrom(start)}}
	}
	inst := &Instance{Name: name, Comp: p.ident()}
	if p.eat(token.LBracket) {
		for !p.at(token.RBracket) && p.err == nil {
			inst.Args = append(inst.Args, p.expr())
			if !p.eat(token.Comma) {
				break
			}
		}
		p.expect(token.RBracket)
	}
	var inv *Invoke
	if p.at(token.Lt) {
		// name := new C[..]<..>(..) also invokes the new instance, which is
		// named after the invocation in upper case.
		iname := Ident{Name: strings.ToUpper(name.Name), Span: name.Span}
		if iname.Name == name.Name {
			p.fail(name.Span, fmt.Sprintf("generated instance name %s conflicts with the invocation name", iname.Name))
		}
		inst.Name = iname
		events, ports := p.invokeArgs()
		inv = &Invoke{Name: name, Inst: iname, Events: events, Ports: ports}
	}
	if p.eat(token.KwIn) {
		inst.Lives = append(inst.Lives, p.rng())
		for p.eat(token.Comma) {
			inst.Lives = append(inst.Lives, p.rng())
		}
	}
	p.expect(token.Semicolon)
	inst.Span = p.spanFrom(start)
	if inv == nil {
		return []Command{inst}
	}
	inv.Span = inst.Span
	return []Command{inst, inv}
}

func (p *parser) invokeArgs() ([]Time, []Port) {
	var events []Time
	var ports []Port
	p.expect(token.Lt)
	for p.at(token.Tick) {
		events = append(events, p.time())
		if !p.eat(token.Comma) {
			break
		}
	}
	p.expect(token.Gt)
	p.expect(token.LParen)
	for p.at(token.Ident) {
		ports = append(ports, p.port())
		if !p.eat(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	return events, ports
}

// ---- signature entries ----

func (p *parser) paramBind() ParamBind {
	pb := ParamBind{Name: p.ident()}
	if p.eat(token.Assign) {
		pb.Default = p.expr()
	}
	return pb
}

func (p *parser) sigLet() SigBind {
	start := p.tok.Span
	name := p.ident()
	p.expect(token.Assign)
	e := p.expr()
	return SigBind{Name: name, Expr: e, Span: p.spanFrom(start)}
}

// sigExists parses [opaque] O [where c, ...].
func (p *parser) sigExists() SigBind {
	start := p.tok.Span
	sb := SigBind{Opaque: p.eat(token.KwOpaque)}
	sb.Name = p.ident()
	if p.eat(token.KwWhere) {
		sb.Where = append(sb.Where, p.constraint())
		for p.eat(token.Comma) {
			sb.Where = append(sb.Where, p.constraint())
		}
	}
	sb.Span = p.spanFrom(start)
	return sb
}

// eventBind parses G: delay [= default].
func (p *parser) eventBind() EventBind {
	start := p.tok.Span
	eb := EventBind{Name: p.ident()}
	p.expect(token.Colon)
	eb.Delay = p.timeSub()
	if p.eat(token.Assign) {
		t := p.time()
		eb.Default = &t
	}
	eb.Span = p.spanFrom(start)
	return eb
}

func (p *parser) interfaceDef() InterfaceDef {
	name := p.ident()
	p.expect(token.Colon)
	return InterfaceDef{Name: name, Event: p.ident()}
}

// ---- entry points ----

func parseWith[T any](c lexer.Cursor, fn func(*parser) T) (T, error) {
	p := newParser(c)
	v := fn(p)
	if err := p.finish(); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func ParseExpr(s string) (*Expr, error) { return parseWith(scratch(s), (*parser).expr) }

func ParseTime(s string) (Time, error) { return parseWith(scratch(s), (*parser).time) }

func ParseRange(s string) (Range, error) { return parseWith(scratch(s), (*parser).rng) }

func ParseConstraint(s string) (Constraint, error) {
	return parseWith(scratch(s), (*parser).constraint)
}

func ParseImplication(s string) (Implication, error) {
	return parseWith(scratch(s), (*parser).implication)
}

// ParseCommands parses a component body.
func ParseCommands(s string) ([]Command, error) {
	return parseWith(scratch(s), func(p *parser) []Command { return p.commands(token.EOF) })
}
