// Package parser is a hand-written recursive-descent parser building the
// pkg/hql/ast tree from pkg/hql/lexer tokens, per spec.md §4.6's grammar.
// No parser-combinator or PEG library in the retrieval pack is bound to a
// KV/graph/query domain (see DESIGN.md's stdlib-justified-parts entry),
// so a descent parser is the idiomatic Go choice here — the same shape
// go/parser itself uses.
package parser

import (
	"fmt"
	"strconv"

	"github.com/helixdb/helix-core/pkg/hql/ast"
	"github.com/helixdb/helix-core/pkg/hql/lexer"
)

// ParseError reports a syntax error at a source span.
type ParseError struct {
	Span    ast.Span
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Span.Start, e.Span.End, e.Message)
}

type parser struct {
	toks []lexer.Token
	pos  int
}

// Parse scans and parses src into its Query declarations.
func Parse(src string) ([]*ast.Query, error) {
	l := lexer.New(src)
	var toks []lexer.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == lexer.EOF {
			break
		}
	}
	p := &parser{toks: toks}

	var queries []*ast.Query
	for !p.atEOF() {
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func (p *parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool       { return p.cur().Kind == lexer.EOF }
func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) span(start int) ast.Span { return ast.Span{Start: start, End: p.toks[p.pos].Start} }

func (p *parser) errf(format string, args ...interface{}) error {
	return &ParseError{Span: ast.Span{Start: p.cur().Start, End: p.cur().End}, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(text string) (lexer.Token, error) {
	if p.cur().Kind != lexer.Punct || p.cur().Text != text {
		return lexer.Token{}, p.errf("expected %q, got %q", text, p.cur().Text)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(text string) (lexer.Token, error) {
	if p.cur().Kind != lexer.Keyword || p.cur().Text != text {
		return lexer.Token{}, p.errf("expected keyword %q, got %q", text, p.cur().Text)
	}
	return p.advance(), nil
}

func (p *parser) expectIdent() (lexer.Token, error) {
	if p.cur().Kind != lexer.Ident {
		return lexer.Token{}, p.errf("expected identifier, got %q", p.cur().Text)
	}
	return p.advance(), nil
}

func (p *parser) atPunct(text string) bool {
	return p.cur().Kind == lexer.Punct && p.cur().Text == text
}

func (p *parser) atKeyword(text string) bool {
	return p.cur().Kind == lexer.Keyword && p.cur().Text == text
}

func (p *parser) tryPunct(text string) bool {
	if p.atPunct(text) {
		p.advance()
		return true
	}
	return false
}

// parseQuery parses `QUERY name(params) => stmt* RETURN exprs`.
func (p *parser) parseQuery() (*ast.Query, error) {
	start := p.cur().Start
	if _, err := p.expectKeyword("QUERY"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []ast.ParamDecl
	for !p.atPunct(")") {
		pstart := p.cur().Start
		pname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		ptype, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.ParamDecl{Span: p.span(pstart), Name: pname.Text, Type: ptype.Text})
		if !p.tryPunct(",") {
			break
		}
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("=>"); err != nil {
		return nil, err
	}

	var stmts []ast.Stmt
	for !p.atKeyword("RETURN") {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.tryPunct(";")
	}
	if _, err := p.expectKeyword("RETURN"); err != nil {
		return nil, err
	}
	ret, err := p.parseReturnList()
	if err != nil {
		return nil, err
	}

	return &ast.Query{Span: p.span(start), Name: name.Text, Params: params, Stmts: stmts, Return: ret}, nil
}

func (p *parser) parseStmt() (ast.Stmt, error) {
	start := p.cur().Start
	if p.atKeyword("DROP") {
		p.advance()
		pipe, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		return ast.Drop{Span: p.span(start), Pipeline: pipe}, nil
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("="); err != nil {
		return nil, err
	}
	pipe, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	return ast.Assign{Span: p.span(start), Name: name.Text, Pipeline: pipe}, nil
}

func (p *parser) parseReturnList() ([]ast.NamedExpr, error) {
	var out []ast.NamedExpr
	for {
		start := p.cur().Start
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.tryPunct(":") {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			out = append(out, ast.NamedExpr{Span: p.span(start), Name: name.Text, Expr: e})
		} else {
			out = append(out, ast.NamedExpr{
				Span: p.span(start), Name: name.Text,
				Expr: ast.VarRef{Span: p.span(start), Name: name.Text},
			})
		}
		if !p.tryPunct(",") {
			break
		}
	}
	return out, nil
}

// parsePipeline parses a Source followed by `::Step` stages.
func (p *parser) parsePipeline() (*ast.Pipeline, error) {
	start := p.cur().Start
	src, err := p.parseSource()
	if err != nil {
		return nil, err
	}
	var steps []ast.Step
	for p.tryPunct("::") {
		step, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return &ast.Pipeline{Span: p.span(start), Source: src, Steps: steps}, nil
}

// parseLabel parses `<Label>`.
func (p *parser) parseLabel() (string, error) {
	if _, err := p.expectPunct("<"); err != nil {
		return "", err
	}
	label, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	if _, err := p.expectPunct(">"); err != nil {
		return "", err
	}
	return label.Text, nil
}

func (p *parser) parseSource() (ast.Source, error) {
	start := p.cur().Start
	switch {
	case p.cur().Kind == lexer.Ident && p.cur().Text == "N":
		p.advance()
		label, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		id, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.NodeByID{Span: p.span(start), Label: label, ID: id}, nil

	case p.cur().Kind == lexer.Ident && p.cur().Text == "V":
		p.advance()
		label, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		id, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.VectorByID{Span: p.span(start), Label: label, ID: id}, nil

	case p.cur().Kind == lexer.Ident && p.cur().Text == "E":
		p.advance()
		label, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		if p.atPunct("(") {
			p.advance()
			id, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return ast.EdgeByID{Span: p.span(start), Label: label, ID: id}, nil
		}
		return ast.AllOf{Span: p.span(start), Label: label}, nil

	case p.cur().Kind == lexer.Ident && p.cur().Text == "SearchV":
		p.advance()
		label, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		vec, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(","); err != nil {
			return nil, err
		}
		k, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.SearchV{Span: p.span(start), Label: label, Vec: vec, K: k}, nil

	case p.cur().Kind == lexer.Ident && p.cur().Text == "SearchHybrid":
		p.advance()
		label, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		vec, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(","); err != nil {
			return nil, err
		}
		text, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(","); err != nil {
			return nil, err
		}
		k, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.SearchHybrid{Span: p.span(start), Label: label, Vec: vec, Text: text, K: k}, nil

	case p.cur().Kind == lexer.Ident && p.cur().Text == "AddN":
		p.advance()
		label, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		fields, err := p.parseFieldLiteral()
		if err != nil {
			return nil, err
		}
		return ast.AddN{Span: p.span(start), Label: label, Fields: fields}, nil

	case p.cur().Kind == lexer.Ident && p.cur().Text == "AddE":
		p.advance()
		label, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		fields, err := p.parseFieldLiteral()
		if err != nil {
			return nil, err
		}
		return ast.AddE{Span: p.span(start), Label: label, Fields: fields}, nil

	case p.cur().Kind == lexer.Ident:
		name, _ := p.expectIdent()
		return ast.Ref{Span: p.span(start), Name: name.Text}, nil

	default:
		return nil, p.errf("expected a pipeline source, got %q", p.cur().Text)
	}
}

// parseFieldLiteral parses `({ name: expr, … })`.
func (p *parser) parseFieldLiteral() ([]ast.NamedExpr, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []ast.NamedExpr
	for !p.atPunct("}") {
		start := p.cur().Start
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.NamedExpr{Span: p.span(start), Name: name.Text, Expr: val})
		if !p.tryPunct(",") {
			break
		}
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return fields, nil
}

// parseBraceProjection parses `{ name [: expr], … }`. A block where every
// entry is a bare name becomes Pick; any `name: expr` entry makes the
// whole block AddFields (bare names fill in as self-referencing fields).
func (p *parser) parseBraceProjection(start int) (ast.Step, error) {
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var names []string
	var named []ast.NamedExpr
	hasExpr := false
	for !p.atPunct("}") {
		fstart := p.cur().Start
		fname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, fname.Text)
		if p.tryPunct(":") {
			hasExpr = true
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			named = append(named, ast.NamedExpr{Span: p.span(fstart), Name: fname.Text, Expr: e})
		} else {
			named = append(named, ast.NamedExpr{
				Span: p.span(fstart), Name: fname.Text,
				Expr: ast.PropertyAccess{Span: p.span(fstart), Field: fname.Text},
			})
		}
		if !p.tryPunct(",") {
			break
		}
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	if hasExpr {
		return ast.AddFields{Span: p.span(start), Fields: named}, nil
	}
	return ast.Pick{Span: p.span(start), Fields: names}, nil
}

func (p *parser) parseStep() (ast.Step, error) {
	start := p.cur().Start
	if p.atPunct("{") {
		return p.parseBraceProjection(start)
	}
	var name lexer.Token
	var err error
	if p.atKeyword("WHERE") {
		name = p.advance()
	} else if name, err = p.expectIdent(); err != nil {
		return nil, err
	}
	switch name.Text {
	case "Out", "In", "OutE", "InE":
		label := ""
		if p.atPunct("<") {
			label, err = p.parseLabel()
			if err != nil {
				return nil, err
			}
		}
		switch name.Text {
		case "Out":
			return ast.Out{Span: p.span(start), Label: label}, nil
		case "In":
			return ast.In{Span: p.span(start), Label: label}, nil
		case "OutE":
			return ast.OutE{Span: p.span(start), Label: label}, nil
		default:
			return ast.InE{Span: p.span(start), Label: label}, nil
		}
	case "FromV":
		return ast.FromV{Span: p.span(start)}, nil
	case "ToV":
		return ast.ToV{Span: p.span(start)}, nil
	case "WHERE":
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.Where{Span: p.span(start), Expr: e}, nil
	case "RerankRRF":
		var k ast.Expr
		if p.tryPunct("(") {
			if !p.atPunct(")") {
				k, err = p.parseExpr()
				if err != nil {
					return nil, err
				}
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		return ast.RerankRRF{Span: p.span(start), K: k}, nil
	case "RerankMMR":
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		lambda, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.RerankMMR{Span: p.span(start), Lambda: lambda}, nil
	case "RANGE":
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		lo, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(","); err != nil {
			return nil, err
		}
		hi, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.Range{Span: p.span(start), Lo: lo, Hi: hi}, nil
	case "ORDER":
		desc := false
		if p.atPunct("<") {
			p.advance()
			dir, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if dir.Text == "Desc" {
				desc = true
			}
			if _, err := p.expectPunct(">"); err != nil {
				return nil, err
			}
		}
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.Order{Span: p.span(start), Expr: e, Desc: desc}, nil
	case "COUNT":
		return ast.Count{Span: p.span(start)}, nil
	case "From":
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.From{Span: p.span(start), Expr: e}, nil
	case "To":
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.To{Span: p.span(start), Expr: e}, nil
	case "Update":
		fields, err := p.parseFieldLiteral()
		if err != nil {
			return nil, err
		}
		return ast.Update{Span: p.span(start), Fields: fields}, nil
	default:
		return nil, p.errf("unknown pipeline step %q", name.Text)
	}
}

// parseExpr parses a boolean-or expression, the lowest-precedence level.
func (p *parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		start := p.cur().Start
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Span: p.span(start), Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		start := p.cur().Start
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Span: p.span(start), Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.Punct && comparisonOps[p.cur().Text] {
		start := p.cur().Start
		op := p.advance().Text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Span: p.span(start), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.atPunct("+") || p.atPunct("-") {
		start := p.cur().Start
		op := p.advance().Text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Span: p.span(start), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atPunct("*") || p.atPunct("/") {
		start := p.cur().Start
		op := p.advance().Text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Span: p.span(start), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expr, error) {
	start := p.cur().Start
	if p.atPunct("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.UnaryOp{Span: p.span(start), Op: "-", Operand: operand}, nil
	}
	if p.atKeyword("NOT") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.UnaryOp{Span: p.span(start), Op: "NOT", Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles `.field` chains on a primary expression.
func (p *parser) parsePostfix() (ast.Expr, error) {
	start := p.cur().Start
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.atPunct(".") {
		p.advance()
		field, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		base = ast.PropertyAccess{Span: p.span(start), Base: base, Field: field.Text}
	}
	return base, nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	start := p.cur().Start
	tok := p.cur()

	switch tok.Kind {
	case lexer.Int:
		p.advance()
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, p.errf("bad integer literal %q", tok.Text)
		}
		return ast.Literal{Span: p.span(start), Value: v}, nil
	case lexer.Float:
		p.advance()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, p.errf("bad float literal %q", tok.Text)
		}
		return ast.Literal{Span: p.span(start), Value: v}, nil
	case lexer.String:
		p.advance()
		return ast.Literal{Span: p.span(start), Value: tok.Text}, nil
	case lexer.Keyword:
		switch tok.Text {
		case "TRUE":
			p.advance()
			return ast.Literal{Span: p.span(start), Value: true}, nil
		case "FALSE":
			p.advance()
			return ast.Literal{Span: p.span(start), Value: false}, nil
		case "NULL":
			p.advance()
			return ast.Literal{Span: p.span(start), Value: nil}, nil
		}
	}

	if p.atPunct("(") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	}

	if p.atPunct("[") {
		p.advance()
		var items []interface{}
		for !p.atPunct("]") {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			lit, ok := e.(ast.Literal)
			if !ok {
				return nil, p.errf("list literal elements must be literals")
			}
			items = append(items, lit.Value)
			if !p.tryPunct(",") {
				break
			}
		}
		if _, err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		return ast.Literal{Span: p.span(start), Value: items}, nil
	}

	if tok.Kind == lexer.Ident {
		switch tok.Text {
		case "param":
			p.advance()
			if _, err := p.expectPunct("."); err != nil {
				return nil, err
			}
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return ast.ParamRef{Span: p.span(start), Name: name.Text}, nil
		case "Embed":
			p.advance()
			if _, err := p.expectPunct("("); err != nil {
				return nil, err
			}
			text, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return ast.EmbedCall{Span: p.span(start), Text: text}, nil
		case "EXISTS":
			p.advance()
			if _, err := p.expectPunct("("); err != nil {
				return nil, err
			}
			pipe, err := p.parsePipeline()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return ast.Exists{Span: p.span(start), Pipeline: pipe}, nil
		default:
			p.advance()
			return ast.VarRef{Span: p.span(start), Name: tok.Text}, nil
		}
	}

	return nil, p.errf("unexpected token %q", tok.Text)
}
