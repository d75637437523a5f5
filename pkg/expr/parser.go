package expr

import "strconv"

// Expression AST. Nodes keep the source position of their leading token so
// evaluation errors point back into the rule text.

type node interface {
	pos() int
}

type literalNode struct {
	at  int
	val Value
}

type identNode struct {
	at   int
	name string
}

type unaryNode struct {
	at      int
	op      tokenKind
	operand node
}

type binaryNode struct {
	at    int
	op    tokenKind
	left  node
	right node
}

type memberNode struct {
	at     int
	target node
	field  string
}

type indexNode struct {
	at     int
	target node
	index  node
}

// callNode covers both bare functions (target nil) and method calls.
type callNode struct {
	at     int
	target node
	name   string
	args   []node
}

// macroNode is a comprehension over a list: target.name(ident, body).
type macroNode struct {
	at     int
	target node
	name   string
	ident  string
	body   node
}

type listNode struct {
	at    int
	elems []node
}

type mapNode struct {
	at      int
	keys    []string
	entries []node
}

func (n *literalNode) pos() int { return n.at }
func (n *identNode) pos() int   { return n.at }
func (n *unaryNode) pos() int   { return n.at }
func (n *binaryNode) pos() int  { return n.at }
func (n *memberNode) pos() int  { return n.at }
func (n *indexNode) pos() int   { return n.at }
func (n *callNode) pos() int    { return n.at }
func (n *macroNode) pos() int   { return n.at }
func (n *listNode) pos() int    { return n.at }
func (n *mapNode) pos() int     { return n.at }

// macroNames are the comprehensions that bind a loop variable. Their first
// argument is an identifier, not an evaluated expression.
var macroNames = map[string]bool{
	"exists": true,
	"all":    true,
	"filter": true,
	"map":    true,
}

// maxNestingDepth bounds parser recursion so pathological inputs fail with
// a ParseError instead of exhausting the stack.
const maxNestingDepth = 200

type parser struct {
	toks  []token
	i     int
	depth int
}

func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.cur(); t.kind != tokenEOF {
		return nil, parseErrf(t.pos, "unexpected %s after expression", t.kind)
	}
	return root, nil
}

func (p *parser) cur() token {
	return p.toks[p.i]
}

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokenEOF {
		p.i++
	}
	return t
}

func (p *parser) expect(k tokenKind) (token, error) {
	t := p.cur()
	if t.kind != k {
		return token{}, parseErrf(t.pos, "expected %s, got %s", k, t.kind)
	}
	return p.advance(), nil
}

func (p *parser) enter(at int) error {
	p.depth++
	if p.depth > maxNestingDepth {
		return parseErrf(at, "expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokenOr {
		op := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: op.pos, op: tokenOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseRel()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokenAnd {
		op := p.advance()
		right, err := p.parseRel()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: op.pos, op: tokenAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseRel() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	switch k := p.cur().kind; k {
	case tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte:
		op := p.advance()
		right, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		// Comparisons do not chain: a < b < c is a syntax error.
		if t := p.cur(); t.kind == tokenEq || t.kind == tokenNeq || t.kind == tokenLt ||
			t.kind == tokenLte || t.kind == tokenGt || t.kind == tokenGte {
			return nil, parseErrf(t.pos, "comparisons cannot be chained")
		}
		return &binaryNode{at: op.pos, op: k, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		k := p.cur().kind
		if k != tokenPlus && k != tokenMinus {
			return left, nil
		}
		op := p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: op.pos, op: k, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		k := p.cur().kind
		if k != tokenStar && k != tokenSlash && k != tokenPercent {
			return left, nil
		}
		op := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: op.pos, op: k, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	t := p.cur()
	if t.kind == tokenNot || t.kind == tokenMinus {
		if err := p.enter(t.pos); err != nil {
			return nil, err
		}
		defer p.leave()
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{at: t.pos, op: t.kind, operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().kind {
		case tokenDot:
			dot := p.advance()
			name, err := p.expect(tokenIdent)
			if err != nil {
				return nil, err
			}
			if p.cur().kind == tokenLParen {
				n, err = p.parseCall(n, name)
				if err != nil {
					return nil, err
				}
			} else {
				n = &memberNode{at: dot.pos, target: n, field: name.text}
			}
		case tokenLBracket:
			br := p.advance()
			idx, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokenRBracket); err != nil {
				return nil, err
			}
			n = &indexNode{at: br.pos, target: n, index: idx}
		default:
			return n, nil
		}
	}
}

// parseCall handles target.name(...). Macro names bind a loop variable;
// everything else is an ordinary method with evaluated arguments.
func (p *parser) parseCall(target node, name token) (node, error) {
	if err := p.enter(name.pos); err != nil {
		return nil, err
	}
	defer p.leave()
	if _, err := p.expect(tokenLParen); err != nil {
		return nil, err
	}
	if macroNames[name.text] {
		v, err := p.expect(tokenIdent)
		if err != nil {
			return nil, parseErrf(name.pos, "%s expects (variable, expression)", name.text)
		}
		if _, err := p.expect(tokenComma); err != nil {
			return nil, parseErrf(name.pos, "%s expects (variable, expression)", name.text)
		}
		body, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return &macroNode{at: name.pos, target: target, name: name.text, ident: v.text, body: body}, nil
	}
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	return &callNode{at: name.pos, target: target, name: name.text, args: args}, nil
}

// parseArgs consumes expressions up to the closing paren. The opening paren
// has already been consumed.
func (p *parser) parseArgs() ([]node, error) {
	var args []node
	if p.cur().kind == tokenRParen {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch t := p.cur(); t.kind {
		case tokenComma:
			p.advance()
		case tokenRParen:
			p.advance()
			return args, nil
		default:
			return nil, parseErrf(t.pos, "expected ',' or ')', got %s", t.kind)
		}
	}
}

func (p *parser) parsePrimary() (node, error) {
	t := p.cur()
	if err := p.enter(t.pos); err != nil {
		return nil, err
	}
	defer p.leave()
	switch t.kind {
	case tokenTrue:
		p.advance()
		return &literalNode{at: t.pos, val: BoolVal(true)}, nil
	case tokenFalse:
		p.advance()
		return &literalNode{at: t.pos, val: BoolVal(false)}, nil
	case tokenNull:
		p.advance()
		return &literalNode{at: t.pos, val: NullVal()}, nil
	case tokenNumber:
		p.advance()
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, parseErrf(t.pos, "invalid number %q", t.text)
		}
		return &literalNode{at: t.pos, val: NumberVal(n)}, nil
	case tokenString:
		p.advance()
		return &literalNode{at: t.pos, val: StringVal(t.text)}, nil
	case tokenIdent:
		p.advance()
		if p.cur().kind == tokenLParen {
			return p.parseCall(nil, t)
		}
		return &identNode{at: t.pos, name: t.text}, nil
	case tokenLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokenLBracket:
		return p.parseListLiteral()
	case tokenLBrace:
		return p.parseMapLiteral()
	case tokenEOF:
		return nil, parseErrf(t.pos, "unexpected end of expression")
	default:
		return nil, parseErrf(t.pos, "unexpected %s", t.kind)
	}
}

func (p *parser) parseListLiteral() (node, error) {
	open := p.advance()
	n := &listNode{at: open.pos}
	if p.cur().kind == tokenRBracket {
		p.advance()
		return n, nil
	}
	for {
		elem, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		n.elems = append(n.elems, elem)
		switch t := p.cur(); t.kind {
		case tokenComma:
			p.advance()
		case tokenRBracket:
			p.advance()
			return n, nil
		default:
			return nil, parseErrf(t.pos, "expected ',' or ']', got %s", t.kind)
		}
	}
}

// parseMapLiteral accepts string or bare identifier keys.
func (p *parser) parseMapLiteral() (node, error) {
	open := p.advance()
	n := &mapNode{at: open.pos}
	if p.cur().kind == tokenRBrace {
		p.advance()
		return n, nil
	}
	for {
		key := p.cur()
		if key.kind != tokenString && key.kind != tokenIdent {
			return nil, parseErrf(key.pos, "expected map key, got %s", key.kind)
		}
		p.advance()
		if _, err := p.expect(tokenColon); err != nil {
			return nil, err
		}
		entry, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		n.keys = append(n.keys, key.text)
		n.entries = append(n.entries, entry)
		switch t := p.cur(); t.kind {
		case tokenComma:
			p.advance()
		case tokenRBrace:
			p.advance()
			return n, nil
		default:
			return nil, parseErrf(t.pos, "expected ',' or '}', got %s", t.kind)
		}
	}
}
