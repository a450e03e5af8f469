// Package parser turns celltone program text into a sequencer.Program.
//
// A program is a list of statements:
//
//	a = [0, _, 1, _]                  part
//	a.velocity = 90                   part property
//	<tempo> = 140                     option
//	<partorder> = [b, a]              ring order
//	{a[-1] != _, a[0] == _} => {a[-1] = _, a[0] = a[-1]}
//	{<0>[0] == <1>[0]} => {<2>[0]}    pivot-relative rule, touch modifier
//
// '#' starts a comment. Parts must be defined before a rule or property
// names them; the part order is resolved at the end.
package parser

import (
	"errors"
	"strings"

	"go-celltone/sequencer"
)

// Parse parses a whole program. It returns a *Error and no program on
// failure.
func Parse(src string) (*sequencer.Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &Error{Kind: Semantic, Msg: "Empty input"}
	}
	p := &parser{
		lex:    newLexer(src),
		parts:  make(map[string]*sequencer.Part),
		config: sequencer.DefaultConfig(),
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	for p.tok.kind != tokEOF {
		if err := p.statement(); err != nil {
			return nil, err
		}
	}
	return p.program()
}

type parser struct {
	lex *lexer
	tok token

	parts     map[string]*sequencer.Part
	declared  []*sequencer.Part
	rules     []*sequencer.Rule
	config    sequencer.Config
	orderLine int
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) unexpected() *Error {
	if p.tok.kind == tokEOF {
		return &Error{Kind: Syntax, Line: p.tok.line, EOF: true}
	}
	return syntaxErr(p.tok.line, "unexpected %s", p.tok)
}

// expect consumes a token of the given kind.
func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.tok
	if t.kind != kind {
		return t, p.unexpected()
	}
	return t, p.advance()
}

func (p *parser) accept(kind tokenKind) (bool, error) {
	if p.tok.kind != kind {
		return false, nil
	}
	return true, p.advance()
}

func (p *parser) statement() error {
	switch p.tok.kind {
	case tokID:
		name, err := p.expect(tokID)
		if err != nil {
			return err
		}
		switch p.tok.kind {
		case tokAssign:
			return p.partAssign(name)
		case tokDot:
			return p.propAssign(name)
		}
		return p.unexpected()
	case tokOption:
		return p.optAssign()
	case tokLCurly:
		return p.rule()
	}
	return p.unexpected()
}

// partAssign parses `= [note, ...]` after a part name.
func (p *parser) partAssign(name token) error {
	if _, err := p.expect(tokAssign); err != nil {
		return err
	}
	if _, ok := p.parts[name.text]; ok {
		return semanticErr(name.line, "Cannot redefine part '%s'", name.text)
	}
	open, err := p.expect(tokLSquare)
	if err != nil {
		return err
	}
	var notes []sequencer.Note
	if p.tok.kind != tokRSquare {
		for {
			n, err := p.note()
			if err != nil {
				return err
			}
			notes = append(notes, n)
			if ok, err := p.accept(tokComma); err != nil {
				return err
			} else if !ok {
				break
			}
		}
	}
	if _, err := p.expect(tokRSquare); err != nil {
		return err
	}
	part, err := sequencer.NewPart(name.text, notes)
	if errors.Is(err, sequencer.ErrEmptyPart) {
		return semanticErr(open.line, "Empty note lists are not permitted")
	}
	if err != nil {
		return semanticErr(name.line, "%v", err)
	}
	p.parts[name.text] = part
	p.declared = append(p.declared, part)
	return nil
}

func (p *parser) note() (sequencer.Note, error) {
	switch p.tok.kind {
	case tokNumber:
		n := sequencer.Note(p.tok.num)
		return n, p.advance()
	case tokPause:
		return sequencer.Pause, p.advance()
	}
	return 0, p.unexpected()
}

func (p *parser) part(name token) (*sequencer.Part, error) {
	part, ok := p.parts[name.text]
	if !ok {
		return nil, semanticErr(name.line, "Undefined part '%s'", name.text)
	}
	return part, nil
}

// propAssign parses `.prop = N` after a part name.
func (p *parser) propAssign(name token) error {
	part, err := p.part(name)
	if err != nil {
		return err
	}
	if _, err := p.expect(tokDot); err != nil {
		return err
	}
	prop, err := p.expect(tokID)
	if err != nil {
		return err
	}
	eq, err := p.expect(tokAssign)
	if err != nil {
		return err
	}
	v, err := p.expect(tokNumber)
	if err != nil {
		return err
	}
	if err := part.SetPropertyByName(prop.text, v.num); err != nil {
		return semanticErr(eq.line, "%v", err)
	}
	return nil
}

// optAssign parses `<name> = N` or `<name> = [part, ...]`.
func (p *parser) optAssign() error {
	opt, err := p.expect(tokOption)
	if err != nil {
		return err
	}
	if _, err := p.expect(tokAssign); err != nil {
		return err
	}

	if sequencer.IsPartOrderOption(opt.text) {
		if p.tok.kind != tokLSquare {
			return p.unexpected()
		}
		names, err := p.partList()
		if err != nil {
			return err
		}
		if err := p.config.SetPartOrder(names); err != nil {
			return semanticErr(opt.line, "Empty part lists are not permitted")
		}
		p.orderLine = opt.line
		return nil
	}

	o, ok := sequencer.ParseOption(opt.text)
	if !ok {
		return semanticErr(opt.line, "Unknown global option '%s'", opt.text)
	}
	v, err := p.expect(tokNumber)
	if err != nil {
		return err
	}
	if err := p.config.Set(o, v.num); err != nil {
		return semanticErr(opt.line, "%v", err)
	}
	return nil
}

func (p *parser) partList() ([]string, error) {
	if _, err := p.expect(tokLSquare); err != nil {
		return nil, err
	}
	var names []string
	if p.tok.kind != tokRSquare {
		for {
			name, err := p.expect(tokID)
			if err != nil {
				return nil, err
			}
			names = append(names, name.text)
			if ok, err := p.accept(tokComma); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
	}
	if _, err := p.expect(tokRSquare); err != nil {
		return nil, err
	}
	return names, nil
}

// rule parses `{clause, ...} => {modifier, ...}`. Either side may be empty.
func (p *parser) rule() error {
	open, err := p.expect(tokLCurly)
	if err != nil {
		return err
	}
	r := &sequencer.Rule{Line: open.line}

	if p.tok.kind != tokRCurly {
		for {
			c, err := p.clause()
			if err != nil {
				return err
			}
			r.Conditions = append(r.Conditions, c)
			if ok, err := p.accept(tokComma); err != nil {
				return err
			} else if !ok {
				break
			}
		}
	}
	if _, err := p.expect(tokRCurly); err != nil {
		return err
	}
	if _, err := p.expect(tokBecomes); err != nil {
		return err
	}
	if _, err := p.expect(tokLCurly); err != nil {
		return err
	}
	if p.tok.kind != tokRCurly {
		for {
			m, err := p.modifier()
			if err != nil {
				return err
			}
			r.Modifiers = append(r.Modifiers, m)
			if ok, err := p.accept(tokComma); err != nil {
				return err
			} else if !ok {
				break
			}
		}
	}
	if _, err := p.expect(tokRCurly); err != nil {
		return err
	}
	p.rules = append(p.rules, r)
	return nil
}

func (p *parser) clause() (sequencer.Condition, error) {
	subject, err := p.ref()
	if err != nil {
		return sequencer.Condition{}, err
	}
	cmp, err := p.expect(tokCmp)
	if err != nil {
		return sequencer.Condition{}, err
	}
	object, err := p.operand()
	if err != nil {
		return sequencer.Condition{}, err
	}
	return sequencer.Condition{Subject: subject, Cmp: cmp.cmp, Object: object}, nil
}

func (p *parser) modifier() (sequencer.Modifier, error) {
	subject, err := p.ref()
	if err != nil {
		return sequencer.Modifier{}, err
	}
	ok, err := p.accept(tokAssign)
	if err != nil {
		return sequencer.Modifier{}, err
	}
	if !ok {
		return sequencer.Touch(subject), nil
	}
	object, err := p.operand()
	if err != nil {
		return sequencer.Modifier{}, err
	}
	return sequencer.Modifier{Subject: subject, Object: object}, nil
}

// ref parses `part[n]` or `<d>[n]`.
func (p *parser) ref() (sequencer.Address, error) {
	head := p.tok
	switch head.kind {
	case tokID, tokPartIndex:
	default:
		return sequencer.Address{}, p.unexpected()
	}
	if err := p.advance(); err != nil {
		return sequencer.Address{}, err
	}
	if _, err := p.expect(tokLSquare); err != nil {
		return sequencer.Address{}, err
	}
	offset, err := p.expect(tokNumber)
	if err != nil {
		return sequencer.Address{}, err
	}
	if _, err := p.expect(tokRSquare); err != nil {
		return sequencer.Address{}, err
	}

	if head.kind == tokPartIndex {
		return sequencer.Relative(head.num, offset.num), nil
	}
	part, err := p.part(head)
	if err != nil {
		return sequencer.Address{}, err
	}
	return sequencer.Absolute(part, offset.num), nil
}

func (p *parser) operand() (sequencer.Operand, error) {
	switch p.tok.kind {
	case tokNumber, tokPause:
		n, err := p.note()
		return sequencer.Literal(n), err
	}
	a, err := p.ref()
	if err != nil {
		return sequencer.Operand{}, err
	}
	return sequencer.Ref(a), nil
}

// program checks the whole and hands it over.
func (p *parser) program() (*sequencer.Program, error) {
	if len(p.declared) == 0 {
		return nil, &Error{Kind: Semantic, Msg: "No parts to play"}
	}
	order := p.declared
	if names := p.config.PartOrder(); names != nil {
		if len(names) != len(p.declared) {
			return nil, semanticErr(p.orderLine, "Part order must name every part exactly once")
		}
		order = make([]*sequencer.Part, len(names))
		seen := make(map[string]bool, len(names))
		for i, name := range names {
			if seen[name] {
				return nil, semanticErr(p.orderLine, "Part order must name every part exactly once")
			}
			seen[name] = true
			part, ok := p.parts[name]
			if !ok {
				return nil, semanticErr(p.orderLine, "Undefined part '%s'", name)
			}
			order[i] = part
		}
	}
	return &sequencer.Program{
		Parts:  p.parts,
		Order:  order,
		Rules:  p.rules,
		Config: p.config,
	}, nil
}
