package parser

import (
	"fmt"
	"strconv"

	"go-celltone/sequencer"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokID
	tokNumber
	tokPause
	tokAssign
	tokBecomes
	tokLSquare
	tokRSquare
	tokLCurly
	tokRCurly
	tokComma
	tokDot
	tokOption    // <name>
	tokPartIndex // <n>
	tokCmp
)

var tokenNames = map[tokenKind]string{
	tokEOF:       "end of file",
	tokID:        "name",
	tokNumber:    "number",
	tokPause:     "'_'",
	tokAssign:    "'='",
	tokBecomes:   "'=>'",
	tokLSquare:   "'['",
	tokRSquare:   "']'",
	tokLCurly:    "'{'",
	tokRCurly:    "'}'",
	tokComma:     "','",
	tokDot:       "'.'",
	tokOption:    "option",
	tokPartIndex: "part index",
	tokCmp:       "comparator",
}

func (k tokenKind) String() string {
	return tokenNames[k]
}

type token struct {
	kind tokenKind
	text string
	num  int
	cmp  sequencer.Comparator
	line int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("'%s'", t.text)
}

type lexer struct {
	src  string
	pos  int
	line int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *lexer) peek(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

// identEnd returns the end of an identifier starting at i, or i if there is
// none.
func (l *lexer) identEnd(i int) int {
	if i >= len(l.src) || !isLetter(l.src[i]) {
		return i
	}
	i++
	for i < len(l.src) && (isLetter(l.src[i]) || isDigit(l.src[i]) || l.src[i] == '_') {
		i++
	}
	return i
}

// numberEnd returns the end of an optionally signed integer starting at i,
// or i if there is none.
func (l *lexer) numberEnd(i int) int {
	j := i
	if j < len(l.src) && (l.src[j] == '-' || l.src[j] == '+') {
		j++
	}
	k := j
	for k < len(l.src) && isDigit(l.src[k]) {
		k++
	}
	if k == j {
		return i
	}
	return k
}

func (l *lexer) number(text string) (int, error) {
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, semanticErr(l.line, "number %s out of range", text)
	}
	return int(n), nil
}

func (l *lexer) emit(kind tokenKind, end int) token {
	t := token{kind: kind, text: l.src[l.pos:end], line: l.line}
	l.pos = end
	return t
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return l.scan()
		}
	}
	return token{kind: tokEOF, line: l.line}, nil
}

func (l *lexer) scan() (token, error) {
	c := l.src[l.pos]

	if end := l.identEnd(l.pos); end > l.pos {
		return l.emit(tokID, end), nil
	}
	if end := l.numberEnd(l.pos); end > l.pos {
		t := l.emit(tokNumber, end)
		n, err := l.number(t.text)
		t.num = n
		return t, err
	}

	switch c {
	case '_':
		return l.emit(tokPause, l.pos+1), nil
	case '[':
		return l.emit(tokLSquare, l.pos+1), nil
	case ']':
		return l.emit(tokRSquare, l.pos+1), nil
	case '{':
		return l.emit(tokLCurly, l.pos+1), nil
	case '}':
		return l.emit(tokRCurly, l.pos+1), nil
	case ',':
		return l.emit(tokComma, l.pos+1), nil
	case '.':
		return l.emit(tokDot, l.pos+1), nil
	case '=':
		switch l.peek(1) {
		case '>':
			return l.emit(tokBecomes, l.pos+2), nil
		case '=':
			return l.comparator(2)
		}
		return l.emit(tokAssign, l.pos+1), nil
	case '!':
		if l.peek(1) == '=' {
			return l.comparator(2)
		}
	case '>':
		if l.peek(1) == '=' {
			return l.comparator(2)
		}
		return l.comparator(1)
	case '<':
		if end := l.identEnd(l.pos + 1); end > l.pos+1 && l.peek(end-l.pos) == '>' {
			t := l.emit(tokOption, end+1)
			t.text = t.text[1 : len(t.text)-1]
			return t, nil
		}
		if end := l.numberEnd(l.pos + 1); end > l.pos+1 && l.peek(end-l.pos) == '>' {
			t := l.emit(tokPartIndex, end+1)
			n, err := l.number(t.text[1 : len(t.text)-1])
			t.num = n
			return t, err
		}
		if l.peek(1) == '=' {
			return l.comparator(2)
		}
		return l.comparator(1)
	}
	return token{}, syntaxErr(l.line, "Illegal character '%c'", c)
}

func (l *lexer) comparator(width int) (token, error) {
	t := l.emit(tokCmp, l.pos+width)
	cmp, ok := sequencer.ParseComparator(t.text)
	if !ok {
		return token{}, syntaxErr(t.line, "unknown comparator '%s'", t.text)
	}
	t.cmp = cmp
	return t, nil
}
