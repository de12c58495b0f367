// Package dsl parses the textual type-block language:
//
//	type f : o {
//	    predicates { edible(f); eaten(f); }
//	    rules      { eat :: in(f, I) -> eaten(f); }
//	    constraints { eaten1 :: eaten(f) & in(f, I) -> fail(); }
//	    inform7 {
//	        type       { kind :: "food"; definition :: "food is edible."; }
//	        predicates { edible(f) :: "The {f} is edible"; }
//	        commands   { eat :: "eat {f}" :: "eating the {f}"; }
//	    }
//	}
//
// plus scenario statements (instance apple : f; fact in(apple, I);) used to
// seed play sessions. Comments start with # or //.
package dsl

import (
	"strconv"
	"strings"
	"text/scanner"
	"unicode"

	"github.com/nathoo/ifkit/types"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokString
	tokPunct // single rune or one of "::", "->"
)

type token struct {
	kind tokKind
	text string // identifier, unquoted string, or punctuation
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return strconv.Quote(t.text)
	}
	return "'" + t.text + "'"
}

type lexer struct {
	s    scanner.Scanner
	file string
	err  *types.Pos
	msg  string
}

func newLexer(file, src string) *lexer {
	l := &lexer{file: file}
	l.s.Init(strings.NewReader(src))
	l.s.Filename = file
	l.s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanRawStrings |
		scanner.ScanComments | scanner.SkipComments
	l.s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || unicode.IsLetter(ch) ||
			(i > 0 && (unicode.IsDigit(ch) || ch == '\''))
	}
	l.s.Error = func(s *scanner.Scanner, msg string) {
		if l.err == nil {
			l.err = &types.Pos{File: file, Line: s.Position.Line}
			l.msg = msg
		}
	}
	return l
}

// next returns the next token, folding # comments and two-rune operators.
func (l *lexer) next() token {
	for {
		r := l.s.Scan()
		line := l.s.Position.Line
		switch r {
		case scanner.EOF:
			return token{kind: tokEOF, line: line}
		case scanner.Ident:
			return token{kind: tokIdent, text: l.s.TokenText(), line: line}
		case scanner.String, scanner.RawString:
			v, err := strconv.Unquote(l.s.TokenText())
			if err != nil && l.err == nil {
				l.err = &types.Pos{File: l.file, Line: line}
				l.msg = "bad string literal " + l.s.TokenText()
			}
			return token{kind: tokString, text: v, line: line}
		case '#':
			for ch := l.s.Peek(); ch != '\n' && ch != scanner.EOF; ch = l.s.Peek() {
				l.s.Next()
			}
			continue
		case ':':
			if l.s.Peek() == ':' {
				l.s.Next()
				return token{kind: tokPunct, text: "::", line: line}
			}
		case '-':
			if l.s.Peek() == '>' {
				l.s.Next()
				return token{kind: tokPunct, text: "->", line: line}
			}
		}
		return token{kind: tokPunct, text: string(r), line: line}
	}
}
