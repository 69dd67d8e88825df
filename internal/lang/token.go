// Package lang implements the command dialect: a tokenizer turning raw
// command strings into structured statements, and an executor interpreting
// one statement against a database.
package lang

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/value"
)

type TokenKind int

const (
	TokenValue TokenKind = iota
	TokenList
	TokenKV
)

// Token is one argument of a statement: a scalar value, a bracketed list of
// tokens, or a key-value pair from the col=val / col IN (...) forms.
type Token struct {
	Kind TokenKind

	Value  value.Value // TokenValue
	Quoted bool        // value came from a quoted literal

	List []Token // TokenList

	Key string // TokenKV
	Op  string // "=" or "IN"
	Val *Token // TokenKV right-hand side
}

type Statement []Token

func wordToken(text string) Token {
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return Token{Kind: TokenValue, Value: value.Number(n)}
	}
	return Token{Kind: TokenValue, Value: value.String(text)}
}

func stringToken(text string) Token {
	return Token{Kind: TokenValue, Value: value.String(text), Quoted: true}
}

func listToken(items []Token) Token {
	return Token{Kind: TokenList, List: items}
}

// Text returns the raw text of a scalar token ("" for lists and pairs).
func (t Token) Text() string {
	if t.Kind != TokenValue {
		return ""
	}
	return t.Value.String()
}

// lexemes are the flat output of the character-level state machine; the
// parser above them handles grouping, pairs and statement splitting.

type lexClass int

const (
	lexWord lexClass = iota
	lexString
	lexComma
	lexSemi
	lexOpen
	lexClose
	lexEq
)

type lexeme struct {
	class lexClass
	text  string
}

type lexState int

const (
	lexStateIdle lexState = iota
	lexStateWord
	lexStateQuote
)

// lex scans the input one rune at a time. States: idle (between tokens),
// word (bare token) and quote (string literal). Only the first '=' after a
// token boundary splits; later ones belong to the value text.
func lex(input string) ([]lexeme, error) {
	out := []lexeme{}
	state := lexStateIdle
	var word []rune
	sawEq := false

	emitWord := func() {
		out = append(out, lexeme{lexWord, string(word)})
		word = word[:0]
	}

	for _, r := range input {
		switch state {
		case lexStateIdle:
			switch {
			case unicode.IsSpace(r):
			case r == '"':
				state = lexStateQuote
			case r == ',':
				out = append(out, lexeme{lexComma, ","})
				sawEq = false
			case r == ';':
				out = append(out, lexeme{lexSemi, ";"})
				sawEq = false
			case r == '(':
				out = append(out, lexeme{lexOpen, "("})
				sawEq = false
			case r == ')':
				out = append(out, lexeme{lexClose, ")"})
			case r == '=' && !sawEq:
				out = append(out, lexeme{lexEq, "="})
				sawEq = true
			default:
				state = lexStateWord
				word = append(word, r)
			}
		case lexStateWord:
			switch {
			case unicode.IsSpace(r):
				emitWord()
				state = lexStateIdle
				sawEq = false
			case r == ',':
				emitWord()
				out = append(out, lexeme{lexComma, ","})
				state = lexStateIdle
				sawEq = false
			case r == ';':
				emitWord()
				out = append(out, lexeme{lexSemi, ";"})
				state = lexStateIdle
				sawEq = false
			case r == '(':
				emitWord()
				out = append(out, lexeme{lexOpen, "("})
				state = lexStateIdle
				sawEq = false
			case r == ')':
				emitWord()
				out = append(out, lexeme{lexClose, ")"})
				state = lexStateIdle
			case r == '=' && !sawEq:
				emitWord()
				out = append(out, lexeme{lexEq, "="})
				state = lexStateIdle
				sawEq = true
			case r == '"' && sawEq && len(word) == 0:
				state = lexStateQuote
			default:
				word = append(word, r)
			}
		case lexStateQuote:
			if r == '"' {
				out = append(out, lexeme{lexString, string(word)})
				word = word[:0]
				state = lexStateIdle
				sawEq = false
				continue
			}
			word = append(word, r)
		}
	}

	switch state {
	case lexStateQuote:
		return nil, dberr.New(dberr.KindMalformedCommand, "unterminated string literal")
	case lexStateWord:
		emitWord()
	}
	return out, nil
}

type parser struct {
	lexs []lexeme
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.lexs) }

func (p *parser) peek() (lexeme, bool) {
	if p.done() {
		return lexeme{}, false
	}
	return p.lexs[p.pos], true
}

func (p *parser) next() lexeme {
	l := p.lexs[p.pos]
	p.pos++
	return l
}

// Tokenize splits the input into ';'-separated statements and parses each
// into its argument tokens.
func Tokenize(input string) ([]Statement, error) {
	lexs, err := lex(input)
	if err != nil {
		return nil, err
	}

	p := &parser{lexs: lexs}
	statements := []Statement{}
	for !p.done() {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if len(stmt) > 0 {
			statements = append(statements, stmt)
		}
	}
	return statements, nil
}

// parseStatement consumes lexemes up to (and including) the next top-level
// ';'. A trailing comma joins the surrounding tokens into one list argument.
func (p *parser) parseStatement() (Statement, error) {
	args := Statement{}
	var group []Token
	grouping := false

	closeGroup := func() {
		if grouping {
			args = append(args, listToken(group))
			group = nil
			grouping = false
		}
	}

	for {
		l, ok := p.peek()
		if !ok {
			closeGroup()
			return args, nil
		}
		switch l.class {
		case lexSemi:
			p.next()
			closeGroup()
			return args, nil
		case lexComma:
			p.next()
			if len(args) == 0 && !grouping {
				return nil, dberr.New(dberr.KindMalformedCommand, "unexpected , at start of statement")
			}
			if !grouping {
				// pull the previous argument into the group
				group = []Token{args[len(args)-1]}
				args = args[:len(args)-1]
				grouping = true
			}
		case lexClose:
			return nil, dberr.New(dberr.KindMalformedCommand, "unexpected ) outside value list")
		case lexEq:
			return nil, dberr.New(dberr.KindMalformedCommand, "unexpected = without a key")
		default:
			tok, err := p.parseArg()
			if err != nil {
				return nil, err
			}
			if grouping {
				group = append(group, tok)
				if l, ok := p.peek(); !ok || l.class != lexComma {
					closeGroup()
				}
			} else {
				args = append(args, tok)
			}
		}
	}
}

// parseArg parses one token, folding the three-part forms `key = value` and
// `key IN ( list )` into key-value pairs.
func (p *parser) parseArg() (Token, error) {
	l := p.next()
	switch l.class {
	case lexString:
		return stringToken(l.text), nil
	case lexOpen:
		return p.parseGroup()
	case lexWord:
		if nxt, ok := p.peek(); ok {
			if nxt.class == lexEq {
				p.next()
				val, err := p.parseKVValue(l.text)
				if err != nil {
					return Token{}, err
				}
				return Token{Kind: TokenKV, Key: l.text, Op: "=", Val: &val}, nil
			}
			if nxt.class == lexWord && strings.EqualFold(nxt.text, "in") {
				if after := p.pos + 1; after < len(p.lexs) && p.lexs[after].class == lexOpen {
					p.next() // IN
					p.next() // (
					list, err := p.parseGroup()
					if err != nil {
						return Token{}, err
					}
					return Token{Kind: TokenKV, Key: l.text, Op: "IN", Val: &list}, nil
				}
			}
		}
		return wordToken(l.text), nil
	}
	return Token{}, dberr.New(dberr.KindMalformedCommand, "unexpected %s", l.text)
}

// parseGroup parses a parenthesized value list. Items are comma-separated;
// an item of several tokens becomes a nested list.
func (p *parser) parseGroup() (Token, error) {
	items := []Token{}
	var current []Token

	closeItem := func() {
		switch len(current) {
		case 0:
		case 1:
			items = append(items, current[0])
		default:
			items = append(items, listToken(current))
		}
		current = nil
	}

	for {
		l, ok := p.peek()
		if !ok {
			return Token{}, dberr.New(dberr.KindMalformedCommand, "unbalanced ( in value list")
		}
		switch l.class {
		case lexClose:
			p.next()
			closeItem()
			return listToken(items), nil
		case lexComma:
			p.next()
			closeItem()
		case lexSemi:
			return Token{}, dberr.New(dberr.KindMalformedCommand, "unexpected ; inside value list")
		case lexEq:
			return Token{}, dberr.New(dberr.KindMalformedCommand, "unexpected = without a key")
		default:
			tok, err := p.parseArg()
			if err != nil {
				return Token{}, err
			}
			current = append(current, tok)
		}
	}
}

func (p *parser) parseKVValue(key string) (Token, error) {
	l, ok := p.peek()
	if !ok {
		return Token{}, dberr.New(dberr.KindMalformedCommand, "missing value after %s=", key)
	}
	switch l.class {
	case lexWord:
		p.next()
		return wordToken(l.text), nil
	case lexString:
		p.next()
		return stringToken(l.text), nil
	case lexOpen:
		p.next()
		return p.parseGroup()
	}
	return Token{}, dberr.New(dberr.KindMalformedCommand, "missing value after %s=", key)
}

// FirstKeyword returns the lower-cased first word of a raw command, used as
// the permission name for run requests.
func FirstKeyword(input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(fields[0], ";"))
}
