package schema

import (
	"strings"

	"github.com/Mschirtzinger/sqltree/internal/errs"
)

// TokenKind classifies a lexical token of SQLite DDL.
type TokenKind int

const (
	TokenWord   TokenKind = iota // bare identifier or keyword
	TokenIdent                   // quoted identifier, Text holds the unquoted name
	TokenString                  // 'string' literal, Text holds the raw literal
	TokenBlob                    // x'..' literal
	TokenNumber                  // numeric literal
	TokenParam                   // ?, ?N, :name, @name, $name
	TokenPunct                   // operator or punctuation
)

// Token is one lexical element. Comments and whitespace are dropped.
type Token struct {
	Kind TokenKind
	Text string
}

// IsKeyword reports whether t is a bare word matching kw case-insensitively.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == TokenWord && strings.EqualFold(t.Text, kw)
}

// IsPunct reports whether t is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Kind == TokenPunct && t.Text == p
}

// Name returns the identifier a word or quoted identifier token denotes.
func (t Token) Name() (string, bool) {
	switch t.Kind {
	case TokenWord, TokenIdent:
		return t.Text, true
	case TokenString:
		// SQLite accepts 'name' where an identifier is expected.
		return unquote(t.Text, '\''), true
	}
	return "", false
}

var multiPunct = []string{"<<", ">>", "<=", ">=", "==", "!=", "<>", "||", "->>", "->"}

// Tokenize splits SQL text into tokens.
func Tokenize(sql string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
		case c == '-' && strings.HasPrefix(sql[i:], "--"):
			j := strings.IndexByte(sql[i:], '\n')
			if j < 0 {
				i = len(sql)
			} else {
				i += j + 1
			}
		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			j := strings.Index(sql[i+2:], "*/")
			if j < 0 {
				i = len(sql)
			} else {
				i += j + 4
			}
		case c == '\'':
			end, err := scanQuoted(sql, i, '\'')
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{Kind: TokenString, Text: sql[i:end]})
			i = end
		case c == '"' || c == '`':
			end, err := scanQuoted(sql, i, c)
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{Kind: TokenIdent, Text: unquote(sql[i:end], c)})
			i = end
		case c == '[':
			j := strings.IndexByte(sql[i:], ']')
			if j < 0 {
				return nil, errs.New(errs.ErrMalformedTree, "unterminated [identifier] in %q", abbreviate(sql))
			}
			toks = append(toks, Token{Kind: TokenIdent, Text: sql[i+1 : i+j]})
			i += j + 1
		case (c == 'x' || c == 'X') && i+1 < len(sql) && sql[i+1] == '\'':
			end, err := scanQuoted(sql, i+1, '\'')
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{Kind: TokenBlob, Text: "X" + sql[i+1:end]})
			i = end
		case isDigit(c) || (c == '.' && i+1 < len(sql) && isDigit(sql[i+1])):
			j := scanNumber(sql, i)
			toks = append(toks, Token{Kind: TokenNumber, Text: sql[i:j]})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(sql) && isIdentPart(sql[j]) {
				j++
			}
			toks = append(toks, Token{Kind: TokenWord, Text: sql[i:j]})
			i = j
		case c == '?' || c == ':' || c == '@' || c == '$':
			j := i + 1
			for j < len(sql) && isIdentPart(sql[j]) {
				j++
			}
			toks = append(toks, Token{Kind: TokenParam, Text: sql[i:j]})
			i = j
		default:
			p := string(c)
			for _, m := range multiPunct {
				if strings.HasPrefix(sql[i:], m) {
					p = m
					break
				}
			}
			toks = append(toks, Token{Kind: TokenPunct, Text: p})
			i += len(p)
		}
	}
	return toks, nil
}

// scanQuoted returns the index just past the quoted run starting at i.
// A doubled quote character is an escaped quote.
func scanQuoted(sql string, i int, q byte) (int, error) {
	for j := i + 1; j < len(sql); j++ {
		if sql[j] != q {
			continue
		}
		if j+1 < len(sql) && sql[j+1] == q {
			j++
			continue
		}
		return j + 1, nil
	}
	return 0, errs.New(errs.ErrMalformedTree, "unterminated %c-quoted token in %q", q, abbreviate(sql))
}

func scanNumber(sql string, i int) int {
	j := i
	if strings.HasPrefix(strings.ToLower(sql[i:]), "0x") {
		j += 2
		for j < len(sql) && isHex(sql[j]) {
			j++
		}
		return j
	}
	for j < len(sql) && (isDigit(sql[j]) || sql[j] == '.' || sql[j] == '_') {
		j++
	}
	if j < len(sql) && (sql[j] == 'e' || sql[j] == 'E') {
		k := j + 1
		if k < len(sql) && (sql[k] == '+' || sql[k] == '-') {
			k++
		}
		if k < len(sql) && isDigit(sql[k]) {
			j = k
			for j < len(sql) && isDigit(sql[j]) {
				j++
			}
		}
	}
	return j
}

func unquote(s string, q byte) string {
	body := s[1 : len(s)-1]
	return strings.ReplaceAll(body, string([]byte{q, q}), string(q))
}

// QuoteIdent renders name as a double-quoted SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

func abbreviate(s string) string {
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
