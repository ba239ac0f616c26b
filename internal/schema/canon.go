package schema

import (
	"strings"
	"unicode"

	"github.com/Mschirtzinger/sqltree/internal/errs"
)

// Column is one column as declared in a CREATE TABLE statement.
type Column struct {
	Name string
	Type string
}

// Table is a canonicalized CREATE TABLE statement.
type Table struct {
	Name         string
	SQL          string
	Columns      []Column
	WithoutRowid bool
	Strict       bool
}

// ColumnNames returns the declared column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// CanonicalizeTable parses a CREATE TABLE statement and renders it in the
// canonical layout:
//
//	CREATE TABLE "users" (
//	  "id" INTEGER PRIMARY KEY,
//	  "name" TEXT NOT NULL
//	)
//
// Comments are stripped, whitespace collapsed, keywords and type names
// uppercased and column names double-quoted. Column names keep their case.
// Virtual tables and generated columns are rejected with
// ErrUnsupportedSchema.
func CanonicalizeTable(sql string) (*Table, error) {
	toks, err := Tokenize(sql)
	if err != nil {
		return nil, err
	}
	toks = trimSemicolons(toks)

	p := &parser{toks: toks}
	if !p.keyword("CREATE") {
		return nil, errs.New(errs.ErrMalformedTree, "expected CREATE TABLE, got %q", abbreviate(sql))
	}
	if p.keyword("TEMP") || p.keyword("TEMPORARY") {
		return nil, errs.New(errs.ErrUnsupportedSchema, "temporary tables are not stored")
	}
	if p.keyword("VIRTUAL") {
		return nil, errs.New(errs.ErrUnsupportedSchema, "virtual tables are not supported")
	}
	if !p.keyword("TABLE") {
		return nil, errs.New(errs.ErrMalformedTree, "expected CREATE TABLE, got %q", abbreviate(sql))
	}
	if p.keyword("IF") {
		if !p.keyword("NOT") || !p.keyword("EXISTS") {
			return nil, errs.New(errs.ErrMalformedTree, "malformed IF NOT EXISTS in %q", abbreviate(sql))
		}
	}
	name, ok := p.qualifiedName()
	if !ok {
		return nil, errs.New(errs.ErrMalformedTree, "missing table name in %q", abbreviate(sql))
	}
	tbl := &Table{Name: name}
	if p.keyword("AS") {
		return nil, errs.New(errs.ErrUnsupportedSchema, "CREATE TABLE ... AS SELECT is not supported").InTable(name)
	}
	if !p.punct("(") {
		return nil, errs.New(errs.ErrMalformedTree, "expected column list").InTable(name)
	}
	body, ok := p.untilClose()
	if !ok {
		return nil, errs.New(errs.ErrMalformedTree, "unbalanced parentheses").InTable(name)
	}
	options := p.rest()

	var lines []string
	for _, item := range splitTopLevel(body, ",") {
		if len(item) == 0 {
			return nil, errs.New(errs.ErrMalformedTree, "empty column definition").InTable(name)
		}
		if item[0].Kind == TokenWord && tableConstraintStart[strings.ToUpper(item[0].Text)] {
			lines = append(lines, render(item, true))
			continue
		}
		col, line, err := canonicalColumn(item)
		if err != nil {
			return nil, errs.Annotate(err, name)
		}
		tbl.Columns = append(tbl.Columns, col)
		lines = append(lines, line)
	}
	if len(tbl.Columns) == 0 {
		return nil, errs.New(errs.ErrMalformedTree, "table has no columns").InTable(name)
	}

	for _, opt := range splitTopLevel(options, ",") {
		switch {
		case len(opt) == 2 && opt[0].IsKeyword("WITHOUT") && opt[1].IsKeyword("ROWID"):
			tbl.WithoutRowid = true
		case len(opt) == 1 && opt[0].IsKeyword("STRICT"):
			tbl.Strict = true
		default:
			return nil, errs.New(errs.ErrMalformedTree, "unknown table option %q", render(opt, true)).InTable(name)
		}
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(QuoteIdent(name))
	b.WriteString(" (\n")
	for i, line := range lines {
		b.WriteString("  ")
		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteByte(')')
	var opts []string
	if tbl.WithoutRowid {
		opts = append(opts, "WITHOUT ROWID")
	}
	if tbl.Strict {
		opts = append(opts, "STRICT")
	}
	if len(opts) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(opts, ", "))
	}
	tbl.SQL = b.String()
	return tbl, nil
}

func canonicalColumn(item []Token) (Column, string, error) {
	name, ok := item[0].Name()
	if !ok {
		return Column{}, "", errs.New(errs.ErrMalformedTree, "expected column name, got %q", item[0].Text)
	}
	rest := item[1:]

	// The type name runs until the first constraint keyword at depth 0.
	typeEnd := len(rest)
	depth := 0
	for i, t := range rest {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth == 0 && t.Kind == TokenWord && columnConstraintStart[strings.ToUpper(t.Text)]:
			typeEnd = i
		}
		if typeEnd != len(rest) {
			break
		}
	}
	typeToks, constraints := rest[:typeEnd], rest[typeEnd:]

	depth = 0
	for _, t := range constraints {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth == 0 && (t.IsKeyword("GENERATED") || t.IsKeyword("AS")):
			return Column{}, "", errs.New(errs.ErrUnsupportedSchema, "generated column %q is not supported", name)
		}
	}

	col := Column{Name: name}
	upper := make([]Token, len(typeToks))
	for i, t := range typeToks {
		if t.Kind == TokenWord {
			t.Text = strings.ToUpper(t.Text)
		}
		upper[i] = t
	}
	col.Type = render(upper, true)

	line := QuoteIdent(name)
	if col.Type != "" {
		line += " " + col.Type
	}
	if len(constraints) > 0 {
		line += " " + render(constraints, true)
	}
	return col, line, nil
}

// CanonicalizeStatement normalizes an index or trigger statement: comments
// are stripped, whitespace is collapsed and quoted identifiers are rewritten
// with double quotes. Keywords are uppercased when upperKeywords is set.
func CanonicalizeStatement(sql string, upperKeywords bool) (string, error) {
	toks, err := Tokenize(sql)
	if err != nil {
		return "", err
	}
	toks = trimSemicolons(toks)
	if len(toks) == 0 || !toks[0].IsKeyword("CREATE") {
		return "", errs.New(errs.ErrMalformedTree, "expected CREATE statement, got %q", abbreviate(sql))
	}
	return render(toks, upperKeywords), nil
}

// CanonicalizeView returns a CREATE VIEW statement as written, minus
// surrounding whitespace and trailing semicolons. SQLite names unaliased
// result columns after their exact select text, so any respacing would
// rename them.
func CanonicalizeView(sql string) (string, error) {
	toks, err := Tokenize(sql)
	if err != nil {
		return "", err
	}
	toks = trimSemicolons(toks)
	if len(toks) < 2 || !toks[0].IsKeyword("CREATE") {
		return "", errs.New(errs.ErrMalformedTree, "expected CREATE VIEW statement, got %q", abbreviate(sql))
	}
	text := strings.TrimRightFunc(sql, func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	// A trailing line comment would swallow the terminator.
	if i := strings.LastIndexByte(text, '\n'); strings.Contains(text[i+1:], "--") {
		text += "\n"
	}
	return text, nil
}

func trimSemicolons(toks []Token) []Token {
	for len(toks) > 0 && toks[len(toks)-1].IsPunct(";") {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// splitTopLevel splits toks at separators that are not nested in
// parentheses.
func splitTopLevel(toks []Token, sep string) [][]Token {
	if len(toks) == 0 {
		return nil
	}
	var out [][]Token
	depth, start := 0, 0
	for i, t := range toks {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth == 0 && t.IsPunct(sep):
			out = append(out, toks[start:i])
			start = i + 1
		}
	}
	return append(out, toks[start:])
}

// render joins tokens with single spaces, leaving none inside parentheses,
// before commas, around dots, after unary signs or between a name and its
// argument list.
func render(toks []Token, upperKeywords bool) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && spaceBetween(toks, i) {
			b.WriteByte(' ')
		}
		switch t.Kind {
		case TokenIdent:
			b.WriteString(QuoteIdent(t.Text))
		case TokenWord:
			if upperKeywords && IsKeyword(t.Text) {
				b.WriteString(strings.ToUpper(t.Text))
			} else {
				b.WriteString(t.Text)
			}
		default:
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

func spaceBetween(toks []Token, i int) bool {
	prev, cur := toks[i-1], toks[i]
	switch {
	case cur.IsPunct(",") || cur.IsPunct(")") || cur.IsPunct(";"):
		return false
	case cur.IsPunct(".") || prev.IsPunct("."):
		return false
	case prev.IsPunct("("):
		return false
	case cur.IsPunct("("):
		return !(prev.Kind == TokenIdent || (prev.Kind == TokenWord && !IsKeyword(prev.Text)))
	case prev.IsPunct("-") || prev.IsPunct("+") || prev.IsPunct("~"):
		return !isUnary(toks, i-1)
	}
	return true
}

// isUnary reports whether the sign at index i applies to what follows
// rather than to an operand on its left.
func isUnary(toks []Token, i int) bool {
	if i == 0 {
		return true
	}
	before := toks[i-1]
	switch before.Kind {
	case TokenPunct:
		return !before.IsPunct(")")
	case TokenWord:
		return IsKeyword(before.Text)
	}
	return false
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.toks) {
		return Token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) keyword(kw string) bool {
	if t, ok := p.peek(); ok && t.IsKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) punct(s string) bool {
	if t, ok := p.peek(); ok && t.IsPunct(s) {
		p.pos++
		return true
	}
	return false
}

// qualifiedName reads name or schema.name and returns the last part.
func (p *parser) qualifiedName() (string, bool) {
	t, ok := p.peek()
	if !ok {
		return "", false
	}
	name, ok := t.Name()
	if !ok {
		return "", false
	}
	p.pos++
	if p.punct(".") {
		t, ok = p.peek()
		if !ok {
			return "", false
		}
		if name, ok = t.Name(); !ok {
			return "", false
		}
		p.pos++
	}
	return name, true
}

// untilClose consumes tokens up to the parenthesis closing an already
// consumed "(" and returns the tokens in between.
func (p *parser) untilClose() ([]Token, bool) {
	depth := 1
	for i := p.pos; i < len(p.toks); i++ {
		switch {
		case p.toks[i].IsPunct("("):
			depth++
		case p.toks[i].IsPunct(")"):
			depth--
			if depth == 0 {
				body := p.toks[p.pos:i]
				p.pos = i + 1
				return body, true
			}
		}
	}
	return nil, false
}

func (p *parser) rest() []Token {
	r := p.toks[p.pos:]
	p.pos = len(p.toks)
	return r
}
