package lexer

import (
	"strings"
	"testing"

	"github.com/Chubek/Moonix/internal/token"
)

func scanAll(t *testing.T, input string) []token.Token {
	t.Helper()
	toks, err := Scan(input)
	if err != nil {
		t.Fatalf("scan error: %s", err)
	}
	return toks
}

func TestSimpleArithmetic(t *testing.T) {
	toks := scanAll(t, "1 + 1")
	want := []token.TokenType{token.NUMBER, token.PLUS, token.NUMBER, token.EOF}
	if len(toks) != len(want) {
		t.Fatalf("wrong token count. got=%d, want=%d", len(toks), len(want))
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d: got=%s, want=%s", i, toks[i].Type, tt)
		}
	}
}

func TestOperatorsLongestMatch(t *testing.T) {
	tests := []struct {
		input string
		want  []token.TokenType
	}{
		{"= == ~=", []token.TokenType{token.ASSIGN, token.EQ, token.NOT_EQ}},
		{"< <= > >=", []token.TokenType{token.LT, token.LTE, token.GT, token.GTE}},
		{". .. ...", []token.TokenType{token.DOT, token.CONCAT, token.ELLIPSIS}},
		{": ::", []token.TokenType{token.COLON, token.DOUBLECOLON}},
		{"+ - * / ^ % #", []token.TokenType{token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.CARET, token.PERCENT, token.HASH}},
	}
	for _, tc := range tests {
		toks := scanAll(t, tc.input)
		if len(toks)-1 != len(tc.want) {
			t.Fatalf("%q: wrong token count. got=%d, want=%d", tc.input, len(toks)-1, len(tc.want))
		}
		for i, tt := range tc.want {
			if toks[i].Type != tt {
				t.Errorf("%q token %d: got=%s, want=%s", tc.input, i, toks[i].Type, tt)
			}
		}
	}
}

func TestKeywordsAndNames(t *testing.T) {
	input := "if then elseif else do end for in while repeat until function local return goto break true false nil and or not"
	toks := scanAll(t, input)
	for _, tok := range toks[:len(toks)-1] {
		if tok.Type == token.NAME {
			t.Errorf("keyword %q scanned as NAME", tok.Lexeme)
		}
	}

	for _, ident := range []string{"x", "_foo", "Bar42", "ifx", "ender", "_"} {
		toks := scanAll(t, ident)
		if toks[0].Type != token.NAME {
			t.Errorf("identifier %q: got=%s, want=NAME", ident, toks[0].Type)
		}
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"0", 0},
		{"42", 42},
		{"3.14", 3.14},
		{"1e3", 1000},
		{"2.5e-1", 0.25},
		{"1E+2", 100},
		{"0xff", 255},
		{"0X10", 16},
		{"0o17", 15},
		{"0b1010", 10},
	}
	for _, tc := range tests {
		toks := scanAll(t, tc.input)
		if toks[0].Type != token.NUMBER {
			t.Fatalf("%q: got=%s, want=NUMBER", tc.input, toks[0].Type)
		}
		if got := toks[0].Literal.(float64); got != tc.want {
			t.Errorf("%q: got=%v, want=%v", tc.input, got, tc.want)
		}
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'world'`, "world"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`'it\'s'`, "it's"},
		{`"say \"hi\""`, `say "hi"`},
	}
	for _, tc := range tests {
		toks := scanAll(t, tc.input)
		if toks[0].Type != token.STRING {
			t.Fatalf("%q: got=%s, want=STRING", tc.input, toks[0].Type)
		}
		if got := toks[0].Literal.(string); got != tc.want {
			t.Errorf("%q: got=%q, want=%q", tc.input, got, tc.want)
		}
	}
}

func TestScanErrors(t *testing.T) {
	tests := []struct {
		input string
		desc  string
	}{
		{`"unterminated`, "unterminated string"},
		{"'also bad\n'", "newline in string"},
		{"0x", "hex without digits"},
		{"0b", "binary without digits"},
		{"1e+", "empty exponent"},
		{`"bad \q escape"`, "unknown escape"},
		{"~", "lone tilde"},
		{"@", "unknown character"},
	}
	for _, tc := range tests {
		_, err := Scan(tc.input)
		if err == nil {
			t.Errorf("%s (%q): expected scan error, got none", tc.desc, tc.input)
		}
	}
}

func TestComments(t *testing.T) {
	toks := scanAll(t, "1 -- comment\n2 --[[ long\ncomment ]] 3")
	var kinds []token.TokenType
	for _, tok := range toks {
		kinds = append(kinds, tok.Type)
	}
	want := []token.TokenType{token.NUMBER, token.NEWLINE, token.NUMBER, token.NUMBER, token.EOF}
	if len(kinds) != len(want) {
		t.Fatalf("wrong token count. got=%v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got=%s, want=%s", i, kinds[i], want[i])
		}
	}
}

func TestPositions(t *testing.T) {
	toks := scanAll(t, "local x\nx = 1")
	// local at 1:1, x at 1:7, newline, x at 2:1, = at 2:3, 1 at 2:5
	checks := []struct {
		idx  int
		line int
		col  int
	}{
		{0, 1, 1},
		{1, 1, 7},
		{3, 2, 1},
		{4, 2, 3},
		{5, 2, 5},
	}
	for _, c := range checks {
		tok := toks[c.idx]
		if tok.Line != c.line || tok.Column != c.col {
			t.Errorf("token %d (%q): got=%d:%d, want=%d:%d", c.idx, tok.Lexeme, tok.Line, tok.Column, c.line, c.col)
		}
	}
}

func TestLexemeRoundTrip(t *testing.T) {
	input := `local t = { a = 1, [2] = "x" }
if t.a >= 1 and t.a ~= 2 then return #t end`
	toks := scanAll(t, input)
	var parts []string
	for _, tok := range toks {
		if tok.Type == token.EOF {
			break
		}
		if tok.Type == token.NEWLINE {
			parts = append(parts, "\n")
			continue
		}
		parts = append(parts, tok.Lexeme)
	}
	rejoined := strings.Join(parts, " ")
	retoks := scanAll(t, rejoined)
	if len(retoks) != len(toks) {
		t.Fatalf("round trip changed token count: %d vs %d", len(retoks), len(toks))
	}
	for i := range toks {
		if retoks[i].Type != toks[i].Type || retoks[i].Lexeme != toks[i].Lexeme {
			t.Errorf("token %d changed: %s %q vs %s %q", i, toks[i].Type, toks[i].Lexeme, retoks[i].Type, retoks[i].Lexeme)
		}
	}
}
