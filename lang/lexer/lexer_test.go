// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccp-project/ccp/lang/lexer"
	"github.com/ccp-project/ccp/lang/token"
)

type tokenCase struct {
	typ     token.Type
	literal string
}

func runTokenize(t *testing.T, name, input string, want []tokenCase) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		l := lexer.New("test.ccp", input)
		toks := l.Tokenize()
		require.NotEmpty(t, toks)
		require.Equal(t, token.EOF, toks[len(toks)-1].Type, "last token must be EOF")

		got := toks[:len(toks)-1]
		require.Len(t, got, len(want))
		for i, w := range want {
			require.Equalf(t, w.typ, got[i].Type, "token %d type", i)
			require.Equalf(t, w.literal, got[i].Literal, "token %d literal", i)
		}
	})
}

func TestTokenize(t *testing.T) {
	runTokenize(t, "parens", "()", []tokenCase{
		{token.LPAREN, "("},
		{token.RPAREN, ")"},
	})

	runTokenize(t, "int literal", "1500", []tokenCase{
		{token.INT, "1500"},
	})

	runTokenize(t, "keywords", "(def (when true (report)))", []tokenCase{
		{token.LPAREN, "("},
		{token.DEF, "def"},
		{token.LPAREN, "("},
		{token.WHEN, "when"},
		{token.TRUE, "true"},
		{token.LPAREN, "("},
		{token.REPORT, "report"},
		{token.RPAREN, ")"},
		{token.RPAREN, ")"},
		{token.RPAREN, ")"},
	})

	runTokenize(t, "dotted identifier", "Ack.bytes_acked", []tokenCase{
		{token.IDENT, "Ack.bytes_acked"},
	})

	runTokenize(t, "ewma and bounds", "(ewma cwnd (max a b))", []tokenCase{
		{token.LPAREN, "("},
		{token.EWMA, "ewma"},
		{token.IDENT, "cwnd"},
		{token.LPAREN, "("},
		{token.OPMAX, "max"},
		{token.IDENT, "a"},
		{token.IDENT, "b"},
		{token.RPAREN, ")"},
		{token.RPAREN, ")"},
	})

	runTokenize(t, "comparison operators", "(<= a b)", []tokenCase{
		{token.LPAREN, "("},
		{token.LTE, "<="},
		{token.IDENT, "a"},
		{token.IDENT, "b"},
		{token.RPAREN, ")"},
	})

	runTokenize(t, "assign operator", "(:= x 1)", []tokenCase{
		{token.LPAREN, "("},
		{token.ASSIGN, ":="},
		{token.IDENT, "x"},
		{token.INT, "1"},
		{token.RPAREN, ")"},
	})
}

func TestTokenizePositions(t *testing.T) {
	l := lexer.New("test.ccp", "(def)\n(when true)")
	toks := l.Tokenize()
	require.Equal(t, 1, toks[0].Pos.Line)

	var whenTok token.Token
	for _, tok := range toks {
		if tok.Type == token.WHEN {
			whenTok = tok
		}
	}
	require.Equal(t, 2, whenTok.Pos.Line, "when keyword should be on line 2")
}
