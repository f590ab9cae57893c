package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/elaborate"
)

func TestTokenizeKeywordsAndPunctuation(t *testing.T) {
	src := `entity Order { states: [draft, submitted] }`
	toks, err := Tokenize("order.tenor", src)
	require.NoError(t, err)

	require.NotEmpty(t, toks)
	assert.Equal(t, TokKeyword, toks[0].Kind)
	assert.Equal(t, "entity", toks[0].Text)
	assert.Equal(t, TokIdent, toks[1].Kind)
	assert.Equal(t, "Order", toks[1].Text)
	assert.Equal(t, TokEOF, toks[len(toks)-1].Kind)
}

func TestTokenizeComparisonOperators(t *testing.T) {
	src := "a = b != c <= d >= e < f > g"
	toks, err := Tokenize("t.tenor", src)
	require.NoError(t, err)

	var kinds []TokenKind
	for _, tok := range toks {
		if tok.Kind != TokIdent && tok.Kind != TokEOF {
			kinds = append(kinds, tok.Kind)
		}
	}
	assert.Equal(t, []TokenKind{TokEq, TokNotEq, TokLtEq, TokGtEq, TokLt, TokGt}, kinds)
}

func TestTokenizeDecimalAndIntLiterals(t *testing.T) {
	toks, err := Tokenize("t.tenor", "42 3.14")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, TokInt, toks[0].Kind)
	assert.Equal(t, "42", toks[0].Text)
	assert.Equal(t, TokDecimal, toks[1].Kind)
	assert.Equal(t, "3.14", toks[1].Text)
}

func TestTokenizeStringLiteralWithEscapes(t *testing.T) {
	toks, err := Tokenize("t.tenor", `"hello \"world\""`)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, TokString, toks[0].Kind)
	assert.Equal(t, `hello "world"`, toks[0].Text)
}

func TestUnterminatedStringIsLexError(t *testing.T) {
	_, err := Tokenize("t.tenor", `"unterminated`)
	require.Error(t, err)
	var lexErr *elaborate.Error
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, uint32(1), lexErr.Line)
}

func TestUnicodeQuantifierGlyphsLexAsKeywords(t *testing.T) {
	toks, err := Tokenize("t.tenor", "∀ x ∈ xs . ∃ y")
	require.NoError(t, err)
	assert.Equal(t, "forall", toks[0].Text)
	assert.Equal(t, "in", toks[2].Text)
	assert.Equal(t, "exists", toks[5].Text)
}

func TestLineTrackingAcrossMultilineComments(t *testing.T) {
	src := "fact a\n# comment line\n# another\nfact b"
	toks, err := Tokenize("t.tenor", src)
	require.NoError(t, err)

	var factLines []uint32
	for _, tok := range toks {
		if tok.Kind == TokKeyword && tok.Text == "fact" {
			factLines = append(factLines, tok.Line)
		}
	}
	assert.Equal(t, []uint32{1, 4}, factLines)
}

func TestMalformedNumericLiteralIsLexError(t *testing.T) {
	_, err := Tokenize("t.tenor", "42abc")
	require.Error(t, err)
}

func TestUnrecognizedCodePointIsLexError(t *testing.T) {
	_, err := Tokenize("t.tenor", "@")
	require.Error(t, err)
}
