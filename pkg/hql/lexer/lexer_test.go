package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, src string) []Token {
	t.Helper()
	l := New(src)
	var out []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		out = append(out, tok)
		if tok.Kind == EOF {
			return out
		}
	}
}

func TestScansKeywordsAndPunctuation(t *testing.T) {
	toks := tokenize(t, `QUERY find(id) => x = N<Person>(id) RETURN x`)
	assert.Equal(t, Keyword, toks[0].Kind)
	assert.Equal(t, "QUERY", toks[0].Text)
	assert.Equal(t, Ident, toks[1].Kind)
	assert.Equal(t, "find", toks[1].Text)
}

func TestScansStringAndNumberLiterals(t *testing.T) {
	toks := tokenize(t, `"hello world" 42 3.14`)
	require.GreaterOrEqual(t, len(toks), 4)
	assert.Equal(t, String, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Text)
	assert.Equal(t, Int, toks[1].Kind)
	assert.Equal(t, Float, toks[2].Kind)
}

func TestSkipsLineComments(t *testing.T) {
	toks := tokenize(t, "x // a comment\ny")
	assert.Equal(t, "x", toks[0].Text)
	assert.Equal(t, "y", toks[1].Text)
}

func TestScansDoubleColonAndArrow(t *testing.T) {
	toks := tokenize(t, `a::Out<L> => b`)
	var texts []string
	for _, tok := range toks {
		texts = append(texts, tok.Text)
	}
	assert.Contains(t, texts, "::")
	assert.Contains(t, texts, "=>")
}
