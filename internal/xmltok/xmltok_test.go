package xmltok

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s Scanner) []Token {
	t.Helper()
	var tokens []Token
	for {
		tok, err := s.Next()
		if err == io.EOF {
			return tokens
		}
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}
}

func TestScannerFlattensAttributes(t *testing.T) {
	tokens := collect(t, NewStringScanner(`<a href="x" id="1">hi</a>`))

	require.Equal(t, []Token{
		{Kind: StartTag, Name: Name{Local: "a"}},
		{Kind: Attr, Name: Name{Local: "href"}, Value: "x"},
		{Kind: Attr, Name: Name{Local: "id"}, Value: "1"},
		{Kind: Text, Value: "hi"},
		{Kind: EndTag, Name: Name{Local: "a"}},
	}, tokens)
}

func TestScannerSelfClosingElement(t *testing.T) {
	tokens := collect(t, NewStringScanner(`<root><m UUID="u"/></root>`))

	require.Equal(t, []Token{
		{Kind: StartTag, Name: Name{Local: "root"}},
		{Kind: StartTag, Name: Name{Local: "m"}},
		{Kind: Attr, Name: Name{Local: "UUID"}, Value: "u"},
		{Kind: EndTag, Name: Name{Local: "m"}},
		{Kind: EndTag, Name: Name{Local: "root"}},
	}, tokens)
}

func TestScannerDropsWhitespaceText(t *testing.T) {
	tokens := collect(t, NewStringScanner("<a>\n  <b>x</b>\n</a>"))

	for _, tok := range tokens {
		if tok.Kind == Text {
			require.Equal(t, "x", tok.Value)
		}
	}
}

func TestScannerTruncatedInputEndsWithEOF(t *testing.T) {
	// A document that simply stops is exhaustion, not a tokenizer error;
	// callers decide whether mid-structure exhaustion is acceptable.
	s := NewStringScanner(`<a><b>`)

	tok, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, StartTag, tok.Kind)

	tok, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, "b", tok.Name.Local)

	_, err = s.Next()
	require.Equal(t, io.EOF, err)
}

func TestScannerNamespacePrefixWithoutDeclaration(t *testing.T) {
	tokens := collect(t, NewStringScanner(`<dc:title>Song</dc:title>`))

	require.Len(t, tokens, 3)
	require.Equal(t, Name{Space: "dc", Local: "title"}, tokens[0].Name)
}

func TestScannerResolvesDeclaredNamespaces(t *testing.T) {
	tokens := collect(t, NewStringScanner(
		`<dc:title xmlns:dc="http://purl.org/dc/elements/1.1/">Song</dc:title>`))

	require.Equal(t, "http://purl.org/dc/elements/1.1/", tokens[0].Name.Space)
	require.Equal(t, "title", tokens[0].Name.Local)
}
