// Package xmltok exposes a minimal pull-based XML token stream.
//
// Only four token kinds exist: start tag, end tag, attribute, and text.
// That is the full vocabulary the topology and metadata extractors need,
// and keeping the contract this narrow means any compliant tokenizer can
// be swapped in behind the Scanner interface.
package xmltok

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// Kind classifies a Token.
type Kind int

const (
	StartTag Kind = iota
	EndTag
	Attr
	Text
)

func (k Kind) String() string {
	switch k {
	case StartTag:
		return "start-tag"
	case EndTag:
		return "end-tag"
	case Attr:
		return "attr"
	case Text:
		return "text"
	}
	return "unknown"
}

// Name is a possibly-namespaced XML name. Space holds the resolved
// namespace URI when the document declares one, or the raw prefix when it
// does not (DIDL fragments arrive both ways).
type Name struct {
	Space string
	Local string
}

// Token is one lexical event. Value is set for Attr and Text tokens.
type Token struct {
	Kind  Kind
	Name  Name
	Value string
}

// Scanner yields tokens one at a time. Next returns io.EOF once the
// stream is exhausted; exhaustion includes input that simply stops
// mid-document, since callers decide whether that is acceptable for the
// structure they were scanning.
type Scanner interface {
	Next() (Token, error)
}

type decoderScanner struct {
	dec     *xml.Decoder
	pending []Token
}

// NewScanner tokenizes the given stream. Attributes are flattened into
// standalone Attr tokens emitted directly after their start tag, in
// document order. Whitespace-only character data is dropped.
func NewScanner(r io.Reader) Scanner {
	return &decoderScanner{dec: xml.NewDecoder(r)}
}

// NewStringScanner tokenizes an in-memory document.
func NewStringScanner(s string) Scanner {
	return NewScanner(strings.NewReader(s))
}

func (s *decoderScanner) Next() (Token, error) {
	for {
		if len(s.pending) > 0 {
			tok := s.pending[0]
			s.pending = s.pending[1:]
			return tok, nil
		}

		raw, err := s.dec.Token()
		if err != nil {
			if isEOF(err) {
				return Token{}, io.EOF
			}
			return Token{}, err
		}

		switch t := raw.(type) {
		case xml.StartElement:
			for _, attr := range t.Attr {
				s.pending = append(s.pending, Token{
					Kind:  Attr,
					Name:  Name{Space: attr.Name.Space, Local: attr.Name.Local},
					Value: attr.Value,
				})
			}
			return Token{Kind: StartTag, Name: Name{Space: t.Name.Space, Local: t.Name.Local}}, nil
		case xml.EndElement:
			return Token{Kind: EndTag, Name: Name{Space: t.Name.Space, Local: t.Name.Local}}, nil
		case xml.CharData:
			text := string(t)
			if strings.TrimSpace(text) == "" {
				continue
			}
			return Token{Kind: Text, Value: text}, nil
		default:
			// Comments, directives and processing instructions carry
			// nothing the extractors care about.
			continue
		}
	}
}

// isEOF reports whether err means the input ran out, cleanly or not.
// A truncated document is surfaced as plain exhaustion so that scanning
// state machines can decide whether they were mid-structure.
func isEOF(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		return strings.Contains(syn.Msg, "unexpected EOF")
	}
	return false
}
