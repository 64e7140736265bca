package upnp

import (
	"encoding/xml"
	"strings"
)

// BuildEnvelope serializes a SOAP 1.1 request for the given action.
// Argument values are entity-escaped; DIDL metadata passed as a value
// therefore survives embedding as element content.
func BuildEnvelope(serviceType, action string, args []Arg) []byte {
	var buf strings.Builder
	buf.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>")
	buf.WriteString("<s:Envelope xmlns:s=\"http://schemas.xmlsoap.org/soap/envelope/\" s:encodingStyle=\"http://schemas.xmlsoap.org/soap/encoding/\">")
	buf.WriteString("<s:Body>")
	buf.WriteString("<u:")
	buf.WriteString(action)
	buf.WriteString(" xmlns:u=\"")
	buf.WriteString(serviceType)
	buf.WriteString("\">")

	for _, arg := range args {
		buf.WriteString("<")
		buf.WriteString(arg.Name)
		buf.WriteString(">")
		buf.WriteString(EscapeXML(arg.Value))
		buf.WriteString("</")
		buf.WriteString(arg.Name)
		buf.WriteString(">")
	}

	buf.WriteString("</u:")
	buf.WriteString(action)
	buf.WriteString(">")
	buf.WriteString("</s:Body>")
	buf.WriteString("</s:Envelope>")

	return []byte(buf.String())
}

// EscapeXML entity-escapes text for inclusion as XML content.
func EscapeXML(input string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(input)); err != nil {
		return input
	}
	return b.String()
}
