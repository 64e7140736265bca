package upnp

import (
	"bytes"
	"io"
	"strings"

	"github.com/stephencmorton/feather-sonos/internal/xmltok"
)

// ParseResponse extracts the ordered argument list from a SOAP response
// body for the given action. It scans the token stream for the
// <action>Response element and collects each (child tag, text) pair in
// document order; a child with no text token decodes as an empty value.
// A Fault body is surfaced as *FaultError instead.
func ParseResponse(action string, payload []byte) (Args, error) {
	scanner := xmltok.NewScanner(bytes.NewReader(payload))
	want := action + "Response"

	// Seek the response element, watching for a fault body on the way.
	for {
		tok, err := scanner.Next()
		if err == io.EOF {
			return nil, &ResponseError{Action: action, Reason: "no " + want + " element"}
		}
		if err != nil {
			return nil, err
		}
		if tok.Kind != xmltok.StartTag {
			continue
		}
		if tok.Name.Local == "Fault" {
			code, desc := scanFault(scanner)
			return nil, &FaultError{Action: action, Code: code, Description: desc}
		}
		if tok.Name.Local == want {
			break
		}
	}

	args := Args{}
	var current *Arg
	for {
		tok, err := scanner.Next()
		if err == io.EOF {
			// Stream ended before the response element closed; whatever
			// was collected is all the device sent.
			return args, nil
		}
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case xmltok.StartTag:
			args = append(args, Arg{Name: tok.Name.Local})
			current = &args[len(args)-1]
		case xmltok.Text:
			if current != nil {
				current.Value = tok.Value
			}
		case xmltok.EndTag:
			if tok.Name.Local == want {
				return args, nil
			}
			current = nil
		}
	}
}

// ParseFault scans a response body for a SOAP fault and returns its
// code and description, empty when no fault shape is present.
func ParseFault(payload []byte) (string, string) {
	scanner := xmltok.NewScanner(bytes.NewReader(payload))
	return scanFault(scanner)
}

// scanFault pulls the UPnP error code and description out of a fault
// body. Sonos nests a UPnPError detail block with errorCode and
// errorDescription leaves; faultstring is the SOAP-level fallback.
func scanFault(scanner xmltok.Scanner) (code, desc string) {
	var field string
	var faultString string
	for {
		tok, err := scanner.Next()
		if err != nil {
			break
		}
		switch tok.Kind {
		case xmltok.StartTag:
			switch tok.Name.Local {
			case "errorCode", "errorDescription", "faultstring":
				field = tok.Name.Local
			default:
				field = ""
			}
		case xmltok.Text:
			value := strings.TrimSpace(tok.Value)
			switch field {
			case "errorCode":
				code = value
			case "errorDescription":
				desc = value
			case "faultstring":
				faultString = value
			}
		case xmltok.EndTag:
			field = ""
		}
	}
	if desc == "" {
		desc = faultString
	}
	return code, desc
}
