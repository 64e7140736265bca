package sonos

import (
	"fmt"
	"io"

	"github.com/stephencmorton/feather-sonos/internal/xmltok"
)

// TrackInfo describes the currently playing track. Artist, Album and
// Title are empty when the metadata did not carry them. TotalTime and
// CurrentTime are the duration strings exactly as the device reported
// them.
type TrackInfo struct {
	Artist      string
	Album       string
	Title       string
	TotalTime   string
	CurrentTime string
}

func (t TrackInfo) String() string {
	return fmt.Sprintf("<TrackInfo artist=%q album=%q title=%q position=%s/%s>",
		t.Artist, t.Album, t.Title, t.CurrentTime, t.TotalTime)
}

// MalformedMetadataError reports a DIDL-Lite fragment whose token stream
// broke the leaf-text assumption for a recognized tag.
type MalformedMetadataError struct {
	Tag    string
	Reason string
}

func (e *MalformedMetadataError) Error() string {
	return fmt.Sprintf("malformed track metadata at <%s>: %s", e.Tag, e.Reason)
}

const (
	dcNamespace   = "http://purl.org/dc/elements/1.1/"
	upnpNamespace = "urn:schemas-upnp-org:metadata-1-0/upnp/"
)

// metadataField maps a recognized DIDL tag to the TrackInfo field it
// fills. Fragments arrive both with and without xmlns declarations, so
// the namespace match accepts the raw prefix as well as the resolved URI.
func metadataField(name xmltok.Name, info *TrackInfo) *string {
	switch {
	case name.Local == "creator" && (name.Space == "dc" || name.Space == dcNamespace):
		return &info.Artist
	case name.Local == "album" && (name.Space == "upnp" || name.Space == upnpNamespace):
		return &info.Album
	case name.Local == "title" && (name.Space == "dc" || name.Space == dcNamespace):
		return &info.Title
	}
	return nil
}

// ParseTrackInfo extracts playback metadata from a DIDL-Lite fragment in
// a single pass. The recognized tags are leaf text nodes, so the token
// immediately following each one must be its text value; anything else is
// a MalformedMetadataError. Unrecognized tags are skipped. Absent fields
// stay empty rather than failing the whole parse.
func ParseTrackInfo(didlXML, totalTime, currentTime string) (TrackInfo, error) {
	info := TrackInfo{TotalTime: totalTime, CurrentTime: currentTime}
	tokens := xmltok.NewStringScanner(didlXML)

	for {
		tok, err := tokens.Next()
		if err == io.EOF {
			return info, nil
		}
		if err != nil {
			return TrackInfo{}, &MalformedMetadataError{Reason: err.Error()}
		}
		if tok.Kind != xmltok.StartTag {
			continue
		}
		field := metadataField(tok.Name, &info)
		if field == nil {
			continue
		}
		value, err := tokens.Next()
		if err != nil {
			return TrackInfo{}, &MalformedMetadataError{Tag: tok.Name.Local, Reason: "stream ended before text value"}
		}
		if value.Kind != xmltok.Text {
			return TrackInfo{}, &MalformedMetadataError{Tag: tok.Name.Local, Reason: "expected text, got " + value.Kind.String()}
		}
		*field = value.Value
	}
}
