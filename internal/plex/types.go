package plex

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EventLibraryNew is the Plex webhook event sent when an item is added to a library.
const EventLibraryNew = "library.new"

// Metadata types the formatter distinguishes.
const (
	TypeMovie   = "movie"
	TypeEpisode = "episode"
)

// Webhook is the JSON envelope carried in the "payload" form field of a Plex webhook.
type Webhook struct {
	Event    Text     `json:"event"`
	Account  Account  `json:"Account"`
	Server   Server   `json:"Server"`
	Metadata Metadata `json:"Metadata"`
}

// Account identifies the Plex user that triggered the event.
type Account struct {
	Title Text `json:"title"`
}

// UnmarshalJSON decodes an account object; any other value yields an empty account.
func (a *Account) UnmarshalJSON(data []byte) error {
	type plain Account
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*a = Account{}
		return nil
	}
	*a = Account(p)
	return nil
}

// Server identifies the Plex Media Server that sent the webhook.
type Server struct {
	Title Text `json:"title"`
	UUID  Text `json:"uuid"`
}

// UnmarshalJSON decodes a server object; any other value yields an empty server.
func (sv *Server) UnmarshalJSON(data []byte) error {
	type plain Server
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*sv = Server{}
		return nil
	}
	*sv = Server(p)
	return nil
}

// Metadata is the loosely-structured item record. Every field may be absent.
type Metadata struct {
	Type                  Text   `json:"type"`
	Title                 Text   `json:"title"`
	GrandparentTitle      Text   `json:"grandparentTitle"`
	Tagline               Text   `json:"tagline"`
	Summary               Text   `json:"summary"`
	ContentRating         Text   `json:"contentRating"`
	AudienceRating        Number `json:"audienceRating"`
	OriginallyAvailableAt Text   `json:"originallyAvailableAt"`
	Duration              Number `json:"duration"` // milliseconds
	Thumb                 Text   `json:"thumb"`
	GrandparentThumb      Text   `json:"grandparentThumb"`
	Year                  Text   `json:"year"`
	RatingKey             Text   `json:"ratingKey"`
	ParentIndex           Number `json:"parentIndex"` // season
	Index                 Number `json:"index"`       // episode
	Genre                 Tags   `json:"Genre"`
	Role                  Tags   `json:"Role"`
}

// ParseWebhook decodes a webhook envelope. Only syntactically invalid JSON or a
// non-object payload is an error; malformed fields degrade to absent.
func ParseWebhook(data []byte) (*Webhook, error) {
	var w Webhook
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode plex webhook: %w", err)
	}
	return &w, nil
}

// ServerID returns the sending server's machine identifier, or "" when absent.
func (w *Webhook) ServerID() string {
	return strings.TrimSpace(string(w.Server.UUID))
}

// UnmarshalJSON decodes a metadata object; anything that is not an object yields empty metadata.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type plain Metadata
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*m = Metadata{}
		return nil
	}
	*m = Metadata(p)
	return nil
}

// Text is a string field that Plex may also send as a number (year, ratingKey).
type Text string

// UnmarshalJSON accepts strings and numbers; other JSON values yield "".
func (t *Text) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*t = ""
		return nil
	}
	switch x := v.(type) {
	case string:
		*t = Text(x)
	case float64:
		*t = Text(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		*t = ""
	}
	return nil
}

// Number is a numeric field that Plex may send as a JSON number or a numeric string.
type Number struct {
	Value float64
	Valid bool
}

// UnmarshalJSON accepts numbers and numeric strings; anything else is left invalid.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		*n = Number{Value: x, Valid: true}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			*n = Number{Value: f, Valid: true}
		}
	}
	return nil
}

// maxIndex bounds season and episode numbers.
const maxIndex = 9999

// Index returns the value as a season or episode number. Values that are
// absent, fractional or outside 0..9999 are reported as unusable.
func (n Number) Index() (int, bool) {
	if !n.Valid || n.Value != math.Trunc(n.Value) || n.Value < 0 || n.Value > maxIndex {
		return 0, false
	}
	return int(n.Value), true
}

// Tag is a tagged record such as a genre or an actor role.
type Tag struct {
	Tag Text `json:"tag"`
}

// Tags is an ordered list of tagged records.
type Tags []Tag

// UnmarshalJSON accepts an array of {"tag": ...} objects or plain strings.
// A non-array value yields an empty list; unusable elements are skipped.
func (ts *Tags) UnmarshalJSON(data []byte) error {
	*ts = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make(Tags, 0, len(raw))
	for _, r := range raw {
		var tag Tag
		if err := json.Unmarshal(r, &tag); err != nil {
			var name Text
			_ = json.Unmarshal(r, &name)
			tag.Tag = name
		}
		if strings.TrimSpace(string(tag.Tag)) != "" {
			out = append(out, tag)
		}
	}
	*ts = out
	return nil
}

// Names returns the tag values in order.
func (ts Tags) Names() []string {
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		names = append(names, strings.TrimSpace(string(t.Tag)))
	}
	return names
}
