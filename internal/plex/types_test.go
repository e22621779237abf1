package plex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libraryNewPayload = `{
	"event": "library.new",
	"user": true,
	"owner": true,
	"Account": {"id": 1, "title": "goon"},
	"Server": {"title": "GoonBox", "uuid": "abc123def"},
	"Metadata": {
		"librarySectionType": "movie",
		"ratingKey": "8008",
		"type": "movie",
		"title": "Solo: A Star Wars Story",
		"audienceRating": 6.6,
		"duration": 8100000
	}
}`

func TestParseWebhook(t *testing.T) {
	t.Parallel()

	w, err := ParseWebhook([]byte(libraryNewPayload))
	require.NoError(t, err)

	assert.Equal(t, EventLibraryNew, string(w.Event))
	assert.Equal(t, "goon", string(w.Account.Title))
	assert.Equal(t, "abc123def", w.ServerID())
	assert.Equal(t, "Solo: A Star Wars Story", string(w.Metadata.Title))
	assert.Equal(t, "8008", string(w.Metadata.RatingKey))
	assert.Equal(t, Number{Value: 6.6, Valid: true}, w.Metadata.AudienceRating)
}

func TestParseWebhook_Lenient(t *testing.T) {
	t.Parallel()

	w, err := ParseWebhook([]byte(`{"event":"media.play","Metadata":"oops","Server":{"uuid":42}}`))
	require.NoError(t, err)
	assert.Equal(t, "media.play", string(w.Event))
	assert.Equal(t, Metadata{}, w.Metadata)
	assert.Equal(t, "42", w.ServerID())

	w, err = ParseWebhook([]byte(`{"event":"library.new"}`))
	require.NoError(t, err)
	assert.Empty(t, w.ServerID())
}

func TestParseWebhook_MisshapenEnvelopeFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"server_string", `{"event":"library.new","Server":"abc","Metadata":{"type":"movie","title":"Solo"}}`},
		{"server_array", `{"event":"library.new","Server":[1,2],"Metadata":{"type":"movie","title":"Solo"}}`},
		{"account_array", `{"event":"library.new","Account":[1],"Metadata":{"type":"movie","title":"Solo"}}`},
		{"account_number", `{"event":"library.new","Account":7,"Server":null,"Metadata":{"type":"movie","title":"Solo"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, err := ParseWebhook([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, EventLibraryNew, string(w.Event))
			assert.Empty(t, w.ServerID())
			assert.Empty(t, string(w.Account.Title))
			assert.Equal(t, "Solo", string(w.Metadata.Title))
		})
	}
}

func TestParseWebhook_Invalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`{not json`, `[1,2]`, `"library.new"`, ``} {
		_, err := ParseWebhook([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestText_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Text
	}{
		{`"2018"`, "2018"},
		{`2018`, "2018"},
		{`8008`, "8008"},
		{`6.5`, "6.5"},
		{`null`, ""},
		{`true`, ""},
		{`{"a":1}`, ""},
	}
	for _, tt := range tests {
		var got Text
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNumber_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Number
	}{
		{`6.6`, Number{Value: 6.6, Valid: true}},
		{`"6.6"`, Number{Value: 6.6, Valid: true}},
		{`" 12 "`, Number{Value: 12, Valid: true}},
		{`0`, Number{Value: 0, Valid: true}},
		{`""`, Number{}},
		{`"Inf"`, Number{}},
		{`null`, Number{}},
		{`[1]`, Number{}},
	}
	for _, tt := range tests {
		var got Number
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNumber_Index(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n      Number
		want   int
		wantOK bool
	}{
		{Number{Value: 3, Valid: true}, 3, true},
		{Number{Value: 0, Valid: true}, 0, true},
		{Number{Value: 9999, Valid: true}, 9999, true},
		{Number{Value: 10000, Valid: true}, 0, false},
		{Number{Value: 1e20, Valid: true}, 0, false},
		{Number{Value: -1, Valid: true}, 0, false},
		{Number{Value: 2.5, Valid: true}, 0, false},
		{Number{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.n.Index()
		assert.Equal(t, tt.wantOK, ok, "%v", tt.n.Value)
		assert.Equal(t, tt.want, got, "%v", tt.n.Value)
	}
}
