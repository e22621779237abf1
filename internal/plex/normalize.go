package plex

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NotAvailable is shown for any field the server did not provide.
const NotAvailable = "N/A"

// maxListed caps how many genres and cast members are shown.
const maxListed = 3

// maxMinutes rejects durations no real item has (one year).
const maxMinutes = 525600

// Notification is a flat, display-ready view of a library item.
// Every string field is non-empty except ThumbnailPath.
type Notification struct {
	ContentType    string
	DisplayTitle   string
	EpisodeTitle   string
	Season         *int
	Episode        *int
	Tagline        string
	Summary        string
	ContentRating  string
	AudienceRating string // "<value>/10"
	AirDate        string
	Duration       string // "<n> mins"
	ThumbnailPath  string // relative path on the server, "" when unknown
	Year           string
	RatingKey      string
	Genres         string
	Cast           string
}

// IsMovie reports whether the item is a movie.
func (n Notification) IsMovie() bool {
	return n.ContentType == TypeMovie
}

// HasEpisode reports whether both season and episode numbers are known.
func (n Notification) HasEpisode() bool {
	return n.Season != nil && n.Episode != nil
}

// Normalize maps raw metadata onto a Notification. It never fails: absent or
// malformed fields fall back to NotAvailable.
func Normalize(m Metadata) Notification {
	n := Notification{
		ContentType:    strings.TrimSpace(string(m.Type)),
		Tagline:        orNA(m.Tagline),
		Summary:        orNA(m.Summary),
		ContentRating:  orNA(m.ContentRating),
		AudienceRating: formatRating(m.AudienceRating),
		AirDate:        orNA(m.OriginallyAvailableAt),
		Duration:       formatDuration(m.Duration),
		ThumbnailPath:  firstNonEmpty(m.Thumb, m.GrandparentThumb),
		Year:           orNA(m.Year),
		RatingKey:      orNA(m.RatingKey),
		Genres:         joinTags(m.Genre),
		Cast:           joinTags(m.Role),
	}

	if n.IsMovie() {
		n.DisplayTitle = orNA(m.Title)
		return n
	}

	n.DisplayTitle = orNA(Text(firstNonEmpty(m.GrandparentTitle, m.Title)))
	season, seasonOK := m.ParentIndex.Index()
	episode, episodeOK := m.Index.Index()
	if seasonOK && episodeOK {
		n.Season = &season
		n.Episode = &episode
		n.EpisodeTitle = orNA(m.Title)
	}
	return n
}

func orNA(t Text) string {
	if s := strings.TrimSpace(string(t)); s != "" {
		return s
	}
	return NotAvailable
}

func firstNonEmpty(values ...Text) string {
	for _, v := range values {
		if s := strings.TrimSpace(string(v)); s != "" {
			return s
		}
	}
	return ""
}

func formatRating(r Number) string {
	if !r.Valid {
		return NotAvailable
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64) + "/10"
}

// formatDuration converts milliseconds to whole minutes. Zero minutes is
// treated as unknown rather than shown as "0 mins".
func formatDuration(ms Number) string {
	if !ms.Valid {
		return NotAvailable
	}
	minutes := math.Round(ms.Value / 60000)
	if minutes <= 0 || minutes > maxMinutes {
		return NotAvailable
	}
	return fmt.Sprintf("%d mins", int(minutes))
}

func joinTags(tags Tags) string {
	names := tags.Names()
	if len(names) == 0 {
		return NotAvailable
	}
	if len(names) > maxListed {
		names = names[:maxListed]
	}
	return strings.Join(names, ", ")
}
