package notification

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goonbox/plexcord/internal/core"
	"github.com/goonbox/plexcord/internal/plex"
)

// embedColor is Discord's dark teal.
const embedColor = 0x11806A

// DisplayConfig holds the static values the formatter needs besides the item itself.
type DisplayConfig struct {
	MediaHostName      string // public Plex host, e.g. plex.example.com
	AccessToken        string
	StaticThumbnailURL string
	FooterText         string
	// StripImageToken drops the large preview instead of putting the token in its URL.
	StripImageToken bool
}

// Format builds the chat message for a library item. serverID may be empty,
// in which case the message carries no deep link.
func Format(n plex.Notification, cfg DisplayConfig, serverID string) *core.Embed {
	host := hostOnly(cfg.MediaHostName)

	embed := &core.Embed{
		Title:        title(n.ContentType),
		URL:          deepLink(host, serverID, n.RatingKey),
		Color:        embedColor,
		Footer:       cfg.FooterText,
		ThumbnailURL: cfg.StaticThumbnailURL,
	}
	if n.IsMovie() {
		embed.Description = movieDescription(n)
	} else {
		embed.Description = episodeDescription(n)
	}
	if n.ThumbnailPath != "" && !cfg.StripImageToken {
		embed.ImageURL = imageURL(host, n.ThumbnailPath, cfg.AccessToken)
	}
	return embed
}

func title(contentType string) string {
	kind := strings.ToUpper(strings.TrimSpace(contentType))
	if kind == "" {
		kind = "ITEM"
	}
	return fmt.Sprintf("NEW %s TO GOON TO", kind)
}

func movieDescription(n plex.Notification) string {
	var b strings.Builder
	line(&b, "Title", n.DisplayTitle)
	line(&b, "Tagline", n.Tagline)
	line(&b, "Starring", n.Cast)
	line(&b, "Genre", n.Genres)
	line(&b, "Audience Rating", n.AudienceRating)
	line(&b, "Content Rating", n.ContentRating)
	fmt.Fprintf(&b, "**Year:** %s | **Runtime:** %s", n.Year, n.Duration)
	return b.String()
}

func episodeDescription(n plex.Notification) string {
	var b strings.Builder
	line(&b, "Title", n.DisplayTitle)
	if n.HasEpisode() {
		line(&b, "Episode", fmt.Sprintf("S%02dE%02d: %s", *n.Season, *n.Episode, n.EpisodeTitle))
	}
	line(&b, "Starring", n.Cast)
	line(&b, "Audience Rating", n.AudienceRating)
	line(&b, "Content Rating", n.ContentRating)
	fmt.Fprintf(&b, "**Air Date:** %s | **Duration:** %s", n.AirDate, n.Duration)
	return b.String()
}

func line(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "**%s:** %s\n", label, value)
}

// deepLink points at the item in Plex Web. Both ids are required.
func deepLink(host, serverID, ratingKey string) string {
	if host == "" || serverID == "" || ratingKey == "" || ratingKey == plex.NotAvailable {
		return ""
	}
	key := url.QueryEscape("/library/metadata/" + ratingKey)
	return fmt.Sprintf("https://%s/web/index.html#!/server/%s/details?key=%s", host, url.PathEscape(serverID), key)
}

// imageURL builds the preview URL. The token rides along as a query parameter
// because the chat platform fetches the image anonymously.
func imageURL(host, path, token string) string {
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := "https://" + host + path
	if token == "" {
		return u
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return u + sep + "X-Plex-Token=" + url.QueryEscape(token)
}

// hostOnly strips a scheme and trailing slashes from a configured host name.
func hostOnly(host string) string {
	host = strings.TrimSpace(host)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return strings.TrimRight(host, "/")
}
