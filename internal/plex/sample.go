package plex

// SampleMetadata returns a fixed movie record used by the test route.
func SampleMetadata() Metadata {
	return Metadata{
		Type:           TypeMovie,
		Title:          "Solo: A Star Wars Story",
		Year:           "2018",
		AudienceRating: Number{Value: 6.6, Valid: true},
		ContentRating:  "PG-13",
		Tagline:        "Never tell him the odds",
		Duration:       Number{Value: 8100000, Valid: true},
		Thumb:          "/library/metadata/8008/thumb/1750992579",
		RatingKey:      "8008",
		Genre:          Tags{{Tag: "action"}, {Tag: "adventure"}, {Tag: "mystery"}},
		Role:           Tags{{Tag: "Alden Ehrenreich"}, {Tag: "Joonas Suotamo"}, {Tag: "Woody Harrelson"}},
	}
}
