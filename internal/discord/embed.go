package discord

import (
	"fmt"

	"github.com/reelrate/reelrate/internal/domain"
)

const (
	embedColor          = 0x00b2ff
	audienceRatingField = "Audience Rating"
)

// BuildMovieEmbed composes the summary embed for a movie, ending with the
// Audience Rating field that later refreshes update in place.
func BuildMovieEmbed(meta *domain.MovieMetadata, linkURL string, stats domain.RatingStats) Embed {
	embed := Embed{
		Title:       fmt.Sprintf("%s (%s)", meta.Title, meta.Year),
		Description: meta.Plot,
		URL:         linkURL,
		Color:       embedColor,
		Fields: []EmbedField{
			{Name: "Director", Value: orDash(meta.Director), Inline: true},
			{Name: "Genre", Value: orDash(meta.Genre), Inline: true},
			{Name: "Runtime", Value: orDash(meta.Runtime), Inline: true},
			{Name: "IMDb Rating", Value: "⭐ " + orDash(meta.ImdbRating), Inline: true},
			{Name: audienceRatingField, Value: FormatAudienceRating(stats), Inline: true},
		},
		Footer: &EmbedFooter{Text: "Rate with 1️⃣–🔟 reactions · Powered by OMDb"},
	}
	if meta.Poster != "" && meta.Poster != "N/A" {
		embed.Image = &EmbedImage{URL: meta.Poster}
	}
	return embed
}

// FormatAudienceRating renders the aggregate for display.
func FormatAudienceRating(stats domain.RatingStats) string {
	if stats.Count == 0 {
		return "No votes yet"
	}
	unit := "votes"
	if stats.Count == 1 {
		unit = "vote"
	}
	return fmt.Sprintf("⭐ %.1f (%d %s)", stats.Average, stats.Count, unit)
}

// setAudienceRating updates the Audience Rating field in place, appending it
// when an older message predates the field.
func setAudienceRating(embed *Embed, stats domain.RatingStats) {
	for i := range embed.Fields {
		if embed.Fields[i].Name == audienceRatingField {
			embed.Fields[i].Value = FormatAudienceRating(stats)
			return
		}
	}
	embed.Fields = append(embed.Fields, EmbedField{
		Name:   audienceRatingField,
		Value:  FormatAudienceRating(stats),
		Inline: true,
	})
}

func orDash(value string) string {
	if value == "" || value == "N/A" {
		return "—"
	}
	return value
}
