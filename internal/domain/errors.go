package domain

import "errors"

var (
	ErrMovieNotFound    = errors.New("movie not found")
	ErrMovieExists      = errors.New("movie already posted in this channel")
	ErrMessageGone      = errors.New("display message no longer exists")
	ErrMetadataNotFound = errors.New("no metadata for imdb id")
	ErrSettingsNotFound = errors.New("guild has no watch channel configured")
)
