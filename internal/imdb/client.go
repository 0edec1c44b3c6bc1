package imdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/metrics"
)

const defaultBaseURL = "https://www.omdbapi.com"

// omdbResponse mirrors the OMDB API payload for a title lookup.
type omdbResponse struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	Director   string `json:"Director"`
	Genre      string `json:"Genre"`
	Runtime    string `json:"Runtime"`
	ImdbRating string `json:"imdbRating"`
	ImdbID     string `json:"imdbID"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

// Client implements domain.MetadataProvider against the OMDB API. Lookups run
// behind a circuit breaker so a flapping upstream fails fast instead of
// stalling message handling.
type Client struct {
	http    *resty.Client
	apiKey  string
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates an OMDB client. baseURL is overridable for tests; pass ""
// for the production endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "omdb",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Unknown ids are answers, not upstream failures.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrMetadataNotFound)
		},
	})

	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second),
		apiKey:  apiKey,
		breaker: breaker,
	}
}

// Lookup fetches metadata for an IMDB title id. An unknown id maps to
// domain.ErrMetadataNotFound; transport and upstream failures count against
// the breaker.
func (c *Client) Lookup(ctx context.Context, imdbID string) (*domain.MovieMetadata, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.lookup(ctx, imdbID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.OmdbLookups.WithLabelValues("breaker_open").Inc()
		return nil, fmt.Errorf("omdb lookup rejected: %w", err)
	}
	if errors.Is(err, domain.ErrMetadataNotFound) {
		metrics.OmdbLookups.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if err != nil {
		metrics.OmdbLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.OmdbLookups.WithLabelValues("ok").Inc()
	return result.(*domain.MovieMetadata), nil
}

func (c *Client) lookup(ctx context.Context, imdbID string) (*domain.MovieMetadata, error) {
	var payload omdbResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey": c.apiKey,
			"i":      imdbID,
		}).
		SetResult(&payload).
		Get("/")
	if err != nil {
		return nil, fmt.Errorf("omdb request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("omdb returned status %d", resp.StatusCode())
	}
	if payload.Response != "True" {
		// OMDB reports unknown ids in-band with Response=False.
		return nil, domain.ErrMetadataNotFound
	}

	return &domain.MovieMetadata{
		ImdbID:     payload.ImdbID,
		Title:      payload.Title,
		Year:       payload.Year,
		Plot:       payload.Plot,
		Poster:     payload.Poster,
		Director:   payload.Director,
		Genre:      payload.Genre,
		Runtime:    payload.Runtime,
		ImdbRating: payload.ImdbRating,
	}, nil
}
