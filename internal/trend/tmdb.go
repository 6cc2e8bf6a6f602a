package trend

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hpungsan/reel/internal/logging"
	"github.com/hpungsan/reel/internal/metrics"
)

// TMDBSource fetches the weekly TMDB trending list. Calls go through a rate
// limiter and a circuit breaker; ids are reported as "tmdb:<id>".
type TMDBSource struct {
	baseURL string
	apiKey  string
	region  string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]Item]
	logger  zerolog.Logger
}

// TMDBConfig configures a TMDBSource.
type TMDBConfig struct {
	BaseURL           string
	APIKey            string
	Region            string
	RequestsPerSecond float64
	Timeout           time.Duration
}

const tmdbBreaker = "tmdb-trending"

// NewTMDBSource creates a TMDB trend source.
func NewTMDBSource(cfg TMDBConfig) *TMDBSource {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	logger := logging.Component("trend").With().Str("source", "tmdb").Logger()

	metrics.CircuitBreakerState.WithLabelValues(tmdbBreaker).Set(0)
	cb := gobreaker.NewCircuitBreaker[[]Item](gobreaker.Settings{
		Name:        tmdbBreaker,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &TMDBSource{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		region:  cfg.Region,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cb:      cb,
		logger:  logger,
	}
}

// Name implements Source.
func (s *TMDBSource) Name() string { return "tmdb" }

// Fetch implements Source.
func (s *TMDBSource) Fetch(ctx context.Context) ([]Item, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	items, err := s.cb.Execute(func() ([]Item, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(tmdbBreaker, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(tmdbBreaker, "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(tmdbBreaker, "success").Inc()
	return items, nil
}

type tmdbTrendingResponse struct {
	Results []struct {
		ID        int64  `json:"id"`
		Title     string `json:"title"`
		Name      string `json:"name"`
		MediaType string `json:"media_type"`
	} `json:"results"`
}

func (s *TMDBSource) fetch(ctx context.Context) ([]Item, error) {
	u, err := url.Parse(s.baseURL + "/trending/all/week")
	if err != nil {
		return nil, fmt.Errorf("tmdb base url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", s.apiKey)
	if s.region != "" {
		q.Set("region", s.region)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tmdb returned %d: %s", resp.StatusCode, body)
	}

	var payload tmdbTrendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("tmdb decode: %w", err)
	}

	items := make([]Item, 0, len(payload.Results))
	for i, r := range payload.Results {
		title := r.Title
		if title == "" {
			title = r.Name
		}
		items = append(items, Item{
			ContentID: "tmdb:" + strconv.FormatInt(r.ID, 10),
			Title:     title,
			Rank:      i + 1,
			Source:    "tmdb",
			Region:    s.region,
			Platform:  r.MediaType,
		})
	}
	s.logger.Debug().Int("items", len(items)).Msg("tmdb trending fetched")
	return items, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
