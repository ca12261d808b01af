// Package stats fetches match context from the API-Football service. Every
// lookup is best-effort: a failed sub-fetch degrades the corresponding field
// to a default instead of failing the whole request.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"server/internal/domain"
)

const (
	defaultBaseURL = "https://v3.football.api-sports.io"
	defaultLeague  = 39 // Premier League
	defaultTimeout = 15 * time.Second
	formWindow     = 5
)

// Provider is the surface handlers depend on.
type Provider interface {
	FetchMatchContext(ctx context.Context, homeID, awayID int) domain.MatchContext
	FetchUpcoming(ctx context.Context, n int) ([]domain.Fixture, error)
}

type Options struct {
	APIKey     string
	BaseURL    string
	League     int
	Season     int
	HTTPClient *http.Client
}

// Client talks to API-Football v3.
type Client struct {
	apiKey  string
	baseURL string
	league  int
	season  int
	client  *http.Client
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	league := opts.League
	if league == 0 {
		league = defaultLeague
	}
	season := opts.Season
	if season == 0 {
		season = time.Now().Year()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		league:  league,
		season:  season,
		client:  client,
	}
}

type teamRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type fixtureItem struct {
	Fixture struct {
		ID   int64     `json:"id"`
		Date time.Time `json:"date"`
	} `json:"fixture"`
	Teams struct {
		Home teamRef `json:"home"`
		Away teamRef `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

type fixturesEnvelope struct {
	Response []fixtureItem `json:"response"`
}

type statisticsEnvelope struct {
	Response struct {
		Team  teamRef `json:"team"`
		Goals struct {
			For struct {
				Total struct {
					Total *int `json:"total"`
				} `json:"total"`
			} `json:"for"`
			Against struct {
				Total struct {
					Total *int `json:"total"`
				} `json:"total"`
			} `json:"against"`
		} `json:"goals"`
	} `json:"response"`
}

// FetchMatchContext gathers head-to-head, recent form and season statistics
// for both teams. It never fails hard: with no API key or a dead upstream the
// caller still receives a defaulted, Degraded context.
func (c *Client) FetchMatchContext(ctx context.Context, homeID, awayID int) domain.MatchContext {
	if c.apiKey == "" {
		return domain.DefaultMatchContext(homeID, awayID)
	}

	mctx := domain.MatchContext{
		Home: domain.TeamStats{ID: homeID, Name: "Home"},
		Away: domain.TeamStats{ID: awayID, Name: "Away"},
	}

	if stats, err := c.teamStatistics(ctx, homeID); err == nil {
		mctx.Home = stats
	} else {
		mctx.Degraded = true
	}
	if stats, err := c.teamStatistics(ctx, awayID); err == nil {
		mctx.Away = stats
	} else {
		mctx.Degraded = true
	}

	if form, err := c.recentForm(ctx, homeID); err == nil {
		mctx.Home.RecentForm = form
	} else {
		mctx.Degraded = true
	}
	if form, err := c.recentForm(ctx, awayID); err == nil {
		mctx.Away.RecentForm = form
	} else {
		mctx.Degraded = true
	}

	if h2h, err := c.headToHead(ctx, homeID, awayID); err == nil {
		mctx.HeadToHead = h2h
	} else {
		mctx.Degraded = true
	}

	return mctx
}

// FetchUpcoming returns the next n fixtures for the configured league.
func (c *Client) FetchUpcoming(ctx context.Context, n int) ([]domain.Fixture, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("stats: missing api key: %w", domain.ErrProviderFailure)
	}
	if n <= 0 {
		n = 10
	}

	query := url.Values{}
	query.Set("league", strconv.Itoa(c.league))
	query.Set("season", strconv.Itoa(c.season))
	query.Set("next", strconv.Itoa(n))

	var out fixturesEnvelope
	if err := c.get(ctx, "/fixtures", query, &out); err != nil {
		return nil, err
	}

	fixtures := make([]domain.Fixture, 0, len(out.Response))
	for _, item := range out.Response {
		fixtures = append(fixtures, domain.Fixture{
			ID:       item.Fixture.ID,
			Date:     item.Fixture.Date,
			HomeID:   item.Teams.Home.ID,
			HomeName: item.Teams.Home.Name,
			AwayID:   item.Teams.Away.ID,
			AwayName: item.Teams.Away.Name,
		})
	}
	return fixtures, nil
}

func (c *Client) teamStatistics(ctx context.Context, teamID int) (domain.TeamStats, error) {
	query := url.Values{}
	query.Set("league", strconv.Itoa(c.league))
	query.Set("season", strconv.Itoa(c.season))
	query.Set("team", strconv.Itoa(teamID))

	var out statisticsEnvelope
	if err := c.get(ctx, "/teams/statistics", query, &out); err != nil {
		return domain.TeamStats{}, err
	}

	stats := domain.TeamStats{ID: teamID, Name: out.Response.Team.Name}
	if stats.Name == "" {
		stats.Name = "Unknown"
	}
	if total := out.Response.Goals.For.Total.Total; total != nil {
		stats.GoalsScored = *total
	}
	if total := out.Response.Goals.Against.Total.Total; total != nil {
		stats.GoalsConceded = *total
	}
	return stats, nil
}

// recentForm maps the team's last fixtures to W/D/L outcomes, oldest first.
func (c *Client) recentForm(ctx context.Context, teamID int) ([]domain.FormResult, error) {
	query := url.Values{}
	query.Set("team", strconv.Itoa(teamID))
	query.Set("league", strconv.Itoa(c.league))
	query.Set("last", strconv.Itoa(formWindow))

	var out fixturesEnvelope
	if err := c.get(ctx, "/fixtures", query, &out); err != nil {
		return nil, err
	}

	matches := out.Response
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Fixture.Date.Before(matches[j].Fixture.Date)
	})

	form := make([]domain.FormResult, 0, len(matches))
	for _, match := range matches {
		if match.Goals.Home == nil || match.Goals.Away == nil {
			continue
		}
		ours, theirs := *match.Goals.Home, *match.Goals.Away
		if match.Teams.Away.ID == teamID {
			ours, theirs = theirs, ours
		}
		switch {
		case ours > theirs:
			form = append(form, domain.FormWin)
		case ours < theirs:
			form = append(form, domain.FormLoss)
		default:
			form = append(form, domain.FormDraw)
		}
	}
	return form, nil
}

func (c *Client) headToHead(ctx context.Context, homeID, awayID int) (*domain.HeadToHead, error) {
	query := url.Values{}
	query.Set("h2h", fmt.Sprintf("%d-%d", homeID, awayID))

	var out fixturesEnvelope
	if err := c.get(ctx, "/fixtures/headtohead", query, &out); err != nil {
		return nil, err
	}
	if len(out.Response) == 0 {
		return nil, nil
	}

	matches := out.Response
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Fixture.Date.After(matches[j].Fixture.Date)
	})
	latest := matches[0]
	h2h := &domain.HeadToHead{
		Date:     latest.Fixture.Date,
		HomeTeam: latest.Teams.Home.Name,
		AwayTeam: latest.Teams.Away.Name,
	}
	if latest.Goals.Home != nil {
		h2h.HomeGoals = *latest.Goals.Home
	}
	if latest.Goals.Away != nil {
		h2h.AwayGoals = *latest.Goals.Away
	}
	return h2h, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("stats: build request: %w", err)
	}
	req.Header.Set("x-apisports-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stats: %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("stats: %s returned %d: %w", path, resp.StatusCode, domain.ErrProviderFailure)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stats: decode %s: %w", path, err)
	}
	return nil
}

var _ Provider = (*Client)(nil)
