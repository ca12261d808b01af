package domain

import "time"

// FormResult is a single W/D/L outcome from a team's recent fixtures.
type FormResult string

const (
	FormWin  FormResult = "W"
	FormDraw FormResult = "D"
	FormLoss FormResult = "L"
)

// TeamStats carries the season statistics used to build a prediction prompt.
type TeamStats struct {
	ID            int          `json:"id"`
	Name          string       `json:"name"`
	GoalsScored   int          `json:"goals_scored"`
	GoalsConceded int          `json:"goals_conceded"`
	RecentForm    []FormResult `json:"recent_form"`
}

// HeadToHead is the most recent meeting between the two teams, when known.
type HeadToHead struct {
	Date      time.Time `json:"date"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeGoals int       `json:"home_goals"`
	AwayGoals int       `json:"away_goals"`
}

// MatchContext is everything the statistics provider could gather about a
// fixture. Degraded is set when one or more upstream fetches failed and the
// corresponding fields hold defaults.
type MatchContext struct {
	Home       TeamStats   `json:"home"`
	Away       TeamStats   `json:"away"`
	HeadToHead *HeadToHead `json:"head_to_head,omitempty"`
	Degraded   bool        `json:"degraded"`
}

// DefaultMatchContext returns the fully-degraded context used when the
// statistics provider is unreachable.
func DefaultMatchContext(homeID, awayID int) MatchContext {
	return MatchContext{
		Home:     TeamStats{ID: homeID, Name: "Home"},
		Away:     TeamStats{ID: awayID, Name: "Away"},
		Degraded: true,
	}
}

// WinChances are integer percentages that always sum to 100.
type WinChances struct {
	Home int `json:"home"`
	Draw int `json:"draw"`
	Away int `json:"away"`
}

// Prediction is the outcome payload served to callers. Provider names the
// component that produced it ("openai" or "form").
type Prediction struct {
	Score      string     `json:"score"`
	WinChances WinChances `json:"win_chances"`
	BTTSPct    int        `json:"btts_pct"`
	Reasoning  string     `json:"reasoning"`
	Provider   string     `json:"provider"`
}

// Fixture is an upcoming match as reported by the statistics provider.
type Fixture struct {
	ID       int64     `json:"id"`
	Date     time.Time `json:"date"`
	HomeID   int       `json:"home_id"`
	HomeName string    `json:"home_name"`
	AwayID   int       `json:"away_id"`
	AwayName string    `json:"away_name"`
}
