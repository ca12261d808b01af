// Package gameweek maps wall-clock time to the bounded weekly window that
// free-prediction quotas reset on.
package gameweek

import (
	"strconv"
	"time"
)

// Config holds the season parameters. They come from configuration so the
// season boundaries live in exactly one place.
type Config struct {
	SeasonStart time.Time
	WeekLength  time.Duration
	MinWeek     int
	MaxWeek     int
	Prefix      string
}

// DefaultConfig matches a 38-week season starting on the given date.
func DefaultConfig(seasonStart time.Time) Config {
	return Config{
		SeasonStart: seasonStart,
		WeekLength:  7 * 24 * time.Hour,
		MinWeek:     1,
		MaxWeek:     38,
		Prefix:      "GW",
	}
}

// Calculator derives gameweek identifiers. It is pure: callers inject now.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) Calculator {
	if cfg.WeekLength <= 0 {
		cfg.WeekLength = 7 * 24 * time.Hour
	}
	if cfg.MinWeek <= 0 {
		cfg.MinWeek = 1
	}
	if cfg.MaxWeek <= 0 {
		cfg.MaxWeek = 38
	}
	if cfg.MaxWeek < cfg.MinWeek {
		cfg.MaxWeek = cfg.MinWeek
	}
	return Calculator{cfg: cfg}
}

// Index returns the gameweek number for now, clamped to [MinWeek, MaxWeek].
// Timestamps before the season start saturate at MinWeek and timestamps past
// the season end saturate at MaxWeek; the index never wraps into a new season.
func (c Calculator) Index(now time.Time) int {
	dayLen := 24 * time.Hour
	elapsedDays := int(now.Sub(c.cfg.SeasonStart) / dayLen)
	weekDays := int(c.cfg.WeekLength / dayLen)
	if weekDays <= 0 {
		weekDays = 7
	}
	week := (elapsedDays + weekDays - 1) / weekDays // ceil for non-negative
	if elapsedDays < 0 {
		week = c.cfg.MinWeek - 1
	}
	if week < c.cfg.MinWeek {
		return c.cfg.MinWeek
	}
	if week > c.cfg.MaxWeek {
		return c.cfg.MaxWeek
	}
	return week
}

// ID returns the canonical string identifier, e.g. "GW7".
func (c Calculator) ID(now time.Time) string {
	return c.cfg.Prefix + strconv.Itoa(c.Index(now))
}
