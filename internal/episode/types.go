package episode

import "time"

// Episode is a catalog episode record as seen by the matcher.
type Episode struct {
	CatalogID             int64
	SeasonNumber          int
	EpisodeNumber         int
	AbsoluteEpisodeNumber *int
	AirDate               *time.Time
	Title                 string
	Monitored             bool
}

// Rule identifies which fallback condition produced a match.
type Rule int

const (
	RuleNone Rule = iota
	RuleAbsoluteNumber
	RuleTitleContains
	RuleEpisodeNumber
	RuleAirDate
)

func (r Rule) String() string {
	switch r {
	case RuleAbsoluteNumber:
		return "absolute-number"
	case RuleTitleContains:
		return "title-contains"
	case RuleEpisodeNumber:
		return "episode-number"
	case RuleAirDate:
		return "air-date"
	default:
		return "none"
	}
}
