package episode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnknownResolution is returned when a title carries no resolution token.
const UnknownResolution = "unknown"

var (
	absoluteEpisodePattern = regexp.MustCompile(`E(\d{1,3})`)
	resolutionPattern      = regexp.MustCompile(`\d{3,4}p`)
)

// ExtractAbsoluteEpisode returns the number following the first "E" that is
// directly followed by one to three digits.
func ExtractAbsoluteEpisode(title string) (int, bool) {
	m := absoluteEpisodePattern.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractResolution returns the first "720p"-style token, or UnknownResolution.
func ExtractResolution(title string) string {
	if token := resolutionPattern.FindString(title); token != "" {
		return token
	}
	return UnknownResolution
}

// FormatAirDate renders d as YYMMDD.
func FormatAirDate(d time.Time) string {
	return d.Format("060102")
}

// Match returns the first episode in list order satisfying any of the
// fallback conditions, together with the condition that held.
func Match(absolute int, title string, episodes []Episode) (Episode, Rule, bool) {
	for _, ep := range episodes {
		if rule := matchRule(absolute, title, ep); rule != RuleNone {
			return ep, rule, true
		}
	}
	return Episode{}, RuleNone, false
}

func matchRule(absolute int, title string, ep Episode) Rule {
	if ep.AbsoluteEpisodeNumber != nil && *ep.AbsoluteEpisodeNumber == absolute {
		return RuleAbsoluteNumber
	}
	// Plain digit containment: "Episode 170" matches 17.
	if strings.Contains(ep.Title, strconv.Itoa(absolute)) {
		return RuleTitleContains
	}
	if ep.EpisodeNumber == absolute {
		return RuleEpisodeNumber
	}
	if ep.AirDate != nil && strings.Contains(title, FormatAirDate(*ep.AirDate)) {
		return RuleAirDate
	}
	return RuleNone
}

// CanonicalTitle builds "<show>.SxxEyy.<resolution>".
func CanonicalTitle(show string, ep Episode, resolution string) string {
	return fmt.Sprintf("%s.S%02dE%02d.%s", show, ep.SeasonNumber, ep.EpisodeNumber, resolution)
}
