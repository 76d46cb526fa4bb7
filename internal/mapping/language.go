package mapping

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

const minDetectConfidence = 0.5

// DetectLanguage guesses the language of a title. Unreliable guesses and
// empty titles yield language.Und.
func DetectLanguage(title string) language.Tag {
	title = strings.TrimSpace(title)
	if title == "" {
		return language.Und
	}

	info := whatlanggo.Detect(title)
	if info.Script == nil || info.Confidence < minDetectConfidence {
		return language.Und
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return language.Und
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und
	}
	return tag
}
