// Package normalize cleans up metadata values coming from external providers.
package normalize

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// bibliographicCodes maps ISO 639-2/B codes that differ from their /T form.
//
//nolint:gochecknoglobals // Static lookup table
var bibliographicCodes = map[string]string{
	"alb": "sq", "arm": "hy", "baq": "eu", "bur": "my", "chi": "zh",
	"cze": "cs", "dut": "nl", "fre": "fr", "geo": "ka", "ger": "de",
	"gre": "el", "ice": "is", "mac": "mk", "may": "ms", "per": "fa",
	"rum": "ro", "slo": "sk", "tib": "bo", "wel": "cy",
}

// languageNames maps English language names to ISO 639-1 codes.
//
//nolint:gochecknoglobals // Static lookup table
var languageNames = map[string]string{
	"english": "en", "spanish": "es", "french": "fr", "german": "de",
	"italian": "it", "portuguese": "pt", "dutch": "nl", "russian": "ru",
	"japanese": "ja", "chinese": "zh", "mandarin": "zh", "korean": "ko",
	"arabic": "ar", "hindi": "hi", "polish": "pl", "swedish": "sv",
	"norwegian": "no", "danish": "da", "finnish": "fi", "turkish": "tr",
	"greek": "el", "hebrew": "he", "czech": "cs", "hungarian": "hu",
	"romanian": "ro", "ukrainian": "uk", "catalan": "ca", "persian": "fa",
	"farsi": "fa", "vietnamese": "vi", "indonesian": "id", "latin": "la",
}

// LanguageCode converts a provider language value to an ISO 639-1 code.
// It accepts two- and three-letter codes ("en", "eng", "ger"), locale tags
// ("en-US", "pt_BR") and English names ("English"). Values that have no
// two-letter code return "".
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "\x00", "")))
	if s == "" {
		return ""
	}

	if code, ok := languageNames[s]; ok {
		return code
	}

	if idx := strings.IndexAny(s, "-_"); idx > 0 {
		s = s[:idx]
	}
	if code, ok := bibliographicCodes[s]; ok {
		return code
	}

	base, err := language.ParseBase(s)
	if err != nil {
		return ""
	}
	if code := base.String(); len(code) == 2 {
		return code
	}
	return ""
}

// LanguageName returns the English display name for a language value, or "".
func LanguageName(raw string) string {
	code := LanguageCode(raw)
	if code == "" {
		return ""
	}
	return display.English.Languages().Name(language.Make(code))
}
