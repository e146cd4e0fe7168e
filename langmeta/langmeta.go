// Package langmeta provides the supported language registry (display
// names) used by the interactive menu and the CLI.
package langmeta

import "strings"

// Meta describes language display metadata.
type Meta struct {
	// Name is the English display name.
	Name string
	// Native is the language's own name for itself.
	Native string
}

// Supported lists the language codes offered by the menu, in menu order.
var Supported = []string{
	"en", "id", "es", "fr", "de", "pt", "ru", "zh",
	"ja", "ko", "ar", "hi", "it", "nl", "pl", "tr",
}

// Registry contains the supported language metadata.
var Registry = map[string]Meta{
	"en": {Name: "English", Native: "English"},
	"id": {Name: "Indonesian", Native: "Bahasa Indonesia"},
	"es": {Name: "Spanish", Native: "Español"},
	"fr": {Name: "French", Native: "Français"},
	"de": {Name: "German", Native: "Deutsch"},
	"pt": {Name: "Portuguese", Native: "Português"},
	"ru": {Name: "Russian", Native: "Русский"},
	"zh": {Name: "Chinese", Native: "中文"},
	"ja": {Name: "Japanese", Native: "日本語"},
	"ko": {Name: "Korean", Native: "한국어"},
	"ar": {Name: "Arabic", Native: "العربية"},
	"hi": {Name: "Hindi", Native: "हिन्दी"},
	"it": {Name: "Italian", Native: "Italiano"},
	"nl": {Name: "Dutch", Native: "Nederlands"},
	"pl": {Name: "Polish", Native: "Polski"},
	"tr": {Name: "Turkish", Native: "Türkçe"},
}

// Resolve looks up metadata for a language code. Locale variants fall
// back to their base language ("pt-BR" -> "pt"). Unknown codes yield a
// Meta with the code itself as the name.
func Resolve(code string) Meta {
	norm := strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if m, ok := Registry[norm]; ok {
		return m
	}
	if i := strings.IndexByte(norm, '-'); i > 0 {
		if m, ok := Registry[norm[:i]]; ok {
			return m
		}
	}
	return Meta{Name: code, Native: code}
}

// IsSupported reports whether code (or its base language) is in the
// supported set.
func IsSupported(code string) bool {
	norm := strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if _, ok := Registry[norm]; ok {
		return true
	}
	if i := strings.IndexByte(norm, '-'); i > 0 {
		_, ok := Registry[norm[:i]]
		return ok
	}
	return false
}
