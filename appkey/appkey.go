// Package appkey derives the canonical string that identifies one tracked
// application or website surface from a process name and window title.
//
// The rules are applied in order and the first match wins:
//
//  1. Shell hosts (UWP/Electron host processes) with a non-empty title are
//     keyed by the leading segment of the title before " - ".
//  2. Browsers are keyed as "<process> (<domain>)" when the title mentions a
//     known site, and "<process> (Browser: <title prefix>)" otherwise.
//  3. Everything else is keyed by the process name.
//
// Example usage:
//
//	key := appkey.Derive("chrome.exe", "Lo-fi beats - YouTube - Google Chrome")
//	// key.AppKey == "chrome.exe (youtube.com)", key.URL == "youtube.com"
package appkey

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Unknown is the key used when the foreground window cannot be identified.
const Unknown = "Unknown"

// browserTitlePrefixLen is the number of title characters kept in the
// fallback browser key.
const browserTitlePrefixLen = 40

// Site maps title fragments to a display domain. Patterns match anywhere,
// Tokens only between non-alphanumeric boundaries, Suffixes only at the end
// of the page title.
type Site struct {
	Domain   string
	Patterns []string
	Tokens   []string
	Suffixes []string
}

// ShellHosts are process names that host other applications' windows.
var ShellHosts = []string{
	"applicationframehost.exe",
	"applicationframehost",
	"electron",
	"electron.exe",
}

// Browsers are process names treated as web browsers.
var Browsers = []string{
	"chrome.exe", "chrome", "google-chrome", "chromium", "chromium-browser",
	"firefox.exe", "firefox", "firefox-esr",
	"msedge.exe", "msedge", "microsoft-edge",
	"brave.exe", "brave", "brave-browser",
	"opera.exe", "opera",
	"vivaldi.exe", "vivaldi", "vivaldi-bin",
	"safari",
}

// Sites is the fixed domain table. Order is significant: gmail must be tried
// before google.
var Sites = []Site{
	{Domain: "facebook.com", Patterns: []string{"facebook"}},
	{Domain: "youtube.com", Patterns: []string{"youtube"}},
	{Domain: "gmail.com", Patterns: []string{"gmail"}},
	{Domain: "google.com", Patterns: []string{"google"}},
	{Domain: "x.com", Patterns: []string{"twitter"}, Tokens: []string{"x.com"}, Suffixes: []string{" / x"}},
	{Domain: "linkedin.com", Patterns: []string{"linkedin"}},
	{Domain: "github.com", Patterns: []string{"github"}},
	{Domain: "instagram.com", Patterns: []string{"instagram"}},
	{Domain: "reddit.com", Patterns: []string{"reddit"}},
	{Domain: "stackoverflow.com", Patterns: []string{"stack overflow", "stackoverflow"}},
	{Domain: "netflix.com", Patterns: []string{"netflix"}},
	{Domain: "amazon.com", Patterns: []string{"amazon"}},
}

// browserSuffixes are brand suffixes appended to page titles by browsers.
var browserSuffixes = []string{
	" - google chrome",
	" - chromium",
	" - mozilla firefox",
	" — mozilla firefox",
	" - microsoft edge",
	" - brave",
	" - opera",
	" - vivaldi",
}

// Key is the result of deriving an AppKey.
type Key struct {
	AppKey string
	// URL is the matched site domain, or empty when no site matched.
	URL string
}

// Derive computes the AppKey for a process name and window title. It is a
// pure function of its arguments.
func Derive(processName, windowTitle string) Key {
	process := strings.TrimSpace(processName)
	title := strings.TrimSpace(windowTitle)

	if process == "" {
		return Key{AppKey: Unknown}
	}

	if IsShellHost(process) && title != "" {
		return Key{AppKey: leadingSegment(title)}
	}

	if IsBrowser(process) && title != "" {
		if domain := MatchSite(title); domain != "" {
			return Key{AppKey: process + " (" + domain + ")", URL: domain}
		}
		return Key{AppKey: process + " (Browser: " + prefix(title, browserTitlePrefixLen) + ")"}
	}

	return Key{AppKey: process}
}

// IsShellHost reports whether the process is a known shell host.
func IsShellHost(process string) bool {
	return contains(ShellHosts, strings.ToLower(process))
}

// IsBrowser reports whether the process is a known browser.
func IsBrowser(process string) bool {
	return contains(Browsers, strings.ToLower(process))
}

// MatchSite returns the domain of the first site whose pattern appears in the
// title (case-insensitive), or "" when none does.
func MatchSite(title string) string {
	page := stripBrowserSuffix(strings.ToLower(strings.TrimSpace(title)))
	for _, site := range Sites {
		if site.matches(page) {
			return site.Domain
		}
	}
	return ""
}

func (s Site) matches(page string) bool {
	for _, pattern := range s.Patterns {
		if strings.Contains(page, pattern) {
			return true
		}
	}
	for _, token := range s.Tokens {
		if containsToken(page, token) {
			return true
		}
	}
	for _, suffix := range s.Suffixes {
		if strings.HasSuffix(page, suffix) {
			return true
		}
	}
	return false
}

// containsToken reports whether token occurs in s with no letter or digit
// directly before or after it.
func containsToken(s, token string) bool {
	for offset := 0; offset <= len(s)-len(token); {
		i := strings.Index(s[offset:], token)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(token)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !isAlnum(before)) && (end == len(s) || !isAlnum(after)) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func stripBrowserSuffix(title string) string {
	for _, suffix := range browserSuffixes {
		if strings.HasSuffix(title, suffix) {
			return strings.TrimSuffix(title, suffix)
		}
	}
	return title
}

func leadingSegment(title string) string {
	segment, _, _ := strings.Cut(title, " - ")
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return title
	}
	return segment
}

// prefix returns at most n runes of s.
func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// Window is the normalized identity of a foreground window.
type Window struct {
	ProcessName string
	Title       string
	AppKey      string
	URL         string
}

// UnknownWindow is reported when the foreground window cannot be resolved.
var UnknownWindow = Window{
	ProcessName: Unknown,
	Title:       Unknown,
	AppKey:      Unknown,
}

// Identify builds a Window from raw process and title values.
func Identify(processName, windowTitle string) Window {
	key := Derive(processName, windowTitle)
	return Window{
		ProcessName: processName,
		Title:       windowTitle,
		AppKey:      key.AppKey,
		URL:         key.URL,
	}
}
