package appkey

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// TestDerive covers each derivation rule and the order they are tried in
func TestDerive(t *testing.T) {
	tests := []struct {
		name    string
		process string
		title   string
		wantKey string
		wantURL string
	}{
		{
			name:    "browser with known site",
			process: "chrome.exe",
			title:   "lofi hip hop radio - YouTube - Google Chrome",
			wantKey: "chrome.exe (youtube.com)",
			wantURL: "youtube.com",
		},
		{
			name:    "browser brand does not count as google",
			process: "chrome.exe",
			title:   "Quarterly plan.docx - Google Chrome",
			wantKey: "chrome.exe (Browser: Quarterly plan.docx - Google Chrome)",
		},
		{
			name:    "gmail wins over google",
			process: "firefox",
			title:   "Inbox (3) - someone@gmail.com - Gmail — Mozilla Firefox",
			wantKey: "firefox (gmail.com)",
			wantURL: "gmail.com",
		},
		{
			name:    "google search",
			process: "msedge.exe",
			title:   "golang mutex - Google Search - Microsoft Edge",
			wantKey: "msedge.exe (google.com)",
			wantURL: "google.com",
		},
		{
			name:    "twitter maps to x",
			process: "brave",
			title:   "Home / X - Brave",
			wantKey: "brave (x.com)",
			wantURL: "x.com",
		},
		{
			name:    "domain ending in x.com is not x",
			process: "chrome",
			title:   "Netflix.com - Watch TV Shows Online - Google Chrome",
			wantKey: "chrome (netflix.com)",
			wantURL: "netflix.com",
		},
		{
			name:    "slash x inside a title is not x",
			process: "chrome",
			title:   "Docs / xkcd comic - Google Chrome",
			wantKey: "chrome (Browser: Docs / xkcd comic - Google Chrome)",
		},
		{
			name:    "case insensitive site match",
			process: "Firefox",
			title:   "STACK OVERFLOW - Where Developers Learn",
			wantKey: "Firefox (stackoverflow.com)",
			wantURL: "stackoverflow.com",
		},
		{
			name:    "browser fallback truncates title to 40 characters",
			process: "chrome.exe",
			title:   "An extremely long page title that keeps going and going",
			wantKey: "chrome.exe (Browser: An extremely long page title that keeps )",
		},
		{
			name:    "browser with empty title uses process",
			process: "chrome.exe",
			title:   "",
			wantKey: "chrome.exe",
		},
		{
			name:    "shell host uses leading title segment",
			process: "ApplicationFrameHost.exe",
			title:   "Calculator - Standard",
			wantKey: "Calculator",
		},
		{
			name:    "shell host without separator uses whole title",
			process: "electron",
			title:   "Obsidian",
			wantKey: "Obsidian",
		},
		{
			name:    "shell host with empty title uses process",
			process: "ApplicationFrameHost.exe",
			title:   "",
			wantKey: "ApplicationFrameHost.exe",
		},
		{
			name:    "plain process",
			process: "Code.exe",
			title:   "main.go - worktime-tracker - Visual Studio Code",
			wantKey: "Code.exe",
		},
		{
			name:    "unknown window",
			process: "Unknown",
			title:   "Unknown",
			wantKey: "Unknown",
		},
		{
			name:    "empty process",
			process: "",
			title:   "whatever",
			wantKey: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.process, tt.title)
			if got.AppKey != tt.wantKey {
				t.Errorf("Derive(%q, %q).AppKey = %q, want %q", tt.process, tt.title, got.AppKey, tt.wantKey)
			}
			if got.URL != tt.wantURL {
				t.Errorf("Derive(%q, %q).URL = %q, want %q", tt.process, tt.title, got.URL, tt.wantURL)
			}
		})
	}
}

// TestMatchSite checks the site table in isolation
func TestMatchSite(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Facebook", "facebook.com"},
		{"(2) LinkedIn", "linkedin.com"},
		{"pulls · golang/go · GitHub", "github.com"},
		{"r/golang - Reddit", "reddit.com"},
		{"Netflix", "netflix.com"},
		{"Amazon.com: Books", "amazon.com"},
		{"Instagram", "instagram.com"},
		{"Some blog - Google Chrome", ""},
		{"x.com", "x.com"},
		{"Post on x.com/golang", "x.com"},
		{"Elon (@elonmusk) / X", "x.com"},
		{"Netflix.com - Watch TV Shows Online - Google Chrome", "netflix.com"},
		{"Dropbox.com - Files - Mozilla Firefox", ""},
		{"Docs / xkcd comic - Google Chrome", ""},
		{"fedex.company portal", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MatchSite(tt.title); got != tt.want {
			t.Errorf("MatchSite(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

// TestDeriveDeterministic checks that derivation depends only on its inputs
func TestDeriveDeterministic(t *testing.T) {
	processes := append(append([]string{"Code.exe", "Unknown", "", "slack"}, Browsers...), ShellHosts...)

	rapid.Check(t, func(t *rapid.T) {
		process := rapid.SampledFrom(processes).Draw(t, "process")
		title := rapid.String().Draw(t, "title")

		first := Derive(process, title)
		second := Derive(process, title)
		if first != second {
			t.Fatalf("Derive(%q, %q) not deterministic: %+v vs %+v", process, title, first, second)
		}
		if first.AppKey == "" {
			t.Fatalf("Derive(%q, %q) returned empty AppKey", process, title)
		}
		if first.URL != "" && !strings.HasSuffix(first.AppKey, "("+first.URL+")") {
			t.Fatalf("AppKey %q does not carry URL %q", first.AppKey, first.URL)
		}
	})
}
