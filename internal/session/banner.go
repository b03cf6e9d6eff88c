// internal/session/banner.go
package session

import "strings"

const delimiterWidth = 20

// Banner is the information the firmware prints while starting up
type Banner struct {
	Logo              []string `json:"logo,omitempty"`
	Info              []string `json:"info,omitempty"`
	ConfigFile        string   `json:"config_file,omitempty"`
	ConfigFilePresent bool     `json:"config_file_present"`
	Lines             []string `json:"lines"`
}

// ParseBanner extracts the title block and configuration file state from
// the startup lines. The title block opens with a line of '=' and closes
// with a line of '-'; a line containing " by " separates the logo from
// the software information.
func ParseBanner(lines []string) Banner {
	b := Banner{Lines: append([]string(nil), lines...)}

	start, mid, end := -1, -1, -1
	for i, l := range lines {
		switch {
		case start < 0 && isDelimiter(l, '='):
			start = i
		case start < 0 || end >= 0:
		case isDelimiter(l, '-'):
			end = i
		case strings.Contains(l, " by "):
			mid = i
		}
	}

	if start >= 0 && end > start {
		infoStart := start + 1
		if mid > start && mid < end {
			for _, l := range lines[start+1 : mid] {
				if !isBlank(l) {
					b.Logo = append(b.Logo, l)
				}
			}
			infoStart = mid
		}
		for _, l := range lines[infoStart:end] {
			if !isBlank(l) {
				b.Info = append(b.Info, strings.TrimSpace(l))
			}
		}
	}

	for _, l := range lines[end+1:] {
		lower := strings.ToLower(l)
		if strings.Contains(lower, "configuration file \"") {
			if parts := strings.Split(l, "\""); len(parts) > 1 {
				b.ConfigFile = strings.TrimSpace(parts[1])
			}
			b.ConfigFilePresent = !strings.Contains(lower, "not found")
			break
		}
		if strings.Contains(lower, "! error: no sd card present") {
			b.ConfigFilePresent = false
			break
		}
	}
	return b
}

func isDelimiter(line string, c byte) bool {
	return len(line) >= delimiterWidth && strings.Count(line[:delimiterWidth], string(c)) == delimiterWidth
}

func hasOpeningDelimiter(lines []string) bool {
	for _, l := range lines {
		if isDelimiter(l, '=') {
			return true
		}
	}
	return false
}
