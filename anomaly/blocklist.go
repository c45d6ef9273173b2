package anomaly

import (
	"strings"

	"github.com/hostguardian/guardian/model"
)

// DefaultSuspiciousPathPatterns is the built-in, case-insensitive substring
// blocklist used by the SUSPICIOUS_PATH rule when the caller does not
// inject its own (spec.md §4.3 rule 6; resolved per SPEC_FULL.md open
// question: matching is case-insensitive substring, mirroring
// platform_utils.get_suspicious_path_patterns()'s "any(s in exe_path ...)"
// behavior from the original implementation).
var DefaultSuspiciousPathPatterns = []string{
	// Linux / POSIX
	"/tmp/",
	"/var/tmp/",
	"/dev/shm/",
	// Windows
	"\\temp\\",
	"\\appdata\\local\\temp\\",
	"\\windows\\temp\\",
}

// matchesBlocklist reports whether exePath matches any pattern, using
// case-insensitive substring matching.
func matchesBlocklist(exePath string, patterns []string) bool {
	if exePath == "" {
		return false
	}
	lower := strings.ToLower(exePath)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// matchesPersistence reports whether exePath appears (case-insensitively)
// in any persistence entry's command string (spec.md §4.3 rule 7).
func matchesPersistence(exePath string, entries []model.PersistenceEntry) bool {
	if exePath == "" {
		return false
	}
	lower := strings.ToLower(exePath)
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Command), lower) {
			return true
		}
	}
	return false
}
