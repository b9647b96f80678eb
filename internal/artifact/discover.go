package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// ErrNoArtifacts means no dated CSV exists yet; the fetcher has to run first.
var ErrNoArtifacts = errors.New("no dated artifacts found")

var dateTokenRe = regexp.MustCompile(`_(\d{8})\.csv$`)

type candidate struct {
	path  string
	date  string
	clean bool
}

// Discover returns the newest dated batch artifact under baseDir. Clean
// artifacts win over raw ones with the same date token; the greatest date
// token wins overall; name order breaks any remaining tie, so the choice is
// deterministic for a given directory content.
func Discover(baseDir string) (string, error) {
	var cands []candidate
	cands = append(cands, scan(CleanDir(baseDir), "*_clean_*.csv", true)...)
	cands = append(cands, scan(RawDir(baseDir), "*_raw_*.csv", false)...)

	if len(cands) == 0 {
		return "", fmt.Errorf("%w under %s", ErrNoArtifacts, baseDir)
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best.path, nil
}

func better(a, b candidate) bool {
	if a.date != b.date {
		return a.date > b.date
	}
	if a.clean != b.clean {
		return a.clean
	}
	return filepath.Base(a.path) > filepath.Base(b.path)
}

func scan(dir, pattern string, clean bool) []candidate {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}
	out := make([]candidate, 0, len(matches))
	for _, path := range matches {
		m := dateTokenRe.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		out = append(out, candidate{path: path, date: m[1], clean: clean})
	}
	return out
}

// Prune removes dated artifacts in dir whose date token is older than maxAge
// relative to now. It returns how many files were removed.
func Prune(dir string, maxAge time.Duration, now time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, path := range matches {
		m := dateTokenRe.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		day, err := time.Parse("20060102", m[1])
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return removed, fmt.Errorf("remove %s: %w", path, err)
			}
			removed++
		}
	}
	return removed, nil
}
