// Package diagnostics writes raw HTML snapshots of checked pages to disk.
package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Dumper stores HTML snapshots under Dir. Failures are logged and never
// returned.
type Dumper struct {
	Dir    string
	Logger zerolog.Logger
	now    func() time.Time
}

func NewDumper(dir string, logger zerolog.Logger) *Dumper {
	return &Dumper{Dir: dir, Logger: logger, now: time.Now}
}

// Dump writes html to <dir>/<site>_<suffix>_<timestamp>.html and returns the
// path, or "" if the write failed.
func (d *Dumper) Dump(site, suffix, html string) string {
	if d == nil || d.Dir == "" {
		return ""
	}

	logger := d.Logger.With().Str("site", site).Logger()

	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		logger.Warn().Err(err).Msg("failed to create dump directory")
		return ""
	}

	now := time.Now
	if d.now != nil {
		now = d.now
	}

	name := fmt.Sprintf("%s_%s_%s.html",
		unsafeChars.ReplaceAllString(site, "_"),
		unsafeChars.ReplaceAllString(suffix, "_"),
		now().Format("20060102_150405"),
	)
	path := filepath.Join(d.Dir, name)

	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		logger.Warn().Err(err).Msgf("failed to dump %s HTML", suffix)
		return ""
	}

	logger.Debug().Str("path", path).Msgf("dumped %s HTML", suffix)
	return path
}
