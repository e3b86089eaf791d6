package statusfile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/mistakeknot/briefq/internal/core"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether date is a YYYY-MM-DD string that parses to a
// real calendar day.
func ValidDate(date string) bool {
	if !dateRe.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// Writer persists rendered snapshots under a directory, one file per date.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Path returns the file location for a date's snapshot.
func (w *Writer) Path(date string) string {
	return filepath.Join(w.dir, date+".md")
}

// Write renders and atomically replaces the snapshot for one date. The
// temp-then-rename dance means a reader never sees a half-written file.
func (w *Writer) Write(date string, messages []core.Message, agents []core.Agent) error {
	if !ValidDate(date) {
		return fmt.Errorf("invalid date %q", date)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}

	content := Render(date, messages, agents, time.Now())
	tmp, err := os.CreateTemp(w.dir, "."+date+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close status file: %w", err)
	}
	if err := os.Rename(tmpPath, w.Path(date)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}
