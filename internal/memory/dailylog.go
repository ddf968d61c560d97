package memory

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/mcallaghan/moira/internal/store"
)

// ErrNoLog signals that no archived log exists for the requested date.
var ErrNoLog = errors.New("no log for that date")

// LogDateLayout names dated daily-log files.
const LogDateLayout = "2006-01-02"

var recallPattern = regexp.MustCompile(`(?i)about (.+?)(\?|$)`)

// DailyLog is the process-local staging area for turns pending archival.
// Chat handling appends; the midnight rollover flushes. Both paths take the
// same lock, so a flush never races an append.
type DailyLog struct {
	mu     sync.Mutex
	buffer []Turn
	paths  store.Paths
	parser *when.Parser
}

func NewDailyLog(paths store.Paths) *DailyLog {
	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)
	return &DailyLog{paths: paths, parser: parser}
}

// Append stages a turn for the next rollover.
func (d *DailyLog) Append(turn Turn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffer = append(d.buffer, turn)
}

// Len reports how many turns are staged.
func (d *DailyLog) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffer)
}

// Flush appends every staged turn to yesterday's dated log file and clears
// the buffer, returning the number of turns written. The rollover fires at
// local midnight, so the target is always the day that just ended. An empty
// buffer is a no-op and creates no file.
func (d *DailyLog) Flush(now time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.buffer) == 0 {
		return 0, nil
	}

	date := now.AddDate(0, 0, -1).Format(LogDateLayout)
	f, err := os.OpenFile(d.paths.LogFile(date), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open daily log %s: %w", date, err)
	}
	defer f.Close()

	for _, turn := range d.buffer {
		if _, err := fmt.Fprintf(f, "[%s] User: %s\n[%s] Moira: %s\n\n",
			turn.Timestamp, turn.User, turn.Timestamp, turn.Assistant); err != nil {
			return 0, fmt.Errorf("write daily log %s: %w", date, err)
		}
	}

	count := len(d.buffer)
	d.buffer = nil
	return count, nil
}

// Retrieve returns the raw archived log for a YYYY-MM-DD date.
func (d *DailyLog) Retrieve(date string) (string, error) {
	data, err := os.ReadFile(d.paths.LogFile(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoLog
		}
		return "", fmt.Errorf("read daily log %s: %w", date, err)
	}
	return string(data), nil
}

// ResolveDate extracts a natural-language date phrase from a recall question
// ("remember what we talked about last thursday?") and resolves it to a
// calendar date, preferring the past.
func (d *DailyLog) ResolveDate(question string, now time.Time) (string, bool) {
	if !strings.Contains(strings.ToLower(question), "remember what we talked about") {
		return "", false
	}
	m := recallPattern.FindStringSubmatch(question)
	if m == nil {
		return "", false
	}
	phrase := strings.TrimSpace(m[1])
	if phrase == "" {
		return "", false
	}

	r, err := d.parser.Parse(phrase, now)
	if err != nil || r == nil {
		return "", false
	}
	resolved := r.Time
	// The question is always about a past conversation; pull a
	// forward-resolved weekday back one week.
	if resolved.After(now) {
		resolved = resolved.AddDate(0, 0, -7)
	}
	return resolved.Format(LogDateLayout), true
}
