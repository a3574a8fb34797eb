package role

// DefaultLogLines is how many lines a log book keeps
const DefaultLogLines = 20

// LogBook keeps the most recent human readable traffic lines
type LogBook struct {
	lines []string
	limit int
}

// NewLogBook creates a log book holding at most limit lines
func NewLogBook(limit int) *LogBook {
	if limit <= 0 {
		limit = DefaultLogLines
	}
	return &LogBook{limit: limit}
}

// Append adds a line, dropping the oldest one when full
func (l *LogBook) Append(line string) {
	l.lines = append(l.lines, line)
	if len(l.lines) > l.limit {
		l.lines = append([]string(nil), l.lines[len(l.lines)-l.limit:]...)
	}
}

// Lines returns a copy of the retained lines, oldest first
func (l *LogBook) Lines() []string {
	return append([]string(nil), l.lines...)
}
