package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one decoded line of basket's JSON log.
type Entry struct {
	Time      time.Time
	Level     zerolog.Level
	Component string
	Message   string
	Fields    map[string]any
	// Raw is the undecoded line; set for every entry, including lines that
	// were not JSON.
	Raw string
}

// Read returns at most maxLines entries from the end of the file at path whose
// level is at least minLevel. Lines that are not JSON are kept at NoLevel and only
// pass a filter of zerolog.TraceLevel or lower. A missing file yields no entries.
func Read(path string, maxLines int, minLevel zerolog.Level) ([]Entry, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = file.Close() }()

	ring := make([]Entry, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	idx := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := Parse(line)
		if !passes(entry.Level, minLevel) {
			continue
		}
		ring[idx] = entry
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	entries := make([]Entry, count)
	if count == maxLines {
		for i := range count {
			entries[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(entries, ring[:count])
	}
	return entries, nil
}

func passes(level, minLevel zerolog.Level) bool {
	if level == zerolog.NoLevel {
		return minLevel <= zerolog.TraceLevel
	}
	return level >= minLevel
}

// Parse decodes a single zerolog JSON line. Anything else comes back with
// only Raw and Message set.
func Parse(line string) Entry {
	entry := Entry{Raw: line, Level: zerolog.NoLevel, Message: line}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return entry
	}

	entry.Message = ""
	if v, ok := fields[zerolog.LevelFieldName].(string); ok {
		if lvl, err := zerolog.ParseLevel(v); err == nil {
			entry.Level = lvl
		}
		delete(fields, zerolog.LevelFieldName)
	}
	if v, ok := fields[zerolog.MessageFieldName].(string); ok {
		entry.Message = v
		delete(fields, zerolog.MessageFieldName)
	}
	if v, ok := fields[zerolog.TimestampFieldName].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			entry.Time = ts
		}
		delete(fields, zerolog.TimestampFieldName)
	}
	if v, ok := fields["cmp"].(string); ok {
		entry.Component = v
		delete(fields, "cmp")
	}
	entry.Fields = fields
	return entry
}

// Format renders an entry as a single human-readable line:
//
//	15:04:05 WRN [cart] fetch header failed err="boom" op=header
func Format(e Entry) string {
	if e.Level == zerolog.NoLevel && e.Fields == nil {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format(time.TimeOnly))
		b.WriteByte(' ')
	}
	b.WriteString(levelTag(e.Level))
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	if e.Message != "" {
		b.WriteByte(' ')
		b.WriteString(e.Message)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := e.Fields[k].(type) {
		case string:
			fmt.Fprintf(&b, " %s=%q", k, v)
		default:
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	return b.String()
}

func levelTag(level zerolog.Level) string {
	switch level {
	case zerolog.TraceLevel:
		return "TRC"
	case zerolog.DebugLevel:
		return "DBG"
	case zerolog.InfoLevel:
		return "INF"
	case zerolog.WarnLevel:
		return "WRN"
	case zerolog.ErrorLevel:
		return "ERR"
	case zerolog.FatalLevel:
		return "FTL"
	case zerolog.PanicLevel:
		return "PNC"
	default:
		return "???"
	}
}
