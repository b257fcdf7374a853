package logs

import (
	"encoding/json"
	"strings"
)

// Filter selects log lines. Zero-valued fields match everything.
type Filter struct {
	Component     string
	CorrelationID string
	// Level is the minimum level: debug, info, warn, or error.
	Level  string
	Search string
}

// entry is the subset of a log line Filter inspects.
type entry struct {
	level     string
	component string
	message   string
	raw       string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "warning": 2, "error": 3}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool {
	return f.Component == "" && f.CorrelationID == "" && f.Level == "" && f.Search == ""
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	e := parseLine(line)
	if f.Level != "" {
		minimum, ok := levelRank[strings.ToLower(f.Level)]
		if ok && levelRank[e.level] < minimum {
			return false
		}
	}
	if f.Component != "" && !strings.EqualFold(e.component, f.Component) {
		return false
	}
	if f.CorrelationID != "" && !strings.Contains(e.raw, f.CorrelationID) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.message), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func parseLine(line string) entry {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			Level     string `json:"level"`
			Component string `json:"component"`
			Msg       string `json:"msg"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			return entry{
				level:     strings.ToLower(payload.Level),
				component: payload.Component,
				message:   payload.Msg,
				raw:       line,
			}
		}
	}

	// Console lines: "<date> <time> LEVEL [component:] message key=value..."
	e := entry{raw: line, message: line}
	fields := strings.Fields(trimmed)
	if len(fields) < 3 {
		return e
	}
	e.level = strings.ToLower(fields[2])
	rest := fields[3:]
	if len(rest) > 0 && strings.HasSuffix(rest[0], ":") {
		e.component = strings.TrimSuffix(rest[0], ":")
		rest = rest[1:]
	}
	e.message = strings.Join(rest, " ")
	return e
}
