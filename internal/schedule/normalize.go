package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Raw is a loosely structured schedule payload as stored on a class.
type Raw []byte

// Entry is one canonical schedule line. Start and End are "HH:MM" strings.
type Entry struct {
	Day   Day    `json:"day"`
	Start string `json:"startTime"`
	End   string `json:"endTime"`
}

var (
	dayKeys   = []string{"day", "dayOfWeek", "day_of_week", "weekday", "dow"}
	startKeys = []string{"startTime", "start_time", "start", "from", "fromTime"}
	endKeys   = []string{"endTime", "end_time", "end", "to", "toTime"}

	// listKeys are the object keys that may hold the entry array, in lookup order.
	listKeys = []string{"slots", "schedule", "schedules", "items", "entries", "sessions", "days"}
)

type payloadKind int

const (
	payloadUnknown payloadKind = iota
	payloadList
	payloadObject
)

// payload is the boundary parse result: the recognised shape plus its raw entries.
type payload struct {
	kind    payloadKind
	entries []json.RawMessage
}

// Normalize parses raw into canonical entries. It never fails: malformed entries are skipped.
func Normalize(raw Raw) []Entry {
	p := resolve(raw)
	if p.kind == payloadUnknown {
		return nil
	}
	result := make([]Entry, 0, len(p.entries))
	for _, item := range p.entries {
		if entry, ok := parseEntry(item); ok {
			result = append(result, entry)
		}
	}
	return result
}

// ToRaw renders entries back into the canonical array shape.
func ToRaw(entries []Entry) Raw {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return Raw("[]")
	}
	return Raw(data)
}

func resolve(raw Raw) payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return payload{}
	}

	// Some legacy rows hold the JSON document double-encoded as a string.
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return payload{}
		}
		inner = strings.TrimSpace(inner)
		if inner == "" || inner[0] == '"' {
			return payload{}
		}
		return resolve(Raw(inner))
	}

	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return payload{}
		}
		return payload{kind: payloadList, entries: list}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return payload{}
		}
		for _, key := range listKeys {
			value, ok := obj[key]
			if !ok {
				continue
			}
			var list []json.RawMessage
			if err := json.Unmarshal(value, &list); err == nil {
				return payload{kind: payloadObject, entries: list}
			}
		}
		if hasAny(obj, dayKeys) {
			return payload{kind: payloadObject, entries: []json.RawMessage{json.RawMessage(trimmed)}}
		}
	}
	return payload{}
}

func parseEntry(item json.RawMessage) (Entry, bool) {
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return Entry{}, false
	}

	dayToken, ok := firstDayToken(fields)
	if !ok {
		return Entry{}, false
	}
	day, ok := ParseDay(dayToken)
	if !ok {
		return Entry{}, false
	}

	start := firstString(fields, startKeys)
	end := firstString(fields, endKeys)
	if start == "" || end == "" {
		return Entry{}, false
	}

	return Entry{Day: day, Start: canonicalTime(start), End: canonicalTime(end)}, true
}

func firstDayToken(fields map[string]interface{}) (string, bool) {
	for _, key := range dayKeys {
		switch v := fields[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v, true
			}
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return strconv.FormatInt(n, 10), true
			}
			if f, err := v.Float64(); err == nil && f == float64(int64(f)) {
				return strconv.FormatInt(int64(f), 10), true
			}
		}
	}
	return "", false
}

func firstString(fields map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := fields[key].(string); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func hasAny(obj map[string]json.RawMessage, keys []string) bool {
	for _, key := range keys {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

// canonicalTime rewrites parseable times as zero-padded "HH:MM" and leaves others untouched.
func canonicalTime(s string) string {
	minutes, ok := ParseMinutes(s)
	if !ok {
		return s
	}
	return FormatMinutes(minutes)
}

// ParseMinutes converts "H:MM", "HH:MM" or "HH:MM:SS" into minutes since midnight (0..1439).
func ParseMinutes(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) > 2 || hour < 0 || hour > 23 {
		return 0, false
	}
	if len(parts[1]) != 2 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || len(parts[2]) != 2 || sec < 0 || sec > 59 {
			return 0, false
		}
	}
	return hour*60 + minute, true
}

// FormatMinutes renders minutes since midnight as "HH:MM".
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
