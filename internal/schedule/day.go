package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Day is a canonical day of the week. The week starts on Sunday.
type Day int

const (
	Sunday Day = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// String returns the lowercase English day name.
func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("day(%d)", int(d))
	}
	return dayNames[d]
}

// Valid reports whether d is one of the seven canonical days.
func (d Day) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// MarshalText encodes the day by name.
func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day %d", int(d))
	}
	return []byte(dayNames[d]), nil
}

// UnmarshalText accepts any token ParseDay understands.
func (d *Day) UnmarshalText(text []byte) error {
	parsed, ok := ParseDay(string(text))
	if !ok {
		return fmt.Errorf("unrecognised day %q", string(text))
	}
	*d = parsed
	return nil
}

// numericDays is the legacy index table: 1 and 8 are alternate Sundays.
var numericDays = map[int]Day{
	0: Sunday,
	1: Sunday,
	2: Monday,
	3: Tuesday,
	4: Wednesday,
	5: Thursday,
	6: Friday,
	7: Saturday,
	8: Sunday,
}

// dayAliases maps folded tokens (accent-free, lowercase, alphanumeric only) to days.
// New locales are added here.
var dayAliases = map[string]Day{
	// English abbreviations
	"sun": Sunday, "mon": Monday, "tue": Tuesday, "tues": Tuesday, "wed": Wednesday,
	"thu": Thursday, "thur": Thursday, "thurs": Thursday, "fri": Friday, "sat": Saturday,

	// Vietnamese ordinal week: "thứ hai" (second day) is Monday, "chủ nhật" is Sunday.
	"chunhat": Sunday, "cn": Sunday,
	"thuhai": Monday, "t2": Monday,
	"thuba": Tuesday, "t3": Tuesday,
	"thutu": Wednesday, "t4": Wednesday,
	"thunam": Thursday, "t5": Thursday,
	"thusau": Friday, "t6": Friday,
	"thubay": Saturday, "t7": Saturday,
}

var (
	prefixDigitPattern = regexp.MustCompile(`^[a-z]+([0-9])$`)
	numericPattern     = regexp.MustCompile(`^[+-]?[0-9]+$`)
	accentStripper     = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// ParseDay resolves a day token. Resolution order: canonical English name, legacy numeric
// index 0-8, alias table, (letters)(digit) pattern, numeric modulo 7.
func ParseDay(token string) (Day, bool) {
	lowered := strings.ToLower(strings.TrimSpace(token))
	if lowered == "" {
		return 0, false
	}

	for i, name := range dayNames {
		if lowered == name {
			return Day(i), true
		}
	}

	if numericPattern.MatchString(lowered) {
		n, err := strconv.Atoi(lowered)
		if err == nil {
			if d, ok := numericDays[n]; ok {
				return d, true
			}
		}
	}

	key := fold(lowered)
	if d, ok := dayAliases[key]; ok {
		return d, true
	}

	if m := prefixDigitPattern.FindStringSubmatch(key); m != nil {
		switch digit := m[1][0] - '0'; {
		case digit >= 2 && digit <= 7:
			return Day(digit - 1), true
		case digit == 0 || digit == 1 || digit == 8:
			return Sunday, true
		}
	}

	if numericPattern.MatchString(lowered) {
		n, err := strconv.Atoi(lowered)
		if err == nil {
			return Day(((n % 7) + 7) % 7), true
		}
	}

	return 0, false
}

// fold strips diacritics and drops everything that is not a letter or digit.
func fold(s string) string {
	stripped, _, err := transform.String(accentStripper, s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if r == 'đ' {
			r = 'd'
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
