package schedule

// Slot is a canonical weekly interval [StartMinute, EndMinute) on Day.
type Slot struct {
	Day         Day
	StartMinute int
	EndMinute   int
}

// Slot converts the entry into minutes. It fails for unparseable or empty ranges.
func (e Entry) Slot() (Slot, bool) {
	start, ok := ParseMinutes(e.Start)
	if !ok {
		return Slot{}, false
	}
	end, ok := ParseMinutes(e.End)
	if !ok || start >= end || !e.Day.Valid() {
		return Slot{}, false
	}
	return Slot{Day: e.Day, StartMinute: start, EndMinute: end}, true
}

// Range renders the entry as "HH:MM-HH:MM".
func (e Entry) Range() string {
	return FormatRange(e.Start, e.End)
}

// FormatRange joins two times into a display range.
func FormatRange(start, end string) string {
	return start + "-" + end
}

// Slots converts entries to slots, dropping the ones without a valid range.
func Slots(entries []Entry) []Slot {
	result := make([]Slot, 0, len(entries))
	for _, e := range entries {
		if s, ok := e.Slot(); ok {
			result = append(result, s)
		}
	}
	return result
}

// Overlaps reports whether two slots share a day and intersect. Touching endpoints do not overlap.
func Overlaps(a, b Slot) bool {
	return a.Day == b.Day && a.StartMinute < b.EndMinute && b.StartMinute < a.EndMinute
}

// EntriesOverlap is Overlaps over raw entries; an unparseable side never overlaps.
func EntriesOverlap(a, b Entry) bool {
	sa, ok := a.Slot()
	if !ok {
		return false
	}
	sb, ok := b.Slot()
	if !ok {
		return false
	}
	return Overlaps(sa, sb)
}

// Overlap pairs a candidate entry with the existing entry it collides with.
type Overlap struct {
	Candidate Entry
	Existing  Entry
}

// FindOverlaps returns every overlapping (candidate, existing) pair in input order.
func FindOverlaps(candidate, existing []Entry) []Overlap {
	var result []Overlap
	for _, c := range candidate {
		cs, ok := c.Slot()
		if !ok {
			continue
		}
		for _, e := range existing {
			es, ok := e.Slot()
			if !ok {
				continue
			}
			if Overlaps(cs, es) {
				result = append(result, Overlap{Candidate: c, Existing: e})
			}
		}
	}
	return result
}
