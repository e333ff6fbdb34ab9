package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeArrayWithAliases(t *testing.T) {
	raw := Raw(`[
		{"day":"Monday","start_time":"9:00","end_time":"10:30"},
		{"dayOfWeek":3,"from":"13:00","to":"14:00"},
		{"day":"funday","start":"01:00","end":"02:00"},
		{"day":"friday","start":""},
		"not an object",
		{"weekday":"Thứ Sáu","fromTime":"07:30:00","toTime":"09:00"}
	]`)

	entries := Normalize(raw)
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Day: Monday, Start: "09:00", End: "10:30"}, entries[0])
	assert.Equal(t, Entry{Day: Tuesday, Start: "13:00", End: "14:00"}, entries[1])
	assert.Equal(t, Entry{Day: Friday, Start: "07:30", End: "09:00"}, entries[2])
}

func TestNormalizeObjectWithKeyedArray(t *testing.T) {
	raw := Raw(`{"timezone":"Asia/Ho_Chi_Minh","slots":[{"day":"T7","startTime":"18:00","endTime":"19:30"}]}`)

	entries := Normalize(raw)
	require.Len(t, entries, 1)
	assert.Equal(t, Saturday, entries[0].Day)
	assert.Equal(t, "18:00-19:30", entries[0].Range())
}

func TestNormalizeSingleEntryObjectAndDoubleEncoded(t *testing.T) {
	single := Normalize(Raw(`{"day":"sun","start":"08:00","end":"09:00"}`))
	require.Len(t, single, 1)
	assert.Equal(t, Sunday, single[0].Day)

	encoded := Normalize(Raw(`"[{\"day\":2,\"start\":\"08:00\",\"end\":\"09:00\"}]"`))
	require.Len(t, encoded, 1)
	assert.Equal(t, Monday, encoded[0].Day)
}

func TestNormalizeFirstNonEmptyFieldWins(t *testing.T) {
	entries := Normalize(Raw(`[{"day":"","dayOfWeek":"wed","startTime":"  ","start":"08:00","end_time":"09:15","end":"10:00"}]`))
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Day: Wednesday, Start: "08:00", End: "09:15"}, entries[0])
}

func TestNormalizeFloatDayIndex(t *testing.T) {
	entries := Normalize(Raw(`[{"day":2.0,"start":"08:00","end":"09:00"},{"day":2.5,"start":"08:00","end":"09:00"}]`))
	require.Len(t, entries, 1)
	assert.Equal(t, Monday, entries[0].Day)
}

func TestNormalizeMalformedPayloads(t *testing.T) {
	for _, raw := range []Raw{nil, Raw(""), Raw("null"), Raw("not json"), Raw(`{"foo":1}`), Raw(`{"slots":"x"}`), Raw(`42`), Raw(`"\"x\""`)} {
		assert.Empty(t, Normalize(raw), string(raw))
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []Raw{
		Raw(`[{"day":"Thứ Hai","start":"9:00","end":"10:30"},{"day":8,"start":"7:05","end":"8:00"}]`),
		Raw(`{"sessions":[{"dow":"fri","from":"noon","to":"13:00"}]}`),
		Raw(`[]`),
		Raw(`garbage`),
	}
	for _, raw := range inputs {
		first := Normalize(raw)
		again := Normalize(ToRaw(first))
		if len(first) == 0 {
			assert.Empty(t, again)
			continue
		}
		assert.Equal(t, first, again, string(raw))
	}
}

func TestToRawShape(t *testing.T) {
	raw := ToRaw([]Entry{{Day: Monday, Start: "09:00", End: "10:00"}})
	assert.JSONEq(t, `[{"day":"monday","startTime":"09:00","endTime":"10:00"}]`, string(raw))
	assert.JSONEq(t, `[]`, string(ToRaw(nil)))
}

func TestParseMinutes(t *testing.T) {
	cases := map[string]int{"00:00": 0, "9:05": 545, "23:59": 1439, "10:30:00": 630}
	for input, want := range cases {
		got, ok := ParseMinutes(input)
		require.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}
	for _, input := range []string{"24:00", "9", "9:5", "09:60", "ab:cd", "10:30:0", "", "100:00"} {
		_, ok := ParseMinutes(input)
		assert.False(t, ok, input)
	}
}
