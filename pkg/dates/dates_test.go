package dates

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInLocationFormats(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "space, microseconds, offset",
			input: "2025-08-11 18:32:03.312000+00:00",
			want:  time.Date(2025, 8, 11, 18, 32, 3, 312000000, time.UTC),
		},
		{
			name:  "space, microseconds, local",
			input: "2025-08-07 13:08:23.609608",
			want:  time.Date(2025, 8, 7, 13, 8, 23, 609608000, loc),
		},
		{
			name:  "space, offset",
			input: "2025-08-11 18:32:03-05:00",
			want:  time.Date(2025, 8, 11, 23, 32, 3, 0, time.UTC),
		},
		{
			name:  "space, local",
			input: "2025-08-07 13:08:23",
			want:  time.Date(2025, 8, 7, 13, 8, 23, 0, loc),
		},
		{
			name:  "iso, microseconds, local",
			input: "2025-08-13T13:58:11.628404",
			want:  time.Date(2025, 8, 13, 13, 58, 11, 628404000, loc),
		},
		{
			name:  "iso, milliseconds, local",
			input: "2025-08-13T13:58:11.628",
			want:  time.Date(2025, 8, 13, 13, 58, 11, 628000000, loc),
		},
		{
			name:  "iso, no fraction, local",
			input: "2025-08-13T13:58:11",
			want:  time.Date(2025, 8, 13, 13, 58, 11, 0, loc),
		},
		{
			name:  "date only",
			input: "2025-08-07",
			want:  time.Date(2025, 8, 7, 0, 0, 0, 0, loc),
		},
		{
			name:  "internet date-time with fraction",
			input: "2025-08-13T13:58:11.5+01:00",
			want:  time.Date(2025, 8, 13, 12, 58, 11, 500000000, time.UTC),
		},
		{
			name:  "internet date-time",
			input: "2025-08-13T13:58:11Z",
			want:  time.Date(2025, 8, 13, 13, 58, 11, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInLocation(tt.input, loc)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	for _, input := range []string{"not-a-date", "", "13/08/2025", "2025-13-45"} {
		_, err := ParseInLocation(input, time.UTC)
		require.Error(t, err, input)

		var perr *DateParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, input, perr.Value)
	}
}

func TestFormatEmitsUTC(t *testing.T) {
	ts := time.Date(2025, 8, 13, 15, 58, 11, 999, time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, "2025-08-13T13:58:11Z", Format(ts))
}

func TestTimeJSON(t *testing.T) {
	var payload struct {
		Due      *Time `json:"due"`
		Done     *Time `json:"done"`
		Start    Time  `json:"start"`
		Reminder Time  `json:"reminder"`
	}
	in := `{"due":"2025-08-11 18:32:03.312000+00:00","done":null,"start":"","reminder":"2025-08-13T13:58:11Z"}`
	require.NoError(t, json.Unmarshal([]byte(in), &payload))

	require.NotNil(t, payload.Due)
	assert.True(t, payload.Due.Equal(time.Date(2025, 8, 11, 18, 32, 3, 312000000, time.UTC)))
	assert.False(t, payload.Done.IsSet())
	assert.True(t, payload.Start.IsZero())

	out, err := json.Marshal(payload.Reminder)
	require.NoError(t, err)
	assert.Equal(t, `"2025-08-13T13:58:11Z"`, string(out))

	out, err = json.Marshal(Time{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestTimeJSONRejectsGarbage(t *testing.T) {
	var v Time
	err := json.Unmarshal([]byte(`"yesterday"`), &v)
	var perr *DateParseError
	require.True(t, errors.As(err, &perr))
}
