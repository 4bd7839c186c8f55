package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"07/03/2026", " 7/3/2026 ", "2026-03-07"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	for _, in := range []string{"", "31/02/2026", "03-07-2026", "tomorrow"} {
		_, err := ParseDate(in)
		assert.Error(t, err, in)
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "07/03/2026", FormatDate(time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC)))
}
