package window

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	t.Run("two full years", func(t *testing.T) {
		got := slices.Collect(Range(New(2016, 1), 2017))
		require.Len(t, got, 24)
		assert.Equal(t, New(2016, 1), got[0])
		assert.Equal(t, New(2017, 12), got[23])
		for i := 1; i < len(got); i++ {
			assert.Equal(t, got[i-1].Next(), got[i], "gap at %d", i)
		}
	})

	t.Run("mid year start", func(t *testing.T) {
		got := slices.Collect(Range(New(2018, 11), 2019))
		require.Len(t, got, 14)
		assert.Equal(t, New(2018, 11), got[0])
		assert.Equal(t, New(2019, 1), got[2])
	})

	t.Run("start after end year", func(t *testing.T) {
		assert.Empty(t, slices.Collect(Range(New(2020, 1), 2019)))
	})

	t.Run("restartable", func(t *testing.T) {
		seq := Range(New(2020, 10), 2020)
		assert.Equal(t, slices.Collect(seq), slices.Collect(seq))
	})

	t.Run("early stop", func(t *testing.T) {
		var seen []TimeWindow
		for w := range Range(New(2020, 1), 2030) {
			seen = append(seen, w)
			if len(seen) == 3 {
				break
			}
		}
		assert.Equal(t, []TimeWindow{New(2020, 1), New(2020, 2), New(2020, 3)}, seen)
	})
}

func TestNext(t *testing.T) {
	assert.Equal(t, New(2017, 1), New(2016, 12).Next())
	assert.Equal(t, New(2016, 7), New(2016, 6).Next())
}

func TestBefore(t *testing.T) {
	assert.True(t, New(2016, 12).Before(New(2017, 1)))
	assert.True(t, New(2016, 1).Before(New(2016, 2)))
	assert.False(t, New(2016, 2).Before(New(2016, 2)))
	assert.False(t, New(2017, 1).Before(New(2016, 12)))
}

func TestLastDay(t *testing.T) {
	tests := []struct {
		w    TimeWindow
		want int
	}{
		{New(2016, 2), 29},
		{New(2017, 2), 28},
		{New(2000, 2), 29},
		{New(1900, 2), 28},
		{New(2020, 4), 30},
		{New(2020, 12), 31},
	}
	for _, tt := range tests {
		t.Run(tt.w.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.LastDay().Day())
			assert.Equal(t, tt.w.Month, int(tt.w.LastDay().Month()))
			assert.Equal(t, 1, tt.w.FirstDay().Day())
		})
	}
}

func TestParse(t *testing.T) {
	w, err := Parse("2016-03")
	require.NoError(t, err)
	assert.Equal(t, New(2016, 3), w)
	assert.Equal(t, "2016-03", w.String())

	_, err = Parse("2016/03")
	assert.Error(t, err)
	_, err = Parse("2016-13")
	assert.Error(t, err)
}
