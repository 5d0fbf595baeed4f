package harvest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"pmcharvest/pkg/fetch"
	"pmcharvest/pkg/window"
)

func TestTally(t *testing.T) {
	var tally Tally
	for _, s := range []fetch.Status{fetch.Downloaded, fetch.Downloaded, fetch.Skipped, fetch.Failed} {
		tally.Add(s)
	}
	assert.Equal(t, Tally{Downloaded: 2, Skipped: 1, Failed: 1}, tally)

	tally.Merge(Tally{Downloaded: 1, Unidentified: 4})
	assert.Equal(t, Tally{Downloaded: 3, Skipped: 1, Failed: 1, Unidentified: 4}, tally)
}

func TestSummaryAdd(t *testing.T) {
	var s Summary
	s.add(WindowReport{Window: window.New(2016, 1), State: WindowComplete, Tally: Tally{Downloaded: 3}})
	s.add(WindowReport{Window: window.New(2016, 2), State: WindowEmpty})
	s.add(WindowReport{Window: window.New(2016, 3), State: WindowAborted, Err: errors.New("boom"), Tally: Tally{Failed: 1}})

	assert.Equal(t, 1, s.Complete)
	assert.Equal(t, 1, s.Empty)
	assert.Equal(t, 1, s.Aborted)
	assert.Equal(t, Tally{Downloaded: 3, Failed: 1}, s.Tally)
	assert.Len(t, s.Windows, 3)
}
