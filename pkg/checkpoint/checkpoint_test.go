package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/window"
)

func newTestManager(t *testing.T, codec Codec) (*Manager, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	path := filepath.Join(t.TempDir(), "state", "resume_status.txt")
	return NewManager(path, codec, log), log
}

func TestManagerRoundTrip(t *testing.T) {
	t.Run("pipe in progress", func(t *testing.T) {
		mgr, _ := newTestManager(t, PipeCodec{Begin: "*"})
		cp := &Checkpoint{Window: window.New(2016, 3), Processed: 150, Marker: "AoJwk4n2"}

		require.NoError(t, mgr.Save(cp))
		assert.Equal(t, cp, mgr.Load())
	})

	t.Run("comma in progress", func(t *testing.T) {
		mgr, _ := newTestManager(t, CommaCodec{})
		cp := &Checkpoint{Window: window.New(2020, 11), Marker: "PMC7654321"}

		require.NoError(t, mgr.Save(cp))
		assert.Equal(t, cp, mgr.Load())
	})

	t.Run("comma done", func(t *testing.T) {
		mgr, _ := newTestManager(t, CommaCodec{})
		cp := &Checkpoint{Window: window.New(2020, 12), Done: true}

		require.NoError(t, mgr.Save(cp))
		loaded := mgr.Load()
		assert.Equal(t, cp, loaded)
		assert.Equal(t, window.New(2021, 1), loaded.ResumeWindow())
	})

	t.Run("pipe done stores next window start", func(t *testing.T) {
		mgr, _ := newTestManager(t, PipeCodec{Begin: "*"})
		require.NoError(t, mgr.Save(&Checkpoint{Window: window.New(2016, 12), Processed: 99, Done: true}))

		data, err := os.ReadFile(mgr.Path())
		require.NoError(t, err)
		assert.Equal(t, "2017|1|0|*\n", string(data))

		loaded := mgr.Load()
		assert.Equal(t, &Checkpoint{Window: window.New(2017, 1), Marker: "*"}, loaded)
		assert.Equal(t, window.New(2017, 1), loaded.ResumeWindow())
	})
}

func TestManagerLoad(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		mgr, log := newTestManager(t, PipeCodec{Begin: "*"})
		assert.Nil(t, mgr.Load())
		assert.False(t, mgr.Exists())
		assert.Empty(t, log.GetMessagesByLevel("WARN"))
	})

	malformed := []string{
		"",
		"garbage",
		"2016|13|0|*",
		"2016|1|-4|*",
		"2016|1|x|*",
		"2016|1|0|",
		"twenty,1,PMC1",
	}
	for _, content := range malformed {
		t.Run("malformed "+content, func(t *testing.T) {
			codec := Codec(PipeCodec{Begin: "*"})
			if content == "twenty,1,PMC1" {
				codec = CommaCodec{}
			}
			mgr, log := newTestManager(t, codec)
			require.NoError(t, os.MkdirAll(filepath.Dir(mgr.Path()), 0755))
			require.NoError(t, os.WriteFile(mgr.Path(), []byte(content), 0644))

			assert.Nil(t, mgr.Load())
			assert.True(t, log.HasMessage("Checkpoint malformed, starting fresh"))
		})
	}
}

func TestManagerSaveIsAtomic(t *testing.T) {
	mgr, _ := newTestManager(t, PipeCodec{Begin: "*"})
	require.NoError(t, mgr.Save(&Checkpoint{Window: window.New(2016, 1), Processed: 50, Marker: "c1"}))

	// A leftover temp file from an interrupted save must not affect Load
	require.NoError(t, os.WriteFile(mgr.Path()+".tmp", []byte("2016|1|10"), 0644))
	assert.Equal(t, 50, mgr.Load().Processed)

	require.NoError(t, mgr.Save(&Checkpoint{Window: window.New(2016, 1), Processed: 100, Marker: "c2"}))
	_, err := os.Stat(mgr.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "c2", mgr.Load().Marker)
}

func TestManagerDelete(t *testing.T) {
	mgr, _ := newTestManager(t, CommaCodec{})
	require.NoError(t, mgr.Save(&Checkpoint{Window: window.New(2016, 1), Marker: "PMC1"}))
	assert.True(t, mgr.Exists())

	require.NoError(t, mgr.Delete())
	assert.False(t, mgr.Exists())
	assert.NoError(t, mgr.Delete())
}

func TestPipeCodecAcceptsLegacyDefault(t *testing.T) {
	cp, err := PipeCodec{Begin: "*"}.Decode("2016|1|0|*")
	require.NoError(t, err)
	assert.Equal(t, &Checkpoint{Window: window.New(2016, 1), Marker: "*"}, cp)
}

func TestCheckpointString(t *testing.T) {
	assert.Equal(t, "2016-05 done", (&Checkpoint{Window: window.New(2016, 5), Done: true}).String())
	assert.Contains(t, (&Checkpoint{Window: window.New(2016, 5), Processed: 3, Marker: "x"}).String(), "processed=3")
}
