package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dougsko/qamd/pkg/config"
	"github.com/dougsko/qamd/pkg/logging"
	"github.com/dougsko/qamd/pkg/protocol"
	"github.com/dougsko/qamd/pkg/qam"
	"github.com/dougsko/qamd/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	mu   sync.Mutex
	jobs []protocol.Job
}

func (r *memoryRecorder) RecordJob(job protocol.Job) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return int64(len(r.jobs)), nil
}

func (r *memoryRecorder) last() protocol.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[len(r.jobs)-1]
}

func newTestEngine(t *testing.T, mutate func(cfg *config.Config)) (*Engine, *memoryRecorder) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	var logs bytes.Buffer
	logger := logging.NewWriterLogger(&logs, logging.LevelDebug, false)
	recorder := &memoryRecorder{}
	return NewEngine(cfg, logger, recorder), recorder
}

func writeInput(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestOutputPaths(t *testing.T) {
	dir := filepath.Join("data", "in")
	paths := OutputPaths(filepath.Join(dir, "photo.jpg"))

	assert.Equal(t, filepath.Join(dir, "photo_modulated.bin"), paths.Signal)
	assert.Equal(t, filepath.Join(dir, "photo_modulatedSignalParameters.csv"), paths.Parameters)
	assert.Equal(t, filepath.Join(dir, "photo_demodulated.jpg"), paths.Demodulated)
	assert.Equal(t, filepath.Join(dir, "photo_comparisonReport.txt"), paths.Report)

	bare := OutputPaths("README")
	assert.Equal(t, "README_modulated.bin", bare.Signal)
	assert.Equal(t, "README_demodulated", bare.Demodulated)
}

func TestFileRoundTrip(t *testing.T) {
	eng, recorder := newTestEngine(t, nil)
	ctx := context.Background()
	input := writeInput(t, "message.txt", []byte("Hello QAM"))

	mod, err := eng.ModulateFile(ctx, input, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 18, len(mod.Signal))
	assert.Equal(t, 72, mod.TotalBits)
	assert.Nil(t, mod.Noise)
	require.NotNil(t, mod.Paths)
	assert.FileExists(t, mod.Paths.Signal)
	assert.FileExists(t, mod.Paths.Parameters)

	info, err := os.Stat(mod.Paths.Signal)
	require.NoError(t, err)
	assert.Equal(t, int64(18*16), info.Size())

	csvData, err := os.ReadFile(mod.Paths.Parameters)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	assert.Equal(t, "Amplitude,Phase", strings.TrimSpace(lines[0]))
	assert.Len(t, lines, 19)

	job := recorder.last()
	assert.Equal(t, protocol.ModeModulate, job.Mode)
	assert.Equal(t, protocol.StatusOK, job.Status)
	assert.Equal(t, input, job.Source)
	assert.Equal(t, 18, job.Symbols)
	assert.Equal(t, int64(1), mod.JobID)

	demod, err := eng.DemodulateFile(ctx, input, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello QAM"), demod.Data)
	require.NotNil(t, demod.Report)
	assert.Equal(t, 0, demod.Report.Mismatches)
	assert.Equal(t, 100.0, demod.Report.MatchPercentage)

	recovered, err := os.ReadFile(demod.Paths.Demodulated)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello QAM"), recovered)

	report, err := os.ReadFile(demod.Paths.Report)
	require.NoError(t, err)
	assert.Contains(t, string(report), "Match Percentage: 100.00%")

	job = recorder.last()
	assert.Equal(t, protocol.ModeDemodulate, job.Mode)
	assert.True(t, job.Compared)
	assert.Equal(t, 9, job.OutputBytes)
}

func TestPaddedRecovery(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	t.Run("Keeps Padding", func(t *testing.T) {
		eng, _ := newTestEngine(t, nil)
		input := writeInput(t, "pad.bin", data)

		mod, err := eng.ModulateFile(context.Background(), input, 6, nil)
		require.NoError(t, err)
		assert.Equal(t, 6, len(mod.Signal))

		demod, err := eng.DemodulateFile(context.Background(), input, 6)
		require.NoError(t, err)
		assert.Equal(t, append(append([]byte{}, data...), 0x00), demod.Data)
		assert.Equal(t, 1, demod.Report.Mismatches)
		assert.InDelta(t, 80.0, demod.Report.MatchPercentage, 1e-9)
	})

	t.Run("Trim To Original", func(t *testing.T) {
		eng, _ := newTestEngine(t, func(cfg *config.Config) {
			cfg.Codec.TrimToOriginal = true
		})
		input := writeInput(t, "pad.bin", data)

		_, err := eng.ModulateFile(context.Background(), input, 6, nil)
		require.NoError(t, err)

		demod, err := eng.DemodulateFile(context.Background(), input, 6)
		require.NoError(t, err)
		assert.Equal(t, data, demod.Data)
		assert.True(t, demod.Report.Matches())
	})
}

func TestDefaultBits(t *testing.T) {
	eng, _ := newTestEngine(t, func(cfg *config.Config) {
		cfg.Codec.BitsPerSymbol = 8
	})

	result, err := eng.Modulate(context.Background(), []byte{1, 2, 3}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Bits)
	assert.Len(t, result.Signal, 3)

	c, err := eng.Constellation(0)
	require.NoError(t, err)
	assert.Equal(t, 256, c.Order())
}

func TestNoise(t *testing.T) {
	eng, recorder := newTestEngine(t, nil)
	data := bytes.Repeat([]byte{0x5A, 0xC3}, 512)

	first, err := eng.Modulate(context.Background(), data, 4, &Noise{SNRDB: 20, Seed: 42})
	require.NoError(t, err)
	second, err := eng.Modulate(context.Background(), data, 4, &Noise{SNRDB: 20, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, first.Signal, second.Signal)

	clean, err := eng.Modulate(context.Background(), data, 4, nil)
	require.NoError(t, err)
	assert.NotEqual(t, clean.Signal, first.Signal)

	require.NotNil(t, first.Noise)
	assert.Equal(t, int64(42), first.Noise.Seed)
	assert.InDelta(t, 20.0, first.EffectiveSNR, 1.0)

	job := recorder.jobs[0]
	require.NotNil(t, job.SNRDB)
	assert.Equal(t, 20.0, *job.SNRDB)

	t.Run("Time Seed", func(t *testing.T) {
		result, err := eng.Modulate(context.Background(), data, 4, &Noise{SNRDB: 10})
		require.NoError(t, err)
		assert.NotZero(t, result.Noise.Seed)
	})
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing Input", func(t *testing.T) {
		eng, recorder := newTestEngine(t, nil)
		missing := filepath.Join(t.TempDir(), "nope.txt")

		_, err := eng.ModulateFile(ctx, missing, 4, nil)
		assert.True(t, errors.Is(err, qam.ErrMissingInput))

		job := recorder.last()
		assert.Equal(t, protocol.StatusFailed, job.Status)
		assert.NotEmpty(t, job.Error)

		_, err = eng.DemodulateFile(ctx, missing, 4)
		assert.True(t, errors.Is(err, qam.ErrMissingInput))
	})

	t.Run("Missing Signal", func(t *testing.T) {
		eng, _ := newTestEngine(t, nil)
		input := writeInput(t, "alone.txt", []byte("x"))

		_, err := eng.DemodulateFile(ctx, input, 4)
		assert.True(t, errors.Is(err, qam.ErrMissingInput))
	})

	t.Run("Corrupt Signal", func(t *testing.T) {
		eng, _ := newTestEngine(t, nil)
		input := writeInput(t, "corrupt.txt", []byte("x"))
		require.NoError(t, os.WriteFile(OutputPaths(input).Signal, make([]byte, 17), 0644))

		_, err := eng.DemodulateFile(ctx, input, 4)
		assert.True(t, errors.Is(err, qam.ErrCorruptSignal))
	})

	t.Run("Odd Bits", func(t *testing.T) {
		eng, _ := newTestEngine(t, nil)

		_, err := eng.Modulate(ctx, []byte("x"), 3, nil)
		assert.True(t, errors.Is(err, qam.ErrInvalidParameter))
	})

	t.Run("Canceled", func(t *testing.T) {
		eng, recorder := newTestEngine(t, nil)
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := eng.Modulate(canceled, []byte("x"), 4, nil)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, protocol.StatusFailed, recorder.last().Status)

		_, err = eng.Demodulate(canceled, []complex128{0}, 4)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestSubscribe(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	events, unsubscribe := eng.Subscribe()
	assert.Equal(t, 1, eng.Status().Subscribers)

	_, err := eng.Modulate(context.Background(), []byte("hi"), 2, nil)
	require.NoError(t, err)

	event := <-events
	assert.Equal(t, protocol.EventJobCompleted, event.Type)
	require.NotNil(t, event.Job)
	assert.Equal(t, 8, event.Job.Symbols)

	_, err = eng.Modulate(context.Background(), []byte("hi"), 5, nil)
	require.Error(t, err)
	event = <-events
	assert.Equal(t, protocol.EventJobFailed, event.Type)

	unsubscribe()
	unsubscribe()
	_, open := <-events
	assert.False(t, open)

	status := eng.Status()
	assert.Equal(t, 0, status.Subscribers)
	assert.Equal(t, int64(2), status.JobsRun)
	assert.Equal(t, Version, status.Version)
}

func TestJobStoreRecorder(t *testing.T) {
	store, err := storage.NewJobStore(filepath.Join(t.TempDir(), "jobs.db"), 100)
	require.NoError(t, err)
	defer store.Close()

	cfg := config.Default()
	eng := NewEngine(cfg, logging.NewWriterLogger(&bytes.Buffer{}, logging.LevelInfo, false), store)

	result, err := eng.Modulate(context.Background(), []byte("stored"), 4, nil)
	require.NoError(t, err)
	require.NotZero(t, result.JobID)

	job, err := store.GetJob(result.JobID)
	require.NoError(t, err)
	assert.Equal(t, protocol.ModeModulate, job.Mode)
	assert.Equal(t, 12, job.Symbols)
	assert.Equal(t, SourceAPI, job.Source)
}
