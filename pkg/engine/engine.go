package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dougsko/qamd/pkg/analysis"
	"github.com/dougsko/qamd/pkg/channel"
	"github.com/dougsko/qamd/pkg/compare"
	"github.com/dougsko/qamd/pkg/config"
	"github.com/dougsko/qamd/pkg/logging"
	"github.com/dougsko/qamd/pkg/protocol"
	"github.com/dougsko/qamd/pkg/qam"
	"github.com/dougsko/qamd/pkg/signal"
)

// Version of the codec engine
const Version = "0.1.0"

// SourceAPI marks jobs that did not come from a file
const SourceAPI = "api"

// Recorder persists finished jobs. *storage.JobStore satisfies it.
type Recorder interface {
	RecordJob(job protocol.Job) (int64, error)
}

// Noise describes the channel noise applied after modulation
type Noise struct {
	SNRDB float64
	// Seed for the noise generator; 0 picks a time-derived seed
	Seed int64
}

// ModulateResult is the outcome of a modulation
type ModulateResult struct {
	JobID        int64
	Signal       []complex128
	InputBytes   int
	TotalBits    int
	Bits         int
	Noise        *Noise
	EffectiveSNR float64 // measured after noise, dB
	Stats        analysis.Stats
	Paths        *Paths
	Duration     time.Duration
}

// DemodulateResult is the outcome of a demodulation
type DemodulateResult struct {
	JobID    int64
	Data     []byte
	Symbols  int
	Bits     int
	Report   *compare.Report
	Paths    *Paths
	Duration time.Duration
}

// Engine runs modulate and demodulate jobs
type Engine struct {
	config      *config.Config
	logger      *logging.Logger
	recorder    Recorder
	modulator   *qam.Modulator
	demodulator *qam.Demodulator
	codec       signal.Codec
	startTime   time.Time
	jobsRun     int64

	subMutex    sync.RWMutex
	subscribers map[chan protocol.Event]struct{}
}

// NewEngine creates a new engine. logger and recorder may be nil.
func NewEngine(cfg *config.Config, logger *logging.Logger, recorder Recorder) *Engine {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	opts := cfg.QAMOptions()
	return &Engine{
		config:      cfg,
		logger:      logger,
		recorder:    recorder,
		modulator:   qam.NewModulator(opts...),
		demodulator: qam.NewDemodulator(opts...),
		codec:       signal.Codec{DropPartialRecord: cfg.Codec.DropPartialRecord},
		startTime:   time.Now(),
		subscribers: make(map[chan protocol.Event]struct{}),
	}
}

// Codec returns the signal codec configured for this engine
func (e *Engine) Codec() signal.Codec {
	return e.codec
}

// Config returns the engine configuration
func (e *Engine) Config() *config.Config {
	return e.config
}

// Constellation returns the modulator constellation for bits, using the
// configured default when bits is 0
func (e *Engine) Constellation(bits int) (*qam.Constellation, error) {
	return e.modulator.Constellation(e.bits(bits))
}

func (e *Engine) bits(bits int) int {
	if bits == 0 {
		return e.config.Codec.BitsPerSymbol
	}
	return bits
}

// DefaultNoise returns the configured noise, or nil when noise is disabled
func (e *Engine) DefaultNoise() *Noise {
	if e.config.Noise.SNRDB == nil {
		return nil
	}
	return &Noise{SNRDB: *e.config.Noise.SNRDB, Seed: e.config.Noise.Seed}
}

// NoiseAt returns noise at snrDB with the configured seed
func (e *Engine) NoiseAt(snrDB float64) *Noise {
	return &Noise{SNRDB: snrDB, Seed: e.config.Noise.Seed}
}

// Status returns a snapshot of the engine state
func (e *Engine) Status() protocol.Status {
	e.subMutex.RLock()
	subscribers := len(e.subscribers)
	e.subMutex.RUnlock()

	return protocol.Status{
		Version:         Version,
		StartTime:       e.startTime,
		Uptime:          time.Since(e.startTime).Round(time.Second).String(),
		BitsPerSymbol:   e.config.Codec.BitsPerSymbol,
		RotationDegrees: e.config.Codec.RotationDegrees,
		Saturate:        e.config.Codec.Saturate,
		Workers:         e.config.Codec.Workers,
		JobsRun:         atomic.LoadInt64(&e.jobsRun),
		Subscribers:     subscribers,
		SymbolBuffers:   qam.BufferPoolStats(),
	}
}

// Modulate turns data into a signal, adding noise when noise is not nil
func (e *Engine) Modulate(ctx context.Context, data []byte, bits int, noise *Noise) (*ModulateResult, error) {
	job := protocol.Job{Mode: protocol.ModeModulate, Source: SourceAPI}
	result, err := e.modulate(ctx, data, e.bits(bits), noise, &job)
	e.finish(&job, err)
	if result != nil {
		result.JobID = job.ID
	}
	return result, err
}

func (e *Engine) modulate(ctx context.Context, data []byte, bits int, noise *Noise, job *protocol.Job) (*ModulateResult, error) {
	start := time.Now()
	job.BitsPerSymbol = bits
	job.InputBytes = len(data)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := e.modulator.Modulate(data, bits)
	if err != nil {
		return nil, err
	}
	e.logger.Debug(logging.ComponentCodec, "modulated", logging.Fields{
		"bytes":   len(data),
		"bits":    bits,
		"symbols": len(sig),
	})

	result := &ModulateResult{
		InputBytes: len(data),
		TotalBits:  len(data) * 8,
		Bits:       bits,
	}

	if noise != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seed := noise.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		clean := sig
		sig = channel.AddNoise(clean, noise.SNRDB, rand.New(rand.NewSource(seed)))

		snr := noise.SNRDB
		job.SNRDB = &snr
		result.Noise = &Noise{SNRDB: noise.SNRDB, Seed: seed}
		if len(sig) > 0 {
			result.EffectiveSNR, _ = analysis.EffectiveSNR(clean, sig)
		}
		e.logger.Debug(logging.ComponentCodec, "added channel noise", logging.Fields{
			"snr_db":    noise.SNRDB,
			"seed":      seed,
			"effective": fmt.Sprintf("%.2f", result.EffectiveSNR),
		})
	}

	result.Signal = sig
	result.Stats = analysis.Summarize(sig)
	result.Duration = time.Since(start)

	job.Symbols = len(sig)
	job.OutputBytes = len(sig) * signal.RecordSize
	job.DurationMS = result.Duration.Milliseconds()
	return result, nil
}

// ModulateFile modulates the file at path and writes the binary signal and
// the parameter CSV next to it
func (e *Engine) ModulateFile(ctx context.Context, path string, bits int, noise *Noise) (*ModulateResult, error) {
	job := protocol.Job{Mode: protocol.ModeModulate, Source: path, BitsPerSymbol: e.bits(bits)}
	result, err := e.modulateFile(ctx, path, e.bits(bits), noise, &job)
	e.finish(&job, err)
	if result != nil {
		result.JobID = job.ID
	}
	return result, err
}

func (e *Engine) modulateFile(ctx context.Context, path string, bits int, noise *Noise, job *protocol.Job) (*ModulateResult, error) {
	start := time.Now()

	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	e.logger.Info(logging.ComponentEngine, "modulating file", logging.Fields{
		"path": path,
		"bits": len(data) * 8,
	})

	result, err := e.modulate(ctx, data, bits, noise, job)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths := OutputPaths(path)
	if err := e.codec.SaveCSV(paths.Parameters, result.Signal, e.config.Codec.CSVMaxSymbols); err != nil {
		return nil, err
	}
	if err := e.codec.SaveFile(paths.Signal, result.Signal); err != nil {
		return nil, err
	}

	result.Paths = &paths
	result.Duration = time.Since(start)
	job.DurationMS = result.Duration.Milliseconds()

	e.logger.Info(logging.ComponentEngine, "modulation complete", logging.Fields{
		"symbols":  len(result.Signal),
		"signal":   paths.Signal,
		"duration": result.Duration,
	})
	return result, nil
}

// Demodulate recovers bytes from sig
func (e *Engine) Demodulate(ctx context.Context, sig []complex128, bits int) (*DemodulateResult, error) {
	job := protocol.Job{Mode: protocol.ModeDemodulate, Source: SourceAPI}
	result, err := e.demodulate(ctx, sig, e.bits(bits), &job)
	e.finish(&job, err)
	if result != nil {
		result.JobID = job.ID
	}
	return result, err
}

func (e *Engine) demodulate(ctx context.Context, sig []complex128, bits int, job *protocol.Job) (*DemodulateResult, error) {
	start := time.Now()
	job.BitsPerSymbol = bits
	job.Symbols = len(sig)
	job.InputBytes = len(sig) * signal.RecordSize

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := e.demodulator.Demodulate(sig, bits)
	if err != nil {
		return nil, err
	}
	e.logger.Debug(logging.ComponentCodec, "demodulated", logging.Fields{
		"symbols": len(sig),
		"bits":    bits,
		"bytes":   len(data),
	})

	result := &DemodulateResult{
		Data:     data,
		Symbols:  len(sig),
		Bits:     bits,
		Duration: time.Since(start),
	}
	job.OutputBytes = len(data)
	job.DurationMS = result.Duration.Milliseconds()
	return result, nil
}

// DemodulateFile loads the signal previously written for path, demodulates
// it, writes the recovered file and compares it against path
func (e *Engine) DemodulateFile(ctx context.Context, path string, bits int) (*DemodulateResult, error) {
	job := protocol.Job{Mode: protocol.ModeDemodulate, Source: path, BitsPerSymbol: e.bits(bits)}
	result, err := e.demodulateFile(ctx, path, e.bits(bits), &job)
	e.finish(&job, err)
	if result != nil {
		result.JobID = job.ID
	}
	return result, err
}

func (e *Engine) demodulateFile(ctx context.Context, path string, bits int, job *protocol.Job) (*DemodulateResult, error) {
	start := time.Now()

	original, err := readInput(path)
	if err != nil {
		return nil, err
	}

	paths := OutputPaths(path)
	sig, err := e.codec.LoadFile(paths.Signal)
	if err != nil {
		return nil, err
	}
	e.logger.Info(logging.ComponentEngine, "demodulating signal", logging.Fields{
		"signal":  paths.Signal,
		"symbols": len(sig),
	})

	result, err := e.demodulate(ctx, sig, bits, job)
	if err != nil {
		return nil, err
	}

	if e.config.Codec.TrimToOriginal && len(result.Data) > len(original) {
		result.Data = result.Data[:len(original)]
		job.OutputBytes = len(result.Data)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.WriteFile(paths.Demodulated, result.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write demodulated file: %w", err)
	}

	report := compare.Compare(original, result.Data)
	if err := report.SaveReport(paths.Report); err != nil {
		return nil, err
	}

	result.Report = &report
	result.Paths = &paths
	result.Duration = time.Since(start)

	job.Compared = true
	job.Mismatches = report.Mismatches
	job.MatchPercentage = report.MatchPercentage
	job.DurationMS = result.Duration.Milliseconds()

	e.logger.Info(logging.ComponentEngine, "demodulation complete", logging.Fields{
		"output":     paths.Demodulated,
		"mismatches": report.Mismatches,
		"match":      report.String(),
		"duration":   result.Duration,
	})
	return result, nil
}

// finish records the job and notifies subscribers
func (e *Engine) finish(job *protocol.Job, err error) {
	atomic.AddInt64(&e.jobsRun, 1)
	job.Timestamp = time.Now()
	job.Status = protocol.StatusOK
	if err != nil {
		job.Status = protocol.StatusFailed
		job.Error = err.Error()
		e.logger.Warn(logging.ComponentEngine, fmt.Sprintf("%s job failed: %v", job.Mode, err))
	}

	if e.recorder != nil {
		id, recErr := e.recorder.RecordJob(*job)
		if recErr != nil {
			e.logger.Error(logging.ComponentStorage, fmt.Sprintf("failed to record job: %v", recErr))
		} else {
			job.ID = id
		}
	}

	e.publish(protocol.NewJobEvent(*job))
}

// Subscribe registers for job events. The returned function unsubscribes.
// Events are dropped for subscribers that fall behind.
func (e *Engine) Subscribe() (<-chan protocol.Event, func()) {
	ch := make(chan protocol.Event, 16)

	e.subMutex.Lock()
	e.subscribers[ch] = struct{}{}
	e.subMutex.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMutex.Lock()
			delete(e.subscribers, ch)
			e.subMutex.Unlock()
			close(ch)
		})
	}
}

func (e *Engine) publish(event protocol.Event) {
	e.subMutex.RLock()
	defer e.subMutex.RUnlock()

	for ch := range e.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %s does not exist", qam.ErrMissingInput, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}
