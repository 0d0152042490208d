package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/qamd/pkg/analysis"
	"github.com/dougsko/qamd/pkg/engine"
	"github.com/dougsko/qamd/pkg/logging"
	"github.com/dougsko/qamd/pkg/protocol"
	"github.com/dougsko/qamd/pkg/qam"
	"github.com/dougsko/qamd/pkg/storage"
)

// Headers set on binary responses
const (
	HeaderSymbolCount = "X-Symbol-Count"
	HeaderByteCount   = "X-Byte-Count"
	HeaderJobID       = "X-Job-ID"
	HeaderNoiseSeed   = "X-Noise-Seed"
)

const defaultJobLimit = 50

// errorStatus maps codec errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, qam.ErrInvalidParameter), errors.Is(err, qam.ErrUnsupportedMode):
		return http.StatusBadRequest
	case errors.Is(err, qam.ErrCorruptSignal):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrJobNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), protocol.NewErrorResponse(err.Error()))
}

// bitsParam reads ?bits= or ?qam=; 0 means the configured default
func bitsParam(c *gin.Context) (int, error) {
	if mode := c.Query("qam"); mode != "" {
		return qam.ParseQAMMode(mode)
	}

	bitsStr := c.Query("bits")
	if bitsStr == "" {
		return 0, nil
	}
	bits, err := strconv.Atoi(bitsStr)
	if err != nil {
		return 0, fmt.Errorf("%w: bits must be an integer, got %q", qam.ErrInvalidParameter, bitsStr)
	}
	if bits <= 0 {
		return 0, fmt.Errorf("%w: bits must be positive, got %d", qam.ErrInvalidParameter, bits)
	}
	return bits, nil
}

// noiseParam reads ?snr= and ?seed=. Without snr the configured noise is
// used; snr=none disables it.
func (d *QAMDaemon) noiseParam(c *gin.Context) (*engine.Noise, error) {
	snrStr := strings.TrimSpace(c.Query("snr"))

	var noise *engine.Noise
	switch {
	case snrStr == "":
		noise = d.engine.DefaultNoise()
	case strings.EqualFold(snrStr, "none"):
		return nil, nil
	default:
		snr, err := strconv.ParseFloat(snrStr, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: snr must be a number or \"none\", got %q", qam.ErrInvalidParameter, snrStr)
		}
		noise = d.engine.NoiseAt(snr)
	}

	if seedStr := c.Query("seed"); seedStr != "" && noise != nil {
		seed, err := strconv.ParseInt(seedStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: seed must be an integer, got %q", qam.ErrInvalidParameter, seedStr)
		}
		noise.Seed = seed
	}

	return noise, nil
}

// readSignal decodes a binary signal from the request body
func (d *QAMDaemon) readSignal(c *gin.Context) ([]complex128, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return d.engine.Codec().Decode(body)
}

// handleGetStatus returns engine status
func (d *QAMDaemon) handleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, d.engine.Status())
}

// handleModulate modulates the request body and returns the binary signal
func (d *QAMDaemon) handleModulate(c *gin.Context) {
	bits, err := bitsParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	noise, err := d.noiseParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to read request body: %w", err))
		return
	}

	result, err := d.engine.Modulate(c.Request.Context(), data, bits, noise)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header(HeaderSymbolCount, strconv.Itoa(len(result.Signal)))
	c.Header(HeaderJobID, strconv.FormatInt(result.JobID, 10))
	if result.Noise != nil {
		c.Header(HeaderNoiseSeed, strconv.FormatInt(result.Noise.Seed, 10))
	}
	c.Data(http.StatusOK, "application/octet-stream", d.engine.Codec().Encode(result.Signal))
}

// handleDemodulate demodulates a binary signal and returns the bytes
func (d *QAMDaemon) handleDemodulate(c *gin.Context) {
	bits, err := bitsParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	signal, err := d.readSignal(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	result, err := d.engine.Demodulate(c.Request.Context(), signal, bits)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header(HeaderByteCount, strconv.Itoa(len(result.Data)))
	c.Header(HeaderJobID, strconv.FormatInt(result.JobID, 10))
	c.Data(http.StatusOK, "application/octet-stream", result.Data)
}

// handleParameters exports the amplitude/phase CSV of a binary signal
func (d *QAMDaemon) handleParameters(c *gin.Context) {
	maxSymbols := d.config.Codec.CSVMaxSymbols
	if maxStr := c.Query("max"); maxStr != "" {
		n, err := strconv.Atoi(maxStr)
		if err != nil || n < 0 {
			abortWithError(c, fmt.Errorf("%w: max must be a non-negative integer, got %q", qam.ErrInvalidParameter, maxStr))
			return
		}
		maxSymbols = n
	}

	signal, err := d.readSignal(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := d.engine.Codec().WriteCSV(&buf, signal, maxSymbols); err != nil {
		abortWithError(c, err)
		return
	}

	c.Header(HeaderSymbolCount, strconv.Itoa(len(signal)))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// handleSpectrum returns power statistics and the spectrum of a signal
func (d *QAMDaemon) handleSpectrum(c *gin.Context) {
	size := 0
	if sizeStr := c.Query("size"); sizeStr != "" {
		n, err := strconv.Atoi(sizeStr)
		if err != nil {
			abortWithError(c, fmt.Errorf("%w: size must be an integer, got %q", qam.ErrInvalidParameter, sizeStr))
			return
		}
		size = n
	}

	signal, err := d.readSignal(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	spectrum := analysis.PowerSpectrum(signal, size)
	c.JSON(http.StatusOK, gin.H{
		"stats":    analysis.Summarize(signal),
		"bins":     spectrum,
		"peak_bin": analysis.PeakBin(spectrum),
	})
}

// constellationPoint is one lattice point as sent to clients
type constellationPoint struct {
	Value int     `json:"value"`
	I     float64 `json:"i"`
	Q     float64 `json:"q"`
}

// maxConstellationPoints caps the points listed by handleConstellation
const maxConstellationPoints = 1 << 16

// handleConstellation lists the constellation points for a symbol width
func (d *QAMDaemon) handleConstellation(c *gin.Context) {
	bits, err := bitsParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	constellation, err := d.engine.Constellation(bits)
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := gin.H{
		"bits_per_symbol":  constellation.BitsPerSymbol(),
		"order":            constellation.Order(),
		"side":             constellation.Side(),
		"rotation_degrees": constellation.RotationDegrees(),
	}

	if constellation.Order() > maxConstellationPoints {
		response["truncated"] = true
	} else {
		points := constellation.Points()
		list := make([]constellationPoint, len(points))
		for value, p := range points {
			list[value] = constellationPoint{Value: value, I: real(p), Q: imag(p)}
		}
		response["points"] = list
	}

	c.JSON(http.StatusOK, response)
}

// handleGetModes lists the named QAM modes
func (d *QAMDaemon) handleGetModes(c *gin.Context) {
	modes := map[string]int{}
	for _, name := range qam.QAMModes() {
		bits, _ := qam.ParseQAMMode(name)
		modes[name] = bits
	}
	c.JSON(http.StatusOK, protocol.NewSuccessResponse(map[string]interface{}{
		"modes": modes,
	}))
}

// handleGetJobs returns recent jobs from the history
func (d *QAMDaemon) handleGetJobs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultJobLimit)))
	if err != nil || limit <= 0 {
		limit = defaultJobLimit
	}

	mode := strings.ToLower(c.Query("mode"))
	if mode != "" && mode != protocol.ModeModulate && mode != protocol.ModeDemodulate {
		abortWithError(c, fmt.Errorf("%w: unknown job mode %q", qam.ErrInvalidParameter, mode))
		return
	}

	jobs, err := d.jobStore.ListJobs(storage.JobQuery{Limit: limit, Mode: mode})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleGetJob returns one job
func (d *QAMDaemon) handleGetJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: invalid job id %q", qam.ErrInvalidParameter, c.Param("id")))
		return
	}

	job, err := d.jobStore.GetJob(id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// handleGetStats returns job history statistics
func (d *QAMDaemon) handleGetStats(c *gin.Context) {
	stats, err := d.jobStore.Stats()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEventsWebSocket streams job events and answers PING and JOBS
// commands
func (d *QAMDaemon) handleEventsWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(logging.ComponentAPI, fmt.Sprintf("WebSocket upgrade failed: %v", err))
		return
	}
	defer conn.Close()

	events, unsubscribe := d.engine.Subscribe()
	defer unsubscribe()

	logging.Debug(logging.ComponentAPI, "WebSocket client connected")

	replies := make(chan protocol.Event, 4)
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})
	defer close(writerDone)

	// Only this goroutine reads; only the loop below writes.
	go func() {
		defer close(readerDone)
		d.readCommands(conn, replies, writerDone)
	}()

	for {
		var event protocol.Event
		select {
		case event = <-events:
		case event = <-replies:
		case <-readerDone:
			logging.Debug(logging.ComponentAPI, "WebSocket client disconnected")
			return
		case <-d.ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		}

		if err := conn.WriteJSON(event); err != nil {
			logging.Debug(logging.ComponentAPI, fmt.Sprintf("WebSocket write error: %v", err))
			return
		}
	}
}

// messageReader is the read side of a websocket connection
type messageReader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

// readCommands answers client commands until the connection fails, the
// writer stops, or the daemon shuts down.
func (d *QAMDaemon) readCommands(conn messageReader, replies chan<- protocol.Event, writerDone <-chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case replies <- d.handleCommand(string(message)):
		case <-writerDone:
			return
		case <-d.ctx.Done():
			return
		}
	}
}

// handleCommand answers a websocket client command
func (d *QAMDaemon) handleCommand(text string) protocol.Event {
	cmd, err := protocol.ParseCommand(text)
	if err != nil {
		return errorEvent(err.Error())
	}

	switch cmd.Type {
	case protocol.CmdPing:
		return protocol.Event{Type: protocol.EventPong, Timestamp: time.Now()}

	case protocol.CmdJobs:
		query := storage.JobQuery{Limit: 10}
		if limitStr, ok := cmd.Args["limit"].(string); ok {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit <= 0 {
				return errorEvent(fmt.Sprintf("invalid limit %q", limitStr))
			}
			query.Limit = limit
		}
		if mode, ok := cmd.Args["mode"].(string); ok {
			query.Mode = mode
		}

		jobs, err := d.jobStore.ListJobs(query)
		if err != nil {
			return errorEvent(err.Error())
		}
		return protocol.Event{Type: protocol.EventJobs, Timestamp: time.Now(), Jobs: jobs}

	default:
		return errorEvent(fmt.Sprintf("unknown command %q", cmd.Type))
	}
}

func errorEvent(message string) protocol.Event {
	return protocol.Event{Type: protocol.EventError, Timestamp: time.Now(), Error: message}
}
