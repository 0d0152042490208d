package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/dougsko/qamd/pkg/client"
	"github.com/dougsko/qamd/pkg/compare"
	"github.com/dougsko/qamd/pkg/engine"
	"github.com/dougsko/qamd/pkg/protocol"
	"github.com/dougsko/qamd/pkg/qam"
	"github.com/dougsko/qamd/pkg/storage"
	"github.com/dougsko/qamd/pkg/verbose"
)

// Primary names of flags that also carry a short alias
const (
	flagBits  = "bits"
	flagQAM   = "qam"
	flagLimit = "limit"
)

var (
	bitsFlag = cli.IntFlag{
		Name:  flagBits + ", b",
		Usage: "Bits per symbol (even, 2-32); 0 uses the configured default",
	}
	qamFlag = cli.StringFlag{
		Name:  flagQAM + ", q",
		Usage: "Named QAM mode such as qpsk or 16qam; overrides --bits",
	}
	snrFlag = cli.StringFlag{
		Name:  "snr",
		Usage: "Channel SNR in dB, or 'none' to skip noise",
	}
	seedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "Noise seed; 0 uses the configured seed",
	}
	serverFlag = cli.StringFlag{
		Name:  "server",
		Usage: "Run against a qamd daemon at this URL, e.g. http://localhost:8080",
	}
	reportFlag = cli.StringFlag{
		Name:  "report",
		Usage: "Also write the comparison report to this file",
	}
	limitFlag = cli.IntFlag{
		Name:  flagLimit + ", n",
		Value: 20,
		Usage: "Number of jobs to show",
	}
	modeFlag = cli.StringFlag{
		Name:  "mode",
		Usage: "Only show modulate or demodulate jobs",
	}
	statsFlag = cli.BoolFlag{
		Name:  "stats",
		Usage: "Show history totals instead of jobs",
	}

	modulateCommand = cli.Command{
		Action:    modulateAction,
		Name:      "modulate",
		Aliases:   []string{"modular"},
		Usage:     "Modulate a file into <stem>_modulated.bin and a parameter CSV",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{bitsFlag, qamFlag, snrFlag, seedFlag, serverFlag},
	}
	demodulateCommand = cli.Command{
		Action:    demodulateAction,
		Name:      "demodulate",
		Aliases:   []string{"demodular"},
		Usage:     "Demodulate <stem>_modulated.bin and compare the result with the file",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{bitsFlag, qamFlag, serverFlag},
	}
	compareCommand = cli.Command{
		Action:    compareAction,
		Name:      "compare",
		Usage:     "Compare two files byte by byte",
		ArgsUsage: "<original> <recovered>",
		Flags:     []cli.Flag{reportFlag},
	}
	historyCommand = cli.Command{
		Action: historyAction,
		Name:   "history",
		Usage:  "Show recorded jobs",
		Flags:  []cli.Flag{limitFlag, modeFlag, statsFlag, serverFlag},
	}
	modesCommand = cli.Command{
		Action: modesAction,
		Name:   "modes",
		Usage:  "List the named QAM modes",
	}
	statusCommand = cli.Command{
		Action: statusAction,
		Name:   "status",
		Usage:  "Show the status of a qamd daemon",
		Flags:  []cli.Flag{serverFlag},
	}
	eventsCommand = cli.Command{
		Action: eventsAction,
		Name:   "events",
		Usage:  "Stream job events from a qamd daemon",
		Flags:  []cli.Flag{serverFlag},
	}
)

const defaultServer = "http://localhost:8080"

func fileArg(ctx *cli.Context) (string, error) {
	path := ctx.Args().First()
	if path == "" {
		return "", fmt.Errorf("%w: no file given", qam.ErrMissingInput)
	}
	return path, nil
}

// bitsFromFlags returns --qam when set, else --bits (0 = configured default)
func bitsFromFlags(ctx *cli.Context) (int, error) {
	if mode := ctx.String(flagQAM); mode != "" {
		return qam.ParseQAMMode(mode)
	}
	bits := ctx.Int(flagBits)
	if bits < 0 {
		return 0, fmt.Errorf("%w: bits per symbol must be positive, got %d", qam.ErrInvalidParameter, bits)
	}
	return bits, nil
}

// noiseFromFlags returns nil when noise is disabled
func noiseFromFlags(ctx *cli.Context, eng *engine.Engine) (*engine.Noise, error) {
	var noise *engine.Noise
	snrText := strings.TrimSpace(ctx.String(snrFlag.Name))
	switch {
	case snrText == "":
		noise = eng.DefaultNoise()
	case strings.EqualFold(snrText, "none"):
		return nil, nil
	default:
		snr, err := strconv.ParseFloat(snrText, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: snr must be a number or 'none', got %q", qam.ErrInvalidParameter, snrText)
		}
		noise = eng.NoiseAt(snr)
	}

	if noise != nil && ctx.IsSet(seedFlag.Name) {
		noise.Seed = ctx.Int64(seedFlag.Name)
	}
	return noise, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %s does not exist", qam.ErrMissingInput, path)
	}
	return data, err
}

func modulateAction(ctx *cli.Context) error {
	path, err := fileArg(ctx)
	if err != nil {
		return err
	}
	bits, err := bitsFromFlags(ctx)
	if err != nil {
		return err
	}

	server := ctx.String(serverFlag.Name)
	s, err := openSession(ctx, server == "")
	if err != nil {
		return err
	}
	defer s.Close()

	runCtx, stop := interruptContext()
	defer stop()

	if server != "" {
		return remoteModulate(runCtx, s, client.NewClient(server), ctx, path, bits)
	}

	noise, err := noiseFromFlags(ctx, s.engine)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, "Modulating...")
	result, err := s.engine.ModulateFile(runCtx, path, bits, noise)
	if err != nil {
		return err
	}
	printModulation(s.out, result)
	return nil
}

func remoteModulate(runCtx context.Context, s *session, c *client.Client, ctx *cli.Context, path string, bits int) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}

	opts := client.ModulateOptions{Bits: bits, Seed: ctx.Int64(seedFlag.Name)}
	snrText := strings.TrimSpace(ctx.String(snrFlag.Name))
	switch {
	case strings.EqualFold(snrText, "none"):
		opts.NoNoise = true
	case snrText != "":
		snr, err := strconv.ParseFloat(snrText, 64)
		if err != nil {
			return fmt.Errorf("%w: snr must be a number or 'none', got %q", qam.ErrInvalidParameter, snrText)
		}
		opts.SNRDB = &snr
	}

	verbose.Printf("Sending %d bytes to %s", len(data), ctx.String(serverFlag.Name))
	result, err := c.Modulate(runCtx, data, opts)
	if err != nil {
		return err
	}

	signal, err := s.engine.Codec().Decode(result.Signal)
	if err != nil {
		return err
	}

	paths := engine.OutputPaths(path)
	if err := s.engine.Codec().SaveCSV(paths.Parameters, signal, s.cfg.Codec.CSVMaxSymbols); err != nil {
		return err
	}
	if err := os.WriteFile(paths.Signal, result.Signal, 0644); err != nil {
		return fmt.Errorf("failed to write signal file: %w", err)
	}

	fmt.Fprintf(s.out, "Daemon job %d: %d symbols\n", result.JobID, result.Symbols)
	if result.Seed != 0 {
		fmt.Fprintf(s.out, "Noise seed: %d\n", result.Seed)
	}
	success.Fprintf(s.out, "Signal parameters saved to: %s\n", paths.Parameters)
	success.Fprintf(s.out, "Modulated signal saved to: %s\n", paths.Signal)
	return nil
}

func demodulateAction(ctx *cli.Context) error {
	path, err := fileArg(ctx)
	if err != nil {
		return err
	}
	bits, err := bitsFromFlags(ctx)
	if err != nil {
		return err
	}

	server := ctx.String(serverFlag.Name)
	s, err := openSession(ctx, server == "")
	if err != nil {
		return err
	}
	defer s.Close()

	runCtx, stop := interruptContext()
	defer stop()

	if server != "" {
		return remoteDemodulate(runCtx, s, client.NewClient(server), path, bits)
	}

	fmt.Fprintln(s.out, "Demodulating...")
	result, err := s.engine.DemodulateFile(runCtx, path, bits)
	if err != nil {
		return err
	}
	printDemodulation(s.out, result)
	return nil
}

func remoteDemodulate(runCtx context.Context, s *session, c *client.Client, path string, bits int) error {
	original, err := readFile(path)
	if err != nil {
		return err
	}
	paths := engine.OutputPaths(path)
	signal, err := readFile(paths.Signal)
	if err != nil {
		return err
	}

	recovered, err := c.Demodulate(runCtx, signal, bits)
	if err != nil {
		return err
	}
	if s.cfg.Codec.TrimToOriginal && len(recovered) > len(original) {
		recovered = recovered[:len(original)]
	}

	if err := os.WriteFile(paths.Demodulated, recovered, 0644); err != nil {
		return fmt.Errorf("failed to write demodulated file: %w", err)
	}
	report := compare.Compare(original, recovered)
	if err := report.SaveReport(paths.Report); err != nil {
		return err
	}

	success.Fprintf(s.out, "Demodulated file saved as: %s\n", paths.Demodulated)
	success.Fprintf(s.out, "Comparison report saved to: %s\n", paths.Report)
	printMatch(s.out, report)
	return nil
}

func compareAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("%w: compare needs <original> <recovered>", qam.ErrMissingInput)
	}

	original, err := readFile(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	recovered, err := readFile(ctx.Args().Get(1))
	if err != nil {
		return err
	}

	report := compare.Compare(original, recovered)
	if _, err := report.WriteTo(os.Stdout); err != nil {
		return err
	}
	if path := ctx.String(reportFlag.Name); path != "" {
		if err := report.SaveReport(path); err != nil {
			return err
		}
		success.Printf("Comparison report saved to: %s\n", path)
	}
	return nil
}

// jobQuery builds the history filter from --limit and --mode
func jobQuery(ctx *cli.Context) (storage.JobQuery, error) {
	query := storage.JobQuery{Limit: ctx.Int(flagLimit)}
	if mode := strings.ToLower(ctx.String(modeFlag.Name)); mode != "" {
		op, err := qam.ParseOperation(mode)
		if err != nil {
			return query, err
		}
		query.Mode = op.String()
	}
	return query, nil
}

func historyAction(ctx *cli.Context) error {
	query, err := jobQuery(ctx)
	if err != nil {
		return err
	}

	if server := ctx.String(serverFlag.Name); server != "" {
		jobs, err := client.NewClient(server).GetJobs(context.Background(), query.Limit, query.Mode)
		if err != nil {
			return err
		}
		printJobs(os.Stdout, jobs)
		return nil
	}

	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.store == nil {
		return fmt.Errorf("job history is not available")
	}

	if ctx.Bool(statsFlag.Name) {
		stats, err := s.store.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Jobs: %d (%d modulate, %d demodulate, %d failed)\n",
			stats.TotalJobs, stats.ModulateJobs, stats.DemodulateJobs, stats.FailedJobs)
		fmt.Fprintf(s.out, "Symbols: %d\n", stats.TotalSymbols)
		fmt.Fprintf(s.out, "Average match: %.2f%%\n", stats.AverageMatchPercent)
		return nil
	}

	jobs, err := s.store.ListJobs(query)
	if err != nil {
		return err
	}
	printJobs(s.out, jobs)
	return nil
}

func modesAction(ctx *cli.Context) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Mode", "Bits", "Order"})
	for _, name := range qam.QAMModes() {
		bits, _ := qam.ParseQAMMode(name)
		table.Append([]string{name, strconv.Itoa(bits), strconv.FormatUint(1<<uint(bits), 10)})
	}
	table.Render()
	return nil
}

func serverAddress(ctx *cli.Context) string {
	if server := ctx.String(serverFlag.Name); server != "" {
		return server
	}
	return defaultServer
}

func statusAction(ctx *cli.Context) error {
	status, err := client.NewClient(serverAddress(ctx)).GetStatus(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("qamd %s, up %s\n", status.Version, status.Uptime)
	fmt.Printf("Codec: %d bits per symbol, %.1f° rotation, saturate %v, %d workers\n",
		status.BitsPerSymbol, status.RotationDegrees, status.Saturate, status.Workers)
	fmt.Printf("Jobs run: %d, event subscribers: %d\n", status.JobsRun, status.Subscribers)
	fmt.Printf("Symbol buffers: %d reused, %d allocated, %d oversize\n",
		status.SymbolBuffers.Hits, status.SymbolBuffers.Misses, status.SymbolBuffers.Oversize)
	return nil
}

func eventsAction(ctx *cli.Context) error {
	runCtx, stop := interruptContext()
	defer stop()

	err := client.NewClient(serverAddress(ctx)).Watch(runCtx, func(event protocol.Event) {
		printEvent(os.Stdout, event)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
