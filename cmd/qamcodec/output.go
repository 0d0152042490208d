package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/dougsko/qamd/pkg/compare"
	"github.com/dougsko/qamd/pkg/engine"
	"github.com/dougsko/qamd/pkg/protocol"
)

var (
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
)

// interruptContext is canceled on Ctrl-C
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func printModulation(out io.Writer, result *engine.ModulateResult) {
	if result.Noise != nil {
		fmt.Fprintf(out, "Added noise with an SNR of %g dB to the modulated signal (seed %d, measured %.2f dB).\n",
			result.Noise.SNRDB, result.Noise.Seed, result.EffectiveSNR)
	}
	fmt.Fprintf(out, "Modulation took: %d milliseconds.\n", result.Duration.Milliseconds())
	fmt.Fprintf(out, "%d symbols, average power %.4f, peak amplitude %.4f\n",
		result.Stats.Symbols, result.Stats.AveragePower, result.Stats.PeakAmplitude)
	if result.Paths != nil {
		success.Fprintf(out, "Signal parameters saved to: %s\n", result.Paths.Parameters)
		success.Fprintf(out, "Modulated signal saved to: %s\n", result.Paths.Signal)
	}
}

func printDemodulation(out io.Writer, result *engine.DemodulateResult) {
	fmt.Fprintf(out, "Demodulation took: %d milliseconds.\n", result.Duration.Milliseconds())
	if result.Paths != nil {
		success.Fprintf(out, "Demodulated file saved as: %s\n", result.Paths.Demodulated)
		success.Fprintf(out, "Comparison report saved to: %s\n", result.Paths.Report)
	}
	if result.Report != nil {
		printMatch(out, *result.Report)
	}
}

func printMatch(out io.Writer, report compare.Report) {
	if report.Matches() {
		success.Fprintf(out, "Match: %s\n", report)
		return
	}
	warning.Fprintf(out, "Match: %s (%d mismatched bytes)\n", report, report.Mismatches)
}

func printJobs(out io.Writer, jobs []protocol.Job) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Time", "Mode", "Bits", "SNR", "Symbols", "In", "Out", "Match", "Status"})
	table.SetAutoWrapText(false)

	for _, job := range jobs {
		snr := "-"
		if job.SNRDB != nil {
			snr = strconv.FormatFloat(*job.SNRDB, 'g', -1, 64)
		}
		match := "-"
		if job.Compared {
			match = fmt.Sprintf("%.2f%%", job.MatchPercentage)
		}
		status := job.Status
		if job.Error != "" {
			status = job.Status + ": " + job.Error
		}

		table.Append([]string{
			strconv.FormatInt(job.ID, 10),
			job.Timestamp.Local().Format(time.DateTime),
			job.Mode,
			strconv.Itoa(job.BitsPerSymbol),
			snr,
			strconv.Itoa(job.Symbols),
			strconv.Itoa(job.InputBytes),
			strconv.Itoa(job.OutputBytes),
			match,
			status,
		})
	}

	table.Render()
}

func printEvent(out io.Writer, event protocol.Event) {
	stamp := event.Timestamp.Local().Format(time.TimeOnly)
	switch {
	case event.Job != nil && event.Type == protocol.EventJobFailed:
		failure.Fprintf(out, "%s %s job %d failed: %s\n", stamp, event.Job.Mode, event.Job.ID, event.Job.Error)
	case event.Job != nil:
		success.Fprintf(out, "%s %s job %d: %d symbols, %d bits/symbol, %d ms\n", stamp,
			event.Job.Mode, event.Job.ID, event.Job.Symbols, event.Job.BitsPerSymbol, event.Job.DurationMS)
	default:
		fmt.Fprintf(out, "%s %s %s\n", stamp, event.Type, event.Error)
	}
}
