package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/urfave/cli.v1"

	"github.com/dougsko/qamd/pkg/engine"
	"github.com/dougsko/qamd/pkg/qam"
)

// interactiveAction runs the prompt sequence when no subcommand is given
func interactiveAction(ctx *cli.Context) error {
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	runCtx, stop := interruptContext()
	defer stop()

	return runInteractive(runCtx, s.engine, os.Stdin, s.out)
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// parseBits accepts a bit count or a named mode such as 16qam
func parseBits(text string) (int, error) {
	if bits, err := strconv.Atoi(text); err == nil {
		if bits <= 0 {
			return 0, fmt.Errorf("%w: bits per symbol must be positive", qam.ErrInvalidParameter)
		}
		return bits, nil
	}
	return qam.ParseQAMMode(text)
}

// runInteractive asks for a file, an operation, a symbol width and an
// optional SNR, then runs the operation. Bad answers print a message and
// return nil.
func runInteractive(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer) error {
	p := &prompter{in: bufio.NewReader(in), out: out}

	path, err := p.ask("Please enter the file path: ")
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		failure.Fprintln(out, "The specified file does not exist.")
		return nil
	}

	modeText, err := p.ask("Please enter 'modular' to modulate or 'demodular' to demodulate: ")
	if err != nil {
		return err
	}

	bitsText, err := p.ask("Please enter the number of bits per symbol: ")
	if err != nil {
		return err
	}
	bits, err := parseBits(bitsText)
	if err == nil {
		_, err = eng.Constellation(bits)
	}
	if err != nil {
		failure.Fprintln(out, "Invalid number of bits per symbol.")
		return nil
	}

	snrText, err := p.ask("Please enter the SNR in dB to simulate noise, or 'none' to skip: ")
	if err != nil {
		return err
	}
	var noise *engine.Noise
	if snr, err := strconv.ParseFloat(snrText, 64); err == nil {
		noise = eng.NoiseAt(snr)
	}

	op, err := qam.ParseOperation(modeText)
	if err != nil {
		failure.Fprintln(out, "Invalid operation. Please choose 'modular' or 'demodular'.")
		return nil
	}

	fmt.Fprintf(out, "The file was converted into a stream of %d bits.\n", info.Size()*8)

	switch op {
	case qam.OpModulate:
		fmt.Fprintln(out, "Modulating...")
		result, err := eng.ModulateFile(ctx, path, bits, noise)
		if err != nil {
			failure.Fprintf(out, "An error occurred during processing: %v\n", err)
			return nil
		}
		printModulation(out, result)

	case qam.OpDemodulate:
		fmt.Fprintln(out, "Demodulating...")
		result, err := eng.DemodulateFile(ctx, path, bits)
		if err != nil {
			failure.Fprintf(out, "An error occurred during processing: %v\n", err)
			return nil
		}
		printDemodulation(out, result)
	}

	return nil
}
