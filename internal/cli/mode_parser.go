package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeCarrier = "carrier"
	ModeWatch   = "watch"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeCarrier, "c":
		return ModeCarrier, true
	case ModeWatch, "w", "observer":
		return ModeWatch, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g. `carrier --delivery=D1`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}
		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<role>")
	}
	if m, ok := isKnownMode(mode); ok {
		mode = m
	} else {
		return "", out, fmt.Errorf("unknown mode %q", mode)
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  ./delivery-track --mode=<role> [flags]

Roles (modes):
  carrier      Stream device positions for a delivery in progress
  watch        Observe a delivery's position stream and traveled route

Examples:
  ./delivery-track --mode=carrier --delivery=D1 --token=$TRACK_TOKEN --interval=15
  ./delivery-track --mode=watch --delivery=D1 --token=$TRACK_TOKEN --port=8090`)
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./delivery-track --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
