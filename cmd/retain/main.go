package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vango-dev/retain/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬─┐┌─┐┌┬┐┌─┐┬┌┐┌
  ├┬┘├┤  │ ├─┤││││
  ┴└─└─┘ ┴ ┴ ┴┴┘└┘
`

// useColor is false when stdout is not a terminal or --no-color is set.
var useColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "retain",
		Short: "Retained-mode UI reconciliation engine",
		Long: `retain renders component trees onto a host surface, touching only
the nodes that changed.

Components are Go renderers or templates loaded by name from files,
HTTP or S3. The serve command renders a project's root component into
an in-memory surface and mirrors it to viewers over WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				useColor = false
			}
			if !useColor {
				errors.DisableColors()
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		initCmd(),
		serveCmd(),
		inspectCmd(),
		packCmd(),
		versionCmd(),
	)
	return cmd
}

func paint(code, text string) string {
	if !useColor {
		return text
	}
	return "\033[" + code + "m" + text + "\033[0m"
}

// printBanner prints the retain ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, paint("36", banner))
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", paint("32", "✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", paint("33", "⚠"), fmt.Sprintf(format, args...))
}
