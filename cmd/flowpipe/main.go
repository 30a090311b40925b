package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[37m"
)

type runOptions struct {
	shop    string
	format  string
	all     bool
	verbose bool
	noColor bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowpipe",
		Short: "Typed pipeline chain demos",
		Long: `flowpipe runs sample chains built with flowpipeline.

Each example composes steps, conditional steps, side-effect actions and
runners, some of them resolved from a dependency container, and prints
the final result together with the stage events of the run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(newListCmd(), newRunCmd())
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all available examples",
		Long:  "Display a list of all available chain examples with descriptions.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available examples:")
			fmt.Fprintln(out)
			for _, ex := range getAllExamples() {
				fmt.Fprintf(out, "  %-12s %s\n", ex.Name(), ex.Description())
			}
		},
	}
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [example]",
		Short: "Run an example chain",
		Long: `Run one example chain, or every example with --all.

The final result is printed as text, or as a hex encoded msgpack
snapshot with --format msgpack.`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) != 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			var completions []string
			for _, ex := range getAllExamples() {
				if strings.HasPrefix(ex.Name(), toComplete) {
					completions = append(completions, ex.Name())
				}
			}
			return completions, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatText && opts.format != formatMsgpack {
				return fmt.Errorf("unknown format %q: use %s or %s", opts.format, formatText, formatMsgpack)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			shop, err := LoadShop(opts.shop)
			if err != nil {
				return fmt.Errorf("loading shop: %w", err)
			}
			p := &session{out: cmd.OutOrStdout(), shop: shop, color: !opts.noColor, format: opts.format, verbose: opts.verbose}

			if opts.all {
				for _, ex := range getAllExamples() {
					if err := runExample(ctx, p, ex); err != nil {
						return err
					}
				}
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("no example given\n\nRun 'flowpipe list' to see available examples")
			}
			ex, ok := getExampleByName(args[0])
			if !ok {
				return fmt.Errorf("unknown example: %s\n\nRun 'flowpipe list' to see available examples", args[0])
			}
			return runExample(ctx, p, ex)
		},
	}
	cmd.Flags().BoolVar(&opts.all, "all", false, "Run all examples sequentially")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Result output format (text or msgpack)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print stage events")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.shop, "shop", "", "YAML file with prices and orders (default: built-in shop)")
	return cmd
}

func runExample(ctx context.Context, p *session, ex Example) error {
	p.heading(ex.Name(), ex.Description())
	return ex.Run(ctx, p)
}
