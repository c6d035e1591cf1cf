package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	scheme "github.com/daios-ai/scheme"
)

func init() {
	cmdRun := &cobra.Command{
		Use:   "run FILE [FILE...] [-- ARG...]",
		Short: "Load and run Scheme files in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exitCode(runFiles(args))
		},
	}

	cmdRepl := &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive REPL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return exitCode(runRepl())
		},
	}

	cmdEval := &cobra.Command{
		Use:   "eval EXPR",
		Short: "Evaluate an expression and print its value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exitCode(runEval(args[0]))
		},
	}

	cmdExpand := &cobra.Command{
		Use:   "expand EXPR",
		Short: "Print the macro expansion of each form in EXPR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")
			return exitCode(runExpand(args[0], once))
		},
	}
	cmdExpand.Flags().Bool("once", false, "expand only the outermost macro use (macroexpand-1)")

	cmdFmt := &cobra.Command{
		Use:   "fmt FILE...",
		Short: "Re-print the datums of each file in canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			write, _ := cmd.Flags().GetBool("write")
			return exitCode(runFmt(args, write))
		},
	}
	cmdFmt.Flags().BoolP("write", "w", false, "write the result back to the file instead of stdout (refused for files with comments)")

	cmdVersion := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s (built %s)\n", appName, scheme.Version, scheme.BuildDate)
		},
	}

	RootCommand.AddCommand(cmdRun, cmdRepl, cmdEval, cmdExpand, cmdFmt, cmdVersion)
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func runFiles(args []string) int {
	files, argv := splitArgs(args)
	ip, err := newRuntime()
	if err != nil {
		return reportError(err)
	}
	ip.Define("command-line", strSliceToList(append(append([]string{}, files...), argv...)))
	ip.Define("command-line-arguments", strSliceToList(argv))

	log := ip.Logger()
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return reportError(err)
		}
		if err := ip.LoadFile(abs); err != nil {
			// conditions raised in the file carry their own source
			if code := reportError(scheme.WrapErrorWithName(err, file, "")); code != 0 {
				log.WithField("file", file).Warn("uncaught condition")
				return code
			}
			return 0
		}
	}
	return 0
}

// -----------------------------------------------------------------------------
// eval / expand
// -----------------------------------------------------------------------------

func runEval(expr string) int {
	ip, err := newRuntime()
	if err != nil {
		return reportError(err)
	}
	v, err := ip.EvalSource(expr)
	if err != nil {
		return reportError(err)
	}
	printValue(v, false)
	return 0
}

func runExpand(expr string, once bool) int {
	ip, err := newRuntime()
	if err != nil {
		return reportError(err)
	}
	forms, err := ip.Read(expr)
	if err != nil {
		return reportError(scheme.WrapErrorWithName(err, "<expr>", expr))
	}
	for _, form := range forms {
		out, err := ip.Expand(form, ip.Global, once)
		if err != nil {
			return reportError(err)
		}
		fmt.Println(scheme.WriteString(out))
	}
	return 0
}

// -----------------------------------------------------------------------------
// fmt
// -----------------------------------------------------------------------------

func runFmt(files []string, write bool) int {
	ip, err := newRuntime()
	if err != nil {
		return reportError(err)
	}
	status := 0
	for _, file := range files {
		src, rerr := os.ReadFile(file)
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, file, rerr)
			status = 1
			continue
		}
		lx := scheme.NewLexer(string(src), ip.Symbols)
		if _, lerr := lx.Scan(); lerr == nil && write && lx.Comments > 0 {
			fmt.Fprintf(os.Stderr, "%s: %s has comments that fmt would drop; not rewritten\n", appName, file)
			status = 1
			continue
		}
		forms, perr := ip.Read(string(src))
		if perr != nil {
			fmt.Fprintln(os.Stderr, red(scheme.WrapErrorWithName(perr, file, string(src)).Error()))
			status = 1
			continue
		}
		var b strings.Builder
		for _, f := range forms {
			b.WriteString(scheme.WriteString(f))
			b.WriteByte('\n')
		}
		if !write {
			fmt.Print(b.String())
			continue
		}
		if err := os.WriteFile(file, []byte(b.String()), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "%s: cannot write %s: %v\n", appName, file, err)
			status = 1
		}
	}
	return status
}
