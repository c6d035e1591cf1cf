package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	scheme "github.com/daios-ai/scheme"
)

const (
	appName     = "scheme"
	historyFile = ".scheme_history"
	promptMain  = "> "
	promptCont  = "... "
	pathEnv     = "SCHEME_PATH"
)

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }
func blue(s string) string  { return "\x1b[94m" + s + "\x1b[0m" }

var (
	flagLogLevel  string
	flagTrace     bool
	flagNoPrelude bool
	flagPath      []string
)

var RootCommand = &cobra.Command{
	Use:           appName,
	Short:         "An embeddable Scheme interpreter",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exitCode(runRepl())
	},
}

func init() {
	pf := RootCommand.PersistentFlags()
	pf.StringVar(&flagLogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	pf.BoolVar(&flagTrace, "trace", false, "log every top-level form (implies --log-level=debug)")
	pf.BoolVar(&flagNoPrelude, "no-prelude", false, "do not load the Scheme prelude")
	pf.StringSliceVarP(&flagPath, "path", "I", nil, "extra roots for load/require (also $"+pathEnv+")")
}

// codeError carries a process exit status out of a cobra command.
type codeError struct{ code int }

func (e *codeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &codeError{code: code}
}

func main() {
	if err := RootCommand.Execute(); err != nil {
		var ce *codeError
		if errors.As(err, &ce) {
			os.Exit(ce.code)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(2)
	}
}

func newLogger() (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	level, err := logrus.ParseLevel(flagLogLevel)
	if err != nil {
		return nil, err
	}
	if flagTrace {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	return log, nil
}

func searchPath() []string {
	out := append([]string(nil), flagPath...)
	if sp := os.Getenv(pathEnv); sp != "" {
		for _, root := range filepath.SplitList(sp) {
			if root != "" {
				out = append(out, root)
			}
		}
	}
	return out
}

// newRuntime builds an interpreter from the persistent flags.
func newRuntime() (*scheme.Interpreter, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	return scheme.NewRuntime(scheme.Config{
		Logger:     log,
		SearchPath: searchPath(),
		NoPrelude:  flagNoPrelude,
		Trace:      flagTrace,
	})
}

// reportError prints err and returns the exit status it implies.
func reportError(err error) int {
	var ex *scheme.ExitError
	if errors.As(err, &ex) {
		return ex.Code
	}
	fmt.Fprintln(os.Stderr, red(err.Error()))
	return 1
}

func strSliceToList(xs []string) scheme.Value {
	vals := make([]scheme.Value, 0, len(xs))
	for _, s := range xs {
		vals = append(vals, scheme.Str(s))
	}
	return scheme.List(vals...)
}

// printValue writes v for the REPL and eval; void results print nothing.
func printValue(v scheme.Value, color bool) {
	if v.Tag == scheme.VTVoid {
		return
	}
	s := scheme.WriteString(v)
	if color {
		s = blue(s)
	}
	fmt.Println(s)
}

func splitArgs(args []string) ([]string, []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}
