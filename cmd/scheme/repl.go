package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	scheme "github.com/daios-ai/scheme"
)

var (
	banner   = fmt.Sprintf("Scheme %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :help for commands.", scheme.Version)
	helpText = `REPL commands:
  :quit           Exit the REPL
  :help           Show this help
  :modules        List required modules
  :doc NAME       Describe a procedure or macro
  :expand EXPR    Show the full macro expansion of EXPR
`
)

func runRepl() int {
	fmt.Println(banner)

	ip, err := newRuntime()
	if err != nil {
		return reportError(err)
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetWordCompleter(func(line string, pos int) (string, []string, string) {
		return completeWord(ip, line, pos)
	})

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		code, ok := readByParseProbe(ln, ip, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if done := replCommand(ip, trimmed); done {
				return 0
			}
			continue
		}

		exit := -1
		rerr := ip.EvalEach("<repl>", code, func(_ scheme.Value, v scheme.Value, err error) bool {
			if err != nil {
				var ex *scheme.ExitError
				if errors.As(err, &ex) {
					exit = ex.Code
					return false
				}
				fmt.Fprintln(os.Stderr, red(err.Error()))
				return true
			}
			printValue(v, true)
			return true
		})
		if rerr != nil {
			fmt.Fprintln(os.Stderr, red(rerr.Error()))
		}
		if exit >= 0 {
			return exit
		}
	}
}

// replCommand runs a colon command and reports whether the REPL should exit.
func replCommand(ip *scheme.Interpreter, line string) bool {
	name, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		name, rest = line[:i], strings.TrimSpace(line[i+1:])
	}
	switch strings.ToLower(name) {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Print(helpText)
	case ":modules":
		for _, m := range ip.Modules() {
			state := "loaded"
			if !m.Loaded {
				state = "loading"
			}
			fmt.Printf("%-20s %s (%s)\n", m.Display, m.Name, state)
		}
	case ":doc":
		v, err := ip.EvalSource(fmt.Sprintf("(help '%s)", rest))
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			break
		}
		fmt.Println(green(scheme.DisplayString(v)))
	case ":expand":
		forms, err := ip.Read(rest)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			break
		}
		for _, f := range forms {
			out, err := ip.Expand(f, ip.Global, false)
			if err != nil {
				fmt.Fprintln(os.Stderr, red(err.Error()))
				break
			}
			fmt.Println(blue(scheme.WriteString(out)))
		}
	default:
		fmt.Println("unknown command. Type :help for a list.")
	}
	return false
}

// readByParseProbe keeps prompting while the accumulated input ends inside a
// datum.
func readByParseProbe(ln *liner.State, ip *scheme.Interpreter, prompt, cont string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = cont
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			b.Reset()
			continue
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, perr := ip.Read(src); perr != nil && scheme.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}

// completeWord completes the identifier under the cursor from the symbol table.
// pos counts runes.
func completeWord(ip *scheme.Interpreter, line string, pos int) (string, []string, string) {
	rs := []rune(line)
	start := pos
	for start > 0 && !strings.ContainsRune("()[]'`, \t\"", rs[start-1]) {
		start--
	}
	head, tail := string(rs[:start]), string(rs[pos:])
	prefix := string(rs[start:pos])
	if prefix == "" {
		return string(rs[:pos]), nil, tail
	}
	return head, ip.SymbolNames(prefix), tail
}
