// Package replcli provides an interactive terminal session that sends each
// submitted script to a runtime.Runtime and prints its captured output,
// using golang.org/x/term for raw-mode line editing when stdin is a real
// terminal and falling back to plain line scanning otherwise.
package replcli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"sandsheet/policy"
	"sandsheet/runtime"
)

const (
	prompt     = "sandsheet> "
	promptCont = "........  "
)

// lineSource yields successive input lines, EOF signaled by ok=false.
type lineSource interface {
	readLine(prompt string) (line string, ok bool)
}

// Start runs an interactive loop reading scripts from in, one
// blank-line-terminated block at a time, executing each against rt under
// pol, and writing captured output to out.
func Start(ctx context.Context, in io.Reader, out io.Writer, rt *runtime.Runtime, pol policy.Policy) {
	src, cleanup := newLineSource(in, out)
	defer cleanup()

	var block []string
	p := prompt
	for {
		line, ok := src.readLine(p)
		if !ok {
			return
		}

		if strings.TrimSpace(line) == "" {
			if len(block) == 0 {
				p = prompt
				continue
			}
			script := strings.Join(block, "\n")
			block = block[:0]
			result, err := rt.Execute(ctx, pol, script)
			if result.Stdout != "" {
				io.WriteString(out, result.Stdout)
			}
			if result.Stderr != "" {
				io.WriteString(out, result.Stderr)
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			fmt.Fprintf(out, "[%s]\n", result.ExitKind)
			p = prompt
			continue
		}

		block = append(block, line)
		p = promptCont
	}
}

// newLineSource picks raw-mode terminal editing when both in and out are a
// real TTY, and a plain bufio.Scanner otherwise (pipes, tests, scripted
// input). The returned cleanup always restores terminal state if it was
// changed.
func newLineSource(in io.Reader, out io.Writer) (lineSource, func()) {
	inFile, inOK := in.(*os.File)
	outFile, outOK := out.(*os.File)
	if inOK && outOK && term.IsTerminal(int(inFile.Fd())) && term.IsTerminal(int(outFile.Fd())) {
		fd := int(inFile.Fd())
		state, err := term.MakeRaw(fd)
		if err == nil {
			t := term.NewTerminal(struct {
				io.Reader
				io.Writer
			}{inFile, outFile}, prompt)
			return &ttySource{terminal: t}, func() { term.Restore(fd, state) }
		}
	}
	return &scannerSource{scanner: bufio.NewScanner(in)}, func() {}
}

type ttySource struct {
	terminal *term.Terminal
}

func (t *ttySource) readLine(prompt string) (string, bool) {
	t.terminal.SetPrompt(prompt)
	line, err := t.terminal.ReadLine()
	if err != nil {
		return "", false
	}
	return line, true
}

type scannerSource struct {
	scanner *bufio.Scanner
}

func (s *scannerSource) readLine(prompt string) (string, bool) {
	if !s.scanner.Scan() {
		return "", false
	}
	return s.scanner.Text(), true
}
