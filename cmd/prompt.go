package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// interactive reports whether prompts can be shown. Tests override it.
var interactive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompter reads operator answers line by line.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) readLine() string {
	line, _ := p.in.ReadString('\n')
	return strings.TrimSpace(line)
}

// confirm asks a yes/no question; anything but y/yes is no.
func (p *prompter) confirm(question string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	switch strings.ToLower(p.readLine()) {
	case "y", "yes":
		return true
	}
	return false
}

// choose asks until the answer is one of choices (matched by full word or first
// letter). An empty answer returns def.
func (p *prompter) choose(question string, choices []string, def string) string {
	for {
		fmt.Fprintf(p.out, "%s [%s] (default %s): ", question, strings.Join(choices, "/"), def)
		answer := strings.ToLower(p.readLine())
		if answer == "" {
			return def
		}
		for _, c := range choices {
			if answer == c || answer == c[:1] {
				return c
			}
		}
		fmt.Fprintf(p.out, "Please answer one of: %s\n", strings.Join(choices, ", "))
	}
}
