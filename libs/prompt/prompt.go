package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers to questions printed on a terminal
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// New returns a Prompter reading from in and writing questions to out
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
}

// Stdio returns a Prompter bound to the process terminal
func Stdio() *Prompter {
	p := New(os.Stdin, os.Stdout)
	p.fd = int(os.Stdin.Fd())
	return p
}

// String prompts for a single line of input
func (p *Prompter) String(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	text, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && text != "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Bool prompts for y/n input returning a bool
func (p *Prompter) Bool(label string) (bool, error) {
	for {
		text, err := p.String(label + " (y/n)")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(text) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		fmt.Fprintln(p.out, `Input must be "y" or "n"`)
	}
}

// Password prompts for a password without echoing it when attached to a terminal
func (p *Prompter) Password(label string) (string, error) {
	if p.fd < 0 || !term.IsTerminal(p.fd) {
		return p.String(label)
	}

	fmt.Fprintf(p.out, "%s: ", label)
	defer fmt.Fprint(p.out, "\n")
	b, err := term.ReadPassword(p.fd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Println writes a line to the prompt output
func (p *Prompter) Println(a ...interface{}) {
	fmt.Fprintln(p.out, a...)
}
