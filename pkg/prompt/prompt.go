// Package prompt asks a person at a terminal for credentials.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	ErrNoTerminal = errors.New("no terminal available for interactive prompt")
	ErrNoAnswer   = errors.New("no answer for prompt")
)

type Prompter interface {
	// ReadSecret prompts without echoing the input.
	ReadSecret(label string) (string, error)
	// ReadLine prompts with the input echoed.
	ReadLine(label string) (string, error)
}

type Terminal struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewTerminal prompts on stderr and reads from stdin.
func NewTerminal() *Terminal {
	return NewTerminalFrom(os.Stdin, os.Stderr)
}

func NewTerminalFrom(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

func (t *Terminal) ReadSecret(label string) (string, error) {
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}
	fmt.Fprint(t.out, label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("error reading secret: %w", err)
	}
	return string(secret), nil
}

func (t *Terminal) ReadLine(label string) (string, error) {
	fmt.Fprint(t.out, label)
	if t.reader == nil {
		t.reader = bufio.NewReader(t.in)
	}
	line, err := t.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("error reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Canned answers prompts from a fixed set of responses keyed by label.
type Canned struct {
	Answers map[string]string
	Asked   []string
}

func (c *Canned) ReadSecret(label string) (string, error) {
	return c.answer(label)
}

func (c *Canned) ReadLine(label string) (string, error) {
	return c.answer(label)
}

func (c *Canned) answer(label string) (string, error) {
	c.Asked = append(c.Asked, label)
	a, ok := c.Answers[label]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrNoAnswer, label)
	}
	return a, nil
}
