// Package interactive reads user input line by line and writes colored
// console output.
package interactive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
)

// Prompt is a line based console.
type Prompt struct {
	in  *bufio.Reader
	out *termenv.Output
	mu  sync.Mutex
}

// NewPrompt reads from r and writes to w. Colors are only emitted when color
// is true.
func NewPrompt(r io.Reader, w io.Writer, color bool) *Prompt {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI
	}

	return &Prompt{
		in:  bufio.NewReader(r),
		out: termenv.NewOutput(w, termenv.WithProfile(profile)),
	}
}

// NewConsole returns a Prompt on stdin and stdout. Colors are enabled when
// stdout is a terminal and NO_COLOR is unset.
func NewConsole() *Prompt {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	_, noColor := os.LookupEnv("NO_COLOR")

	return NewPrompt(os.Stdin, colorable.NewColorable(os.Stdout), tty && !noColor)
}

// Text prints label, when not empty, and returns the next input line without
// its line ending. A label ending in a space, like "> ", stays on the input
// line. io.EOF is returned once input is exhausted.
func (p *Prompt) Text(label string) (string, error) {
	switch {
	case label == "":
	case strings.HasSuffix(label, " "):
		p.mu.Lock()
		fmt.Fprint(p.out, label)
		p.mu.Unlock()
	default:
		p.Println(label)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// TextContext is Text that gives up once ctx is done. The pending read is
// abandoned, so the Prompt should not be read from afterwards.
func (p *Prompt) TextContext(ctx context.Context, label string) (string, error) {
	type result struct {
		line string
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		l, err := p.Text(label)
		ch <- result{l, err}
	}()

	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Notice reports a non fatal problem to the user.
func (p *Prompt) Notice(msg string) {
	p.Println(p.Red(msg))
}

// Println writes a line.
func (p *Prompt) Println(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, a...)
}

func (p *Prompt) paint(s string, c termenv.ANSIColor) string {
	return p.out.String(s).Foreground(c).String()
}

func (p *Prompt) Green(s string) string  { return p.paint(s, termenv.ANSIGreen) }
func (p *Prompt) Yellow(s string) string { return p.paint(s, termenv.ANSIYellow) }
func (p *Prompt) Cyan(s string) string   { return p.paint(s, termenv.ANSICyan) }
func (p *Prompt) Red(s string) string    { return p.paint(s, termenv.ANSIRed) }

// Columns pads every left cell to the widest one so the right cells line up,
// also for wide runes.
func Columns(rows [][2]string, gap int) []string {
	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r[1] == "" {
			out = append(out, r[0])
			continue
		}
		out = append(out, runewidth.FillRight(r[0], width+gap)+r[1])
	}

	return out
}
