// Package session runs the interactive command loop against one bound
// player.
package session

import (
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go2tv.app/castcli/player"
	"golang.org/x/time/rate"
)

var ErrInputClosed = errors.New("input closed before stop")

var jumpRe = regexp.MustCompile(`^jump\s+(-?\d+)$`)

// commandPrompt is shown before every command read.
const commandPrompt = "> "

// Prompter is the line source of the loop. Notice receives non fatal
// device errors.
type Prompter interface {
	Text(label string) (string, error)
	Notice(msg string)
}

// Session holds the state of one bound device.
type Session struct {
	player   player.Player
	mediaURL string
	meta     player.Metadata
	paused   bool
	limiter  *rate.Limiter
	notice   func(string)
	Logger   zerolog.Logger
}

type Option func(*Session)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.Logger = l }
}

// WithLimiter paces device commands. Commands wait for a token, none are
// dropped.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Session) { s.limiter = l }
}

func New(p player.Player, mediaURL string, meta player.Metadata, opts ...Option) *Session {
	s := &Session{
		player:   p,
		mediaURL: mediaURL,
		meta:     meta,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		notice:   func(string) {},
		Logger:   zerolog.Nop(),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// Paused reports whether the last transport command left the device paused.
func (s *Session) Paused() bool {
	return s.paused
}

// Run reads commands until stop. It returns nil after stop, ErrInputClosed
// when the input ends first, or the context error.
func (s *Session) Run(ctx context.Context, p Prompter) error {
	s.notice = p.Notice
	defer func() { s.notice = func(string) {} }()

	for {
		line, err := readLine(ctx, p)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrInputClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "failed to read command")
		}

		done, err := s.Handle(ctx, line)
		if err != nil {
			return err
		}

		if done {
			return nil
		}
	}
}

type lineResult struct {
	line string
	err  error
}

// readLine returns early when ctx ends. The pending read is abandoned.
func readLine(ctx context.Context, p Prompter) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		l, err := p.Text(commandPrompt)
		ch <- lineResult{l, err}
	}()

	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Handle processes one input line. done is true once stop was issued. The
// returned error is only set when ctx ends, device errors are reported and
// swallowed.
func (s *Session) Handle(ctx context.Context, line string) (done bool, err error) {
	line = strings.TrimSpace(line)

	switch line {
	case "play":
		if err := s.wait(ctx); err != nil {
			return false, err
		}

		if s.paused {
			if err := s.player.Resume(ctx); err != nil {
				s.report("Resume", err)
				return false, nil
			}
			s.paused = false
			return false, nil
		}

		s.report("Play", s.player.Play(ctx, s.mediaURL, s.meta))
		return false, nil

	case "pause":
		if err := s.wait(ctx); err != nil {
			return false, err
		}

		s.paused = true
		s.report("Pause", s.player.Pause(ctx))
		return false, nil

	case "stop":
		if err := s.wait(ctx); err != nil {
			return false, err
		}

		s.report("Stop", s.player.Stop(ctx))
		return true, nil
	}

	m := jumpRe.FindStringSubmatch(line)
	if m == nil {
		return false, nil
	}

	offset, err := strconv.Atoi(m[1])
	if err != nil {
		return false, nil
	}

	return false, s.jump(ctx, offset)
}

func (s *Session) jump(ctx context.Context, offset int) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	st, err := s.player.Status(ctx)
	if err != nil {
		s.report("Status", err)
		return nil
	}

	target := st.CurrentTime + float64(offset)
	if target < 0 {
		target = 0
	}

	s.Logger.Debug().Str("Method", "jump").Float64("From", st.CurrentTime).Float64("To", target).Send()
	s.report("Seek", s.player.Seek(ctx, target))

	return nil
}

func (s *Session) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, "command limiter")
	}
	return nil
}

func (s *Session) report(method string, err error) {
	if err == nil {
		return
	}

	s.Logger.Error().Str("Method", method).Err(err).Msg("device command failed")
	s.notice(method + " failed: " + err.Error())
}
