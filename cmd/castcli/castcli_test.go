package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"go2tv.app/castcli/devices"
	"go2tv.app/castcli/interactive"
	"go2tv.app/castcli/internal/config"
	"go2tv.app/castcli/player"
	"go2tv.app/castcli/session"
	"go2tv.app/castcli/staging"
)

type recPlayer struct {
	calls []string
}

func (r *recPlayer) Play(_ context.Context, url string, meta player.Metadata) error {
	r.calls = append(r.calls, fmt.Sprintf("play(%s,{%s,%s})", url, meta.Title, meta.ContentType))
	return nil
}
func (r *recPlayer) Pause(context.Context) error  { r.calls = append(r.calls, "pause"); return nil }
func (r *recPlayer) Resume(context.Context) error { r.calls = append(r.calls, "resume"); return nil }
func (r *recPlayer) Stop(context.Context) error   { r.calls = append(r.calls, "stop"); return nil }
func (r *recPlayer) Seek(context.Context, float64) error {
	r.calls = append(r.calls, "seek")
	return nil
}
func (r *recPlayer) Status(context.Context) (player.Status, error) { return player.Status{}, nil }
func (r *recPlayer) Close() error                                  { r.calls = append(r.calls, "close"); return nil }

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

type fixture struct {
	conf *config.Config
	src  string
	rec  *recPlayer
	out  bytes.Buffer
}

func setup(t *testing.T, devs []devices.Device) *fixture {
	t.Helper()
	dir := t.TempDir()

	f := &fixture{rec: &recPlayer{}}
	f.src = filepath.Join(dir, "movie.mp4")
	if err := os.WriteFile(f.src, []byte("not really a movie"), 0o644); err != nil {
		t.Fatal(err)
	}

	conf := config.Default()
	conf.DataDir = filepath.Join(dir, "data")
	conf.Port = freePort(t)
	conf.SettleDelay = 0
	conf.CommandRate = 1000
	f.conf = &conf

	oldDiscover, oldOpen, oldIP := discover, openPlayer, localIPv4
	t.Cleanup(func() {
		discover, openPlayer, localIPv4 = oldDiscover, oldOpen, oldIP
	})

	discover = func(context.Context, time.Duration, zerolog.Logger) ([]devices.Device, error) {
		if len(devs) == 0 {
			return nil, devices.ErrNoDeviceAvailable
		}
		return devs, nil
	}
	openPlayer = func(context.Context, devices.Device, zerolog.Logger) (player.Player, error) {
		return f.rec, nil
	}
	localIPv4 = func() (string, error) { return "192.168.1.10", nil }

	return f
}

func (f *fixture) run(input string) error {
	console := interactive.NewPrompt(strings.NewReader(input), &f.out, false)
	return run(context.Background(), f.conf, f.src, console, zerolog.Nop())
}

func stagedFiles(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

var livingRoom = []devices.Device{{Name: "Living Room TV", Addr: "http://192.168.1.20:8009", Type: devices.DeviceTypeChromecast}}

func TestRunEndToEnd(t *testing.T) {
	f := setup(t, livingRoom)

	if err := f.run("1\nplay\npause\nplay\nstop\n"); err != nil {
		t.Fatalf("run() err = %v", err)
	}

	if len(f.rec.calls) != 5 || !strings.HasPrefix(f.rec.calls[0], "play(http://192.168.1.10:") ||
		!strings.HasSuffix(f.rec.calls[0], ".mp4,{movie.mp4,video/mp4})") {
		t.Fatalf("calls = %q", f.rec.calls)
	}
	if got := strings.Join(f.rec.calls[1:], " "); got != "pause resume stop close" {
		t.Fatalf("calls = %q", f.rec.calls)
	}

	if n := len(stagedFiles(t, f.conf.DataDir)); n != 0 {
		t.Fatalf("staging dir holds %d entries after stop", n)
	}

	out := f.out.String()
	for _, want := range []string{"File successfully copied.", "1 - Living Room TV", "All done!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}

func TestRunNoDevices(t *testing.T) {
	f := setup(t, nil)

	err := f.run("1\n")
	if !errors.Is(err, devices.ErrNoDeviceAvailable) {
		t.Fatalf("run() err = %v, want ErrNoDeviceAvailable", err)
	}

	if strings.Contains(f.out.String(), "Which player") {
		t.Fatal("selection prompt shown without devices")
	}
	if n := len(stagedFiles(t, f.conf.DataDir)); n != 0 {
		t.Fatalf("staging dir holds %d entries after failure", n)
	}
}

func TestRunInvalidSelection(t *testing.T) {
	for _, input := range []string{"0\n", "2\n", "abc\n"} {
		f := setup(t, livingRoom)

		if err := f.run(input); !errors.Is(err, devices.ErrInvalidSelection) {
			t.Fatalf("run(%q) err = %v, want ErrInvalidSelection", input, err)
		}
		if len(f.rec.calls) != 0 {
			t.Fatalf("run(%q) touched the player: %q", input, f.rec.calls)
		}
	}
}

func TestRunStopsDeviceOnFailure(t *testing.T) {
	f := setup(t, livingRoom)

	err := f.run("1\nplay\n")
	if !errors.Is(err, session.ErrInputClosed) {
		t.Fatalf("run() err = %v, want ErrInputClosed", err)
	}

	if got := strings.Join(f.rec.calls[1:], " "); got != "stop close" {
		t.Fatalf("calls = %q, want best effort stop then close", f.rec.calls)
	}
	if n := len(stagedFiles(t, f.conf.DataDir)); n != 0 {
		t.Fatalf("staging dir holds %d entries after failure", n)
	}
}

func TestRunWithoutSource(t *testing.T) {
	f := setup(t, livingRoom)
	f.src = "  "

	if err := f.run(""); !errors.Is(err, staging.ErrNoSource) {
		t.Fatalf("run() err = %v, want ErrNoSource", err)
	}
}

func TestRunRefusesSourceInsideStagingDir(t *testing.T) {
	f := setup(t, livingRoom)

	movies := filepath.Dir(f.src)
	other := filepath.Join(movies, "other-movie.mkv")
	if err := os.WriteFile(other, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}
	f.conf.DataDir = movies

	if err := f.run("1\nstop\n"); !errors.Is(err, staging.ErrSourceInDir) {
		t.Fatalf("run() err = %v, want ErrSourceInDir", err)
	}

	for _, p := range []string{f.src, other} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("user file %s is gone: %v", filepath.Base(p), err)
		}
	}
	if len(f.rec.calls) != 0 {
		t.Fatalf("calls = %q, want none", f.rec.calls)
	}
}

func TestRunWithoutExtension(t *testing.T) {
	f := setup(t, livingRoom)

	f.src = filepath.Join(filepath.Dir(f.src), "home-video")
	if err := os.WriteFile(f.src, []byte("unknown bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := f.run("1\nplay\nstop\n"); err != nil {
		t.Fatalf("run() err = %v", err)
	}

	if len(f.rec.calls) != 3 || !strings.HasSuffix(f.rec.calls[0], ",{home-video,video/})") {
		t.Fatalf("calls = %q", f.rec.calls)
	}
}

func TestFlagOverrides(t *testing.T) {
	var got map[string]any

	cmd := newCommand()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		got = flagOverrides(c)
		return nil
	}

	if err := cmd.Run(context.Background(), []string{"castcli", "--port", "8080", "--settle", "5s", "movie.mp4"}); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 || got["port"] != 8080 || got["settle_delay"] != 5*time.Second {
		t.Fatalf("flagOverrides() = %v", got)
	}
}
