package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"go2tv.app/castcli/devices"
	"go2tv.app/castcli/httphandlers"
	"go2tv.app/castcli/interactive"
	"go2tv.app/castcli/internal/config"
	"go2tv.app/castcli/player"
	"go2tv.app/castcli/session"
	"go2tv.app/castcli/staging"
	"go2tv.app/castcli/utils"
	"golang.org/x/time/rate"
)

var version = "dev"

// Swapped in tests.
var (
	discover   = devices.Discover
	openPlayer = player.Open
	localIPv4  = utils.LocalIPv4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCommand().Run(ctx, os.Args)
	stop()
	check(err)
}

func check(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Encountered error(s): %s\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "castcli",
		Usage:     "Cast a local video file to a Chromecast or DLNA device",
		Version:   version,
		ArgsUsage: "<path to video file>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "HTTP port the media is served on"},
			&cli.StringFlag{Name: "dir", Usage: "staging directory"},
			&cli.DurationFlag{Name: "settle", Usage: "how long to wait for devices to answer"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
			&cli.StringFlag{Name: "config", Usage: "path to a JSON settings file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			conf, err := config.Load(cmd.String("config"), flagOverrides(cmd))
			if err != nil {
				return err
			}

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(conf.Level()).With().Timestamp().Logger()

			return run(ctx, conf, strings.Join(cmd.Args().Slice(), " "), interactive.NewConsole(), logger)
		},
	}
}

func flagOverrides(cmd *cli.Command) map[string]any {
	o := make(map[string]any)

	if cmd.IsSet("port") {
		o["port"] = int(cmd.Int("port"))
	}
	if cmd.IsSet("dir") {
		o["data_dir"] = cmd.String("dir")
	}
	if cmd.IsSet("settle") {
		o["settle_delay"] = cmd.Duration("settle")
	}
	if cmd.IsSet("log-level") {
		o["log_level"] = cmd.String("log-level")
	}

	return o
}

func run(ctx context.Context, conf *config.Config, src string, console *interactive.Prompt, logger zerolog.Logger) (err error) {
	if strings.TrimSpace(src) == "" {
		return staging.ErrNoSource
	}

	if err := staging.CheckSource(conf.DataDir, src); err != nil {
		return err
	}

	if err := staging.Prepare(conf.DataDir); err != nil {
		return err
	}
	defer func() {
		if cerr := staging.Clear(conf.DataDir); cerr != nil {
			logger.Error().Str("Method", "run").Err(cerr).Msg("clear staging")
		}
	}()

	srv := httphandlers.NewServer(net.JoinHostPort("", strconv.Itoa(conf.Port)), conf.DataDir)
	srv.Logger = logger
	serverStarted := make(chan error)
	go srv.StartServer(serverStarted)
	if err := <-serverStarted; err != nil {
		return err
	}
	defer srv.StopServer()

	console.Println("Copying file to data folder...")
	media, err := staging.Stage(conf.DataDir, src)
	if err != nil {
		return err
	}
	console.Println("File successfully copied.")

	console.Println("Searching for players...")
	devs, err := discover(ctx, conf.SettleDelay, logger)
	if err != nil {
		return err
	}

	console.Println("Players:")
	rows := make([][2]string, len(devs))
	for i, d := range devs {
		rows[i] = [2]string{fmt.Sprintf("%d - %s", i+1, d.Name), "[" + d.Type + "]"}
	}
	for _, l := range interactive.Columns(rows, 2) {
		console.Println(console.Yellow(l))
	}

	input, err := console.TextContext(ctx, "Which player would you like to use? (enter number)")
	if err != nil {
		return errors.Wrap(err, "failed to read selection")
	}

	dev, err := devices.Pick(devs, input)
	if err != nil {
		return err
	}

	host, err := localIPv4()
	if err != nil {
		return err
	}

	p, err := openPlayer(ctx, dev, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = p.Stop(stopCtx)
			cancel()
		}
		_ = p.Close()
	}()

	console.Println("Connected to " + dev.Name + ". Commands:")
	console.Println("  " + console.Green("play"))
	console.Println("  " + console.Yellow("pause"))
	console.Println("  " + console.Cyan("jump [seconds]"))
	console.Println("  " + console.Red("stop"))

	s := session.New(p, media.URL(host, conf.Port), player.Metadata{Title: media.Title, ContentType: media.ContentType()},
		session.WithLogger(logger),
		session.WithLimiter(rate.NewLimiter(rate.Limit(conf.CommandRate), 1)),
	)

	if err = s.Run(ctx, console); err != nil {
		return err
	}

	console.Println("Clearing data folder.")
	if err = staging.Clear(conf.DataDir); err != nil {
		return err
	}
	console.Println("All done!")

	return nil
}
