// Package player puts Chromecast and DLNA renderers behind one control
// interface.
package player

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go2tv.app/castcli/devices"
)

var ErrUnsupportedDevice = errors.New("unsupported device type")

// Metadata describes the media handed to Play.
type Metadata struct {
	Title       string
	ContentType string
}

// Status is a playback snapshot. Times are in seconds.
type Status struct {
	CurrentTime float64
	Duration    float64
	State       string
}

// Player controls one bound device.
type Player interface {
	Play(ctx context.Context, url string, meta Metadata) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	Status(ctx context.Context) (Status, error)
	Close() error
}

// Open connects to dev and returns a Player for it.
func Open(ctx context.Context, dev devices.Device, logger zerolog.Logger) (Player, error) {
	logger.Debug().Str("Method", "Open").Str("Type", dev.Type).Str("Addr", dev.Addr).Msg(dev.Name)

	var p Player
	var err error

	switch dev.Type {
	case devices.DeviceTypeChromecast:
		p, err = openChromecast(ctx, dev.Addr, logger)
	case devices.DeviceTypeDLNA:
		p, err = openDLNA(ctx, dev.Addr, logger)
	default:
		return nil, errors.Wrap(ErrUnsupportedDevice, fmt.Sprintf("%q", dev.Type))
	}

	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", dev.Name)
	}

	return p, nil
}

func clampSeconds(seconds float64) float64 {
	if seconds < 0 {
		return 0
	}
	return seconds
}
