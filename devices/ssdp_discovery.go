package devices

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alexballas/go-ssdp"
	"github.com/rs/zerolog"
	"go2tv.app/castcli/soapcalls"
)

// Swapped in tests.
var (
	ssdpSearch = ssdp.Search
	loadDMR    = soapcalls.DMRextractor
)

func settleToWaitSec(settle time.Duration) int {
	sec := int(math.Ceil(settle.Seconds()))
	if sec < 1 {
		return 1
	}
	return sec
}

// loadSSDPservices returns the media renderers that answer an SSDP search
// and expose an AVTransport service.
func loadSSDPservices(ctx context.Context, settle time.Duration, logger zerolog.Logger) ([]Device, error) {
	list, err := ssdpSearch(ssdp.All, settleToWaitSec(settle), "")
	if err != nil {
		return nil, fmt.Errorf("loadSSDPservices search error: %w", err)
	}

	seen := make(map[string]struct{})
	var devs []Device
	for _, srv := range list {
		if srv.Location == "" {
			continue
		}
		if _, ok := seen[srv.Location]; ok {
			continue
		}
		seen[srv.Location] = struct{}{}

		ex, err := loadDMR(ctx, srv.Location)
		if err != nil {
			logger.Debug().Str("Method", "loadSSDPservices").Str("Location", srv.Location).Err(err).Msg("skipping")
			continue
		}

		name := ex.FriendlyName
		if name == "" {
			name = srv.Location
		}

		devs = append(devs, Device{
			Name: name,
			Addr: srv.Location,
			Type: DeviceTypeDLNA,
		})
	}

	return devs, nil
}
