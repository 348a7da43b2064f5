package devices

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DeviceTypeChromecast = "Chromecast"
	DeviceTypeDLNA       = "DLNA"
)

var (
	ErrNoDeviceAvailable = errors.New("No players found.")
	ErrInvalidSelection  = errors.New("That is not a valid selection!")
)

// Device is a discovered playback target. Addr is the Chromecast cast
// address or the DLNA device description URL.
type Device struct {
	Name string
	Addr string
	Type string
}

// Discover queries mDNS for Chromecast devices and SSDP for DLNA media
// renderers concurrently, letting both settle for the given delay. The
// result is deduplicated by address and sorted by name.
func Discover(ctx context.Context, settle time.Duration, logger zerolog.Logger) ([]Device, error) {
	type result struct {
		kind string
		devs []Device
		err  error
	}

	results := make(chan result, 2)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		devs, err := loadChromecastDevices(settle)
		results <- result{DeviceTypeChromecast, devs, err}
	}()
	go func() {
		defer wg.Done()
		devs, err := loadSSDPservices(ctx, settle, logger)
		results <- result{DeviceTypeDLNA, devs, err}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}
	close(results)

	var all []Device
	var errs []error
	for r := range results {
		if r.err != nil {
			logger.Warn().Str("Method", "Discover").Str("Type", r.kind).Err(r.err).Msg("discovery failed")
			errs = append(errs, errors.Wrapf(r.err, "%s discovery", r.kind))
			continue
		}

		logger.Debug().Str("Method", "Discover").Str("Type", r.kind).Int("Found", len(r.devs)).Msg("discovery done")
		all = append(all, r.devs...)
	}

	if len(errs) == 2 {
		return nil, errors.Errorf("%v; %v", errs[0], errs[1])
	}

	all = dedupe(all)
	if len(all) == 0 {
		return nil, ErrNoDeviceAvailable
	}

	sortDevices(all)
	return all, nil
}

func dedupe(all []Device) []Device {
	seen := make(map[string]struct{}, len(all))
	out := make([]Device, 0, len(all))
	for _, d := range all {
		d.Name = strings.TrimSpace(d.Name)
		d.Addr = strings.TrimSpace(d.Addr)
		key := strings.ToLower(d.Addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}

	return out
}

func sortDevices(all []Device) {
	sort.SliceStable(all, func(i, j int) bool {
		if strings.ToLower(all[i].Name) != strings.ToLower(all[j].Name) {
			return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
		}
		return strings.ToLower(all[i].Addr) < strings.ToLower(all[j].Addr)
	})
}

// Pick returns the device for a 1-based selection typed by the user. All
// non-digit characters are ignored, so "#2" or " 2 " select the second one.
func Pick(devs []Device, input string) (Device, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)

	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 || n > len(devs) {
		return Device{}, ErrInvalidSelection
	}

	return devs[n-1], nil
}
