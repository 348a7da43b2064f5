package devices

import (
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"go2tv.app/castcli/utils"
)

const (
	googlecastService = "_googlecast._tcp"
	minMDNSTimeout    = 750 * time.Millisecond
)

// Swapped in tests.
var (
	mdnsQuery        = mdns.Query
	activeInterfaces = utils.ActiveInterfaces
)

// deviceFromMDNSEntry prefers the fn= TXT record, which holds the name the
// user gave the device, over the service instance name.
func deviceFromMDNSEntry(entry *mdns.ServiceEntry) (Device, bool) {
	if entry == nil || entry.AddrV4 == nil || !strings.Contains(entry.Name, "_googlecast") {
		return Device{}, false
	}

	name, _, _ := strings.Cut(entry.Name, "._googlecast")
	for _, txt := range entry.InfoFields {
		if fn, ok := strings.CutPrefix(txt, "fn="); ok && fn != "" {
			name = fn
			break
		}
	}

	return Device{
		Name: name,
		Addr: fmt.Sprintf("http://%s:%d", entry.AddrV4, entry.Port),
		Type: DeviceTypeChromecast,
	}, true
}

// loadChromecastDevices browses for cast devices on every active interface
// for the settle duration, or on the default one when none qualifies. It
// fails only when every query failed.
func loadChromecastDevices(settle time.Duration) ([]Device, error) {
	timeout := max(settle, minMDNSTimeout)

	var targets []*net.Interface
	for _, iface := range activeInterfaces() {
		targets = append(targets, &iface)
	}
	if len(targets) == 0 {
		targets = []*net.Interface{nil}
	}

	entries := make(chan *mdns.ServiceEntry, 64)
	errs := make(chan error, len(targets))
	for _, iface := range targets {
		go func() {
			params := mdns.DefaultParams(googlecastService)
			params.Entries = entries
			params.Timeout = timeout
			params.Interface = iface
			params.DisableIPv6 = true
			params.WantUnicastResponse = true
			params.Logger = log.New(io.Discard, "", 0)

			errs <- mdnsQuery(params)
		}()
	}

	found := make(map[string]Device)
	var lastErr error
	succeeded := false
	for pending := len(targets); pending > 0; {
		select {
		case entry := <-entries:
			if d, ok := deviceFromMDNSEntry(entry); ok {
				found[d.Addr] = d
			}
		case err := <-errs:
			pending--
			if err != nil {
				lastErr = err
			} else {
				succeeded = true
			}
		}
	}

	// entries may still be buffered once every query returned
	for drained := false; !drained; {
		select {
		case entry := <-entries:
			if d, ok := deviceFromMDNSEntry(entry); ok {
				found[d.Addr] = d
			}
		default:
			drained = true
		}
	}

	if !succeeded {
		return nil, fmt.Errorf("mdns browse: %w", lastErr)
	}

	devs := make([]Device, 0, len(found))
	for _, d := range found {
		devs = append(devs, d)
	}

	return devs, nil
}
