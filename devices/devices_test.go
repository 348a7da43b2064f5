package devices

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alexballas/go-ssdp"
	"github.com/hashicorp/mdns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go2tv.app/castcli/soapcalls"
)

type discoveryFakes struct {
	entries []*mdns.ServiceEntry
	mdnsErr error
	ssdp    []ssdp.Service
	ssdpErr error
	dmr     map[string]string
}

func withFakes(t *testing.T, f discoveryFakes) {
	t.Helper()

	origQuery, origIfaces := mdnsQuery, activeInterfaces
	origSearch, origLoad := ssdpSearch, loadDMR
	t.Cleanup(func() {
		mdnsQuery, activeInterfaces = origQuery, origIfaces
		ssdpSearch, loadDMR = origSearch, origLoad
	})

	activeInterfaces = func() []net.Interface { return nil }

	mdnsQuery = func(params *mdns.QueryParam) error {
		if params.Service != googlecastService {
			t.Errorf("mdns service = %q", params.Service)
		}
		for _, e := range f.entries {
			params.Entries <- e
		}
		return f.mdnsErr
	}

	ssdpSearch = func(searchType string, waitSec int, localAddr string) ([]ssdp.Service, error) {
		return f.ssdp, f.ssdpErr
	}

	loadDMR = func(ctx context.Context, dmrurl string) (*soapcalls.DMRextracted, error) {
		name, ok := f.dmr[dmrurl]
		if !ok {
			return nil, soapcalls.ErrNoAVTransport
		}
		return &soapcalls.DMRextracted{FriendlyName: name, AvtransportControlURL: dmrurl + "/control"}, nil
	}
}

func castEntry(name, ip string, port int) *mdns.ServiceEntry {
	return &mdns.ServiceEntry{
		Name:       name + "-abc._googlecast._tcp.local.",
		AddrV4:     net.ParseIP(ip),
		Port:       port,
		InfoFields: []string{"id=abc", "fn=" + name, "ca=4101"},
	}
}

func TestDiscoverMergesAndSorts(t *testing.T) {
	withFakes(t, discoveryFakes{
		entries: []*mdns.ServiceEntry{
			castEntry("Living Room TV", "192.168.1.30", 8009),
			castEntry("Living Room TV", "192.168.1.30", 8009),
		},
		ssdp: []ssdp.Service{
			{Type: "urn:schemas-upnp-org:service:AVTransport:1", Location: "http://192.168.1.40:9197/dmr"},
			{Type: ssdp.RootDevice, Location: "http://192.168.1.40:9197/dmr"},
			{Type: ssdp.RootDevice, Location: "http://192.168.1.50:1400/printer.xml"},
		},
		dmr: map[string]string{"http://192.168.1.40:9197/dmr": "bedroom"},
	})

	devs, err := Discover(context.Background(), 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("Discover() err = %v, want nil", err)
	}

	want := []Device{
		{Name: "bedroom", Addr: "http://192.168.1.40:9197/dmr", Type: DeviceTypeDLNA},
		{Name: "Living Room TV", Addr: "http://192.168.1.30:8009", Type: DeviceTypeChromecast},
	}

	if len(devs) != len(want) {
		t.Fatalf("Discover() = %+v, want %+v", devs, want)
	}
	for i := range want {
		if devs[i] != want[i] {
			t.Fatalf("Discover()[%d] = %+v, want %+v", i, devs[i], want[i])
		}
	}
}

func TestDiscoverNoDevices(t *testing.T) {
	withFakes(t, discoveryFakes{})

	_, err := Discover(context.Background(), 0, zerolog.Nop())
	if !errors.Is(err, ErrNoDeviceAvailable) {
		t.Fatalf("Discover() err = %v, want %v", err, ErrNoDeviceAvailable)
	}
}

func TestDiscoverPartialFailure(t *testing.T) {
	withFakes(t, discoveryFakes{
		entries: []*mdns.ServiceEntry{castEntry("Kitchen", "192.168.1.31", 8009)},
		ssdpErr: errors.New("no multicast route"),
	})

	devs, err := Discover(context.Background(), 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("Discover() err = %v, want nil", err)
	}
	if len(devs) != 1 || devs[0].Name != "Kitchen" {
		t.Fatalf("Discover() = %+v", devs)
	}
}

func TestDiscoverBothFail(t *testing.T) {
	withFakes(t, discoveryFakes{
		mdnsErr: errors.New("mdns down"),
		ssdpErr: errors.New("ssdp down"),
	})

	_, err := Discover(context.Background(), 0, zerolog.Nop())
	if err == nil || errors.Is(err, ErrNoDeviceAvailable) {
		t.Fatalf("Discover() err = %v, want discovery error", err)
	}
}

func TestDiscoverCanceled(t *testing.T) {
	withFakes(t, discoveryFakes{})

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	ssdpSearch = func(string, int, string) ([]ssdp.Service, error) {
		<-release
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Discover(ctx, 0, zerolog.Nop())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Discover() err = %v, want deadline exceeded", err)
	}
}

func TestSettleToWaitSec(t *testing.T) {
	tt := []struct {
		settle time.Duration
		want   int
	}{
		{3 * time.Second, 3},
		{1500 * time.Millisecond, 2},
		{0, 1},
		{-time.Second, 1},
	}

	for _, tc := range tt {
		if got := settleToWaitSec(tc.settle); got != tc.want {
			t.Errorf("settleToWaitSec(%s) = %d, want %d", tc.settle, got, tc.want)
		}
	}
}

func TestDeviceFromMDNSEntry(t *testing.T) {
	d, ok := deviceFromMDNSEntry(castEntry("Den", "10.0.0.7", 8009))
	if !ok || d.Name != "Den" || d.Addr != "http://10.0.0.7:8009" || d.Type != DeviceTypeChromecast {
		t.Fatalf("deviceFromMDNSEntry() = %+v, %v", d, ok)
	}

	noFn := &mdns.ServiceEntry{Name: "Chromecast-1234._googlecast._tcp.local.", AddrV4: net.ParseIP("10.0.0.8"), Port: 8009}
	if d, ok := deviceFromMDNSEntry(noFn); !ok || d.Name != "Chromecast-1234" {
		t.Fatalf("deviceFromMDNSEntry() without fn = %+v, %v", d, ok)
	}

	if _, ok := deviceFromMDNSEntry(&mdns.ServiceEntry{Name: "printer._ipp._tcp.local.", AddrV4: net.ParseIP("10.0.0.9")}); ok {
		t.Fatal("deviceFromMDNSEntry() accepted a non cast service")
	}
	if _, ok := deviceFromMDNSEntry(nil); ok {
		t.Fatal("deviceFromMDNSEntry(nil) = ok")
	}
}

func TestPick(t *testing.T) {
	devs := []Device{
		{Name: "Bedroom", Addr: "http://a"},
		{Name: "Living Room TV", Addr: "http://b"},
		{Name: "Kitchen", Addr: "http://c"},
	}

	tt := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1", "Bedroom", false},
		{"2", "Living Room TV", false},
		{" 2 ", "Living Room TV", false},
		{"#2", "Living Room TV", false},
		{"3\n", "Kitchen", false},
		{"", "", true},
		{"0", "", true},
		{"4", "", true},
		{"abc", "", true},
		{"99999999999999999999", "", true},
	}

	for _, tc := range tt {
		t.Run(tc.input, func(t *testing.T) {
			got, err := Pick(devs, tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidSelection) {
					t.Fatalf("Pick(%q) err = %v, want %v", tc.input, err, ErrInvalidSelection)
				}
				return
			}
			if err != nil {
				t.Fatalf("Pick(%q) err = %v", tc.input, err)
			}
			if got.Name != tc.want {
				t.Fatalf("Pick(%q) = %q, want %q", tc.input, got.Name, tc.want)
			}
		})
	}
}
