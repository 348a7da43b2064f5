package utils

import (
	"errors"
	"net"
	"testing"
)

func ipnet(s string) net.Addr {
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	n.IP = ip
	return n
}

func TestLocalIPv4(t *testing.T) {
	tt := []struct {
		name   string
		ifaces []NetInterface
		want   string
		err    error
	}{
		{
			`skips loopback and picks first IPv4`,
			[]NetInterface{
				{Iface: net.Interface{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}, Addrs: []net.Addr{ipnet("127.0.0.1/8")}},
				{Iface: net.Interface{Name: "eth0", Flags: net.FlagUp | net.FlagMulticast}, Addrs: []net.Addr{ipnet("fe80::1/64"), ipnet("192.168.1.20/24")}},
				{Iface: net.Interface{Name: "wlan0", Flags: net.FlagUp}, Addrs: []net.Addr{ipnet("10.0.0.5/8")}},
			},
			"192.168.1.20",
			nil,
		},
		{
			`skips interfaces that are down`,
			[]NetInterface{
				{Iface: net.Interface{Name: "eth0"}, Addrs: []net.Addr{ipnet("192.168.1.20/24")}},
				{Iface: net.Interface{Name: "wlan0", Flags: net.FlagUp}, Addrs: []net.Addr{ipnet("10.0.0.5/8")}},
			},
			"10.0.0.5",
			nil,
		},
		{
			`ipv6 only is an error`,
			[]NetInterface{
				{Iface: net.Interface{Name: "eth0", Flags: net.FlagUp}, Addrs: []net.Addr{ipnet("2001:db8::1/64")}},
			},
			"",
			ErrNoLocalAddress,
		},
		{
			`no interfaces`,
			nil,
			"",
			ErrNoLocalAddress,
		},
	}

	orig := listInterfaces
	t.Cleanup(func() { listInterfaces = orig })

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			listInterfaces = func() ([]NetInterface, error) { return tc.ifaces, nil }

			got, err := LocalIPv4()
			if !errors.Is(err, tc.err) {
				t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.err)
			}
			if got != tc.want {
				t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
			}
		})
	}
}

func TestActiveInterfaces(t *testing.T) {
	orig := listInterfaces
	t.Cleanup(func() { listInterfaces = orig })

	listInterfaces = func() ([]NetInterface, error) {
		return []NetInterface{
			{Iface: net.Interface{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback | net.FlagMulticast}, Addrs: []net.Addr{ipnet("127.0.0.1/8")}},
			{Iface: net.Interface{Index: 2, Name: "eth0", Flags: net.FlagUp | net.FlagMulticast}, Addrs: []net.Addr{ipnet("192.168.1.20/24")}},
			{Iface: net.Interface{Index: 3, Name: "tun0", Flags: net.FlagUp}, Addrs: []net.Addr{ipnet("10.8.0.2/24")}},
		}, nil
	}

	got := ActiveInterfaces()
	if len(got) != 1 || got[0].Name != "eth0" {
		t.Fatalf("ActiveInterfaces() = %+v, want only eth0", got)
	}
}
