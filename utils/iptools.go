package utils

import (
	"net"

	"github.com/pkg/errors"
)

// ErrNoLocalAddress is returned when no interface carries a usable IPv4 address.
var ErrNoLocalAddress = errors.New("no non-loopback IPv4 address found")

// NetInterface is the subset of a network interface we need for address
// selection.
type NetInterface struct {
	Iface net.Interface
	Addrs []net.Addr
}

// listInterfaces is swapped in tests.
var listInterfaces = func() ([]NetInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]NetInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, NetInterface{Iface: iface, Addrs: addrs})
	}

	return out, nil
}

// LocalIPv4 returns the first IPv4 address found on an interface that is up
// and not a loopback. That address becomes the host of the media URL.
func LocalIPv4() (string, error) {
	ifaces, err := listInterfaces()
	if err != nil {
		return "", errors.Wrap(err, "LocalIPv4 interfaces error")
	}

	for _, ni := range ifaces {
		if !usable(ni.Iface) {
			continue
		}

		if ip := firstIPv4(ni.Addrs); ip != nil {
			return ip.String(), nil
		}
	}

	return "", ErrNoLocalAddress
}

// ActiveInterfaces returns all interfaces that are up, multicast-capable, not
// loopback and have an IPv4 address. Discovery queries each one of them.
func ActiveInterfaces() []net.Interface {
	ifaces, err := listInterfaces()
	if err != nil {
		return nil
	}

	var active []net.Interface
	for _, ni := range ifaces {
		if !usable(ni.Iface) || ni.Iface.Flags&net.FlagMulticast == 0 {
			continue
		}

		if firstIPv4(ni.Addrs) != nil {
			active = append(active, ni.Iface)
		}
	}

	return active
}

func usable(iface net.Interface) bool {
	return iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0
}

func firstIPv4(addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}

		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4
		}
	}

	return nil
}
