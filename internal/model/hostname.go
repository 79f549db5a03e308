package model

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrNoPort is returned when an address has no port part.
	ErrNoPort = errors.New("address has no port")
	// ErrEmptyHost is returned when an address has no host part.
	ErrEmptyHost = errors.New("address has no host")
)

// Hostname is a validated host:port pair.
type Hostname struct {
	host string
	port uint16
}

// ParseHostname validates a host:port address. A leading http:// or https:// scheme is tolerated.
func ParseHostname(address string) (Hostname, error) {
	address = strings.TrimPrefix(strings.TrimPrefix(address, "http://"), "https://")
	address = strings.TrimSuffix(address, "/")
	if !strings.Contains(address, ":") {
		return Hostname{}, fmt.Errorf("%q: %w", address, ErrNoPort)
	}
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return Hostname{}, fmt.Errorf("invalid address %q: %w", address, err)
	}
	if host == "" {
		return Hostname{}, fmt.Errorf("%q: %w", address, ErrEmptyHost)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Hostname{}, fmt.Errorf("invalid port in %q: %w", address, err)
	}
	return Hostname{host: host, port: uint16(port)}, nil
}

// WithPort keeps the host of address and replaces its port.
func WithPort(address string, port uint16) (Hostname, error) {
	h, err := ParseHostname(address)
	if err != nil {
		return Hostname{}, err
	}
	h.port = port
	return h, nil
}

func (h Hostname) Host() string { return h.host }
func (h Hostname) Port() uint16 { return h.port }

func (h Hostname) String() string {
	return net.JoinHostPort(h.host, strconv.Itoa(int(h.port)))
}

// URL is the http base URL of the address.
func (h Hostname) URL() string {
	return "http://" + h.String()
}
