package utils

import (
	"fmt"
	"net"
	"net/netip"
)

type MacAddress []byte // purely for the formatting purpose

func (s MacAddress) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", net.HardwareAddr([]byte(s)).String())), nil
}

type IPAddress []byte // purely for the formatting purpose

func (s IPAddress) String() string {
	ip, _ := netip.AddrFromSlice([]byte(s))
	return ip.String()
}

func (s IPAddress) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", s.String())), nil
}
