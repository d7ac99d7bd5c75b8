// Package exporter defines the identity under which template state and
// decode diagnostics are partitioned.
package exporter

import "fmt"

// Key uniquely identifies a template namespace: the exporter's transport
// address plus its Source ID (NetFlow v9) or Observation Domain ID
// (IPFIX). Two exporters behind the same NAT but with different
// source/domain ids remain disjoint. v1/v5 exporters carry DomainID 0
// since they have no templates.
type Key struct {
	Addr     string
	DomainID uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Addr, k.DomainID)
}
