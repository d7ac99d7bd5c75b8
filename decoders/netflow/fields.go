package netflow

// FieldKind is the semantic type a field's raw bytes decode to, independent
// of its declared byte width. Declared width always wins over any width
// implied here; Kind only picks the decode routine.
type FieldKind int

const (
	KindUint FieldKind = iota
	KindIPv4
	KindIPv6
	KindMAC
	KindBytes
)

// CatalogEntry names an information element and says how its bytes decode.
type CatalogEntry struct {
	Name string
	Kind FieldKind
}

// Catalog maps NetFlow v9 / IPFIX information-element ids below the
// enterprise bit to a canonical uppercase-underscored name and decode kind.
// Seeded from RFC 3954 / the IANA IPFIX Information Elements registry, the
// same subset the reference collector ships. Entries absent here are not an
// error: they surface as opaque bytes keyed by numeric id (a CatalogGap).
var Catalog = map[uint16]CatalogEntry{
	1:  {"IN_BYTES", KindUint},
	2:  {"IN_PKTS", KindUint},
	3:  {"FLOWS", KindUint},
	4:  {"PROTOCOL", KindUint},
	5:  {"SRC_TOS", KindUint},
	6:  {"TCP_FLAGS", KindUint},
	7:  {"L4_SRC_PORT", KindUint},
	8:  {"IPV4_SRC_ADDR", KindIPv4},
	9:  {"SRC_MASK", KindUint},
	10: {"INPUT_SNMP", KindUint},
	11: {"L4_DST_PORT", KindUint},
	12: {"IPV4_DST_ADDR", KindIPv4},
	13: {"DST_MASK", KindUint},
	14: {"OUTPUT_SNMP", KindUint},
	15: {"IPV4_NEXT_HOP", KindIPv4},
	16: {"SRC_AS", KindUint},
	17: {"DST_AS", KindUint},
	18: {"BGP_IPV4_NEXT_HOP", KindIPv4},
	19: {"MUL_DST_PKTS", KindUint},
	20: {"MUL_DST_BYTES", KindUint},
	21: {"LAST_SWITCHED", KindUint},
	22: {"FIRST_SWITCHED", KindUint},
	23: {"OUT_BYTES", KindUint},
	24: {"OUT_PKTS", KindUint},
	25: {"MIN_PKT_LNGTH", KindUint},
	26: {"MAX_PKT_LNGTH", KindUint},
	27: {"IPV6_SRC_ADDR", KindIPv6},
	28: {"IPV6_DST_ADDR", KindIPv6},
	29: {"IPV6_SRC_MASK", KindUint},
	30: {"IPV6_DST_MASK", KindUint},
	31: {"IPV6_FLOW_LABEL", KindUint},
	32: {"ICMP_TYPE", KindUint},
	33: {"MUL_IGMP_TYPE", KindUint},
	34: {"SAMPLING_INTERVAL", KindUint},
	35: {"SAMPLING_ALGORITHM", KindUint},
	36: {"FLOW_ACTIVE_TIMEOUT", KindUint},
	37: {"FLOW_INACTIVE_TIMEOUT", KindUint},
	38: {"ENGINE_TYPE", KindUint},
	39: {"ENGINE_ID", KindUint},
	40: {"TOTAL_BYTES_EXP", KindUint},
	41: {"TOTAL_PKTS_EXP", KindUint},
	42: {"TOTAL_FLOWS_EXP", KindUint},
	44: {"IPV4_SRC_PREFIX", KindIPv4},
	45: {"IPV4_DST_PREFIX", KindIPv4},
	46: {"MPLS_TOP_LABEL_TYPE", KindUint},
	47: {"MPLS_TOP_LABEL_IP_ADDR", KindIPv4},
	48: {"FLOW_SAMPLER_ID", KindUint},
	49: {"FLOW_SAMPLER_MODE", KindUint},
	52: {"MIN_TTL", KindUint},
	53: {"MAX_TTL", KindUint},
	54: {"IPV4_IDENT", KindUint},
	55: {"DST_TOS", KindUint},
	56: {"IN_SRC_MAC", KindMAC},
	57: {"OUT_DST_MAC", KindMAC},
	58: {"SRC_VLAN", KindUint},
	59: {"DST_VLAN", KindUint},
	60: {"IP_PROTOCOL_VERSION", KindUint},
	61: {"DIRECTION", KindUint},
	62: {"IPV6_NEXT_HOP", KindIPv6},
	63: {"BPG_IPV6_NEXT_HOP", KindIPv6},
	64: {"IPV6_OPTION_HEADERS", KindUint},
	70: {"MPLS_LABEL_1", KindBytes},
	71: {"MPLS_LABEL_2", KindBytes},
	72: {"MPLS_LABEL_3", KindBytes},
	73: {"MPLS_LABEL_4", KindBytes},
	74: {"MPLS_LABEL_5", KindBytes},
	75: {"MPLS_LABEL_6", KindBytes},
	76: {"MPLS_LABEL_7", KindBytes},
	77: {"MPLS_LABEL_8", KindBytes},
	78: {"MPLS_LABEL_9", KindBytes},
	79: {"MPLS_LABEL_10", KindBytes},
	80: {"IN_DST_MAC", KindMAC},
	81: {"OUT_SRC_MAC", KindMAC},
	82: {"IF_NAME", KindBytes},
	83: {"IF_DESC", KindBytes},
	84: {"SAMPLER_NAME", KindBytes},
	85: {"IN_PERMANENT_BYTES", KindUint},
	86: {"IN_PERMANENT_PKTS", KindUint},
	88: {"FRAGMENT_OFFSET", KindUint},
	89: {"FORWARDING_STATUS", KindUint},
	90: {"MPLS_PAL_RD", KindBytes},
	91: {"MPLS_PREFIX_LEN", KindUint},
	92: {"SRC_TRAFFIC_INDEX", KindUint},
	93: {"DST_TRAFFIC_INDEX", KindUint},
	94: {"APPLICATION_DESCRIPTION", KindBytes},
	95: {"APPLICATION_TAG", KindBytes},
	96: {"APPLICATION_NAME", KindBytes},

	148: {"NF_F_CONN_ID", KindUint},
	176: {"NF_F_ICMP_TYPE", KindUint},
	177: {"NF_F_ICMP_CODE", KindUint},
	178: {"NF_F_ICMP_TYPE_IPV6", KindUint},
	179: {"NF_F_ICMP_CODE_IPV6", KindUint},
	225: {"NF_F_XLATE_SRC_ADDR_IPV4", KindIPv4},
	226: {"NF_F_XLATE_DST_ADDR_IPV4", KindIPv4},
	227: {"NF_F_XLATE_SRC_PORT", KindUint},
	228: {"NF_F_XLATE_DST_PORT", KindUint},
	233: {"NF_F_FW_EVENT", KindUint},
	281: {"NF_F_XLATE_SRC_ADDR_IPV6", KindIPv6},
	282: {"NF_F_XLATE_DST_ADDR_IPV6", KindIPv6},
}
