package dissect

import (
	"encoding/binary"
	"net"
)

const (
	ipv4MinHeaderLen = 20
	ipv6HeaderLen    = 40
	arpIPv4Len       = 28
)

// IPv6 extension header "next header" values that must be skipped to reach
// the first real upper-layer protocol.
var ipv6ExtensionHeaders = map[uint8]bool{
	0:  true, // hop-by-hop options
	43: true, // routing
	44: true, // fragment
	60: true, // destination options
	51: true, // authentication header
}

func dissectIPv4(d *Dissected, b []byte) {
	if len(b) < ipv4MinHeaderLen {
		d.Classification = ClassTruncated
		return
	}
	version := b[0] >> 4
	ihl := int(b[0]&0x0F) * 4
	if version != 4 || ihl < ipv4MinHeaderLen || len(b) < ihl {
		d.Classification = ClassTruncated
		return
	}

	d.HasL3 = true
	d.SrcIP = net.IP(append([]byte(nil), b[12:16]...))
	d.DstIP = net.IP(append([]byte(nil), b[16:20]...))
	d.TTL = b[8]
	d.IPProtocol = b[9]

	payload := b[ihl:]
	dissectL4(d, d.IPProtocol, payload)
}

func dissectIPv6(d *Dissected, b []byte) {
	if len(b) < ipv6HeaderLen {
		d.Classification = ClassTruncated
		return
	}
	version := b[0] >> 4
	if version != 6 {
		d.Classification = ClassTruncated
		return
	}

	d.HasL3 = true
	d.SrcIP = net.IP(append([]byte(nil), b[8:24]...))
	d.DstIP = net.IP(append([]byte(nil), b[24:40]...))
	d.TTL = b[7] // hop limit

	nextHeader := b[6]
	cursor := b[ipv6HeaderLen:]

	for ipv6ExtensionHeaders[nextHeader] {
		if len(cursor) < 2 {
			d.Classification = ClassTruncated
			return
		}
		hdrNextHeader := cursor[0]
		hdrLenWords := int(cursor[1])
		hdrLen := (hdrLenWords + 1) * 8
		if nextHeader == 51 {
			// The authentication header counts its length in 4-byte units, minus 2.
			hdrLen = (hdrLenWords + 2) * 4
		}
		if len(cursor) < hdrLen {
			d.Classification = ClassTruncated
			return
		}
		nextHeader = hdrNextHeader
		cursor = cursor[hdrLen:]
	}

	d.IPProtocol = nextHeader
	dissectL4(d, nextHeader, cursor)
}

func dissectARP(d *Dissected, b []byte) {
	d.Classification = ClassARP
	if len(b) < arpIPv4Len {
		d.Classification = ClassTruncated
		return
	}
	hwLen := b[4]
	proLen := b[5]
	if hwLen != 6 || proLen != 4 {
		// Non-Ethernet/IPv4 ARP: recognize it but don't attempt field extraction.
		d.Classification = ClassARP
		return
	}

	info := &ARPInfo{
		Operation: binary.BigEndian.Uint16(b[6:8]),
		SenderMAC: net.HardwareAddr(append([]byte(nil), b[8:14]...)),
		SenderIP:  net.IP(append([]byte(nil), b[14:18]...)),
		TargetMAC: net.HardwareAddr(append([]byte(nil), b[18:24]...)),
		TargetIP:  net.IP(append([]byte(nil), b[24:28]...)),
	}
	d.ARP = info
	d.Classification = ClassARP
}

// dissectLLDP extracts just the Chassis ID TLV (type 1), which the topology
// maintainer's switch/router heuristic keys on (spec.md §4.6). LLDP TLVs are
// type(7 bits)+length(9 bits) packed into a leading 16-bit field.
func dissectLLDP(d *Dissected, b []byte) {
	for len(b) >= 2 {
		tlvHeader := binary.BigEndian.Uint16(b[0:2])
		tlvType := uint8(tlvHeader >> 9)
		tlvLen := int(tlvHeader & 0x01FF)
		if tlvType == 0 && tlvLen == 0 {
			return // End of LLDPDU TLV
		}
		if len(b) < 2+tlvLen {
			d.Classification = ClassTruncated
			return
		}
		value := b[2 : 2+tlvLen]
		if tlvType == 1 && len(value) > 1 {
			// First byte is the chassis ID subtype; the rest is the ID itself.
			d.LLDPChassisID = string(value[1:])
		}
		b = b[2+tlvLen:]
	}
}
