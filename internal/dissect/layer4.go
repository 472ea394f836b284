package dissect

import "encoding/binary"

const (
	ipProtoICMP = 1
	ipProtoTCP  = 6
	ipProtoUDP  = 17
	ipProtoGRE  = 47
	ipProtoESP  = 50
	ipProtoSCTP = 132

	tcpMinHeaderLen = 20
	udpHeaderLen    = 8
	icmpMinLen      = 4
	sctpMinLen      = 4
)

// udpFriendlyNames maps well-known UDP ports to a readable protocol label.
// Ports above 1024 never trigger relabeling, per spec.md §4.1.
var udpFriendlyNames = map[uint16]string{
	53:  "DNS",
	67:  "DHCP",
	68:  "DHCP",
	123: "NTP",
	161: "SNMP",
	319: "PTP",
	320: "PTP",
	514: "Syslog",
}

func dissectL4(d *Dissected, ipProtocol uint8, b []byte) {
	switch ipProtocol {
	case ipProtoTCP:
		dissectTCP(d, b)
	case ipProtoUDP:
		dissectUDP(d, b)
	case ipProtoICMP:
		dissectICMP(d, b)
	case ipProtoSCTP:
		dissectSCTP(d, b)
	case ipProtoGRE:
		d.HasL4 = true
		d.Protocol = "GRE"
	case ipProtoESP:
		d.HasL4 = true
		d.Protocol = "ESP"
	}
}

func dissectTCP(d *Dissected, b []byte) {
	if len(b) < tcpMinHeaderLen {
		d.Classification = ClassTruncated
		return
	}
	d.HasL4 = true
	d.Protocol = "TCP"
	d.SrcPort = binary.BigEndian.Uint16(b[0:2])
	d.DstPort = binary.BigEndian.Uint16(b[2:4])
	d.TCPSeq = binary.BigEndian.Uint32(b[4:8])
	d.TCPAck = binary.BigEndian.Uint32(b[8:12])
	flags := b[13]
	d.TCPFlags = TCPFlags{
		CWR: flags&0x80 != 0,
		ECE: flags&0x40 != 0,
		URG: flags&0x20 != 0,
		ACK: flags&0x10 != 0,
		PSH: flags&0x08 != 0,
		RST: flags&0x04 != 0,
		SYN: flags&0x02 != 0,
		FIN: flags&0x01 != 0,
	}
}

func dissectUDP(d *Dissected, b []byte) {
	if len(b) < udpHeaderLen {
		d.Classification = ClassTruncated
		return
	}
	d.HasL4 = true
	d.SrcPort = binary.BigEndian.Uint16(b[0:2])
	d.DstPort = binary.BigEndian.Uint16(b[2:4])
	d.Protocol = "UDP"
	if name, ok := udpFriendlyNames[d.SrcPort]; ok {
		d.Protocol = name
	} else if name, ok := udpFriendlyNames[d.DstPort]; ok {
		d.Protocol = name
	}
	maybeDissectPTPOverUDP(d, b[udpHeaderLen:])
}

func dissectICMP(d *Dissected, b []byte) {
	if len(b) < icmpMinLen {
		d.Classification = ClassTruncated
		return
	}
	d.HasL4 = true
	d.Protocol = "ICMP"
	d.HasICMP = true
	d.ICMPType = b[0]
	d.ICMPCode = b[1]
}

func dissectSCTP(d *Dissected, b []byte) {
	if len(b) < sctpMinLen {
		d.Classification = ClassTruncated
		return
	}
	d.HasL4 = true
	d.Protocol = "SCTP"
	d.SrcPort = binary.BigEndian.Uint16(b[0:2])
	d.DstPort = binary.BigEndian.Uint16(b[2:4])
}
