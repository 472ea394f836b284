package dissect

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/gopacket/gopacket/layers"
)

const (
	ethHeaderLen  = 14
	vlanTagLen    = 4
	ethTypeVLAN   = 0x8100
	ethTypeQinQ   = 0x88A8
	ethTypeIPv4   = 0x0800
	ethTypeIPv6   = 0x86DD
	ethTypeARP    = 0x0806
	ethTypeLLDP   = 0x88CC
	ethTypePTP    = 0x88F7
	eth8023MaxLen = 0x05DC
)

// Dissect walks the protocol stack of one captured frame and returns a fully
// populated Record. It never returns an error: parsing failures degrade the
// result to a truncated/malformed classification instead.
func Dissect(id uint64, ts time.Time, raw []byte, wireLen int) Record {
	rec := Record{ID: id, Timestamp: ts, Raw: raw, Length: wireLen}
	d := &rec.Dissected
	d.Classification = ClassOrdinary

	if len(raw) < ethHeaderLen {
		d.Classification = ClassMalformed
		return rec
	}

	d.DstMAC = net.HardwareAddr(append([]byte(nil), raw[0:6]...))
	d.SrcMAC = net.HardwareAddr(append([]byte(nil), raw[6:12]...))
	d.IsBroadcast = isBroadcastMAC(d.DstMAC)
	d.IsMulticast = !d.IsBroadcast && isMulticastMAC(d.DstMAC)

	etherType := binary.BigEndian.Uint16(raw[12:14])
	cursor := raw[ethHeaderLen:]

	// One or two 802.1Q/ad VLAN tags may follow the initial ethertype field.
	for tagCount := 0; tagCount < 2 && (etherType == ethTypeVLAN || etherType == ethTypeQinQ); tagCount++ {
		if len(cursor) < vlanTagLen {
			d.Classification = ClassTruncated
			return rec
		}
		tci := binary.BigEndian.Uint16(cursor[0:2])
		if !d.HasVLAN {
			d.HasVLAN = true
			d.VLANID = tci & 0x0FFF
			d.VLANPCP = uint8(tci >> 13)
		}
		etherType = binary.BigEndian.Uint16(cursor[2:4])
		cursor = cursor[vlanTagLen:]
	}

	if etherType <= eth8023MaxLen {
		d.EtherType = etherType
		d.EtherTypeName = "802.3"
		return rec
	}
	d.EtherType = etherType
	d.EtherTypeName = etherTypeName(etherType)

	switch etherType {
	case ethTypeIPv4:
		if len(cursor) > 0 {
			dissectIPv4(d, cursor)
		}
	case ethTypeIPv6:
		if len(cursor) > 0 {
			dissectIPv6(d, cursor)
		}
	case ethTypeARP:
		dissectARP(d, cursor)
	case ethTypeLLDP:
		d.Classification = ClassLLDP
		dissectLLDP(d, cursor)
	case ethTypePTP:
		d.Classification = ClassPTP
		dissectPTP(d, cursor)
	}

	return rec
}

// etherTypeName returns gopacket's registered name for well-known
// ethertypes, falling back to the "0x<hex>" form spec.md §4.1 requires for
// anything unregistered.
func etherTypeName(etherType uint16) string {
	switch etherType {
	case ethTypeIPv4, ethTypeIPv6, ethTypeARP, ethTypeLLDP:
		return layers.EthernetType(etherType).String()
	case ethTypePTP:
		return "PTP"
	default:
		return hexEtherType(etherType)
	}
}

func isBroadcastMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0xFF {
			return false
		}
	}
	return true
}

func isMulticastMAC(mac net.HardwareAddr) bool {
	if len(mac) == 0 {
		return false
	}
	return mac[0]&0x01 != 0
}

func hexEtherType(et uint16) string {
	const hexDigits = "0123456789abcdef"
	b := []byte{'0', 'x', hexDigits[(et>>12)&0xF], hexDigits[(et>>8)&0xF], hexDigits[(et>>4)&0xF], hexDigits[et&0xF]}
	return string(b)
}
