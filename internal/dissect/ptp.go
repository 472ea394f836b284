package dissect

import "encoding/binary"

// ptpMinHeaderLen covers the PTPv2 common header fields up to sequenceId
// (spec.md §4.1: "parse enough of the header to extract message_type and
// sequence_id").
const ptpMinHeaderLen = 32

func dissectPTP(d *Dissected, b []byte) {
	if len(b) < ptpMinHeaderLen {
		return
	}
	d.PTP = &PTPInfo{
		MessageType: b[0] & 0x0F,
		SequenceID:  binary.BigEndian.Uint16(b[30:32]),
	}
}

// maybeDissectPTPOverUDP applies the second half of spec.md §4.1's PTP
// derivation rule: ethertype 0x88F7 OR (UDP AND dst_port in {319, 320}).
func maybeDissectPTPOverUDP(d *Dissected, udpPayload []byte) {
	if d.DstPort != 319 && d.DstPort != 320 {
		return
	}
	d.Classification = ClassPTP
	dissectPTP(d, udpPayload)
}
