package ring

import (
	"fmt"
	"io"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"

	"github.com/hwkim3330/netwatch/internal/dissect"
)

// ExportPCAP snapshots the full live buffer (no filter, no pagination) and
// writes it to w as a pcap file, using each record's stored raw bytes and
// wire length.
func (b *Buffer) ExportPCAP(w io.Writer) error {
	records := b.All()

	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("ring: write pcap header: %w", err)
	}
	for _, rec := range records {
		ci := gopacket.CaptureInfo{
			Timestamp:     rec.Timestamp,
			CaptureLength: len(rec.Raw),
			Length:        rec.Length,
		}
		if err := writer.WritePacket(ci, rec.Raw); err != nil {
			return fmt.Errorf("ring: write packet %d: %w", rec.ID, err)
		}
	}
	return nil
}

// ImportPCAP reads a pcap file and re-dissects every frame through the same
// dissector the capture loop uses, assigning sequential ids starting at 1 so
// imported data is indistinguishable downstream from a live capture. It does
// not touch any Buffer — the caller decides whether to feed the result into
// the live pipeline.
func ImportPCAP(r io.Reader) ([]dissect.Record, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("ring: open pcap: %w", err)
	}

	var out []dissect.Record
	var id uint64
	for {
		data, ci, err := reader.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ring: read packet: %w", err)
		}
		id++
		out = append(out, dissect.Dissect(id, ci.Timestamp, data, ci.Length))
	}
	return out, nil
}
