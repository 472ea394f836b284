package httpapi

import "net/http"

type hostStatDTO struct {
	IP        string   `json:"ip"`
	TxPackets uint64   `json:"tx_packets"`
	RxPackets uint64   `json:"rx_packets"`
	TxBytes   uint64   `json:"tx_bytes"`
	RxBytes   uint64   `json:"rx_bytes"`
	Protocols []string `json:"protocols"`
	LastSeen  string   `json:"last_seen"`
}

type conversationDTO struct {
	IPA       string   `json:"ip_a"`
	IPB       string   `json:"ip_b"`
	Packets   uint64   `json:"packets"`
	Bytes     uint64   `json:"bytes"`
	Protocols []string `json:"protocols"`
	LastSeen  string   `json:"last_seen"`
}

type sampleDTO struct {
	Time    string `json:"time"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
}

// statsResponse fixes spec.md's Open Question (b): the C7 aggregator's
// shape exposed over HTTP.
type statsResponse struct {
	Protocols     map[string]uint64 `json:"protocols"`
	Hosts         []hostStatDTO     `json:"hosts"`
	Conversations []conversationDTO `json:"conversations"`
	Histogram     [7]uint64         `json:"histogram"`
	Series        []sampleDTO       `json:"series"`
}

func setToSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (h *handlers) getStats(w http.ResponseWriter, r *http.Request) {
	hosts := h.deps.Stats.Hosts()
	convs := h.deps.Stats.Conversations()
	series := h.deps.Stats.Series()

	resp := statsResponse{
		Protocols:     h.deps.Stats.Protocols(),
		Hosts:         make([]hostStatDTO, len(hosts)),
		Conversations: make([]conversationDTO, len(convs)),
		Histogram:     h.deps.Stats.Histogram(),
		Series:        make([]sampleDTO, len(series)),
	}
	for i, hs := range hosts {
		resp.Hosts[i] = hostStatDTO{
			IP:        hs.IP,
			TxPackets: hs.TxPackets,
			RxPackets: hs.RxPackets,
			TxBytes:   hs.TxBytes,
			RxBytes:   hs.RxBytes,
			Protocols: setToSlice(hs.Protocols),
			LastSeen:  hs.LastSeen.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
	}
	for i, c := range convs {
		resp.Conversations[i] = conversationDTO{
			IPA:       c.IPA,
			IPB:       c.IPB,
			Packets:   c.Packets,
			Bytes:     c.Bytes,
			Protocols: setToSlice(c.Protocols),
			LastSeen:  c.LastSeen.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
	}
	for i, s := range series {
		resp.Series[i] = sampleDTO{
			Time:    s.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Packets: s.Packets,
			Bytes:   s.Bytes,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
