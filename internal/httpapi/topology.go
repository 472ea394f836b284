package httpapi

import "net/http"

type nodeDTO struct {
	ID         string   `json:"id"`
	IPs        []string `json:"ips"`
	MAC        string   `json:"mac,omitempty"`
	Vendor     string   `json:"vendor,omitempty"`
	Type       string   `json:"type"`
	PacketsIn  uint64   `json:"packets_in"`
	PacketsOut uint64   `json:"packets_out"`
	BytesIn    uint64   `json:"bytes_in"`
	BytesOut   uint64   `json:"bytes_out"`
	FirstSeen  string   `json:"first_seen"`
	LastSeen   string   `json:"last_seen"`
}

type linkDTO struct {
	NodeA    string `json:"node_a"`
	NodeB    string `json:"node_b"`
	Packets  uint64 `json:"packets"`
	Bytes    uint64 `json:"bytes"`
	LastSeen string `json:"last_seen"`
}

type topologyResponse struct {
	Nodes []nodeDTO `json:"nodes"`
	Links []linkDTO `json:"links"`
}

func (h *handlers) getTopology(w http.ResponseWriter, r *http.Request) {
	nodes := h.deps.Topology.Nodes(0)
	links := h.deps.Topology.Links()

	resp := topologyResponse{
		Nodes: make([]nodeDTO, len(nodes)),
		Links: make([]linkDTO, len(links)),
	}
	for i, n := range nodes {
		ips := make([]string, 0, len(n.IPs))
		for ip := range n.IPs {
			ips = append(ips, ip)
		}
		dto := nodeDTO{
			ID:         n.ID,
			IPs:        ips,
			Vendor:     n.Vendor,
			Type:       string(n.Type),
			PacketsIn:  n.PacketsIn,
			PacketsOut: n.PacketsOut,
			BytesIn:    n.BytesIn,
			BytesOut:   n.BytesOut,
			FirstSeen:  n.FirstSeen.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			LastSeen:   n.LastSeen.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
		if len(n.MAC) > 0 {
			dto.MAC = n.MAC.String()
		}
		resp.Nodes[i] = dto
	}
	for i, l := range links {
		resp.Links[i] = linkDTO{
			NodeA:    l.NodeA,
			NodeB:    l.NodeB,
			Packets:  l.TotalPackets(),
			Bytes:    l.TotalBytes(),
			LastSeen: l.LastSeen.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
