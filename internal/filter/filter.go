// Package filter implements the display-filter expression language (C2): a
// small compiled predicate language over dissect.Record, plus a substring
// fallback for anything the language doesn't recognize.
package filter

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hwkim3330/netwatch/internal/dissect"
)

// protocolKeywords is the fixed keyword set spec.md §9 Open Question (a)
// freezes: a known keyword matches structurally; anything else falls back
// to substring search.
var protocolKeywords = map[string]func(*dissect.Record) bool{
	"tcp":   func(r *dissect.Record) bool { return r.Dissected.HasL3 && r.Dissected.IPProtocol == 6 },
	"udp":   func(r *dissect.Record) bool { return r.Dissected.HasL3 && r.Dissected.IPProtocol == 17 },
	"icmp":  func(r *dissect.Record) bool { return r.Dissected.HasL4 && r.Dissected.Protocol == "ICMP" },
	"arp":   func(r *dissect.Record) bool { return r.Dissected.Classification == dissect.ClassARP },
	"vlan":  func(r *dissect.Record) bool { return r.Dissected.HasVLAN },
	"lldp":  func(r *dissect.Record) bool { return r.Dissected.Classification == dissect.ClassLLDP },
	"ptp":   func(r *dissect.Record) bool { return r.Dissected.Classification == dissect.ClassPTP },
	"igmp":  func(r *dissect.Record) bool { return r.Dissected.HasL3 && r.Dissected.IPProtocol == 2 },
	"ospf":  func(r *dissect.Record) bool { return r.Dissected.HasL3 && r.Dissected.IPProtocol == 89 },
}

// Predicate is a compiled filter expression: O(1) to apply to a Record.
type Predicate struct {
	clauses []func(*dissect.Record) bool
	src     string
}

// Match reports whether r satisfies every compiled clause (the clauses are
// conjunctive, matching the "&&" language).
func (p Predicate) Match(r *dissect.Record) bool {
	for _, c := range p.clauses {
		if !c(r) {
			return false
		}
	}
	return true
}

// String returns the original source the predicate was compiled from.
func (p Predicate) String() string { return p.src }

// matchNothing is returned alongside a compile error; the caller can keep
// using it safely (it just never matches) while surfacing the error.
var matchNothing = Predicate{clauses: []func(*dissect.Record) bool{func(*dissect.Record) bool { return false }}}

// Compile parses a filter expression once into a reusable Predicate. An
// empty expression compiles to "match everything". Parse failures return
// matchNothing and a non-nil error; the caller may keep applying other
// filters afterward — a bad filter never disables the service.
func Compile(src string) (Predicate, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return Predicate{src: src}, nil
	}

	terms := strings.Split(trimmed, "&&")
	clauses := make([]func(*dissect.Record) bool, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			return matchNothing, fmt.Errorf("filter: empty clause in %q", src)
		}
		clause, err := compileTerm(term)
		if err != nil {
			return matchNothing, err
		}
		clauses = append(clauses, clause)
	}
	return Predicate{clauses: clauses, src: src}, nil
}

func compileTerm(term string) (func(*dissect.Record) bool, error) {
	if idx := strings.Index(term, "=="); idx >= 0 {
		return compileEquality(term[:idx], term[idx+2:])
	}
	if fn, ok := protocolKeywords[term]; ok {
		return fn, nil
	}
	// Unknown keyword: explicit substring fallback, per spec.md §9.
	return substringPredicate(term), nil
}

func compileEquality(key, value string) (func(*dissect.Record) bool, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "ip.addr":
		return func(r *dissect.Record) bool {
			return ipEquals(r.Dissected.SrcIP, value) || ipEquals(r.Dissected.DstIP, value)
		}, nil
	case "ip.src":
		return func(r *dissect.Record) bool { return ipEquals(r.Dissected.SrcIP, value) }, nil
	case "ip.dst":
		return func(r *dissect.Record) bool { return ipEquals(r.Dissected.DstIP, value) }, nil
	case "port":
		n, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("filter: invalid port %q: %w", value, err)
		}
		port := uint16(n)
		return func(r *dissect.Record) bool {
			return r.Dissected.HasL4 && (r.Dissected.SrcPort == port || r.Dissected.DstPort == port)
		}, nil
	default:
		return nil, fmt.Errorf("filter: unknown equality field %q", key)
	}
}

// ipEquals compares a possibly-nil net.IP against a dotted/colon address
// string. A nil ip never matches.
func ipEquals(ip net.IP, want string) bool {
	return ip != nil && ip.String() == want
}

func substringPredicate(term string) func(*dissect.Record) bool {
	needle := strings.ToLower(term)
	return func(r *dissect.Record) bool {
		return strings.Contains(strings.ToLower(Stringify(r)), needle)
	}
}

// Stringify renders a record as the flat text view the substring fallback
// searches over.
func Stringify(r *dissect.Record) string {
	d := r.Dissected
	var b strings.Builder
	fmt.Fprintf(&b, "id=%d ts=%s len=%d eth=%s>%s ethertype=%s class=%s",
		r.ID, r.Timestamp.Format("15:04:05.000000"), r.Length, d.SrcMAC, d.DstMAC, d.EtherTypeName, d.Classification)
	if d.HasVLAN {
		fmt.Fprintf(&b, " vlan=%d", d.VLANID)
	}
	if d.HasL3 {
		fmt.Fprintf(&b, " ip=%s>%s ttl=%d proto=%d", d.SrcIP, d.DstIP, d.TTL, d.IPProtocol)
	}
	if d.HasL4 {
		fmt.Fprintf(&b, " l4=%s port=%d>%d", d.Protocol, d.SrcPort, d.DstPort)
	}
	if d.ARP != nil {
		fmt.Fprintf(&b, " arp=%s>%s op=%d", d.ARP.SenderIP, d.ARP.TargetIP, d.ARP.Operation)
	}
	return b.String()
}
