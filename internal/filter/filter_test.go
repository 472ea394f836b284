package filter

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwkim3330/netwatch/internal/dissect"
)

func sampleTCP() *dissect.Record {
	return &dissect.Record{
		ID:        1,
		Timestamp: time.Unix(0, 0),
		Length:    60,
		Dissected: dissect.Dissected{
			HasL3:      true,
			SrcIP:      net.ParseIP("10.0.0.1"),
			DstIP:      net.ParseIP("10.0.0.2"),
			IPProtocol: 6,
			HasL4:      true,
			Protocol:   "TCP",
			SrcPort:    51234,
			DstPort:    443,
			Classification: dissect.ClassOrdinary,
		},
	}
}

func sampleARP() *dissect.Record {
	return &dissect.Record{
		ID:     2,
		Length: 42,
		Dissected: dissect.Dissected{
			Classification: dissect.ClassARP,
			ARP: &dissect.ARPInfo{
				Operation: 2,
				SenderIP:  net.ParseIP("10.0.0.1"),
				TargetIP:  net.ParseIP("10.0.0.2"),
			},
		},
	}
}

func TestCompile_Empty(t *testing.T) {
	p, err := Compile("")
	require.NoError(t, err)
	assert.True(t, p.Match(sampleTCP()))
	assert.True(t, p.Match(sampleARP()))
}

func TestCompile_ProtocolKeyword(t *testing.T) {
	p, err := Compile("tcp")
	require.NoError(t, err)
	assert.True(t, p.Match(sampleTCP()))
	assert.False(t, p.Match(sampleARP()))

	p, err = Compile("arp")
	require.NoError(t, err)
	assert.False(t, p.Match(sampleTCP()))
	assert.True(t, p.Match(sampleARP()))
}

func TestCompile_IPEquality(t *testing.T) {
	p, err := Compile("ip.addr==10.0.0.2")
	require.NoError(t, err)
	assert.True(t, p.Match(sampleTCP()))

	p, err = Compile("ip.src==10.0.0.2")
	require.NoError(t, err)
	assert.False(t, p.Match(sampleTCP()))

	p, err = Compile("ip.dst==10.0.0.2")
	require.NoError(t, err)
	assert.True(t, p.Match(sampleTCP()))
}

func TestCompile_PortEquality(t *testing.T) {
	p, err := Compile("port==443")
	require.NoError(t, err)
	assert.True(t, p.Match(sampleTCP()))

	p, err = Compile("port==80")
	require.NoError(t, err)
	assert.False(t, p.Match(sampleTCP()))
}

func TestCompile_Conjunction(t *testing.T) {
	p, err := Compile("tcp && port==443")
	require.NoError(t, err)
	assert.True(t, p.Match(sampleTCP()))

	p, err = Compile("tcp && port==80")
	require.NoError(t, err)
	assert.False(t, p.Match(sampleTCP()))
}

func TestCompile_ParseFailure_MatchesNothing(t *testing.T) {
	p, err := Compile("port==notanumber")
	require.Error(t, err)
	assert.False(t, p.Match(sampleTCP()))
	assert.False(t, p.Match(sampleARP()))

	p, err = Compile("bogus.field==1")
	require.Error(t, err)
	assert.False(t, p.Match(sampleTCP()))
}

func TestCompile_UnknownKeywordFallsBackToSubstring(t *testing.T) {
	p, err := Compile("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, p.Match(sampleTCP()))

	p, err = Compile("nonexistenttoken")
	require.NoError(t, err)
	assert.False(t, p.Match(sampleTCP()))
}

func TestStringify_IncludesKeyFields(t *testing.T) {
	s := Stringify(sampleTCP())
	assert.Contains(t, s, "10.0.0.1")
	assert.Contains(t, s, "10.0.0.2")
	assert.Contains(t, s, "443")
}
