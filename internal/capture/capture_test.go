package capture

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hwkim3330/netwatch/internal/dissect"
)

func TestHasAddress(t *testing.T) {
	assert.False(t, hasAddress(&dissect.Dissected{}))
	assert.True(t, hasAddress(&dissect.Dissected{SrcMAC: net.HardwareAddr{1, 2, 3, 4, 5, 6}}))
	assert.True(t, hasAddress(&dissect.Dissected{HasL3: true}))
}

func TestLoop_StopWithoutStartIsNoop(t *testing.T) {
	l := New(nil, Sink{})
	assert.False(t, l.IsRunning())
	assert.NotPanics(t, func() { l.Stop() })
	assert.False(t, l.IsRunning())
	assert.True(t, l.StartedAt().IsZero())
}
