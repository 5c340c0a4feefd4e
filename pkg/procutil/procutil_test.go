package procutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAliveSelf(t *testing.T) {
	assert.True(t, IsAlive(os.Getpid()))
}

func TestIsAliveInvalidPID(t *testing.T) {
	assert.False(t, IsAlive(0))
	assert.False(t, IsAlive(-1))
	assert.False(t, IsAlive(4194304))
}

func TestStartTimeSelf(t *testing.T) {
	st, err := StartTime(os.Getpid())
	if err != nil {
		t.Skipf("proc not available on this platform: %v", err)
	}
	assert.Greater(t, st, int64(0))
}

func TestIsSameProcess(t *testing.T) {
	self := os.Getpid()
	st, err := StartTime(self)
	require.NoError(t, err)

	assert.True(t, IsSameProcess(self, st))
	assert.True(t, IsSameProcess(self, 0))
	assert.False(t, IsSameProcess(self, st+1))
	assert.False(t, IsSameProcess(4194304, 0))
}
