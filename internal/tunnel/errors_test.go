package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "i/o timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return true }

func TestIsBenignNilIsFalse(t *testing.T) {
	assert.False(t, IsBenign(nil))
}

func TestIsBenignStructuredErrors(t *testing.T) {
	assert.True(t, IsBenign(io.EOF))
	assert.True(t, IsBenign(context.Canceled))
	assert.True(t, IsBenign(context.DeadlineExceeded))
	assert.True(t, IsBenign(fmt.Errorf("read: %w", io.EOF)))
}

func TestIsBenignNetTimeout(t *testing.T) {
	var ne net.Error = fakeTimeoutErr{}
	assert.True(t, IsBenign(ne))
}

func TestIsBenignSubstringMatch(t *testing.T) {
	assert.True(t, IsBenign(errors.New("write: broken pipe")))
	assert.True(t, IsBenign(errors.New("read tcp 1.1.1.1:443: connection reset by peer")))
	assert.True(t, IsBenign(errors.New("use of closed network connection")))
}

func TestIsBenignUnmatchedIsFatal(t *testing.T) {
	assert.False(t, IsBenign(errors.New("unexpected protocol violation")))
}
