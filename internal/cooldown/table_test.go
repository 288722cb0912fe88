package cooldown_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mxprobe/internal/cooldown"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTable_UnknownHostIsAvailable(t *testing.T) {
	tbl := cooldown.New(time.Minute, nil)
	_, _, cooling := tbl.Check("mx.example.com")
	assert.False(t, cooling)
}

func TestTable_MarkAndExpire(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tbl := cooldown.New(300*time.Second, clock.Now)

	require.True(t, tbl.Mark("mx.example.com", "timeout"))

	clock.Advance(100 * time.Second)
	left, reason, cooling := tbl.Check("mx.example.com")
	assert.True(t, cooling)
	assert.Equal(t, "timeout", reason)
	assert.Equal(t, 200*time.Second, left)

	clock.Advance(199 * time.Second)
	_, _, cooling = tbl.Check("mx.example.com")
	assert.True(t, cooling, "still cooling one second before the deadline")

	clock.Advance(2 * time.Second)
	_, _, cooling = tbl.Check("mx.example.com")
	assert.False(t, cooling)
	assert.Equal(t, 0, tbl.Len(), "expired entry is purged on first observation")
}

func TestTable_RemarkExtendsWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tbl := cooldown.New(10*time.Second, clock.Now)

	tbl.Mark("mx", "timeout")
	clock.Advance(8 * time.Second)
	tbl.Mark("mx", "server disconnected")

	left, reason, cooling := tbl.Check("mx")
	assert.True(t, cooling)
	assert.Equal(t, "server disconnected", reason)
	assert.Equal(t, 10*time.Second, left)
}

func TestTable_ZeroWindowDisablesMarking(t *testing.T) {
	tbl := cooldown.New(0, nil)
	assert.False(t, tbl.Mark("mx", "timeout"))
	_, _, cooling := tbl.Check("mx")
	assert.False(t, cooling)
}
