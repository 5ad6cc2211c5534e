package library

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	q := NewQueue[int](1)
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.Pop()
	assert.False(t, ok)

	t.Run("wraps around before growing", func(t *testing.T) {
		q := NewQueue[string](2)
		q.Push("a")
		q.Push("b")
		v, _ := q.Pop()
		assert.Equal(t, "a", v)
		q.Push("c")
		q.Push("d")
		var got []string
		for q.Len() > 0 {
			v, _ := q.Pop()
			got = append(got, v)
		}
		assert.Equal(t, []string{"b", "c", "d"}, got)
	})
}

func TestIsValid32ByteHex(t *testing.T) {
	assert.True(t, IsValid32ByteHex("b4f36e2a63792324a92f3b7d973fcc33eaa7720aaeee71729ac74d7ba7677675"))
	assert.False(t, IsValid32ByteHex("b4f36e2a"))
	assert.False(t, IsValid32ByteHex("zzf36e2a63792324a92f3b7d973fcc33eaa7720aaeee71729ac74d7ba7677675"))
	assert.False(t, IsValid32ByteHex(""))
}

func TestPreimageMatches(t *testing.T) {
	preimage := "0000000000000000000000000000000000000000000000000000000000000000"
	hash := "66687aadf862bd776c8fc18b8e9f8e20089714856ee233b3902a591d0d5f2925"
	assert.True(t, PreimageMatches(preimage, hash))
	assert.True(t, PreimageMatches(preimage, "66687AADF862BD776C8FC18B8E9F8E20089714856EE233B3902A591D0D5F2925"))
	assert.False(t, PreimageMatches("abc", hash))
	assert.False(t, PreimageMatches("", hash))
}

func TestTags(t *testing.T) {
	e := nostr.Event{Tags: nostr.Tags{{"p", "bob"}, {"e", "x"}, {"p", "carol"}, {"p"}}}
	v, ok := GetFirstTag(e, "p")
	assert.True(t, ok)
	assert.Equal(t, "bob", v)
	_, ok = GetFirstTag(e, "a")
	assert.False(t, ok)
	assert.Equal(t, []string{"bob", "carol"}, GetAllTags(e, "p"))
}

func TestEverySkipsOverlappingRuns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	var running, maxRunning, runs int32
	Every(ctx, "test", 5*time.Millisecond, func(ctx context.Context) {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		atomic.AddInt32(&runs, 1)
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&running, -1)
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(2))
}

func TestValidateSaneExecutionTime(t *testing.T) {
	assert.True(t, detectable(0))
	assert.True(t, detectable(10*time.Second))
	assert.False(t, detectable(45*time.Second))
	assert.False(t, detectable(20*time.Second))

	// a relay timeout beyond the detector's limit finishes without tripping it
	done := ValidateSaneExecutionTime(45 * time.Second)
	time.Sleep(10 * time.Millisecond)
	done()
	done = ValidateSaneExecutionTime(time.Second)
	done()
}
