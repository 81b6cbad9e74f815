// Package ids hands out snowflake ids. The client uses them to tag each
// socket it opens so log lines from consecutive reconnects can be told apart.
package ids

import (
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	seq      int64
	lastTSMS int64
	now      func() time.Time
}

// NewGenerator clamps nodeID into 0..1023, falling back to 1.
func NewGenerator(nodeID int64) *Generator {
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	return &Generator{nodeID: nodeID, now: time.Now}
}

var (
	defaultGen *Generator
	once       sync.Once
)

func std() *Generator {
	once.Do(func() { defaultGen = NewGenerator(1) })
	return defaultGen
}

// SetNodeID must be called before the first Generate to take effect for
// every id; later calls only affect subsequent ids.
func SetNodeID(nodeID int64) {
	g := std()
	g.mu.Lock()
	defer g.mu.Unlock()
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	g.nodeID = nodeID
}

func Generate() int64 { return std().Next() }

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		now := g.now().UnixMilli()
		if now < g.lastTSMS {
			// clock went backwards
			time.Sleep(time.Duration(g.lastTSMS-now) * time.Millisecond)
			continue
		}
		if now == g.lastTSMS {
			g.seq = (g.seq + 1) & seqMask
			if g.seq == 0 {
				for now <= g.lastTSMS {
					now = g.now().UnixMilli()
				}
			}
		} else {
			g.seq = 0
		}
		g.lastTSMS = now

		ts := (now - epoch) & (1<<41 - 1)
		return ts<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq
	}
}
