package idgen

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Snowflake layout, 64 bits:
//
//	0 | 41-bit ms timestamp since epoch | 10-bit worker id | 12-bit sequence
//
// Ids are unique per worker and trend upward, which keeps the unique
// indexes they land in append-mostly.

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake generates ids for one worker.
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init sets up the default generator; later calls are no-ops.
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			panic(fmt.Sprintf("idgen: workerID must be within 0-%d", maxWorkerID))
		}
		defaultGenerator = &Snowflake{
			workerID:  workerID,
			timestamp: 0,
			sequence:  0,
		}
	})
}

// NextID returns the next id from the default generator.
func NextID() int64 {
	Init(1)
	return defaultGenerator.Generate()
}

// Generate returns the next id, waiting out sequence exhaustion.
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted, spin to the next millisecond
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	id := ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence

	return id
}

// GenerateTradeNo returns a ledger trade number such as TRD20240115143052_5046152413577216.
func GenerateTradeNo() string {
	return generate("TRD")
}

// GenerateToken returns an opaque holder token for distributed locks.
func GenerateToken() string {
	return strconv.FormatInt(NextID(), 36)
}

func generate(prefix string) string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s%s_%d", prefix, timestamp, id)
}
