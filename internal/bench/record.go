package bench

import (
	"cmp"
	"encoding/binary"
	"hash/fnv"

	"github.com/Sumatoshi-tech/slabtree/pkg/llrb"
)

// payloadSize pads Record to 64 bytes, one cache line per arena slot.
const payloadSize = 56

// Record is the unit stored by workload trees: an ordering key plus an
// opaque payload. RecordBytes in the workload controls how many bytes of a
// record each insert actually writes.
type Record struct {
	Key     uint64
	Payload [payloadSize]byte
}

// recordKey projects the ordering key out of a record.
func recordKey(rec *Record) uint64 {
	return rec.Key
}

// shardHash routes keys between forest shards with FNV-1a over the
// little-endian key bytes.
func shardHash(key uint64) uint32 {
	hasher := fnv.New32a()

	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], key)
	hasher.Write(buf[:])

	return hasher.Sum32()
}

// minKeyEvictor sacrifices the record with the smallest key. The eviction
// scan visits slots in ascending key order, so the first visit names the
// victim and the scan short-circuits.
type minKeyEvictor struct {
	victim llrb.Index
}

func (e *minKeyEvictor) Begin() {
	e.victim = llrb.Nil
}

func (e *minKeyEvictor) Visit(i llrb.Index, _ *Record) bool {
	e.victim = i

	return true
}

func (e *minKeyEvictor) Pick() llrb.Index {
	return e.victim
}

// buildForest constructs the forest under test from the workload: capacity
// is split evenly across shards and each shard carries its own overflow
// strategy. Capacity below one slot per shard is clamped up.
func buildForest(workload *Workload) *llrb.Forest[Record, uint64] {
	shardCapacity := max(workload.Capacity/workload.Shards, 1)

	return llrb.NewForest(workload.Shards, shardHash, func(int) *llrb.Tree[Record, uint64] {
		opts := []llrb.Option[Record, uint64]{
			llrb.WithCapacity[Record, uint64](shardCapacity),
		}

		switch workload.Policy {
		case PolicyGrow:
			opts = append(opts, llrb.WithGrowth[Record, uint64](llrb.DefaultGrowth))
		case PolicyEvict:
			opts = append(opts, llrb.WithEvictor[Record, uint64](&minKeyEvictor{}))
		}

		return llrb.New[Record, uint64](recordKey, cmp.Compare[uint64], opts...)
	})
}
