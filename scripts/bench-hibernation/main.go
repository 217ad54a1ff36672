// bench-hibernation measures heap memory before and after Hibernate() calls
// on populated slab-arena trees, cycling hibernate/boot to show how much of
// the bookkeeping footprint the compressed planes reclaim.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --records 1000000 --shards 8 \
//	  --profile-dir docs/profiles/hibernation
package main

import (
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/Sumatoshi-tech/slabtree/pkg/llrb"
)

// record mirrors the payload size of a typical index entry: a key plus two
// machine words of attached state.
type record struct {
	key     uint64
	payload [16]byte
}

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	heapIdle  uint64
	numGC     uint32
}

func main() {
	records := flag.Int("records", 1_000_000, "Records to load")
	shards := flag.Int("shards", 8, "Forest shards")
	cycles := flag.Int("cycles", 3, "Hibernate/boot cycles to measure")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles")
	cpuProfile := flag.Bool("cpu-profile", false, "Write CPU profile to profile-dir/cpu.prof")

	flag.Parse()

	if *profileDir == "" {
		log.Fatal("--profile-dir is required")
	}

	if err := os.MkdirAll(*profileDir, 0o755); err != nil {
		log.Fatalf("mkdir profile-dir: %v", err)
	}

	if *cpuProfile {
		cpuPath := filepath.Join(*profileDir, "cpu.prof")

		cpuFile, cpuErr := os.Create(cpuPath)
		if cpuErr != nil {
			log.Fatalf("create cpu profile: %v", cpuErr)
		}
		defer cpuFile.Close()

		if startErr := pprof.StartCPUProfile(cpuFile); startErr != nil {
			log.Fatalf("start cpu profile: %v", startErr)
		}

		defer pprof.StopCPUProfile()

		log.Printf("CPU profiling enabled -> %s", cpuPath)
	}

	var snapshots []heapSnapshot

	takeSnapshot := func(label string) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			heapIdle:  m.HeapIdle,
			numGC:     m.NumGC,
		})
		log.Printf("  [heap] %-36s inuse=%6.1f MB  sys=%6.1f MB  idle=%6.1f MB",
			label, float64(m.HeapInuse)/1e6, float64(m.HeapSys)/1e6, float64(m.HeapIdle)/1e6)
	}

	writeHeapProfile := func(name string) {
		runtime.GC()
		runtime.GC()

		path := filepath.Join(*profileDir, name)

		f, ferr := os.Create(path)
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", path, ferr)

			return
		}
		defer f.Close()

		if perr := pprof.WriteHeapProfile(f); perr != nil {
			log.Printf("warning: write heap profile %s: %v", path, perr)
		}
	}

	forest := buildForest(*shards)

	takeSnapshot("before_load")

	for i := range *records {
		forest.Insert(record{key: uint64(i)}, false)
	}

	log.Printf("loaded %d records across %d shards", forest.Len(), *shards)

	takeSnapshot("after_load_before_hibernate")
	writeHeapProfile("heap_after_load.prof")

	for cycle := 1; cycle <= *cycles; cycle++ {
		forest.Hibernate()

		takeSnapshot(fmt.Sprintf("cycle_%d_after_hibernate", cycle))
		writeHeapProfile(fmt.Sprintf("heap_cycle_%d_after_hibernate.prof", cycle))

		forest.Boot()

		takeSnapshot(fmt.Sprintf("cycle_%d_after_boot_before_hibernate", cycle))
	}

	// Spot-check the structure survived the round trips.
	probe := uint64(*records / 2)
	if _, found := forest.Lookup(probe); *records > 0 && !found {
		log.Fatalf("lookup of key %d failed after %d hibernate/boot cycles", probe, *cycles)
	}

	// Print summary table.
	fmt.Println()
	fmt.Println("=== Heap Memory Timeline ===")
	fmt.Printf("%-40s %10s %10s %10s\n", "Phase", "InUse(MB)", "Sys(MB)", "Idle(MB)")
	fmt.Println("----------------------------------------+----------+----------+----------")

	for _, s := range snapshots {
		fmt.Printf("%-40s %10.1f %10.1f %10.1f\n",
			s.label, float64(s.heapInUse)/1e6, float64(s.heapSys)/1e6, float64(s.heapIdle)/1e6)
	}

	// Compute hibernation deltas.
	fmt.Println()
	fmt.Println("=== Hibernation Memory Deltas ===")

	for i := 0; i+1 < len(snapshots); i++ {
		curr := snapshots[i]

		next := snapshots[i+1]
		if strings.HasSuffix(curr.label, "before_hibernate") && strings.HasSuffix(next.label, "after_hibernate") {
			delta := float64(curr.heapInUse) - float64(next.heapInUse)
			pct := (delta / float64(curr.heapInUse)) * 100
			fmt.Printf("  %s -> %s: %.1f MB freed (%.1f%%)\n",
				curr.label, next.label, delta/1e6, pct)
		}
	}
}

func buildForest(shards int) *llrb.Forest[record, uint64] {
	hash := func(k uint64) uint32 {
		h := fnv.New32a()

		var buf [8]byte
		for i := range buf {
			buf[i] = byte(k >> (8 * i))
		}

		h.Write(buf[:])

		return h.Sum32()
	}

	build := func(int) *llrb.Tree[record, uint64] {
		return llrb.New(
			func(r *record) uint64 { return r.key },
			func(a, b uint64) int {
				switch {
				case a < b:
					return -1
				case a > b:
					return 1
				default:
					return 0
				}
			},
			llrb.WithGrowth[record, uint64](llrb.DefaultGrowth),
		)
	}

	return llrb.NewForest(shards, hash, build)
}
