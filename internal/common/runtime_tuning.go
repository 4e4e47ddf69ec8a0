package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Runtime profiles for different server configurations
const (
	// Small server: 2 vCPU, 4GB RAM
	SmallServerGOGC     = 200
	SmallServerMemLimit = 2.5 * 1024 * 1024 * 1024
	SmallServerMaxProcs = 1

	// Medium server: 4-8 vCPU
	MediumServerGOGC     = 400
	MediumServerMemLimit = 6 * 1024 * 1024 * 1024

	// Large server: 16+ vCPU
	LargeServerGOGC     = 400
	LargeServerMemLimit = 12 * 1024 * 1024 * 1024
)

// detectServerProfile returns GC and scheduler settings based on CPU count.
func detectServerProfile() (gogc int, memLimit int64, maxProcs int) {
	totalCPU := runtime.NumCPU()

	switch {
	case totalCPU <= 2:
		return SmallServerGOGC, int64(SmallServerMemLimit), SmallServerMaxProcs
	case totalCPU <= 8:
		return MediumServerGOGC, int64(MediumServerMemLimit), totalCPU - 1
	default:
		return LargeServerGOGC, int64(LargeServerMemLimit), totalCPU - 2
	}
}

// InitRuntime tunes the Go runtime for the engine. The solver and the
// fixed-point math allocate many short lived 256-bit integers from sync.Pool,
// so a higher GOGC keeps the pools warm; GOMEMLIMIT bounds the heap.
// GOGC, GOMAXPROCS and GOMEMLIMIT in the environment take precedence.
func InitRuntime() {
	defaultGOGC, defaultMemLimit, defaultMaxProcs := detectServerProfile()

	if gcPercent := os.Getenv("GOGC"); gcPercent == "" {
		debug.SetGCPercent(defaultGOGC)
		log.Info().
			Int("GOGC", defaultGOGC).
			Msg("[runtime] Set GOGC")
	}

	if maxProcs := os.Getenv("GOMAXPROCS"); maxProcs == "" {
		if defaultMaxProcs < 1 {
			defaultMaxProcs = 1
		}
		runtime.GOMAXPROCS(defaultMaxProcs)
		log.Info().
			Int("GOMAXPROCS", defaultMaxProcs).
			Int("total_cpu", runtime.NumCPU()).
			Msg("[runtime] Set GOMAXPROCS")
	}

	if memLimit := os.Getenv("GOMEMLIMIT"); memLimit == "" {
		debug.SetMemoryLimit(defaultMemLimit)
		log.Info().
			Int64("GOMEMLIMIT_bytes", defaultMemLimit).
			Float64("GOMEMLIMIT_GB", float64(defaultMemLimit)/1024/1024/1024).
			Msg("[runtime] Set memory limit")
	}

	logRuntimeSettings()
}

func logRuntimeSettings() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Info().
		Int("num_cpu", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Uint64("heap_alloc_mb", memStats.HeapAlloc/1024/1024).
		Uint64("heap_sys_mb", memStats.HeapSys/1024/1024).
		Str("go_version", runtime.Version()).
		Msg("[runtime] Current runtime settings")
}
