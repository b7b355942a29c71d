package history

import (
	"math"

	"github.com/shirou/gopsutil/process"
)

// processAlive reports whether pid names a live process. Lookup errors
// count as alive so a run is never declared stale by mistake.
func processAlive(pid int) bool {
	if pid <= 0 || pid > math.MaxInt32 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return exists || err != nil
}
