package multicache

import (
	"fmt"
	"strings"
	"time"

	"github.com/unkn0wn-root/multicache/local"
)

// formatStats renders the local-tier counters as a human-readable block.
// Percentages carry four decimal places.
func formatStats(s local.Snapshot) string {
	var b strings.Builder
	b.WriteString("\n========== local tier stats ==========\n")
	fmt.Fprintf(&b, "total requests:       %d\n", s.Requests())
	fmt.Fprintf(&b, "hits:                 %d (%.4f%%)\n", s.Hits, s.HitRate()*100)
	fmt.Fprintf(&b, "misses:               %d (%.4f%%)\n\n", s.Misses, s.MissRate()*100)
	fmt.Fprintf(&b, "load successes:       %d\n", s.LoadSuccesses)
	fmt.Fprintf(&b, "load failures:        %d (%.4f%%)\n\n", s.LoadFailures, s.LoadFailureRate()*100)
	fmt.Fprintf(&b, "evictions:            %d (weight %d)\n\n", s.Evictions, s.EvictionWeight)
	fmt.Fprintf(&b, "total load time:      %.4f ms\n", float64(s.TotalLoadTime)/float64(time.Millisecond))
	fmt.Fprintf(&b, "average load penalty: %.4f ms\n", s.AverageLoadPenalty()/float64(time.Millisecond))
	b.WriteString("======================================\n")
	return b.String()
}
