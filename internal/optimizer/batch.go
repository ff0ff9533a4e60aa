package optimizer

import (
	"fmt"
	"sort"
	"time"
)

// batchMultiplier inflates the battery-reduction estimate of merged
// decisions: one wake cycle serves every notification in the cluster.
const batchMultiplier = 1.2

// mergeBatches clusters decisions whose optimized times fall within the
// batch window and snaps each cluster to its mean time. Individual
// retiming and batch efficiency are separate objectives, so this runs as
// its own pass after per-reminder decisioning. The outcome is order
// independent: clustering works on time-sorted decisions.
func mergeBatches(decisions []Decision, window time.Duration) []Decision {
	if len(decisions) < 2 {
		return decisions
	}

	sorted := make([]*Decision, len(decisions))
	for i := range decisions {
		sorted[i] = &decisions[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OptimizedTime.Before(sorted[j].OptimizedTime)
	})

	var cluster []*Decision
	flush := func() {
		if len(cluster) > 1 {
			applyCluster(cluster)
		}
		cluster = cluster[:0]
	}

	for _, d := range sorted {
		if len(cluster) > 0 && d.OptimizedTime.Sub(cluster[0].OptimizedTime) > window {
			flush()
		}
		cluster = append(cluster, d)
	}
	flush()

	return decisions
}

// applyCluster snaps every member to the cluster's mean time and boosts
// its reduction estimate for the shared wake cycle.
func applyCluster(cluster []*Decision) {
	var total int64
	for _, d := range cluster {
		total += d.OptimizedTime.Unix()
	}
	mean := time.Unix(total/int64(len(cluster)), 0).UTC()

	for _, d := range cluster {
		d.OptimizedTime = mean
		d.BatteryImpactReduction *= batchMultiplier
		d.Reasoning = append(d.Reasoning,
			fmt.Sprintf("batched with %d nearby reminders into one delivery at %s",
				len(cluster)-1, mean.Format(time.Kitchen)))
	}
}
