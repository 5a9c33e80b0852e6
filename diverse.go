package imgcache

import (
	"log/slog"
	"sort"

	"github.com/corona10/goimagehash"
)

// hashedCandidate pairs a candidate with its fingerprint for clustering.
type hashedCandidate struct {
	path string
	size int64
	hash *goimagehash.ImageHash
}

// SelectDiverse picks up to count visually diverse paths from candidates.
//
// Candidates are greedily clustered in input order: each one joins the
// first existing cluster whose representative (first member) is within
// similarityThreshold bits, else starts a new cluster. Clusters are ranked
// by their largest member's byte size, and the largest member of each
// cluster is taken in rank order. If there are fewer clusters than count,
// the remainder is backfilled from all unselected members, largest first.
//
// The clustering is single-pass and order-dependent, so ties resolve by
// encounter order. Larger files win within a cluster on the assumption
// that they are source images rather than thumbnails of the same shot.
func SelectDiverse(candidates []Candidate, count int) []string {
	if len(candidates) <= count {
		paths := make([]string, 0, len(candidates))
		for _, c := range candidates {
			paths = append(paths, c.Path)
		}
		return paths
	}

	hashed := make([]hashedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if h := hashImageFile(c.Path); h != nil {
			hashed = append(hashed, hashedCandidate{path: c.Path, size: c.Size, hash: h})
		}
	}

	if len(hashed) <= count {
		paths := make([]string, 0, len(hashed))
		for _, hc := range hashed {
			paths = append(paths, hc.path)
		}
		return paths
	}

	var groups [][]hashedCandidate
	for _, hc := range hashed {
		joined := false
		for i := range groups {
			if hashDistance(hc.hash, groups[i][0].hash) <= similarityThreshold {
				groups[i] = append(groups[i], hc)
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, []hashedCandidate{hc})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return maxSize(groups[i]) > maxSize(groups[j])
	})

	selected := make([]string, 0, count)
	chosen := make(map[string]bool, count)
	for _, group := range groups {
		if len(selected) >= count {
			break
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].size > group[j].size })
		selected = append(selected, group[0].path)
		chosen[group[0].path] = true
	}

	// More images needed than clusters exist: backfill from the unselected
	// members of every cluster, globally largest first.
	if len(selected) < count {
		var remaining []hashedCandidate
		for _, group := range groups {
			for _, hc := range group {
				if !chosen[hc.path] {
					remaining = append(remaining, hc)
				}
			}
		}
		sort.SliceStable(remaining, func(i, j int) bool { return remaining[i].size > remaining[j].size })
		for _, hc := range remaining {
			if len(selected) >= count {
				break
			}
			selected = append(selected, hc.path)
		}
	}

	slog.Info("imgcache: diversity selection",
		"selected", len(selected), "groups", len(groups), "pool", len(candidates))
	return selected
}

func maxSize(group []hashedCandidate) int64 {
	max := group[0].size
	for _, hc := range group[1:] {
		if hc.size > max {
			max = hc.size
		}
	}
	return max
}
