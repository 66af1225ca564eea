package platform

import (
	"sort"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

// OldestBeyondRetention 计算按保留策略应当删除的快照，返回值按从旧到新排序。
// 只有名称带托管前缀的快照参与计算，手工快照无论数量多少都不会出现在结果中。
func OldestBeyondRetention(snapshots []entity.Snapshot, retention int) []entity.Snapshot {
	if retention < 0 {
		retention = 0
	}

	managed := make([]entity.Snapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if entity.IsManagedSnapshotName(snap.Name) {
			managed = append(managed, snap)
		}
	}
	if len(managed) <= retention {
		return nil
	}

	SortNewestFirst(managed)

	victims := managed[retention:]
	out := make([]entity.Snapshot, len(victims))
	for i, snap := range victims {
		out[len(victims)-1-i] = snap
	}
	return out
}

// SortNewestFirst 按创建时间降序排序。
// 没有时间戳的快照视为最旧；全部没有时间戳时退化为按名称降序，
// 托管快照的名称内嵌时间戳，名称降序即时间降序。
func SortNewestFirst(snapshots []entity.Snapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		a, b := snapshots[i], snapshots[j]
		switch {
		case a.CreatedAt != nil && b.CreatedAt != nil:
			if !a.CreatedAt.Equal(*b.CreatedAt) {
				return a.CreatedAt.After(*b.CreatedAt)
			}
			return a.Name > b.Name
		case a.CreatedAt != nil:
			return true
		case b.CreatedAt != nil:
			return false
		default:
			return a.Name > b.Name
		}
	})
}
