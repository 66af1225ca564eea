package entity

import "time"

// CleanupSummary 跨平台清理的汇总结果。
// 单台虚拟机的失败只追加到 Errors，绝不中断整体流程。
type CleanupSummary struct {
	TotalDeleted int      `json:"total_deleted"` // 实际删除的快照总数
	VMsProcessed int      `json:"vms_processed"` // 处理过的虚拟机数量
	Errors       []string `json:"errors"`        // 累积的失败描述
}

// PlannedDeletion 清理预演中一条将被删除的快照
type PlannedDeletion struct {
	Platform  Platform   `json:"platform"`
	VMName    string     `json:"vm_name"`
	Snapshot  string     `json:"snapshot"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
