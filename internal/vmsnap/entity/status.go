package entity

// PlatformStatus 单个平台的可用性概览
type PlatformStatus struct {
	Name      Platform `json:"name"`
	Available bool     `json:"available"`
	VMCount   int      `json:"vm_count"`
}

// SystemStatus 系统整体状态概览
type SystemStatus struct {
	Platforms []PlatformStatus `json:"platforms"`
	Scheduler *SchedulerState  `json:"scheduler"`
	Storage   *StorageStatus   `json:"storage,omitempty"`
}

// DescribeStatusRequest 查询系统状态请求
type DescribeStatusRequest struct{}

type DescribeStatusResponse struct {
	Status *SystemStatus `json:"status"`
}
