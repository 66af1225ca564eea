// Package entity 定义业务实体
package entity

// Platform 虚拟化平台标识
type Platform string

const (
	PlatformMultipass  Platform = "multipass"  // Canonical Multipass
	PlatformVirtualBox Platform = "virtualbox" // Oracle VirtualBox
	PlatformVMware     Platform = "vmware"     // VMware Fusion / Workstation
)

// VMState 虚拟机运行状态
type VMState string

const (
	VMStateRunning   VMState = "running"   // 运行中
	VMStateStopped   VMState = "stopped"   // 已停止
	VMStateSuspended VMState = "suspended" // 已挂起
	VMStateUnknown   VMState = "unknown"   // 未知状态
)

// VirtualMachine 虚拟机信息，每次列举时重新查询，不做缓存
type VirtualMachine struct {
	Name     string   `json:"name"`           // 虚拟机名称，同一平台内唯一
	State    VMState  `json:"state"`          // 运行状态
	Platform Platform `json:"platform"`       // 所属平台
	UUID     string   `json:"uuid,omitempty"` // 平台内部 UUID（VirtualBox）
	Path     string   `json:"path,omitempty"` // 虚拟机文件路径（VMware .vmx）
}

// ListVMsRequest 列举虚拟机请求
type ListVMsRequest struct {
	Platform string `json:"platform,omitempty"` // 平台过滤，留空表示全部平台
}

type ListVMsResponse struct {
	VMs []VirtualMachine `json:"vms"`
}
