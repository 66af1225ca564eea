// Package model 定义数据库表结构
package model

import "time"

// Round 快照轮次执行历史表
type Round struct {
	ID             string    `gorm:"primaryKey;type:text;column:id" json:"id"`                                                 // rnd-{uuid}
	Trigger        string    `gorm:"type:text;not null;column:trigger" json:"trigger"`                                         // scheduled, manual
	StartedAt      time.Time `gorm:"type:datetime;not null;index:idx_rounds_started_at;column:started_at" json:"started_at"`   // 开始时间
	FinishedAt     time.Time `gorm:"type:datetime;not null;column:finished_at" json:"finished_at"`                             // 结束时间
	VMsTotal       int       `gorm:"type:integer;not null;column:vms_total" json:"vms_total"`                                  // 参与的虚拟机数量
	Created        int       `gorm:"type:integer;not null;column:created" json:"created"`                                      // 成功创建数
	CreateFailed   int       `gorm:"type:integer;not null;column:create_failed" json:"create_failed"`                          // 创建失败数
	CleanupDeleted int       `gorm:"type:integer;not null;column:cleanup_deleted" json:"cleanup_deleted"`                      // 清理删除数
	Errors         string    `gorm:"type:text;column:errors" json:"errors"`                                                    // 失败描述，JSON 数组文本
}

// TableName 指定表名
func (Round) TableName() string {
	return "rounds"
}
