// Package idgen 提供递增 ID 生成器
//
// 使用 Sonyflake 算法生成全局唯一且递增的 ID。
// Sonyflake 是 Snowflake 算法的改进版本，生成的 ID 具有以下特性：
//   - 全局唯一
//   - 时间有序（递增）
//   - 64 位整数
//   - 分布式友好
//
// 生成的 ID 格式：
//   - 快照轮次 ID: rnd-{递增数字}
//   - 备份 ID: bak-{递增数字}
//
// 使用方式：
//
// 方式一：使用包级别的便捷函数（推荐，使用默认生成器）
//
//	// 生成快照轮次 ID
//	roundID, err := idgen.GenerateRoundID()
//	// roundID: "rnd-1234567890"
//
//	// 生成备份 ID
//	backupID, err := idgen.GenerateBackupID()
//	// backupID: "bak-1234567891"
//
// 方式二：使用默认生成器
//
//	gen := idgen.DefaultGenerator()
//	roundID, err := gen.GenerateRoundID()
//
// 方式三：创建自定义生成器
//
//	gen := idgen.New()
//	roundID, err := gen.GenerateRoundID()
package idgen
