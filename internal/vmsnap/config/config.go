// Package config 负责加载 vmsnap 配置
//
// 配置来源按优先级从高到低：
//  1. 环境变量（VMSNAP_*）
//  2. YAML 配置文件
//  3. 内置默认值
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DataDir 是 vmsnap 数据目录
	// 用于存储调度器状态、历史数据库和备份归档
	// 可以通过环境变量 VMSNAP_DATA_DIR 配置
	// 默认：~/.local/share/vmsnap
	DataDir string

	// Address 是 HTTP API 的绑定地址
	// 可以通过环境变量 VMSNAP_ADDRESS 配置
	Address string

	// raw 是解析后的原始配置树，通过点号路径查询
	raw map[string]any
}

// defaultAddress 是 HTTP API 的默认绑定地址
const defaultAddress = "0.0.0.0:7878"

// envOverrides 环境变量到配置键的映射
var envOverrides = []struct {
	env    string
	key    string
	number bool
}{
	{env: "VMSNAP_BACKUP_DESTINATION", key: "backup.destination"},
	{env: "VMSNAP_BACKUP_RETENTION_COUNT", key: "backup.retention.count", number: true},
	{env: "VMSNAP_VM_SNAPSHOT_RETENTION", key: "vm.snapshot_retention", number: true},
	{env: "VMSNAP_LOG_LEVEL", key: "notifications.level"},
}

// New 加载配置，configPath 为空时按默认位置查找
func New(configPath string) (*Config, error) {
	cfg := &Config{
		DataDir: getDataDir(),
		Address: getAddress(),
		raw:     map[string]any{},
	}

	path := resolveConfigPath(configPath, cfg.DataDir)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err = yaml.Unmarshal(data, &cfg.raw); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if cfg.raw == nil {
			cfg.raw = map[string]any{}
		}
	}

	cfg.applyEnvOverrides()
	if cfg.Address == "" {
		cfg.Address = cfg.GetString("daemon.listen", defaultAddress)
	}
	return cfg, nil
}

// resolveConfigPath 确定配置文件路径，找不到时返回空串（使用默认值运行）
func resolveConfigPath(explicit, dataDir string) string {
	// 1. 显式传入的路径必须存在，否则也按不存在处理交给调用方默认值
	if explicit != "" {
		return explicit
	}

	// 2. 环境变量 VMSNAP_CONFIG
	if path := os.Getenv("VMSNAP_CONFIG"); path != "" {
		return path
	}

	// 3. 数据目录下的 config.yaml，存在才使用
	path := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func (c *Config) applyEnvOverrides() {
	for _, o := range envOverrides {
		value, ok := os.LookupEnv(o.env)
		if !ok {
			continue
		}
		if o.number {
			n, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			c.Set(o.key, n)
			continue
		}
		c.Set(o.key, value)
	}
}

// getDataDir 获取数据目录，优先使用环境变量
func getDataDir() string {
	// 1. 优先使用环境变量 VMSNAP_DATA_DIR
	if dir := os.Getenv("VMSNAP_DATA_DIR"); dir != "" {
		return dir
	}

	// 2. 使用用户主目录下的 .local/share/vmsnap
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "vmsnap")
	}

	// 3. 如果无法获取主目录，使用当前目录下的 data
	return filepath.Join(".", "data")
}

// getAddress 获取绑定地址，优先使用环境变量 VMSNAP_ADDRESS
// 环境变量未设置时留空，待配置文件解析后由 daemon.listen 补上
func getAddress() string {
	return os.Getenv("VMSNAP_ADDRESS")
}

// Get 按点号路径查询配置值，键不存在时返回 def
func (c *Config) Get(key string, def any) any {
	value := any(c.raw)
	for _, part := range strings.Split(key, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return def
		}
		value, ok = m[part]
		if !ok {
			return def
		}
	}
	return value
}

// Set 按点号路径写入配置值，中间层级不存在时自动创建
func (c *Config) Set(key string, value any) {
	parts := strings.Split(key, ".")
	current := c.raw
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// GetString 查询字符串配置
func (c *Config) GetString(key, def string) string {
	switch v := c.Get(key, def).(type) {
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// GetInt 查询整数配置，兼容 YAML 解析出的多种数值类型
func (c *Config) GetInt(key string, def int) int {
	switch v := c.Get(key, def).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// GetBool 查询布尔配置
func (c *Config) GetBool(key string, def bool) bool {
	switch v := c.Get(key, def).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// GetStringSlice 查询字符串列表配置
func (c *Config) GetStringSlice(key string, def []string) []string {
	switch v := c.Get(key, nil).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return def
}

// Platforms 返回按优先级排序的启用平台列表
func (c *Config) Platforms() []string {
	return c.GetStringSlice("vm.platforms", []string{"multipass", "virtualbox", "vmware"})
}

// SnapshotRetention 返回每台虚拟机保留的托管快照数量
func (c *Config) SnapshotRetention() int {
	return c.GetInt("vm.snapshot_retention", 7)
}

// PlatformTimeout 返回指定平台的命令执行超时
func (c *Config) PlatformTimeout(platform string) time.Duration {
	seconds := c.GetInt("vm."+platform+".timeout", 300)
	return time.Duration(seconds) * time.Second
}

// BackupDestination 返回备份归档目录
func (c *Config) BackupDestination() string {
	return c.GetString("backup.destination", filepath.Join(c.DataDir, "backups"))
}

// BackupRetentionCount 返回按数量的备份保留上限
func (c *Config) BackupRetentionCount() int {
	return c.GetInt("backup.retention.count", 7)
}

// BackupRetentionDays 返回按时间的备份保留天数
func (c *Config) BackupRetentionDays() int {
	return c.GetInt("backup.retention.days", 30)
}

// ExcludePatterns 返回备份排除模式列表
func (c *Config) ExcludePatterns() []string {
	return c.GetStringSlice("backup.exclude_patterns", nil)
}

// NotifyLevel 返回通知最低级别
func (c *Config) NotifyLevel() string {
	return c.GetString("notifications.level", "info")
}

// NotifyConsole 返回是否输出到控制台
func (c *Config) NotifyConsole() bool {
	return c.GetBool("notifications.console", true)
}

// NotifyFile 返回通知日志文件路径，为空表示不写文件
func (c *Config) NotifyFile() string {
	return c.GetString("notifications.file", "")
}

// MaxBackupSizeGB 返回备份目录占用的硬上限
func (c *Config) MaxBackupSizeGB() int {
	return c.GetInt("monitoring.max_backup_size_gb", 10)
}

// AlertThresholdGB 返回备份目录占用的告警阈值
func (c *Config) AlertThresholdGB() int {
	return c.GetInt("monitoring.alert_threshold_gb", 8)
}

// SchedulerStatePath 返回调度器状态文件路径
func (c *Config) SchedulerStatePath() string {
	return filepath.Join(c.DataDir, "scheduler.json")
}

// HistoryDBPath 返回历史数据库文件路径
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}
