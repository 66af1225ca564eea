// Package interval 提供调度间隔表达式的解析和格式化
//
// 间隔表达式形如 "30m"、"4h"、"1d"，单位可省略，默认为分钟：
//
//	interval.Parse("30m") // 30
//	interval.Parse("4h")  // 240
//	interval.Parse("1d")  // 1440
//	interval.Parse("45")  // 45
package interval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// specPattern 间隔表达式的合法形式：十进制数字加可选单位 m/h/d
var specPattern = regexp.MustCompile(`^(\d+)([mhd]?)$`)

// 各单位对应的分钟数
const (
	minutesPerHour = 60
	minutesPerDay  = 1440
)

// Parse 解析间隔表达式，返回分钟数
// 表达式先转为小写并去除首尾空白，不合法时返回错误
func Parse(spec string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(spec))

	match := specPattern.FindStringSubmatch(normalized)
	if match == nil {
		return 0, fmt.Errorf("invalid interval format: %q, use forms like '10m', '2h', '1d'", spec)
	}

	number, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("invalid interval number %q: %w", match[1], err)
	}

	switch match[2] {
	case "h":
		return number * minutesPerHour, nil
	case "d":
		return number * minutesPerDay, nil
	default: // 省略单位时按分钟处理
		return number, nil
	}
}

// Format 将分钟数格式化为可读字符串
// 小时和天会携带余下的低位单位，例如 150 -> "2h30m"，1500 -> "1d1h"
func Format(minutes int) string {
	if minutes < minutesPerHour {
		return fmt.Sprintf("%dm", minutes)
	}

	if minutes < minutesPerDay {
		hours := minutes / minutesPerHour
		remaining := minutes % minutesPerHour
		if remaining == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, remaining)
	}

	days := minutes / minutesPerDay
	remainingHours := (minutes % minutesPerDay) / minutesPerHour
	if remainingHours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, remainingHours)
}
