package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jimyag/vmsnap/pkg/vmerror"
)

// Runner 执行平台命令行工具
// 测试中用假实现替换，避免依赖真实的虚拟化环境
type Runner interface {
	// Run 执行命令并返回合并后的标准输出和标准错误
	Run(ctx context.Context, name string, args ...string) (string, error)
	// LookPath 检查命令是否存在于 PATH 中
	LookPath(name string) bool
}

// ExecRunner 基于 os/exec 的默认实现，每次调用都受超时约束
type ExecRunner struct {
	timeout time.Duration
}

// NewRunner 创建命令执行器，timeout 不合法时使用默认 300 秒
func NewRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &ExecRunner{timeout: timeout}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return text, vmerror.WrapError(vmerror.ErrCommandTimeout,
				fmt.Sprintf("command %q did not finish within %s", name+" "+strings.Join(args, " "), r.timeout), err)
		}
		return text, vmerror.WrapError(vmerror.ErrCommandFailure,
			fmt.Sprintf("command %q failed: %s", name+" "+strings.Join(args, " "), text), err)
	}
	return text, nil
}

func (r *ExecRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
