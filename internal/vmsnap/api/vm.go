package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/internal/vmsnap/service"
	"github.com/jimyag/vmsnap/pkg/ginx"
)

// VMServiceInterface 定义虚拟机服务接口
type VMServiceInterface interface {
	AvailablePlatforms() []entity.Platform
	ListAllVMs(ctx context.Context) map[entity.Platform][]entity.VirtualMachine
	ListSnapshots(ctx context.Context, req *entity.ListSnapshotsRequest) ([]entity.Snapshot, error)
	PlatformStatuses(ctx context.Context) []entity.PlatformStatus
}

type VM struct {
	vmService VMServiceInterface
}

func NewVM(vmService *service.VMService) *VM {
	return &VM{
		vmService: vmService,
	}
}

func (v *VM) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/list-vms", ginx.Adapt5(v.ListVMs))
	router.POST("/list-snapshots", ginx.Adapt5(v.ListSnapshots))
}

func (v *VM) ListVMs(ctx *gin.Context, req *entity.ListVMsRequest) (*entity.ListVMsResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("platform", req.Platform).
		Msg("API: ListVMs called")

	byPlatform := v.vmService.ListAllVMs(ctx)

	// 按配置中的平台顺序展平，同一平台内保持驱动返回的顺序
	vms := make([]entity.VirtualMachine, 0)
	for _, p := range v.vmService.AvailablePlatforms() {
		if req.Platform != "" && string(p) != req.Platform {
			continue
		}
		vms = append(vms, byPlatform[p]...)
	}

	return &entity.ListVMsResponse{
		VMs: vms,
	}, nil
}

func (v *VM) ListSnapshots(ctx *gin.Context, req *entity.ListSnapshotsRequest) (*entity.ListSnapshotsResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("vm_name", req.VMName).
		Str("platform", req.Platform).
		Msg("API: ListSnapshots called")

	snapshots, err := v.vmService.ListSnapshots(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list snapshots")
		return nil, err
	}

	return &entity.ListSnapshotsResponse{
		Snapshots: snapshots,
	}, nil
}
