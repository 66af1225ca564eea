package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/internal/vmsnap/service"
	"github.com/jimyag/vmsnap/pkg/ginx"
)

// Status 聚合平台、调度器和备份存储的状态概览
type Status struct {
	vmService        VMServiceInterface
	schedulerService SchedulerServiceInterface
	storageService   StorageServiceInterface
}

func NewStatus(vmService *service.VMService, schedulerService *service.Scheduler, storageService *service.StorageService) *Status {
	return &Status{
		vmService:        vmService,
		schedulerService: schedulerService,
		storageService:   storageService,
	}
}

func (s *Status) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/describe-status", ginx.Adapt5(s.DescribeStatus))
}

func (s *Status) DescribeStatus(ctx *gin.Context, _ *entity.DescribeStatusRequest) (*entity.DescribeStatusResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("API: DescribeStatus called")

	return &entity.DescribeStatusResponse{
		Status: &entity.SystemStatus{
			Platforms: s.vmService.PlatformStatuses(ctx),
			Scheduler: s.schedulerService.State(),
			Storage:   s.storageService.Status(ctx),
		},
	}, nil
}
