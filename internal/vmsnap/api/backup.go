package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/internal/vmsnap/service"
	"github.com/jimyag/vmsnap/pkg/ginx"
)

// StorageServiceInterface 定义备份存储服务接口
type StorageServiceInterface interface {
	ListBackups(ctx context.Context) []entity.Backup
	Status(ctx context.Context) *entity.StorageStatus
}

type Backup struct {
	storageService StorageServiceInterface
}

func NewBackup(storageService *service.StorageService) *Backup {
	return &Backup{
		storageService: storageService,
	}
}

func (b *Backup) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/list-backups", ginx.Adapt5(b.ListBackups))
}

func (b *Backup) ListBackups(ctx *gin.Context, _ *entity.ListBackupsRequest) (*entity.ListBackupsResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("API: ListBackups called")

	return &entity.ListBackupsResponse{
		Backups: b.storageService.ListBackups(ctx),
	}, nil
}
