package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/internal/vmsnap/service"
	"github.com/jimyag/vmsnap/pkg/ginx"
)

// SchedulerServiceInterface 定义调度器服务接口
type SchedulerServiceInterface interface {
	State() *entity.SchedulerState
	Running() bool
	IntervalText() string
	ListRounds(ctx context.Context, limit int) ([]entity.RoundSummary, error)
}

type Scheduler struct {
	schedulerService SchedulerServiceInterface
}

func NewScheduler(schedulerService *service.Scheduler) *Scheduler {
	return &Scheduler{
		schedulerService: schedulerService,
	}
}

func (s *Scheduler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/describe-scheduler", ginx.Adapt5(s.DescribeScheduler))
	router.POST("/list-rounds", ginx.Adapt5(s.ListRounds))
}

func (s *Scheduler) DescribeScheduler(ctx *gin.Context, _ *entity.DescribeSchedulerRequest) (*entity.DescribeSchedulerResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("API: DescribeScheduler called")

	return &entity.DescribeSchedulerResponse{
		State:    s.schedulerService.State(),
		Interval: s.schedulerService.IntervalText(),
		Running:  s.schedulerService.Running(),
	}, nil
}

func (s *Scheduler) ListRounds(ctx *gin.Context, req *entity.ListRoundsRequest) (*entity.ListRoundsResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Int("limit", req.Limit).
		Msg("API: ListRounds called")

	rounds, err := s.schedulerService.ListRounds(ctx, req.Limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list rounds")
		return nil, err
	}

	return &entity.ListRoundsResponse{
		Rounds: rounds,
	}, nil
}
