// Package api 提供 vmsnap 的只读 HTTP 查询接口
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jimyag/vmsnap/internal/vmsnap/service"
)

type API struct {
	engine *gin.Engine
	server *http.Server

	status    *Status
	vm        *VM
	scheduler *Scheduler
	backup    *Backup
}

func New(address string, vmService *service.VMService, schedulerService *service.Scheduler, storageService *service.StorageService) (*API, error) {
	engine := gin.Default()
	api := &API{
		engine:    engine,
		status:    NewStatus(vmService, schedulerService, storageService),
		vm:        NewVM(vmService),
		scheduler: NewScheduler(schedulerService),
		backup:    NewBackup(storageService),
	}

	group := engine.Group("/api")
	api.status.RegisterRoutes(group)
	api.vm.RegisterRoutes(group)
	api.scheduler.RegisterRoutes(group)
	api.backup.RegisterRoutes(group)

	api.server = &http.Server{
		Addr:    address,
		Handler: engine,
	}
	return api, nil
}

func (a *API) Run(ctx context.Context) error {
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Name 实现 grace.Grace 接口
func (a *API) Name() string {
	return "API Server"
}
