package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

// MockSchedulerService 是 Scheduler 的 mock 实现
type MockSchedulerService struct {
	mock.Mock
}

func (m *MockSchedulerService) State() *entity.SchedulerState {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*entity.SchedulerState)
}

func (m *MockSchedulerService) Running() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockSchedulerService) IntervalText() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSchedulerService) ListRounds(ctx context.Context, limit int) ([]entity.RoundSummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RoundSummary), args.Error(1)
}

func TestScheduler_DescribeScheduler(t *testing.T) {
	t.Parallel()

	t.Run("returns state with readable interval", func(t *testing.T) {
		t.Parallel()

		nextRun := time.Date(2026, 8, 25, 16, 30, 5, 0, time.UTC)
		mockService := new(MockSchedulerService)
		mockService.On("State").Return(&entity.SchedulerState{
			Enabled:         true,
			IntervalMinutes: 120,
			NextRun:         &nextRun,
			VMLastSnapshot:  map[string]time.Time{},
		})
		mockService.On("IntervalText").Return("2h")
		mockService.On("Running").Return(true)

		schedulerAPI := &Scheduler{
			schedulerService: mockService,
		}

		router := setupTestRouter()
		schedulerAPI.RegisterRoutes(router.Group("/api"))

		w := postJSON(t, router, "/api/describe-scheduler", &entity.DescribeSchedulerRequest{})

		require.Equal(t, http.StatusOK, w.Code)
		var resp entity.DescribeSchedulerResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.True(t, resp.State.Enabled)
		assert.Equal(t, 120, resp.State.IntervalMinutes)
		assert.Equal(t, "2h", resp.Interval)
		assert.True(t, resp.Running)
		mockService.AssertExpectations(t)
	})
}

func TestScheduler_ListRounds(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name         string
		req          *entity.ListRoundsRequest
		mockSetup    func(*MockSchedulerService)
		expectStatus int
		expectCount  int
	}{
		{
			name: "returns recent rounds",
			req:  &entity.ListRoundsRequest{Limit: 5},
			mockSetup: func(m *MockSchedulerService) {
				m.On("ListRounds", mock.Anything, 5).Return([]entity.RoundSummary{
					{RoundID: "rnd-2", Trigger: entity.RoundTriggerScheduled, VMsTotal: 3, Created: 3},
					{RoundID: "rnd-1", Trigger: entity.RoundTriggerManual, VMsTotal: 3, Created: 2, CreateFailed: 1},
				}, nil)
			},
			expectStatus: http.StatusOK,
			expectCount:  2,
		},
		{
			name: "repository error surfaces as server error",
			req:  &entity.ListRoundsRequest{},
			mockSetup: func(m *MockSchedulerService) {
				m.On("ListRounds", mock.Anything, 0).Return(nil, assert.AnError)
			},
			expectStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mockService := new(MockSchedulerService)
			if tc.mockSetup != nil {
				tc.mockSetup(mockService)
			}

			schedulerAPI := &Scheduler{
				schedulerService: mockService,
			}

			router := setupTestRouter()
			schedulerAPI.RegisterRoutes(router.Group("/api"))

			w := postJSON(t, router, "/api/list-rounds", tc.req)

			require.Equal(t, tc.expectStatus, w.Code)
			if tc.expectStatus == http.StatusOK {
				var resp entity.ListRoundsResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Len(t, resp.Rounds, tc.expectCount)
			}
			mockService.AssertExpectations(t)
		})
	}
}
