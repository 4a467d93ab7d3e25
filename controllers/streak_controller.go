package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepdash/prepdash/services"
	"github.com/prepdash/prepdash/streak"
	"github.com/prepdash/prepdash/utils"
)

// StreakController recomputes streak views from the caller's reward activity
// on every request; nothing is persisted.
type StreakController struct {
	ledger *services.RewardLedger
}

// NewStreakController creates the controller over the given ledger.
func NewStreakController(ledger *services.RewardLedger) *StreakController {
	return &StreakController{ledger: ledger}
}

// Streaks returns current and longest consecutive-day counts.
func (s *StreakController) Streaks(ctx *gin.Context) {
	dates, ok := s.activityDates(ctx)
	if !ok {
		return
	}

	state, err := streak.ComputeStreaks(dates, time.Now())
	if err != nil {
		utils.Sugar.Errorf("streak computation failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to compute streaks")
		return
	}

	utils.Success(ctx, state)
}

// Calendar returns the month grid for ?year=&month=.
func (s *StreakController) Calendar(ctx *gin.Context) {
	year, err := strconv.Atoi(ctx.Query("year"))
	if err != nil || year < 1970 || year > 9999 {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid year")
		return
	}
	month, err := strconv.Atoi(ctx.Query("month"))
	if err != nil || month < 1 || month > 12 {
		utils.Error(ctx, http.StatusBadRequest, 40043, "invalid month")
		return
	}

	dates, ok := s.activityDates(ctx)
	if !ok {
		return
	}

	grid, err := streak.BuildMonthGrid(dates, year, time.Month(month), time.Now())
	if err != nil {
		utils.Sugar.Errorf("month grid failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to build calendar")
		return
	}

	utils.Success(ctx, grid)
}

// Heatmap returns the trailing-365-day activity grid.
func (s *StreakController) Heatmap(ctx *gin.Context) {
	dates, ok := s.activityDates(ctx)
	if !ok {
		return
	}

	hm, err := streak.BuildYearHeatmap(dates, time.Now())
	if err != nil {
		utils.Sugar.Errorf("heatmap failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to build heatmap")
		return
	}

	utils.Success(ctx, hm)
}

func (s *StreakController) activityDates(ctx *gin.Context) ([]string, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}

	dates, err := s.ledger.ActivityDates(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load activity")
		return nil, false
	}
	return dates, true
}
