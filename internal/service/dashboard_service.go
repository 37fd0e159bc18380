package service

import (
	"context"
	"time"

	"github.com/mansoorceksport/nutritico/internal/domain"
	"golang.org/x/sync/errgroup"
)

const dashboardHistoryLimit = 3

// Dashboard is the home screen payload
type Dashboard struct {
	Date                string                 `json:"date"`
	DayIndex            int                    `json:"day_index"`
	Targets             domain.MacroTargets    `json:"targets"`
	Intensity           string                 `json:"training_intensity"`
	Today               domain.DaySummary      `json:"today"`
	Progress            float64                `json:"progress"`
	Fasting             domain.FastingStatus   `json:"fasting"`
	WaterIntake         float64                `json:"water_intake"`
	LatestWeight        *domain.WeightRecord   `json:"latest_weight,omitempty"`
	RecentConsultations []*domain.Consultation `json:"recent_consultations"`
}

// DashboardService assembles the home screen
type DashboardService struct {
	states *StateService
	now    func() time.Time
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(states *StateService) *DashboardService {
	return &DashboardService{
		states: states,
		now:    time.Now,
	}
}

// Get loads the state and the assistant history concurrently and aggregates today
func (s *DashboardService) Get(ctx context.Context, userID string) (*Dashboard, error) {
	now := s.now()
	var (
		snapshot      *domain.AppState
		consultations []*domain.Consultation
	)

	// Use errgroup for concurrent fetching
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st, err := s.states.Snapshot(gCtx, userID)
		if err != nil {
			return err
		}
		snapshot = st
		return nil
	})

	g.Go(func() error {
		history, err := s.states.History(gCtx, userID, dashboardHistoryLimit)
		if err != nil {
			return err
		}
		consultations = history
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dayIndex := domain.DayIndexOf(now)
	today := snapshot.DaySummary(dayIndex)

	dashboard := &Dashboard{
		Date:                now.Format("2006-01-02"),
		DayIndex:            dayIndex,
		Targets:             snapshot.CalculatedTargets,
		Intensity:           string(snapshot.TrainingIntensity),
		Today:               today,
		Progress:            today.Progress(),
		Fasting:             snapshot.Fasting.Status(now),
		WaterIntake:         snapshot.WaterIntake,
		RecentConsultations: consultations,
	}
	if n := len(snapshot.WeightHistory); n > 0 {
		latest := snapshot.WeightHistory[n-1]
		dashboard.LatestWeight = &latest
	}
	return dashboard, nil
}
