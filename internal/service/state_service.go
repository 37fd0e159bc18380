package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/mansoorceksport/nutritico/internal/telemetry"
)

const (
	defaultStateCacheTTL  = 24 * time.Hour
	defaultSessionIdleTTL = 30 * time.Minute
	sessionEvictionPeriod = time.Minute
	syncTimeout           = 15 * time.Second
)

// userSession serializes all mutations of one user's state.
// version counts applied mutations; savedVersion is the last one persisted.
type userSession struct {
	mu           sync.Mutex
	state        *domain.AppState
	version      uint64
	savedVersion uint64
	lastUsed     time.Time
	evicted      bool
}

// ConsultResult is the assistant response together with the state it produced
type ConsultResult struct {
	Response *domain.AssistantResponse `json:"response"`
	State    *domain.AppState          `json:"state"`
}

// StateService owns the per-user application state. Every mutation goes
// through it; persistence happens in the background after each change.
// Sessions idle for longer than the idle TTL are dropped once saved and
// reloaded from the cache or the repository on the next request.
type StateService struct {
	repo          domain.StateRepository
	cache         domain.StateCache
	consultations domain.ConsultationRepository
	gateway       *AssistantGateway
	metrics       *telemetry.Metrics
	cacheTTL      time.Duration
	idleTTL       time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*userSession

	pendingMu sync.Mutex
	pending   map[string]struct{}
	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewStateService creates the state owner and starts its sync worker.
// cache and consultations may be nil.
func NewStateService(
	repo domain.StateRepository,
	cache domain.StateCache,
	consultations domain.ConsultationRepository,
	gateway *AssistantGateway,
	metrics *telemetry.Metrics,
) *StateService {
	s := &StateService{
		repo:          repo,
		cache:         cache,
		consultations: consultations,
		gateway:       gateway,
		metrics:       metrics,
		cacheTTL:      defaultStateCacheTTL,
		idleTTL:       defaultSessionIdleTTL,
		now:           time.Now,
		sessions:      make(map[string]*userSession),
		pending:       make(map[string]struct{}),
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go s.syncWorker()
	return s
}

// lockSession returns the user's session loaded and locked; the caller unlocks it
func (s *StateService) lockSession(ctx context.Context, userID string) (*userSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	for {
		s.mu.Lock()
		sess, ok := s.sessions[userID]
		if !ok {
			sess = &userSession{}
			s.sessions[userID] = sess
		}
		s.mu.Unlock()

		sess.mu.Lock()
		if sess.evicted {
			// Dropped between the map lookup and the lock; take the new one
			sess.mu.Unlock()
			continue
		}
		if sess.state == nil {
			state, err := s.load(ctx, userID)
			if err != nil {
				sess.mu.Unlock()
				return nil, err
			}
			sess.state = state
		}
		sess.lastUsed = s.now()
		return sess, nil
	}
}

// load reads the cache, then the repository, then falls back to a new state
func (s *StateService) load(ctx context.Context, userID string) (*domain.AppState, error) {
	if s.cache != nil {
		cached, err := s.cache.GetState(ctx, userID)
		if err != nil {
			log.Printf("Warning: state cache read failed for %s: %v", userID, err)
		} else if cached != nil {
			cached.UserID = userID
			cached.Normalize()
			return cached, nil
		}
	}

	stored, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if stored == nil {
		log.Printf("🌱 New state for user %s", userID)
		return domain.NewAppState(userID, s.now()), nil
	}
	stored.UserID = userID
	stored.Normalize()
	return stored, nil
}

// Snapshot returns a copy of the user's current state
func (s *StateService) Snapshot(ctx context.Context, userID string) (*domain.AppState, error) {
	sess, err := s.lockSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return sess.state.Clone(), nil
}

// mutate applies fn to a copy of the state and swaps it in only when fn succeeds
func (s *StateService) mutate(ctx context.Context, userID string, fn func(st *domain.AppState) error) (*domain.AppState, error) {
	sess, err := s.lockSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := sess.state.Clone()
	if err := fn(next); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	next.UpdatedAt = s.now()
	sess.state = next
	sess.version++
	snapshot := next.Clone()
	sess.mu.Unlock()

	s.scheduleSync(userID)
	return snapshot, nil
}

// UpdateProfile merges a partial profile update and refreshes the targets
func (s *StateService) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		return st.UpdateProfile(patch)
	})
}

// CompleteOnboarding stores the onboarding answers and marks the flow done
func (s *StateService) CompleteOnboarding(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		if err := st.UpdateProfile(patch); err != nil {
			return err
		}
		st.IsOnboardingComplete = true
		return nil
	})
}

// SetTrainingIntensity changes today's intensity and refreshes the targets
func (s *StateService) SetTrainingIntensity(ctx context.Context, userID string, intensity domain.TrainingIntensity) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		return st.SetTrainingIntensity(intensity)
	})
}

// UpdatePlan sets or clears one plan entry
func (s *StateService) UpdatePlan(ctx context.Context, userID string, dayIndex int, meal, group, itemID string, qty float64) (*domain.AppState, error) {
	return s.ApplyCommands(ctx, userID, []domain.PlanCommand{{DayIndex: dayIndex, Meal: meal, Group: group, ItemID: itemID, Qty: qty}})
}

// ApplyCommands folds a command batch over the current plan.
// The whole batch is rejected when any command is malformed.
func (s *StateService) ApplyCommands(ctx context.Context, userID string, cmds []domain.PlanCommand) (*domain.AppState, error) {
	if err := validateCommands(cmds); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		st.WeeklyPlan = domain.ApplyCommands(st.WeeklyPlan, cmds)
		return nil
	})
}

// SetWeeklyPlan replaces the whole plan, dropping non-positive quantities
func (s *StateService) SetWeeklyPlan(ctx context.Context, userID string, plan domain.WeeklyPlan) (*domain.AppState, error) {
	var cmds []domain.PlanCommand
	for dayKey, day := range plan {
		dayIndex, err := parseDayKey(dayKey)
		if err != nil {
			return nil, err
		}
		for meal, groups := range day {
			for group, items := range groups {
				for itemID, qty := range items {
					cmds = append(cmds, domain.PlanCommand{DayIndex: dayIndex, Meal: meal, Group: group, ItemID: itemID, Qty: qty})
				}
			}
		}
	}
	if err := validateCommands(cmds); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		st.WeeklyPlan = domain.ApplyCommands(domain.WeeklyPlan{}, cmds)
		return nil
	})
}

// LogConsumption records a planned entry as eaten with a portion factor
func (s *StateService) LogConsumption(ctx context.Context, userID string, dayIndex int, meal, group, itemID string, factor float64, alternative string) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		return st.LogConsumption(dayIndex, meal, group, itemID, factor, alternative)
	})
}

// DaySummary aggregates one day of the plan against the consumption log
func (s *StateService) DaySummary(ctx context.Context, userID string, dayIndex int) (*domain.DaySummary, error) {
	if !domain.ValidDay(dayIndex) {
		return nil, domain.ErrInvalidDay
	}
	snapshot, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := snapshot.DaySummary(dayIndex)
	return &summary, nil
}

// StartFasting starts a fasting session now
func (s *StateService) StartFasting(ctx context.Context, userID string) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		return st.Fasting.Start(s.now())
	})
}

// StopFasting ends the running session and returns it
func (s *StateService) StopFasting(ctx context.Context, userID string) (*domain.FastingSession, *domain.AppState, error) {
	var session domain.FastingSession
	state, err := s.mutate(ctx, userID, func(st *domain.AppState) error {
		var err error
		session, err = st.Fasting.Stop(s.now())
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordFastingStopped(ctx, session.Completed)
	return &session, state, nil
}

// UpdateFastingTarget changes the target hours. The app only offers it
// between sessions, so a running session is rejected here.
func (s *StateService) UpdateFastingTarget(ctx context.Context, userID string, hours float64) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		if st.Fasting.IsActive {
			return domain.ErrFastingActive
		}
		return st.Fasting.SetTarget(hours)
	})
}

// LogWeight records a weigh-in and refreshes the targets
func (s *StateService) LogWeight(ctx context.Context, userID string, weight float64) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		_, err := st.LogWeight(weight, s.now())
		return err
	})
}

// AddWater adds ml to today's water intake
func (s *StateService) AddWater(ctx context.Context, userID string, ml float64) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		return st.AddWater(ml)
	})
}

// AddMeal appends a meal slot
func (s *StateService) AddMeal(ctx context.Context, userID, name, mealTime string) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		return st.AddMeal(name, mealTime)
	})
}

// RemoveMeal drops a meal slot
func (s *StateService) RemoveMeal(ctx context.Context, userID, name string) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		return st.RemoveMeal(name)
	})
}

// UpdateMeal renames a meal and/or changes its time; empty values are left as is
func (s *StateService) UpdateMeal(ctx context.Context, userID, name, newName, mealTime string) (*domain.AppState, error) {
	if newName == "" && mealTime == "" {
		return nil, fmt.Errorf("nothing to update for meal %q", name)
	}
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		current := name
		if newName != "" {
			if err := st.RenameMeal(name, newName); err != nil {
				return err
			}
			current = newName
		}
		if mealTime != "" {
			return st.UpdateMealTime(current, mealTime)
		}
		return nil
	})
}

// ReorderMeal moves a meal to a new position
func (s *StateService) ReorderMeal(ctx context.Context, userID string, oldIndex, newIndex int) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		return st.ReorderMeal(oldIndex, newIndex)
	})
}

// AddCustomFood appends a food to the user's catalog
func (s *StateService) AddCustomFood(ctx context.Context, userID string, food domain.FoodItem) (*domain.AppState, error) {
	return s.mutate(ctx, userID, func(st *domain.AppState) error {
		return st.AddCustomFood(food)
	})
}

// Reset replaces the user's state with a fresh one and clears the assistant history
func (s *StateService) Reset(ctx context.Context, userID string) (*domain.AppState, error) {
	state, err := s.mutate(ctx, userID, func(st *domain.AppState) error {
		*st = *domain.NewAppState(userID, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateState(ctx, userID); err != nil {
			log.Printf("Warning: failed to drop cached state for %s: %v", userID, err)
		}
	}
	if s.consultations != nil {
		if err := s.consultations.DeleteByUser(ctx, userID); err != nil {
			log.Printf("Warning: failed to clear consultations for %s: %v", userID, err)
		}
	}
	return state, nil
}

// Consult asks the assistant and applies its commands to the plan as it is
// when the answer arrives. Concurrent edits made meanwhile are kept; the
// commands win on the entries they touch.
func (s *StateService) Consult(ctx context.Context, userID, query string) (*ConsultResult, error) {
	snapshot, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Consult(ctx, snapshot, query)
	if err != nil {
		return nil, err
	}

	state := snapshot
	if len(resp.Commands) > 0 {
		state, err = s.ApplyCommands(ctx, userID, resp.Commands)
		if err != nil {
			return nil, fmt.Errorf("failed to apply assistant commands: %w", err)
		}
	}

	if s.consultations != nil {
		record := &domain.Consultation{
			ID:            resp.ID,
			UserID:        userID,
			Query:         query,
			Response:      resp.Text,
			Commands:      resp.Commands,
			ActionSummary: resp.ActionSummary,
			Degraded:      resp.Degraded,
			CreatedAt:     resp.CreatedAt,
		}
		if err := s.consultations.Create(ctx, record); err != nil {
			log.Printf("Warning: failed to record consultation %s: %v", resp.ID, err)
		}
	}

	return &ConsultResult{Response: resp, State: state}, nil
}

// History returns the latest consultations of a user
func (s *StateService) History(ctx context.Context, userID string, limit int64) ([]*domain.Consultation, error) {
	if s.consultations == nil {
		return []*domain.Consultation{}, nil
	}
	return s.consultations.ListByUser(ctx, userID, limit)
}

// SyncNow writes the user's state to the cache and the repository and waits
func (s *StateService) SyncNow(ctx context.Context, userID string) (*domain.AppState, error) {
	state, err := s.mutate(ctx, userID, func(st *domain.AppState) error {
		now := s.now()
		st.LastSync = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, userID, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *StateService) persist(ctx context.Context, userID string, state *domain.AppState) error {
	if s.cache != nil {
		if err := s.cache.SetState(ctx, userID, state, s.cacheTTL); err != nil {
			log.Printf("Warning: failed to cache state for %s: %v", userID, err)
			s.metrics.RecordSyncFailure(ctx, "cache")
			// An older snapshot left in the cache would shadow this save on the next load
			if err := s.cache.InvalidateState(ctx, userID); err != nil {
				log.Printf("Warning: failed to drop stale cached state for %s: %v", userID, err)
			}
		}
	}
	if err := s.repo.Save(ctx, userID, state); err != nil {
		s.metrics.RecordSyncFailure(ctx, "repository")
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (s *StateService) scheduleSync(userID string) {
	s.pendingMu.Lock()
	s.pending[userID] = struct{}{}
	s.pendingMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// syncWorker saves the latest snapshot of every user with pending changes.
// Repeated changes before a flush collapse into one write.
func (s *StateService) syncWorker() {
	defer close(s.done)
	ticker := time.NewTicker(sessionEvictionPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-ticker.C:
			s.EvictIdleSessions()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

func (s *StateService) flush() {
	s.pendingMu.Lock()
	users := make([]string, 0, len(s.pending))
	for userID := range s.pending {
		users = append(users, userID)
	}
	s.pending = make(map[string]struct{})
	s.pendingMu.Unlock()

	for _, userID := range users {
		s.mu.Lock()
		sess := s.sessions[userID]
		s.mu.Unlock()
		if sess == nil {
			continue
		}

		sess.mu.Lock()
		if sess.state == nil {
			sess.mu.Unlock()
			continue
		}
		snapshot := sess.state.Clone()
		version := sess.version
		sess.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		err := s.persist(ctx, userID, snapshot)
		cancel()
		if err != nil {
			log.Printf("Warning: background sync failed for %s: %v", userID, err)
			continue
		}

		sess.mu.Lock()
		if version > sess.savedVersion {
			sess.savedVersion = version
		}
		sess.mu.Unlock()
	}
}

// EvictIdleSessions drops sessions unused for longer than the idle TTL whose
// latest change is saved. It returns the number of sessions dropped.
func (s *StateService) EvictIdleSessions() int {
	s.pendingMu.Lock()
	pending := make(map[string]bool, len(s.pending))
	for userID := range s.pending {
		pending[userID] = true
	}
	s.pendingMu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	evicted := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, sess := range s.sessions {
		if pending[userID] {
			continue
		}
		if !sess.mu.TryLock() {
			continue
		}
		if sess.version == sess.savedVersion && sess.lastUsed.Before(cutoff) {
			sess.evicted = true
			delete(s.sessions, userID)
			evicted++
		}
		sess.mu.Unlock()
	}
	if evicted > 0 {
		log.Printf("🧹 Evicted %d idle state sessions", evicted)
	}
	return evicted
}

// SessionCount returns the number of users held in memory
func (s *StateService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SetCacheTTL changes how long snapshots live in the cache
func (s *StateService) SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

// SetSessionIdleTTL changes how long an unused session stays in memory
func (s *StateService) SetSessionIdleTTL(ttl time.Duration) {
	if ttl > 0 {
		s.idleTTL = ttl
	}
}

// Close flushes pending syncs and stops the worker
func (s *StateService) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func validateCommands(cmds []domain.PlanCommand) error {
	for i, cmd := range cmds {
		if err := cmd.Validate(); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}
	return nil
}

func parseDayKey(key string) (int, error) {
	day, err := strconv.Atoi(key)
	if err != nil || domain.DayKey(day) != key || !domain.ValidDay(day) {
		return 0, domain.ErrInvalidDay
	}
	return day, nil
}
