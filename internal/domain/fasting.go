package domain

import (
	"math"
	"time"
)

// DefaultFastingTargetHours is the target of a new user
const DefaultFastingTargetHours = 16

// FastingOptions are the targets offered by the timer
var FastingOptions = []float64{12, 16, 20, 24}

// FastingSession is one completed entry of the history
type FastingSession struct {
	Date      time.Time `bson:"date" json:"date" firestore:"date"`
	Duration  float64   `bson:"duration" json:"duration" firestore:"duration"` // hours, one decimal
	Completed bool      `bson:"completed" json:"completed" firestore:"completed"`
}

// FastingState is Idle (IsActive=false, StartTime=nil) or Running
type FastingState struct {
	IsActive    bool             `bson:"is_active" json:"isActive" firestore:"isActive"`
	StartTime   *time.Time       `bson:"start_time" json:"startTime" firestore:"startTime"`
	TargetHours float64          `bson:"target_hours" json:"targetHours" firestore:"targetHours"`
	History     []FastingSession `bson:"history" json:"history" firestore:"history"`
}

// Start moves Idle to Running. Restarting a running session is not allowed.
func (f *FastingState) Start(now time.Time) error {
	if f.IsActive {
		return ErrFastingActive
	}
	start := now
	f.IsActive = true
	f.StartTime = &start
	return nil
}

// Stop moves Running to Idle and appends the session to the history
func (f *FastingState) Stop(now time.Time) (FastingSession, error) {
	if !f.IsActive || f.StartTime == nil {
		return FastingSession{}, ErrFastingInactive
	}
	hours := roundTo1(now.Sub(*f.StartTime).Hours())
	session := FastingSession{
		Date:      now,
		Duration:  hours,
		Completed: hours >= f.TargetHours,
	}
	f.History = append(f.History, session)
	f.IsActive = false
	f.StartTime = nil
	return session, nil
}

// SetTarget changes the target hours
func (f *FastingState) SetTarget(hours float64) error {
	if hours <= 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return ErrInvalidTarget
	}
	f.TargetHours = hours
	return nil
}

// Elapsed is the running time of the current session, 0 when idle
func (f *FastingState) Elapsed(now time.Time) time.Duration {
	if !f.IsActive || f.StartTime == nil {
		return 0
	}
	return now.Sub(*f.StartTime)
}

// Progress is the elapsed share of the target, capped at 100
func (f *FastingState) Progress(now time.Time) float64 {
	if f.TargetHours <= 0 {
		return 0
	}
	pct := f.Elapsed(now).Hours() / f.TargetHours * 100
	return math.Min(100, pct)
}

// FastingStatus is the timer as displayed: stored state plus derived values
type FastingStatus struct {
	IsActive     bool             `json:"is_active"`
	StartTime    *time.Time       `json:"start_time,omitempty"`
	TargetHours  float64          `json:"target_hours"`
	ElapsedHours float64          `json:"elapsed_hours"`
	Progress     float64          `json:"progress"`
	History      []FastingSession `json:"history"`
}

// Status derives the display values at now
func (f *FastingState) Status(now time.Time) FastingStatus {
	history := f.History
	if history == nil {
		history = []FastingSession{}
	}
	return FastingStatus{
		IsActive:     f.IsActive,
		StartTime:    f.StartTime,
		TargetHours:  f.TargetHours,
		ElapsedHours: roundTo1(f.Elapsed(now).Hours()),
		Progress:     f.Progress(now),
		History:      history,
	}
}

func (f FastingState) clone() FastingState {
	out := f
	if f.StartTime != nil {
		st := *f.StartTime
		out.StartTime = &st
	}
	out.History = append([]FastingSession(nil), f.History...)
	return out
}
