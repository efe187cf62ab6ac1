// Package availability computes free slots and answers availability checks.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"turnero/database"
	"turnero/database/repository"
	"turnero/models"
)

const (
	ReasonAgentUnavailable = "agent not found/inactive"
	ReasonSlotTaken        = "slot already taken"
	ReasonNoCapacity       = "no capacity"
	ReasonDailyLimit       = "daily limit reached"
	reasonBlockedPrefix    = "blocked: "

	fallbackDuration = 30
)

// ErrAgentUnavailable is returned when the agent is missing or inactive.
var ErrAgentUnavailable = errors.New(ReasonAgentUnavailable)

// Engine reads agents, blocks and appointments; it keeps no state of its own.
type Engine struct {
	Agents       repository.AgentRepository
	Blocks       repository.BlockRepository
	Appointments repository.AppointmentRepository
	Settings     repository.SettingsRepository
}

// NewEngine wires an Engine on a repository set.
func NewEngine(repos *repository.Set) *Engine {
	return &Engine{
		Agents:       repos.Agents,
		Blocks:       repos.Blocks,
		Appointments: repos.Appointments,
		Settings:     repos.Settings,
	}
}

// ResolveDuration picks the requested duration, then the agent's, then the tenant's.
func ResolveDuration(requested int, agent *models.Agent, schedule models.ScheduleConfiguration) int {
	switch {
	case requested > 0:
		return requested
	case agent != nil && agent.DefaultDuration > 0:
		return agent.DefaultDuration
	case schedule.DefaultDuration > 0:
		return schedule.DefaultDuration
	}
	return fallbackDuration
}

// ActiveAgent loads an agent, mapping missing or inactive agents to ErrAgentUnavailable.
func (e *Engine) ActiveAgent(ctx context.Context, tenantID, agentID string) (*models.Agent, error) {
	agent, err := e.Agents.GetByID(ctx, tenantID, agentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrAgentUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("load agent %s: %w", agentID, err)
	}
	if !agent.Active {
		return nil, ErrAgentUnavailable
	}
	return agent, nil
}

// Slots returns every candidate of the agent on date, tagged available or not.
func (e *Engine) Slots(ctx context.Context, tenantID, agentID string, date time.Time, duration int) ([]models.Slot, error) {
	settings, err := e.Settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	agent, err := e.ActiveAgent(ctx, tenantID, agentID)
	if err != nil {
		return nil, err
	}

	loc := settings.Schedule.Location()
	day := models.StartOfDay(date, loc)
	if len(agent.WindowsFor(day.Weekday())) == 0 {
		return []models.Slot{}, nil
	}
	next := day.AddDate(0, 0, 1)

	appts, err := e.Appointments.ListOverlapping(ctx, tenantID, agentID, day, next, models.ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	blocks, err := e.Blocks.ListInRange(ctx, tenantID, agentID, day, next)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}

	duration = ResolveDuration(duration, agent, settings.Schedule)
	return BuildSlots(*agent, day, duration, appts, blocks, loc), nil
}

// ComputeSlots returns only the free candidates, in chronological order.
func (e *Engine) ComputeSlots(ctx context.Context, tenantID, agentID string, date time.Time, duration int) ([]models.Slot, error) {
	slots, err := e.Slots(ctx, tenantID, agentID, date, duration)
	if err != nil {
		return nil, err
	}
	return AvailableOnly(slots), nil
}

// CheckAvailability answers whether the agent can take [start, start+duration).
// excludeID skips one appointment, used when rescheduling it.
func (e *Engine) CheckAvailability(ctx context.Context, tenantID, agentID string, start time.Time, duration int, excludeID string) (models.AvailabilityResult, error) {
	agent, err := e.ActiveAgent(ctx, tenantID, agentID)
	if errors.Is(err, ErrAgentUnavailable) {
		return models.AvailabilityResult{Reason: ReasonAgentUnavailable}, nil
	}
	if err != nil {
		return models.AvailabilityResult{}, err
	}
	settings, err := e.Settings.Get(ctx, tenantID)
	if err != nil {
		return models.AvailabilityResult{}, err
	}
	duration = ResolveDuration(duration, agent, settings.Schedule)

	if agent.Mode == models.ModeFreeForm {
		return e.CheckCapacity(ctx, agent, start, settings.Schedule.Location(), excludeID)
	}
	return e.CheckSlot(ctx, agent, start, duration, excludeID)
}

// CheckSlot runs the scheduled-mode overlap test against appointments and blocks.
func (e *Engine) CheckSlot(ctx context.Context, agent *models.Agent, start time.Time, duration int, excludeID string) (models.AvailabilityResult, error) {
	end := start.Add(time.Duration(duration) * time.Minute)

	appts, err := e.Appointments.ListOverlapping(ctx, agent.TenantID, agent.ID, start, end, models.ActiveStatuses)
	if err != nil {
		return models.AvailabilityResult{}, fmt.Errorf("load appointments: %w", err)
	}
	for _, a := range appts {
		if a.ID != excludeID {
			return models.AvailabilityResult{Reason: ReasonSlotTaken}, nil
		}
	}

	blocks, err := e.Blocks.ListInRange(ctx, agent.TenantID, agent.ID, start, end)
	if err != nil {
		return models.AvailabilityResult{}, fmt.Errorf("load blocks: %w", err)
	}
	if len(blocks) > 0 {
		return models.AvailabilityResult{Reason: reasonBlockedPrefix + blocks[0].Reason}, nil
	}
	return models.AvailabilityResult{Available: true}, nil
}

// CheckCapacity enforces the free-form daily cap and same-instant capacity.
func (e *Engine) CheckCapacity(ctx context.Context, agent *models.Agent, start time.Time, loc *time.Location, excludeID string) (models.AvailabilityResult, error) {
	day := models.StartOfDay(start, loc)
	appts, err := e.Appointments.List(ctx, models.AppointmentFilter{
		TenantID: agent.TenantID,
		AgentID:  agent.ID,
		Statuses: models.ActiveStatuses,
		From:     day,
		To:       day.AddDate(0, 0, 1),
	})
	if err != nil {
		return models.AvailabilityResult{}, fmt.Errorf("load appointments: %w", err)
	}

	var daily, sameInstant int
	for _, a := range appts {
		if a.ID == excludeID {
			continue
		}
		daily++
		if a.Start.Equal(start) {
			sameInstant++
		}
	}

	if agent.MaxPerDay > 0 && daily >= agent.MaxPerDay {
		return models.AvailabilityResult{Reason: ReasonDailyLimit}, nil
	}
	capacity := agent.SimultaneousCapacity
	if capacity <= 0 {
		capacity = 1
	}
	if sameInstant >= capacity {
		return models.AvailabilityResult{Reason: ReasonNoCapacity}, nil
	}
	return models.AvailabilityResult{Available: true}, nil
}

// AgentsWorkingOn lists active agents with an active window on date's weekday.
func (e *Engine) AgentsWorkingOn(ctx context.Context, tenantID string, date time.Time) ([]models.Agent, error) {
	settings, err := e.Settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	agents, err := e.Agents.List(ctx, tenantID, true)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	day := models.StartOfDay(date, settings.Schedule.Location())

	out := make([]models.Agent, 0, len(agents))
	for _, a := range agents {
		if len(a.WindowsFor(day.Weekday())) > 0 {
			out = append(out, a)
		}
	}
	return out, nil
}
