// Package agent administers a tenant's agents and their one-off schedule blocks.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"turnero/database/repository"
	"turnero/models"

	"go.uber.org/zap"
)

// ErrInvalid wraps every input validation failure.
var ErrInvalid = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Input carries the editable attributes of an agent.
type Input struct {
	FirstName            string                      `json:"firstName"`
	LastName             string                      `json:"lastName"`
	Specialty            string                      `json:"specialty"`
	Email                string                      `json:"email"`
	Phone                string                      `json:"phone"`
	Mode                 models.AttendanceMode       `json:"mode"`
	DefaultDuration      int                         `json:"defaultDuration"`
	Buffer               int                         `json:"buffer"`
	SimultaneousCapacity int                         `json:"simultaneousCapacity"`
	MaxPerDay            int                         `json:"maxPerDay"`
	Availability         []models.AvailabilityWindow `json:"availability"`
	Active               *bool                       `json:"active,omitempty"`
}

// BlockInput requests a schedule block. Whole-day blocks only use Start's date.
type BlockInput struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	WholeDay bool      `json:"wholeDay"`
	Reason   string    `json:"reason"`
}

type Service struct {
	Agents   repository.AgentRepository
	Blocks   repository.BlockRepository
	Settings repository.SettingsRepository
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewService(repos *repository.Set, logger *zap.Logger) *Service {
	return &Service{
		Agents:   repos.Agents,
		Blocks:   repos.Blocks,
		Settings: repos.Settings,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create validates in and stores a new active agent.
func (s *Service) Create(ctx context.Context, tenantID string, in Input) (*models.Agent, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	now := s.now()
	a := &models.Agent{TenantID: tenantID, Active: true, CreatedAt: now}
	apply(a, in)
	a.UpdatedAt = now
	if err := s.Agents.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	s.Logger.Info("agent created", zap.String("tenant", tenantID), zap.String("agent", a.ID))
	return a, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Agent, error) {
	return s.Agents.GetByID(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID string, activeOnly bool) ([]models.Agent, error) {
	return s.Agents.List(ctx, tenantID, activeOnly)
}

// Update replaces the editable attributes of an agent.
func (s *Service) Update(ctx context.Context, tenantID, id string, in Input) (*models.Agent, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	a, err := s.Agents.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	apply(a, in)
	a.UpdatedAt = s.now()
	if err := s.Agents.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	return a, nil
}

// SetAvailability replaces the agent's weekly windows.
func (s *Service) SetAvailability(ctx context.Context, tenantID, id string, windows []models.AvailabilityWindow) (*models.Agent, error) {
	if err := validateWindows(windows); err != nil {
		return nil, err
	}
	if err := s.Agents.SetAvailability(ctx, tenantID, id, windows); err != nil {
		return nil, err
	}
	return s.Agents.GetByID(ctx, tenantID, id)
}

// Deactivate hides an agent from booking. Agents are never removed because
// past appointments keep referencing them.
func (s *Service) Deactivate(ctx context.Context, tenantID, id string) error {
	if err := s.Agents.SetActive(ctx, tenantID, id, false); err != nil {
		return err
	}
	s.Logger.Info("agent deactivated", zap.String("tenant", tenantID), zap.String("agent", id))
	return nil
}

// CreateBlock stores a block for an existing agent. Whole-day blocks cover
// [00:00, 24:00) of Start's date in the tenant time zone.
func (s *Service) CreateBlock(ctx context.Context, tenantID, agentID string, in BlockInput) (*models.ScheduleBlock, error) {
	if _, err := s.Agents.GetByID(ctx, tenantID, agentID); err != nil {
		return nil, err
	}
	start, end := in.Start, in.End
	if in.WholeDay {
		if start.IsZero() {
			return nil, invalid("start date is required")
		}
		settings, err := s.Settings.Get(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		start = models.StartOfDay(start, settings.Schedule.Location())
		end = start.AddDate(0, 0, 1)
	}
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return nil, invalid("block end must be after start")
	}

	b := &models.ScheduleBlock{
		TenantID:  tenantID,
		AgentID:   agentID,
		Start:     start,
		End:       end,
		WholeDay:  in.WholeDay,
		Reason:    strings.TrimSpace(in.Reason),
		CreatedAt: s.now(),
	}
	if err := s.Blocks.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create block: %w", err)
	}
	return b, nil
}

func (s *Service) ListBlocks(ctx context.Context, tenantID, agentID string) ([]models.ScheduleBlock, error) {
	return s.Blocks.ListByAgent(ctx, tenantID, agentID)
}

func (s *Service) DeleteBlock(ctx context.Context, tenantID, agentID, id string) error {
	return s.Blocks.Delete(ctx, tenantID, agentID, id)
}

func validate(in *Input) error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" {
		return invalid("firstName is required")
	}
	if in.Mode == "" {
		in.Mode = models.ModeScheduled
	}
	if !in.Mode.Valid() {
		return invalid("unknown attendance mode %q", in.Mode)
	}
	if in.DefaultDuration < 0 || in.Buffer < 0 || in.MaxPerDay < 0 || in.SimultaneousCapacity < 0 {
		return invalid("durations and limits cannot be negative")
	}
	if in.Mode == models.ModeFreeForm && in.SimultaneousCapacity == 0 {
		in.SimultaneousCapacity = 1
	}
	return validateWindows(in.Availability)
}

func validateWindows(windows []models.AvailabilityWindow) error {
	for i, w := range windows {
		if err := w.Validate(); err != nil {
			return invalid("availability[%d]: %v", i, err)
		}
	}
	return nil
}

func apply(a *models.Agent, in Input) {
	a.FirstName = in.FirstName
	a.LastName = in.LastName
	a.Specialty = in.Specialty
	a.Email = in.Email
	a.Phone = in.Phone
	a.Mode = in.Mode
	a.DefaultDuration = in.DefaultDuration
	a.Buffer = in.Buffer
	a.SimultaneousCapacity = in.SimultaneousCapacity
	a.MaxPerDay = in.MaxPerDay
	a.Availability = append([]models.AvailabilityWindow(nil), in.Availability...)
	if in.Active != nil {
		a.Active = *in.Active
	}
}
