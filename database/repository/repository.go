package repository

import (
	"context"

	agentRepo "turnero/database/repository/agent"
	appointmentRepo "turnero/database/repository/appointment"
	blockRepo "turnero/database/repository/block"
	clientRepo "turnero/database/repository/client"
	conversationRepo "turnero/database/repository/conversation"
	settingsRepo "turnero/database/repository/settings"
)

// Re-export the repository interfaces.
type (
	AgentRepository        = agentRepo.AgentRepository
	BlockRepository        = blockRepo.BlockRepository
	AppointmentRepository  = appointmentRepo.AppointmentRepository
	ClientRepository       = clientRepo.ClientRepository
	SettingsRepository     = settingsRepo.SettingsRepository
	ConversationRepository = conversationRepo.ConversationRepository
)

// Set groups every repository the services depend on.
type Set struct {
	Agents        AgentRepository
	Blocks        BlockRepository
	Appointments  AppointmentRepository
	Clients       ClientRepository
	Settings      SettingsRepository
	Conversations ConversationRepository
}

// NewMongoSet builds repositories on the global Mongo client.
func NewMongoSet() *Set {
	return &Set{
		Agents:        agentRepo.NewMongoAgentRepo(),
		Blocks:        blockRepo.NewMongoBlockRepo(),
		Appointments:  appointmentRepo.NewMongoAppointmentRepo(),
		Clients:       clientRepo.NewMongoClientRepo(),
		Settings:      settingsRepo.NewMongoSettingsRepo(),
		Conversations: conversationRepo.NewMongoConversationRepo(),
	}
}

// NewMemorySet builds process-local repositories.
func NewMemorySet() *Set {
	return &Set{
		Agents:        agentRepo.NewMemoryAgentRepo(),
		Blocks:        blockRepo.NewMemoryBlockRepo(),
		Appointments:  appointmentRepo.NewMemoryAppointmentRepo(),
		Clients:       clientRepo.NewMemoryClientRepo(),
		Settings:      settingsRepo.NewMemorySettingsRepo(),
		Conversations: conversationRepo.NewMemoryConversationRepo(),
	}
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureIndexes creates indexes on every repository that supports them.
func (s *Set) EnsureIndexes(ctx context.Context) error {
	for _, r := range []any{s.Agents, s.Blocks, s.Appointments, s.Clients, s.Settings, s.Conversations} {
		if ix, ok := r.(indexer); ok {
			if err := ix.EnsureIndexes(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
