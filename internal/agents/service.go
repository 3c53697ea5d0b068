package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
)

// Service exposes the agent-facing availability toggle.
type Service interface {
	SetAvailability(ctx context.Context, agentID uuid.UUID, online, available bool) (*models.AgentProfile, error)
	GetProfile(ctx context.Context, agentID uuid.UUID) (*models.AgentProfile, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the agents service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("agents repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) SetAvailability(ctx context.Context, agentID uuid.UUID, online, available bool) (*models.AgentProfile, error) {
	profile, err := s.repo.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent profile not found")
		}
		return nil, err
	}
	if online && profile.Status != enums.AgentStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "agent is not active")
	}

	if err := s.repo.SetAvailability(ctx, agentID, online, available); err != nil {
		return nil, err
	}

	lctx := s.logg.WithFields(ctx, map[string]any{
		"agent_id":     agentID.String(),
		"is_online":    online,
		"is_available": available,
	})
	s.logg.Info(lctx, "agent availability updated")

	profile.IsOnline = online
	profile.IsAvailable = available
	return profile, nil
}

func (s *service) GetProfile(ctx context.Context, agentID uuid.UUID) (*models.AgentProfile, error) {
	profile, err := s.repo.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent profile not found")
		}
		return nil, err
	}
	return profile, nil
}
