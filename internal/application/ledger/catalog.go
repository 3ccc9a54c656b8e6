package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// SaveItem alta o modificación de un artículo del catálogo.
func (s *Service) SaveItem(ctx context.Context, item *entity.Item) error {
	if item.TenantID == "" || item.ItemID == "" || item.Name == "" {
		return fmt.Errorf("%w: tenantId, itemId y nombre son obligatorios", domain.ErrInvalidInput)
	}
	if err := item.Policy.Validate(); err != nil {
		return err
	}
	now := s.deps.Clock.Now().UTC()
	existing, err := s.deps.Items.Get(ctx, item.TenantID, item.ItemID)
	if err != nil {
		return err
	}
	if existing == nil {
		item.CreatedAt = now
	} else {
		item.CreatedAt = existing.CreatedAt
	}
	item.UpdatedAt = now
	return s.deps.Items.Save(ctx, item)
}

// UpdatePolicy cambia la política de reposición y deja constancia del cambio.
func (s *Service) UpdatePolicy(ctx context.Context, tenantID, itemID string, policy entity.ReorderPolicy, actorID string) (*entity.Item, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	item, err := s.deps.Items.Get(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownItem, itemID)
	}
	now := s.deps.Clock.Now().UTC()
	change := &entity.PolicyChange{
		TenantID:  tenantID,
		ItemID:    itemID,
		Before:    item.Policy,
		After:     policy,
		ChangedBy: actorID,
		ChangedAt: now,
	}
	item.Policy = policy
	item.UpdatedAt = now
	if err := s.deps.Items.Save(ctx, item); err != nil {
		return nil, err
	}
	if err := s.deps.Policies.Record(ctx, change); err != nil {
		return nil, fmt.Errorf("registrar cambio de política: %w", err)
	}
	s.log.Info().Str("tenant_id", tenantID).Str("item_id", itemID).Str("actor", actorID).
		Str("reorder_point", policy.ReorderPoint.String()).Msg("política de reposición actualizada")
	for _, h := range s.policyHooks {
		h(ctx, item)
	}
	return item, nil
}

// PolicyAt política vigente en el instante t.
func (s *Service) PolicyAt(ctx context.Context, tenantID, itemID string, t time.Time) (entity.ReorderPolicy, error) {
	item, err := s.deps.Items.Get(ctx, tenantID, itemID)
	if err != nil {
		return entity.ReorderPolicy{}, err
	}
	if item == nil {
		return entity.ReorderPolicy{}, fmt.Errorf("%w: %s", domain.ErrUnknownItem, itemID)
	}
	last, err := s.deps.Policies.LastBefore(ctx, tenantID, itemID, t)
	if err != nil {
		return entity.ReorderPolicy{}, err
	}
	if last != nil {
		return last.After, nil
	}
	// sin cambios previos: la política original es el "antes" del primer cambio posterior
	later, err := s.deps.Policies.ListBetween(ctx, tenantID, itemID, t, s.deps.Clock.Now().UTC())
	if err != nil {
		return entity.ReorderPolicy{}, err
	}
	if len(later) > 0 {
		return later[0].Before, nil
	}
	return item.Policy, nil
}

// PolicyChangesBetween cuántos cambios de política hubo en [from, to].
func (s *Service) PolicyChangesBetween(ctx context.Context, tenantID, itemID string, from, to time.Time) (int, error) {
	changes, err := s.deps.Policies.ListBetween(ctx, tenantID, itemID, from, to)
	if err != nil {
		return 0, err
	}
	return len(changes), nil
}
