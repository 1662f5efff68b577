package session

import (
	"context"

	"wsp/internal/domain"
)

// DispatchInnerForTest exposes dispatchInner to black-box tests that need
// to exercise room-scoped self-healing without a full relay round-trip.
func (s *Service) DispatchInnerForTest(ctx context.Context, from domain.PublicKey, scope domain.Scope, msg domain.InnerMessage) {
	s.dispatchInner(ctx, from, scope, msg)
}
