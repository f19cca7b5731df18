package http

import (
	"context"

	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/service"
)

// --- Mocks da Camada de Serviço ---

// MockOrderApplier deixa cada teste decidir o que ApplyOrder devolve.
type MockOrderApplier struct {
	ApplyOrderFn func(ctx context.Context, order domain.OrderEvent) (*service.OrderResult, error)
}

func (m *MockOrderApplier) ApplyOrder(ctx context.Context, order domain.OrderEvent) (*service.OrderResult, error) {
	return m.ApplyOrderFn(ctx, order)
}

// MockAdminService implementa AdminService; só as funções Fn que o teste define podem ser chamadas.
type MockAdminService struct {
	ExtendFn     func(ctx context.Context, userID string, days int, actor string) (*service.AdminResult, error)
	RevokeFn     func(ctx context.Context, userID string, actor string) (*service.AdminResult, error)
	BulkExtendFn func(ctx context.Context, userIDs []string, days int, actor string) (*service.BulkResult, error)
	BulkRevokeFn func(ctx context.Context, userIDs []string, actor string) (*service.BulkResult, error)
	ListActiveFn func(ctx context.Context) (*service.ActiveList, error)
	StatsFn      func(ctx context.Context) (*service.Summary, error)
	ListAuditFn  func(ctx context.Context, limit int) ([]domain.AuditEntry, error)
	SweepFn      func(ctx context.Context, actor string) (*service.SweepResult, error)
}

func (m *MockAdminService) Extend(ctx context.Context, userID string, days int, actor string) (*service.AdminResult, error) {
	return m.ExtendFn(ctx, userID, days, actor)
}

func (m *MockAdminService) Revoke(ctx context.Context, userID string, actor string) (*service.AdminResult, error) {
	return m.RevokeFn(ctx, userID, actor)
}

func (m *MockAdminService) BulkExtend(ctx context.Context, userIDs []string, days int, actor string) (*service.BulkResult, error) {
	return m.BulkExtendFn(ctx, userIDs, days, actor)
}

func (m *MockAdminService) BulkRevoke(ctx context.Context, userIDs []string, actor string) (*service.BulkResult, error) {
	return m.BulkRevokeFn(ctx, userIDs, actor)
}

func (m *MockAdminService) ListActive(ctx context.Context) (*service.ActiveList, error) {
	return m.ListActiveFn(ctx)
}

func (m *MockAdminService) Stats(ctx context.Context) (*service.Summary, error) {
	return m.StatsFn(ctx)
}

func (m *MockAdminService) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return m.ListAuditFn(ctx, limit)
}

func (m *MockAdminService) Sweep(ctx context.Context, actor string) (*service.SweepResult, error) {
	return m.SweepFn(ctx, actor)
}
