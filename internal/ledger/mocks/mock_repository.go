package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/local/pisoprint/internal/ledger"
)

type MockRepository struct {
	mock.Mock
}

var _ ledger.Repository = (*MockRepository)(nil)

func (m *MockRepository) Create(ctx context.Context, o ledger.Order) (int64, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) FindByID(ctx context.Context, id int64) (ledger.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(ledger.Order), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, expected ledger.Status, o ledger.Order) error {
	args := m.Called(ctx, expected, o)
	return args.Error(0)
}
