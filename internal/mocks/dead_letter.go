package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
)

// MockDeadLetterRepository simula el repositorio de dead letters
type MockDeadLetterRepository struct {
	mock.Mock
}

var _ sharedDomain.DeadLetterRepository = (*MockDeadLetterRepository)(nil)

func (m *MockDeadLetterRepository) Save(ctx context.Context, dl sharedDomain.DeadLetter) error {
	args := m.Called(ctx, dl)
	return args.Error(0)
}

func (m *MockDeadLetterRepository) FetchPending(ctx context.Context, limit int) ([]sharedDomain.DeadLetter, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.DeadLetter), args.Error(1)
}

func (m *MockDeadLetterRepository) MarkReplayed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
