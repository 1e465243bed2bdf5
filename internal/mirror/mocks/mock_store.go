package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gcgdocs/internal/model"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upsert(ctx context.Context, rec model.DocumentRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) UpdateLocation(ctx context.Context, id string, year int, unit, physicalPath string) error {
	args := m.Called(ctx, id, year, unit, physicalPath)
	return args.Error(0)
}

func (m *MockStore) Rows(ctx context.Context) ([]model.DocumentRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentRecord), args.Error(1)
}

func (m *MockStore) Replace(ctx context.Context, rows []model.DocumentRecord) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}
