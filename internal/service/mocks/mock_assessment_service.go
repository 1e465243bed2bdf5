package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gcgdocs/internal/model"
	"gcgdocs/internal/snapshot"
)

type MockAssessmentService struct {
	mock.Mock
}

func (m *MockAssessmentService) Save(ctx context.Context, year int, rows []model.AssessmentRow) (*snapshot.SaveResult, error) {
	args := m.Called(ctx, year, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.SaveResult), args.Error(1)
}

func (m *MockAssessmentService) Load(ctx context.Context, year int) ([]model.AssessmentRow, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AssessmentRow), args.Error(1)
}

func (m *MockAssessmentService) DeleteYear(ctx context.Context, year int) (int, error) {
	args := m.Called(ctx, year)
	return args.Int(0), args.Error(1)
}
