package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"gcgdocs/internal/model"
	"gcgdocs/internal/repository"
	"gcgdocs/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, in service.UploadInput) (*service.UploadResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockDocumentService) Reassign(ctx context.Context, id string, newYear int, newUnit string) (*service.ReassignResult, error) {
	args := m.Called(ctx, id, newYear, newUnit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReassignResult), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*model.DocumentRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, id string) (io.ReadCloser, *model.DocumentRecord, error) {
	args := m.Called(ctx, id)
	var rc io.ReadCloser
	if args.Get(0) != nil {
		rc = args.Get(0).(io.ReadCloser)
	}
	var rec *model.DocumentRecord
	if args.Get(1) != nil {
		rec = args.Get(1).(*model.DocumentRecord)
	}
	return rc, rec, args.Error(2)
}

func (m *MockDocumentService) List(ctx context.Context, f repository.ListFilter) ([]model.DocumentRecord, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) (*service.DeleteResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DeleteResult), args.Error(1)
}

func (m *MockDocumentService) HasFiles(ctx context.Context, year int, unit string, itemID int) (bool, error) {
	args := m.Called(ctx, year, unit, itemID)
	return args.Bool(0), args.Error(1)
}
