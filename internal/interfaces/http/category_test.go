package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chreosis/internal/domain/category"
)

// MockCategoryRepo implements category.Repository for testing
type MockCategoryRepo struct {
	CreateFunc            func(ctx context.Context, params category.CreateParams) (*category.Category, error)
	GetByIDFunc           func(ctx context.Context, id int64) (*category.Category, error)
	FindByNameFunc        func(ctx context.Context, userID int64, name string) (*category.Category, error)
	ListByUserIDFunc      func(ctx context.Context, userID int64) ([]*category.Category, error)
	UpdateFunc            func(ctx context.Context, id int64, params category.UpdateParams) (*category.Category, error)
	DeleteFunc            func(ctx context.Context, id int64) error
	CountTransactionsFunc func(ctx context.Context, id int64) (int64, error)
}

func (m *MockCategoryRepo) Create(ctx context.Context, params category.CreateParams) (*category.Category, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockCategoryRepo) GetByID(ctx context.Context, id int64) (*category.Category, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, category.ErrCategoryNotFound
}

func (m *MockCategoryRepo) FindByName(ctx context.Context, userID int64, name string) (*category.Category, error) {
	if m.FindByNameFunc != nil {
		return m.FindByNameFunc(ctx, userID, name)
	}
	return nil, category.ErrCategoryNotFound
}

func (m *MockCategoryRepo) ListByUserID(ctx context.Context, userID int64) ([]*category.Category, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockCategoryRepo) Update(ctx context.Context, id int64, params category.UpdateParams) (*category.Category, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, params)
	}
	return nil, nil
}

func (m *MockCategoryRepo) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockCategoryRepo) CountTransactions(ctx context.Context, id int64) (int64, error) {
	if m.CountTransactionsFunc != nil {
		return m.CountTransactionsFunc(ctx, id)
	}
	return 0, nil
}

func TestHandleCategories(t *testing.T) {
	repo := &MockCategoryRepo{
		ListByUserIDFunc: func(ctx context.Context, userID int64) ([]*category.Category, error) {
			return []*category.Category{{ID: 1, UserID: userID, Name: "Food", Type: "gasto"}}, nil
		},
		CreateFunc: func(ctx context.Context, params category.CreateParams) (*category.Category, error) {
			return &category.Category{ID: 2, UserID: params.UserID, Name: params.Name, Type: params.Type}, nil
		},
	}
	handler := NewCategoryHandler(category.NewService(repo))

	tests := []struct {
		name           string
		method         string
		body           string
		expectedStatus int
	}{
		{"List", http.MethodGet, "", http.StatusOK},
		{"Create", http.MethodPost, `{"name":"Rent","type":"gasto"}`, http.StatusCreated},
		{"Create Without Name", http.MethodPost, `{"type":"gasto"}`, http.StatusBadRequest},
		{"Method Not Allowed", http.MethodPut, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withUser(httptest.NewRequest(tt.method, "/api/categories/", strings.NewReader(tt.body)), 1)
			rr := httptest.NewRecorder()
			handler.HandleCategories(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v (%s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
		})
	}
}

func TestHandleCategoryByID(t *testing.T) {
	owned := func(ctx context.Context, id int64) (*category.Category, error) {
		if id != 4 {
			return nil, category.ErrCategoryNotFound
		}
		return &category.Category{ID: 4, UserID: 1, Name: "Food"}, nil
	}

	tests := []struct {
		name           string
		method         string
		userID         int64
		body           string
		inUse          int64
		expectedStatus int
	}{
		{"Get", http.MethodGet, 1, "", 0, http.StatusOK},
		{"Get Other User", http.MethodGet, 2, "", 0, http.StatusNotFound},
		{"Rename", http.MethodPatch, 1, `{"name":"Groceries"}`, 0, http.StatusOK},
		{"Delete", http.MethodDelete, 1, "", 0, http.StatusNoContent},
		{"Delete In Use", http.MethodDelete, 1, "", 2, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockCategoryRepo{
				GetByIDFunc: owned,
				UpdateFunc: func(ctx context.Context, id int64, params category.UpdateParams) (*category.Category, error) {
					return &category.Category{ID: id, UserID: 1, Name: *params.Name}, nil
				},
				CountTransactionsFunc: func(ctx context.Context, id int64) (int64, error) {
					return tt.inUse, nil
				},
			}
			handler := NewCategoryHandler(category.NewService(repo))

			req := withUser(httptest.NewRequest(tt.method, "/api/categories/4", strings.NewReader(tt.body)), tt.userID)
			req.SetPathValue("id", "4")
			rr := httptest.NewRecorder()
			handler.HandleCategoryByID(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v (%s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.method == http.MethodPatch {
				var c category.Category
				json.NewDecoder(rr.Body).Decode(&c)
				if c.Name != "Groceries" {
					t.Errorf("name = %q, want Groceries", c.Name)
				}
			}
		})
	}
}
