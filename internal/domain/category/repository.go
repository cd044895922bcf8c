package category

import "context"

// Repository defines data access for categories
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Category, error)
	GetByID(ctx context.Context, id int64) (*Category, error)

	// FindByName looks up a user's category by case-insensitive name.
	// Returns ErrCategoryNotFound when there is none.
	FindByName(ctx context.Context, userID int64, name string) (*Category, error)

	ListByUserID(ctx context.Context, userID int64) ([]*Category, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*Category, error)
	Delete(ctx context.Context, id int64) error
	CountTransactions(ctx context.Context, id int64) (int64, error)
}
