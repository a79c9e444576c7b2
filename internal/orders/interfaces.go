package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	"github.com/unicampus/campus-backend/pkg/pagination"
)

// Repository defines persistence operations for campus_orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.CampusOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CampusOrder, error)
	ListOrders(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.CampusOrder, string, error)
	// Transition moves the order only if it is still in from; false means another writer got there first.
	Transition(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.CampusOrder, error)
}
