package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by repositories that share the id-keyed helpers below.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx returns the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx returns a Base bound to tx.
func (b Base) WithTx(tx *gorm.DB) Base {
	return Base{db: tx}
}

// UpdateByID writes columns on the row of model's table with the given id.
// It returns gorm.ErrRecordNotFound when no row matched.
func (b Base) UpdateByID(ctx context.Context, model any, id uuid.UUID, columns map[string]any) error {
	res := b.DB(ctx).Model(model).Where("id = ?", id).UpdateColumns(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
