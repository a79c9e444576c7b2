package checkout

import (
	"github.com/google/uuid"

	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
)

const (
	detailFailedVendor    = "failed_vendor_id"
	detailPersistedOrders = "persisted_order_ids"
)

// PartiallyPersisted reports whether err came from a checkout that had already
// committed orders for earlier vendors before failing.
func PartiallyPersisted(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return false
	}
	switch ids := details[detailPersistedOrders].(type) {
	case []uuid.UUID:
		return len(ids) > 0
	case []string:
		return len(ids) > 0
	}
	return false
}
