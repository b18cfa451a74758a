package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/repo"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Repository reads and mutates orders and their return requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	TouchOrder(ctx context.Context, orderID uuid.UUID, at time.Time) error
	TransitionOrder(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	ListReturns(ctx context.Context, orderID uuid.UUID) ([]models.ReturnRequest, error)
	FindReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error)
	CreateReturn(ctx context.Context, rr *models.ReturnRequest) error
	TransitionReturn(ctx context.Context, returnID uuid.UUID, from enums.ReturnStatus, updates map[string]any) (bool, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, repo.NotFound(err)
	}
	return &order, nil
}

// TouchOrder bumps updated_at so the row lock is held for the rest of the transaction.
func (r *repository) TouchOrder(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	res := r.DB(ctx).Exec(`UPDATE orders SET updated_at = ? WHERE id = ?`, at, orderID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// TransitionOrder applies updates only while the order is still in from.
// It reports false when another writer moved the order first.
func (r *repository) TransitionOrder(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.DB(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ListReturns(ctx context.Context, orderID uuid.UUID) ([]models.ReturnRequest, error) {
	var out []models.ReturnRequest
	err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *repository) FindReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	var rr models.ReturnRequest
	if err := r.DB(ctx).Where("id = ?", returnID).First(&rr).Error; err != nil {
		return nil, repo.NotFound(err)
	}
	return &rr, nil
}

func (r *repository) CreateReturn(ctx context.Context, rr *models.ReturnRequest) error {
	return r.DB(ctx).Create(rr).Error
}

// TransitionReturn is the return-request counterpart of TransitionOrder.
func (r *repository) TransitionReturn(ctx context.Context, returnID uuid.UUID, from enums.ReturnStatus, updates map[string]any) (bool, error) {
	res := r.DB(ctx).Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", returnID, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}
