package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

// CatalogRepository はサービスカタログの読み取りを担当するインターフェースです
type CatalogRepository interface {
	GetServiceByID(ctx context.Context, serviceID string) (*model.ServiceListing, error)
}

// CatalogRepositoryImpl はCatalogRepositoryの実装です
type CatalogRepositoryImpl struct {
	db *DB
}

// NewCatalogRepository は新しいCatalogRepositoryを作成します
func NewCatalogRepository(db *DB) CatalogRepository {
	return &CatalogRepositoryImpl{
		db: db,
	}
}

// GetServiceByID は指定されたサービスIDから価格・名称・公開状態を取得します
func (r *CatalogRepositoryImpl) GetServiceByID(ctx context.Context, serviceID string) (*model.ServiceListing, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CatalogRepository.GetServiceByID")
	defer seg.Close(nil)

	query := `
		SELECT id, technician_id, title, price, is_active
		FROM services
		WHERE id = $1`

	var listing model.ServiceListing
	err := r.db.GetContext(ctx, &listing, query, serviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("service %s: %w", serviceID, model.ErrNotFound)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	return &listing, nil
}
