// Package dbtest opens throwaway SQLite databases with the full schema and
// seeds the fixtures repository and service tests keep rebuilding.
package dbtest

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/types"
)

// Open returns an isolated in-memory database migrated with every model.
func Open(t testing.TB, name string) *gorm.DB {
	t.Helper()
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// OpenClient wraps Open in the db.Client used by transactional services.
func OpenClient(t testing.TB, name string) *db.Client {
	t.Helper()
	return db.Wrap(Open(t, name))
}

// User inserts an active, verified account with the given role.
func User(t testing.TB, conn *gorm.DB, role enums.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Email:        gofakeit.Email(),
		PasswordHash: "hash",
		Name:         gofakeit.Name(),
		Role:         role,
		IsActive:     true,
		IsVerified:   true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// Variant inserts an active product with one variant and its inventory row.
// The SKU is stored uppercased, the way the catalog normalizes it.
func Variant(t testing.TB, conn *gorm.DB, sku string, price int64, onHand int) *models.SkuVariant {
	t.Helper()
	product := &models.Product{
		Name:      gofakeit.ProductName(),
		Slug:      "p-" + uuid.NewString(),
		Category:  "apparel",
		BasePrice: decimal.NewFromInt(price),
		Status:    enums.ProductStatusActive,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	variant := &models.SkuVariant{
		ProductID: product.ID,
		SKU:       strings.ToUpper(sku),
		Name:      product.Name,
		Price:     decimal.NewFromInt(price),
		IsActive:  true,
	}
	if err := conn.Create(variant).Error; err != nil {
		t.Fatalf("create variant: %v", err)
	}
	item := &models.InventoryItem{
		SkuVariantID:      variant.ID,
		OnHand:            onHand,
		ReorderPoint:      10,
		LowStockThreshold: 5,
	}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	return variant
}

// Pack inserts an active swag pack owned by ownerID with quantity per variant.
func Pack(t testing.TB, conn *gorm.DB, ownerID uuid.UUID, items map[*models.SkuVariant]int) *models.SwagPack {
	t.Helper()
	pack := &models.SwagPack{
		OwnerID: ownerID,
		Name:    gofakeit.Company() + " welcome kit",
		Status:  enums.SwagPackActive,
	}
	for variant, qty := range items {
		pack.Items = append(pack.Items, models.SwagPackItem{
			SkuVariantID: variant.ID,
			ProductName:  variant.Name,
			Quantity:     qty,
		})
	}
	if err := conn.Create(pack).Error; err != nil {
		t.Fatalf("create pack: %v", err)
	}
	return pack
}

// Address returns a complete delivery address with fake street data.
func Address() models.Address {
	return models.Address{
		Street:   gofakeit.Street(),
		Ward:     "Ward " + gofakeit.DigitN(2),
		District: "District " + gofakeit.DigitN(1),
		City:     gofakeit.City(),
		Country:  "VN",
	}
}

// SwagOrder inserts an order for pack with n addressed recipients in the
// given status. Recipients start in processing once the order is past payment.
func SwagOrder(t testing.TB, conn *gorm.DB, pack *models.SwagPack, n int, status enums.SwagOrderStatus, production models.SwagOrderProduction) *models.SwagOrder {
	t.Helper()
	snapshot := make([]models.PackSnapshotItem, 0, len(pack.Items))
	for _, item := range pack.Items {
		var variant models.SkuVariant
		if err := conn.First(&variant, "id = ?", item.SkuVariantID).Error; err != nil {
			t.Fatalf("load variant: %v", err)
		}
		snapshot = append(snapshot, models.PackSnapshotItem{
			SkuVariantID: variant.ID,
			SKU:          variant.SKU,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			UnitPrice:    variant.Price,
		})
	}
	recipientStatus := enums.RecipientProcessing
	payment := enums.PaymentPaid
	if status.IsPrePayment() {
		recipientStatus = enums.RecipientPending
		payment = enums.PaymentPending
	}
	if production.Status == "" {
		production.Status = enums.ProductionPending
	}
	if production.QCStatus == "" {
		production.QCStatus = enums.QCPending
	}
	if production.KittingStatus == "" {
		production.KittingStatus = enums.KittingPending
	}
	code := int64(gofakeit.Number(1, 1<<30))
	order := &models.SwagOrder{
		OrderNumber:      "SW" + gofakeit.DigitN(11),
		CustomerID:       pack.OwnerID,
		SwagPackID:       pack.ID,
		Name:             gofakeit.Company() + " onboarding",
		Status:           status,
		ShippingMethod:   enums.ShippingStandard,
		PaymentStatus:    payment,
		PaymentOrderCode: &code,
		TotalRecipients:  n,
		Production:       production,
		PackSnapshot:     types.NewJSON(snapshot),
	}
	for i := 0; i < n; i++ {
		order.Recipients = append(order.Recipients, models.RecipientShipment{
			Name:    gofakeit.Name(),
			Phone:   "09" + gofakeit.DigitN(8),
			Address: Address(),
			Status:  recipientStatus,
		})
	}
	if err := conn.Omit("SwagPack").Create(order).Error; err != nil {
		t.Fatalf("create swag order: %v", err)
	}
	return order
}
