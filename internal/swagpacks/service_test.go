package swagpacks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/products"
	"github.com/printz/fulfillment-backend/pkg/db/dbtest"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client := dbtest.OpenClient(t, "swagpacks")
	svc, err := NewService(NewRepository(client.DB()), products.NewRepository(client.DB()), client)
	require.NoError(t, err)
	return svc, client.DB()
}

func TestCreatePricesPackAndMergesDuplicates(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := dbtest.User(t, conn, enums.RoleCustomer)
	tee := dbtest.Variant(t, conn, "TEE-M", 150000, 50)
	mug := dbtest.Variant(t, conn, "MUG", 90000, 50)

	pack, err := svc.Create(ctx, owner.ID, PackInput{
		Name: "Onboarding kit",
		Items: []ItemInput{
			{SkuVariantID: tee.ID, Quantity: 1},
			{SkuVariantID: mug.ID, Quantity: 1},
			{SkuVariantID: tee.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, pack.Items, 2)
	require.Equal(t, enums.SwagPackActive, pack.Status)
	require.True(t, decimal.NewFromInt(390000).Equal(pack.PackPrice), "pack price %s", pack.PackPrice)
}

func TestCreateRejectsUnsellableAndUnknownVariants(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := dbtest.User(t, conn, enums.RoleCustomer)
	variant := dbtest.Variant(t, conn, "BAG-1", 50000, 5)
	require.NoError(t, conn.Model(&models.SkuVariant{}).Where("id = ?", variant.ID).Update("is_active", false).Error)

	_, err := svc.Create(ctx, owner.ID, PackInput{Name: "Kit", Items: []ItemInput{{SkuVariantID: variant.ID, Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.Create(ctx, owner.ID, PackInput{Name: "Kit", Items: []ItemInput{{SkuVariantID: uuid.New(), Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.Create(ctx, owner.ID, PackInput{Name: "Kit"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPacksAreOwnerScoped(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := dbtest.User(t, conn, enums.RoleCustomer)
	other := dbtest.User(t, conn, enums.RoleCustomer)
	variant := dbtest.Variant(t, conn, "PEN", 10000, 100)

	pack, err := svc.Create(ctx, owner.ID, PackInput{Name: "Pens", Items: []ItemInput{{SkuVariantID: variant.ID, Quantity: 3}}})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other.ID, pack.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	list, err := svc.List(ctx, other.ID, "")
	require.NoError(t, err)
	require.Empty(t, list)

	err = svc.Delete(ctx, other.ID, pack.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateReplacesItemsAndDeleteArchivesOrderedPacks(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := dbtest.User(t, conn, enums.RoleCustomer)
	a := dbtest.Variant(t, conn, "A-1", 10000, 10)
	b := dbtest.Variant(t, conn, "B-1", 20000, 10)

	pack, err := svc.Create(ctx, owner.ID, PackInput{Name: "Kit", Items: []ItemInput{{SkuVariantID: a.ID, Quantity: 1}}})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, owner.ID, pack.ID, PackInput{Name: "Kit v2", Items: []ItemInput{{SkuVariantID: b.ID, Quantity: 2}}})
	require.NoError(t, err)
	require.Equal(t, "Kit v2", updated.Name)
	require.Len(t, updated.Items, 1)
	require.Equal(t, b.ID, updated.Items[0].SkuVariantID)
	require.True(t, decimal.NewFromInt(40000).Equal(updated.PackPrice))

	require.NoError(t, conn.Create(&models.SwagOrder{
		OrderNumber:    "SW20260100001",
		CustomerID:     owner.ID,
		SwagPackID:     pack.ID,
		Name:           "Q1",
		Status:         enums.SwagOrderPendingInfo,
		ShippingMethod: enums.ShippingStandard,
		PaymentStatus:  enums.PaymentPending,
		Production: models.SwagOrderProduction{
			Status:        enums.ProductionPending,
			QCStatus:      enums.QCPending,
			KittingStatus: enums.KittingPending,
		},
	}).Error)

	require.NoError(t, svc.Delete(ctx, owner.ID, pack.ID))
	got, err := svc.Get(ctx, owner.ID, pack.ID)
	require.NoError(t, err)
	require.Equal(t, enums.SwagPackArchived, got.Status)
}
