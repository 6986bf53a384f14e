package suppliers

import (
	"context"
	"testing"

	"github.com/printz/fulfillment-backend/pkg/db/dbtest"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t, "suppliers")))
	if err != nil {
		t.Fatalf("supplier service: %v", err)
	}
	return svc
}

func TestCreateNormalizesCodeAndRejectsDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, SupplierInput{Name: "In An Nhanh", Code: " inan01 ", Type: "printer", Rating: 4.5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Code != "INAN01" || !created.IsActive {
		t.Fatalf("unexpected supplier %+v", created)
	}

	if _, err := svc.Create(ctx, SupplierInput{Name: "Other", Code: "InAn01", Type: "distributor"}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateValidatesTypeAndRating(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, SupplierInput{Name: "X", Code: "X1", Type: "wholesaler"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for type, got %v", err)
	}
	if _, err := svc.Create(ctx, SupplierInput{Name: "X", Code: "X2", Type: "printer", Rating: 5.5}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for rating, got %v", err)
	}
}

func TestDeleteIsSoftAndKeepsCodeReserved(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, SupplierInput{Name: "Gone", Code: "GONE", Type: "dropshipper"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected deleted supplier hidden, got %v", err)
	}
	if _, err := svc.Create(ctx, SupplierInput{Name: "Again", Code: "gone", Type: "printer"}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected code to stay reserved, got %v", err)
	}
}
