package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

// Service appends and reads stock movements.
type Service interface {
	Append(ctx context.Context, input AppendInput) (*StockMovement, error)
	ListBySKU(ctx context.Context, sku string) ([]StockMovement, error)
}

type service struct {
	repo  Repository
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewV7,
	}, nil
}

func (s *service) Append(ctx context.Context, input AppendInput) (*StockMovement, error) {
	if strings.TrimSpace(input.ProductID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if strings.TrimSpace(input.SKU) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if !input.Operation.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid stock movement operation %q", input.Operation)
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		generated, err := s.newID()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate stock movement id")
		}
		id = generated.String()
	}

	quantity := input.Quantity
	if input.Operation == enums.StockMovementOperationRemove && quantity > 0 {
		quantity = -quantity
	}

	movement := &StockMovement{
		ID:         id,
		SKU:        input.SKU,
		ProductID:  input.ProductID,
		Quantity:   quantity,
		Operation:  input.Operation,
		Timestamp:  s.now(),
		SupplierID: input.SupplierID,
		OrderID:    input.OrderID,
		ShopID:     input.ShopID,
	}
	err := s.repo.Create(ctx, movement)
	if pkgerrors.Is(err, pkgerrors.CodeConflict) && input.ID != "" {
		return s.repo.Get(ctx, input.SKU, id)
	}
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) ListBySKU(ctx context.Context, sku string) ([]StockMovement, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	return s.repo.ListBySKU(ctx, sku)
}
