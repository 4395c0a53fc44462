package paymentlinks

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
)

// CheckoutConfig describes the gateway hosted checkout.
type CheckoutConfig struct {
	BaseURL     string
	Handle      string
	RedirectURL string
	WebhookURL  string
}

// Service creates consolidated checkout links and serves the seller reads
// around them.
type Service interface {
	CreateLink(ctx context.Context, sellerID string, paymentIDs []string, totalAmount decimal.Decimal) (*Link, error)
	GetLink(ctx context.Context, sellerID, linkID string) (*Link, error)
	ListPendingObligations(ctx context.Context, sellerID string) ([]payments.Obligation, error)
}

// ServiceParams wires the link service.
type ServiceParams struct {
	Links       Repository
	Obligations payments.Repository
	Checkout    CheckoutConfig
	Logger      *logger.Logger
}

type service struct {
	links       Repository
	obligations payments.Repository
	checkout    CheckoutConfig
	logg        *logger.Logger
	now         func() time.Time
	newID       func() (uuid.UUID, error)
}

// NewService builds the link service.
func NewService(params ServiceParams) (Service, error) {
	if params.Links == nil {
		return nil, fmt.Errorf("payment link repository required")
	}
	if params.Obligations == nil {
		return nil, fmt.Errorf("payment obligation repository required")
	}
	if _, err := url.Parse(params.Checkout.BaseURL); err != nil || strings.TrimSpace(params.Checkout.BaseURL) == "" {
		return nil, fmt.Errorf("gateway checkout base url required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		links:       params.Links,
		obligations: params.Obligations,
		checkout:    params.Checkout,
		logg:        logg,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewV7,
	}, nil
}

// CreateLink checks every precondition before writing anything. Retrying the
// same ids for the same seller returns the link created the first time.
func (s *service) CreateLink(ctx context.Context, sellerID string, paymentIDs []string, totalAmount decimal.Decimal) (*Link, error) {
	if err := validateRequest(sellerID, paymentIDs, totalAmount); err != nil {
		return nil, err
	}
	ctx = s.logg.WithSellerID(ctx, sellerID)

	sum := decimal.Zero
	amounts := make(map[string]decimal.Decimal, len(paymentIDs))
	for _, id := range paymentIDs {
		obligation, err := s.obligations.Get(ctx, sellerID, id)
		if err != nil {
			return nil, err
		}
		if !obligation.IsPending() {
			return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment %s is %s", id, obligation.Status)
		}
		sum = sum.Add(obligation.TotalAmount)
		amounts[id] = obligation.TotalAmount
	}
	if !sum.Equal(totalAmount) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "total %s does not match payments total %s", totalAmount.StringFixed(2), sum.StringFixed(2)).
			WithDetails(map[string]string{"expected": sum.StringFixed(2), "received": totalAmount.StringFixed(2)})
	}

	token := Token(paymentIDs)
	id, err := s.newID()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate payment link id")
	}
	linkID := id.String()

	claimed, owner, err := s.links.ClaimToken(ctx, token, sellerID, linkID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		if owner.SellerID != sellerID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment link token already in use")
		}
		existing, err := s.links.Get(ctx, sellerID, owner.LinkID)
		switch {
		case pkgerrors.Is(err, pkgerrors.CodeNotFound):
			// a previous attempt indexed the token but never stored the link
			linkID = owner.LinkID
		case err != nil:
			return nil, err
		case existing.IsPending():
			s.logg.Info(s.logg.WithField(ctx, "link_id", existing.LinkID), "returning existing payment link")
			return existing, nil
		default:
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "payment link %s already completed", existing.LinkID)
		}
	}

	checkoutURL, err := s.checkoutURL(token, linkID, totalAmount)
	if err != nil {
		return nil, err
	}
	link, err := s.links.Create(ctx, &Link{
		LinkID:      linkID,
		SellerID:    sellerID,
		PaymentIDs:  append([]string(nil), paymentIDs...),
		TotalAmount: totalAmount,
		Amounts:     amounts,
		Token:       token,
		CheckoutURL: checkoutURL,
		Status:      enums.PaymentLinkStatusPending,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"link_id":  link.LinkID,
		"payments": len(paymentIDs),
		"total":    totalAmount.StringFixed(2),
	}), "payment link created")
	return link, nil
}

func (s *service) GetLink(ctx context.Context, sellerID, linkID string) (*Link, error) {
	if strings.TrimSpace(sellerID) == "" || strings.TrimSpace(linkID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id and link id are required")
	}
	return s.links.Get(ctx, sellerID, linkID)
}

func (s *service) ListPendingObligations(ctx context.Context, sellerID string) ([]payments.Obligation, error) {
	if strings.TrimSpace(sellerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	return s.obligations.ListBySeller(ctx, sellerID, enums.PaymentStatusPending)
}

func (s *service) checkoutURL(token, linkID string, total decimal.Decimal) (string, error) {
	u, err := url.Parse(s.checkout.BaseURL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse checkout base url")
	}
	if handle := strings.Trim(s.checkout.Handle, "/"); handle != "" {
		u = u.JoinPath(handle)
	}
	q := u.Query()
	q.Set("order_nsu", token)
	q.Set("link_id", linkID)
	q.Set("amount", strconv.FormatInt(AmountInCents(total), 10))
	if s.checkout.RedirectURL != "" {
		q.Set("redirect_url", s.checkout.RedirectURL)
	}
	if s.checkout.WebhookURL != "" {
		q.Set("webhook_url", s.checkout.WebhookURL)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func validateRequest(sellerID string, paymentIDs []string, total decimal.Decimal) error {
	if strings.TrimSpace(sellerID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	if len(paymentIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one payment id is required")
	}
	seen := make(map[string]struct{}, len(paymentIDs))
	for _, id := range paymentIDs {
		if strings.TrimSpace(id) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment ids must not be empty")
		}
		if _, dup := seen[id]; dup {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "payment id %s is repeated", id)
		}
		seen[id] = struct{}{}
	}
	if !total.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "total amount must be positive")
	}
	return nil
}
