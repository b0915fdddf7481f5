package giftcard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/giftcard/qr"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

var ErrInvalidFaceValue = errors.New("gift card face value must be positive")

type Store interface {
	InsertIfAbsent(ctx context.Context, card models.GiftCard) (*models.GiftCard, bool, error)
	GetByCode(ctx context.Context, code string) (*models.GiftCard, error)
	List(ctx context.Context) ([]models.GiftCard, error)
	Redeem(ctx context.Context, code string) (*models.GiftCard, error)
}

type Service struct {
	DB     Store
	QR     *qr.Generator
	logger *logger.Logger
}

func NewService(db Store, generator *qr.Generator, log *logger.Logger) *Service {
	return &Service{DB: db, QR: generator, logger: log}
}

// Issue mints a card for a settled payment. When the same payment is seen
// again the card already on record is handed back unchanged, so retried
// notifications never create a second code.
func (s *Service) Issue(ctx context.Context, paymentRef string, faceValueCents int64, buyer models.CustomerDetails, recipientName, recipientEmail string) (*models.GiftCard, bool, error) {
	if faceValueCents < 1 {
		return nil, false, ErrInvalidFaceValue
	}

	card := models.GiftCard{
		Code:           utils.GenerateGiftCardCode(),
		PaymentRef:     paymentRef,
		FaceValueCents: faceValueCents,
		RemainingCents: faceValueCents,
		BuyerName:      buyer.Name,
		BuyerEmail:     buyer.Email,
		RecipientName:  recipientName,
		RecipientEmail: recipientEmail,
		Status:         models.GiftCardActive,
		IssuedAt:       time.Now().UTC(),
	}

	stored, duplicate, err := s.DB.InsertIfAbsent(ctx, card)
	if err != nil {
		return nil, false, fmt.Errorf("failed to issue gift card: %w", err)
	}

	if duplicate {
		s.logger.Info("GIFTCARD", fmt.Sprintf("Replayed payment %s, returning existing card %s", paymentRef, stored.Code))
	} else {
		s.logger.Info("GIFTCARD", fmt.Sprintf("Issued card %s worth %d cents for payment %s", stored.Code, faceValueCents, paymentRef))
	}
	return stored, duplicate, nil
}

func (s *Service) Get(ctx context.Context, code string) (*models.GiftCard, error) {
	return s.DB.GetByCode(ctx, code)
}

func (s *Service) List(ctx context.Context) ([]models.GiftCard, error) {
	return s.DB.List(ctx)
}

func (s *Service) Redeem(ctx context.Context, code string) (*models.GiftCard, error) {
	card, err := s.DB.Redeem(ctx, code)
	if err != nil {
		return nil, err
	}
	s.logger.Info("GIFTCARD", fmt.Sprintf("Card %s redeemed", code))
	return card, nil
}

// QRCode renders the card's redemption QR as a PNG.
func (s *Service) QRCode(ctx context.Context, code string) ([]byte, error) {
	card, err := s.DB.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.QR.GenerateEncryptedQR(*card)
}
