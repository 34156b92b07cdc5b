package notification

import (
	"context"
	"fmt"

	userRepo "cmsledger/database/repository/user"
	"cmsledger/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Sender is the part of *messaging.Client used for delivery.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushService delivers payment confirmations as FCM pushes.
type PushService struct {
	users  userRepo.UserRepository
	fcm    Sender
	logger *zap.Logger
}

func NewPushService(users userRepo.UserRepository, fcm Sender, logger *zap.Logger) *PushService {
	return &PushService{users: users, fcm: fcm, logger: logger}
}

// ErrNoDeviceToken marks users without a registered device; retrying will not help.
var ErrNoDeviceToken = fmt.Errorf("user has no FCM token")

// DeliverPaymentConfirmation looks up the user's device token and sends the push.
func (s *PushService) DeliverPaymentConfirmation(ctx context.Context, p models.PaymentConfirmationPayload) error {
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("DeliverPaymentConfirmation: could not find user %s: %w", p.UserID, err)
	}
	if u.FCMToken == "" {
		return fmt.Errorf("DeliverPaymentConfirmation: user %s: %w", p.UserID, ErrNoDeviceToken)
	}

	msg := &messaging.Message{
		Token: u.FCMToken,
		Notification: &messaging.Notification{
			Title: "Payment received",
			Body:  fmt.Sprintf("We received %s %.2f for shipment %s. Invoice %s is ready.", p.Currency, p.Amount, p.TrackingID, p.InvoiceNumber),
		},
		Data: map[string]string{
			"type":          "payment_confirmation",
			"role":          "user",
			"paymentId":     p.PaymentID,
			"bookingId":     p.BookingID,
			"invoiceId":     p.InvoiceID,
			"invoiceNumber": p.InvoiceNumber,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "payments",
				Sound:     "default",
			},
		},
	}

	id, err := s.fcm.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("DeliverPaymentConfirmation: failed to send FCM message: %w", err)
	}
	s.logger.Info("payment confirmation sent", zap.String("paymentId", p.PaymentID), zap.String("messageId", id))
	return nil
}
