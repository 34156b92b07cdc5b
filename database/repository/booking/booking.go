// File: database/repository/booking/booking.go
package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cmsledger/database"
	"cmsledger/models"
	"cmsledger/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BookingRepository is the slice of booking data access the ledger needs.
type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// AttachOrder writes a freshly minted order/payment reference onto the booking.
	// It fails with utils.ErrInvalidState when the booking is already paid.
	AttachOrder(ctx context.Context, id string, details models.BookingPaymentDetails) error
	// SetPaymentOutcome sets the booking status and payment status after a payment resolves
	// and returns the updated booking. invoiceID is stored when non-empty.
	SetPaymentOutcome(ctx context.Context, id, status string, paymentStatus models.PaymentStatus, invoiceID string) (*models.Booking, error)
}

type MongoBookingRepo struct {
	coll *mongo.Collection
}

func NewMongoBookingRepo() BookingRepository {
	repo := &MongoBookingRepo{coll: database.Database().Collection("bookings")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create booking indexes: %v\n", err)
	}
	return repo
}

func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

func (r *MongoBookingRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "paymentDetails.orderId", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewNotFoundError("booking", id)
		}
		return nil, fmt.Errorf("failed to fetch booking %s: %w", id, err)
	}
	return &booking, nil
}

func (r *MongoBookingRepo) AttachOrder(ctx context.Context, id string, d models.BookingPaymentDetails) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"paymentDetails.orderId":       d.OrderID,
		"paymentDetails.paymentId":     d.PaymentID,
		"paymentDetails.amount":        d.Amount,
		"paymentDetails.paymentMethod": d.PaymentMethod,
		"paymentDetails.paymentStatus": d.PaymentStatus,
		"paymentDetails.attempt":       d.Attempt,
		"updatedAt":                    time.Now(),
	}}
	filter := bson.M{
		"id":                           id,
		"paymentDetails.paymentStatus": bson.M{"$nin": []models.PaymentStatus{models.PaymentCompleted, models.PaymentRefunded}},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to attach order to booking %s: %w", id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to fetch booking %s: %w", id, err)
	}
	if n == 0 {
		return utils.NewNotFoundError("booking", id)
	}
	return utils.NewInvalidStateError("booking %s is already paid", id)
}

func (r *MongoBookingRepo) SetPaymentOutcome(ctx context.Context, id, status string, paymentStatus models.PaymentStatus, invoiceID string) (*models.Booking, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"status":                       status,
		"paymentDetails.paymentStatus": paymentStatus,
		"updatedAt":                    time.Now(),
	}
	if invoiceID != "" {
		set["paymentDetails.invoiceId"] = invoiceID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var booking models.Booking
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"id": id}, bson.M{"$set": set}, opts).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewNotFoundError("booking", id)
		}
		return nil, fmt.Errorf("failed to update booking %s: %w", id, err)
	}
	return &booking, nil
}
