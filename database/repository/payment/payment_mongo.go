package paymentRepo

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

// MongoPaymentRepo implements PaymentRepository using MongoDB.
type MongoPaymentRepo struct {
	coll *mongo.Collection
}

// NewMongoPaymentRepo creates a new instance of PaymentRepository using MongoDB.
func NewMongoPaymentRepo() PaymentRepository {
	coll := database.Database().Collection("payments")
	repo := &MongoPaymentRepo{coll: coll}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create payment indexes: %v\n", err)
	}
	return repo
}

// newContext derives a bounded context from parent so session contexts keep their transaction.
func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

func (r *MongoPaymentRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "gatewayPaymentId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, payment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("payment for order %s: %w", payment.OrderID, utils.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepo) findOne(ctx context.Context, filter bson.M, key string) (*models.Payment, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var payment models.Payment
	if err := r.coll.FindOne(ctx, filter).Decode(&payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewNotFoundError("payment", key)
		}
		return nil, fmt.Errorf("failed to fetch payment %s: %w", key, err)
	}
	return &payment, nil
}

func (r *MongoPaymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.findOne(ctx, bson.M{"id": id}, id)
}

func (r *MongoPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return r.findOne(ctx, bson.M{"orderId": orderID}, orderID)
}

// transition applies update only while the payment is still in status from.
func (r *MongoPaymentRepo) transition(ctx context.Context, id string, from models.PaymentStatus, update bson.M) (bool, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id, "status": from}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, fmt.Errorf("payment %s: %w", id, utils.ErrDuplicate)
		}
		return false, fmt.Errorf("failed to update payment %s: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoPaymentRepo) MarkCompleted(ctx context.Context, id string, u CompletionUpdate) (bool, error) {
	return r.transition(ctx, id, models.PaymentPending, bson.M{"$set": bson.M{
		"status":           models.PaymentCompleted,
		"gatewayPaymentId": u.GatewayPaymentID,
		"gatewaySignature": u.Signature,
		"transactionFee":   u.TransactionFee,
		"completedAt":      u.CompletedAt,
		"updatedAt":        u.CompletedAt,
	}})
}

func (r *MongoPaymentRepo) MarkFailed(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	return r.transition(ctx, id, models.PaymentPending, bson.M{
		"$set": bson.M{
			"status":          models.PaymentFailed,
			"failureReason":   reason,
			"lastAttemptDate": at,
			"updatedAt":       at,
		},
		"$inc": bson.M{"paymentAttempts": 1},
	})
}

func (r *MongoPaymentRepo) MarkRefunded(ctx context.Context, id string, amount float64, reason string, at time.Time) (bool, error) {
	return r.transition(ctx, id, models.PaymentCompleted, bson.M{"$set": bson.M{
		"status":       models.PaymentRefunded,
		"refundAmount": amount,
		"refundReason": reason,
		"updatedAt":    at,
	}})
}
