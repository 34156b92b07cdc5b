package transactionRepo

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

type MongoTransactionRepo struct {
	coll *mongo.Collection
}

func NewMongoTransactionRepo() TransactionRepository {
	repo := &MongoTransactionRepo{coll: database.Database().Collection("transactions")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create transaction indexes: %v\n", err)
	}
	return repo
}

func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

func (r *MongoTransactionRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "transactionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "paymentId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "status", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoTransactionRepo) Create(ctx context.Context, txn *models.Transaction) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, txn); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("transaction %s: %w", txn.TransactionID, utils.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *MongoTransactionRepo) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var txn models.Transaction
	if err := r.coll.FindOne(ctx, bson.M{"transactionId": transactionID}).Decode(&txn); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewNotFoundError("transaction", transactionID)
		}
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", transactionID, err)
	}
	return &txn, nil
}

func (r *MongoTransactionRepo) UpdateStatus(ctx context.Context, transactionID string, u StatusUpdate) (bool, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"status": u.Status, "processedAt": u.ProcessedAt, "updatedAt": u.ProcessedAt}
	if u.GatewayTransactionID != "" {
		set["gatewayTransactionId"] = u.GatewayTransactionID
	}
	if u.FailureReason != "" {
		set["failureReason"] = u.FailureReason
	}

	filter := bson.M{
		"transactionId": transactionID,
		"status": bson.M{"$nin": bson.A{
			models.TransactionCompleted, models.TransactionFailed, models.TransactionCancelled,
		}},
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to update transaction %s: %w", transactionID, err)
	}
	return res.MatchedCount == 1, nil
}
