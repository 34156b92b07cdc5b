// File: database/repository/transaction/queries.go
package transactionRepo

import (
	"context"
	"fmt"
	"time"

	"cmsledger/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *MongoTransactionRepo) ListByPayment(ctx context.Context, paymentID string) ([]models.Transaction, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"paymentId": paymentID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for payment %s: %w", paymentID, err)
	}
	defer cursor.Close(ctx)

	var txns []models.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txns, nil
}

func listFilter(f models.TransactionFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if created := rangeQuery(f.Range); created != nil {
		filter["createdAt"] = created
	}
	return filter
}

func rangeQuery(r models.DateRange) bson.M {
	if r.From == nil && r.To == nil {
		return nil
	}
	q := bson.M{}
	if r.From != nil {
		q["$gte"] = *r.From
	}
	if r.To != nil {
		q["$lte"] = *r.To
	}
	return q
}

func (r *MongoTransactionRepo) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, int64, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	filter := listFilter(f)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer cursor.Close(ctx)

	txns := []models.Transaction{}
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, 0, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txns, total, nil
}

// summaryPipeline groups completed rows by type.
func summaryPipeline(userID string, dateRange models.DateRange) mongo.Pipeline {
	match := bson.M{"status": models.TransactionCompleted}
	if userID != "" {
		match["userId"] = userID
	}
	if created := rangeQuery(dateRange); created != nil {
		match["createdAt"] = created
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$type"},
			{Key: "totalAmount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "totalNetAmount", Value: bson.D{{Key: "$sum", Value: "$netAmount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func (r *MongoTransactionRepo) Summarize(ctx context.Context, userID string, dateRange models.DateRange) ([]models.TransactionSummary, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.coll.Aggregate(ctx, summaryPipeline(userID, dateRange))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions: %w", err)
	}
	defer cursor.Close(ctx)

	summary := []models.TransactionSummary{}
	if err := cursor.All(ctx, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode transaction summary: %w", err)
	}
	return summary, nil
}
