// File: database/repository/invoice/crud.go
package invoiceRepo

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

// MongoInvoiceRepo implements InvoiceRepository using MongoDB.
type MongoInvoiceRepo struct {
	coll *mongo.Collection
}

func NewMongoInvoiceRepo() InvoiceRepository {
	repo := &MongoInvoiceRepo{coll: database.Database().Collection("invoices")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create invoice indexes: %v\n", err)
	}
	return repo
}

func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

func (r *MongoInvoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, invoice); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("invoice %s: %w", invoice.InvoiceNumber, utils.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (r *MongoInvoiceRepo) findOne(ctx context.Context, filter bson.M, key string) (*models.Invoice, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var invoice models.Invoice
	if err := r.coll.FindOne(ctx, filter).Decode(&invoice); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewNotFoundError("invoice", key)
		}
		return nil, fmt.Errorf("failed to fetch invoice %s: %w", key, err)
	}
	return &invoice, nil
}

func (r *MongoInvoiceRepo) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	return r.findOne(ctx, bson.M{"id": id}, id)
}

func (r *MongoInvoiceRepo) GetByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error) {
	return r.findOne(ctx, bson.M{"paymentId": paymentID}, "for payment "+paymentID)
}

func (r *MongoInvoiceRepo) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus, paidDate *time.Time) (*models.Invoice, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"status": status, "updatedAt": time.Now()}
	if paidDate != nil {
		set["paidDate"] = *paidDate
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var invoice models.Invoice
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"id": id}, bson.M{"$set": set}, opts).Decode(&invoice)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewNotFoundError("invoice", id)
		}
		return nil, fmt.Errorf("failed to update invoice %s: %w", id, err)
	}
	return &invoice, nil
}

func (r *MongoInvoiceRepo) IncrementDownload(ctx context.Context, id string) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$inc": bson.M{"downloadCount": 1}})
	if err != nil {
		return fmt.Errorf("failed to bump download count for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFoundError("invoice", id)
	}
	return nil
}

func (r *MongoInvoiceRepo) SetRenderResult(ctx context.Context, id, pdfPath, renderErr string, at time.Time) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$inc": bson.M{"renderAttempts": 1}}
	if renderErr == "" {
		update["$set"] = bson.M{"renderStatus": models.RenderRendered, "pdfPath": pdfPath, "lastRenderAt": at, "updatedAt": at}
		update["$unset"] = bson.M{"renderError": ""}
	} else {
		update["$set"] = bson.M{"renderStatus": models.RenderFailed, "renderError": renderErr, "lastRenderAt": at, "updatedAt": at}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to record render result for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFoundError("invoice", id)
	}
	return nil
}
