package invoiceRepo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"cmsledger/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var sortableFields = map[string]string{
	"createdAt":     "createdAt",
	"invoiceNumber": "invoiceNumber",
	"total":         "amounts.total",
	"status":        "status",
	"dueDate":       "dueDate",
}

// buildFilter translates an InvoiceFilter into a Mongo query.
func buildFilter(f models.InvoiceFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if created := rangeQuery(f.Range); created != nil {
		filter["createdAt"] = created
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"invoiceNumber": re},
			bson.M{"customerDetails.name": re},
			bson.M{"customerDetails.email": re},
		}
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

func sortSpec(f models.InvoiceFilter) bson.D {
	field, ok := sortableFields[f.SortBy]
	if !ok {
		field = "createdAt"
	}
	order := -1
	if f.SortOrder == "asc" {
		order = 1
	}
	return bson.D{{Key: field, Value: order}}
}

func (r *MongoInvoiceRepo) List(ctx context.Context, f models.InvoiceFilter) ([]models.Invoice, int64, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	filter := buildFilter(f)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	opts := options.Find().
		SetSort(sortSpec(f)).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer cursor.Close(ctx)

	invoices := []models.Invoice{}
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, 0, fmt.Errorf("failed to decode invoices: %w", err)
	}
	return invoices, total, nil
}

func (r *MongoInvoiceRepo) ListUnrendered(ctx context.Context, cutoff time.Time, limit int) ([]models.Invoice, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"renderStatus": bson.M{"$ne": models.RenderRendered},
		"createdAt":    bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list unrendered invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("failed to decode unrendered invoices: %w", err)
	}
	return invoices, nil
}
