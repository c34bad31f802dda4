package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

// MongoRepository stores carts as documents keyed by customer id. A TTL index on
// expiresAt lets the server drop abandoned carts on its own.
type MongoRepository struct {
	Coll *mongo.Collection
}

// EnsureIndexes creates the TTL index on expiresAt.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"expiresAt": 1},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
	})
	return err
}

type toppingDocument struct {
	Name     string               `bson:"name"`
	Category string               `bson:"category"`
	Price    primitive.Decimal128 `bson:"price"`
}

type lineDocument struct {
	ID                  string               `bson:"id"`
	ProductRef          string               `bson:"productRef"`
	Name                string               `bson:"name"`
	Image               string               `bson:"image,omitempty"`
	Category            string               `bson:"category"`
	BasePrice           primitive.Decimal128 `bson:"basePrice"`
	Quantity            int                  `bson:"quantity"`
	Size                string               `bson:"size,omitempty"`
	SelectedPrice       primitive.Decimal128 `bson:"selectedPrice"`
	Toppings            []toppingDocument    `bson:"toppings"`
	SpecialInstructions string               `bson:"specialInstructions,omitempty"`
	LineSubtotal        primitive.Decimal128 `bson:"lineSubtotal"`
}

type cartDocument struct {
	CustomerID    string               `bson:"_id"`
	Items         []lineDocument       `bson:"items"`
	PromotionID   string               `bson:"promotionId,omitempty"`
	PromotionCode string               `bson:"promotionCode,omitempty"`
	TotalItems    int                  `bson:"totalItems"`
	Subtotal      primitive.Decimal128 `bson:"subtotal"`
	TaxAmount     primitive.Decimal128 `bson:"taxAmount"`
	DeliveryFee   primitive.Decimal128 `bson:"deliveryFee"`
	Discount      primitive.Decimal128 `bson:"discount"`
	GrandTotal    primitive.Decimal128 `bson:"grandTotal"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
	ExpiresAt     time.Time            `bson:"expiresAt"`
}

// Get loads the cart of customerID.
func (r *MongoRepository) Get(ctx context.Context, customerID string) (pricing.Cart, error) {
	var doc cartDocument
	if err := r.Coll.FindOne(ctx, bson.M{"_id": customerID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return pricing.Cart{}, ErrNotFound
		}
		return pricing.Cart{}, err
	}
	return doc.toCart()
}

// Save replaces the stored document, inserting it when missing.
func (r *MongoRepository) Save(ctx context.Context, c pricing.Cart) error {
	doc, err := newCartDocument(c)
	if err != nil {
		return err
	}
	_, err = r.Coll.ReplaceOne(ctx, bson.M{"_id": c.CustomerID}, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete removes the cart of customerID.
func (r *MongoRepository) Delete(ctx context.Context, customerID string) error {
	_, err := r.Coll.DeleteOne(ctx, bson.M{"_id": customerID})
	return err
}

// PurgeExpired deletes expired carts the TTL monitor has not reached yet.
func (r *MongoRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.Coll.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func newCartDocument(c pricing.Cart) (cartDocument, error) {
	doc := cartDocument{
		CustomerID: c.CustomerID,
		Items:      make([]lineDocument, 0, len(c.Items)),
		TotalItems: c.TotalItems,
		UpdatedAt:  c.UpdatedAt,
		ExpiresAt:  c.ExpiresAt,
	}
	if c.AppliedPromotion != nil {
		doc.PromotionID = c.AppliedPromotion.ID
		doc.PromotionCode = c.AppliedPromotion.Code
	}
	var err error
	for _, pair := range []struct {
		dst *primitive.Decimal128
		src decimal.Decimal
	}{
		{&doc.Subtotal, c.Subtotal},
		{&doc.TaxAmount, c.TaxAmount},
		{&doc.DeliveryFee, c.DeliveryFee},
		{&doc.Discount, c.Discount},
		{&doc.GrandTotal, c.GrandTotal},
	} {
		if *pair.dst, err = toDecimal128(pair.src); err != nil {
			return cartDocument{}, err
		}
	}
	for _, li := range c.Items {
		ld := lineDocument{
			ID:                  li.ID,
			ProductRef:          li.ProductRef,
			Name:                li.Snapshot.Name,
			Image:               li.Snapshot.Image,
			Category:            li.Snapshot.Category,
			Quantity:            li.Quantity,
			Size:                string(li.Size),
			SpecialInstructions: li.SpecialInstructions,
			Toppings:            make([]toppingDocument, 0, len(li.Toppings)),
		}
		if ld.BasePrice, err = toDecimal128(li.Snapshot.BasePrice); err != nil {
			return cartDocument{}, err
		}
		if ld.SelectedPrice, err = toDecimal128(li.SelectedPrice); err != nil {
			return cartDocument{}, err
		}
		if ld.LineSubtotal, err = toDecimal128(li.LineSubtotal); err != nil {
			return cartDocument{}, err
		}
		for _, tp := range li.Toppings {
			price, err := toDecimal128(tp.Price)
			if err != nil {
				return cartDocument{}, err
			}
			ld.Toppings = append(ld.Toppings, toppingDocument{Name: tp.Name, Category: string(tp.Category), Price: price})
		}
		doc.Items = append(doc.Items, ld)
	}
	return doc, nil
}

func (doc cartDocument) toCart() (pricing.Cart, error) {
	c := pricing.Cart{
		CustomerID: doc.CustomerID,
		Items:      make([]pricing.LineItem, 0, len(doc.Items)),
		UpdatedAt:  doc.UpdatedAt,
		ExpiresAt:  doc.ExpiresAt,
	}
	c.TotalItems = doc.TotalItems
	if doc.PromotionID != "" {
		c.AppliedPromotion = &pricing.AppliedPromotion{ID: doc.PromotionID, Code: doc.PromotionCode}
	}
	var err error
	for _, pair := range []struct {
		dst *decimal.Decimal
		src primitive.Decimal128
	}{
		{&c.Subtotal, doc.Subtotal},
		{&c.TaxAmount, doc.TaxAmount},
		{&c.DeliveryFee, doc.DeliveryFee},
		{&c.Discount, doc.Discount},
		{&c.GrandTotal, doc.GrandTotal},
	} {
		if *pair.dst, err = fromDecimal128(pair.src); err != nil {
			return pricing.Cart{}, err
		}
	}
	for _, ld := range doc.Items {
		li := pricing.LineItem{
			ID:         ld.ID,
			ProductRef: ld.ProductRef,
			Snapshot: pricing.Snapshot{
				Name:     ld.Name,
				Image:    ld.Image,
				Category: ld.Category,
			},
			Quantity:            ld.Quantity,
			Size:                pricing.Size(ld.Size),
			SpecialInstructions: ld.SpecialInstructions,
		}
		if li.Snapshot.BasePrice, err = fromDecimal128(ld.BasePrice); err != nil {
			return pricing.Cart{}, err
		}
		if li.SelectedPrice, err = fromDecimal128(ld.SelectedPrice); err != nil {
			return pricing.Cart{}, err
		}
		if li.LineSubtotal, err = fromDecimal128(ld.LineSubtotal); err != nil {
			return pricing.Cart{}, err
		}
		for _, td := range ld.Toppings {
			price, err := fromDecimal128(td.Price)
			if err != nil {
				return pricing.Cart{}, err
			}
			li.Toppings = append(li.Toppings, pricing.Topping{Name: td.Name, Category: pricing.ToppingCategory(td.Category), Price: price})
		}
		c.Items = append(c.Items, li)
	}
	return c, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount %s: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode amount %s: %w", v.String(), err)
	}
	return d, nil
}
