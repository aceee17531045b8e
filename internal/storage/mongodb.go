// mongodb.go - MongoDB-backed Store, one collection per entity

package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/bosocmputer/voicebill/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	productsCollection = "products"
	customersColl      = "customers"
	invoicesCollection = "invoices"
	draftsCollection   = "pending_invoices"

	catalogLimit = 1000
	searchLimit  = 100
)

// MongoStore implements Store on MongoDB
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	log     *logger.Logger
}

// InitMongoDB initializes MongoDB connection
func InitMongoDB(ctx context.Context, log *logger.Logger, uri, dbName string, timeout time.Duration) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &MongoStore{
		client:  client,
		db:      client.Database(dbName),
		timeout: timeout,
		log:     log.With("service", "MongoStore"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		s.log.Warn("index creation failed", "error", err)
	}

	s.log.Info("connected to MongoDB", "database", dbName)
	return s, nil
}

// Close closes MongoDB connection
func (s *MongoStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := s.client.Disconnect(ctx)
	s.log.Info("MongoDB connection closed")
	return err
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	byUser := mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}}
	byID := mongo.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}

	indexes := map[string][]mongo.IndexModel{
		usersCollection:    {byID, {Keys: bson.D{{Key: "phone", Value: 1}}}},
		productsCollection: {byID, byUser},
		customersColl:      {byID, byUser},
		invoicesCollection: {byID, {Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}}}},
		draftsCollection:   {byID, {Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}}},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *MongoStore) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}

func (s *MongoStore) findOne(parent context.Context, coll string, filter bson.M, out interface{}, opts ...*options.FindOneOptions) error {
	ctx, cancel := s.ctx(parent)
	defer cancel()

	err := s.db.Collection(coll).FindOne(ctx, filter, opts...).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to query %s: %w", coll, err)
	}
	return nil
}

func (s *MongoStore) findMany(parent context.Context, coll string, filter bson.M, out interface{}, opts ...*options.FindOptions) error {
	ctx, cancel := s.ctx(parent)
	defer cancel()

	cursor, err := s.db.Collection(coll).Find(ctx, filter, opts...)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", coll, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", coll, err)
	}
	return nil
}

func (s *MongoStore) insert(parent context.Context, coll string, doc interface{}) error {
	ctx, cancel := s.ctx(parent)
	defer cancel()

	if _, err := s.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", coll, err)
	}
	return nil
}

func (s *MongoStore) updateByID(parent context.Context, coll string, id string, update bson.M) error {
	ctx, cancel := s.ctx(parent)
	defer cancel()

	res, err := s.db.Collection(coll).UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", coll, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) deleteByID(parent context.Context, coll string, id string) error {
	ctx, cancel := s.ctx(parent)
	defer cancel()

	res, err := s.db.Collection(coll).DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", coll, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// exactName builds a case-insensitive whole-string regex; user text is quoted
func exactName(name string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(name) + "$", Options: "i"}
}

func containsName(fragment string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(fragment), Options: "i"}
}

// --- Users ---

func (s *MongoStore) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	var u User
	if err := s.findOne(ctx, usersCollection, bson.M{"phone": phone}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.findOne(ctx, usersCollection, bson.M{"id": id}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *User) error {
	return s.insert(ctx, usersCollection, user)
}

func (s *MongoStore) ListUsers(ctx context.Context, limit int) ([]User, error) {
	users := []User{}
	err := s.findMany(ctx, usersCollection, bson.M{}, &users, options.Find().SetLimit(int64(limit)))
	return users, err
}

func (s *MongoStore) SetUserLanguage(ctx context.Context, id string, language string) error {
	return s.updateByID(ctx, usersCollection, id, bson.M{"$set": bson.M{"language": language}})
}

// --- Products ---

func (s *MongoStore) ListProducts(ctx context.Context, userID string) ([]Product, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	products := []Product{}
	err := s.findMany(ctx, productsCollection, filter, &products, options.Find().SetLimit(catalogLimit))
	return products, err
}

func (s *MongoStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := s.findOne(ctx, productsCollection, bson.M{"id": id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) CreateProduct(ctx context.Context, product *Product) error {
	return s.insert(ctx, productsCollection, product)
}

func (s *MongoStore) UpdateProduct(ctx context.Context, product *Product) error {
	return s.updateByID(ctx, productsCollection, product.ID, bson.M{"$set": bson.M{
		"user_id":     product.UserID,
		"name":        product.Name,
		"price":       product.Price,
		"description": product.Description,
	}})
}

func (s *MongoStore) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteByID(ctx, productsCollection, id)
}

func (s *MongoStore) SearchProducts(ctx context.Context, userID string, query string) ([]Product, error) {
	filter := bson.M{"name": containsName(query)}
	if userID != "" {
		filter["user_id"] = userID
	}
	products := []Product{}
	err := s.findMany(ctx, productsCollection, filter, &products, options.Find().SetLimit(searchLimit))
	return products, err
}

// --- Customers ---

func (s *MongoStore) FindCustomerByExactName(ctx context.Context, userID string, name string) (*Customer, error) {
	var c Customer
	if err := s.findOne(ctx, customersColl, bson.M{"user_id": userID, "name": exactName(name)}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) FindCustomerByNameContains(ctx context.Context, userID string, fragment string) (*Customer, error) {
	var c Customer
	if err := s.findOne(ctx, customersColl, bson.M{"user_id": userID, "name": containsName(fragment)}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) ListCustomers(ctx context.Context, userIDs []string, limit int) ([]Customer, error) {
	filter := bson.M{}
	if len(userIDs) > 0 {
		filter["user_id"] = bson.M{"$in": userIDs}
	}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	customers := []Customer{}
	err := s.findMany(ctx, customersColl, filter, &customers, opts)
	return customers, err
}

func (s *MongoStore) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var c Customer
	if err := s.findOne(ctx, customersColl, bson.M{"id": id}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) CreateCustomer(ctx context.Context, customer *Customer) error {
	return s.insert(ctx, customersColl, customer)
}

func (s *MongoStore) UpdateCustomer(ctx context.Context, customer *Customer) error {
	return s.updateByID(ctx, customersColl, customer.ID, bson.M{"$set": bson.M{
		"user_id":  customer.UserID,
		"name":     customer.Name,
		"phone":    customer.Phone,
		"email":    customer.Email,
		"address":  customer.Address,
		"language": customer.Language,
		"notes":    customer.Notes,
	}})
}

func (s *MongoStore) DeleteCustomer(ctx context.Context, id string) error {
	return s.deleteByID(ctx, customersColl, id)
}

func (s *MongoStore) SearchCustomers(ctx context.Context, userID string, query string) ([]Customer, error) {
	filter := bson.M{"name": containsName(query)}
	if userID != "" {
		filter["user_id"] = userID
	}
	customers := []Customer{}
	err := s.findMany(ctx, customersColl, filter, &customers, options.Find().SetLimit(searchLimit))
	return customers, err
}

func (s *MongoStore) RecordPurchase(ctx context.Context, id string, total float64, due float64, at time.Time) error {
	return s.updateByID(ctx, customersColl, id, bson.M{
		"$inc": bson.M{"total_purchases": total, "total_due": due},
		"$set": bson.M{"last_purchase": at},
	})
}

func (s *MongoStore) SetCustomerDue(ctx context.Context, id string, due float64) error {
	return s.updateByID(ctx, customersColl, id, bson.M{"$set": bson.M{"total_due": due}})
}

// --- Invoices ---

func (s *MongoStore) CountInvoices(ctx context.Context, userID string) (int64, error) {
	cctx, cancel := s.ctx(ctx)
	defer cancel()

	n, err := s.db.Collection(invoicesCollection).CountDocuments(cctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return n, nil
}

func (s *MongoStore) CreateInvoice(ctx context.Context, invoice *Invoice) error {
	return s.insert(ctx, invoicesCollection, invoice)
}

func (s *MongoStore) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	if err := s.findOne(ctx, invoicesCollection, bson.M{"id": id}, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *MongoStore) ListInvoices(ctx context.Context, userID string, limit int) ([]Invoice, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	invoices := []Invoice{}
	err := s.findMany(ctx, invoicesCollection, filter, &invoices, opts)
	return invoices, err
}

func (s *MongoStore) ListCustomerInvoices(ctx context.Context, customerID string) ([]Invoice, error) {
	invoices := []Invoice{}
	err := s.findMany(ctx, invoicesCollection, bson.M{"customer_id": customerID}, &invoices, options.Find().SetLimit(catalogLimit))
	return invoices, err
}

func (s *MongoStore) UpdatePayment(ctx context.Context, id string, update PaymentUpdate) error {
	set := bson.M{
		"status":         update.Status,
		"amount_paid":    update.AmountPaid,
		"amount_due":     update.AmountDue,
		"payment_status": update.PaymentStatus,
	}
	if update.PaymentID != "" {
		set["payment_id"] = update.PaymentID
	}
	return s.updateByID(ctx, invoicesCollection, id, bson.M{"$set": set})
}

func (s *MongoStore) SetPaymentLink(ctx context.Context, id string, link string) error {
	return s.updateByID(ctx, invoicesCollection, id, bson.M{"$set": bson.M{
		"payment_link":   link,
		"payment_status": PaymentPending,
	}})
}

func (s *MongoStore) MarkEmailSent(ctx context.Context, id string) error {
	return s.updateByID(ctx, invoicesCollection, id, bson.M{"$set": bson.M{"email_sent": true}})
}

func (s *MongoStore) DeleteInvoice(ctx context.Context, id string) error {
	return s.deleteByID(ctx, invoicesCollection, id)
}

// --- Drafts ---

func (s *MongoStore) LatestDraft(ctx context.Context, userID string) (*PendingInvoice, error) {
	var d PendingInvoice
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if err := s.findOne(ctx, draftsCollection, bson.M{"user_id": userID}, &d, opts); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *MongoStore) ReplaceDraft(ctx context.Context, draft *PendingInvoice) error {
	cctx, cancel := s.ctx(ctx)
	defer cancel()

	if _, err := s.db.Collection(draftsCollection).DeleteMany(cctx, bson.M{"user_id": draft.UserID}); err != nil {
		return fmt.Errorf("failed to clear previous drafts: %w", err)
	}
	return s.insert(ctx, draftsCollection, draft)
}

func (s *MongoStore) DeleteDraft(ctx context.Context, id string) error {
	return s.deleteByID(ctx, draftsCollection, id)
}
