package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dkoval/tabletalk/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is a MongoDB implementation of Store.
// Generated IDs for tables and columns come from an atomic counter collection,
// so they behave like SQLite AUTOINCREMENT values.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	users    *mongo.Collection
	tables   *mongo.Collection
	columns  *mongo.Collection
	cells    *mongo.Collection
	counters *mongo.Collection
	mu       sync.RWMutex
}

// MongoStoreConfig holds configuration for MongoStore
type MongoStoreConfig struct {
	URI      string // MongoDB connection URI (e.g., "mongodb://localhost:27017")
	Database string // Database name (default: "tabletalk")
}

// DefaultMongoStoreConfig returns default configuration
func DefaultMongoStoreConfig() MongoStoreConfig {
	return MongoStoreConfig{
		URI:      "mongodb://localhost:27017",
		Database: "tabletalk",
	}
}

// NewMongoStore creates a new MongoDB store
func NewMongoStore(config MongoStoreConfig) (*MongoStore, error) {
	if config.URI == "" {
		config.URI = "mongodb://localhost:27017"
	}
	if config.Database == "" {
		config.Database = "tabletalk"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(config.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(config.Database)

	store := &MongoStore{
		client:   client,
		database: database,
		users:    database.Collection("users"),
		tables:   database.Collection("tables"),
		columns:  database.Collection("columns"),
		cells:    database.Collection("data"),
		counters: database.Collection("counters"),
	}

	if err := store.initIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return store, nil
}

// initIndexes creates the necessary indexes
func (s *MongoStore) initIndexes(ctx context.Context) error {
	// Unique username, skipping bare context-only users
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{
			"username": bson.M{"$gt": ""},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create username index: %w", err)
	}

	// One table name per user
	_, err = s.tables.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "table_name", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create table name index: %w", err)
	}

	// One column name per table
	_, err = s.columns.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "table_id", Value: 1},
			{Key: "column_name", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create column name index: %w", err)
	}

	// One cell per (row, column) coordinate
	_, err = s.cells.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "row_id", Value: 1},
			{Key: "column_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create cell index: %w", err)
	}

	return nil
}

// Close closes the MongoDB connection
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// nextID atomically increments and returns the named sequence counter.
func (s *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s counter: %w", name, err)
	}
	return doc.Value, nil
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// userDocument represents a user document in MongoDB
type userDocument struct {
	ID       int64  `bson:"_id"`
	Username string `bson:"username,omitempty"`
	Context  string `bson:"context,omitempty"` // JSON serialized Context
}

func (d *userDocument) toUser() (*model.User, error) {
	u := &model.User{ID: d.ID, Username: d.Username}
	if d.Context != "" {
		ctx := &model.Context{}
		if err := json.Unmarshal([]byte(d.Context), ctx); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
		u.Context = ctx
	}
	return u, nil
}

// CreateUser stores a new user. The ID must be supplied by the caller.
func (s *MongoStore) CreateUser(u *model.User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := userDocument{ID: u.ID, Username: u.Username}
	if u.Context != nil {
		data, err := json.Marshal(u.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
		doc.Context = string(data)
	}

	ctx, cancel := opCtx()
	defer cancel()

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *MongoStore) GetUser(id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := opCtx()
	defer cancel()

	var doc userDocument
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return doc.toUser()
}

// CountUsername counts users carrying the given username.
func (s *MongoStore) CountUsername(username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := opCtx()
	defer cancel()

	count, err := s.users.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return 0, fmt.Errorf("failed to count usernames: %w", err)
	}
	return int(count), nil
}

// ListUsers returns all users ordered by ID.
func (s *MongoStore) ListUsers() ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*model.User
	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		u, err := doc.toUser()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// LoadContext returns the persisted conversation context for a user.
// A missing user or missing context yields an empty context, not an error.
func (s *MongoStore) LoadContext(userID int64) (*model.Context, error) {
	u, err := s.GetUser(userID)
	if err == ErrNoRecord {
		return model.NewContext(), nil
	}
	if err != nil {
		return nil, err
	}
	if u.Context == nil {
		return model.NewContext(), nil
	}
	return u.Context, nil
}

// SaveContext upserts the conversation context for a user, creating a bare
// user document if none exists yet.
func (s *MongoStore) SaveContext(userID int64, ctx *model.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx == nil {
		ctx = model.NewContext()
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	opctx, cancel := opCtx()
	defer cancel()

	opts := options.Update().SetUpsert(true)
	_, err = s.users.UpdateOne(opctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"context": string(data)}},
		opts,
	)
	if err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	return nil
}

// tableDocument represents a table document in MongoDB
type tableDocument struct {
	ID     int64  `bson:"_id"`
	UserID int64  `bson:"user_id"`
	Name   string `bson:"table_name"`
}

// InsertTable stores a new table and returns its generated ID.
func (s *MongoStore) InsertTable(t *model.Table) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := opCtx()
	defer cancel()

	id, err := s.nextID(ctx, "tables")
	if err != nil {
		return 0, err
	}

	doc := tableDocument{ID: id, UserID: t.UserID, Name: t.Name}
	if _, err := s.tables.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to insert table: %w", err)
	}
	return id, nil
}

// GetTable retrieves a table by ID.
func (s *MongoStore) GetTable(id int64) (*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := opCtx()
	defer cancel()

	var doc tableDocument
	err := s.tables.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query table: %w", err)
	}
	return &model.Table{ID: doc.ID, UserID: doc.UserID, Name: doc.Name}, nil
}

// UpdateTable applies the non-nil patch fields to a table.
func (s *MongoStore) UpdateTable(id int64, patch model.TablePatch) error {
	if patch.Name == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := opCtx()
	defer cancel()

	res, err := s.tables.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"table_name": *patch.Name}},
	)
	if err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

// DeleteTable removes a table. Dependent columns are not touched.
func (s *MongoStore) DeleteTable(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := opCtx()
	defer cancel()

	res, err := s.tables.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete table: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

// ListTables returns every table ordered by ID.
func (s *MongoStore) ListTables() ([]*model.Table, error) {
	return s.findTables(bson.M{})
}

// ListTablesByUser returns the tables owned by one user, ordered by ID.
func (s *MongoStore) ListTablesByUser(userID int64) ([]*model.Table, error) {
	return s.findTables(bson.M{"user_id": userID})
}

func (s *MongoStore) findTables(filter bson.M) ([]*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := s.tables.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer cursor.Close(ctx)

	var tables []*model.Table
	for cursor.Next(ctx) {
		var doc tableDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode table: %w", err)
		}
		tables = append(tables, &model.Table{ID: doc.ID, UserID: doc.UserID, Name: doc.Name})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// CountTableName counts tables with the given name owned by one user.
func (s *MongoStore) CountTableName(userID int64, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := opCtx()
	defer cancel()

	count, err := s.tables.CountDocuments(ctx, bson.M{"user_id": userID, "table_name": name})
	if err != nil {
		return 0, fmt.Errorf("failed to count table names: %w", err)
	}
	return int(count), nil
}

// columnDocument represents a column document in MongoDB
type columnDocument struct {
	ID      int64  `bson:"_id"`
	TableID int64  `bson:"table_id"`
	Name    string `bson:"column_name"`
	Type    string `bson:"type,omitempty"`
}

// InsertColumn stores a new column and returns its generated ID.
func (s *MongoStore) InsertColumn(c *model.Column) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := opCtx()
	defer cancel()

	id, err := s.nextID(ctx, "columns")
	if err != nil {
		return 0, err
	}

	doc := columnDocument{ID: id, TableID: c.TableID, Name: c.Name, Type: c.Type}
	if _, err := s.columns.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to insert column: %w", err)
	}
	return id, nil
}

// GetColumn retrieves a column by ID.
func (s *MongoStore) GetColumn(id int64) (*model.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := opCtx()
	defer cancel()

	var doc columnDocument
	err := s.columns.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query column: %w", err)
	}
	return &model.Column{ID: doc.ID, TableID: doc.TableID, Name: doc.Name, Type: doc.Type}, nil
}

// UpdateColumn applies the non-nil patch fields to a column.
func (s *MongoStore) UpdateColumn(id int64, patch model.ColumnPatch) error {
	set := bson.M{}
	if patch.Name != nil {
		set["column_name"] = *patch.Name
	}
	if patch.Type != nil {
		set["type"] = *patch.Type
	}
	if len(set) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := opCtx()
	defer cancel()

	res, err := s.columns.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update column: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

// DeleteColumn removes a column. Dependent cells are not touched.
func (s *MongoStore) DeleteColumn(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := opCtx()
	defer cancel()

	res, err := s.columns.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

// ListColumns returns every column ordered by ID.
func (s *MongoStore) ListColumns() ([]*model.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := s.columns.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer cursor.Close(ctx)

	var columns []*model.Column
	for cursor.Next(ctx) {
		var doc columnDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode column: %w", err)
		}
		columns = append(columns, &model.Column{ID: doc.ID, TableID: doc.TableID, Name: doc.Name, Type: doc.Type})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return columns, nil
}

// CountColumnName counts columns with the given name inside one table.
func (s *MongoStore) CountColumnName(tableID int64, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := opCtx()
	defer cancel()

	count, err := s.columns.CountDocuments(ctx, bson.M{"table_id": tableID, "column_name": name})
	if err != nil {
		return 0, fmt.Errorf("failed to count column names: %w", err)
	}
	return int(count), nil
}

// cellDocument represents a cell document in MongoDB
type cellDocument struct {
	RowID    int64  `bson:"row_id"`
	ColumnID int64  `bson:"column_id"`
	Value    string `bson:"data"`
}

// UpsertCell stores a cell value, replacing any existing value at the same
// (row, column) coordinates.
func (s *MongoStore) UpsertCell(c *model.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := opCtx()
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	doc := cellDocument{RowID: c.RowID, ColumnID: c.ColumnID, Value: c.Value}
	_, err := s.cells.ReplaceOne(ctx,
		bson.M{"row_id": c.RowID, "column_id": c.ColumnID},
		doc, opts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cell: %w", err)
	}
	return nil
}

// GetCell retrieves a cell by its composite key.
func (s *MongoStore) GetCell(rowID, columnID int64) (*model.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := opCtx()
	defer cancel()

	var doc cellDocument
	err := s.cells.FindOne(ctx, bson.M{"row_id": rowID, "column_id": columnID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cell: %w", err)
	}
	return &model.Cell{RowID: doc.RowID, ColumnID: doc.ColumnID, Value: doc.Value}, nil
}

// UpdateCell replaces the value of an existing cell.
func (s *MongoStore) UpdateCell(rowID, columnID int64, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := opCtx()
	defer cancel()

	res, err := s.cells.UpdateOne(ctx,
		bson.M{"row_id": rowID, "column_id": columnID},
		bson.M{"$set": bson.M{"data": value}},
	)
	if err != nil {
		return fmt.Errorf("failed to update cell: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

// DeleteCell removes a cell by its composite key.
func (s *MongoStore) DeleteCell(rowID, columnID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := opCtx()
	defer cancel()

	res, err := s.cells.DeleteOne(ctx, bson.M{"row_id": rowID, "column_id": columnID})
	if err != nil {
		return fmt.Errorf("failed to delete cell: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

// ListCells returns every cell ordered by (row, column).
func (s *MongoStore) ListCells() ([]*model.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := s.cells.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{
		{Key: "row_id", Value: 1},
		{Key: "column_id", Value: 1},
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer cursor.Close(ctx)

	var cells []*model.Cell
	for cursor.Next(ctx) {
		var doc cellDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode cell: %w", err)
		}
		cells = append(cells, &model.Cell{RowID: doc.RowID, ColumnID: doc.ColumnID, Value: doc.Value})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cells: %w", err)
	}
	return cells, nil
}

// Ensure all backends implement Store
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
