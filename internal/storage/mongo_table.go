package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig параметры подключения к MongoDB
type MongoConfig struct {
	URI        string // например mongodb://localhost:27017
	Database   string // например tshock
	Collection string // по умолчанию BlacklistedTiles
}

// MongoTable реализует BlacklistTable поверх коллекции MongoDB.
// Документы повторяют строки SQL: {ID, Type, Region}. Как и в SQL,
// дубликаты ключа допустимы, их объединяет Store.
type MongoTable struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

type mongoRow struct {
	IDs    string `bson:"ID"`
	Type   int    `bson:"Type"`
	Region string `bson:"Region"`
}

// OpenMongoTable подключается и проверяет соединение.
func OpenMongoTable(cfg MongoConfig) (*MongoTable, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "tshock"
	}
	if cfg.Collection == "" {
		cfg.Collection = TableName
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	// ping
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping %s: %w", cfg.URI, err)
	}

	return &MongoTable{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}, nil
}

func (m *MongoTable) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.ctxTimeout)
}

// keyFilter совпадает с тем, как ключ читается в Store: отсутствующий
// регион это глобальная зона, отсутствующий Type тайл, ненулевой стена.
func keyFilter(typ int, region string) bson.M {
	f := bson.M{"Region": region}
	if region == "" {
		f["Region"] = bson.M{"$in": bson.A{"", nil}}
	}
	if typ == 0 {
		f["Type"] = bson.M{"$in": bson.A{0, nil}}
	} else {
		f["Type"] = bson.M{"$nin": bson.A{0, nil}}
	}
	return f
}

// EnsureExists создаёт индекс по (Type, Region). Индекс не уникальный:
// старые коллекции могут содержать дубликаты ключа.
func (m *MongoTable) EnsureExists(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "Type", Value: 1}, {Key: "Region", Value: 1}},
		Options: options.Index().SetName("type_region"),
	}
	if _, err := m.collection.Indexes().CreateOne(ctx, idx); err != nil {
		return fmt.Errorf("mongo ensure index: %w", err)
	}
	return nil
}

func (m *MongoTable) ReadAll(ctx context.Context) ([]Row, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	cur, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	var rows []Row
	for cur.Next(ctx) {
		var doc mongoRow
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode: %w", err)
		}
		rows = append(rows, Row{IDs: doc.IDs, Type: doc.Type, Region: doc.Region})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo cursor: %w", err)
	}
	return rows, nil
}

// Insert вставляет документ, только если ключа ещё нет; иначе 0 строк.
func (m *MongoTable) Insert(ctx context.Context, row Row) (int64, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	doc := bson.M{"ID": row.IDs, "Type": row.Type, "Region": row.Region}
	res, err := m.collection.UpdateOne(ctx, keyFilter(row.Type, row.Region),
		bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return 0, fmt.Errorf("mongo insert: %w", err)
	}
	return res.UpsertedCount, nil
}

func (m *MongoTable) Update(ctx context.Context, row Row) (int64, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.collection.UpdateMany(ctx, keyFilter(row.Type, row.Region), bson.M{"$set": bson.M{"ID": row.IDs}})
	if err != nil {
		return 0, fmt.Errorf("mongo update: %w", err)
	}
	return res.MatchedCount, nil
}

func (m *MongoTable) Delete(ctx context.Context, typ int, region string) (int64, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.collection.DeleteMany(ctx, keyFilter(typ, region))
	if err != nil {
		return 0, fmt.Errorf("mongo delete: %w", err)
	}
	return res.DeletedCount, nil
}

// Close отключает клиента
func (m *MongoTable) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
