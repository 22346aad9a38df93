package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

const settingsID = "current"

// recordDoc 记录在集合中的形式,seq保持插入顺序
type recordDoc struct {
	Seq           int `bson:"seq"`
	models.Record `bson:",inline"`
}

type settingsDoc struct {
	ID        string          `bson:"_id"`
	Settings  models.Settings `bson:"settings"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

// MongoStore 记录按url唯一存放,配置单独一个文档
type MongoStore struct {
	client   *mongo.Client
	records  *mongo.Collection
	settings *mongo.Collection
}

// NewMongoStore 连接MongoDB并建立索引
func NewMongoStore(ctx context.Context, cfg Config) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("连接MongoDB失败: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB无响应: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "records"
	}
	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:   client,
		records:  db.Collection(collection),
		settings: db.Collection(collection + "_settings"),
	}
	s.createIndexes(ctx)

	utils.Infof("🍃 已连接MongoDB: %s/%s", cfg.Database, collection)
	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "seq", Value: 1}}},
	}
	if _, err := s.records.Indexes().CreateMany(ctx, indexes); err != nil {
		utils.Warnf("创建索引失败: %v", err)
	}
}

// SaveRecords 按url批量upsert并删除集合中多出的记录,使集合与records一致
func (s *MongoStore) SaveRecords(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return s.Clear(ctx)
	}
	urls := make([]string, 0, len(records))
	writes := make([]mongo.WriteModel, 0, len(records))
	for i, r := range records {
		urls = append(urls, r.URL)
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"url": r.URL}).
			SetUpdate(bson.M{"$set": recordDoc{Seq: i, Record: r}}).
			SetUpsert(true))
	}
	if _, err := s.records.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("写入记录失败: %w", err)
	}
	if _, err := s.records.DeleteMany(ctx, bson.M{"url": bson.M{"$nin": urls}}); err != nil {
		return fmt.Errorf("清理过期记录失败: %w", err)
	}
	return nil
}

// LoadRecords 按插入顺序读取全部记录
func (s *MongoStore) LoadRecords(ctx context.Context) ([]models.Record, error) {
	cursor, err := s.records.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("查询记录失败: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []recordDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("解析记录失败: %w", err)
	}
	records := make([]models.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.Record)
	}
	return records, nil
}

// SaveSettings 保存会话配置
func (s *MongoStore) SaveSettings(ctx context.Context, settings models.Settings) error {
	doc := settingsDoc{ID: settingsID, Settings: settings, UpdatedAt: time.Now()}
	_, err := s.settings.ReplaceOne(ctx, bson.M{"_id": settingsID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("保存配置失败: %w", err)
	}
	return nil
}

// LoadSettings 读取会话配置,从未保存过时返回nil
func (s *MongoStore) LoadSettings(ctx context.Context) (*models.Settings, error) {
	var doc settingsDoc
	err := s.settings.FindOne(ctx, bson.M{"_id": settingsID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	return &doc.Settings, nil
}

// Clear 删除全部记录
func (s *MongoStore) Clear(ctx context.Context) error {
	if _, err := s.records.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("清空记录失败: %w", err)
	}
	return nil
}

// Close 断开连接
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
