package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig параметры подключения к Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// updateIfExists перезаписывает поле хеша только если оно уже есть
var updateIfExists = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
	redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0`)

// RedisTable хранит таблицу в одном хеше Redis с именем TableName.
// Поле "<type>:<region>", значение - колонка ID.
type RedisTable struct {
	client *redis.Client
	key    string
}

// OpenRedisTable подключается к Redis и проверяет соединение.
func OpenRedisTable(cfg RedisConfig) (*RedisTable, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTable{client: rdb, key: TableName}, nil
}

func redisField(typ int, region string) string {
	return strconv.Itoa(typ) + ":" + region
}

// EnsureExists хеш появляется при первой записи
func (t *RedisTable) EnsureExists(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

func (t *RedisTable) ReadAll(ctx context.Context) ([]Row, error) {
	fields, err := t.client.HGetAll(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	rows := make([]Row, 0, len(fields))
	for field, ids := range fields {
		typPart, region, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("неверное поле %q в %s", field, t.key)
		}
		typ, err := strconv.Atoi(typPart)
		if err != nil {
			return nil, fmt.Errorf("неверный тип в поле %q: %w", field, err)
		}
		rows = append(rows, Row{IDs: ids, Type: typ, Region: region})
	}
	return rows, nil
}

func (t *RedisTable) Insert(ctx context.Context, row Row) (int64, error) {
	ok, err := t.client.HSetNX(ctx, t.key, redisField(row.Type, row.Region), row.IDs).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hsetnx: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return 1, nil
}

func (t *RedisTable) Update(ctx context.Context, row Row) (int64, error) {
	n, err := updateIfExists.Run(ctx, t.client, []string{t.key}, redisField(row.Type, row.Region), row.IDs).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis update: %w", err)
	}
	return n, nil
}

func (t *RedisTable) Delete(ctx context.Context, typ int, region string) (int64, error) {
	n, err := t.client.HDel(ctx, t.key, redisField(typ, region)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hdel: %w", err)
	}
	return n, nil
}

func (t *RedisTable) Close() error {
	return t.client.Close()
}
