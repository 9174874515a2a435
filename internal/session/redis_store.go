package session

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	xerrors "NetBank-Chain/internal/errors"
)

// RedisStoreConfig 描述 Redis 会话存储的连接参数。
type RedisStoreConfig struct {
	Address    string
	Password   string
	DB         int
	KeyPrefix  string
	SessionTTL time.Duration
	ScratchTTL time.Duration
}

// RedisStore 使用 Redis 保存会话状态，供多实例部署共享。
// 会话整体带 TTL；转账暂存状态按自身的活跃时间单独过期。
type RedisStore struct {
	client     *redis.Client
	prefix     string
	sessionTTL time.Duration
	scratchTTL time.Duration
	now        func() time.Time
}

// NewRedisStore 创建 Redis 会话存储。
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "netbank:session:"
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	scratchTTL := cfg.ScratchTTL
	if scratchTTL <= 0 {
		scratchTTL = defaultScratchTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		sessionTTL: sessionTTL,
		scratchTTL: scratchTTL,
		now:        time.Now,
	}, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Create 实现 Store 接口。
func (r *RedisStore) Create(ctx context.Context) (*Session, error) {
	now := r.now().Unix()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.write(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get 返回会话快照。
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if stdErrors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取会话失败")
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析会话失败")
	}
	if sess.State.Transfer != nil && r.scratchTTL > 0 {
		idle := r.now().Unix() - sess.State.Transfer.UpdatedAt
		if idle > int64(r.scratchTTL/time.Second) {
			sess.State.Transfer = nil
			if err := r.write(ctx, &sess); err != nil {
				return nil, err
			}
		}
	}
	return &sess, nil
}

// Put 写回会话状态并刷新 TTL。
func (r *RedisStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "会话不能为空")
	}
	exists, err := r.client.Exists(ctx, r.key(sess.ID)).Result()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "检查会话失败")
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	sess.UpdatedAt = r.now().Unix()
	return r.write(ctx, sess)
}

func (r *RedisStore) write(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "编码会话失败")
	}
	if err := r.client.Set(ctx, r.key(sess.ID), raw, r.sessionTTL).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// 编译期接口断言。
var _ Store = (*RedisStore)(nil)
