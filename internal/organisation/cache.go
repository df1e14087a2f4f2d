package organisation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"corrflow/internal/model"
)

// CachedDirectory is a read-through Redis cache in front of a Directory.
// Org structure changes rarely relative to how often the approver resolver
// reads it; a short TTL keeps staleness bounded. Cache failures fall back to
// the underlying directory, never to the caller.
type CachedDirectory struct {
	inner  Directory
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedDirectory(inner Directory, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	return &CachedDirectory{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (d *CachedDirectory) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	var user model.User
	if d.lookup(ctx, "org:user:"+id.String(), &user) {
		return user, nil
	}
	user, err := d.inner.GetUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	d.store(ctx, "org:user:"+id.String(), user)
	return user, nil
}

func (d *CachedDirectory) ListActiveUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if d.lookup(ctx, "org:users:active", &users) {
		return users, nil
	}
	users, err := d.inner.ListActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	d.store(ctx, "org:users:active", users)
	return users, nil
}

func (d *CachedDirectory) GetDirectorate(ctx context.Context, id uuid.UUID) (model.Directorate, error) {
	var directorate model.Directorate
	if d.lookup(ctx, "org:directorate:"+id.String(), &directorate) {
		return directorate, nil
	}
	directorate, err := d.inner.GetDirectorate(ctx, id)
	if err != nil {
		return model.Directorate{}, err
	}
	d.store(ctx, "org:directorate:"+id.String(), directorate)
	return directorate, nil
}

func (d *CachedDirectory) GetDivision(ctx context.Context, id uuid.UUID) (model.Division, error) {
	var division model.Division
	if d.lookup(ctx, "org:division:"+id.String(), &division) {
		return division, nil
	}
	division, err := d.inner.GetDivision(ctx, id)
	if err != nil {
		return model.Division{}, err
	}
	d.store(ctx, "org:division:"+id.String(), division)
	return division, nil
}

func (d *CachedDirectory) GetDepartment(ctx context.Context, id uuid.UUID) (model.Department, error) {
	var department model.Department
	if d.lookup(ctx, "org:department:"+id.String(), &department) {
		return department, nil
	}
	department, err := d.inner.GetDepartment(ctx, id)
	if err != nil {
		return model.Department{}, err
	}
	d.store(ctx, "org:department:"+id.String(), department)
	return department, nil
}

func (d *CachedDirectory) lookup(ctx context.Context, key string, dest any) bool {
	data, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			d.logger.Warn("directory cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		d.logger.Warn("directory cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (d *CachedDirectory) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := d.client.Set(ctx, key, data, d.ttl).Err(); err != nil {
		d.logger.Warn("directory cache write failed", "key", key, "error", err)
	}
}
