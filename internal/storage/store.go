package storage

import "context"

// RoomCache — кеш сериализованных документов комнат (снимок doc+version).
// Реализации: redis.Client, memory.Client (для -dev без Redis).
// Кеш только ускоряет чтение prior-состояния; источник истины — Postgres,
// после каждой записи запись в кеше инвалидируется.
type RoomCache interface {
	GetRoom(ctx context.Context, id string) (data []byte, ok bool, err error)
	SetRoom(ctx context.Context, id string, data []byte) error
	InvalidateRoom(ctx context.Context, id string) error
	Close() error
}
