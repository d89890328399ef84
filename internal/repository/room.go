package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomgate/internal/authz"
	"github.com/roomgate/internal/logger"
	"github.com/roomgate/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict — документ изменился между чтением и записью;
	// вызывающий перечитывает prior и повторяет авторизацию.
	ErrVersionConflict = errors.New("version conflict")
)

// StoredRoom — документ комнаты вместе с версией для optimistic concurrency.
type StoredRoom struct {
	Room    *model.Room
	Version int64
}

// RoomRepository хранит документы комнат в JSONB. Запись идёт только через
// compare-and-swap по версии: вердикт движка выносится по конкретному
// prior-состоянию, и запись применяется только к нему же.
type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

func (r *RoomRepository) Create(ctx context.Context, room *model.Room) error {
	defer logger.DeferLogDuration("room.Create", time.Now())()
	doc, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("roomRepo.Create marshal: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO rooms (id, doc, version, updated_at) VALUES ($1, $2, 1, now())`,
		room.ID, doc,
	)
	if err != nil {
		return fmt.Errorf("roomRepo.Create: %w", err)
	}
	return nil
}

func (r *RoomRepository) GetByID(ctx context.Context, id string) (*StoredRoom, error) {
	defer logger.DeferLogDuration("room.GetByID", time.Now())()
	var (
		doc     []byte
		version int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT doc, version FROM rooms WHERE id = $1`, id,
	).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("roomRepo.GetByID: %w", err)
	}
	room := &model.Room{}
	if err := json.Unmarshal(doc, room); err != nil {
		return nil, fmt.Errorf("roomRepo.GetByID unmarshal: %w", err)
	}
	room.ID = id
	return &StoredRoom{Room: room, Version: version}, nil
}

// Update записывает новый документ, если версия не изменилась с момента
// чтения prior. ErrVersionConflict — гонка с другой записью.
func (r *RoomRepository) Update(ctx context.Context, id string, room *model.Room, expectedVersion int64) error {
	defer logger.DeferLogDuration("room.Update", time.Now())()
	doc, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("roomRepo.Update marshal: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE rooms SET doc = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND version = $3`,
		doc, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("roomRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM rooms WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("roomRepo.Update exists: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("room.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("roomRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List выполняет запрос по предикату, уже прошедшему scope-проверку движка.
func (r *RoomRepository) List(ctx context.Context, q *authz.QueryPredicate) ([]*model.Room, error) {
	defer logger.DeferLogDuration("room.List", time.Now())()
	sql, args, err := buildListQuery(q)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.List build: %w", err)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.List query: %w", err)
	}
	defer rows.Close()

	rooms := make([]*model.Room, 0, 16)
	for rows.Next() {
		var (
			id  string
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("roomRepo.List scan: %w", err)
		}
		room := &model.Room{}
		if err := json.Unmarshal(doc, room); err != nil {
			return nil, fmt.Errorf("roomRepo.List unmarshal: %w", err)
		}
		room.ID = id
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roomRepo.List rows: %w", err)
	}
	return rooms, nil
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// idPattern — безопасные для инлайна идентификаторы в ORDER BY выражениях.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// buildListQuery переводит предикат в SQL по JSONB-документу. Фильтры и
// сортировка параметризуются или проходят строгую проверку формата.
func buildListQuery(q *authz.QueryPredicate) (string, []any, error) {
	var (
		sb    strings.Builder
		args  []any
		conds []string
	)
	sb.WriteString(`SELECT id, doc FROM rooms`)

	for _, f := range q.Filters {
		switch {
		case f.Field == authz.FieldOpen:
			args = append(args, f.Value)
			conds = append(conds, fmt.Sprintf(`COALESCE((doc->>'open')::boolean, false) = $%d`, len(args)))

		case f.Field == authz.FieldInvitedUsers || f.Field == authz.FieldRejectedUsers:
			uid, ok := f.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("filter %s: expected string value", f.Field)
			}
			elem, err := json.Marshal([]string{uid})
			if err != nil {
				return "", nil, fmt.Errorf("filter %s: %w", f.Field, err)
			}
			args = append(args, string(elem))
			conds = append(conds, fmt.Sprintf(`doc->'%s' @> $%d::jsonb`, f.Field, len(args)))

		default:
			uid, meta, ok := splitUserPath(f.Field)
			if !ok {
				return "", nil, fmt.Errorf("filter %s: not queryable", f.Field)
			}
			op, ok := sqlOp(f.Op)
			if !ok {
				return "", nil, fmt.Errorf("filter %s: unsupported op %q", f.Field, f.Op)
			}
			args = append(args, uid, meta, f.Value)
			conds = append(conds, fmt.Sprintf(
				`COALESCE((doc->'users'->($%d::text)->>($%d::text))::bigint, 0) %s $%d`,
				len(args)-2, len(args)-1, op, len(args),
			))
		}
	}
	if len(conds) > 0 {
		sb.WriteString(` WHERE `)
		sb.WriteString(strings.Join(conds, ` AND `))
	}

	if len(q.Orders) > 0 {
		exprs := make([]string, 0, len(q.Orders))
		for _, o := range q.Orders {
			expr, err := orderExpr(o.Field)
			if err != nil {
				return "", nil, err
			}
			if o.Desc {
				expr += " DESC"
			}
			exprs = append(exprs, expr)
		}
		sb.WriteString(` ORDER BY `)
		sb.WriteString(strings.Join(exprs, ", "))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))

	return sb.String(), args, nil
}

func sqlOp(op string) (string, bool) {
	switch op {
	case authz.FilterEq:
		return "=", true
	case authz.FilterLt:
		return "<", true
	case authz.FilterLte:
		return "<=", true
	case authz.FilterGt:
		return ">", true
	case authz.FilterGte:
		return ">=", true
	}
	return "", false
}

// orderableScalars — скалярные поля, по которым разрешена сортировка.
var orderableScalars = map[string]bool{
	authz.FieldUpdatedAt:     true,
	authz.FieldCreatedAt:     true,
	authz.FieldLastMessageAt: true,
	authz.FieldName:          true,
}

func orderExpr(field string) (string, error) {
	if orderableScalars[field] {
		if field == authz.FieldName {
			return fmt.Sprintf(`doc->>'%s'`, field), nil
		}
		return fmt.Sprintf(`COALESCE((doc->>'%s')::bigint, 0)`, field), nil
	}
	uid, meta, ok := splitUserPath(field)
	if !ok {
		return "", fmt.Errorf("order by %s: not orderable", field)
	}
	if !idPattern.MatchString(uid) {
		return "", fmt.Errorf("order by %s: bad user id", field)
	}
	return fmt.Sprintf(`COALESCE((doc->'users'->'%s'->>'%s')::bigint, 0)`, uid, meta), nil
}

// splitUserPath разбирает путь users.{uid}.{meta} и проверяет meta-имя.
func splitUserPath(path string) (uid, meta string, ok bool) {
	rest, found := strings.CutPrefix(path, "users.")
	if !found {
		return "", "", false
	}
	uid, meta, found = strings.Cut(rest, ".")
	if !found || uid == "" {
		return "", "", false
	}
	var probe model.UserMeta
	if _, known := probe.MetaValue(meta); !known {
		return "", "", false
	}
	return uid, meta, true
}
