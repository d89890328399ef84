package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/roomgate/internal/authz"
	"github.com/roomgate/internal/logger"
	"github.com/roomgate/internal/middleware"
	"github.com/roomgate/internal/model"
	"github.com/roomgate/internal/push"
	"github.com/roomgate/internal/repository"
	"github.com/roomgate/internal/storage"
	"github.com/roomgate/internal/ws"
)

// updateRetryLimit — попытки перезаписи при гонке версий: prior перечитывается
// и авторизация выносится заново по свежему состоянию.
const updateRetryLimit = 3

// RoomHandler обрабатывает операции над документами комнат. Каждый запрос
// проходит через движок авторизации; запись применяет ровно тот документ,
// по которому вынесен вердикт (CAS по версии).
type RoomHandler struct {
	repo  *repository.RoomRepository
	cache storage.RoomCache
	hub   *ws.Hub
	push  *push.Client
}

func NewRoomHandler(repo *repository.RoomRepository, cache storage.RoomCache, hub *ws.Hub, pushClient *push.Client) *RoomHandler {
	return &RoomHandler{repo: repo, cache: cache, hub: hub, push: pushClient}
}

// writeDenial отдаёт клиенту вердикт Deny: 400 для негодного патча,
// 403 для всех остальных отказов.
func writeDenial(w http.ResponseWriter, d authz.Decision) {
	writeJSON(w, d.Code.HTTPStatus(), map[string]string{
		"error": d.Reason,
		"code":  string(d.Code),
	})
}

// Create обрабатывает POST /api/rooms: тело — патч создания.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("room.Create", time.Now())()
	requester := middleware.GetUserID(r.Context())

	var patch authz.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	decision := authz.Evaluate(authz.Request{
		Op:          authz.OpCreate,
		RequesterID: requester,
		Patch:       &patch,
	})
	if !decision.Allowed {
		writeDenial(w, decision)
		return
	}

	room := authz.Apply(nil, &patch)
	room.ID = uuid.New().String()
	if err := h.repo.Create(r.Context(), room); err != nil {
		logger.Errorf("create room: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	for _, uid := range room.InvitedUsers.Elems() {
		h.hub.SendToUser(uid, ws.Event{
			Type:    ws.EventInvitationCreated,
			Payload: ws.InvitationPayload{RoomID: room.ID, UserID: uid, ActorID: requester, RoomName: room.Name},
		})
		h.notifyInvitation(r.Context(), room, uid, requester)
	}
	h.hub.SendToUser(requester, ws.Event{
		Type:    ws.EventRoomCreated,
		Payload: ws.RoomEventPayload{RoomID: room.ID, ActorID: requester},
	})
	writeJSON(w, http.StatusCreated, room)
}

// Get обрабатывает GET /api/rooms/{id}.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("room.Get", time.Now())()
	requester := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	stored, err := h.loadRoom(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		logger.Errorf("get room %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	}

	decision := authz.Evaluate(authz.Request{
		Op:          authz.OpRead,
		RequesterID: requester,
		Prior:       stored.Room,
	})
	if !decision.Allowed {
		writeDenial(w, decision)
		return
	}
	writeJSON(w, http.StatusOK, stored.Room)
}

// Update обрабатывает PATCH /api/rooms/{id}: тело — merge-патч.
func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("room.Update", time.Now())()
	requester := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	var patch authz.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	for attempt := 0; attempt < updateRetryLimit; attempt++ {
		stored, err := h.loadRoom(r.Context(), id)
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if err != nil {
			logger.Errorf("update room %s: load: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to load room")
			return
		}

		decision := authz.Evaluate(authz.Request{
			Op:          authz.OpUpdate,
			RequesterID: requester,
			Prior:       stored.Room,
			Patch:       &patch,
		})
		if !decision.Allowed {
			writeDenial(w, decision)
			return
		}

		proposed := authz.Apply(stored.Room, &patch)
		proposed.ID = id
		err = h.repo.Update(r.Context(), id, proposed, stored.Version)
		if errors.Is(err, repository.ErrVersionConflict) {
			// Гонка: документ изменился после чтения prior. Перечитываем
			// и авторизуем заново — вердикт действителен только для
			// состояния, по которому он вынесен.
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if err != nil {
			logger.Errorf("update room %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to update room")
			return
		}

		if err := h.cache.InvalidateRoom(r.Context(), id); err != nil {
			logger.Errorf("invalidate room %s: %v", id, err)
		}
		h.emitEvents(r.Context(), requester, stored.Room, proposed)
		writeJSON(w, http.StatusOK, proposed)
		return
	}
	writeError(w, http.StatusConflict, "room is being modified concurrently, retry")
}

// Delete обрабатывает DELETE /api/rooms/{id}.
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("room.Delete", time.Now())()
	requester := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	stored, err := h.loadRoom(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		logger.Errorf("delete room %s: load: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	}

	decision := authz.Evaluate(authz.Request{
		Op:          authz.OpDelete,
		RequesterID: requester,
		Prior:       stored.Room,
	})
	if !decision.Allowed {
		writeDenial(w, decision)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Errorf("delete room %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete room")
		return
	}
	if err := h.cache.InvalidateRoom(r.Context(), id); err != nil {
		logger.Errorf("invalidate room %s: %v", id, err)
	}
	h.hub.SendToUsers(roomAudience(stored.Room), ws.Event{
		Type:    ws.EventRoomDeleted,
		Payload: ws.RoomEventPayload{RoomID: id, ActorID: requester},
	})
	w.WriteHeader(http.StatusNoContent)
}

// Query обрабатывает POST /api/rooms/query: тело — предикат списка.
func (h *RoomHandler) Query(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("room.Query", time.Now())()
	requester := middleware.GetUserID(r.Context())

	var q authz.QueryPredicate
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	decision := authz.Evaluate(authz.Request{
		Op:          authz.OpQuery,
		RequesterID: requester,
		Query:       &q,
	})
	if !decision.Allowed {
		writeDenial(w, decision)
		return
	}

	rooms, err := h.repo.List(r.Context(), &q)
	if err != nil {
		logger.Errorf("query rooms: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to query rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// loadRoom читает документ из кеша, при промахе — из БД с заполнением кеша.
func (h *RoomHandler) loadRoom(ctx context.Context, id string) (*repository.StoredRoom, error) {
	if data, ok, err := h.cache.GetRoom(ctx, id); err == nil && ok {
		var cached struct {
			Room    *model.Room `json:"room"`
			Version int64       `json:"version"`
		}
		if err := json.Unmarshal(data, &cached); err == nil && cached.Room != nil {
			cached.Room.ID = id
			return &repository.StoredRoom{Room: cached.Room, Version: cached.Version}, nil
		}
	} else if err != nil {
		logger.Errorf("cache get room %s: %v", id, err)
	}

	stored, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(map[string]any{"room": stored.Room, "version": stored.Version}); err == nil {
		if err := h.cache.SetRoom(ctx, id, data); err != nil {
			logger.Errorf("cache set room %s: %v", id, err)
		}
	}
	return stored, nil
}

// roomAudience — все, кому доставляются события комнаты: участники,
// мастера и приглашённые.
func roomAudience(room *model.Room) []string {
	out := make([]string, 0, len(room.Users)+room.MasterUsers.Len()+room.InvitedUsers.Len())
	for uid := range room.Users {
		out = append(out, uid)
	}
	out = append(out, room.MasterUsers.Elems()...)
	out = append(out, room.InvitedUsers.Elems()...)
	return out
}

// emitEvents превращает дифф prior→proposed в события ленты и пуши.
func (h *RoomHandler) emitEvents(ctx context.Context, actor string, prior, proposed *model.Room) {
	d := authz.Analyze(prior, proposed)
	audience := roomAudience(proposed)
	roomID := proposed.ID
	structural := false

	for _, uid := range d.UsersAdded {
		structural = true
		h.hub.SendToUsers(audience, ws.Event{
			Type:    ws.EventMemberJoined,
			Payload: ws.MembershipPayload{RoomID: roomID, UserID: uid, ActorID: actor},
		})
	}
	for _, uid := range d.UsersRemoved {
		structural = true
		h.hub.SendToUser(uid, ws.Event{
			Type:    ws.EventMemberLeft,
			Payload: ws.MembershipPayload{RoomID: roomID, UserID: uid, ActorID: actor},
		})
		h.hub.SendToUsers(audience, ws.Event{
			Type:    ws.EventMemberLeft,
			Payload: ws.MembershipPayload{RoomID: roomID, UserID: uid, ActorID: actor},
		})
	}

	if delta, ok := d.Sets[authz.FieldInvitedUsers]; ok {
		structural = true
		rejected := d.Sets[authz.FieldRejectedUsers]
		for _, uid := range delta.Added {
			h.hub.SendToUser(uid, ws.Event{
				Type:    ws.EventInvitationCreated,
				Payload: ws.InvitationPayload{RoomID: roomID, UserID: uid, ActorID: actor, RoomName: proposed.Name},
			})
			h.notifyInvitation(ctx, proposed, uid, actor)
		}
		for _, uid := range delta.Removed {
			ev := ws.EventInvitationWithdrawn
			if contains(rejected.Added, uid) {
				ev = ws.EventInvitationRejected
			}
			h.hub.SendToUsers(audience, ws.Event{
				Type:    ev,
				Payload: ws.InvitationPayload{RoomID: roomID, UserID: uid, ActorID: actor},
			})
		}
	}

	if delta, ok := d.Sets[authz.FieldBlockedUsers]; ok {
		structural = true
		for _, uid := range delta.Added {
			h.hub.SendToUsers(audience, ws.Event{
				Type:    ws.EventUserBlocked,
				Payload: ws.BlockPayload{RoomID: roomID, UserID: uid, ActorID: actor},
			})
		}
		for _, uid := range delta.Removed {
			h.hub.SendToUsers(audience, ws.Event{
				Type:    ws.EventUserUnblocked,
				Payload: ws.BlockPayload{RoomID: roomID, UserID: uid, ActorID: actor},
			})
		}
	}

	if !structural || len(d.Scalars) > 0 || len(d.MetaChanged) > 0 {
		h.hub.SendToUsers(audience, ws.Event{
			Type:    ws.EventRoomUpdated,
			Payload: ws.RoomEventPayload{RoomID: roomID, ActorID: actor},
		})
	}
}

// notifyInvitation отправляет приглашённому пуш (если пуши включены).
func (h *RoomHandler) notifyInvitation(ctx context.Context, room *model.Room, uid, actor string) {
	if h.push == nil {
		return
	}
	title := room.Name
	if title == "" {
		title = "Новая комната"
	}
	data := map[string]string{"room_id": room.ID, "actor_id": actor}
	go h.push.Notify(context.WithoutCancel(ctx), uid, title, "Вас пригласили в комнату", data)
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
