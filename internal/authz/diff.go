package authz

import (
	"sort"

	"github.com/roomgate/internal/model"
)

// ScalarChange — изменение скалярного поля (старое и новое значение).
type ScalarChange struct {
	Field string
	Old   any
	New   any
}

// SetDelta — поэлементная разница одного set-поля.
type SetDelta struct {
	Added   []string
	Removed []string
}

// Diff — каноническое описание разницы prior → proposed. Дифф строится по
// значениям: запись поля тем же значением изменением не считается, поэтому
// идемпотентный повтор патча даёт пустой дифф.
type Diff struct {
	// Scalars — изменённые скалярные поля по имени.
	Scalars map[string]ScalarChange
	// Sets — дельты set-полей (только непустые).
	Sets map[string]SetDelta
	// UsersAdded/UsersRemoved — появившиеся и исчезнувшие ключи users.
	UsersAdded   []string
	UsersRemoved []string
	// MetaChanged — участники, у которых изменились только meta-значения
	// (ключ присутствует и в prior, и в proposed).
	MetaChanged []string
}

// IsEmpty — дифф не содержит ни одного изменения.
func (d *Diff) IsEmpty() bool {
	return len(d.Scalars) == 0 && len(d.Sets) == 0 &&
		len(d.UsersAdded) == 0 && len(d.UsersRemoved) == 0 &&
		len(d.MetaChanged) == 0
}

// HasMembershipChange — состав ключей users меняется.
func (d *Diff) HasMembershipChange() bool {
	return len(d.UsersAdded) > 0 || len(d.UsersRemoved) > 0
}

// ScalarChanged — поле field присутствует среди изменённых скаляров.
func (d *Diff) ScalarChanged(field string) bool {
	_, ok := d.Scalars[field]
	return ok
}

// Analyze сравнивает prior и proposed и возвращает дифф. prior == nil
// трактуется как пустой документ (создание). Оба документа не мутируются.
func Analyze(prior, proposed *model.Room) *Diff {
	if prior == nil {
		prior = &model.Room{}
	}
	if proposed == nil {
		proposed = &model.Room{}
	}
	d := &Diff{
		Scalars: make(map[string]ScalarChange),
		Sets:    make(map[string]SetDelta),
	}
	for field := range scalarFields {
		oldV := scalarValue(prior, field)
		newV := scalarValue(proposed, field)
		if oldV != newV {
			d.Scalars[field] = ScalarChange{Field: field, Old: oldV, New: newV}
		}
	}
	for field := range setFields {
		delta := diffSets(roomSet(prior, field), roomSet(proposed, field))
		if len(delta.Added) > 0 || len(delta.Removed) > 0 {
			d.Sets[field] = delta
		}
	}
	for uid, newMeta := range proposed.Users {
		oldMeta, existed := prior.Users[uid]
		if !existed {
			d.UsersAdded = append(d.UsersAdded, uid)
			continue
		}
		if oldMeta != newMeta {
			d.MetaChanged = append(d.MetaChanged, uid)
		}
	}
	for uid := range prior.Users {
		if _, kept := proposed.Users[uid]; !kept {
			d.UsersRemoved = append(d.UsersRemoved, uid)
		}
	}
	sort.Strings(d.UsersAdded)
	sort.Strings(d.UsersRemoved)
	sort.Strings(d.MetaChanged)
	return d
}

func diffSets(old, new model.StringSet) SetDelta {
	var delta SetDelta
	for e := range new {
		if !old.Has(e) {
			delta.Added = append(delta.Added, e)
		}
	}
	for e := range old {
		if !new.Has(e) {
			delta.Removed = append(delta.Removed, e)
		}
	}
	sort.Strings(delta.Added)
	sort.Strings(delta.Removed)
	return delta
}
