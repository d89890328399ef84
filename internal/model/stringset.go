package model

import (
	"encoding/json"
	"sort"
)

// StringSet — множество идентификаторов с O(1) проверкой членства.
// В JSON сериализуется как отсортированный массив строк (формат хранения
// совпадает с форматом старой схемы, где это были массивы).
type StringSet map[string]struct{}

// NewStringSet создаёт множество из элементов.
func NewStringSet(elems ...string) StringSet {
	s := make(StringSet, len(elems))
	for _, e := range elems {
		s[e] = struct{}{}
	}
	return s
}

func (s StringSet) Has(e string) bool {
	_, ok := s[e]
	return ok
}

func (s StringSet) Add(e string) {
	s[e] = struct{}{}
}

func (s StringSet) Remove(e string) {
	delete(s, e)
}

func (s StringSet) Len() int { return len(s) }

// Elems возвращает элементы в отсортированном порядке (детерминизм вывода).
func (s StringSet) Elems() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Clone возвращает копию множества; nil остаётся nil.
func (s StringSet) Clone() StringSet {
	if s == nil {
		return nil
	}
	cp := make(StringSet, len(s))
	for e := range s {
		cp[e] = struct{}{}
	}
	return cp
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Elems())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var elems []string
	if err := json.Unmarshal(data, &elems); err != nil {
		return err
	}
	*s = NewStringSet(elems...)
	return nil
}
