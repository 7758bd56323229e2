package storage

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/jwebster45206/story-forge/pkg/content"
)

// Kind is a deletable unit of content.
type Kind int

const (
	KindArea Kind = iota
	KindAdventure
	KindLog
	KindLocation
)

func (k Kind) String() string {
	switch k {
	case KindArea:
		return "area"
	case KindAdventure:
		return "adventure"
	case KindLog:
		return "log"
	case KindLocation:
		return "location"
	default:
		return "unknown"
	}
}

// ParseKind accepts the names used by the CLI and viewer.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "area", "areas":
		return KindArea, nil
	case "adventure", "adventures":
		return KindAdventure, nil
	case "log", "logs":
		return KindLog, nil
	case "location", "locations":
		return KindLocation, nil
	}
	return 0, fmt.Errorf("unknown content kind %q", s)
}

// target is a set of units of one kind inside one area. For KindArea,
// Names are area names and Area is empty.
type target struct {
	Kind  Kind
	Area  string
	Names []string
}

// edge resolves the dependents of a target.
type edge func(s *Store, t target) ([]target, error)

// dependents is the delete graph. Dependents are removed before the unit itself.
var dependents = map[Kind][]edge{
	KindArea: {
		(*Store).chainedAreas,
		(*Store).areaAdventures,
	},
	KindAdventure: {sameNames(KindLog)},
	KindLog:       {sameNames(KindLocation)},
}

func sameNames(k Kind) edge {
	return func(_ *Store, t target) ([]target, error) {
		return []target{{Kind: k, Area: t.Area, Names: t.Names}}, nil
	}
}

// Delete removes the named units of kind and everything downstream of them.
// area is ignored for KindArea. It returns one message per removed file or row.
func (s *Store) Delete(kind Kind, area string, names ...string) ([]string, error) {
	var msgs []string
	visited := map[string]bool{}
	err := s.cascade(target{Kind: kind, Area: area, Names: names}, visited, &msgs)
	return msgs, err
}

func (s *Store) cascade(t target, visited map[string]bool, msgs *[]string) error {
	t.Names = slices.DeleteFunc(slices.Clone(t.Names), func(n string) bool {
		key := fmt.Sprintf("%d/%s/%s", t.Kind, t.Area, n)
		if visited[key] {
			return true
		}
		visited[key] = true
		return false
	})
	if len(t.Names) == 0 {
		return nil
	}

	for _, resolve := range dependents[t.Kind] {
		deps, err := resolve(s, t)
		if err != nil {
			return err
		}
		for _, d := range deps {
			if err := s.cascade(d, visited, msgs); err != nil {
				return err
			}
		}
	}

	removed, err := s.deleteUnits(t)
	*msgs = append(*msgs, removed...)
	return err
}

func (s *Store) chainedAreas(t target) ([]target, error) {
	areas, err := s.LoadAreas()
	if err != nil {
		return nil, err
	}
	var next []string
	for _, a := range areas {
		if slices.Contains(t.Names, a.Previous) {
			next = append(next, a.Name)
		}
	}
	if len(next) == 0 {
		return nil, nil
	}
	return []target{{Kind: KindArea, Names: next}}, nil
}

func (s *Store) areaAdventures(t target) ([]target, error) {
	var out []target
	for _, area := range t.Names {
		names, err := s.AdventureNames(area)
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			out = append(out, target{Kind: KindAdventure, Area: area, Names: names})
		}
	}
	return out, nil
}

func (s *Store) deleteUnits(t target) ([]string, error) {
	switch t.Kind {
	case KindLocation:
		return s.deleteLocations(t.Area, t.Names)
	case KindLog:
		return s.deleteLogs(t.Area, t.Names)
	case KindAdventure:
		return s.deleteAdventures(t.Area, t.Names)
	case KindArea:
		return s.deleteAreas(t.Names)
	}
	return nil, fmt.Errorf("cannot delete %s", t.Kind)
}

func (s *Store) deleteLocations(area string, names []string) ([]string, error) {
	var msgs []string
	for _, name := range names {
		path := s.LocationPath(area, name)
		ok, err := removeFile(path)
		if err != nil {
			return msgs, err
		}
		if ok {
			msgs = append(msgs, "Deleted "+path)
		}
	}
	return s.deleteCheckRows(msgs, CheckLocation, area, names)
}

func (s *Store) deleteLogs(area string, names []string) ([]string, error) {
	var msgs []string
	for _, name := range names {
		for _, path := range []string{s.LogPath(area, name), s.LogTempPath(area, name)} {
			ok, err := removeFile(path)
			if err != nil {
				return msgs, err
			}
			if ok {
				msgs = append(msgs, "Deleted "+path)
			}
		}
	}
	return s.deleteCheckRows(msgs, CheckLog, area, names)
}

func (s *Store) deleteAdventures(area string, names []string) ([]string, error) {
	var msgs []string
	adventures, err := s.LoadAdventures(area)
	if err != nil {
		return nil, err
	}

	path := s.AdventureTablePath(area)
	n, err := DeleteRows(path, names...)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		msgs = append(msgs, fmt.Sprintf("Deleted %d rows from %s", n, path))
	}

	// a locked adventure is the target of its predecessor's 次の冒険 link
	for _, adv := range adventures {
		if !slices.Contains(names, adv.Name) || adv.Previous == "" {
			continue
		}
		if m, err := s.clearAdventureNext(adv.Previous, adv.Name); err != nil {
			return msgs, err
		} else if m != "" {
			msgs = append(msgs, m)
		}
	}
	return s.deleteCheckRows(msgs, CheckAdventure, area, names)
}

func (s *Store) clearAdventureNext(previous, name string) (string, error) {
	_, _, prevArea, err := content.ParseAdventureName(previous)
	if err != nil {
		return "", nil
	}
	prev, err := s.LoadAdventure(prevArea, previous)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if prev.Next != name {
		return "", nil
	}
	if err := s.SetAdventureNext(prevArea, previous, ""); err != nil {
		return "", err
	}
	return fmt.Sprintf("Cleared next adventure of %s", previous), nil
}

func (s *Store) deleteAreas(names []string) ([]string, error) {
	var msgs []string
	areas, err := s.LoadAreas()
	if err != nil {
		return nil, err
	}

	for _, a := range areas {
		if !slices.Contains(names, a.Name) || a.Previous == "" || slices.Contains(names, a.Previous) {
			continue
		}
		if err := s.SetAreaNext(a.Previous, ""); err != nil && !errors.Is(err, ErrNotFound) {
			return msgs, err
		}
		msgs = append(msgs, fmt.Sprintf("Cleared next area of %s", a.Previous))
	}

	levels, err := s.AreaLevels()
	if err != nil {
		return msgs, err
	}
	for _, level := range levels {
		path := s.AreaTablePath(level)
		n, err := DeleteRows(path, names...)
		if err != nil {
			return msgs, err
		}
		if n > 0 {
			msgs = append(msgs, fmt.Sprintf("Deleted %d rows from %s", n, path))
		}
	}

	for _, name := range names {
		for _, dir := range []string{s.AreaDir(name), s.CheckDir(name)} {
			if !Exists(dir) {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				return msgs, fmt.Errorf("failed to remove %s: %w", dir, err)
			}
			msgs = append(msgs, "Deleted "+dir)
		}
	}
	return s.deleteCheckRows(msgs, CheckArea, "", names)
}

func (s *Store) deleteCheckRows(msgs []string, kind CheckKind, area string, names []string) ([]string, error) {
	path := s.CheckPath(kind, area)
	n, err := DeleteRows(path, names...)
	if err != nil {
		return msgs, err
	}
	if n > 0 {
		msgs = append(msgs, fmt.Sprintf("Deleted %d rows from %s", n, path))
	}
	return msgs, nil
}
