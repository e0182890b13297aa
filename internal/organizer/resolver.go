package organizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/store"
)

// ensurePathEntity walks a slash-delimited destination path, descending into
// existing folders and creating missing segments. Non-terminal segments are
// folders, the terminal segment is a file. wasCreated is true only when the
// terminal file was newly created by this call; concurrent calls racing on
// the same segment treat "already exists" as found.
func (s *Service) ensurePathEntity(ownerID, path string) (*store.Entity, bool, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false, fmt.Errorf("organizer: empty destination path %q: %w", path, apperr.ErrPathResolution)
	}

	parentID := ""
	for _, seg := range segments[:len(segments)-1] {
		folder, err := s.lookupOrCreate(ownerID, parentID, store.KindFolder, seg)
		if err != nil {
			return nil, false, err
		}
		parentID = folder.ID
	}

	terminal := segments[len(segments)-1]

	// Destinations must be files. A folder occupying the terminal title means
	// the planner proposed a folder, which is never a valid destination.
	if _, err := s.store.ChildByTitle(ownerID, parentID, store.KindFolder, terminal); err == nil {
		return nil, false, fmt.Errorf("organizer: %q is a folder: %w", path, apperr.ErrPathResolution)
	}

	file, err := s.store.ChildByTitle(ownerID, parentID, store.KindFile, terminal)
	if err == nil {
		return file, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, fmt.Errorf("organizer: lookup file %q: %w", terminal, err)
	}

	created, err := s.store.InsertEntity(store.Entity{
		OwnerID:  ownerID,
		Title:    terminal,
		Kind:     store.KindFile,
		ParentID: parentID,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			// Lost the race: another chunk created it first.
			file, err := s.store.ChildByTitle(ownerID, parentID, store.KindFile, terminal)
			if err != nil {
				return nil, false, fmt.Errorf("organizer: re-lookup after race: %w", err)
			}
			return file, false, nil
		}
		return nil, false, fmt.Errorf("organizer: create file %q: %w", terminal, err)
	}
	return created, true, nil
}

// lookupOrCreate finds a child by title or creates it, tolerating creation
// races.
func (s *Service) lookupOrCreate(ownerID, parentID, kind, title string) (*store.Entity, error) {
	e, err := s.store.ChildByTitle(ownerID, parentID, kind, title)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("organizer: lookup %s %q: %w", kind, title, err)
	}

	created, err := s.store.InsertEntity(store.Entity{
		OwnerID:  ownerID,
		Title:    title,
		Kind:     kind,
		ParentID: parentID,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return s.store.ChildByTitle(ownerID, parentID, kind, title)
		}
		return nil, fmt.Errorf("organizer: create %s %q: %w", kind, title, err)
	}
	return created, nil
}

func splitPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
