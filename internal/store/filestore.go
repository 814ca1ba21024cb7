package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore keeps one YAML file per entry under basePath/<project>/. Updates
// use a smart merge: the existing file is loaded as a node tree so manually
// added fields and field ordering survive an overwrite.
type FileStore struct {
	basePath string
}

// NewFileStore creates a FileStore rooted at basePath.
func NewFileStore(basePath string) *FileStore {
	return &FileStore{basePath: basePath}
}

func (s *FileStore) projectDir(projectID string) string {
	return filepath.Join(s.basePath, projectID)
}

func (s *FileStore) ListEntries(ctx context.Context, projectID string) ([]Entry, error) {
	dir := s.projectDir(projectID)
	items, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading entries dir: %w", err)
	}

	var entries []Entry
	for _, item := range items {
		if item.IsDir() || !strings.HasSuffix(item.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, item.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading entry file: %w", err)
		}
		var e Entry
		if err := yaml.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("parsing entry %s: %w", item.Name(), err)
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (s *FileStore) CreateEntry(ctx context.Context, projectID string, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = NewID()
	}
	e.ProjectID = projectID
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	dir := s.projectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating entries dir: %w", err)
	}

	data, err := yaml.Marshal(&e)
	if err != nil {
		return "", fmt.Errorf("marshaling entry: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, e.ID+".yaml"), data, 0o644); err != nil {
		return "", fmt.Errorf("writing entry file: %w", err)
	}
	return e.ID, nil
}

func (s *FileStore) UpdateEntry(ctx context.Context, id string, e Entry) error {
	path, err := s.findEntryFile(id)
	if err != nil {
		return err
	}

	existingData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading existing entry: %w", err)
	}

	var existingDoc yaml.Node
	if err := yaml.Unmarshal(existingData, &existingDoc); err != nil {
		return fmt.Errorf("parsing existing entry: %w", err)
	}

	var prev Entry
	if err := yaml.Unmarshal(existingData, &prev); err != nil {
		return fmt.Errorf("parsing existing entry: %w", err)
	}

	e.ID = id
	e.ProjectID = prev.ProjectID
	e.CreatedAt = prev.CreatedAt
	e.UpdatedAt = time.Now()
	updatedData, err := yaml.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	var updatedDoc yaml.Node
	if err := yaml.Unmarshal(updatedData, &updatedDoc); err != nil {
		return fmt.Errorf("parsing updated entry: %w", err)
	}

	merged := mergeNodes(&existingDoc, &updatedDoc)
	out, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshaling merged entry: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing merged entry: %w", err)
	}
	return nil
}

func (s *FileStore) DeleteEntry(ctx context.Context, id string) error {
	path, err := s.findEntryFile(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing entry file: %w", err)
	}
	return nil
}

// findEntryFile locates an entry file by id across project directories.
func (s *FileStore) findEntryFile(id string) (string, error) {
	projects, err := os.ReadDir(s.basePath)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading store dir: %w", err)
	}

	for _, p := range projects {
		if !p.IsDir() {
			continue
		}
		candidate := filepath.Join(s.basePath, p.Name(), id+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ErrNotFound
}

// mergeNodes overlays src mapping keys onto dst mapping, preserving dst
// order and any keys in dst not present in src.
func mergeNodes(dst, src *yaml.Node) *yaml.Node {
	if dst.Kind == yaml.DocumentNode && len(dst.Content) > 0 {
		dst = dst.Content[0]
	}
	if src.Kind == yaml.DocumentNode && len(src.Content) > 0 {
		src = src.Content[0]
	}

	if dst.Kind != yaml.MappingNode || src.Kind != yaml.MappingNode {
		return src
	}

	srcMap := make(map[string]*yaml.Node)
	for i := 0; i+1 < len(src.Content); i += 2 {
		srcMap[src.Content[i].Value] = src.Content[i+1]
	}

	// Update existing keys in dst order
	seen := make(map[string]bool)
	for i := 0; i+1 < len(dst.Content); i += 2 {
		key := dst.Content[i].Value
		if srcVal, ok := srcMap[key]; ok {
			dst.Content[i+1] = srcVal
			seen[key] = true
		}
	}

	// Append new keys from src not in dst
	for i := 0; i+1 < len(src.Content); i += 2 {
		key := src.Content[i].Value
		if !seen[key] {
			dst.Content = append(dst.Content, src.Content[i], src.Content[i+1])
		}
	}

	return dst
}
