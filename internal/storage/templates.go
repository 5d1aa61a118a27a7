package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/settings"
)

// TemplateExt is the file suffix of a saved template.
const TemplateExt = ".tpl"

var ErrTemplateNotFound = errors.New("storage: template not found")

// TemplateStore keeps named settings records, one file per template,
// each holding a single CSV line.
type TemplateStore struct {
	baseDir string
}

func NewTemplateStore(baseDir string) *TemplateStore {
	return &TemplateStore{baseDir: baseDir}
}

func (s *TemplateStore) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *TemplateStore) Dir() string { return s.baseDir }

func (s *TemplateStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: template name %q", dynamo.ErrInput, name)
	}
	return filepath.Join(s.baseDir, name+TemplateExt), nil
}

// Save validates set and writes it under name, replacing any template
// with the same name.
func (s *TemplateStore) Save(name string, set settings.Settings) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := settings.Validate(set); err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.baseDir, "."+name+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(settings.Encode(set)); err != nil {
		tmp.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *TemplateStore) Load(name string) (settings.Settings, error) {
	path, err := s.path(name)
	if err != nil {
		return settings.Settings{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings.Settings{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return settings.Settings{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return settings.Settings{}, fmt.Errorf("%w: %s: %v", dynamo.ErrDecode, name, err)
	}
	return settings.Decode(record)
}

func (s *TemplateStore) Exists(name string) bool {
	path, err := s.path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// List returns the template names in lexical order.
func (s *TemplateStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		n := entry.Name()
		if entry.IsDir() || strings.HasPrefix(n, ".") || filepath.Ext(n) != TemplateExt {
			continue
		}
		names = append(names, strings.TrimSuffix(n, TemplateExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *TemplateStore) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return err
	}
	return nil
}
