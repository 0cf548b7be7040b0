package project

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/JeredArc/jeredmgr/internal/errors"
)

const recordExt = ".yaml"

// recordPerm keeps record files owner-only because local-auth records
// carry a plaintext token.
const recordPerm = 0o600

// recordFile is the on-disk shape of a record. Unknown fields land in
// Extra and survive a load/save round trip untouched.
type recordFile struct {
	Enabled bool           `yaml:"enabled"`
	Type    string         `yaml:"type"`
	RepoURL string         `yaml:"repo_url,omitempty"`
	SubPath string         `yaml:"sub_path,omitempty"`
	Auth    string         `yaml:"auth,omitempty"`
	Token   string         `yaml:"token,omitempty"`
	Path    string         `yaml:"path,omitempty"`
	Extra   map[string]any `yaml:",inline"`
}

// Store manages project records in a single directory, one YAML file per
// project named <id>.yaml. The file name is the identity; the id is never
// written inside the file.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first write, not here, so read-only commands work against a missing
// store without side effects.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

// Load reads a single record by id.
func (s *Store) Load(id string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.recordPath(id))
	if os.IsNotExist(err) {
		return nil, errors.NewNotFoundError("project", id).
			WithCause(errors.ErrProjectNotFound)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading project %s", id)
	}
	return decodeRecord(id, data)
}

// Save persists a record atomically with owner-only permissions. A save
// re-applies the restrictive mode even if the file on disk has drifted.
func (s *Store) Save(r *Record) error {
	if err := ValidateID(r.ID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "creating project directory")
	}
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.recordPath(r.ID), data, recordPerm); err != nil {
		return errors.Wrapf(err, "writing project %s", r.ID)
	}
	return nil
}

// Create adds a new record. It validates the id and type and refuses to
// overwrite an existing project. New projects always start disabled.
func (s *Store) Create(r *Record) error {
	if err := ValidateID(r.ID); err != nil {
		return err
	}
	if r.Type == TypeUnknown {
		return errors.NewValidationError(
			fmt.Sprintf("unknown project type, expected one of %s", strings.Join(KnownTypes(), ", "))).
			WithField("type").
			WithValue(r.TypeName()).
			WithCause(errors.ErrUnknownType)
	}
	if _, err := os.Stat(s.recordPath(r.ID)); err == nil {
		return errors.NewAlreadyExistsError("project", r.ID).
			WithCause(errors.ErrProjectExists)
	}
	r.Enabled = false
	return s.Save(r)
}

// Delete removes a record. Enabled projects must be disabled first so
// their backend installation is torn down before the record disappears.
func (s *Store) Delete(id string) error {
	r, err := s.Load(id)
	if err != nil {
		return err
	}
	if r.Enabled {
		return errors.NewValidationError("project is enabled, disable it before removal").
			WithField("id").
			WithValue(id).
			WithCause(errors.ErrProjectEnabled)
	}
	if err := os.Remove(s.recordPath(id)); err != nil {
		return errors.Wrapf(err, "removing project %s", id)
	}
	return nil
}

// List returns every record in the store, sorted by id. A missing store
// directory is an empty store.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading project directory")
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), recordExt)
		if ValidateID(id) != nil {
			continue
		}
		r, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Resolve expands a selector into records, sorted by id. An empty selector
// or "all" selects every project, a selector containing "*" is a wildcard
// over ids, and anything else is an exact id. Exact misses and wildcards
// matching nothing are errors; "all" over an empty store is not.
func (s *Store) Resolve(selector string) ([]*Record, error) {
	if selector == "" || selector == "all" {
		return s.List()
	}
	if !strings.Contains(selector, "*") {
		r, err := s.Load(selector)
		if err != nil {
			return nil, err
		}
		return []*Record{r}, nil
	}

	re, err := compileWildcard(selector)
	if err != nil {
		return nil, err
	}
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var matched []*Record
	for _, r := range all {
		if re.MatchString(r.ID) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil, errors.NewNotFoundError("project matching", selector).
			WithCause(errors.ErrProjectNotFound)
	}
	return matched, nil
}

// ResolveOne expands a selector that must name exactly one project.
func (s *Store) ResolveOne(selector string) (*Record, error) {
	records, err := s.Resolve(selector)
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		return nil, errors.NewAmbiguousSelectionError(selector, ids)
	}
	return records[0], nil
}

// compileWildcard turns a selector into an anchored regexp where each "*"
// matches any run of characters. There is no escape syntax; a literal "*"
// cannot appear in an id anyway.
func compileWildcard(selector string) (*regexp.Regexp, error) {
	parts := strings.Split(selector, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return nil, errors.NewValidationError("invalid selector pattern").
			WithField("selector").
			WithValue(selector).
			WithCause(err)
	}
	return re, nil
}

func decodeRecord(id string, data []byte) (*Record, error) {
	var f recordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewValidationError("malformed project record").
			WithField("id").
			WithValue(id).
			WithCause(err)
	}
	r := &Record{
		ID:        id,
		Enabled:   f.Enabled,
		Type:      ParseType(f.Type),
		RepoURL:   f.RepoURL,
		SubPath:   f.SubPath,
		AuthMode:  ParseAuthMode(f.Auth),
		AuthToken: f.Token,
		Path:      f.Path,
		extra:     f.Extra,
	}
	if r.Type == TypeUnknown {
		r.rawType = f.Type
	}
	return r, nil
}

func encodeRecord(r *Record) ([]byte, error) {
	f := recordFile{
		Enabled: r.Enabled,
		Type:    r.TypeName(),
		RepoURL: r.RepoURL,
		SubPath: r.SubPath,
		Path:    r.Path,
		Extra:   r.extra,
	}
	if r.AuthMode != AuthNone {
		f.Auth = r.AuthMode.String()
	}
	if r.AuthMode == AuthLocal {
		f.Token = r.AuthToken
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding project %s", r.ID)
	}
	return data, nil
}
