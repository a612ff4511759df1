package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	authsync "github.com/goliatone/go-auth-sync"
	"github.com/goliatone/go-auth-sync/store/memory"
	goerrors "github.com/goliatone/go-errors"
)

// record is the JSON structure persisted to disk
type record struct {
	Token    string        `json:"token"`
	Identity authsync.User `json:"identity"`
	SavedAt  time.Time     `json:"saved_at"`
}

// Store is a file-backed credential store. The pair survives process
// restarts; listeners are handled by the embedded memory store.
// Not suitable for multiple processes sharing one file.
type Store struct {
	*memory.Store
	path   string
	logger authsync.Logger
}

// Option configures a file Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger authsync.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a file-backed store at the given path.
// If the file exists the pair is loaded from it; an expired token is
// discarded and the file removed. A missing file is an empty store.
func New(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		logger: authsync.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	rec, err := s.load()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load credentials from "+path)
	}

	memOpts := []memory.Option{
		memory.WithPersister(s),
		memory.WithLogger(s.logger),
	}
	if rec != nil {
		memOpts = append(memOpts, memory.WithPair(rec.Token, rec.Identity))
	}

	s.Store = memory.New(memOpts...)
	return s, nil
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Persist writes the pair to disk. It implements memory.Persister.
func (s *Store) Persist(token string, identity authsync.Identity) error {
	user, ok := authsync.UserFromIdentity(identity)
	if !ok {
		return authsync.ErrIncompletePair
	}

	data, err := json.MarshalIndent(record{
		Token:    token,
		Identity: user,
		SavedAt:  time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode credentials")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create credentials directory")
	}

	// write to a temp file then rename, so a crash never leaves a
	// half written file behind
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write credentials")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write credentials")
	}

	return nil
}

// Erase removes the file. It implements memory.Persister.
func (s *Store) Erase() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove credentials")
	}
	return nil
}

func (s *Store) load() (*record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	if rec.Token == "" || rec.Identity.ID() == "" {
		return nil, nil
	}

	if info, err := authsync.InspectToken(rec.Token); err == nil && info.Expired(time.Now()) {
		s.logger.Info("discarding expired credentials for %s", rec.Identity.Email())
		if err := s.Erase(); err != nil {
			s.logger.Warn("unable to remove expired credentials: %v", err)
		}
		return nil, nil
	}

	return &rec, nil
}
