// Package credential keeps the small key-value area next to the database:
// the email to password hash map and the active email.
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout; it holds exactly two keys.
type document struct {
	AccountCredentials string `yaml:"account_credentials"`
	CurrentEmail       string `yaml:"current_email"`
}

// Store is a file-backed credential area. Reads never fail: a missing or
// corrupt file reads as empty.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Hash returns the stored hash for email.
func (s *Store) Hash(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := DecodeCredentials(s.read().AccountCredentials)[email]
	return hash, ok
}

// Has reports whether email has a credential.
func (s *Store) Has(email string) bool {
	_, ok := s.Hash(email)
	return ok
}

// SetCredential stores hash for email. When activate is set the email also
// becomes the active one, in the same write.
func (s *Store) SetCredential(email, hash string, activate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	creds := DecodeCredentials(doc.AccountCredentials)
	creds[email] = hash
	doc.AccountCredentials = EncodeCredentials(creds)
	if activate {
		doc.CurrentEmail = email
	}

	return s.write(doc)
}

// CurrentEmail returns the active email, empty when nobody is signed in.
func (s *Store) CurrentEmail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().CurrentEmail
}

// SetCurrentEmail replaces the active email; an empty email clears it.
func (s *Store) SetCurrentEmail(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	doc.CurrentEmail = email
	return s.write(doc)
}

func (s *Store) read() document {
	var doc document

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read credential store, treating as empty",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return doc
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("Corrupt credential store, treating as empty",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return document{}
	}

	return doc
}

// write replaces the file atomically.
func (s *Store) write(doc document) error {
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}

	return nil
}

// EncodeCredentials serializes the map as sorted "email|hash" lines.
func EncodeCredentials(creds map[string]string) string {
	emails := make([]string, 0, len(creds))
	for email := range creds {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	lines := make([]string, 0, len(emails))
	for _, email := range emails {
		lines = append(lines, email+"|"+creds[email])
	}
	return strings.Join(lines, "\n")
}

// DecodeCredentials parses "email|hash" lines. Malformed lines are skipped.
func DecodeCredentials(raw string) map[string]string {
	creds := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		email, hash, ok := strings.Cut(line, "|")
		if !ok || email == "" || hash == "" {
			continue
		}
		creds[email] = hash
	}
	return creds
}
