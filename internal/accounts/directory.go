// Package accounts exposes the local account directory and resolves which
// accounts are eligible for triggering.
package accounts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wakeguard/wakeguard/internal/errors"
	"github.com/wakeguard/wakeguard/internal/models"
)

// ActiveFile names the document recording the currently active account.
const ActiveFile = "active.json"

// Directory lists known accounts and identifies the active one.
type Directory interface {
	List() (models.AccountSlice, error)
	Active() (*models.Account, bool, error)
}

// FileDirectory reads accounts from a directory of per-account JSON files,
// the layout the auth flow writes: <email>.json plus an active.json pointer.
type FileDirectory struct {
	dir string
}

// NewFileDirectory returns a directory over the given auth path.
func NewFileDirectory(dir string) *FileDirectory {
	return &FileDirectory{dir: dir}
}

// List returns all accounts in lexical file order. A missing directory is an
// empty directory, not an error.
func (d *FileDirectory) List() (models.AccountSlice, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &errors.ErrFileRead{Path: d.dir, Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == ActiveFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var accounts models.AccountSlice
	for _, name := range names {
		acc, err := d.readAccount(filepath.Join(d.dir, name))
		if err != nil {
			// A single unreadable account file should not hide the rest.
			continue
		}
		accounts = append(accounts, *acc)
	}
	return accounts, nil
}

// Active returns the account named by active.json, if any.
func (d *FileDirectory) Active() (*models.Account, bool, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, ActiveFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &errors.ErrFileRead{Path: filepath.Join(d.dir, ActiveFile), Err: err}
	}

	var active struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &active); err != nil {
		return nil, false, &errors.ErrStateCorrupt{Document: ActiveFile, Err: err}
	}
	if active.Email == "" {
		return nil, false, nil
	}

	accounts, err := d.List()
	if err != nil {
		return nil, false, err
	}
	acc, ok := accounts.FindByEmail(active.Email)
	if !ok {
		return nil, false, nil
	}
	return acc, true, nil
}

func (d *FileDirectory) readAccount(path string) (*models.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ErrFileRead{Path: path, Err: err}
	}
	var acc models.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, &errors.ErrStateCorrupt{Document: filepath.Base(path), Err: err}
	}
	if acc.Email == "" {
		acc.Email = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return &acc, nil
}
