package accounts

import (
	"fmt"
)

// Resolver turns an optional explicit account selection into the ordered set
// of accounts eligible for triggering.
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the eligible account emails.
//
// A non-nil selection is filtered to accounts that exist in the directory
// with a usable status, preserving selection order. An empty selection is an
// explicit "use no accounts" and yields an empty result.
//
// A nil selection falls back: the active account if usable, else the first
// usable account in directory order, else nothing. The fallback branch never
// returns more than one account.
func (r *Resolver) Resolve(selected *[]string) ([]string, error) {
	if selected != nil {
		return r.resolveExplicit(*selected)
	}
	return r.resolveFallback()
}

func (r *Resolver) resolveExplicit(selected []string) ([]string, error) {
	if len(selected) == 0 {
		return []string{}, nil
	}

	accounts, err := r.dir.List()
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(selected))
	for _, email := range selected {
		acc, ok := accounts.FindByEmail(email)
		if !ok || !acc.Status.Usable() {
			continue
		}
		result = append(result, email)
	}
	return result, nil
}

func (r *Resolver) resolveFallback() ([]string, error) {
	active, ok, err := r.dir.Active()
	if err != nil {
		return nil, err
	}
	if ok && active.Status.Usable() {
		return []string{active.Email}, nil
	}

	accounts, err := r.dir.List()
	if err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		if acc.Status.Usable() {
			return []string{acc.Email}, nil
		}
	}
	return nil, nil
}

// AllUsable returns every usable account in directory order. Reset-mode
// triggering uses this instead of the configured selection so no account's
// quota goes to waste.
func (r *Resolver) AllUsable() ([]string, error) {
	accounts, err := r.dir.List()
	if err != nil {
		return nil, err
	}
	return accounts.FilterUsable().Emails(), nil
}

// HasUsableAccounts reports whether any account could be triggered.
func (r *Resolver) HasUsableAccounts() (bool, error) {
	usable, err := r.AllUsable()
	if err != nil {
		return false, err
	}
	return len(usable) > 0, nil
}

// ResolutionStatus describes the current resolution for display.
type ResolutionStatus struct {
	Selected []string `json:"selected,omitempty"`
	Resolved []string `json:"resolved"`
	Fallback bool     `json:"fallback"`
}

// Status returns a read-only summary of what Resolve would do.
func (r *Resolver) Status(selected *[]string) (*ResolutionStatus, error) {
	resolved, err := r.Resolve(selected)
	if err != nil {
		return nil, err
	}
	status := &ResolutionStatus{
		Resolved: resolved,
		Fallback: selected == nil,
	}
	if selected != nil {
		status.Selected = *selected
	}
	return status, nil
}

// String implements fmt.Stringer for log output.
func (s *ResolutionStatus) String() string {
	if s.Fallback {
		return fmt.Sprintf("fallback -> %v", s.Resolved)
	}
	return fmt.Sprintf("explicit %v -> %v", s.Selected, s.Resolved)
}
