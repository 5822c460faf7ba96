package barter

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"machinebarter.dev/barter/internal/credentials"
	"machinebarter.dev/barter/pkg/prompt"
	"machinebarter.dev/barter/pkg/transform"
)

var ErrCredentialUnavailable = errors.New("credential not found in any vault")

// credentialResolver answers redacted secrets from the configured vaults first
// and asks the prompter only when no vault has a value.
type credentialResolver struct {
	machine  string
	stores   []credentials.Store
	prompter prompt.Prompter
	noPrompt bool
}

func (r *credentialResolver) Credential(ctx context.Context, req transform.CredentialRequest) (string, error) {
	filter := credentials.Filter{Machine: r.machine, Driver: req.Driver}
	for _, s := range r.stores {
		found, err := s.Lookup(ctx, filter)
		if err != nil {
			return "", fmt.Errorf("error looking up credentials: %w", err)
		}
		if v, ok := found[req.Field].(string); ok && v != "" {
			log.Debug("using vault credential", "field", req.Field, "machine", r.machine, "driver", req.Driver)
			return v, nil
		}
	}
	if r.noPrompt || r.prompter == nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialUnavailable, req.Field)
	}
	if req.Hidden {
		return r.prompter.ReadSecret(req.Label)
	}
	return r.prompter.ReadLine(req.Label)
}
