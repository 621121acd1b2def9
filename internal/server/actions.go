package server

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/gpdir16/LocalKeys/internal/vault"
)

type request struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func okResponse(data any) response { return response{Success: true, Data: data} }

func errResponse(msg string) response { return response{Success: false, Error: msg} }

// dispatch routes an authenticated request by action name. Every action
// except status requires an unlocked vault. Typed errors are converted to
// response strings here; nothing below the boundary writes HTTP.
func (s *Server) dispatch(ctx context.Context, req request) response {
	switch req.Action {
	case "status":
		return s.handleStatus()
	case "listProjects", "listSecretKeys", "getSecret", "getBatchSecrets", "setSecret":
	default:
		return errResponse("Unknown action")
	}

	if s.vault.State() != vault.StateUnlocked {
		return errResponse("Vault is locked")
	}

	switch req.Action {
	case "listProjects":
		return s.handleListProjects()
	case "listSecretKeys":
		return s.handleListSecretKeys(req.Data)
	case "getSecret":
		return s.handleGetSecret(ctx, req.Data)
	case "getBatchSecrets":
		return s.handleGetBatchSecrets(ctx, req.Data)
	default: // setSecret
		return s.handleSetSecret(req.Data)
	}
}

func (s *Server) handleStatus() response {
	state := s.vault.State()
	data := map[string]any{
		"state": state.String(),
		"pid":   os.Getpid(),
	}
	if state == vault.StateUnlocked {
		if projects, err := s.vault.GetProjects(); err == nil {
			data["projectCount"] = len(projects)
		}
	}
	return okResponse(data)
}

func (s *Server) handleListProjects() response {
	projects, err := s.vault.GetProjects()
	if err != nil {
		return vaultError(err)
	}
	return okResponse(map[string]any{"projects": projects})
}

func (s *Server) handleListSecretKeys(data json.RawMessage) response {
	var p struct {
		ProjectName string `json:"projectName"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ProjectName == "" {
		return errResponse("projectName required")
	}
	keys, err := s.vault.SecretKeys(p.ProjectName)
	if err != nil {
		return vaultError(err)
	}
	return okResponse(map[string]any{"keys": keys})
}

func (s *Server) handleGetSecret(ctx context.Context, data json.RawMessage) response {
	var p struct {
		ProjectName string `json:"projectName"`
		Key         string `json:"key"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ProjectName == "" || p.Key == "" {
		return errResponse("projectName and key required")
	}

	decision := s.gate.Request(ctx, p.ProjectName, []string{p.Key})
	if !decision.Approved {
		return errResponse(deniedMessage(decision.Reason))
	}

	value, err := s.vault.GetSecret(p.ProjectName, p.Key)
	if err != nil {
		return vaultError(err)
	}
	return okResponse(map[string]any{"value": value})
}

func (s *Server) handleGetBatchSecrets(ctx context.Context, data json.RawMessage) response {
	var p struct {
		ProjectName string   `json:"projectName"`
		Keys        []string `json:"keys"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ProjectName == "" || len(p.Keys) == 0 {
		return errResponse("projectName and keys required")
	}

	// Approval covers the full requested list, even if some keys turn out
	// not to exist.
	decision := s.gate.Request(ctx, p.ProjectName, p.Keys)
	if !decision.Approved {
		return errResponse(deniedMessage(decision.Reason))
	}

	secrets, err := s.vault.GetSecrets(p.ProjectName)
	if err != nil {
		return vaultError(err)
	}

	// Missing keys are silently omitted rather than failing the batch.
	found := map[string]string{}
	for _, k := range p.Keys {
		if v, ok := secrets[k]; ok {
			found[k] = v
		}
	}
	return okResponse(map[string]any{"secrets": found})
}

func (s *Server) handleSetSecret(data json.RawMessage) response {
	var p struct {
		ProjectName string `json:"projectName"`
		Key         string `json:"key"`
		Value       string `json:"value"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ProjectName == "" || p.Key == "" {
		return errResponse("projectName and key required")
	}

	if err := s.vault.SetSecret(p.ProjectName, p.Key, p.Value); err != nil {
		return vaultError(err)
	}
	return okResponse(map[string]any{"set": true})
}

func deniedMessage(reason string) string {
	if reason == "" {
		return "Access denied"
	}
	return "Access denied: " + reason
}

// vaultError maps typed vault failures to response strings without leaking
// internals.
func vaultError(err error) response {
	switch {
	case errors.Is(err, vault.ErrLocked):
		return errResponse("Vault is locked")
	case errors.Is(err, vault.ErrNotFound),
		errors.Is(err, vault.ErrDuplicate),
		errors.Is(err, vault.ErrAlreadyExists):
		return errResponse(err.Error())
	default:
		return errResponse("Internal error")
	}
}
