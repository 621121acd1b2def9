package vault

import (
	"fmt"
	"sort"
	"time"

	"github.com/gpdir16/LocalKeys/internal/audit"
)

// GetProjects lists project metadata, sorted by name. Values never appear.
func (v *Vault) GetProjects() ([]ProjectInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return nil, ErrLocked
	}

	out := make([]ProjectInfo, 0, len(v.session.doc.Projects))
	for _, p := range v.session.doc.Projects {
		out = append(out, ProjectInfo{
			Name:        p.Name,
			SecretCount: len(p.Secrets),
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *Vault) CreateProject(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrLocked
	}
	if _, ok := v.session.doc.Projects[name]; ok {
		return fmt.Errorf("project %q: %w", name, ErrDuplicate)
	}

	now := time.Now().UTC()
	v.session.doc.Projects[name] = &Project{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Secrets:   map[string]string{},
	}
	v.session.doc.UpdatedAt = now
	v.scheduleSave()
	v.audit(audit.CategoryApp, fmt.Sprintf("project %s created", name))
	return nil
}

func (v *Vault) DeleteProject(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrLocked
	}
	if _, ok := v.session.doc.Projects[name]; !ok {
		return fmt.Errorf("project %q: %w", name, ErrNotFound)
	}

	delete(v.session.doc.Projects, name)
	v.session.doc.UpdatedAt = time.Now().UTC()
	v.scheduleSave()
	v.audit(audit.CategoryApp, fmt.Sprintf("project %s deleted", name))
	return nil
}

// GetSecrets returns a copy of a project's secrets, never a live reference.
func (v *Vault) GetSecrets(project string) (map[string]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.projectLocked(project)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(p.Secrets))
	for k, val := range p.Secrets {
		out[k] = val
	}
	return out, nil
}

// SecretKeys lists a project's secret names, sorted. Values never appear.
func (v *Vault) SecretKeys(project string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.projectLocked(project)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(p.Secrets))
	for k := range p.Secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (v *Vault) GetSecret(project, key string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.projectLocked(project)
	if err != nil {
		return "", err
	}
	value, ok := p.Secrets[key]
	if !ok {
		return "", fmt.Errorf("secret %q in project %q: %w", key, project, ErrNotFound)
	}
	return value, nil
}

func (v *Vault) SetSecret(project, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.projectLocked(project)
	if err != nil {
		return err
	}

	p.Secrets[key] = value
	v.touch(p)
	v.audit(audit.CategoryApp, fmt.Sprintf("secret %s set in project %s", key, project))
	return nil
}

func (v *Vault) DeleteSecret(project, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.projectLocked(project)
	if err != nil {
		return err
	}
	if _, ok := p.Secrets[key]; !ok {
		return fmt.Errorf("secret %q in project %q: %w", key, project, ErrNotFound)
	}

	delete(p.Secrets, key)
	v.touch(p)
	v.audit(audit.CategoryApp, fmt.Sprintf("secret %s deleted from project %s", key, project))
	return nil
}

// projectLocked resolves a project or fails with ErrLocked/ErrNotFound.
// Caller holds v.mu.
func (v *Vault) projectLocked(name string) (*Project, error) {
	if v.session == nil {
		return nil, ErrLocked
	}
	p, ok := v.session.doc.Projects[name]
	if !ok {
		return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// touch updates timestamps and schedules a debounced persist after a
// project-scoped mutation. Caller holds v.mu.
func (v *Vault) touch(p *Project) {
	now := time.Now().UTC()
	p.UpdatedAt = now
	v.session.doc.UpdatedAt = now
	v.scheduleSave()
}
