package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge/backend/internal/models"
)

// Memory is an in-process Store used by tests and local tooling. It mirrors
// the Postgres semantics: lex ordering of siblings, soft-delete filtering,
// and copy-on-read rows.
type Memory struct {
	mu        sync.Mutex
	nodes     map[uuid.UUID]*models.PromptNode
	templates map[uuid.UUID]*models.Template
	variables map[uuid.UUID]*models.PromptVariable
	globals   models.GlobalDefaults
	modelDefs map[string]*models.ModelDefaults

	// InsertNodeHook, when set, runs before each node insert; returning an
	// error rejects the insert. Lets tests exercise partial-creation paths.
	InsertNodeHook func(n *models.PromptNode) error
}

func NewMemory() *Memory {
	return &Memory{
		nodes:     make(map[uuid.UUID]*models.PromptNode),
		templates: make(map[uuid.UUID]*models.Template),
		variables: make(map[uuid.UUID]*models.PromptVariable),
		modelDefs: make(map[string]*models.ModelDefaults),
	}
}

func (s *Memory) SetGlobalDefaults(g models.GlobalDefaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals = g
}

func (s *Memory) SetModelDefaults(m models.ModelDefaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := m
	s.modelDefs[m.Model] = &cp
}

func (s *Memory) GetNode(_ context.Context, rowID uuid.UUID) (*models.PromptNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[rowID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *Memory) ListChildren(_ context.Context, parent *uuid.UUID) ([]models.PromptNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PromptNode
	for _, n := range s.nodes {
		if n.IsDeleted || !sameParent(n.ParentRowID, parent) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionLex < out[j].PositionLex })
	return out, nil
}

func (s *Memory) LastPositionLex(ctx context.Context, parent *uuid.UUID) (string, error) {
	children, err := s.ListChildren(ctx, parent)
	if err != nil || len(children) == 0 {
		return "", err
	}
	return children[len(children)-1].PositionLex, nil
}

func (s *Memory) InsertNode(_ context.Context, n *models.PromptNode) (*models.PromptNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertNodeHook != nil {
		if err := s.InsertNodeHook(n); err != nil {
			return nil, err
		}
	}
	if n.RowID == uuid.Nil {
		n.RowID = uuid.New()
	}
	now := time.Now()
	n.CreatedAt = now
	n.UpdatedAt = now
	cp := *n
	s.nodes[n.RowID] = &cp
	out := cp
	return &out, nil
}

func (s *Memory) UpdateNode(_ context.Context, n *models.PromptNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.nodes[n.RowID]
	if !ok {
		return ErrNotFound
	}
	cp := *n
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.nodes[n.RowID] = &cp
	return nil
}

func (s *Memory) UpdateNodePosition(_ context.Context, rowID uuid.UUID, positionLex string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[rowID]
	if !ok {
		return ErrNotFound
	}
	n.PositionLex = positionLex
	n.UpdatedAt = time.Now()
	return nil
}

func (s *Memory) SoftDeleteNode(_ context.Context, rowID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[rowID]
	if !ok {
		return ErrNotFound
	}
	n.IsDeleted = true
	n.UpdatedAt = time.Now()
	return nil
}

func (s *Memory) InsertTemplate(_ context.Context, t *models.Template) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	cp := *t
	s.templates[t.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Memory) GetTemplate(_ context.Context, id uuid.UUID) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Memory) ListTemplates(_ context.Context, limit, offset int) ([]models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Template
	for _, t := range s.templates {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Memory) ListVariables(_ context.Context, promptRowID uuid.UUID) ([]models.PromptVariable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PromptVariable
	for _, v := range s.variables {
		if v.PromptRowID == promptRowID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariableName < out[j].VariableName })
	return out, nil
}

func (s *Memory) InsertVariable(_ context.Context, v *models.PromptVariable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now
	cp := *v
	s.variables[v.ID] = &cp
	return nil
}

func (s *Memory) UpdateVariableValue(_ context.Context, id uuid.UUID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variables[id]
	if !ok {
		return ErrNotFound
	}
	v.VariableValue = value
	v.UpdatedAt = time.Now()
	return nil
}

func (s *Memory) GetGlobalDefaults(_ context.Context) (*models.GlobalDefaults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.globals
	return &cp, nil
}

func (s *Memory) GetModelDefaults(_ context.Context, model string) (*models.ModelDefaults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modelDefs[model]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
