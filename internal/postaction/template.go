package postaction

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/store"
)

var (
	// {{q.ref[UUID].field}} is a live cross-reference to a specific prompt.
	// Templates are reusable stamps, so the source identity must not leak
	// into them; the field name survives for later re-linking.
	promptRefPattern = regexp.MustCompile(`(\{\{q\.ref\[)[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(\])`)

	// Plain {{variable}} occurrences. The character class excludes dots, so
	// q.-prefixed and chained system refs never match.
	templateVarPattern = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_-]{0,99})\s*\}\}`)
)

// TemplateFromSubtree serializes the prompt subtree rooted at the triggering
// node into a reusable Template. Unlike the other executors it is not driven
// by the AI response.
type TemplateFromSubtree struct{}

func (e *TemplateFromSubtree) Name() string { return ActionCreateTemplate }

func (e *TemplateFromSubtree) Execute(ctx context.Context, in Input) (*Result, error) {
	name := in.Config.Str("template_name", "")
	if name == "" {
		return nil, fmt.Errorf("template_name is required")
	}
	includeChildren := in.Config.Bool("include_children", true)

	variables := map[string]models.VariableDefinition{}
	structure, err := serializeSubtree(ctx, in.Store, in.Prompt, includeChildren, variables)
	if err != nil {
		return nil, err
	}

	tpl := &models.Template{
		Name:                name,
		Description:         in.Config.Str("template_description", ""),
		Category:            in.Config.Str("category", ""),
		IsPrivate:           in.Config.Bool("is_private", true),
		Version:             1,
		Structure:           *structure,
		VariableDefinitions: sortedDefinitions(variables),
		OwnerID:             in.Context.UserID,
	}

	stored, err := in.Store.InsertTemplate(ctx, tpl)
	if err != nil {
		return nil, fmt.Errorf("persist template: %w", err)
	}

	return &Result{
		Template: stored,
		Message:  fmt.Sprintf("Created template %q", stored.Name),
	}, nil
}

// serializeSubtree walks the existing tree depth-first over an immutable
// snapshot, children ordered by position, returning a new structure tree.
// Fetched rows are never mutated.
func serializeSubtree(ctx context.Context, st store.Store, node *models.PromptNode, includeChildren bool, variables map[string]models.VariableDefinition) (*models.TemplateStructure, error) {
	adminPrompt := sanitizeRefs(node.InputAdminPrompt)
	userPrompt := sanitizeRefs(node.InputUserPrompt)
	collectVariables(adminPrompt, variables)
	collectVariables(userPrompt, variables)

	s := &models.TemplateStructure{
		Name:             node.PromptName,
		InputAdminPrompt: adminPrompt,
		InputUserPrompt:  userPrompt,
		Settings:         node.ModelSettings,
		IsAssistant:      node.IsAssistant,
		NodeType:         node.NodeType,
	}

	if !includeChildren {
		return s, nil
	}

	id := node.RowID
	children, err := st.ListChildren(ctx, &id)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", id, err)
	}
	for i := range children {
		child, err := serializeSubtree(ctx, st, &children[i], true, variables)
		if err != nil {
			return nil, err
		}
		s.Children = append(s.Children, *child)
	}
	return s, nil
}

// sanitizeRefs rewrites {{q.ref[UUID].field}} to the template-neutral
// {{q.ref[template].field}}.
func sanitizeRefs(text string) string {
	return promptRefPattern.ReplaceAllString(text, "${1}template${2}")
}

func collectVariables(text string, variables map[string]models.VariableDefinition) {
	for _, m := range templateVarPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if _, seen := variables[name]; seen {
			continue
		}
		variables[name] = models.VariableDefinition{Name: name, Type: "string"}
	}
}

func sortedDefinitions(variables map[string]models.VariableDefinition) []models.VariableDefinition {
	out := make([]models.VariableDefinition, 0, len(variables))
	for _, def := range variables {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
