package postaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/store"
)

func seedSubtree(t *testing.T, st *store.Memory) *models.PromptNode {
	t.Helper()
	ctx := context.Background()

	root, err := st.InsertNode(ctx, &models.PromptNode{
		PositionLex:      "V",
		PromptName:       "Outline",
		InputAdminPrompt: "Write about {{topic}} referencing {{q.ref[3f1b2a6c-9d4e-4f0a-8b7c-1234567890ab].output}}",
		InputUserPrompt:  "Audience: {{audience}}",
		NodeType:         models.NodeTypeStandard,
	})
	require.NoError(t, err)
	rootID := root.RowID

	_, err = st.InsertNode(ctx, &models.PromptNode{
		ParentRowID:      &rootID,
		PositionLex:      "V",
		PromptName:       "Second chapter",
		InputAdminPrompt: "Expand on {{topic}}",
	})
	require.NoError(t, err)
	_, err = st.InsertNode(ctx, &models.PromptNode{
		ParentRowID:      &rootID,
		PositionLex:      "F",
		PromptName:       "First chapter",
		InputUserPrompt:  "Tone: {{tone}}",
	})
	require.NoError(t, err)
	return root
}

func TestTemplateFromSubtree(t *testing.T) {
	st := store.NewMemory()
	root := seedSubtree(t, st)

	in := Input{
		Store:  st,
		Prompt: root,
		Config: Config{
			"template_name":        "Book outline",
			"template_description": "Chapter scaffold",
			"category":             "writing",
		},
	}

	res, err := (&TemplateFromSubtree{}).Execute(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, res.Template)

	tpl := res.Template
	assert.Equal(t, "Book outline", tpl.Name)
	assert.Equal(t, "Chapter scaffold", tpl.Description)
	assert.Equal(t, 1, tpl.Version)
	assert.True(t, tpl.IsPrivate)

	// Cross-prompt refs lose the source identity but keep the field.
	assert.Contains(t, tpl.Structure.InputAdminPrompt, "{{q.ref[template].output}}")
	assert.NotContains(t, tpl.Structure.InputAdminPrompt, "3f1b2a6c")

	// Children serialize in position order.
	require.Len(t, tpl.Structure.Children, 2)
	assert.Equal(t, "First chapter", tpl.Structure.Children[0].Name)
	assert.Equal(t, "Second chapter", tpl.Structure.Children[1].Name)

	// Variables deduplicate across the subtree and sort by name; ref
	// placeholders are not variables.
	names := make([]string, 0, len(tpl.VariableDefinitions))
	for _, def := range tpl.VariableDefinitions {
		names = append(names, def.Name)
		assert.Equal(t, "string", def.Type)
	}
	assert.Equal(t, []string{"audience", "tone", "topic"}, names)

	// Persisted, not just returned.
	stored, err := st.GetTemplate(context.Background(), tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Book outline", stored.Name)
}

func TestTemplateFromSubtreeWithoutChildren(t *testing.T) {
	st := store.NewMemory()
	root := seedSubtree(t, st)

	in := Input{
		Store:  st,
		Prompt: root,
		Config: Config{"template_name": "Root only", "include_children": false},
	}

	res, err := (&TemplateFromSubtree{}).Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.Template.Structure.Children)

	// Only the root's own variables are collected.
	names := make([]string, 0, len(res.Template.VariableDefinitions))
	for _, def := range res.Template.VariableDefinitions {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"audience", "topic"}, names)
}

func TestTemplateFromSubtreeRequiresName(t *testing.T) {
	st := store.NewMemory()
	root := seedSubtree(t, st)

	_, err := (&TemplateFromSubtree{}).Execute(context.Background(), Input{
		Store:  st,
		Prompt: root,
		Config: Config{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template_name")

	templates, err := st.ListTemplates(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestTemplateFromSubtreeSkipsDeletedNodes(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	root := seedSubtree(t, st)

	rootID := root.RowID
	kids, err := st.ListChildren(ctx, &rootID)
	require.NoError(t, err)
	require.NoError(t, st.SoftDeleteNode(ctx, kids[0].RowID))

	res, err := (&TemplateFromSubtree{}).Execute(ctx, Input{
		Store:  st,
		Prompt: root,
		Config: Config{"template_name": "After delete"},
	})
	require.NoError(t, err)
	require.Len(t, res.Template.Structure.Children, 1)
	assert.Equal(t, "Second chapter", res.Template.Structure.Children[0].Name)
}
