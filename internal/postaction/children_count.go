package postaction

import (
	"context"
	"fmt"
	"time"
)

// ChildrenFromCount creates a fixed number of empty children under the
// resolved placement target. It needs nothing from the AI response beyond
// the run itself having happened.
type ChildrenFromCount struct{}

func (e *ChildrenFromCount) Name() string { return ActionChildrenText }

func (e *ChildrenFromCount) Execute(ctx context.Context, in Input) (*Result, error) {
	count := in.Config.Int("children_count", 3)
	if count < 0 {
		return nil, fmt.Errorf("children_count must not be negative, got %d", count)
	}
	if count == 0 {
		return &Result{CreatedCount: 0, Message: "children_count is 0, nothing to create"}, nil
	}

	parentID := resolveTargetParent(in)
	nodeType := childNodeType(in.Config)
	prefix := in.Config.Str("name_prefix", "Child")

	// The admin prompt seed needs the global default; fetch it once up front
	// rather than per child.
	globals, err := in.Store.GetGlobalDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("load global defaults: %w", err)
	}
	adminPrompt := libraryAdminPrompt(ctx, in, globals.DefAdminPrompt)

	now := time.Now()
	specs := make([]childSpec, 0, count)
	for i := 0; i < count; i++ {
		specs = append(specs, childSpec{
			Name:        expandName(prefix, i, now),
			AdminPrompt: adminPrompt,
		})
	}

	children, err := insertChildren(ctx, in, parentID, nodeType, specs)
	if err != nil {
		return &Result{CreatedCount: len(children), Children: children}, err
	}

	return &Result{
		CreatedCount: len(children),
		Children:     children,
		Message:      fmt.Sprintf("Created %d child prompt(s)", len(children)),
	}, nil
}
