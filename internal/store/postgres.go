package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptforge/backend/internal/models"
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

const nodeColumns = `row_id, parent_row_id, position_lex, prompt_name, input_admin_prompt, input_user_prompt,
	model, model_on, temperature, temperature_on, max_tokens, max_tokens_on,
	max_completion_tokens, max_completion_tokens_on, top_p, top_p_on,
	frequency_penalty, frequency_penalty_on, presence_penalty, presence_penalty_on,
	response_format, response_format_on, stop, n, seed, tool_choice, reasoning_effort,
	is_assistant, thread_mode, child_thread_strategy, web_search_on, confluence_enabled,
	node_type, owner_id, is_deleted, extracted_variables, library_prompt_id,
	post_action_id, post_action_config, created_at, updated_at`

func scanNode(row pgx.Row) (*models.PromptNode, error) {
	var n models.PromptNode
	err := row.Scan(
		&n.RowID, &n.ParentRowID, &n.PositionLex, &n.PromptName, &n.InputAdminPrompt, &n.InputUserPrompt,
		&n.Model, &n.ModelOn, &n.Temperature, &n.TemperatureOn, &n.MaxTokens, &n.MaxTokensOn,
		&n.MaxCompletionTokens, &n.MaxCompletionTokensOn, &n.TopP, &n.TopPOn,
		&n.FrequencyPenalty, &n.FrequencyPenaltyOn, &n.PresencePenalty, &n.PresencePenaltyOn,
		&n.ResponseFormat, &n.ResponseFormatOn, &n.Stop, &n.N, &n.Seed, &n.ToolChoice, &n.ReasoningEffort,
		&n.IsAssistant, &n.ThreadMode, &n.ChildThreadStrategy, &n.WebSearchOn, &n.ConfluenceEnabled,
		&n.NodeType, &n.OwnerID, &n.IsDeleted, &n.ExtractedVariables, &n.LibraryPromptID,
		&n.PostActionID, &n.PostActionConfig, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Postgres) GetNode(ctx context.Context, rowID uuid.UUID) (*models.PromptNode, error) {
	n, err := scanNode(s.db.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM prompt_nodes WHERE row_id = $1`, rowID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

func (s *Postgres) ListChildren(ctx context.Context, parent *uuid.UUID) ([]models.PromptNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM prompt_nodes
		WHERE is_deleted = false AND parent_row_id `
	var (
		rows pgx.Rows
		err  error
	)
	if parent == nil {
		rows, err = s.db.Query(ctx, query+`IS NULL ORDER BY position_lex ASC`)
	} else {
		rows, err = s.db.Query(ctx, query+`= $1 ORDER BY position_lex ASC`, *parent)
	}
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var nodes []models.PromptNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

func (s *Postgres) LastPositionLex(ctx context.Context, parent *uuid.UUID) (string, error) {
	query := `SELECT position_lex FROM prompt_nodes
		WHERE is_deleted = false AND parent_row_id `
	var (
		pos string
		err error
	)
	if parent == nil {
		err = s.db.QueryRow(ctx, query+`IS NULL ORDER BY position_lex DESC LIMIT 1`).Scan(&pos)
	} else {
		err = s.db.QueryRow(ctx, query+`= $1 ORDER BY position_lex DESC LIMIT 1`, *parent).Scan(&pos)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last position: %w", err)
	}
	return pos, nil
}

func (s *Postgres) InsertNode(ctx context.Context, n *models.PromptNode) (*models.PromptNode, error) {
	if n.RowID == uuid.Nil {
		n.RowID = uuid.New()
	}
	stored, err := scanNode(s.db.QueryRow(ctx,
		`INSERT INTO prompt_nodes (row_id, parent_row_id, position_lex, prompt_name, input_admin_prompt, input_user_prompt,
			model, model_on, temperature, temperature_on, max_tokens, max_tokens_on,
			max_completion_tokens, max_completion_tokens_on, top_p, top_p_on,
			frequency_penalty, frequency_penalty_on, presence_penalty, presence_penalty_on,
			response_format, response_format_on, stop, n, seed, tool_choice, reasoning_effort,
			is_assistant, thread_mode, child_thread_strategy, web_search_on, confluence_enabled,
			node_type, owner_id, is_deleted, extracted_variables, library_prompt_id,
			post_action_id, post_action_config)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,$37,$38,$39)
		 RETURNING `+nodeColumns,
		n.RowID, n.ParentRowID, n.PositionLex, n.PromptName, n.InputAdminPrompt, n.InputUserPrompt,
		n.Model, n.ModelOn, n.Temperature, n.TemperatureOn, n.MaxTokens, n.MaxTokensOn,
		n.MaxCompletionTokens, n.MaxCompletionTokensOn, n.TopP, n.TopPOn,
		n.FrequencyPenalty, n.FrequencyPenaltyOn, n.PresencePenalty, n.PresencePenaltyOn,
		n.ResponseFormat, n.ResponseFormatOn, n.Stop, n.N, n.Seed, n.ToolChoice, n.ReasoningEffort,
		n.IsAssistant, n.ThreadMode, n.ChildThreadStrategy, n.WebSearchOn, n.ConfluenceEnabled,
		n.NodeType, n.OwnerID, n.IsDeleted, n.ExtractedVariables, n.LibraryPromptID,
		n.PostActionID, n.PostActionConfig,
	))
	if err != nil {
		return nil, fmt.Errorf("insert node: %w", err)
	}
	return stored, nil
}

func (s *Postgres) UpdateNode(ctx context.Context, n *models.PromptNode) error {
	_, err := s.db.Exec(ctx,
		`UPDATE prompt_nodes SET
			prompt_name=$2, input_admin_prompt=$3, input_user_prompt=$4,
			model=$5, model_on=$6, temperature=$7, temperature_on=$8,
			max_tokens=$9, max_tokens_on=$10, max_completion_tokens=$11, max_completion_tokens_on=$12,
			top_p=$13, top_p_on=$14, frequency_penalty=$15, frequency_penalty_on=$16,
			presence_penalty=$17, presence_penalty_on=$18, response_format=$19, response_format_on=$20,
			stop=$21, n=$22, seed=$23, tool_choice=$24, reasoning_effort=$25,
			is_assistant=$26, thread_mode=$27, child_thread_strategy=$28,
			web_search_on=$29, confluence_enabled=$30, node_type=$31,
			post_action_id=$32, post_action_config=$33, updated_at=now()
		 WHERE row_id=$1`,
		n.RowID, n.PromptName, n.InputAdminPrompt, n.InputUserPrompt,
		n.Model, n.ModelOn, n.Temperature, n.TemperatureOn,
		n.MaxTokens, n.MaxTokensOn, n.MaxCompletionTokens, n.MaxCompletionTokensOn,
		n.TopP, n.TopPOn, n.FrequencyPenalty, n.FrequencyPenaltyOn,
		n.PresencePenalty, n.PresencePenaltyOn, n.ResponseFormat, n.ResponseFormatOn,
		n.Stop, n.N, n.Seed, n.ToolChoice, n.ReasoningEffort,
		n.IsAssistant, n.ThreadMode, n.ChildThreadStrategy,
		n.WebSearchOn, n.ConfluenceEnabled, n.NodeType,
		n.PostActionID, n.PostActionConfig,
	)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateNodePosition(ctx context.Context, rowID uuid.UUID, positionLex string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE prompt_nodes SET position_lex=$2, updated_at=now() WHERE row_id=$1`,
		rowID, positionLex)
	if err != nil {
		return fmt.Errorf("update node position: %w", err)
	}
	return nil
}

func (s *Postgres) SoftDeleteNode(ctx context.Context, rowID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE prompt_nodes SET is_deleted=true, updated_at=now() WHERE row_id=$1`, rowID)
	if err != nil {
		return fmt.Errorf("soft delete node: %w", err)
	}
	return nil
}

func (s *Postgres) InsertTemplate(ctx context.Context, t *models.Template) (*models.Template, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	structure, err := json.Marshal(t.Structure)
	if err != nil {
		return nil, fmt.Errorf("marshal template structure: %w", err)
	}
	varDefs, err := json.Marshal(t.VariableDefinitions)
	if err != nil {
		return nil, fmt.Errorf("marshal variable definitions: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO templates (id, name, description, category, is_private, version, structure, variable_definitions, owner_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING created_at`,
		t.ID, t.Name, t.Description, t.Category, t.IsPrivate, t.Version, structure, varDefs, t.OwnerID,
	).Scan(&t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return t, nil
}

func (s *Postgres) GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var (
		t         models.Template
		structure []byte
		varDefs   []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, name, description, category, is_private, version, structure, variable_definitions, owner_id, created_at
		 FROM templates WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.IsPrivate, &t.Version, &structure, &varDefs, &t.OwnerID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if err := json.Unmarshal(structure, &t.Structure); err != nil {
		return nil, fmt.Errorf("unmarshal template structure: %w", err)
	}
	if err := json.Unmarshal(varDefs, &t.VariableDefinitions); err != nil {
		return nil, fmt.Errorf("unmarshal variable definitions: %w", err)
	}
	return &t, nil
}

func (s *Postgres) ListTemplates(ctx context.Context, limit, offset int) ([]models.Template, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, category, is_private, version, structure, variable_definitions, owner_id, created_at
		 FROM templates ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		var (
			t         models.Template
			structure []byte
			varDefs   []byte
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.IsPrivate, &t.Version, &structure, &varDefs, &t.OwnerID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if err := json.Unmarshal(structure, &t.Structure); err != nil {
			return nil, fmt.Errorf("unmarshal template structure: %w", err)
		}
		if err := json.Unmarshal(varDefs, &t.VariableDefinitions); err != nil {
			return nil, fmt.Errorf("unmarshal variable definitions: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *Postgres) ListVariables(ctx context.Context, promptRowID uuid.UUID) ([]models.PromptVariable, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, prompt_row_id, variable_name, variable_value, description, created_at, updated_at
		 FROM prompt_variables WHERE prompt_row_id = $1 ORDER BY variable_name ASC`, promptRowID)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	defer rows.Close()

	var vars []models.PromptVariable
	for rows.Next() {
		var v models.PromptVariable
		if err := rows.Scan(&v.ID, &v.PromptRowID, &v.VariableName, &v.VariableValue, &v.Description, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

func (s *Postgres) InsertVariable(ctx context.Context, v *models.PromptVariable) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO prompt_variables (id, prompt_row_id, variable_name, variable_value, description)
		 VALUES ($1,$2,$3,$4,$5)`,
		v.ID, v.PromptRowID, v.VariableName, v.VariableValue, v.Description)
	if err != nil {
		return fmt.Errorf("insert variable: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateVariableValue(ctx context.Context, id uuid.UUID, value string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE prompt_variables SET variable_value=$2, updated_at=now() WHERE id=$1`, id, value)
	if err != nil {
		return fmt.Errorf("update variable: %w", err)
	}
	return nil
}

func (s *Postgres) GetGlobalDefaults(ctx context.Context) (*models.GlobalDefaults, error) {
	var g models.GlobalDefaults
	err := s.db.QueryRow(ctx,
		`SELECT def_admin_prompt, default_user_prompt, default_model, updated_at
		 FROM global_defaults LIMIT 1`,
	).Scan(&g.DefAdminPrompt, &g.DefaultUserPrompt, &g.DefaultModel, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.GlobalDefaults{UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get global defaults: %w", err)
	}
	return &g, nil
}

func (s *Postgres) GetModelDefaults(ctx context.Context, model string) (*models.ModelDefaults, error) {
	var m models.ModelDefaults
	err := s.db.QueryRow(ctx,
		`SELECT model, temperature, temperature_on, max_tokens, max_tokens_on,
			max_completion_tokens, max_completion_tokens_on, top_p, top_p_on,
			frequency_penalty, frequency_penalty_on, presence_penalty, presence_penalty_on
		 FROM model_defaults WHERE model = $1`, model,
	).Scan(&m.Model, &m.Temperature, &m.TemperatureOn, &m.MaxTokens, &m.MaxTokensOn,
		&m.MaxCompletionTokens, &m.MaxCompletionTokensOn, &m.TopP, &m.TopPOn,
		&m.FrequencyPenalty, &m.FrequencyPenaltyOn, &m.PresencePenalty, &m.PresencePenaltyOn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get model defaults: %w", err)
	}
	return &m, nil
}
