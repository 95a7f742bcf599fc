package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"portfolio-backend/internal/db"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const projectColumns = `id, title, slug, short_description, project_type, overview, problem_statement,
	solution_approach, architecture_details, challenges, results, role, category, timeline,
	tech_stack, github_url, live_url, images, featured, status, created_at, updated_at`

// List returns projects featured first, newest first. Drafts are included
// only when includeDrafts is set.
func (r *Repository) List(ctx context.Context, includeDrafts bool) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	args := []any{}
	if !includeDrafts {
		query += ` WHERE status = ?`
		args = append(args, StatusPublished)
	}
	query += ` ORDER BY featured DESC, created_at DESC`

	projects := make([]Project, 0)
	if err := r.db.SelectContext(ctx, &projects, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	for i := range projects {
		normalize(&projects[i])
	}
	return projects, nil
}

func (r *Repository) GetPublishedBySlug(ctx context.Context, slug string) (Project, error) {
	return r.getOne(ctx, r.db, `WHERE slug = ? AND status = ?`, slug, StatusPublished)
}

func (r *Repository) GetByID(ctx context.Context, id string) (Project, error) {
	return r.getOne(ctx, r.db, `WHERE id = ?`, id)
}

func (r *Repository) Create(ctx context.Context, input ProjectInput) (Project, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Project{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	p := fromInput(input)
	p.ID = id.String()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Project{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureSlugFree(ctx, tx, p.Slug, ""); err != nil {
		return Project{}, err
	}

	if err := insertProject(ctx, tx, p); err != nil {
		return Project{}, err
	}

	if err := tx.Commit(); err != nil {
		return Project{}, fmt.Errorf("commit transaction: %w", err)
	}

	return p, nil
}

func (r *Repository) Update(ctx context.Context, id string, input ProjectInput) (Project, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Project{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := r.getOne(ctx, tx, `WHERE id = ?`, id)
	if err != nil {
		return Project{}, err
	}

	if err := ensureSlugFree(ctx, tx, input.Slug, id); err != nil {
		return Project{}, err
	}

	p := fromInput(input)
	p.ID = current.ID
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	if _, err := tx.NamedExecContext(ctx, `
		UPDATE projects SET
			title = :title, slug = :slug, short_description = :short_description,
			project_type = :project_type, overview = :overview, problem_statement = :problem_statement,
			solution_approach = :solution_approach, architecture_details = :architecture_details,
			challenges = :challenges, results = :results, role = :role, category = :category,
			timeline = :timeline, tech_stack = :tech_stack, github_url = :github_url,
			live_url = :live_url, images = :images, featured = :featured, status = :status,
			updated_at = :updated_at
		WHERE id = :id
	`, p); err != nil {
		return Project{}, mapWriteErr("update project", err)
	}

	if err := tx.Commit(); err != nil {
		return Project{}, fmt.Errorf("commit transaction: %w", err)
	}

	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM projects WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) ToggleFeatured(ctx context.Context, id string) (Project, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Project{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE projects
		SET featured = NOT featured, updated_at = ?
		WHERE id = ?
	`), time.Now().UTC(), id)
	if err != nil {
		return Project{}, fmt.Errorf("toggle featured: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return Project{}, fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return Project{}, ErrNotFound
	}

	p, err := r.getOne(ctx, tx, `WHERE id = ?`, id)
	if err != nil {
		return Project{}, err
	}

	if err := tx.Commit(); err != nil {
		return Project{}, fmt.Errorf("commit transaction: %w", err)
	}

	return p, nil
}

func (r *Repository) getOne(ctx context.Context, q sqlx.QueryerContext, where string, args ...any) (Project, error) {
	var p Project
	err := sqlx.GetContext(ctx, q, &p, r.db.Rebind(`SELECT `+projectColumns+` FROM projects `+where), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("query project: %w", err)
	}
	normalize(&p)
	return p, nil
}

func ensureSlugFree(ctx context.Context, tx *sqlx.Tx, slug, exceptID string) error {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(1) FROM projects WHERE slug = ? AND id <> ?`), slug, exceptID)
	if err != nil {
		return fmt.Errorf("check project slug: %w", err)
	}
	if count > 0 {
		return ErrSlugTaken
	}
	return nil
}

func insertProject(ctx context.Context, tx *sqlx.Tx, p Project) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (:id, :title, :slug, :short_description, :project_type, :overview, :problem_statement,
			:solution_approach, :architecture_details, :challenges, :results, :role, :category, :timeline,
			:tech_stack, :github_url, :live_url, :images, :featured, :status, :created_at, :updated_at)
	`, p)
	if err != nil {
		return mapWriteErr("insert project", err)
	}
	return nil
}

// mapWriteErr maps a slug collision that slipped past ensureSlugFree (two
// concurrent writers) onto ErrSlugTaken.
func mapWriteErr(op string, err error) error {
	if db.IsUniqueViolation(err) {
		return ErrSlugTaken
	}
	return fmt.Errorf("%s: %w", op, err)
}

func fromInput(input ProjectInput) Project {
	p := Project{
		Title:               input.Title,
		Slug:                input.Slug,
		ShortDescription:    input.ShortDescription,
		ProjectType:         input.ProjectType,
		Overview:            input.Overview,
		ProblemStatement:    input.ProblemStatement,
		SolutionApproach:    input.SolutionApproach,
		ArchitectureDetails: input.ArchitectureDetails,
		Challenges:          input.Challenges,
		Results:             input.Results,
		Role:                input.Role,
		Category:            input.Category,
		Timeline:            input.Timeline,
		TechStack:           input.TechStack,
		GithubURL:           input.GithubURL,
		LiveURL:             input.LiveURL,
		Images:              input.Images,
		Featured:            input.Featured,
		Status:              input.Status,
	}
	normalize(&p)
	return p
}

func normalize(p *Project) {
	if p.TechStack == nil {
		p.TechStack = TechStack{}
	}
	if p.Images == nil {
		p.Images = StringList{}
	}
	if p.ProjectType == "" {
		p.ProjectType = TypeBasic
	}
	if p.Status == "" {
		p.Status = StatusPublished
	}
}
