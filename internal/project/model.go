package project

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	TypeCaseStudy = "case-study"
	TypeBasic     = "basic"

	StatusPublished = "published"
	StatusDraft     = "draft"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrSlugTaken = errors.New("project slug already exists")
)

type TechItem struct {
	Name string `json:"name" validate:"required,max=80"`
	Icon string `json:"icon" validate:"max=500"`
}

// TechStack and StringList are stored as JSON text so the schema works on
// both Postgres and SQLite.
type TechStack []TechItem

func (t TechStack) Value() (driver.Value, error) { return marshalColumn(t) }
func (t *TechStack) Scan(src any) error         { return scanColumn(src, t) }

type StringList []string

func (s StringList) Value() (driver.Value, error) { return marshalColumn(s) }
func (s *StringList) Scan(src any) error         { return scanColumn(src, s) }

type Project struct {
	ID                  string     `db:"id" json:"id"`
	Title               string     `db:"title" json:"title"`
	Slug                string     `db:"slug" json:"slug"`
	ShortDescription    string     `db:"short_description" json:"shortDescription"`
	ProjectType         string     `db:"project_type" json:"projectType"`
	Overview            string     `db:"overview" json:"overview"`
	ProblemStatement    string     `db:"problem_statement" json:"problemStatement"`
	SolutionApproach    string     `db:"solution_approach" json:"solutionApproach"`
	ArchitectureDetails string     `db:"architecture_details" json:"architectureDetails"`
	Challenges          string     `db:"challenges" json:"challenges"`
	Results             string     `db:"results" json:"results"`
	Role                string     `db:"role" json:"role"`
	Category            string     `db:"category" json:"category"`
	Timeline            string     `db:"timeline" json:"timeline"`
	TechStack           TechStack  `db:"tech_stack" json:"techStack"`
	GithubURL           string     `db:"github_url" json:"githubUrl"`
	LiveURL             string     `db:"live_url" json:"liveUrl"`
	Images              StringList `db:"images" json:"images"`
	Featured            bool       `db:"featured" json:"featured"`
	Status              string     `db:"status" json:"status"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

type ProjectInput struct {
	Title               string     `json:"title" validate:"required,max=200"`
	Slug                string     `json:"slug" validate:"max=200"`
	ShortDescription    string     `json:"shortDescription" validate:"required,max=500"`
	ProjectType         string     `json:"projectType" validate:"omitempty,oneof=case-study basic"`
	Overview            string     `json:"overview" validate:"max=20000"`
	ProblemStatement    string     `json:"problemStatement" validate:"max=20000"`
	SolutionApproach    string     `json:"solutionApproach" validate:"max=20000"`
	ArchitectureDetails string     `json:"architectureDetails" validate:"max=20000"`
	Challenges          string     `json:"challenges" validate:"max=20000"`
	Results             string     `json:"results" validate:"max=20000"`
	Role                string     `json:"role" validate:"max=200"`
	Category            string     `json:"category" validate:"max=200"`
	Timeline            string     `json:"timeline" validate:"max=200"`
	TechStack           TechStack  `json:"techStack" validate:"dive"`
	GithubURL           string     `json:"githubUrl" validate:"omitempty,url,max=500"`
	LiveURL             string     `json:"liveUrl" validate:"omitempty,url,max=500"`
	Images              StringList `json:"images"`
	Featured            bool       `json:"featured"`
	Status              string     `json:"status" validate:"omitempty,oneof=published draft"`
}

// Input returns the editable fields of p, used as the base of partial updates.
func (p Project) Input() ProjectInput {
	return ProjectInput{
		Title:               p.Title,
		Slug:                p.Slug,
		ShortDescription:    p.ShortDescription,
		ProjectType:         p.ProjectType,
		Overview:            p.Overview,
		ProblemStatement:    p.ProblemStatement,
		SolutionApproach:    p.SolutionApproach,
		ArchitectureDetails: p.ArchitectureDetails,
		Challenges:          p.Challenges,
		Results:             p.Results,
		Role:                p.Role,
		Category:            p.Category,
		Timeline:            p.Timeline,
		TechStack:           p.TechStack,
		GithubURL:           p.GithubURL,
		LiveURL:             p.LiveURL,
		Images:              p.Images,
		Featured:            p.Featured,
		Status:              p.Status,
	}
}

func marshalColumn(value any) (driver.Value, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	if string(encoded) == "null" {
		return "[]", nil
	}
	return string(encoded), nil
}

func scanColumn(src any, dest any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		raw = []byte("[]")
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
