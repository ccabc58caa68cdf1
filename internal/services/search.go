package services

import (
	"context"
	"strings"

	"taskify/backend/internal/models"

	"gorm.io/gorm"
)

const (
	SearchTasks    = "tasks"
	SearchContacts = "contacts"
)

type SearchResult struct {
	Query    string           `json:"query"`
	Tasks    []models.Task    `json:"tasks,omitempty"`
	Contacts []models.Contact `json:"contacts,omitempty"`
}

type SearchService interface {
	Search(ctx context.Context, db *gorm.DB, userID uint, query, kind string) (SearchResult, error)
}

type SearchServiceImpl struct{}

func NewSearchService() *SearchServiceImpl {
	return &SearchServiceImpl{}
}

// Search matches case-insensitively on task title and description, or on
// contact names, emails and organization. An empty kind searches both.
func (s *SearchServiceImpl) Search(ctx context.Context, db *gorm.DB, userID uint, query, kind string) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, invalid("q", "is required")
	}
	if kind != "" && kind != SearchTasks && kind != SearchContacts {
		return SearchResult{}, invalid("type", "must be tasks or contacts")
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	result := SearchResult{Query: query}

	if kind == "" || kind == SearchTasks {
		result.Tasks = []models.Task{}
		err := db.WithContext(ctx).
			Where("user_id = ?", userID).
			Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, pattern, pattern).
			Order("start_time asc").
			Find(&result.Tasks).Error
		if err != nil {
			return SearchResult{}, err
		}
	}

	if kind == "" || kind == SearchContacts {
		result.Contacts = []models.Contact{}
		err := db.WithContext(ctx).
			Where(`LOWER(display_name) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\' OR LOWER(primary_email) LIKE ? ESCAPE '\' OR LOWER(organization) LIKE ? ESCAPE '\'`,
				pattern, pattern, pattern, pattern, pattern).
			Order("display_name asc").
			Find(&result.Contacts).Error
		if err != nil {
			return SearchResult{}, err
		}
	}

	return result, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
