package analytics

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"beaconly/internal/pkg/async"
)

const maxStatsWorkers = 8

// GetAllProjectsStats enumerates the projects observed in page_views and
// computes each project's aggregate for the window. The per-project
// computations run concurrently; each one is itself sequential.
func GetAllProjectsStats(ctx context.Context, db *gorm.DB, window QueryWindow) ([]ProjectSummary, error) {
	projectIDs, err := GetProjectIDs(db)
	if err != nil {
		return nil, err
	}
	if len(projectIDs) == 0 {
		return []ProjectSummary{}, nil
	}

	tasks := make([]async.Task[*Stats], len(projectIDs))
	for i, projectID := range projectIDs {
		projectID := projectID
		tasks[i] = async.Task[*Stats]{
			Name: projectID,
			Execute: func() (*Stats, error) {
				return GetProjectStats(db, projectID, window)
			},
		}
	}

	workers := len(tasks)
	if workers > maxStatsWorkers {
		workers = maxStatsWorkers
	}
	results := async.NewPool[*Stats](workers).Execute(ctx, tasks)

	summaries := make([]ProjectSummary, 0, len(projectIDs))
	for _, projectID := range projectIDs {
		result, ok := results[projectID]
		if !ok {
			return nil, fmt.Errorf("stats computation for project %s was cancelled: %w", projectID, ctx.Err())
		}
		if result.Err != nil {
			return nil, fmt.Errorf("error fetching stats for project %s: %w", projectID, result.Err)
		}
		summaries = append(summaries, ProjectSummary{ProjectID: projectID, Stats: result.Data})
	}

	return summaries, nil
}

// GetProjectIDs returns the distinct project ids observed in page_views.
func GetProjectIDs(db *gorm.DB) ([]string, error) {
	var projectIDs []string
	err := db.Table("page_views").
		Distinct("project_id").
		Order("project_id").
		Pluck("project_id", &projectIDs).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching project ids: %w", err)
	}
	return projectIDs, nil
}
