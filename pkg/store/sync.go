package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/onetaskassistant/onetask/pkg/api"
	"github.com/onetaskassistant/onetask/pkg/metrics"
	"github.com/onetaskassistant/onetask/pkg/model"
)

const healthKey = "backend"

// healthy runs the backend health check, reusing a recent result.
func (s *Store) healthy(ctx context.Context) bool {
	if v, ok := s.health.Get(healthKey); ok {
		return v.(bool)
	}
	err := s.backend.Health(ctx)
	if err != nil {
		s.logger.Warn("backend health check failed", zap.Error(err))
	}
	s.health.SetDefault(healthKey, err == nil)
	return err == nil
}

// Sync replaces local data with the backend's. When the backend is
// unhealthy the current data is kept, or sample data is loaded if nothing
// was ever synced, and ErrOffline is returned. When any read fails the
// previous data is kept.
func (s *Store) Sync(ctx context.Context) error {
	if !s.healthy(ctx) {
		s.mu.Lock()
		seeded := false
		if !s.synced && s.sample && !s.isSample {
			s.loadSampleLocked()
			seeded = true
		}
		s.mu.Unlock()

		metrics.IncrementSync("offline")
		if seeded {
			s.emit(Event{Kind: EventChanged, Collection: CollectionAll})
		}
		s.emit(Event{Kind: EventOffline, Collection: CollectionAll, Err: ErrOffline})
		return ErrOffline
	}

	var (
		tasks                   []model.Task
		habits                  []model.Habit
		yearly, quarterly, week []model.Goal
		projects                []model.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tasks, err = s.backend.ListTasks(gctx)
		return err
	})
	g.Go(func() (err error) {
		habits, err = s.backend.ListHabits(gctx)
		return err
	})
	g.Go(func() (err error) {
		yearly, err = s.backend.ListGoals(gctx, model.GoalYearly)
		return err
	})
	g.Go(func() (err error) {
		quarterly, err = s.backend.ListGoals(gctx, model.GoalQuarterly)
		return err
	})
	g.Go(func() (err error) {
		week, err = s.backend.ListGoals(gctx, model.GoalWeekly)
		return err
	})
	g.Go(func() (err error) {
		projects, err = s.backend.ListProjects(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		if api.IsTransport(err) {
			s.health.Delete(healthKey)
		}
		metrics.IncrementSync("failed")
		err = fmt.Errorf("syncing: %w", err)
		s.HandleError(err)
		return err
	}

	goals := make([]model.Goal, 0, len(yearly)+len(quarterly)+len(week))
	goals = append(append(append(goals, yearly...), quarterly...), week...)

	s.mu.Lock()
	s.tasks, s.habits, s.goals, s.projects = tasks, habits, goals, projects
	s.synced = true
	s.isSample = false
	s.mu.Unlock()

	s.logger.Info("synced",
		zap.Int("tasks", len(tasks)),
		zap.Int("habits", len(habits)),
		zap.Int("goals", len(goals)),
		zap.Int("projects", len(projects)),
	)
	metrics.IncrementSync("ok")
	s.emit(Event{Kind: EventSynced, Collection: CollectionAll})
	return nil
}
