package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/repository"
)

func TestTaskServiceCreateUpdateAndList(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewTaskService(repository.NewTaskRepository(db), newValidator(), zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.TaskCreateRequest{
		Title:       "Checkout flow",
		Description: "Simplify the checkout flow of a marketplace",
		Difficulty:  "middle",
		Category:    "ux",
	})
	require.NoError(t, err)
	require.True(t, created.IsPublished)

	hidden := false
	_, err = svc.Create(ctx, dto.TaskCreateRequest{
		Title:       "Draft brief",
		Description: "Not ready for candidates yet",
		IsPublished: &hidden,
	})
	require.NoError(t, err)

	list, err := svc.List(ctx, dto.TaskFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, list.Pagination.TotalItems)
	require.Equal(t, "Checkout flow", list.Items[0].Title)
	require.Equal(t, 20, list.Pagination.PageSize)

	title := "Checkout redesign"
	updated, err := svc.Update(ctx, created.ID, dto.TaskUpdateRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Checkout redesign", updated.Title)
	require.Equal(t, "middle", updated.Difficulty)

	_, err = svc.Get(ctx, 999)
	require.ErrorIs(t, err, ErrTaskNotFound)

	_, err = svc.Create(ctx, dto.TaskCreateRequest{Title: "x", Description: "short"})
	require.Error(t, err)
}
