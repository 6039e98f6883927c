package services

import (
	"context"
	"strings"
	"testing"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComments(t *testing.T) {
	e := newTaskEnv(t)
	ctx := context.Background()
	mgr := e.user(t, "mgr")
	stranger := e.user(t, "stranger")
	e.member(t, e.projectID, mgr, roles.Manager)
	task := e.task(t, TaskInput{})

	_, err := e.comments.Add(ctx, stranger, task.ID, "hi")
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)

	_, err = e.comments.Add(ctx, e.viewer, task.ID, "   ")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = e.comments.Add(ctx, e.viewer, task.ID, strings.Repeat("x", maxCommentLength+1))
	assert.ErrorIs(t, err, common.ErrorValidation)

	c, err := e.comments.Add(ctx, e.viewer, task.ID, " looks good ")
	require.NoError(t, err)
	assert.Equal(t, "looks good", c.Content)
	require.NotNil(t, c.AuthorRole)
	assert.Equal(t, roles.Viewer, *c.AuthorRole)

	_, err = e.comments.Edit(ctx, e.dev, c.ID, "mine now")
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)

	edited, err := e.comments.Edit(ctx, e.viewer, c.ID, "looks great")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, "looks great", edited.Content)

	assert.ErrorIs(t, e.comments.Delete(ctx, e.dev, c.ID), common.ErrorPermissionDenied)
	require.NoError(t, e.comments.Delete(ctx, mgr, c.ID))

	own, err := e.comments.Add(ctx, e.dev, task.ID, "note")
	require.NoError(t, err)
	require.NoError(t, e.comments.Delete(ctx, e.dev, own.ID))

	list, err := e.comments.List(ctx, e.viewer, task.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
