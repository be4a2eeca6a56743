package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openboard/openboard/internal/domain"
)

func TestGuardAuthorize(t *testing.T) {
	editor := domain.NewMembership("E", domain.PermissionEdit, false)
	viewer := domain.NewMembership("V", domain.PermissionView, false)
	owner := domain.NewMembership("O", domain.PermissionEdit, true)

	ops := []Op{
		OpAddObject, OpModifyObject, OpRemoveObject, OpClearCanvas,
		OpDrawingStart, OpDrawingPath, OpDrawingEnd,
	}

	var g Guard
	for _, op := range ops {
		assert.True(t, g.Authorize(editor, op), "editor op %d", op)
		assert.True(t, g.Authorize(owner, op), "owner op %d", op)
		assert.False(t, g.Authorize(viewer, op), "viewer op %d", op)
		assert.False(t, g.Authorize(nil, op), "no membership op %d", op)
	}
}

func TestGuardSilent(t *testing.T) {
	var g Guard
	for _, op := range []Op{OpDrawingStart, OpDrawingPath, OpDrawingEnd} {
		assert.True(t, g.Silent(op), "stroke op %d", op)
	}
	for _, op := range []Op{OpAddObject, OpModifyObject, OpRemoveObject, OpClearCanvas} {
		assert.False(t, g.Silent(op), "object op %d", op)
	}
}
