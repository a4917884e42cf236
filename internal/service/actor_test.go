package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorCapabilities(t *testing.T) {
	student := NewActor(1, "Student")
	require.True(t, student.Can(CapabilityStudent))
	require.False(t, student.Can(CapabilityInstructor))
	require.False(t, student.SeesInactive())

	for _, role := range []string{"instructor", " ADMIN ", "teacher"} {
		actor := NewActor(2, role)
		require.True(t, actor.Can(CapabilityInstructor), role)
		require.True(t, actor.Can(CapabilityStudent), role)
	}

	anonymous := NewActor(0, "instructor")
	require.ErrorIs(t, requireCapability(anonymous, CapabilityStudent), ErrForbidden)
}
