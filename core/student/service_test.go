package student_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/testutil"
)

func TestService_SignIn(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      identity.Identity
		want    student.Student
		wantErr error
	}{
		{name: "anonymous", id: identity.Identity{Name: "Jane"}, wantErr: identity.ErrUnauthenticated},
		{
			name: "first sign-in",
			id:   identity.Identity{UserID: "u1", Name: "  Jane Doe ", Email: "Jane@Test.CD", PhotoURL: "https://pics.test/jane.png"},
			want: student.Student{UID: "u1", Name: "Jane Doe", Email: "jane@test.cd", PhotoURL: "https://pics.test/jane.png"},
		},
		{
			name: "existing record is kept",
			id:   identity.Identity{UserID: "u1", Name: "Janet", Email: "janet@test.cd"},
			want: student.Student{UID: "u1", Name: "Jane Doe", Email: "jane@test.cd", PhotoURL: "https://pics.test/jane.png"},
		},
		{
			name: "defaults",
			id:   identity.Identity{UserID: "u2"},
			want: student.Student{UID: "u2", Name: student.DefaultName, Email: student.DefaultEmail},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := app.StudentSvc.SignIn(ctx, tt.id)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
			if tt.wantErr != nil {
				return
			}
			assert.False(t, got.CreatedAt.IsZero())
			got.CreatedAt = tt.want.CreatedAt
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_GetByID(t *testing.T) {
	app := testutil.NewApp(t)
	st, _ := testutil.SignIn(t, app.StudentSvc, "u1", "Jane", "jane@test.cd")

	got, err := app.StudentSvc.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, st, got)

	_, err = app.StudentSvc.GetByID(context.Background(), "")
	assert.Equal(t, student.ErrNotFound, err)
	_, err = app.StudentSvc.GetByID(context.Background(), "u2")
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
}
