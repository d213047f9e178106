package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/testutil"
)

func TestPaymentAPI_Query(t *testing.T) {
	srv, app := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)
	st, sess := testutil.SignIn(t, app.StudentSvc, "u1", "Jane", "jane@test.cd")
	_, otherSess := testutil.SignIn(t, app.StudentSvc, "u2", "John", "john@test.cd")
	token := getToken(t, srv, st)

	_, err := app.PaymentSvc.RecordPayment(ctx, sess, crs.ID, 49)
	require.NoError(t, err)
	_, err = app.PaymentSvc.RecordPayment(ctx, otherSess, crs.ID, 49)
	require.NoError(t, err)
	payments, err := app.PaymentSvc.QueryForUser(ctx, st.UID)
	require.NoError(t, err)
	require.Len(t, payments, 1)

	tests := []httpTest{
		{
			name:     "anonymous",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "own payments only",
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, payments),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/payments", tt.token)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
