package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/memstore"
	shift "github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/entity"
	shiftrepo "github.com/ovaphlow/pitchfork/service-shift-go/internal/shift/repo"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
)

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "plain:" + pw, nil }
func (plainHasher) Verify(hash, pw string) bool    { return hash == "plain:"+pw }

func newTestService(t *testing.T) (*Service, *memstore.Store, *entity.Identity) {
	t.Helper()
	st := memstore.New()
	svc := NewService(st.Identities(), plainHasher{}, nil, nil)
	root, err := svc.Bootstrap(context.Background(), RegisterInput{Username: "root", Email: "root@example.com", Password: "secret", Role: entity.RoleAdmin})
	require.NoError(t, err)
	return svc, st, root
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, _, root := newTestService(t)

	amy, err := svc.Register(ctx, root, RegisterInput{Username: " amy ", Email: "amy@example.com", FullName: "Amy Pond", Password: "pw", PasswordConfirm: "pw", Role: entity.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, "amy", amy.Username)
	assert.False(t, amy.Privileged())
	assert.EqualValues(t, 1, amy.Version)
	assert.NotEmpty(t, amy.ID)

	_, err = svc.Register(ctx, amy, RegisterInput{Username: "bob", Password: "pw", Role: entity.RoleUser})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Register(ctx, nil, RegisterInput{Username: "bob", Password: "pw", Role: entity.RoleUser})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, root := newTestService(t)
	_, err := svc.Register(ctx, root, RegisterInput{Username: "amy", Email: "amy@example.com", Password: "pw", Role: entity.RoleUser})
	require.NoError(t, err)

	cases := map[string]RegisterInput{
		"missing username":   {Password: "pw", Role: entity.RoleUser},
		"password mismatch":  {Username: "bob", Password: "pw", PasswordConfirm: "wp", Role: entity.RoleUser},
		"unknown role":       {Username: "bob", Password: "pw", Role: "owner"},
		"duplicate username": {Username: "amy", Password: "pw", Role: entity.RoleUser},
		"duplicate email":    {Username: "bob", Email: "AMY@example.com", Password: "pw", Role: entity.RoleUser},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, root, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, st, root := newTestService(t)
	amy, err := svc.Register(ctx, root, RegisterInput{Username: "amy", Password: "pw", Role: entity.RoleUser})
	require.NoError(t, err)
	bob, err := svc.Register(ctx, root, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "pw", Role: entity.RoleAdmin})
	require.NoError(t, err)
	require.NoError(t, st.Shifts().Create(ctx, &shift.Shift{ID: "s1", OwnerID: amy.ID}))

	assert.ErrorIs(t, svc.Delete(ctx, root, "root", "root@example.com"), apperr.ErrSelfDelete)
	assert.ErrorIs(t, svc.Delete(ctx, amy, "amy", ""), apperr.ErrSelfDelete)
	assert.ErrorIs(t, svc.Delete(ctx, amy, "bob", "bob@example.com"), apperr.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, root, "bob", "other@example.com"), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, root, "bob", ""), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, root, "nobody", ""), apperr.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, bob, "amy", ""))
	shifts, err := st.Shifts().List(ctx, shiftrepo.Filter{OwnerID: amy.ID})
	require.NoError(t, err)
	assert.Empty(t, shifts)

	require.NoError(t, svc.Delete(ctx, root, "bob", "BOB@example.com"))
	list, err := svc.List(ctx, root)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "root", list[0].Username)
}

type outcomes []string

func (o *outcomes) Record(_ context.Context, _ *entity.Identity, action, outcome, _ string) {
	*o = append(*o, action+" "+outcome)
}

func TestDeleteRecordsOneDecision(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	rec := &outcomes{}
	svc := NewService(st.Identities(), plainHasher{}, gate.New(rec, nil, nil), nil)
	root, err := svc.Bootstrap(ctx, RegisterInput{Username: "root", Password: "pw", Role: entity.RoleAdmin})
	require.NoError(t, err)
	amy, err := svc.Bootstrap(ctx, RegisterInput{Username: "amy", Password: "pw", Role: entity.RoleUser})
	require.NoError(t, err)
	_, err = svc.Bootstrap(ctx, RegisterInput{Username: "bob", Password: "pw", Role: entity.RoleUser})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, root, "bob", ""))
	assert.Equal(t, outcomes{"delete_identity allow"}, *rec)

	*rec = nil
	assert.ErrorIs(t, svc.Delete(ctx, amy, "root", ""), apperr.ErrForbidden)
	assert.Equal(t, outcomes{"delete_identity deny: insufficient privilege"}, *rec)

	*rec = nil
	assert.ErrorIs(t, svc.Delete(ctx, root, "nobody", ""), apperr.ErrNotFound)
	assert.Len(t, *rec, 1)
}

func TestListSorted(t *testing.T) {
	ctx := context.Background()
	svc, _, root := newTestService(t)
	for _, name := range []string{"zed", "amy", "mia"} {
		_, err := svc.Register(ctx, root, RegisterInput{Username: name, Password: "pw", Role: entity.RoleUser})
		require.NoError(t, err)
	}
	list, err := svc.List(ctx, root)
	require.NoError(t, err)
	var names []string
	for _, u := range list {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"amy", "mia", "root", "zed"}, names)

	_, err = svc.List(ctx, &list[0])
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestChangeRole(t *testing.T) {
	ctx := context.Background()
	svc, _, root := newTestService(t)
	amy, err := svc.Register(ctx, root, RegisterInput{Username: "amy", Password: "pw", Role: entity.RoleUser})
	require.NoError(t, err)

	up, err := svc.ChangeRole(ctx, root, "amy", entity.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, up.Privileged())
	assert.Greater(t, up.Version, amy.Version)

	_, err = svc.ChangeRole(ctx, root, "amy", "owner")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.ChangeRole(ctx, root, "ghost", entity.RoleUser)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.ChangeRole(ctx, amy, "root", entity.RoleUser)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	u, err := svc.Authenticate(ctx, "root", "secret")
	require.NoError(t, err)
	assert.Equal(t, "root", u.Username)

	for _, c := range [][2]string{{"root", "wrong"}, {"ghost", "secret"}, {"", ""}} {
		_, err := svc.Authenticate(ctx, c[0], c[1])
		assert.ErrorIs(t, err, ErrBadCredentials)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	}

	emails, err := svc.Emails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root@example.com"}, emails)
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	hash, err := h.Hash("pw")
	require.NoError(t, err)
	assert.True(t, h.Verify(hash, "pw"))
	assert.False(t, h.Verify(hash, "nope"))
}
