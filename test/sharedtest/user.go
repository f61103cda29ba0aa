package sharedtest

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/gavv/httpexpect"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codeRe = regexp.MustCompile(`code is (\d{6})`)

type User struct {
	ID       uint
	TenantID uint
	Email    string

	A  *assert.Assertions
	E  *httpexpect.Expect
	ta *App
	t  *testing.T
}

// LastCode returns the verification code of the last email sent to email.
func (ta *App) LastCode(t *testing.T, email string) string {
	sent := ta.Mailer.SentTo(email)
	require.NotEmpty(t, sent, "no emails to %s", email)

	m := codeRe.FindStringSubmatch(sent[len(sent)-1].Body)
	require.Len(t, m, 2, "no code in email to %s", email)
	return m[1]
}

func (ta *App) newUser(t *testing.T, e *httpexpect.Expect, obj *httpexpect.Object) *User {
	return &User{
		ID:       uint(obj.Value("id").Number().Raw()),
		TenantID: uint(obj.Value("tenantId").Number().Raw()),
		Email:    obj.Value("email").String().Raw(),
		A:        assert.New(t),
		E:        e,
		ta:       ta,
		t:        t,
	}
}

// Signup creates a tenant owned by a new user with email.
func (ta *App) Signup(t *testing.T, email string) *User {
	e := ta.Expect(t)
	id := e.POST("/api/account/signups/start").
		WithJSON(map[string]string{"email": email}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("emailLoginId").String().Raw()

	obj := e.POST("/api/account/signups/" + id + "/complete").
		WithJSON(map[string]string{"code": ta.LastCode(t, email)}).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	return ta.newUser(t, e, obj)
}

// Login logs in an existing user, e.g. an invited one.
func (ta *App) Login(t *testing.T, email string) *User {
	e := ta.Expect(t)
	id := e.POST("/api/account/authentication/login/start").
		WithJSON(map[string]string{"email": email}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("emailLoginId").String().Raw()

	obj := e.POST("/api/account/authentication/login/" + id + "/complete").
		WithJSON(map[string]string{"code": ta.LastCode(t, email)}).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	return ta.newUser(t, e, obj)
}

// Invite adds a member to the user's tenant and logs them in.
func (u *User) Invite(email string, role models.UserRole) *User {
	u.E.POST("/api/account/users/invite").
		WithJSON(map[string]string{"email": email}).
		Expect().
		Status(http.StatusOK)

	invited := u.ta.Login(u.t, email)
	if role != models.UserRoleMember {
		u.E.PUT("/api/account/users/{id}/change-role", invited.ID).
			WithJSON(map[string]string{"role": string(role)}).
			Expect().
			Status(http.StatusOK)
	}
	return invited
}

func (u *User) Tenant() models.Tenant {
	var t models.Tenant
	require.NoError(u.t, u.ta.DB.Where("id = ?", u.TenantID).First(&t).Error)
	return t
}

func (u *User) Subscription() models.Subscription {
	var s models.Subscription
	require.NoError(u.t, u.ta.DB.Where("tenant_id = ?", u.TenantID).First(&s).Error)
	return s
}
