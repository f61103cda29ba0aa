package user_test

import (
	"net/http"
	"testing"

	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/test/sharedtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteAndList(t *testing.T) {
	ta := sharedtest.RunApp(t)
	owner := ta.Signup(t, "owner@example.com")

	owner.E.POST("/api/account/users/invite").
		WithJSON(map[string]string{"email": " Member@Example.com "}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("role").String().Equal(string(models.UserRoleMember))

	sent := ta.Mailer.SentTo("member@example.com")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "You were invited")

	users := owner.E.GET("/api/account/users").Expect().Status(http.StatusOK).
		JSON().Object().Value("users").Array()
	users.Length().Equal(2)
	users.Element(0).Object().Value("email").String().Equal("owner@example.com")
	users.Element(1).Object().Value("email").String().Equal("member@example.com")

	member := ta.Login(t, "member@example.com")
	assert.Equal(t, owner.TenantID, member.TenantID)
}

func TestInviteRejectsExistingUser(t *testing.T) {
	ta := sharedtest.RunApp(t)
	owner := ta.Signup(t, "owner@example.com")
	ta.Signup(t, "other@example.com")

	owner.E.POST("/api/account/users/invite").
		WithJSON(map[string]string{"email": "other@example.com"}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Object().Value("error").Object().Value("message").String().
		Equal("The user with 'other@example.com' already exists.")
}

func TestInviteRequiresOwner(t *testing.T) {
	ta := sharedtest.RunApp(t)
	owner := ta.Signup(t, "owner@example.com")
	member := owner.Invite("member@example.com", models.UserRoleMember)

	member.E.POST("/api/account/users/invite").
		WithJSON(map[string]string{"email": "new@example.com"}).
		Expect().
		Status(http.StatusForbidden)
}

func TestChangeRole(t *testing.T) {
	ta := sharedtest.RunApp(t)
	owner := ta.Signup(t, "owner@example.com")
	member := owner.Invite("member@example.com", models.UserRoleMember)

	owner.E.PUT("/api/account/users/{id}/change-role", member.ID).
		WithJSON(map[string]string{"role": "Admin"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("role").String().Equal("Admin")

	owner.E.PUT("/api/account/users/{id}/change-role", member.ID).
		WithJSON(map[string]string{"role": "Superuser"}).
		Expect().
		Status(http.StatusBadRequest)

	owner.E.PUT("/api/account/users/{id}/change-role", owner.ID).
		WithJSON(map[string]string{"role": "Member"}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Object().Value("error").Object().Value("message").String().
		Equal("You cannot change your own user role.")

	member.E.PUT("/api/account/users/{id}/change-role", owner.ID).
		WithJSON(map[string]string{"role": "Member"}).
		Expect().
		Status(http.StatusForbidden)
}

func TestDeleteUser(t *testing.T) {
	ta := sharedtest.RunApp(t)
	owner := ta.Signup(t, "owner@example.com")
	member := owner.Invite("member@example.com", models.UserRoleMember)
	outsider := ta.Signup(t, "outsider@example.com")

	owner.E.DELETE("/api/account/users/{id}", owner.ID).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Object().Value("error").Object().Value("message").String().Equal("You cannot delete yourself.")

	owner.E.DELETE("/api/account/users/{id}", outsider.ID).Expect().Status(http.StatusNotFound)

	owner.E.DELETE("/api/account/users/{id}", member.ID).Expect().Status(http.StatusOK)
	owner.E.GET("/api/account/users").Expect().Status(http.StatusOK).
		JSON().Object().Value("users").Array().Length().Equal(1)
	member.E.GET("/api/account/users/me").Expect().Status(http.StatusForbidden)
}
