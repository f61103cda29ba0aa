package auth_test

import (
	"net/http"
	"testing"

	"github.com/platformplatform/account-api/internal/api/analytics"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/test/sharedtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupCreatesTenant(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "Owner@Example.com")

	assert.Equal(t, "owner@example.com", u.Email)
	me := u.E.GET("/api/account/users/me").Expect().Status(http.StatusOK).JSON().Object()
	me.Value("role").String().Equal(string(models.UserRoleOwner))
	me.Value("emailConfirmed").Boolean().True()

	tenant := u.Tenant()
	assert.Equal(t, models.TenantStateActive, tenant.State)
	assert.Equal(t, models.PlanBasis, u.Subscription().Plan)
	assert.True(t, ta.Analytics.Has(tenant.ID, analytics.EventSignedUp))
}

func TestSignupRejectsUsedEmail(t *testing.T) {
	ta := sharedtest.RunApp(t)
	ta.Signup(t, "owner@example.com")

	ta.Expect(t).POST("/api/account/signups/start").
		WithJSON(map[string]string{"email": "owner@example.com"}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Object().Value("error").Object().Value("code").String().Equal("EMAIL_IN_USE")
}

func TestSignupValidatesInput(t *testing.T) {
	ta := sharedtest.RunApp(t)
	e := ta.Expect(t)

	e.POST("/api/account/signups/start").
		WithJSON(map[string]string{"email": "not an email"}).
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object().Value("error").Object().Value("fields").Object().ContainsKey("email")

	id := e.POST("/api/account/signups/start").
		WithJSON(map[string]string{"email": "owner@example.com"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("emailLoginId").String().Raw()

	e.POST("/api/account/signups/" + id + "/complete").
		WithJSON(map[string]string{"code": "12ab"}).
		Expect().
		Status(http.StatusBadRequest)
}

func TestSignupLimitsAttempts(t *testing.T) {
	ta := sharedtest.RunApp(t)
	e := ta.Expect(t)

	id := e.POST("/api/account/signups/start").
		WithJSON(map[string]string{"email": "owner@example.com"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("emailLoginId").String().Raw()

	code := ta.LastCode(t, "owner@example.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < models.EmailLoginMaxRetries; i++ {
		e.POST("/api/account/signups/" + id + "/complete").
			WithJSON(map[string]string{"code": wrong}).
			Expect().
			Status(http.StatusNotAcceptable).
			JSON().Object().Value("error").Object().Value("code").String().Equal("WRONG_CODE")
	}

	e.POST("/api/account/signups/" + id + "/complete").
		WithJSON(map[string]string{"code": code}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Object().Value("error").Object().Value("code").String().Equal("TOO_MANY_ATTEMPTS")
}

func TestResendCode(t *testing.T) {
	ta := sharedtest.RunApp(t)
	e := ta.Expect(t)

	id := e.POST("/api/account/signups/start").
		WithJSON(map[string]string{"email": "owner@example.com"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("emailLoginId").String().Raw()

	e.POST("/api/account/signups/" + id + "/resend-code").Expect().Status(http.StatusOK)
	require.Len(t, ta.Mailer.SentTo("owner@example.com"), 2)

	e.POST("/api/account/signups/" + id + "/resend-code").
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Object().Value("error").Object().Value("code").String().Equal("TOO_MANY_RESENDS")

	e.POST("/api/account/signups/" + id + "/complete").
		WithJSON(map[string]string{"code": ta.LastCode(t, "owner@example.com")}).
		Expect().
		Status(http.StatusOK)

	e.POST("/api/account/signups/" + id + "/complete").
		WithJSON(map[string]string{"code": ta.LastCode(t, "owner@example.com")}).
		Expect().
		Status(http.StatusNotAcceptable)
}

func TestLoginAndLogout(t *testing.T) {
	ta := sharedtest.RunApp(t)
	owner := ta.Signup(t, "owner@example.com")
	owner.E.POST("/api/account/authentication/logout").Expect().Status(http.StatusOK)
	owner.E.GET("/api/account/users/me").Expect().Status(http.StatusForbidden)

	u := ta.Login(t, "owner@example.com")
	assert.Equal(t, owner.ID, u.ID)
	u.E.GET("/api/account/users/me").Expect().Status(http.StatusOK)
}

func TestLoginDoesNotRevealUnknownEmails(t *testing.T) {
	ta := sharedtest.RunApp(t)
	e := ta.Expect(t)

	id := e.POST("/api/account/authentication/login/start").
		WithJSON(map[string]string{"email": "nobody@example.com"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("emailLoginId").String().Raw()
	assert.Empty(t, ta.Mailer.SentTo("nobody@example.com"))

	e.POST("/api/account/authentication/login/" + id + "/complete").
		WithJSON(map[string]string{"code": "123456"}).
		Expect().
		Status(http.StatusNotAcceptable)
}

func TestUnauthorizedRequestsAreForbidden(t *testing.T) {
	ta := sharedtest.RunApp(t)
	e := ta.Expect(t)

	e.GET("/api/account/users/me").Expect().Status(http.StatusForbidden)
	e.GET("/api/account/tenants/current").Expect().Status(http.StatusForbidden)
	e.GET("/api/account/subscriptions/current").Expect().Status(http.StatusForbidden)
}

func TestResponsesCarryRequestID(t *testing.T) {
	ta := sharedtest.RunApp(t)

	ta.Expect(t).GET("/api/account/users/me").
		WithHeader("X-Request-ID", "edge-1234abcd").
		Expect().
		Status(http.StatusForbidden).
		Header("X-Request-ID").Equal("edge-1234abcd")

	generated := ta.Expect(t).GET("/api/account/users/me").
		WithHeader("X-Request-ID", "bad id forged=1").
		Expect().
		Header("X-Request-ID").Raw()
	assert.Len(t, generated, 36)
	assert.NotContains(t, generated, "forged")
}
