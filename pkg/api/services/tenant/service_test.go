package tenant_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/test/sharedtest"
)

func TestGetCurrentTenant(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	obj := u.E.GET("/api/account/tenants/current").Expect().Status(http.StatusOK).JSON().Object()
	obj.Value("id").Number().Equal(u.TenantID)
	obj.Value("state").String().Equal(string(models.TenantStateActive))
	obj.Value("version").Number().Equal(0)
}

func TestUpdateCurrentTenant(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	obj := u.E.PUT("/api/account/tenants/current").
		WithJSON(map[string]interface{}{"name": "Acme", "version": 0}).
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	obj.Value("name").String().Equal("Acme")
	obj.Value("version").Number().Equal(1)
	u.A.Equal("Acme", u.Tenant().Name)

	// stale version
	u.E.PUT("/api/account/tenants/current").
		WithJSON(map[string]interface{}{"name": "Other", "version": 0}).
		Expect().
		Status(http.StatusConflict)
	u.A.Equal("Acme", u.Tenant().Name)
}

func TestUpdateCurrentTenantValidation(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	for _, name := range []string{"", strings.Repeat("a", 31)} {
		u.E.PUT("/api/account/tenants/current").
			WithJSON(map[string]interface{}{"name": name, "version": 0}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().Value("error").Object().Value("fields").Object().ContainsKey("name")
	}
}

func TestOnlyOwnerUpdatesTenant(t *testing.T) {
	ta := sharedtest.RunApp(t)
	owner := ta.Signup(t, "owner@example.com")
	admin := owner.Invite("admin@example.com", models.UserRoleAdmin)

	admin.E.GET("/api/account/tenants/current").Expect().Status(http.StatusOK)
	admin.E.PUT("/api/account/tenants/current").
		WithJSON(map[string]interface{}{"name": "Acme", "version": 0}).
		Expect().
		Status(http.StatusForbidden).
		JSON().Object().Value("error").Object().Value("message").String().
		Equal("Only owners are allowed to update tenant information.")
}
