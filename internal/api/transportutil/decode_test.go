package transportutil

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pathArgs struct {
	UserID uint   `request:"id,urlPart,"`
	Plan   string `request:"plan,urlParam,optional"`
	Sig    string `request:"Stripe-Signature,header,optional"`
}

type bodyArgs struct {
	Email string `json:"email"`
}

type mixedArgs struct {
	UserID uint `request:"id,urlPart,"`
	Email  string
}

// decodeVia routes r through mux so url parts are filled.
func decodeVia(t *testing.T, r *http.Request, arg interface{}) error {
	var decodeErr error
	router := mux.NewRouter()
	router.Path("/users/{id}").HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		decodeErr = decodeRequestField(reflect.ValueOf(arg).Elem(), r)
	})
	router.ServeHTTP(httptest.NewRecorder(), r)
	return decodeErr
}

func TestDecodeTaggedFields(t *testing.T) {
	r := httptest.NewRequest("GET", "/users/12?plan=Premium", nil)
	r.Header.Set("Stripe-Signature", "t=1,v1=abc")

	var args *pathArgs
	require.NoError(t, decodeVia(t, r, &args))
	assert.Equal(t, &pathArgs{UserID: 12, Plan: "Premium", Sig: "t=1,v1=abc"}, args)
}

func TestDecodeRejectsBadValues(t *testing.T) {
	var args *pathArgs
	err := decodeVia(t, httptest.NewRequest("GET", "/users/-3", nil), &args)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urlPart id")
}

func TestDecodeJSONBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/users/1", strings.NewReader(`{"email":"a@example.com"}`))
	var args *bodyArgs
	require.NoError(t, decodeVia(t, r, &args))
	assert.Equal(t, "a@example.com", args.Email)

	var empty *bodyArgs
	require.NoError(t, decodeVia(t, httptest.NewRequest("POST", "/users/1", nil), &empty))
	assert.Equal(t, "", empty.Email)

	var broken *bodyArgs
	assert.Error(t, decodeVia(t, httptest.NewRequest("POST", "/users/1", strings.NewReader("{")), &broken))
}

func TestDecodeRejectsMixedSources(t *testing.T) {
	var args *mixedArgs
	assert.Error(t, decodeVia(t, httptest.NewRequest("POST", "/users/1", strings.NewReader("{}")), &args))
}

func TestParseFieldTag(t *testing.T) {
	type bad struct {
		A string `request:"a,cookie,"`
		B string `request:"b,header,maybe"`
		C string `request:"c"`
	}
	rt := reflect.TypeOf(bad{})
	for i := 0; i < rt.NumField(); i++ {
		_, err := parseFieldTag(rt.Field(i))
		assert.Error(t, err, rt.Field(i).Name)
	}

	ft, err := parseFieldTag(reflect.TypeOf(pathArgs{}).Field(0))
	require.NoError(t, err)
	assert.Equal(t, fieldTag{name: "id", source: fromURLPart, required: true}, ft)
}
