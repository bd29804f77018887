package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_AttachesCredential(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.URL + "/api/v1/")

	require.NoError(t, c.Get(context.Background(), "accounts/perfil/me/", nil, nil))
	assert.Empty(t, gotAuth, "no credential before SetToken")
	assert.Len(t, gotRequestID, 26)

	c.SetToken("abc")
	require.NoError(t, c.Get(context.Background(), "accounts/perfil/me/", nil, nil))
	assert.Equal(t, "Token abc", gotAuth)

	c.ClearToken()
	require.NoError(t, c.Get(context.Background(), "accounts/perfil/me/", nil, nil))
	assert.Empty(t, gotAuth)
}

func TestClient_BearerScheme(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	c := New(server.URL, WithAuthScheme("Bearer"))
	c.SetToken("jwt")

	require.NoError(t, c.Delete(context.Background(), "accounts/portfolio/1/"))
	assert.Equal(t, "Bearer jwt", gotAuth)
}

func TestClient_VerbsAndParams(t *testing.T) {
	type seen struct {
		method, path, query, contentType string
		body                             map[string]any
	}
	var got seen
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = seen{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, contentType: r.Header.Get("Content-Type")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&got.body)
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	c := New(server.URL + "/api/v1")
	ctx := context.Background()
	var out struct {
		OK bool `json:"ok"`
	}

	require.NoError(t, c.Get(ctx, "accounts/profissionais/", url.Values{"search": {"pintor"}}, &out))
	assert.Equal(t, seen{method: "GET", path: "/api/v1/accounts/profissionais/", query: "search=pintor"}, got)
	assert.True(t, out.OK)

	require.NoError(t, c.Post(ctx, "demands/", map[string]string{"title": "x"}, nil))
	assert.Equal(t, "POST", got.method)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, "x", got.body["title"])

	require.NoError(t, c.Patch(ctx, "accounts/perfil/me/", map[string]bool{"is_professional": true}, nil))
	assert.Equal(t, "PATCH", got.method)
	assert.Equal(t, true, got.body["is_professional"])
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 is auth",
			status: http.StatusUnauthorized,
			body:   `{"detail": "Invalid token."}`,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, "Invalid token.", authErr.Detail)
				assert.True(t, IsAuth(err))
			},
		},
		{
			name:   "403 is auth",
			status: http.StatusForbidden,
			body:   `{"detail": "Authentication credentials were not provided."}`,
			check:  func(t *testing.T, err error) { assert.True(t, IsAuth(err)) },
		},
		{
			name:   "400 keeps fields verbatim",
			status: http.StatusBadRequest,
			body:   `{"email": ["Enter a valid email address."], "password": "This field is required.", "profile": {"cnpj": ["Ensure this field has no more than 14 characters."]}, "non_field_errors": ["Unable to log in."]}`,
			check: func(t *testing.T, err error) {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, []string{"Enter a valid email address."}, vErr.Fields["email"])
				assert.Equal(t, []string{"This field is required."}, vErr.Fields["password"])
				assert.Equal(t, []string{"Ensure this field has no more than 14 characters."}, vErr.Fields["profile.cnpj"])
				assert.Equal(t, []string{"Unable to log in."}, vErr.NonField)
				assert.Equal(t, []string{"email", "password", "profile.cnpj"}, vErr.FieldNames())
				assert.Contains(t, vErr.Error(), "email: Enter a valid email address.")
			},
		},
		{
			name:   "404 is not found",
			status: http.StatusNotFound,
			body:   `{"detail": "Not found."}`,
			check:  func(t *testing.T, err error) { assert.True(t, IsNotFound(err)) },
		},
		{
			name:   "500 is server",
			status: http.StatusInternalServerError,
			body:   `<html>oops</html>`,
			check:  func(t *testing.T, err error) { assert.True(t, IsServer(err)) },
		},
		{
			name:   "503 is server",
			status: http.StatusServiceUnavailable,
			check:  func(t *testing.T, err error) { assert.True(t, IsServer(err)) },
		},
		{
			name:   "409 is a plain status error",
			status: http.StatusConflict,
			body:   `{"detail": "conflict"}`,
			check: func(t *testing.T, err error) {
				var sErr *StatusError
				require.ErrorAs(t, err, &sErr)
				assert.Equal(t, http.StatusConflict, sErr.Status)
				assert.False(t, IsAuth(err) || IsValidation(err) || IsServer(err) || IsNotFound(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := New(server.URL).Get(context.Background(), "accounts/perfil/me/", nil, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_NetworkErrors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		err := New(addr).Get(context.Background(), "accounts/perfil/me/", nil, nil)
		assert.True(t, IsNetwork(err), "got %v", err)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		err := New(server.URL, WithTimeout(50*time.Millisecond)).Get(context.Background(), "slow/", nil, nil)
		assert.True(t, IsNetwork(err), "got %v", err)
	})
}

func TestLogin_TokenFieldNames(t *testing.T) {
	tests := map[string]string{
		`{"token": "t1"}`:                 "t1",
		`{"auth_token": "t2"}`:            "t2",
		`{"key": "t3"}`:                   "t3",
		`{"auth_token": "b", "key": "c"}`: "b",
		`{"token": "a", "key": "c"}`:      "a",
		`{"user": {"email": "a@b.com"}}`:  "",
	}

	for body, want := range tests {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/auth/login/", r.URL.Path)
				assert.Empty(t, r.Header.Get("Authorization"))
				var req LoginRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "a@b.com", req.Email)
				w.Write([]byte(body))
			}))
			defer server.Close()

			c := New(server.URL)
			c.SetToken("stale")
			resp, err := c.Login(context.Background(), "a@b.com", "secret")
			require.NoError(t, err)
			assert.Equal(t, want, resp.Token())
		})
	}
}

func TestLogout_UsesExplicitToken(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL)
	require.NoError(t, c.Logout(context.Background(), "old"))
	assert.Equal(t, "Token old", gotAuth)
	assert.Equal(t, "/auth/logout/", gotPath)
}

func TestMe_DecodesProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 42, "email": "a@b.com", "is_professional": true, "profile": {"full_name": "Ana", "profession": "Pintor"}}`))
	}))
	defer server.Close()

	p, err := New(server.URL).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ID("42"), p.ID)
	assert.True(t, p.IsProfessional)
	assert.Equal(t, "Ana", p.Details.FullName)
	assert.Equal(t, "Pintor", p.Details.Profession)
}

func TestID_JSON(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 7, "b": "01HZX", "c": null}`), &v))
	assert.Equal(t, ID("7"), v.A)
	assert.Equal(t, ID("01HZX"), v.B)
	assert.Equal(t, ID(""), v.C)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 7, "b": "01HZX", "c": ""}`, string(out))
}

func TestUpdateMe_OmitsUnsetFields(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`{"id": 1, "email": "a@b.com", "is_professional": false, "profile": {}}`))
	}))
	defer server.Close()

	name := "Ana"
	_, err := New(server.URL).UpdateMe(context.Background(), ProfileUpdate{Profile: &ProfileFields{FullName: &name}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"profile": map[string]any{"full_name": "Ana"}}, raw)
}
