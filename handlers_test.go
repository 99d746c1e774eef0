package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret-0123456789abcdef"

func newTestAuth(t *testing.T, db *gorm.DB, admins ...string) *Auth {
	t.Helper()
	auth, err := NewAuth(db, AuthConfig{
		Secret:      testSecret,
		SessionTTL:  time.Hour,
		AdminEmails: admins,
	}, false)
	require.NoError(t, err)
	return auth
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	auth   *Auth
	admin  string // bearer token
	user   string // bearer token
}

func newTestServer(t *testing.T, store QuestStore) *testServer {
	t.Helper()
	db := openTestDB(t)
	if store == nil {
		store = NewSQLStore(db)
	}
	auth := newTestAuth(t, db)
	ctx := context.Background()

	admin, err := auth.CreateUser(ctx, "admin@example.com", "correct horse", true)
	require.NoError(t, err)
	user, err := auth.CreateUser(ctx, "user@example.com", "battery staple", false)
	require.NoError(t, err)
	adminToken, _, err := auth.IssueToken(ctx, admin)
	require.NoError(t, err)
	userToken, _, err := auth.IssueToken(ctx, user)
	require.NoError(t, err)

	return &testServer{
		router: newRouter(ServerConfig{}, store, auth, nil),
		db:     db,
		auth:   auth,
		admin:  adminToken,
		user:   userToken,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/admin/quests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/quests", s.user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/quests", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/quests", s.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateQuestsObjectOrArray(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/admin/quests", s.admin,
		QuestInput{Title: "Slay the dragon", Category: "Combat"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	one := decode[[]Quest](t, w)
	require.Len(t, one, 1)
	assert.Equal(t, "Combat", one[0].CategoryName)

	w = s.do(t, http.MethodPost, "/api/v1/admin/quests", s.admin,
		[]QuestInput{{Title: "Find the ring"}, {Title: "Deliver the letter", CategoryID: one[0].CategoryID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode[[]Quest](t, w), 2)

	w = s.do(t, http.MethodPost, "/api/v1/admin/quests", s.admin, `{"title": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/quests", s.admin, QuestInput{Description: "no title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[map[string]any](t, w)["kind"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/quests?q=ring", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Find the ring"}, titles(decode[[]Quest](t, w)))

	w = s.do(t, http.MethodGet, "/api/v1/admin/quests?categoryId="+one[0].CategoryID, s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]Quest](t, w), 2)
}

func TestQuestLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/admin/quests", s.admin, QuestInput{Title: "Q1"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[[]Quest](t, w)[0].ID

	w = s.do(t, http.MethodPut, "/api/v1/admin/quests/"+id, s.admin, QuestInput{Title: "Q1 v2", Description: "d"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Q1 v2", decode[Quest](t, w).Title)

	w = s.do(t, http.MethodGet, "/api/v1/admin/quests/"+id, s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "d", decode[Quest](t, w).Description)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/quests/"+id, s.admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/quests/"+id, s.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[map[string]any](t, w)["kind"])

	w = s.do(t, http.MethodDelete, "/api/v1/admin/quests/"+id, s.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/admin/categories", s.admin, CategoryInput{Name: "Combat"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cat := decode[Category](t, w)

	w = s.do(t, http.MethodPost, "/api/v1/admin/categories", s.admin, CategoryInput{Name: "Combat"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate", decode[map[string]any](t, w)["kind"])

	w = s.do(t, http.MethodPut, "/api/v1/admin/categories/"+cat.ID, s.admin, CategoryInput{Name: "Fighting"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/categories?q=fight", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Fighting"}, names(decode[[]Category](t, w)))

	w = s.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []string{uncategorizedName, "Fighting"}, names(decode[[]Category](t, w)))

	w = s.do(t, http.MethodDelete, "/api/v1/admin/categories/"+UncategorizedID, s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/categories/"+cat.ID, s.admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/categories/"+cat.ID, s.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraw(t *testing.T) {
	s := newTestServer(t, nil)
	var inputs []QuestInput
	for _, title := range []string{"Q1", "Q2", "Q3", "Q4", "Q5"} {
		inputs = append(inputs, QuestInput{Title: title, Category: "A"})
	}
	inputs = append(inputs, QuestInput{Title: "B1", Category: "B"})
	w := s.do(t, http.MethodPost, "/api/v1/admin/quests", s.admin, inputs)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[[]Quest](t, w)

	w = s.do(t, http.MethodGet, "/api/v1/draw?count=3&seed=99", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[DrawResponse](t, w)
	assert.Equal(t, int64(99), first.Seed)
	assert.Len(t, first.Quests, 3)

	w = s.do(t, http.MethodGet, "/api/v1/draw?count=3&seed=99", "", nil)
	assert.Equal(t, first, decode[DrawResponse](t, w), "same seed, same draw")

	w = s.do(t, http.MethodGet, "/api/v1/draw", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[DrawResponse](t, w).Quests, 6, "default count is capped by the pool")

	w = s.do(t, http.MethodGet, "/api/v1/draw?count=10&categoryId="+created[5].CategoryID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"B1"}, titles(decode[DrawResponse](t, w).Quests))

	for _, q := range []string{"count=0", "count=abc", "seed=x"} {
		w = s.do(t, http.MethodGet, "/api/v1/draw?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodPost, "/api/v1/admin/quests", s.admin, []QuestInput{
		{Title: "Q1", Category: "A"}, {Title: "Q2", Category: "A"}, {Title: "Q3"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/stats", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[StatsResponse](t, w)
	assert.Equal(t, 3, stats.TotalQuests)
	assert.Equal(t, 2, stats.TotalCategories)

	counts := map[string]int{}
	for _, c := range stats.ByCategory {
		counts[c.Name] = c.Count
	}
	assert.Equal(t, map[string]int{uncategorizedName: 1, "A": 2}, counts)
}

func TestSheetBackedETagAndIfMatch(t *testing.T) {
	store, fake := newABSheet()
	s := newTestServer(t, store)

	w := s.do(t, http.MethodGet, "/api/v1/admin/quests", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = s.do(t, http.MethodPost, "/api/v1/admin/quests", s.admin, QuestInput{Title: "Q2"})
	assert.Equal(t, http.StatusConflict, w.Code, "sheet titles are unique")

	w = s.do(t, http.MethodPost, "/api/v1/admin/categories", s.admin, CategoryInput{Name: "C"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "sheet categories are derived")

	w = s.do(t, http.MethodPost, "/api/v1/admin/quests", s.admin, QuestInput{Title: "Q4"}, "If-Match", etag)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode[[]Quest](t, w), 4)

	// the earlier ETag is stale now
	w = s.do(t, http.MethodDelete, "/api/v1/admin/quests/1", s.admin, nil, "If-Match", etag)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Len(t, fake.rows(), 4)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/quests/missing", s.admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code, "deleting an unknown sheet row succeeds")
}

func TestSheetBackedListsCarryVersionOfTheirRead(t *testing.T) {
	store, fake := newABSheet()
	s := newTestServer(t, store)
	version, err := store.Version(context.Background())
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/v1/admin/quests?categoryId="+categoryID("A"), s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, quoteETag(version), w.Header().Get("ETag"))
	assert.Equal(t, []string{"Q1", "Q2"}, titles(decode[[]Quest](t, w)))

	w = s.do(t, http.MethodGet, "/api/v1/admin/categories", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, quoteETag(version), w.Header().Get("ETag"))

	// one read per list; the ETag is not fetched separately
	gets := fake.gets
	s.do(t, http.MethodGet, "/api/v1/admin/quests", s.admin, nil)
	assert.Equal(t, gets+1, fake.gets)
}

func TestLoginLogoutMe(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginReq{Email: "user@example.com", Password: "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginReq{Email: "USER@example.com ", Password: "battery staple"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	me := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}
	w = me()
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user@example.com", decode[MeResponse](t, w).Email)
	assert.Equal(t, RoleUser, decode[MeResponse](t, w).Role)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	w = me()
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
