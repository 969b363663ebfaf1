package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-dashboard/internal/auth"
	"sentiment-dashboard/internal/config"
	"sentiment-dashboard/internal/database"
	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/pkg/types"
)

const (
	adminID   = "00000000-0000-4000-8000-000000000001"
	user1ID   = "00000000-0000-4000-8000-000000000002"
	user3ID   = "00000000-0000-4000-8000-000000000003"
	postP1    = "10000000-0000-4000-8000-000000000001"
	postP2    = "10000000-0000-4000-8000-000000000002"
	missingID = "99999999-0000-4000-8000-000000000009"
)

// fakeStore keeps posts and grants in memory. Methods not overridden panic
// through the nil embedded interface.
type fakeStore struct {
	Store

	mu        sync.Mutex
	posts     map[string]*models.Post
	grants    map[[2]string]bool
	authUsers map[string]*models.AuthUser
	jobs      map[string]*models.ScrapeJob
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		posts:     map[string]*models.Post{},
		grants:    map[[2]string]bool{},
		authUsers: map[string]*models.AuthUser{},
		jobs:      map[string]*models.ScrapeJob{},
	}
	for _, id := range []string{postP1, postP2} {
		s.posts[id] = &models.Post{ID: id, CreatedAt: time.Now()}
	}
	for _, u := range []*models.AuthUser{
		{ID: adminID, Username: "admin", Email: "admin@example.com", Role: types.RoleAdmin},
		{ID: user1ID, Username: "u1", Email: "u1@example.com", Role: types.RoleUser},
		{ID: user3ID, Username: "u3", Email: "u3@example.com", Role: types.RoleUser},
	} {
		s.authUsers[u.ID] = u
	}
	return s
}

func (s *fakeStore) visible(postID string, v types.Viewer) bool {
	return v.IsAdmin() || s.grants[[2]string{v.UserID, postID}]
}

func (s *fakeStore) FindAllPostsWithAccess(_ context.Context, v types.Viewer, _ types.PostQueryOptions) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Post
	for _, id := range []string{postP1, postP2} {
		if s.visible(id, v) {
			out = append(out, s.posts[id])
		}
	}
	return out, nil
}

func (s *fakeStore) CountPostsWithAccess(ctx context.Context, v types.Viewer, opts types.PostQueryOptions) (int, error) {
	posts, err := s.FindAllPostsWithAccess(ctx, v, opts)
	return len(posts), err
}

func (s *fakeStore) FindPostByIDWithAccess(_ context.Context, id string, v types.Viewer, _ types.PostQueryOptions) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || !s.visible(id, v) {
		return nil, database.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) GrantAccess(_ context.Context, userID, postID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[postID]; !ok {
		return database.ErrNotFound
	}
	s.grants[[2]string{userID, postID}] = true
	return nil
}

func (s *fakeStore) RevokeAccess(_ context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, [2]string{userID, postID})
	return nil
}

func (s *fakeStore) BulkGrantPostsToUser(_ context.Context, userID string, postIDs []string, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []string
	for _, id := range postIDs {
		if _, ok := s.posts[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return 0, &database.ReferenceError{Kind: "post", Missing: missing}
	}
	for _, id := range postIDs {
		s.grants[[2]string{userID, id}] = true
	}
	return len(postIDs), nil
}

func (s *fakeStore) FindAuthUserByEmail(_ context.Context, email string) (*models.AuthUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.authUsers {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) FindAuthUserByID(_ context.Context, id string) (*models.AuthUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.authUsers[id]; ok {
		return u, nil
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) CreateScrapeJob(_ context.Context, requestedBy, url, typ string, maxPosts int) (*models.ScrapeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &models.ScrapeJob{
		ID: "20000000-0000-4000-8000-000000000001", RequestedBy: requestedBy,
		TargetURL: url, TargetType: typ, MaxPosts: maxPosts, Status: models.JobPending,
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *fakeStore) UpdateScrapeJob(_ context.Context, id, status, executionID, jobErr string) (*models.ScrapeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	job.Status = status
	if executionID != "" {
		job.ExecutionID = &executionID
	}
	if jobErr != "" {
		job.Error = &jobErr
	}
	return job, nil
}

type fakeWorkflow struct {
	executionID string
	err         error
	calls       int
}

func (f *fakeWorkflow) Enabled() bool { return true }

func (f *fakeWorkflow) Trigger(context.Context, *models.ScrapeJob) (string, error) {
	f.calls++
	return f.executionID, f.err
}

type testEnv struct {
	store   *fakeStore
	tokens  *auth.JWTManager
	handler http.Handler
}

func newTestEnv(t *testing.T, wf Workflow) *testEnv {
	t.Helper()
	logger, _ := test.NewNullLogger()

	tokens, err := auth.NewJWTManager(config.AuthConfig{JWTSecret: "handler-test-secret-123", TokenTTL: time.Hour})
	require.NoError(t, err)
	authz, err := auth.NewAuthorizer()
	require.NoError(t, err)

	store := newFakeStore()
	srv := NewServer(config.ServerConfig{CORSOrigins: []string{"*"}}, Deps{
		Store:          store,
		Tokens:         tokens,
		Authorizer:     authz,
		Workflow:       wf,
		CallbackSecret: "callback-secret",
		Logger:         logger,
	})
	return &testEnv{store: store, tokens: tokens, handler: srv.Router()}
}

func (e *testEnv) token(t *testing.T, id string) string {
	t.Helper()
	token, _, err := e.tokens.GenerateToken(e.store.authUsers[id])
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp APIResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth_Public(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, resp := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodGet, "/api/posts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUnauthorized, resp.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/posts", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	body := grantRequest{AuthUserID: user1ID, PostID: postP1}

	rec, resp := env.do(t, http.MethodPost, "/api/admin/access", env.token(t, user1ID), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, CodeForbidden, resp.Code)
	assert.Empty(t, env.store.grants)
}

func TestGrantRevokeVisibility(t *testing.T) {
	env := newTestEnv(t, nil)
	admin, u1 := env.token(t, adminID), env.token(t, user1ID)

	rec, resp := env.do(t, http.MethodGet, "/api/posts", u1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, resp.Meta.Total)

	rec, hidden := env.do(t, http.MethodGet, "/api/posts/"+postP1, u1, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/admin/access", admin, grantRequest{AuthUserID: user1ID, PostID: postP1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/posts", u1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, &ListMeta{Total: 1, Limit: types.DefaultLimit, Offset: 0}, resp.Meta)

	rec, _ = env.do(t, http.MethodGet, "/api/posts/"+postP1, u1, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/admin/access/"+user1ID+"/"+postP1, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	// revoking twice is a no-op
	rec, _ = env.do(t, http.MethodDelete, "/api/admin/access/"+user1ID+"/"+postP1, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, afterRevoke := env.do(t, http.MethodGet, "/api/posts/"+postP1, u1, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, hidden, afterRevoke)
}

func TestNotFoundAndHiddenLookAlike(t *testing.T) {
	env := newTestEnv(t, nil)
	u1 := env.token(t, user1ID)

	recHidden, hidden := env.do(t, http.MethodGet, "/api/posts/"+postP2, u1, nil)
	recMissing, missing := env.do(t, http.MethodGet, "/api/posts/"+missingID, u1, nil)

	assert.Equal(t, http.StatusNotFound, recHidden.Code)
	assert.Equal(t, recHidden.Code, recMissing.Code)
	assert.Equal(t, hidden, missing)
	assert.Equal(t, recHidden.Body.String(), recMissing.Body.String())
}

func TestAdminSeesEverything(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, resp := env.do(t, http.MethodGet, "/api/posts?limit=1", env.token(t, adminID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Limit)
}

func TestBulkGrant_InvalidReference(t *testing.T) {
	env := newTestEnv(t, nil)
	body := bulkPostsRequest{AuthUserID: user3ID, PostIDs: []string{postP1, missingID}}

	rec, resp := env.do(t, http.MethodPost, "/api/admin/access/bulk/posts", env.token(t, adminID), body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeInvalidReference, resp.Code)
	assert.Equal(t, []string{missingID}, resp.Details)
	assert.Empty(t, env.store.grants)
}

func TestBulkGrant_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	body := bulkPostsRequest{AuthUserID: user3ID, PostIDs: []string{postP1, postP2}}

	rec, resp := env.do(t, http.MethodPost, "/api/admin/access/bulk/posts", env.token(t, adminID), body)
	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2, data["granted"])
	assert.Len(t, env.store.grants, 2)
}

func TestGrant_ValidationFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.token(t, adminID)

	tests := []struct {
		name  string
		body  interface{}
		field string
	}{
		{"missing user", map[string]string{"post_id": postP1}, "auth_user_id"},
		{"malformed post", map[string]string{"auth_user_id": user1ID, "post_id": "nope"}, "post_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodPost, "/api/admin/access", admin, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodeValidation, resp.Code)
			assert.Contains(t, resp.Error, tt.field)
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	hash, err := auth.HashPassword("s3cret-password")
	require.NoError(t, err)
	env.store.authUsers[user1ID].PasswordHash = hash

	rec, resp := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "U1@example.com", Password: "s3cret-password"})
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	assert.NotContains(t, rec.Body.String(), hash)

	rec, resp = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", resp.Data.(map[string]interface{})["username"])

	recWrong, wrong := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "u1@example.com", Password: "wrong-password"})
	recUnknown, unknown := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "nobody@example.com", Password: "whatever"})
	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	assert.Equal(t, recWrong.Code, recUnknown.Code)
	assert.Equal(t, wrong, unknown)
}

func TestScrape(t *testing.T) {
	wf := &fakeWorkflow{executionID: "exec-1"}
	env := newTestEnv(t, wf)

	rec, resp := env.do(t, http.MethodPost, "/api/scrape", env.token(t, user1ID),
		scrapeRequest{URL: "https://facebook.com/page", Type: "page"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, wf.calls)

	job := resp.Data.(map[string]interface{})
	assert.Equal(t, models.JobRunning, job["status"])
	assert.Equal(t, "exec-1", job["execution_id"])
	assert.EqualValues(t, defaultMaxPosts, job["max_posts"])
}

func TestScrape_WorkflowFailure(t *testing.T) {
	wf := &fakeWorkflow{err: errors.New("connection refused")}
	env := newTestEnv(t, wf)

	rec, resp := env.do(t, http.MethodPost, "/api/scrape", env.token(t, user1ID),
		scrapeRequest{URL: "https://facebook.com/page", Type: "post", MaxPosts: 5})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, CodeUpstream, resp.Code)
	assert.Equal(t, models.JobFailed, resp.Data.(map[string]interface{})["status"])
}

func TestScrape_Disabled(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, resp := env.do(t, http.MethodPost, "/api/scrape", env.token(t, user1ID),
		scrapeRequest{URL: "https://facebook.com/page", Type: "page"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeUnavailable, resp.Code)
}

func TestWorkflowCallback(t *testing.T) {
	env := newTestEnv(t, &fakeWorkflow{executionID: "exec-1"})
	job, err := env.store.CreateScrapeJob(context.Background(), user1ID, "https://facebook.com/page", "page", 10)
	require.NoError(t, err)

	body := `{"job_id":"` + job.ID + `","status":"completed"}`

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/workflow", strings.NewReader(body))
	req.Header.Set(workflowSecretHeader, "wrong")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, models.JobPending, job.Status)

	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/workflow", strings.NewReader(body))
	req.Header.Set(workflowSecretHeader, "callback-secret")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.JobCompleted, job.Status)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, resp := env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
}

func TestExportPosts_OnlyVisible(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.grants[[2]string{user1ID, postP2}] = true

	req := httptest.NewRequest(http.MethodGet, "/api/posts/export", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, user1ID))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Page,URL"))
	assert.True(t, strings.HasPrefix(lines[1], postP2))
}
