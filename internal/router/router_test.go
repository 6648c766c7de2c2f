package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"taskservice/internal/auth"
	"taskservice/internal/handler"
	"taskservice/internal/logging"
	"taskservice/internal/model"
	"taskservice/internal/repository"
	"taskservice/internal/service"
)

// mapKV is an in-process stand-in for the redis cache.
type mapKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mapKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// countingUsers records credential store lookups by id.
type countingUsers struct {
	repository.UserRepository
	findByID atomic.Int32
}

func (c *countingUsers) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	c.findByID.Add(1)
	return c.UserRepository.FindByID(ctx, id)
}

type testServer struct {
	e        *echo.Echo
	users    *countingUsers
	kv       *mapKV
	resolver *auth.IdentityResolver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logging.Discard()

	users := &countingUsers{UserRepository: repository.NewMemoryUserRepository()}
	tasks := repository.NewMemoryTaskRepository()
	kv := &mapKV{data: make(map[string][]byte)}

	tokens := auth.NewJWTService("test-secret", time.Hour)
	resolver := auth.NewIdentityResolver(users, auth.NewIdentityCache(kv, time.Minute), log)

	authService := service.NewAuthService(users, tokens, bcrypt.MinCost, log)
	taskService := service.NewTaskService(tasks, log)

	e := echo.New()
	Register(e, log, Handlers{
		User:   handler.NewUserHandler(authService),
		TaskV1: handler.NewTaskHandler(taskService, log),
		TaskV2: handler.NewTaskHandlerV2(taskService, log),
		Status: handler.NewStatusHandler(service.NewStatusService(nil, nil)),
		Auth:   auth.Middleware(tokens, resolver),
	})

	return &testServer{e: e, users: users, kv: kv, resolver: resolver}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signup(t *testing.T, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "pw123456789012"}

	rec := s.do(t, http.MethodPost, "/v1/user/create", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/v1/user/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out handler.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (s *testServer) createTask(t *testing.T, version, token string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/"+version+"/task", token, map[string]string{
		"name":        "n",
		"description": "d",
		"dueDate":     time.Now().UTC().Format(time.RFC3339),
		"status":      "completed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out handler.CreateTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) model.PublicTask {
	t.Helper()
	var task model.PublicTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task), rec.Body.String())
	return task
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.NotEmpty(t, body.Error)
	return body.Code
}

func TestUserFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")

	rec := s.do(t, http.MethodGet, "/v1/user/whoami", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"u@test.com"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/v1/user/create", "", map[string]string{"email": "U@test.com", "password": "pw123456789012"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/v1/user/login", "", map[string]string{"email": "u@test.com", "password": "wrong-password-1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/v1/user/login", "", map[string]string{"email": "u@test.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "MISSING_FIELD", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/v1/user/create", "", map[string]string{"email": "v@test.com", "password": "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/v1/user/create", "", map[string]string{"email": "mb@test.com", "password": strings.Repeat("é", 40)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/v1/user/whoami", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTaskScenario(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")
	id := s.createTask(t, "v1", token)

	rec := s.do(t, http.MethodGet, "/v1/task/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	before := decodeTask(t, rec)
	assert.Equal(t, id, before.ID)
	assert.Equal(t, "n", before.Name)
	assert.Equal(t, "d", before.Description)
	assert.Equal(t, model.TaskStatusNew, before.Status)

	rec = s.do(t, http.MethodPut, "/v1/task/"+id, token, map[string]string{"name": "n2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/task/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after := decodeTask(t, rec)
	assert.Equal(t, "n2", after.Name)
	assert.Equal(t, before.Description, after.Description)
	assert.True(t, before.DueDate.Equal(after.DueDate))
	assert.Equal(t, before.Status, after.Status)
}

func TestTaskUpdate_NoChange(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")
	id := s.createTask(t, "v1", token)

	rec := s.do(t, http.MethodPut, "/v1/task/"+id, token, map[string]string{"name": "n", "status": "new"})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Zero(t, rec.Body.Len())

	rec = s.do(t, http.MethodPut, "/v1/task/"+id, token, map[string]string{})
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestTaskStatusAcrossVersions(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")
	id := s.createTask(t, "v2", token)

	rec := s.do(t, http.MethodPut, "/v1/task/"+id, token, map[string]string{"status": "in-progress"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = s.do(t, http.MethodPut, "/v2/task/"+id, token, map[string]string{"status": "in-progress"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.TaskStatusInProgress, decodeTask(t, rec).Status)

	rec = s.do(t, http.MethodGet, "/v1/task/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TaskStatusInProgress, decodeTask(t, rec).Status)

	rec = s.do(t, http.MethodPut, "/v1/task/"+id, token, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/v1/task/"+id, token, map[string]string{"status": "new"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPut, "/v2/task/"+id, token, map[string]string{"status": "new"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTaskOwnership(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice@test.com")
	bob := s.signup(t, "bob@test.com")
	id := s.createTask(t, "v1", alice)

	for _, version := range []string{"v1", "v2"} {
		path := "/" + version + "/task/" + id
		rec := s.do(t, http.MethodGet, path, bob, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, version)
		rec = s.do(t, http.MethodPut, path, bob, map[string]string{"name": "stolen"})
		assert.Equal(t, http.StatusForbidden, rec.Code, version)
		rec = s.do(t, http.MethodDelete, path, bob, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, version)
	}

	rec := s.do(t, http.MethodGet, "/v1/task", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/task/"+id, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "n", decodeTask(t, rec).Name)
}

func TestTaskDelete(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")
	id := s.createTask(t, "v2", token)

	rec := s.do(t, http.MethodDelete, "/v2/task/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/task/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/v1/task/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestTaskUpdate_WrongFieldType(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")
	id := s.createTask(t, "v2", token)

	rec := s.do(t, http.MethodPut, "/v2/task/"+id, token, map[string]int{"status": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestTaskBadID(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")

	rec := s.do(t, http.MethodGet, "/v1/task/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/task/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskCreate_Validation(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")

	rec := s.do(t, http.MethodPost, "/v1/task", token, map[string]string{"name": "n", "description": "d"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/task", token, map[string]string{"name": "n", "description": "d", "dueDate": "someday"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/task", "", map[string]string{"name": "n", "description": "d", "dueDate": "2030-01-02"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTaskList_Streams(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")
	ids := []string{s.createTask(t, "v1", token), s.createTask(t, "v2", token)}

	rec := s.do(t, http.MethodGet, "/v2/task", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))

	var tasks []model.PublicTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks), rec.Body.String())
	got := make([]string, 0, len(tasks))
	for _, task := range tasks {
		got = append(got, task.ID)
	}
	assert.ElementsMatch(t, ids, got)
}

func TestIdentityCache_SkipsStoreOnHit(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "u@test.com")

	rec := s.do(t, http.MethodGet, "/v1/user/whoami", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s.resolver.Wait()
	require.Equal(t, int32(1), s.users.findByID.Load())

	claims, err := auth.NewJWTService("test-secret", time.Hour).Verify(token)
	require.NoError(t, err)
	assert.True(t, s.kv.has(auth.IdentityKey(claims.UserID)))

	rec = s.do(t, http.MethodGet, "/v1/task", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), s.users.findByID.Load())
}

func TestStatusAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/v1/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cache":"disabled","db":"memory"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
