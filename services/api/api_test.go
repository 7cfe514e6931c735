package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/testutil"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	logrus.SetLevel(logrus.WarnLevel)
}

type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memRecorder) Record(e audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memRecorder) last(action string) (audit.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Action == action {
			return m.entries[i], true
		}
	}
	return audit.Entry{}, false
}

type envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Pagination *utils.Pagination `json:"pagination"`
}

type testEnv struct {
	t      *testing.T
	deps   *Deps
	store  *repository.Store
	audit  *memRecorder
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.New(testutil.NewTestDB(t))
	rec := &memRecorder{}
	deps := &Deps{
		Store:  store,
		Tokens: utils.NewTokenManager("test-secret", time.Hour),
		Audit:  rec,
	}
	return &testEnv{t: t, deps: deps, store: store, audit: rec, router: NewRouter(deps, "*")}
}

func (e *testEnv) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	e.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// tokenFor issues a token without going through login
func (e *testEnv) tokenFor(userID uuid.UUID, tenantID *uuid.UUID, role models.UserRole) string {
	e.t.Helper()
	token, _, err := e.deps.Tokens.Issue(models.Principal{UserID: userID, TenantID: tenantID, Role: role})
	require.NoError(e.t, err)
	return token
}

type registered struct {
	tenantID   uuid.UUID
	adminID    uuid.UUID
	adminToken string
}

func (e *testEnv) register(name, subdomain, email string) registered {
	e.t.Helper()
	w, env := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"tenantName":    name,
		"subdomain":     subdomain,
		"adminEmail":    email,
		"adminPassword": "Secret123!",
		"adminFullName": name + " Admin",
	})
	require.Equal(e.t, http.StatusCreated, w.Code, env.Message)

	data := decode[struct {
		Tenant struct{ ID uuid.UUID }
		Admin  struct{ ID uuid.UUID }
	}](e.t, env.Data)
	tenantID := data.Tenant.ID
	return registered{
		tenantID:   tenantID,
		adminID:    data.Admin.ID,
		adminToken: e.tokenFor(data.Admin.ID, &tenantID, models.RoleTenantAdmin),
	}
}

func (e *testEnv) superAdminToken() string {
	e.t.Helper()
	hash, err := utils.HashPassword("Admin@123")
	require.NoError(e.t, err)
	super := &models.User{Email: "root@system.com", PasswordHash: hash, FullName: "Root", Role: models.RoleSuperAdmin, IsActive: true}
	require.NoError(e.t, e.store.CreateUser(context.Background(), super))
	return e.tokenFor(super.ID, nil, models.RoleSuperAdmin)
}

func (e *testEnv) createUser(adminToken, email string, role models.UserRole) (uuid.UUID, string) {
	e.t.Helper()
	w, env := e.do(http.MethodPost, "/api/users", adminToken, map[string]string{
		"email":    email,
		"password": "Password1",
		"fullName": email,
		"role":     string(role),
	})
	require.Equal(e.t, http.StatusCreated, w.Code, env.Message)
	user := decode[models.User](e.t, env.Data)
	return user.ID, e.tokenFor(user.ID, user.TenantID, user.Role)
}

func (e *testEnv) createProject(token, name string) uuid.UUID {
	e.t.Helper()
	w, env := e.do(http.MethodPost, "/api/projects", token, map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, w.Code, env.Message)
	return decode[models.ProjectSummary](e.t, env.Data).ID
}

func (e *testEnv) createTask(token string, body map[string]interface{}) models.TaskDetail {
	e.t.Helper()
	w, env := e.do(http.MethodPost, "/api/tasks", token, body)
	require.Equal(e.t, http.StatusCreated, w.Code, env.Message)
	return decode[models.TaskDetail](e.t, env.Data)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{
		"tenantName":    "acme",
		"subdomain":     "acme-co",
		"adminEmail":    "a@acme.com",
		"adminPassword": "Secret123!",
		"adminFullName": "Acme Admin",
	}
	w, resp := env.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	assert.True(t, resp.Success)

	data := decode[struct {
		Tenant struct {
			SubscriptionPlan string
			MaxUsers         int
			MaxProjects      int
		}
		Admin struct {
			Email string
			Role  string
		}
	}](t, resp.Data)
	assert.Equal(t, "free", data.Tenant.SubscriptionPlan)
	assert.Equal(t, 5, data.Tenant.MaxUsers)
	assert.Equal(t, 3, data.Tenant.MaxProjects)
	assert.Equal(t, "tenant_admin", data.Admin.Role)

	_, ok := env.audit.last(models.ActionTenantRegister)
	assert.True(t, ok)

	w, resp = env.do(http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Subdomain already exists", resp.Message)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing fields", body: map[string]string{"tenantName": "acme"}},
		{name: "bad subdomain", body: map[string]string{
			"tenantName": "acme", "subdomain": "acme_co", "adminEmail": "a@acme.com",
			"adminPassword": "Secret123!", "adminFullName": "A",
		}},
		{name: "reserved subdomain", body: map[string]string{
			"tenantName": "acme", "subdomain": "admin", "adminEmail": "a@acme.com",
			"adminPassword": "Secret123!", "adminFullName": "A",
		}},
		{name: "short password", body: map[string]string{
			"tenantName": "acme", "subdomain": "acme", "adminEmail": "a@acme.com",
			"adminPassword": "short", "adminFullName": "A",
		}},
		{name: "unknown field", body: `{"tenantName":"acme","subdomain":"acme","adminEmail":"a@acme.com","adminPassword":"Secret123!","adminFullName":"A","plan":"enterprise"}`},
		{name: "malformed json", body: `{"tenantName":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme-co", "a@acme.com")
	ctx := context.Background()

	login := func(email, password, subdomain string) (*httptest.ResponseRecorder, envelope) {
		return env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": email, "password": password, "subdomain": subdomain,
		})
	}

	w, resp := login("A@acme.com", "Secret123!", "acme-co")
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	data := decode[struct {
		Token string
		User  struct {
			ID       uuid.UUID
			Role     string
			TenantID *uuid.UUID
		}
	}](t, resp.Data)
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, acme.adminID, data.User.ID)
	require.NotNil(t, data.User.TenantID)
	assert.Equal(t, acme.tenantID, *data.User.TenantID)

	w, profile := env.do(http.MethodGet, "/api/auth/profile", data.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := decode[models.UserProfile](t, profile.Data)
	require.NotNil(t, p.Subdomain)
	assert.Equal(t, "acme-co", *p.Subdomain)

	w, wrongPassword := login("a@acme.com", "nope-nope", "acme-co")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, unknownUser := login("ghost@acme.com", "Secret123!", "acme-co")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", wrongPassword.Message)
	assert.Equal(t, wrongPassword.Message, unknownUser.Message)

	w, resp = login("a@acme.com", "Secret123!", "nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Tenant not found", resp.Message)

	inactive := false
	_, err := env.store.UpdateUser(ctx, acme.adminID, repository.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)
	w, resp = login("a@acme.com", "Secret123!", "acme-co")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Account is inactive", resp.Message)
	w, _ = login("a@acme.com", "wrong-password", "acme-co")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	suspended := models.TenantStatusSuspended
	_, err = env.store.UpdateTenant(ctx, acme.tenantID, repository.TenantUpdate{Status: &suspended})
	require.NoError(t, err)
	w, resp = login("a@acme.com", "Secret123!", "acme-co")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Tenant is not active", resp.Message)
}

func TestLoginSuperAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.superAdminToken()

	for _, subdomain := range []string{"", "admin"} {
		w, resp := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "root@system.com", "password": "Admin@123", "subdomain": subdomain,
		})
		require.Equal(t, http.StatusOK, w.Code, resp.Message)
		data := decode[struct{ User struct{ Role string } }](t, resp.Data)
		assert.Equal(t, "super_admin", data.User.Role)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnv(t)
	env.deps.Revoker = utils.NewTokenStore(client)
	env.router = NewRouter(env.deps, "*")
	acme := env.register("acme", "acme", "a@acme.com")

	w, _ := env.do(http.MethodGet, "/api/auth/me", acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := env.do(http.MethodPost, "/api/auth/logout", acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	w, resp = env.do(http.MethodGet, "/api/auth/me", acme.adminToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token has been revoked", resp.Message)
}

func TestPlanLimits(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")

	for i := 0; i < 3; i++ {
		env.createProject(acme.adminToken, "project")
	}
	w, resp := env.do(http.MethodPost, "/api/projects", acme.adminToken, map[string]string{"name": "one too many"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Project limit reached (3 projects max for free plan)", resp.Message)

	for i := 0; i < 4; i++ {
		env.createUser(acme.adminToken, uuid.NewString()[:8]+"@acme.com", models.RoleUser)
	}
	w, resp = env.do(http.MethodPost, "/api/users", acme.adminToken, map[string]string{
		"email": "sixth@acme.com", "password": "Password1", "fullName": "Sixth",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "User limit reached (5 users max for free plan)", resp.Message)
}

func TestCreateUserRules(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")

	env.createUser(acme.adminToken, "bob@acme.com", models.RoleUser)

	w, resp := env.do(http.MethodPost, "/api/users", acme.adminToken, map[string]string{
		"email": "BOB@acme.com", "password": "Password1", "fullName": "Bob again",
	})
	assert.Equal(t, http.StatusConflict, w.Code, resp.Message)

	w, _ = env.do(http.MethodPost, "/api/users", acme.adminToken, map[string]string{
		"email": "eve@acme.com", "password": "Password1", "fullName": "Eve", "role": "super_admin",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, userToken := env.createUser(acme.adminToken, "carol@acme.com", models.RoleUser)
	w, resp = env.do(http.MethodPost, "/api/users", userToken, map[string]string{
		"email": "dave@acme.com", "password": "Password1", "fullName": "Dave",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied", resp.Message)

	w, resp = env.do(http.MethodGet, "/api/tenants/"+acme.tenantID.String()+"/users", acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Equal(t, int64(3), resp.Pagination.Total)
}

func TestTaskListingOrder(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")
	projectID := env.createProject(acme.adminToken, "launch")

	for _, tc := range []map[string]interface{}{
		{"title": "A", "priority": "low"},
		{"title": "B", "priority": "high", "dueDate": "2024-05-02"},
		{"title": "C", "priority": "high", "dueDate": "2024-05-01"},
		{"title": "D", "priority": "medium"},
	} {
		tc["projectId"] = projectID
		env.createTask(acme.adminToken, tc)
	}

	for _, path := range []string{
		"/api/tasks?projectId=" + projectID.String(),
		"/api/tasks/project/" + projectID.String(),
		"/api/projects/" + projectID.String() + "/tasks",
	} {
		w, resp := env.do(http.MethodGet, path, acme.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code, resp.Message)
		tasks := decode[[]models.TaskDetail](t, resp.Data)
		titles := make([]string, 0, len(tasks))
		for _, task := range tasks {
			titles = append(titles, task.Title)
		}
		assert.Equal(t, []string{"C", "B", "D", "A"}, titles, path)
		assert.Equal(t, &utils.Pagination{CurrentPage: 1, TotalPages: 1, Total: 4, Limit: 50}, resp.Pagination)
	}

	w, resp := env.do(http.MethodGet, "/api/tasks?projectId="+projectID.String()+"&priority=high&limit=1&page=2", acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode[[]models.TaskDetail](t, resp.Data)
	require.Len(t, tasks, 1)
	assert.Equal(t, "B", tasks[0].Title)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
}

func TestTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")
	other := env.register("other", "other", "o@other.com")
	projectID := env.createProject(acme.adminToken, "launch")

	tests := []struct {
		name string
		body map[string]interface{}
		code int
	}{
		{name: "missing title", body: map[string]interface{}{"projectId": projectID}, code: http.StatusBadRequest},
		{name: "bad status", body: map[string]interface{}{"projectId": projectID, "title": "x", "status": "done"}, code: http.StatusBadRequest},
		{name: "bad priority", body: map[string]interface{}{"projectId": projectID, "title": "x", "priority": "urgent"}, code: http.StatusBadRequest},
		{name: "bad due date", body: map[string]interface{}{"projectId": projectID, "title": "x", "dueDate": "next week"}, code: http.StatusBadRequest},
		{name: "assignee from other tenant", body: map[string]interface{}{"projectId": projectID, "title": "x", "assignedTo": other.adminID}, code: http.StatusBadRequest},
		{name: "unknown project", body: map[string]interface{}{"projectId": uuid.New(), "title": "x"}, code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(http.MethodPost, "/api/tasks", acme.adminToken, tt.body)
			assert.Equal(t, tt.code, w.Code, resp.Message)
		})
	}

	task := env.createTask(acme.adminToken, map[string]interface{}{"projectId": projectID, "title": "defaults"})
	assert.Equal(t, models.TaskStatusTodo, task.Status)
	assert.Equal(t, models.PriorityMedium, task.Priority)
}

func TestTaskUpdateAndStatus(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")
	projectID := env.createProject(acme.adminToken, "launch")
	bobID, _ := env.createUser(acme.adminToken, "bob@acme.com", models.RoleUser)

	task := env.createTask(acme.adminToken, map[string]interface{}{
		"projectId": projectID, "title": "ship", "assignedTo": bobID, "dueDate": "2024-06-01T12:00:00Z",
	})
	require.NotNil(t, task.AssignedTo)
	require.NotNil(t, task.AssignedToEmail)
	assert.Equal(t, "bob@acme.com", *task.AssignedToEmail)

	path := "/api/tasks/" + task.ID.String()
	w, resp := env.do(http.MethodPut, path, acme.adminToken, `{"title":"ship it","assignedTo":null}`)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	updated := decode[models.TaskDetail](t, resp.Data)
	assert.Equal(t, "ship it", updated.Title)
	assert.Nil(t, updated.AssignedTo)
	assert.NotNil(t, updated.DueDate)

	w, resp = env.do(http.MethodPut, path, acme.adminToken, `{"dueDate":null}`)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Nil(t, decode[models.TaskDetail](t, resp.Data).DueDate)

	w, _ = env.do(http.MethodPut, path, acme.adminToken, `{"owner":"me"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = env.do(http.MethodPatch, path+"/status", acme.adminToken, map[string]string{"status": "finished"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status. Must be one of: todo, in_progress, completed", resp.Message)

	w, resp = env.do(http.MethodPatch, path+"/status", acme.adminToken, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Equal(t, models.TaskStatusCompleted, decode[models.TaskDetail](t, resp.Data).Status)

	entry, ok := env.audit.last(models.ActionTaskStatusUpdate)
	require.True(t, ok)
	assert.Equal(t, "todo", entry.Metadata["oldStatus"])
	assert.Equal(t, "completed", entry.Metadata["newStatus"])

	w, resp = env.do(http.MethodGet, "/api/projects/"+projectID.String(), acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[models.ProjectSummary](t, resp.Data)
	assert.Equal(t, int64(1), summary.TaskCount)
	assert.Equal(t, int64(1), summary.CompletedTaskCount)

	w, _ = env.do(http.MethodDelete, path, acme.adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = env.do(http.MethodGet, path, acme.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")
	globex := env.register("globex", "globex", "g@globex.com")

	projectID := env.createProject(acme.adminToken, "secret plans")
	task := env.createTask(acme.adminToken, map[string]interface{}{"projectId": projectID, "title": "hidden"})

	forbidden := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/tenants/" + acme.tenantID.String(), nil},
		{http.MethodGet, "/api/projects/" + projectID.String(), nil},
		{http.MethodPut, "/api/projects/" + projectID.String(), map[string]string{"name": "mine"}},
		{http.MethodDelete, "/api/projects/" + projectID.String(), nil},
		{http.MethodGet, "/api/projects/" + projectID.String() + "/tasks", nil},
		{http.MethodGet, "/api/tasks/" + task.ID.String(), nil},
		{http.MethodPut, "/api/tasks/" + task.ID.String(), map[string]string{"title": "mine"}},
		{http.MethodPatch, "/api/tasks/" + task.ID.String() + "/status", map[string]string{"status": "completed"}},
		{http.MethodDelete, "/api/tasks/" + task.ID.String(), nil},
		{http.MethodGet, "/api/users/" + acme.adminID.String(), nil},
		{http.MethodDelete, "/api/users/" + acme.adminID.String(), nil},
		{http.MethodGet, "/api/tenants/" + acme.tenantID.String() + "/users", nil},
		{http.MethodPost, "/api/tasks", map[string]interface{}{"projectId": projectID, "title": "sneaky"}},
	}
	for _, tc := range forbidden {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w, resp := env.do(tc.method, tc.path, globex.adminToken, tc.body)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "Access denied", resp.Message)
		})
	}

	w, resp := env.do(http.MethodGet, "/api/projects", globex.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), resp.Pagination.Total)

	super := env.superAdminToken()
	w, _ = env.do(http.MethodGet, "/api/projects/"+projectID.String(), super, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, resp = env.do(http.MethodGet, "/api/projects?tenantId="+acme.tenantID.String(), super, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), resp.Pagination.Total)
}

func TestObjectOwnership(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")
	bobID, bobToken := env.createUser(acme.adminToken, "bob@acme.com", models.RoleUser)

	adminProject := env.createProject(acme.adminToken, "admin project")
	task := env.createTask(acme.adminToken, map[string]interface{}{"projectId": adminProject, "title": "admin task"})
	taskPath := "/api/tasks/" + task.ID.String()

	w, resp := env.do(http.MethodPut, taskPath, bobToken, map[string]string{"title": "bob was here"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You can only modify tasks you created or are assigned to", resp.Message)
	w, _ = env.do(http.MethodPut, "/api/projects/"+adminProject.String(), bobToken, map[string]string{"name": "bob's"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(http.MethodGet, taskPath, bobToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = env.do(http.MethodPut, taskPath, acme.adminToken, map[string]interface{}{"assignedTo": bobID})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	w, resp = env.do(http.MethodPatch, taskPath+"/status", bobToken, map[string]string{"status": "in_progress"})
	assert.Equal(t, http.StatusOK, w.Code, resp.Message)

	own := env.createTask(bobToken, map[string]interface{}{"projectId": adminProject, "title": "bob task"})
	w, _ = env.do(http.MethodDelete, "/api/tasks/"+own.ID.String(), bobToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	bobProject := env.createProject(bobToken, "bob project")
	w, _ = env.do(http.MethodPut, "/api/projects/"+bobProject.String(), bobToken, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserManagement(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")
	bobID, bobToken := env.createUser(acme.adminToken, "bob@acme.com", models.RoleUser)
	carolID, _ := env.createUser(acme.adminToken, "carol@acme.com", models.RoleUser)

	w, resp := env.do(http.MethodDelete, "/api/users/"+acme.adminID.String(), acme.adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Cannot delete your own account", resp.Message)

	w, _ = env.do(http.MethodGet, "/api/users/"+carolID.String(), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = env.do(http.MethodGet, "/api/users/"+bobID.String(), bobToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(http.MethodPut, "/api/users/"+bobID.String(), bobToken, map[string]string{"role": "tenant_admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, resp = env.do(http.MethodPut, "/api/users/"+bobID.String(), bobToken, map[string]string{"fullName": "Robert"})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Equal(t, "Robert", decode[models.User](t, resp.Data).FullName)

	w, resp = env.do(http.MethodPut, "/api/users/"+carolID.String(), acme.adminToken, map[string]interface{}{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.False(t, decode[models.User](t, resp.Data).IsActive)

	w, resp = env.do(http.MethodGet, "/api/users?isActive=false", acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), resp.Pagination.Total)

	w, resp = env.do(http.MethodGet, "/api/users?search=robert", acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), resp.Pagination.Total)


	w, _ = env.do(http.MethodDelete, "/api/users/"+carolID.String(), acme.adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	_, ok := env.audit.last(models.ActionUserDelete)
	assert.True(t, ok)
}

func TestUserListingForPlainUser(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")
	globex := env.register("globex", "globex", "g@globex.com")
	_, bobToken := env.createUser(acme.adminToken, "bob@acme.com", models.RoleUser)
	env.createUser(globex.adminToken, "gina@globex.com", models.RoleUser)

	w, resp := env.do(http.MethodGet, "/api/users", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Equal(t, int64(2), resp.Pagination.Total)
	users := decode[[]models.User](t, resp.Data)
	require.Len(t, users, 2)
	for _, u := range users {
		require.NotNil(t, u.TenantID)
		assert.Equal(t, acme.tenantID, *u.TenantID)
	}

	w, resp = env.do(http.MethodGet, "/api/users?tenantId="+globex.tenantID.String(), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied", resp.Message)
}

func TestTenantManagement(t *testing.T) {
	env := newTestEnv(t)
	super := env.superAdminToken()
	acme := env.register("acme", "acme", "a@acme.com")

	w, resp := env.do(http.MethodPost, "/api/tenants", super, map[string]string{"name": "Initech Corp", "subscriptionPlan": "enterprise"})
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	initech := decode[models.Tenant](t, resp.Data)
	assert.Equal(t, "initech-corp", initech.Subdomain)
	assert.Equal(t, 100, initech.MaxUsers)
	assert.Equal(t, 50, initech.MaxProjects)

	w, _ = env.do(http.MethodPost, "/api/tenants", acme.adminToken, map[string]string{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp = env.do(http.MethodGet, "/api/tenants?subscriptionPlan=free", super, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), resp.Pagination.Total)
	assert.Equal(t, 10, resp.Pagination.Limit)

	w, resp = env.do(http.MethodGet, "/api/tenants/current", acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, acme.tenantID, decode[models.Tenant](t, resp.Data).ID)
	w, resp = env.do(http.MethodGet, "/api/tenants/current", super, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No tenant associated with this user", resp.Message)

	acmePath := "/api/tenants/" + acme.tenantID.String()
	w, _ = env.do(http.MethodPut, acmePath, acme.adminToken, map[string]interface{}{"maxUsers": 500})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, resp = env.do(http.MethodPut, acmePath, acme.adminToken, map[string]string{"name": "Acme Inc"})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Equal(t, "Acme Inc", decode[models.Tenant](t, resp.Data).Name)
	w, resp = env.do(http.MethodPut, acmePath, super, map[string]interface{}{"subscriptionPlan": "pro", "maxUsers": 25})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Equal(t, 25, decode[models.Tenant](t, resp.Data).MaxUsers)

	w, resp = env.do(http.MethodGet, acmePath, acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	withStats := decode[struct {
		Name  string
		Stats models.TenantStats
	}](t, resp.Data)
	assert.Equal(t, "Acme Inc", withStats.Name)
	assert.Equal(t, int64(1), withStats.Stats.TotalUsers)
}

func TestDeleteTenantCascades(t *testing.T) {
	env := newTestEnv(t)
	super := env.superAdminToken()
	acme := env.register("acme", "acme", "a@acme.com")
	projectID := env.createProject(acme.adminToken, "doomed")
	env.createTask(acme.adminToken, map[string]interface{}{"projectId": projectID, "title": "doomed task"})

	path := "/api/tenants/" + acme.tenantID.String()
	w, _ := env.do(http.MethodDelete, path, acme.adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp := env.do(http.MethodDelete, path, super, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	db := env.store.DB()
	for _, model := range []interface{}{&models.User{}, &models.Project{}, &models.Task{}} {
		var count int64
		require.NoError(t, db.Model(model).Where("tenant_id = ?", acme.tenantID).Count(&count).Error)
		assert.Zero(t, count)
	}

	w, _ = env.do(http.MethodDelete, path, super, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditLogListing(t *testing.T) {
	env := newTestEnv(t)
	acme := env.register("acme", "acme", "a@acme.com")
	globex := env.register("globex", "globex", "g@globex.com")
	ctx := context.Background()

	for _, tenantID := range []uuid.UUID{acme.tenantID, acme.tenantID, globex.tenantID} {
		id := tenantID
		require.NoError(t, env.store.InsertAuditLog(ctx, audit.Entry{TenantID: &id, Action: models.ActionProjectCreate}.ToModel()))
	}

	w, resp := env.do(http.MethodGet, "/api/audit-logs", acme.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Equal(t, int64(2), resp.Pagination.Total)

	w, _ = env.do(http.MethodGet, "/api/audit-logs?tenantId="+globex.tenantID.String(), acme.adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp = env.do(http.MethodGet, "/api/audit-logs", env.superAdminToken(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), resp.Pagination.Total)
}

func TestHealthAndFallbacks(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Server is running", resp.Message)

	w, resp = env.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"database":"connected"}`, string(resp.Data))

	w, resp = env.do(http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Endpoint not found", resp.Message)

	w, resp = env.do(http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "No token provided", resp.Message)
}

func TestSeed(t *testing.T) {
	store := repository.New(testutil.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, Seed(ctx, store))
	require.NoError(t, Seed(ctx, store))

	count, err := store.CountTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	tenant, err := store.TenantBySubdomain(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, tenant.SubscriptionPlan)

	_, err = store.SuperAdminByEmail(ctx, "superadmin@system.com")
	require.NoError(t, err)

	stats, err := store.TenantStats(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalProjects)
	assert.Equal(t, int64(3), stats.TotalTasks)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "initech-corp", slugify("  Initech   Corp! "))
	assert.Equal(t, "a1-b2", slugify("A1 -- B2"))

	_, err := normalizeSubdomain("-bad")
	assert.Error(t, err)
	sub, err := normalizeSubdomain(" Acme-Co ")
	require.NoError(t, err)
	assert.Equal(t, "acme-co", sub)

	d, err := parseDueDate("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T00:00:00Z", d.Format("2006-01-02T15:04:05Z07:00"))
	d, err = parseDueDate("2024-05-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, 8, d.Hour())

	var n struct {
		A Nullable[int] `json:"a"`
		B Nullable[int] `json:"b"`
		C Nullable[int] `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":null,"b":3}`), &n))
	assert.True(t, n.A.Set)
	assert.Nil(t, n.A.Value)
	assert.True(t, n.B.Set)
	assert.Equal(t, 3, *n.B.Value)
	assert.False(t, n.C.Set)
}
