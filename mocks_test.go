package session_test

import (
	"context"
	"io"
	"mime/multipart"
	"sync"

	session "github.com/clubhub/go-session"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

type fakeIdentity struct {
	id    string
	email string
	name  string
	photo string
}

func (f fakeIdentity) ID() string          { return f.id }
func (f fakeIdentity) Email() string       { return f.email }
func (f fakeIdentity) DisplayName() string { return f.name }
func (f fakeIdentity) PhotoURL() string    { return f.photo }

// fakeProvider is a scripted identity backend. Tests drive the subscription
// by calling fire.
type fakeProvider struct {
	mu          sync.Mutex
	subscriber  session.IdentityChangeFunc
	current     session.Identity
	token       string
	tokenErr    error
	loginFn     func(ctx context.Context, email, password string) (session.Identity, error)
	registerFn  func(ctx context.Context, input session.RegisterInput) (session.Identity, error)
	federatedFn func(ctx context.Context) (session.Identity, error)
	updateErr   error
	logoutErr   error

	logoutCalls   int
	registerCalls int
	unsubscribes  int
}

func (p *fakeProvider) Subscribe(fn session.IdentityChangeFunc) session.Unsubscribe {
	p.mu.Lock()
	p.subscriber = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		p.unsubscribes++
		p.subscriber = nil
		p.mu.Unlock()
	}
}

// fire simulates an identity change event from the backend.
func (p *fakeProvider) fire(identity session.Identity) {
	p.mu.Lock()
	p.current = identity
	fn := p.subscriber
	p.mu.Unlock()

	if fn != nil {
		fn(identity)
	}
}

func (p *fakeProvider) setToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
}

func (p *fakeProvider) Login(ctx context.Context, email, password string) (session.Identity, error) {
	if p.loginFn != nil {
		return p.loginFn(ctx, email, password)
	}
	identity := fakeIdentity{id: "uid-1", email: email}
	p.fire(identity)
	return identity, nil
}

func (p *fakeProvider) Register(ctx context.Context, input session.RegisterInput) (session.Identity, error) {
	p.mu.Lock()
	p.registerCalls++
	p.mu.Unlock()

	if p.registerFn != nil {
		return p.registerFn(ctx, input)
	}
	identity := fakeIdentity{id: "uid-new", email: input.Email, name: input.DisplayName, photo: input.PhotoURL}
	p.fire(identity)
	return identity, nil
}

func (p *fakeProvider) LoginWithProvider(ctx context.Context) (session.Identity, error) {
	if p.federatedFn != nil {
		return p.federatedFn(ctx)
	}
	identity := fakeIdentity{id: "uid-fed", email: "fed@example.com"}
	p.fire(identity)
	return identity, nil
}

func (p *fakeProvider) Logout(ctx context.Context) error {
	p.mu.Lock()
	p.logoutCalls++
	err := p.logoutErr
	p.mu.Unlock()

	p.fire(nil)
	return err
}

func (p *fakeProvider) UpdateProfile(ctx context.Context, displayName, photoURL string) error {
	return p.updateErr
}

func (p *fakeProvider) CurrentToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tokenErr != nil {
		return "", p.tokenErr
	}
	return p.token, nil
}

func (p *fakeProvider) logouts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logoutCalls
}

func (p *fakeProvider) registrations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registerCalls
}

// stubResolver scripts role resolution per token.
type stubResolver struct {
	mu        sync.Mutex
	resolveFn func(ctx context.Context, token string) (session.Role, error)
	calls     int
}

func (r *stubResolver) ResolveRole(ctx context.Context, token string) (session.Role, error) {
	r.mu.Lock()
	r.calls++
	fn := r.resolveFn
	r.mu.Unlock()

	if fn == nil {
		return session.RoleMember, nil
	}
	return fn(ctx, token)
}

func (r *stubResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// recordSink collects activity events.
type recordSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (s *recordSink) Record(ctx context.Context, event session.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordSink) byType(eventType session.ActivityEventType) []session.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []session.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type countingNavigator struct {
	mu    sync.Mutex
	calls []string
}

func (n *countingNavigator) NavigateToLogin(from string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, from)
}

func (n *countingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type stubFeatureGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	if s.enabled == nil {
		return true, nil
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

type testConfig struct {
	baseURL          string
	loginPath        string
	unauthorizedPath string
	redirectKey      string
	redirectDefault  string
}

func newTestConfig() *testConfig {
	return &testConfig{
		baseURL:          "http://api.test",
		loginPath:        "/login",
		unauthorizedPath: "/unauthorized",
		redirectKey:      "clubhub_redirect",
		redirectDefault:  "/",
	}
}

func (c *testConfig) GetBaseURL() string          { return c.baseURL }
func (c *testConfig) GetLoginPath() string        { return c.loginPath }
func (c *testConfig) GetUnauthorizedPath() string { return c.unauthorizedPath }
func (c *testConfig) GetRedirectKey() string      { return c.redirectKey }
func (c *testConfig) GetRedirectDefault() string  { return c.redirectDefault }

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryValues(key string) []string {
	args := m.Called(key)
	vals, _ := args.Get(0).([]string)
	return vals
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	header, _ := args.Get(0).(*multipart.FileHeader)
	return header, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) IP() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) LocalsMerge(key any, value map[string]any) map[string]any {
	args := m.Called(key, value)
	merged, _ := args.Get(0).(map[string]any)
	return merged
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) SendStream(r io.Reader) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockContext) RouteName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) RouteParams() map[string]string {
	args := m.Called()
	params, _ := args.Get(0).(map[string]string)
	return params
}
