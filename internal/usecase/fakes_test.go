package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"faindi/internal/domain/entity"
	"faindi/internal/domain/repository"
	"faindi/internal/infrastructure/api"
	"faindi/internal/infrastructure/ratelimit"
	apperrors "faindi/pkg/errors"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int
	args  map[string][]string

	authResult   *api.AuthResult
	signInErr    error
	signUpToken  string
	usernameFree bool
	currentUser  *api.AuthUser
	currentErr   error

	catalog     *api.CatalogItems
	catalogErr  error
	catalogGate chan struct{}
	likeErr     error

	profile    *entity.ProfileAggregate
	cartErr    error
	followErr  error
	orders     []entity.Order
	deliverErr error

	chats       []entity.Chat
	feedbackErr error

	// runs inside like, cart and follow calls before they answer
	onMutation func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:        make(map[string]int),
		args:         make(map[string][]string),
		usernameFree: true,
		catalog:      &api.CatalogItems{},
		profile:      &entity.ProfileAggregate{},
	}
}

func (f *fakeBackend) record(name string, args ...string) {
	f.mu.Lock()
	f.calls[name]++
	f.args[name] = args
	f.mu.Unlock()
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) mutation(name string, args ...string) {
	f.record(name, args...)
	f.mu.Lock()
	hook := f.onMutation
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (f *fakeBackend) lastArgs(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.args[name]
}

func (f *fakeBackend) SignIn(_ context.Context, email, password string) (*api.AuthResult, error) {
	f.record("SignIn", email, password)
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.authResult, nil
}

func (f *fakeBackend) SignUp(_ context.Context, req api.SignUpRequest) (string, error) {
	f.record("SignUp", req.Email, req.Avatar)
	return f.signUpToken, nil
}

func (f *fakeBackend) Verify(_ context.Context, verifyToken, code string) (*api.AuthResult, error) {
	f.record("Verify", verifyToken, code)
	return f.authResult, nil
}

func (f *fakeBackend) ResendVerify(_ context.Context, email string) (string, error) {
	f.record("ResendVerify", email)
	return "resent-token", nil
}

func (f *fakeBackend) CheckUsername(_ context.Context, username string) (bool, error) {
	f.record("CheckUsername", username)
	return f.usernameFree, nil
}

func (f *fakeBackend) CurrentUser(context.Context) (*api.AuthUser, error) {
	f.record("CurrentUser")
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.currentUser, nil
}

func (f *fakeBackend) Notifications(context.Context) ([]entity.Notification, error) {
	f.record("Notifications")
	return []entity.Notification{}, nil
}

func (f *fakeBackend) CatalogItems(context.Context) (*api.CatalogItems, error) {
	f.record("CatalogItems")
	if f.catalogGate != nil {
		<-f.catalogGate
	}
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	items := &api.CatalogItems{
		Products:   entity.CloneProducts(f.catalog.Products),
		Categories: append([]entity.Category(nil), f.catalog.Categories...),
	}
	return items, nil
}

func (f *fakeBackend) LikeProduct(_ context.Context, productID string) error {
	f.mutation("LikeProduct", productID)
	return f.likeErr
}

func (f *fakeBackend) ProfileItems(context.Context) (*entity.ProfileAggregate, error) {
	f.record("ProfileItems")
	p := *f.profile
	return &p, nil
}

func (f *fakeBackend) AddToCart(_ context.Context, productID string) error {
	f.mutation("AddToCart", productID)
	return f.cartErr
}

func (f *fakeBackend) UpdateCart(_ context.Context, productID string) error {
	f.mutation("UpdateCart", productID)
	return f.cartErr
}

func (f *fakeBackend) MakeOrder(_ context.Context, sellerID string) ([]entity.Order, error) {
	f.record("MakeOrder", sellerID)
	return f.orders, nil
}

func (f *fakeBackend) MarkDelivered(_ context.Context, orderID string) error {
	f.record("MarkDelivered", orderID)
	return f.deliverErr
}

func (f *fakeBackend) Follow(_ context.Context, userID string) error {
	f.mutation("Follow", userID)
	return f.followErr
}

func (f *fakeBackend) Unfollow(_ context.Context, userID string) error {
	f.mutation("Unfollow", userID)
	return f.followErr
}

func (f *fakeBackend) ChatList(context.Context) ([]entity.Chat, error) {
	f.record("ChatList")
	return f.chats, nil
}

func (f *fakeBackend) SubmitFeedback(_ context.Context, productID string, _ int, comment string) error {
	f.record("SubmitFeedback", productID, comment)
	return f.feedbackErr
}

type memTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memTokens) Save(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *memTokens) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memTokens) Delete(context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

type memOutbox struct {
	mu      sync.Mutex
	seq     int
	entries map[string]*repository.OutboxEntry
	order   map[string]int
}

func newMemOutbox() *memOutbox {
	return &memOutbox{
		entries: make(map[string]*repository.OutboxEntry),
		order:   make(map[string]int),
	}
}

func copyEntry(e *repository.OutboxEntry) *repository.OutboxEntry {
	c := *e
	c.Message = e.Message.Clone()
	c.LocalMedias = append([]entity.Media(nil), e.LocalMedias...)
	return &c
}

func (m *memOutbox) Save(_ context.Context, entry *repository.OutboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := entry.Message.ClientID
	if _, ok := m.order[id]; !ok {
		m.seq++
		m.order[id] = m.seq
	}
	m.entries[id] = copyEntry(entry)
	return nil
}

func (m *memOutbox) GetByClientID(_ context.Context, clientID string) (*repository.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[clientID]
	if !ok {
		return nil, apperrors.NotFound("Outbox message", nil)
	}
	return copyEntry(e), nil
}

func (m *memOutbox) UpdateDelivery(_ context.Context, clientID string, delivery entity.Delivery, attempts int, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[clientID]
	if !ok {
		return apperrors.NotFound("Outbox message", nil)
	}
	e.Message.Delivery = delivery
	e.Attempts = attempts
	e.LastError = lastError
	return nil
}

func (m *memOutbox) ListByDelivery(_ context.Context, delivery entity.Delivery) ([]*repository.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.OutboxEntry
	for _, e := range m.entries {
		if e.Message.Delivery == delivery {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.order[out[i].Message.ClientID] < m.order[out[j].Message.ClientID]
	})
	return out, nil
}

func (m *memOutbox) Delete(_ context.Context, clientID string) error {
	m.mu.Lock()
	delete(m.entries, clientID)
	m.mu.Unlock()
	return nil
}

func (m *memOutbox) Clear(context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]*repository.OutboxEntry)
	m.mu.Unlock()
	return nil
}

func (m *memOutbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type emitted struct {
	event   string
	payload interface{}
}

type fakeEmitter struct {
	mu     sync.Mutex
	err    error
	events []emitted

	// runs once, on the next emit, before it is recorded
	onEmit func()
}

func (f *fakeEmitter) Emit(_ context.Context, event string, payload interface{}) error {
	f.mu.Lock()
	hook := f.onEmit
	f.onEmit = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeEmitter) setOnEmit(fn func()) {
	f.mu.Lock()
	f.onEmit = fn
	f.mu.Unlock()
}

func (f *fakeEmitter) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeEmitter) sent() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emitted(nil), f.events...)
}

// fakeUploader maps local refs to URLs; refs listed in fail are rejected.
type fakeUploader struct {
	fail map[string]bool
}

func (f *fakeUploader) Upload(_ context.Context, folder, localRef string) (string, error) {
	if f.fail[localRef] {
		return "", apperrors.UploadFailed("bucket unavailable", nil)
	}
	return "https://storage.googleapis.com/test/" + folder + "/" + localRef, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, _ interface{}) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) has(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == event {
			return true
		}
	}
	return false
}

// testApp wires every use case against in-memory collaborators.
type testApp struct {
	backend   *fakeBackend
	tokens    *memTokens
	outbox    *memOutbox
	emitter   *fakeEmitter
	uploader  *fakeUploader
	publisher *recordingPublisher

	session *SessionUseCase
	catalog *CatalogUseCase
	profile *ProfileUseCase
	chat    *ChatUseCase
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	a := &testApp{
		backend:   newFakeBackend(),
		tokens:    &memTokens{},
		outbox:    newMemOutbox(),
		emitter:   &fakeEmitter{},
		uploader:  &fakeUploader{fail: map[string]bool{}},
		publisher: &recordingPublisher{},
	}
	a.session = NewSessionUseCase(a.backend, a.tokens, a.uploader, a.publisher)
	a.catalog = NewCatalogUseCase(a.backend, a.session, a.publisher, nil)
	a.chat = NewChatUseCase(a.backend, a.session, a.emitter, a.uploader, a.outbox, ratelimit.NewRateLimiter(), a.publisher, nil)
	a.profile = NewProfileUseCase(a.backend, a.session, a.catalog, a.chat, a.publisher, nil)
	a.catalog.MirrorLikesTo(a.profile)
	BindSession(a.session, a.catalog, a.profile, a.chat)
	return a
}

func (a *testApp) signIn(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, a.session.Login(context.Background(), entity.Session{
		UserID:   userID,
		Fullname: "Test " + userID,
		Token:    "T1",
	}))
}

func product(id, ownerID string) entity.Product {
	return entity.Product{
		ID:       id,
		Title:    "Product " + id,
		Owner:    entity.User{ID: ownerID},
		Category: entity.Category{ID: "C1"},
		Likes:    []entity.Like{},
	}
}
