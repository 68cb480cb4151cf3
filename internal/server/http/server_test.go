package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/claimcookie"
	"github.com/scrumkit/scrumkit/internal/errs"
	"github.com/scrumkit/scrumkit/internal/limiter"
	"github.com/scrumkit/scrumkit/internal/model"
	"github.com/scrumkit/scrumkit/internal/realtime"
	"github.com/scrumkit/scrumkit/internal/repository"
	"github.com/scrumkit/scrumkit/internal/service"
)

// memAssets is an in-memory AssetRepository for handler tests.
type memAssets struct {
	mu     sync.Mutex
	byURL  map[string]*model.Asset
	byID   map[uuid.UUID]*model.Asset
	orders []string
}

func newMemAssets() *memAssets {
	return &memAssets{byURL: map[string]*model.Asset{}, byID: map[uuid.UUID]*model.Asset{}}
}

func (m *memAssets) Create(_ context.Context, a *model.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.byURL[a.UniqueURL] = &cp
	m.byID[a.ID] = &cp
	m.orders = append(m.orders, a.UniqueURL)
	return nil
}

func (m *memAssets) GetByURL(_ context.Context, typ model.AssetType, url string) (*model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byURL[url]
	if !ok || a.Type != typ {
		return nil, errs.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAssets) ListByOwner(_ context.Context, typ model.AssetType, ownerID uuid.UUID) ([]model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Asset
	for _, url := range m.orders {
		a := m.byURL[url]
		if a != nil && a.Type == typ && a.OwnerID != nil && *a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAssets) ClaimAssets(_ context.Context, cfg anon.Config, userID uuid.UUID, ids []uuid.UUID, trustedSlugs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trusted := map[string]bool{}
	for _, s := range trustedSlugs {
		trusted[s] = true
	}
	n := 0
	for _, id := range ids {
		a, ok := m.byID[id]
		if !ok || !a.IsAnonymous || !trusted[a.UniqueURL] {
			continue
		}
		uid := userID
		a.OwnerID = &uid
		a.IsAnonymous = false
		n++
	}
	return n, nil
}

func (m *memAssets) Delete(_ context.Context, typ model.AssetType, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	delete(m.byURL, a.UniqueURL)
	delete(m.byID, id)
	return nil
}

func (m *memAssets) SetStatus(_ context.Context, typ model.AssetType, id uuid.UUID, status model.AssetStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	a.Status = status
	return nil
}

var _ repository.AssetRepository = (*memAssets)(nil)

// memItems / memVotes back ContentService in tests.
type memItems struct {
	mu    sync.Mutex
	items map[uuid.UUID]*model.RetroItem
	order []uuid.UUID
}

func newMemItems() *memItems { return &memItems{items: map[uuid.UUID]*model.RetroItem{}} }

func (m *memItems) Create(_ context.Context, it *model.RetroItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *it
	m.items[it.ID] = &cp
	m.order = append(m.order, it.ID)
	return nil
}

func (m *memItems) ListByBoard(_ context.Context, boardID uuid.UUID) ([]model.RetroItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RetroItem
	for _, id := range m.order {
		if it, ok := m.items[id]; ok && it.BoardID == boardID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *memItems) GetItem(_ context.Context, id uuid.UUID) (*model.RetroItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memItems) UpdateText(_ context.Context, id uuid.UUID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return errs.ErrNotFound
	}
	it.Text = text
	return nil
}

func (m *memItems) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type memVotes struct {
	mu    sync.Mutex
	votes map[string]*model.Vote // subject|participant
	order []string
}

func newMemVotes() *memVotes { return &memVotes{votes: map[string]*model.Vote{}} }

func voteKey(subjectID uuid.UUID, participantID string) string {
	return subjectID.String() + "|" + participantID
}

func (m *memVotes) Upsert(_ context.Context, v *model.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := voteKey(v.SubjectID, v.ParticipantID)
	if old, ok := m.votes[k]; ok {
		old.Value = v.Value
		*v = *old
		return nil
	}
	cp := *v
	m.votes[k] = &cp
	m.order = append(m.order, k)
	return nil
}

func (m *memVotes) ListBySubject(_ context.Context, subjectID uuid.UUID) ([]model.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Vote
	for _, k := range m.order {
		if v, ok := m.votes[k]; ok && v.SubjectID == subjectID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (m *memVotes) Reveal(_ context.Context, subjectID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.votes {
		if v.SubjectID == subjectID {
			v.Revealed = true
		}
	}
	return nil
}

func (m *memVotes) Delete(_ context.Context, subjectID uuid.UUID, participantID string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := voteKey(subjectID, participantID)
	v, ok := m.votes[k]
	if !ok {
		return uuid.Nil, errs.ErrNotFound
	}
	delete(m.votes, k)
	return v.ID, nil
}

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*model.User
	byID    map[uuid.UUID]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]*model.User{}, byID: map[uuid.UUID]*model.User{}}
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return errs.ErrAlreadyExists
	}
	cp := *u
	m.byEmail[u.Email] = &cp
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type noopLoginLimiter struct{}

func (noopLoginLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return true, 0, nil
}
func (noopLoginLimiter) Success(context.Context, string, []byte) error { return nil }
func (noopLoginLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}

// testEnv assembles a fully wired in-memory server.
type testEnv struct {
	router  *gin.Engine
	assets  *memAssets
	pending *service.PendingDeletions
	visited map[string]anon.Storage
	mu      sync.Mutex
}

func newTestEnv(t *testing.T, undoDelay time.Duration) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	assetsRepo := newMemAssets()
	itemsRepo := newMemItems()
	votesRepo := newMemVotes()
	usersRepo := newMemUsers()

	hub := realtime.NewHub(realtime.NewMemoryBus(), logger)
	codec := claimcookie.NewCodec([]byte("cookie-test-key"))
	actions := limiter.NewWindow()

	authSvc := service.NewAuthService(usersRepo, []byte("jwt-test-key"), time.Hour, noopLoginLimiter{})
	assetSvc := service.NewAssetService(assetsRepo, actions, []byte("slug-test-salt"))
	contentSvc := service.NewContentService(itemsRepo, votesRepo, actions, hub, logger)
	claimSvc := service.NewClaimService(assetsRepo, codec, logger)
	pending := service.NewPendingDeletions(assetsRepo, hub, logger, undoDelay)

	env := &testEnv{assets: assetsRepo, pending: pending, visited: map[string]anon.Storage{}}
	storageFor := func(visitorID string) anon.Storage {
		env.mu.Lock()
		defer env.mu.Unlock()
		st, ok := env.visited[visitorID]
		if !ok {
			st = anon.NewMemoryStorage()
			env.visited[visitorID] = st
		}
		return st
	}

	srv := New(authSvc, assetSvc, contentSvc, claimSvc, pending, hub, codec, storageFor, logger, false)
	env.router = srv.Router()
	return env
}

// client keeps cookies across requests like a browser would.
type client struct {
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func newClient(router *gin.Engine) *client {
	return &client{router: router, cookies: map[string]*http.Cookie{}}
}

func (cl *client) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	cl.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(cl.cookies, ck.Name)
			continue
		}
		cl.cookies[ck.Name] = ck
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into))
}

func TestCreateAnonymousAssetSetsClaimCookie(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	cl := newClient(env.router)

	w := cl.do(t, http.MethodPost, "/api/retrospectives", gin.H{"title": "Sprint 12 retro"})
	require.Equal(t, http.StatusCreated, w.Code)

	var a assetDTO
	decode(t, w, &a)
	require.True(t, a.IsAnonymous)
	require.Empty(t, a.OwnerID)
	require.NotEmpty(t, a.UniqueURL)
	require.NotEqual(t, a.ID, a.UniqueURL)

	cfg, _ := anon.ConfigFor(model.AssetRetrospective)
	require.Contains(t, cl.cookies, cfg.CookieKey)
	require.Contains(t, cl.cookies, visitorCookie)

	// the visitor sees it in the anonymous listing
	w = cl.do(t, http.MethodGet, "/api/anonymous", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Count  int                 `json:"count"`
		Assets map[string][]string `json:"assets"`
	}
	decode(t, w, &listing)
	require.Equal(t, 1, listing.Count)
	require.Equal(t, []string{a.ID}, listing.Assets["retrospective"])
}

func TestCreateAssetTitleSanitized(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	cl := newClient(env.router)

	w := cl.do(t, http.MethodPost, "/api/retrospectives", gin.H{"title": "  <b>Retro</b>  "})
	require.Equal(t, http.StatusCreated, w.Code)
	var a assetDTO
	decode(t, w, &a)
	require.Equal(t, "&lt;b&gt;Retro&lt;&#x2F;b&gt;", a.Title)
}

func TestClaimFlow(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	cl := newClient(env.router)

	// anonymous creations
	w := cl.do(t, http.MethodPost, "/api/retrospectives", gin.H{"title": "retro one"})
	require.Equal(t, http.StatusCreated, w.Code)
	var a1 assetDTO
	decode(t, w, &a1)
	w = cl.do(t, http.MethodPost, "/api/poker-sessions", gin.H{"title": "pointing"})
	require.Equal(t, http.StatusCreated, w.Code)
	var a2 assetDTO
	decode(t, w, &a2)

	// sign up and in
	w = cl.do(t, http.MethodPost, "/api/auth/register", gin.H{"email": "u@example.com", "name": "U", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = cl.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": "u@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, cl.cookies, accessCookie)
	var login struct {
		Claimable int `json:"claimable"`
	}
	decode(t, w, &login)
	require.Equal(t, 2, login.Claimable)

	// claim both, plus an ID the cookie never vouched for
	w = cl.do(t, http.MethodPost, "/api/claim", gin.H{
		"retrospectives": []string{a1.ID, uuid.Must(uuid.NewV4()).String()},
		"pokerSessions":  []string{a2.ID},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Retrospectives int `json:"retrospectives"`
		PokerSessions  int `json:"pokerSessions"`
		Total          int `json:"total"`
	}
	decode(t, w, &res)
	require.Equal(t, 1, res.Retrospectives)
	require.Equal(t, 1, res.PokerSessions)
	require.Equal(t, 2, res.Total)

	// claim cookies are spent
	cfgR, _ := anon.ConfigFor(model.AssetRetrospective)
	cfgP, _ := anon.ConfigFor(model.AssetPokerSession)
	require.NotContains(t, cl.cookies, cfgR.CookieKey)
	require.NotContains(t, cl.cookies, cfgP.CookieKey)

	// the asset now lists under the account
	w = cl.do(t, http.MethodGet, "/api/retrospectives", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var owned struct {
		Assets []assetDTO `json:"assets"`
	}
	decode(t, w, &owned)
	require.Len(t, owned.Assets, 1)
	require.False(t, owned.Assets[0].IsAnonymous)

	// a second claim with a replayed body transfers nothing
	w = cl.do(t, http.MethodPost, "/api/claim", gin.H{"retrospectives": []string{a1.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	require.Zero(t, res.Total)
}

func TestClaimWithoutCookieTransfersNothing(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	creator := newClient(env.router)
	w := creator.do(t, http.MethodPost, "/api/retrospectives", gin.H{"title": "not yours"})
	require.Equal(t, http.StatusCreated, w.Code)
	var a assetDTO
	decode(t, w, &a)

	// a different browser knows the ID but holds no signed cookie
	attacker := newClient(env.router)
	w = attacker.do(t, http.MethodPost, "/api/auth/register", gin.H{"email": "a@example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = attacker.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": "a@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)

	w = attacker.do(t, http.MethodPost, "/api/claim", gin.H{"retrospectives": []string{a.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Total int `json:"total"`
	}
	decode(t, w, &res)
	require.Zero(t, res.Total)
}

func TestDeleteUndoFlow(t *testing.T) {
	env := newTestEnv(t, 200*time.Millisecond)
	cl := newClient(env.router)

	w := cl.do(t, http.MethodPost, "/api/retrospectives", gin.H{"title": "doomed"})
	require.Equal(t, http.StatusCreated, w.Code)
	var a assetDTO
	decode(t, w, &a)

	w = cl.do(t, http.MethodDelete, "/api/retrospectives/"+a.UniqueURL, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	// hidden while pending
	w = cl.do(t, http.MethodGet, "/api/retrospectives/"+a.UniqueURL, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// undo inside the window brings it back
	w = cl.do(t, http.MethodPost, "/api/retrospectives/"+a.UniqueURL+"/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = cl.do(t, http.MethodGet, "/api/retrospectives/"+a.UniqueURL, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// delete again and let it finalize
	w = cl.do(t, http.MethodDelete, "/api/retrospectives/"+a.UniqueURL, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool {
		w := cl.do(t, http.MethodGet, "/api/retrospectives/"+a.UniqueURL, nil)
		_, pending := env.pending.Pending(a.UniqueURL)
		return !pending && w.Code == http.StatusNotFound
	}, 2*time.Second, 20*time.Millisecond)

	w = cl.do(t, http.MethodPost, "/api/retrospectives/"+a.UniqueURL+"/restore", nil)
	require.Equal(t, http.StatusGone, w.Code)
}

func TestDeleteForeignAssetForbidden(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	creator := newClient(env.router)
	w := creator.do(t, http.MethodPost, "/api/retrospectives", gin.H{"title": "mine"})
	require.Equal(t, http.StatusCreated, w.Code)
	var a assetDTO
	decode(t, w, &a)

	stranger := newClient(env.router)
	w = stranger.do(t, http.MethodDelete, "/api/retrospectives/"+a.UniqueURL, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestItemOwnershipForAnonymousEdits(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	boardID := uuid.Must(uuid.NewV4()).String()

	author := newClient(env.router)
	w := author.do(t, http.MethodPost, "/api/boards/"+boardID+"/items", gin.H{
		"column": "went-well", "text": "shipped on time", "authorName": "A",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var it itemDTO
	decode(t, w, &it)

	// the author can edit their own card
	w = author.do(t, http.MethodPatch, "/api/boards/"+boardID+"/items/"+it.ID, gin.H{"text": "shipped early"})
	require.Equal(t, http.StatusOK, w.Code)

	// another anonymous visitor cannot
	other := newClient(env.router)
	w = other.do(t, http.MethodPatch, "/api/boards/"+boardID+"/items/"+it.ID, gin.H{"text": "vandalism"})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = other.do(t, http.MethodDelete, "/api/boards/"+boardID+"/items/"+it.ID, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestVotesMaskedUntilReveal(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	boardID := uuid.Must(uuid.NewV4()).String()
	subjectID := uuid.Must(uuid.NewV4()).String()

	voter := newClient(env.router)
	w := voter.do(t, http.MethodPost, "/api/boards/"+boardID+"/subjects/"+subjectID+"/votes", gin.H{"value": "5"})
	require.Equal(t, http.StatusCreated, w.Code)

	// the caster sees their own value pre-reveal
	w = voter.do(t, http.MethodGet, "/api/boards/"+boardID+"/subjects/"+subjectID+"/votes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Votes []voteDTO `json:"votes"`
	}
	decode(t, w, &got)
	require.Len(t, got.Votes, 1)
	require.Equal(t, "5", got.Votes[0].Value)

	// peers see a masked value
	peer := newClient(env.router)
	w = peer.do(t, http.MethodGet, "/api/boards/"+boardID+"/subjects/"+subjectID+"/votes", nil)
	decode(t, w, &got)
	require.Len(t, got.Votes, 1)
	require.Empty(t, got.Votes[0].Value)

	w = peer.do(t, http.MethodPost, "/api/boards/"+boardID+"/subjects/"+subjectID+"/reveal", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = peer.do(t, http.MethodGet, "/api/boards/"+boardID+"/subjects/"+subjectID+"/votes", nil)
	decode(t, w, &got)
	require.Equal(t, "5", got.Votes[0].Value)
}

func TestRetractOwnVote(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	boardID := uuid.Must(uuid.NewV4()).String()
	subjectID := uuid.Must(uuid.NewV4()).String()
	path := "/api/boards/" + boardID + "/subjects/" + subjectID + "/votes"

	voter := newClient(env.router)
	w := voter.do(t, http.MethodPost, path, gin.H{"value": "5"})
	require.Equal(t, http.StatusCreated, w.Code)

	peer := newClient(env.router)
	w = peer.do(t, http.MethodPost, path, gin.H{"value": "8"})
	require.Equal(t, http.StatusCreated, w.Code)

	// unvote removes only the caller's vote
	w = voter.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = peer.do(t, http.MethodGet, path, nil)
	var got struct {
		Votes []voteDTO `json:"votes"`
	}
	decode(t, w, &got)
	require.Len(t, got.Votes, 1)
	require.Equal(t, "8", got.Votes[0].Value)

	// retracting again finds nothing
	w = voter.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestVoteStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	boardID := uuid.Must(uuid.NewV4()).String()
	subjectID := uuid.Must(uuid.NewV4()).String()

	for _, v := range []string{"5", "5", "8"} {
		cl := newClient(env.router)
		w := cl.do(t, http.MethodPost, "/api/boards/"+boardID+"/subjects/"+subjectID+"/votes", gin.H{"value": v})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	cl := newClient(env.router)
	w := cl.do(t, http.MethodGet, "/api/boards/"+boardID+"/subjects/"+subjectID+"/stats?tolerance=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Summary struct {
			Mode    float64 `json:"mode"`
			Median  float64 `json:"median"`
			Average float64 `json:"average"`
		} `json:"summary"`
		Consensus struct {
			Reached bool `json:"reached"`
		} `json:"consensus"`
	}
	decode(t, w, &res)
	require.Equal(t, float64(5), res.Summary.Mode)
	require.Equal(t, float64(5), res.Summary.Median)
	require.InDelta(t, 6.0, res.Summary.Average, 0.01)
}

func TestLoginRequiredForClaimAndListing(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	cl := newClient(env.router)

	w := cl.do(t, http.MethodPost, "/api/claim", gin.H{})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = cl.do(t, http.MethodGet, "/api/retrospectives", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	cl := newClient(env.router)

	w := cl.do(t, http.MethodPost, "/api/auth/register", gin.H{"email": "dup@example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = cl.do(t, http.MethodPost, "/api/auth/register", gin.H{"email": "dup@example.com", "password": "secret123"})
	require.Equal(t, http.StatusConflict, w.Code)
}
