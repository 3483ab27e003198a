package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront-backend/internal/models"
)

// MemoryStore keeps every document in process. It backs STORE_BACKEND=memory
// for local runs and the unit tests; documents go through the same
// validate/encode/decode path as the Redis store.
type MemoryStore struct {
	mu sync.RWMutex

	users        map[string][]byte
	games        map[string][]byte
	library      map[string]map[string][]byte
	wishlist     map[string]map[string][]byte
	applications map[string]map[string][]byte
	sales        map[string][]byte
	salesOrder   []string
	nonces       map[string]memoryNonce
	messages     []*models.AdminMessage
	diagnostics  []*models.PermissionDiagnostic
	rateLimits   map[string]memoryCounter

	subMu       sync.Mutex
	subscribers map[string]map[chan *models.UserEvent]struct{}

	now func() time.Time
}

type memoryNonce struct {
	data      []byte
	expiresAt time.Time
}

type memoryCounter struct {
	count     int
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string][]byte),
		games:        make(map[string][]byte),
		library:      make(map[string]map[string][]byte),
		wishlist:     make(map[string]map[string][]byte),
		applications: make(map[string]map[string][]byte),
		sales:        make(map[string][]byte),
		nonces:       make(map[string]memoryNonce),
		rateLimits:   make(map[string]memoryCounter),
		subscribers:  make(map[string]map[chan *models.UserEvent]struct{}),
		now:          time.Now,
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for userID, subs := range m.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(m.subscribers, userID)
	}
	return nil
}

func encodeDocument(doc any) ([]byte, error) {
	if err := models.Validate(doc); err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %v", doc, err)
	}
	return data, nil
}

func subcollection(parent map[string]map[string][]byte, userID string) map[string][]byte {
	docs, ok := parent[userID]
	if !ok {
		docs = make(map[string][]byte)
		parent[userID] = docs
	}
	return docs
}

func (m *MemoryStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	m.mu.RLock()
	data, ok := m.users[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrDocumentNotFound
	}

	var user models.User
	if err := models.DecodeDocument(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	data, err := encodeDocument(user)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.users[user.ID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	m.mu.RLock()
	data, ok := m.games[gameID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrDocumentNotFound
	}

	var game models.Game
	if err := models.DecodeDocument(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (m *MemoryStore) SaveGame(ctx context.Context, game *models.Game) error {
	data, err := encodeDocument(game)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.games[game.ID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListGames(ctx context.Context) ([]*models.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	games := make([]*models.Game, 0, len(m.games))
	for _, data := range m.games {
		var game models.Game
		if err := models.DecodeDocument(data, &game); err != nil {
			continue
		}
		games = append(games, &game)
	}
	return games, nil
}

func (m *MemoryStore) HasEntitlement(ctx context.Context, userID, gameID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.library[userID][gameID]
	return ok, nil
}

func (m *MemoryStore) GrantEntitlement(ctx context.Context, entry *models.LibraryEntry) (bool, error) {
	data, err := encodeDocument(entry)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := subcollection(m.library, entry.UserID)
	if _, exists := docs[entry.GameID]; exists {
		return false, nil
	}
	docs[entry.GameID] = data
	return true, nil
}

func (m *MemoryStore) ListEntitlements(ctx context.Context, userID string) ([]*models.LibraryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*models.LibraryEntry, 0, len(m.library[userID]))
	for _, data := range m.library[userID] {
		var entry models.LibraryEntry
		if err := models.DecodeDocument(data, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (m *MemoryStore) AddToWishlist(ctx context.Context, entry *models.WishlistEntry) error {
	data, err := encodeDocument(entry)
	if err != nil {
		return err
	}
	m.mu.Lock()
	subcollection(m.wishlist, entry.UserID)[entry.GameID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) RemoveFromWishlist(ctx context.Context, userID, gameID string) error {
	m.mu.Lock()
	delete(m.wishlist[userID], gameID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListWishlist(ctx context.Context, userID string) ([]*models.WishlistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*models.WishlistEntry, 0, len(m.wishlist[userID]))
	for _, data := range m.wishlist[userID] {
		var entry models.WishlistEntry
		if err := models.DecodeDocument(data, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (m *MemoryStore) CommitPurchase(ctx context.Context, batch *models.PurchaseBatch) (*models.PurchaseCommit, error) {
	entries := batch.LibraryEntries()
	sales := batch.SaleRecords()

	// Encode everything first so a bad item leaves no partial writes.
	entryData := make([][]byte, len(entries))
	saleData := make([][]byte, len(sales))
	for i := range entries {
		var err error
		if entryData[i], err = encodeDocument(entries[i]); err != nil {
			return nil, err
		}
		if saleData[i], err = encodeDocument(sales[i]); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	commit := &models.PurchaseCommit{}
	docs := subcollection(m.library, batch.UserID)
	for i, entry := range entries {
		if _, exists := docs[entry.GameID]; exists {
			commit.AlreadyOwned = append(commit.AlreadyOwned, entry.GameID)
		} else {
			docs[entry.GameID] = entryData[i]
			commit.Granted = append(commit.Granted, entry.GameID)
		}

		if _, exists := m.sales[sales[i].ID]; !exists {
			m.sales[sales[i].ID] = saleData[i]
			m.salesOrder = append(m.salesOrder, sales[i].ID)
			commit.SalesWritten++
		}
	}

	return commit, nil
}

func (m *MemoryStore) ListSales(ctx context.Context, limit int64) ([]*models.SaleRecord, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*models.SaleRecord, 0, limit)
	for i := len(m.salesOrder) - 1; i >= 0 && int64(len(records)) < limit; i-- {
		var record models.SaleRecord
		if err := models.DecodeDocument(m.sales[m.salesOrder[i]], &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

func (m *MemoryStore) SaveNonce(ctx context.Context, nonce *models.Nonce, ttl time.Duration) error {
	data, err := encodeDocument(nonce)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.nonces[nonce.Address] = memoryNonce{data: data, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetNonce(ctx context.Context, address string) (*models.Nonce, error) {
	m.mu.RLock()
	stored, ok := m.nonces[address]
	m.mu.RUnlock()
	if !ok || (!stored.expiresAt.IsZero() && m.now().After(stored.expiresAt)) {
		return nil, ErrDocumentNotFound
	}

	var nonce models.Nonce
	if err := models.DecodeDocument(stored.data, &nonce); err != nil {
		return nil, err
	}
	return &nonce, nil
}

func (m *MemoryStore) DeleteNonce(ctx context.Context, address string) error {
	m.mu.Lock()
	delete(m.nonces, address)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SaveAdminMessage(ctx context.Context, msg *models.AdminMessage) error {
	if err := models.Validate(msg); err != nil {
		return err
	}
	c := *msg
	m.mu.Lock()
	m.messages = append(m.messages, &c)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListAdminMessages(ctx context.Context, limit int64) ([]*models.AdminMessage, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.AdminMessage, 0, limit)
	for i := len(m.messages) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		c := *m.messages[i]
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryStore) SaveDeveloperApplication(ctx context.Context, app *models.DeveloperApplication) error {
	data, err := encodeDocument(app)
	if err != nil {
		return err
	}
	m.mu.Lock()
	subcollection(m.applications, app.UserID)[app.ID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetDeveloperApplication(ctx context.Context, userID, appID string) (*models.DeveloperApplication, error) {
	m.mu.RLock()
	data, ok := m.applications[userID][appID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrDocumentNotFound
	}

	var app models.DeveloperApplication
	if err := models.DecodeDocument(data, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (m *MemoryStore) ListDeveloperApplications(ctx context.Context, userID string) ([]*models.DeveloperApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	apps := make([]*models.DeveloperApplication, 0, len(m.applications[userID]))
	for _, data := range m.applications[userID] {
		var app models.DeveloperApplication
		if err := models.DecodeDocument(data, &app); err != nil {
			return nil, err
		}
		apps = append(apps, &app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.Before(apps[j].CreatedAt) })
	return apps, nil
}

func (m *MemoryStore) ListPendingDeveloperApplications(ctx context.Context) ([]*models.DeveloperApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var apps []*models.DeveloperApplication
	for _, docs := range m.applications {
		for _, data := range docs {
			var app models.DeveloperApplication
			if err := models.DecodeDocument(data, &app); err != nil {
				continue
			}
			if app.Status == models.ApplicationPending {
				apps = append(apps, &app)
			}
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.Before(apps[j].CreatedAt) })
	return apps, nil
}

func (m *MemoryStore) PublishUserEvent(ctx context.Context, event *models.UserEvent) error {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for ch := range m.subscribers[event.UserID] {
		c := *event
		select {
		case ch <- &c:
		default:
			// Slow subscribers drop events, like a Redis pub/sub client
			// whose buffer is full.
		}
	}
	return nil
}

func (m *MemoryStore) SubscribeUserEvents(ctx context.Context, userID string) (<-chan *models.UserEvent, func(), error) {
	ch := make(chan *models.UserEvent, 16)

	m.subMu.Lock()
	subs, ok := m.subscribers[userID]
	if !ok {
		subs = make(map[chan *models.UserEvent]struct{})
		m.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	m.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			if _, ok := m.subscribers[userID][ch]; ok {
				delete(m.subscribers[userID], ch)
				close(ch)
			}
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

func (m *MemoryStore) RecordPermissionDenied(ctx context.Context, d *models.PermissionDiagnostic) error {
	c := *d
	m.mu.Lock()
	m.diagnostics = append(m.diagnostics, &c)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListPermissionDenied(ctx context.Context, limit int64) ([]*models.PermissionDiagnostic, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.PermissionDiagnostic, 0, limit)
	for i := len(m.diagnostics) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		c := *m.diagnostics[i]
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryStore) CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	counter := m.rateLimits[key]
	if counter.expiresAt.IsZero() || now.After(counter.expiresAt) {
		counter = memoryCounter{expiresAt: now.Add(window)}
	}
	counter.count++
	m.rateLimits[key] = counter

	return counter.count <= limit, nil
}
