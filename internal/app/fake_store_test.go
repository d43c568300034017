package app

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"estate/api/internal/config"
	"estate/api/internal/media"
	"estate/api/internal/store"
)

// memStore is an in-memory Store. Every method holds the lock for its whole
// body, so each call is atomic like the real backends.
type memStore struct {
	mu         sync.Mutex
	users      map[string]store.User
	properties map[string]store.Property
	chats      map[string]store.Chat
	sessions   map[string]memSession
	clock      time.Time

	pingFn func(context.Context) error
}

type memSession struct {
	userID    string
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]store.User{},
		properties: map[string]store.Property{},
		chats:      map[string]store.Chat{},
		sessions:   map[string]memSession{},
		clock:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// now returns a strictly increasing timestamp. Callers hold the lock.
func (m *memStore) now() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *memStore) CreateUser(_ context.Context, user store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return errDuplicateEmail
		}
	}
	user.CreatedAt = m.now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return nil
}

var errDuplicateEmail = errors.New("duplicate email")

func (m *memStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	user.SavedProperties = slices.Clone(user.SavedProperties)
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (m *memStore) ListUsersByIDs(_ context.Context, userIDs []string) ([]store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.User{}
	for _, id := range userIDs {
		if user, ok := m.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (m *memStore) ListUserIDsByRole(_ context.Context, role string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for _, user := range m.users {
		if user.Role == role {
			ids = append(ids, user.ID)
		}
	}
	return ids, nil
}

func (m *memStore) ToggleSavedProperty(_ context.Context, userID, propertyID string) (store.SavedToggle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return store.SavedToggle{}, store.ErrNotFound
	}
	saved := !slices.Contains(user.SavedProperties, propertyID)
	if saved {
		user.SavedProperties = append(slices.Clone(user.SavedProperties), propertyID)
	} else {
		user.SavedProperties = slices.DeleteFunc(slices.Clone(user.SavedProperties), func(id string) bool { return id == propertyID })
	}
	m.users[userID] = user
	return store.SavedToggle{Saved: saved, Changed: true, PropertyIDs: slices.Clone(user.SavedProperties)}, nil
}

func (m *memStore) InsertProperty(_ context.Context, item store.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.CreatedAt = m.now()
	item.UpdatedAt = item.CreatedAt
	m.properties[item.ID] = item
	return nil
}

func (m *memStore) GetProperty(_ context.Context, propertyID string) (store.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.properties[propertyID]
	if !ok {
		return store.Property{}, store.ErrNotFound
	}
	return item, nil
}

func (m *memStore) UpdateProperty(_ context.Context, propertyID string, patch store.PropertyPatch) (store.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.properties[propertyID]
	if !ok {
		return store.Property{}, store.ErrNotFound
	}
	item = patch.Apply(item)
	item.UpdatedAt = m.now()
	m.properties[propertyID] = item
	return item, nil
}

func (m *memStore) DeleteProperty(_ context.Context, propertyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.properties[propertyID]; !ok {
		return store.ErrNotFound
	}
	delete(m.properties, propertyID)
	return nil
}

func (m *memStore) IncrementPropertyStat(_ context.Context, propertyID string, stat store.Stat, delta int64) (store.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.properties[propertyID]
	if !ok {
		return store.Property{}, store.ErrNotFound
	}
	switch stat {
	case store.StatViews:
		item.Stats.Views += delta
	case store.StatSaves:
		item.Stats.Saves += delta
	case store.StatInquiries:
		item.Stats.Inquiries += delta
	}
	m.properties[propertyID] = item
	return item, nil
}

func (m *memStore) FindProperties(_ context.Context, q store.PropertyQuery) ([]store.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedProperties(q.Matches), nil
}

func (m *memStore) ListPropertiesByLister(_ context.Context, userID string) ([]store.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedProperties(func(p store.Property) bool { return p.ListedBy == userID }), nil
}

func (m *memStore) ListPropertiesByIDs(_ context.Context, propertyIDs []string) ([]store.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedProperties(func(p store.Property) bool { return slices.Contains(propertyIDs, p.ID) }), nil
}

func (m *memStore) sortedProperties(keep func(store.Property) bool) []store.Property {
	out := []store.Property{}
	for _, item := range m.properties {
		if keep(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) CreateOrGetChat(_ context.Context, chat store.Chat) (store.Chat, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	low, high := store.PairKey(chat.Participants[0], chat.Participants[1])
	for _, existing := range m.chats {
		if existing.Property != chat.Property || len(existing.Participants) != 2 {
			continue
		}
		a, b := store.PairKey(existing.Participants[0], existing.Participants[1])
		if a == low && b == high {
			return cloneChat(existing), false, nil
		}
	}
	now := m.now()
	chat.Participants = []string{low, high}
	chat.Messages = []store.Message{}
	chat.LastMessageTime = now
	chat.CreatedAt = now
	chat.UpdatedAt = now
	m.chats[chat.ID] = chat
	return cloneChat(chat), true, nil
}

func (m *memStore) GetChat(_ context.Context, chatID string) (store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return store.Chat{}, store.ErrNotFound
	}
	return cloneChat(chat), nil
}

func (m *memStore) ListChatsForUser(_ context.Context, userID string) ([]store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Chat{}
	for _, chat := range m.chats {
		if chat.HasParticipant(userID) {
			out = append(out, cloneChat(chat))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageTime.After(out[j].LastMessageTime) })
	return out, nil
}

func (m *memStore) AppendChatMessage(_ context.Context, chatID string, msg store.Message) (store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return store.Chat{}, store.ErrNotFound
	}
	msg.CreatedAt = m.now()
	msg.Read = false
	chat.Messages = append(chat.Messages, msg)
	chat.LastMessage = msg.Text
	chat.LastMessageTime = msg.CreatedAt
	chat.UpdatedAt = msg.CreatedAt
	m.chats[chatID] = chat
	return cloneChat(chat), nil
}

func (m *memStore) MarkChatRead(_ context.Context, chatID, readerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return store.ErrNotFound
	}
	for i := range chat.Messages {
		if chat.Messages[i].Sender != readerID {
			chat.Messages[i].Read = true
		}
	}
	m.chats[chatID] = chat
	return nil
}

func (m *memStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tokenHash] = memSession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenHash]
	if !ok || time.Now().After(session.expiresAt) {
		return store.User{}, store.ErrNotFound
	}
	return store.User{ID: session.userID}, nil
}

func (m *memStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

func (m *memStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func cloneChat(chat store.Chat) store.Chat {
	chat.Participants = slices.Clone(chat.Participants)
	chat.Messages = slices.Clone(chat.Messages)
	return chat
}

func (m *memStore) addUser(id, name, role string) store.User {
	user := store.User{ID: id, Name: name, Email: id + "@example.com", Role: role, Phone: "555-0100", Verified: role != store.RoleBuyer}
	if err := m.CreateUser(context.Background(), user); err != nil {
		panic(err)
	}
	return user
}

func (m *memStore) addProperty(item store.Property) store.Property {
	if item.Status == "" {
		item.Status = store.StatusActive
	}
	if item.DealType == "" {
		item.DealType = store.DealSale
	}
	if item.PropertyType == "" {
		item.PropertyType = "Apartment"
	}
	if err := m.InsertProperty(context.Background(), item); err != nil {
		panic(err)
	}
	stored, _ := m.GetProperty(context.Background(), item.ID)
	return stored
}

func (m *memStore) chatCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chats)
}

func newTestService(data *memStore, opts ...Option) *Service {
	return New(config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, data, opts...)
}

// tokenFor issues an access token for a stored user.
func tokenFor(t interface{ Fatalf(string, ...any) }, svc *Service, userID string) string {
	user, err := svc.store.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("load user %s: %v", userID, err)
	}
	session, err := svc.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

func diskUploader(root string) *media.Uploader {
	return media.NewUploader(media.NewDiskStorage(root, "/uploads"))
}
