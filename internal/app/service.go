package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"estate/api/internal/auth"
	"estate/api/internal/authpw"
	"estate/api/internal/config"
	"estate/api/internal/media"
	"estate/api/internal/search"
	"estate/api/internal/store"
	"estate/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// SessionStore keeps hashed refresh tokens.
type SessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

// Store is the primary store. PostgresStore and MongoStore both satisfy it.
type Store interface {
	SessionStore
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsersByIDs(context.Context, []string) ([]store.User, error)
	ListUserIDsByRole(context.Context, string) ([]string, error)
	ToggleSavedProperty(context.Context, string, string) (store.SavedToggle, error)
	InsertProperty(context.Context, store.Property) error
	GetProperty(context.Context, string) (store.Property, error)
	UpdateProperty(context.Context, string, store.PropertyPatch) (store.Property, error)
	DeleteProperty(context.Context, string) error
	IncrementPropertyStat(context.Context, string, store.Stat, int64) (store.Property, error)
	FindProperties(context.Context, store.PropertyQuery) ([]store.Property, error)
	ListPropertiesByLister(context.Context, string) ([]store.Property, error)
	ListPropertiesByIDs(context.Context, []string) ([]store.Property, error)
	CreateOrGetChat(context.Context, store.Chat) (store.Chat, bool, error)
	GetChat(context.Context, string) (store.Chat, error)
	ListChatsForUser(context.Context, string) ([]store.Chat, error)
	AppendChatMessage(context.Context, string, store.Message) (store.Chat, error)
	MarkChatRead(context.Context, string, string) error
	Ping(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Service struct {
	cfg      config.Config
	store    Store
	sessions SessionStore
	// sessionsExternal is set when refresh sessions live outside the primary store.
	sessionsExternal bool
	passwords        *authpw.Service
	uploads          *media.Uploader
	index            search.Index
	search           *search.Service
}

type Option func(*Service)

// WithSessionStore keeps refresh sessions outside the primary store.
func WithSessionStore(sessions SessionStore) Option {
	return func(s *Service) {
		s.sessions = sessions
		s.sessionsExternal = true
	}
}

func WithUploader(uploads *media.Uploader) Option {
	return func(s *Service) {
		s.uploads = uploads
	}
}

// WithSearchIndex enables the listing index. Without it search runs on the store.
func WithSearchIndex(index search.Index) Option {
	return func(s *Service) {
		s.index = index
	}
}

func New(cfg config.Config, data Store, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		store:     data,
		passwords: authpw.NewService(data),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = data
	}
	if s.uploads == nil {
		s.uploads = media.NewUploader(media.NewDiskStorage(cfg.UploadDir, cfg.UploadBasePath))
	}
	s.search = search.NewService(s.index, s.searchFallback)
	return s
}

// Bootstrap pushes every active listing to the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	items, err := s.store.FindProperties(ctx, store.PropertyQuery{Status: store.StatusActive})
	if err != nil {
		return fmt.Errorf("load active listings: %w", err)
	}
	records := make([]search.ListingRecord, 0, len(items))
	for _, item := range items {
		records = append(records, search.NewListingRecord(item))
	}
	s.search.ReindexAll(records)
	log.Printf("search: reindexed %d active listings", len(records))
	return nil
}

func (s *Service) Register(ctx context.Context, req authpw.SignUpRequest) (Session, store.User, error) {
	user, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		return Session{}, store.User{}, err
	}
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, store.User{}, err
	}
	return session, user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, store.User, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, store.User{}, err
	}
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, store.User{}, err
	}
	return session, user, nil
}

// Refresh rotates a refresh token. The old token is revoked before a new pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	holder, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, holder.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.Name,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewSecret("rft")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken verifies an access token and reloads the user so role
// changes and deletions take effect before the token expires.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) Me(ctx context.Context, userID string) (UserView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return UserView{}, notFound("User not found")
	}
	if err != nil {
		return UserView{}, err
	}
	return newUserView(user), nil
}

// Check is the result of probing one backing service. Optional checks only
// degrade readiness; search falls back to the store when the index is down.
type Check struct {
	Name     string
	Err      error
	Optional bool
}

var errIndexUnhealthy = errors.New("search index unhealthy")

// Readiness probes the primary store, the session store when it is separate,
// and the search index when one is configured.
func (s *Service) Readiness(ctx context.Context) []Check {
	checks := []Check{{Name: "database", Err: s.store.Ping(ctx)}}
	if p, ok := s.sessions.(pinger); ok && s.sessionsExternal {
		checks = append(checks, Check{Name: "sessions", Err: p.Ping(ctx)})
	}
	if s.index != nil {
		var err error
		if !s.index.Healthy() {
			err = errIndexUnhealthy
		}
		checks = append(checks, Check{Name: "search", Err: err, Optional: true})
	}
	return checks
}
