package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, name, email, password_hash, role, avatar, phone, verified, rating, created_at, updated_at`

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.Avatar,
		&user.Phone, &user.Verified, &user.Rating, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, avatar, phone, verified, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Avatar, user.Phone, user.Verified, user.Rating)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	saved, err := s.savedPropertyIDs(ctx, s.db, userID)
	if err != nil {
		return User{}, err
	}
	user.SavedProperties = saved
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsersByIDs(ctx context.Context, userIDs []string) ([]User, error) {
	if len(userIDs) == 0 {
		return []User{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0, len(userIDs))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListUserIDsByRole(ctx context.Context, role string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users WHERE role=$1`, role)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return ids, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) savedPropertyIDs(ctx context.Context, q queryer, userID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT property_id FROM user_saved_properties
		WHERE user_id=$1
		ORDER BY created_at ASC, property_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved properties: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan saved property: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved properties: %w", err)
	}
	return ids, nil
}

// ToggleSavedProperty removes propertyID from the user's saved set when present
// and adds it otherwise.
func (s *PostgresStore) ToggleSavedProperty(ctx context.Context, userID, propertyID string) (SavedToggle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SavedToggle{}, fmt.Errorf("begin toggle saved: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM user_saved_properties WHERE user_id=$1 AND property_id=$2`, userID, propertyID)
	if err != nil {
		return SavedToggle{}, fmt.Errorf("remove saved property: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return SavedToggle{}, fmt.Errorf("remove saved property rows: %w", err)
	}

	toggle := SavedToggle{Saved: false, Changed: removed > 0}
	if removed == 0 {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO user_saved_properties (user_id, property_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, property_id) DO NOTHING
		`, userID, propertyID)
		if err != nil {
			return SavedToggle{}, fmt.Errorf("add saved property: %w", err)
		}
		added, err := result.RowsAffected()
		if err != nil {
			return SavedToggle{}, fmt.Errorf("add saved property rows: %w", err)
		}
		toggle.Saved = true
		toggle.Changed = added > 0
	}

	ids, err := s.savedPropertyIDs(ctx, tx, userID)
	if err != nil {
		return SavedToggle{}, err
	}
	if err := tx.Commit(); err != nil {
		return SavedToggle{}, fmt.Errorf("commit toggle saved: %w", err)
	}
	toggle.PropertyIDs = ids
	return toggle, nil
}

const propertyColumns = `id, title, description, price, deal_type, property_type, beds, baths, area,
	city, locality, address, pincode, images, amenities, highlights, furnishing, status, listed_by,
	views, saves, inquiries, lat, lng, created_at, updated_at`

func scanProperty(row rowScanner) (Property, error) {
	var (
		item                         Property
		images, amenities, highlight []byte
		lat, lng                     sql.NullFloat64
	)
	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Price, &item.DealType, &item.PropertyType,
		&item.Beds, &item.Baths, &item.Area, &item.City, &item.Locality, &item.Address, &item.Pincode,
		&images, &amenities, &highlight, &item.Furnishing, &item.Status, &item.ListedBy,
		&item.Stats.Views, &item.Stats.Saves, &item.Stats.Inquiries, &lat, &lng, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Property{}, err
	}
	if item.Images, err = decodeStringList(images); err != nil {
		return Property{}, fmt.Errorf("decode images: %w", err)
	}
	if item.Amenities, err = decodeStringList(amenities); err != nil {
		return Property{}, fmt.Errorf("decode amenities: %w", err)
	}
	if item.Highlights, err = decodeStringList(highlight); err != nil {
		return Property{}, fmt.Errorf("decode highlights: %w", err)
	}
	if lat.Valid && lng.Valid {
		item.Location = &Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	return item, nil
}

func decodeStringList(raw []byte) ([]string, error) {
	items := []string{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func encodeStringList(items []string) string {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func locationArgs(loc *Location) (any, any) {
	if loc == nil {
		return nil, nil
	}
	return loc.Lat, loc.Lng
}

func (s *PostgresStore) InsertProperty(ctx context.Context, item Property) error {
	lat, lng := locationArgs(item.Location)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (
			id, title, description, price, deal_type, property_type, beds, baths, area,
			city, locality, address, pincode, images, amenities, highlights, furnishing, status, listed_by,
			lat, lng
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::jsonb, $15::jsonb, $16::jsonb, $17, $18, $19, $20, $21)
	`, item.ID, item.Title, item.Description, item.Price, item.DealType, item.PropertyType, item.Beds, item.Baths, item.Area,
		item.City, item.Locality, item.Address, item.Pincode,
		encodeStringList(item.Images), encodeStringList(item.Amenities), encodeStringList(item.Highlights),
		item.Furnishing, item.Status, item.ListedBy, lat, lng)
	if err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProperty(ctx context.Context, propertyID string) (Property, error) {
	item, err := scanProperty(s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1`, propertyID))
	if errors.Is(err, sql.ErrNoRows) {
		return Property{}, ErrNotFound
	}
	if err != nil {
		return Property{}, fmt.Errorf("get property: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateProperty(ctx context.Context, propertyID string, patch PropertyPatch) (Property, error) {
	sets := make([]string, 0, 20)
	args := []any{propertyID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addJSON := func(column string, items []string) {
		args = append(args, encodeStringList(items))
		sets = append(sets, fmt.Sprintf("%s = $%d::jsonb", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.DealType != nil {
		add("deal_type", *patch.DealType)
	}
	if patch.PropertyType != nil {
		add("property_type", *patch.PropertyType)
	}
	if patch.Beds != nil {
		add("beds", *patch.Beds)
	}
	if patch.Baths != nil {
		add("baths", *patch.Baths)
	}
	if patch.Area != nil {
		add("area", *patch.Area)
	}
	if patch.City != nil {
		add("city", *patch.City)
	}
	if patch.Locality != nil {
		add("locality", *patch.Locality)
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.Pincode != nil {
		add("pincode", *patch.Pincode)
	}
	if patch.Images != nil {
		addJSON("images", patch.Images)
	}
	if patch.Amenities != nil {
		addJSON("amenities", patch.Amenities)
	}
	if patch.Highlights != nil {
		addJSON("highlights", patch.Highlights)
	}
	if patch.Furnishing != nil {
		add("furnishing", *patch.Furnishing)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Location != nil {
		add("lat", patch.Location.Lat)
		add("lng", patch.Location.Lng)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE properties SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + propertyColumns
	item, err := scanProperty(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Property{}, ErrNotFound
	}
	if err != nil {
		return Property{}, fmt.Errorf("update property: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteProperty(ctx context.Context, propertyID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id=$1`, propertyID)
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete property rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementPropertyStat adjusts one counter in place and returns the updated row.
func (s *PostgresStore) IncrementPropertyStat(ctx context.Context, propertyID string, stat Stat, delta int64) (Property, error) {
	if !stat.Valid() {
		return Property{}, fmt.Errorf("unknown property stat %q", stat)
	}
	column := string(stat)
	query := fmt.Sprintf(`UPDATE properties SET %s = %s + $2 WHERE id = $1 RETURNING %s`, column, column, propertyColumns)
	item, err := scanProperty(s.db.QueryRowContext(ctx, query, propertyID, delta))
	if errors.Is(err, sql.ErrNoRows) {
		return Property{}, ErrNotFound
	}
	if err != nil {
		return Property{}, fmt.Errorf("increment %s: %w", column, err)
	}
	return item, nil
}

// buildPropertyWhere renders q as a parameterised WHERE clause. The search term is
// one OR-group AND-ed with every other constraint.
func buildPropertyWhere(q PropertyQuery) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Status != "" {
		clauses = append(clauses, "status = "+next(q.Status))
	}
	if q.Search != "" {
		pattern := next(likePattern(q.Search))
		clauses = append(clauses, fmt.Sprintf("(title ILIKE %s OR city ILIKE %s OR locality ILIKE %s)", pattern, pattern, pattern))
	}
	if q.City != "" {
		clauses = append(clauses, "city ILIKE "+next(likePattern(q.City)))
	}
	if q.DealType != "" {
		clauses = append(clauses, "deal_type = "+next(q.DealType))
	}
	if q.PropertyType != "" {
		clauses = append(clauses, "property_type = "+next(q.PropertyType))
	}
	if q.MinPrice != nil {
		clauses = append(clauses, "price >= "+next(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		clauses = append(clauses, "price <= "+next(*q.MaxPrice))
	}
	if q.Beds != nil {
		clauses = append(clauses, "beds = "+next(*q.Beds))
	}
	if q.MinBeds != nil {
		clauses = append(clauses, "beds >= "+next(*q.MinBeds))
	}
	if q.RestrictListedBy {
		ids := q.ListedBy
		if ids == nil {
			ids = []string{}
		}
		clauses = append(clauses, "listed_by = ANY("+next(ids)+")")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func (s *PostgresStore) FindProperties(ctx context.Context, q PropertyQuery) ([]Property, error) {
	where, args := buildPropertyWhere(q)
	return s.listProperties(ctx, `SELECT `+propertyColumns+` FROM properties `+where+` ORDER BY created_at DESC, id DESC`, args...)
}

func (s *PostgresStore) ListPropertiesByLister(ctx context.Context, userID string) ([]Property, error) {
	return s.listProperties(ctx, `SELECT `+propertyColumns+` FROM properties WHERE listed_by=$1 ORDER BY created_at DESC, id DESC`, userID)
}

func (s *PostgresStore) ListPropertiesByIDs(ctx context.Context, propertyIDs []string) ([]Property, error) {
	if len(propertyIDs) == 0 {
		return []Property{}, nil
	}
	return s.listProperties(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ANY($1)`, propertyIDs)
}

func (s *PostgresStore) listProperties(ctx context.Context, query string, args ...any) ([]Property, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	items := make([]Property, 0)
	for rows.Next() {
		item, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return items, nil
}

const chatColumns = `id, property_id, participant_low, participant_high, last_message, last_message_time, created_at, updated_at`

func scanChat(row rowScanner) (Chat, error) {
	var (
		chat      Chat
		low, high string
	)
	if err := row.Scan(&chat.ID, &chat.Property, &low, &high, &chat.LastMessage, &chat.LastMessageTime, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		return Chat{}, err
	}
	chat.Participants = SortedPair(low, high)
	chat.Messages = []Message{}
	return chat, nil
}

// CreateOrGetChat inserts chat unless a thread for the same property and
// participant pair exists. The unique key makes concurrent first contacts
// converge on one row; created reports whether this call inserted it.
func (s *PostgresStore) CreateOrGetChat(ctx context.Context, chat Chat) (Chat, bool, error) {
	if len(chat.Participants) != 2 {
		return Chat{}, false, fmt.Errorf("chat needs exactly two participants, got %d", len(chat.Participants))
	}
	low, high := PairKey(chat.Participants[0], chat.Participants[1])

	var insertedID string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chats (id, property_id, participant_low, participant_high)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (property_id, participant_low, participant_high) DO NOTHING
		RETURNING id
	`, chat.ID, chat.Property, low, high).Scan(&insertedID)
	created := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Chat{}, false, fmt.Errorf("insert chat: %w", err)
	}

	existing, err := scanChat(s.db.QueryRowContext(ctx, `
		SELECT `+chatColumns+` FROM chats
		WHERE property_id=$1 AND participant_low=$2 AND participant_high=$3
	`, chat.Property, low, high))
	if err != nil {
		return Chat{}, false, fmt.Errorf("load chat: %w", err)
	}
	if err := s.attachMessages(ctx, s.db, []*Chat{&existing}); err != nil {
		return Chat{}, false, err
	}
	return existing, created, nil
}

func (s *PostgresStore) GetChat(ctx context.Context, chatID string) (Chat, error) {
	chat, err := scanChat(s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("get chat: %w", err)
	}
	if err := s.attachMessages(ctx, s.db, []*Chat{&chat}); err != nil {
		return Chat{}, err
	}
	return chat, nil
}

func (s *PostgresStore) ListChatsForUser(ctx context.Context, userID string) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chatColumns+` FROM chats
		WHERE participant_low=$1 OR participant_high=$1
		ORDER BY last_message_time DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]Chat, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	refs := make([]*Chat, len(chats))
	for i := range chats {
		refs[i] = &chats[i]
	}
	if err := s.attachMessages(ctx, s.db, refs); err != nil {
		return nil, err
	}
	return chats, nil
}

func (s *PostgresStore) attachMessages(ctx context.Context, q queryer, chats []*Chat) error {
	if len(chats) == 0 {
		return nil
	}
	byID := make(map[string]*Chat, len(chats))
	ids := make([]string, 0, len(chats))
	for _, chat := range chats {
		byID[chat.ID] = chat
		ids = append(ids, chat.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT chat_id, id, sender_id, text, read, created_at
		FROM chat_messages
		WHERE chat_id = ANY($1)
		ORDER BY chat_id, seq ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chatID string
			msg    Message
		)
		if err := rows.Scan(&chatID, &msg.ID, &msg.Sender, &msg.Text, &msg.Read, &msg.CreatedAt); err != nil {
			return fmt.Errorf("scan chat message: %w", err)
		}
		if chat, ok := byID[chatID]; ok {
			chat.Messages = append(chat.Messages, msg)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate chat messages: %w", err)
	}
	return nil
}

// AppendChatMessage appends msg and refreshes the denormalised last message while
// holding the chat row lock, so the cached values follow commit order.
func (s *PostgresStore) AppendChatMessage(ctx context.Context, chatID string, msg Message) (Chat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Chat{}, fmt.Errorf("begin append message: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockedID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM chats WHERE id=$1 FOR UPDATE`, chatID).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("lock chat: %w", err)
	}

	var createdAt time.Time
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO chat_messages (id, chat_id, sender_id, text, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, clock_timestamp())
		RETURNING created_at
	`, msg.ID, chatID, msg.Sender, msg.Text).Scan(&createdAt); err != nil {
		return Chat{}, fmt.Errorf("insert chat message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE chats SET last_message=$2, last_message_time=$3, updated_at=$3
		WHERE id=$1
	`, chatID, msg.Text, createdAt); err != nil {
		return Chat{}, fmt.Errorf("update last message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Chat{}, fmt.Errorf("commit append message: %w", err)
	}
	return s.GetChat(ctx, chatID)
}

// MarkChatRead flags every message not sent by readerID as read.
func (s *PostgresStore) MarkChatRead(ctx context.Context, chatID, readerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_messages SET read=TRUE
		WHERE chat_id=$1 AND sender_id<>$2 AND read=FALSE
	`, chatID, readerID)
	if err != nil {
		return fmt.Errorf("mark chat read: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.email, u.password_hash, u.role, u.avatar, u.phone, u.verified, u.rating, u.created_at, u.updated_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`, tokenHash))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
