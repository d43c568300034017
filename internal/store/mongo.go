package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collUsers           = "users"
	collProperties      = "properties"
	collChats           = "chats"
	collRefreshSessions = "refresh_sessions"
)

// MongoStore keeps users, properties and chats as documents. Chat messages are
// embedded in their chat so an append and the last-message cache change in one
// document write.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects, pings and returns a store bound to database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStore(client.Database(database)), nil
}

// NewMongoStore wraps a database whose client the caller already connected.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{client: db.Client(), db: db}
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the store relies on, including the unique
// (property, pairKey) index that keeps one chat per participant pair.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
		collProperties: {
			{Keys: bson.D{{Key: "city", Value: 1}, {Key: "dealType", Value: 1}, {Key: "propertyType", Value: 1}}},
			{Keys: bson.D{{Key: "listedBy", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		collChats: {
			{Keys: bson.D{{Key: "property", Value: 1}, {Key: "pairKey", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastMessageTime", Value: -1}}},
		},
		collRefreshSessions: {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for name, models := range specs {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

type userDoc struct {
	ID              string    `bson:"_id"`
	Name            string    `bson:"name"`
	Email           string    `bson:"email"`
	PasswordHash    string    `bson:"passwordHash"`
	Role            string    `bson:"role"`
	Avatar          string    `bson:"avatar"`
	Phone           string    `bson:"phone"`
	Verified        bool      `bson:"verified"`
	Rating          float64   `bson:"rating"`
	SavedProperties []string  `bson:"savedProperties"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

func (d userDoc) toUser() User {
	saved := d.SavedProperties
	if saved == nil {
		saved = []string{}
	}
	return User{
		ID:              d.ID,
		Name:            d.Name,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		Role:            d.Role,
		Avatar:          d.Avatar,
		Phone:           d.Phone,
		Verified:        d.Verified,
		Rating:          d.Rating,
		SavedProperties: saved,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type statsDoc struct {
	Views     int64 `bson:"views"`
	Saves     int64 `bson:"saves"`
	Inquiries int64 `bson:"inquiries"`
}

type locationDoc struct {
	Lat float64 `bson:"lat"`
	Lng float64 `bson:"lng"`
}

type propertyDoc struct {
	ID           string       `bson:"_id"`
	Title        string       `bson:"title"`
	Description  string       `bson:"description"`
	Price        float64      `bson:"price"`
	DealType     string       `bson:"dealType"`
	PropertyType string       `bson:"propertyType"`
	Beds         int          `bson:"beds"`
	Baths        int          `bson:"baths"`
	Area         float64      `bson:"area"`
	City         string       `bson:"city"`
	Locality     string       `bson:"locality"`
	Address      string       `bson:"address"`
	Pincode      string       `bson:"pincode"`
	Images       []string     `bson:"images"`
	Amenities    []string     `bson:"amenities"`
	Highlights   []string     `bson:"highlights"`
	Furnishing   string       `bson:"furnishing"`
	Status       string       `bson:"status"`
	ListedBy     string       `bson:"listedBy"`
	Stats        statsDoc     `bson:"stats"`
	Location     *locationDoc `bson:"location,omitempty"`
	CreatedAt    time.Time    `bson:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt"`
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func propertyToDoc(p Property) propertyDoc {
	doc := propertyDoc{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.Price,
		DealType:     p.DealType,
		PropertyType: p.PropertyType,
		Beds:         p.Beds,
		Baths:        p.Baths,
		Area:         p.Area,
		City:         p.City,
		Locality:     p.Locality,
		Address:      p.Address,
		Pincode:      p.Pincode,
		Images:       nonNilStrings(p.Images),
		Amenities:    nonNilStrings(p.Amenities),
		Highlights:   nonNilStrings(p.Highlights),
		Furnishing:   p.Furnishing,
		Status:       p.Status,
		ListedBy:     p.ListedBy,
		Stats:        statsDoc{Views: p.Stats.Views, Saves: p.Stats.Saves, Inquiries: p.Stats.Inquiries},
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.Location != nil {
		doc.Location = &locationDoc{Lat: p.Location.Lat, Lng: p.Location.Lng}
	}
	return doc
}

func (d propertyDoc) toProperty() Property {
	p := Property{
		ID:           d.ID,
		Title:        d.Title,
		Description:  d.Description,
		Price:        d.Price,
		DealType:     d.DealType,
		PropertyType: d.PropertyType,
		Beds:         d.Beds,
		Baths:        d.Baths,
		Area:         d.Area,
		City:         d.City,
		Locality:     d.Locality,
		Address:      d.Address,
		Pincode:      d.Pincode,
		Images:       nonNilStrings(d.Images),
		Amenities:    nonNilStrings(d.Amenities),
		Highlights:   nonNilStrings(d.Highlights),
		Furnishing:   d.Furnishing,
		Status:       d.Status,
		ListedBy:     d.ListedBy,
		Stats:        PropertyStats{Views: d.Stats.Views, Saves: d.Stats.Saves, Inquiries: d.Stats.Inquiries},
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.Location != nil {
		p.Location = &Location{Lat: d.Location.Lat, Lng: d.Location.Lng}
	}
	return p
}

type messageDoc struct {
	ID        string    `bson:"_id"`
	Sender    string    `bson:"sender"`
	Text      string    `bson:"text"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"createdAt"`
}

type chatDoc struct {
	ID              string       `bson:"_id"`
	Property        string       `bson:"property"`
	Participants    []string     `bson:"participants"`
	PairKey         string       `bson:"pairKey"`
	Messages        []messageDoc `bson:"messages"`
	LastMessage     string       `bson:"lastMessage"`
	LastMessageTime time.Time    `bson:"lastMessageTime"`
	CreatedAt       time.Time    `bson:"createdAt"`
	UpdatedAt       time.Time    `bson:"updatedAt"`
}

func (d chatDoc) toChat() Chat {
	chat := Chat{
		ID:              d.ID,
		Property:        d.Property,
		Participants:    nonNilStrings(d.Participants),
		Messages:        make([]Message, 0, len(d.Messages)),
		LastMessage:     d.LastMessage,
		LastMessageTime: d.LastMessageTime,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, m := range d.Messages {
		chat.Messages = append(chat.Messages, Message{ID: m.ID, Sender: m.Sender, Text: m.Text, Read: m.Read, CreatedAt: m.CreatedAt})
	}
	return chat
}

func mongoPairKey(a, b string) string {
	low, high := PairKey(a, b)
	return low + ":" + high
}

func (s *MongoStore) users() *mongo.Collection      { return s.db.Collection(collUsers) }
func (s *MongoStore) properties() *mongo.Collection { return s.db.Collection(collProperties) }
func (s *MongoStore) chats() *mongo.Collection      { return s.db.Collection(collChats) }

func (s *MongoStore) CreateUser(ctx context.Context, user User) error {
	now := time.Now().UTC()
	doc := userDoc{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		PasswordHash:    user.PasswordHash,
		Role:            user.Role,
		Avatar:          user.Avatar,
		Phone:           user.Phone,
		Verified:        user.Verified,
		Rating:          user.Rating,
		SavedProperties: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := s.users().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (User, error) {
	var doc userDoc
	err := s.users().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toUser(), nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.findUser(ctx, bson.M{"_id": userID})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.findUser(ctx, bson.M{"email": bson.M{"$regex": "^" + regexp.QuoteMeta(email) + "$", "$options": "i"}})
}

func (s *MongoStore) ListUsersByIDs(ctx context.Context, userIDs []string) ([]User, error) {
	if len(userIDs) == 0 {
		return []User{}, nil
	}
	cursor, err := s.users().Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	items := make([]User, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toUser())
	}
	return items, nil
}

func (s *MongoStore) ListUserIDsByRole(ctx context.Context, role string) ([]string, error) {
	cursor, err := s.users().Find(ctx, bson.M{"role": role}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode user ids: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// ToggleSavedProperty pulls propertyID from the saved set when present and adds
// it otherwise. Each branch is a single conditional document update.
func (s *MongoStore) ToggleSavedProperty(ctx context.Context, userID, propertyID string) (SavedToggle, error) {
	now := time.Now().UTC()
	pulled, err := s.users().UpdateOne(ctx,
		bson.M{"_id": userID, "savedProperties": propertyID},
		bson.M{"$pull": bson.M{"savedProperties": propertyID}, "$set": bson.M{"updatedAt": now}},
	)
	if err != nil {
		return SavedToggle{}, fmt.Errorf("remove saved property: %w", err)
	}

	toggle := SavedToggle{Saved: false, Changed: pulled.ModifiedCount > 0}
	if pulled.MatchedCount == 0 {
		added, err := s.users().UpdateOne(ctx,
			bson.M{"_id": userID},
			bson.M{"$addToSet": bson.M{"savedProperties": propertyID}, "$set": bson.M{"updatedAt": now}},
		)
		if err != nil {
			return SavedToggle{}, fmt.Errorf("add saved property: %w", err)
		}
		if added.MatchedCount == 0 {
			return SavedToggle{}, ErrNotFound
		}
		toggle.Saved = true
		toggle.Changed = added.ModifiedCount > 0
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return SavedToggle{}, err
	}
	toggle.PropertyIDs = user.SavedProperties
	return toggle, nil
}

func (s *MongoStore) InsertProperty(ctx context.Context, item Property) error {
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if _, err := s.properties().InsertOne(ctx, propertyToDoc(item)); err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

func (s *MongoStore) GetProperty(ctx context.Context, propertyID string) (Property, error) {
	var doc propertyDoc
	err := s.properties().FindOne(ctx, bson.M{"_id": propertyID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Property{}, ErrNotFound
	}
	if err != nil {
		return Property{}, fmt.Errorf("get property: %w", err)
	}
	return doc.toProperty(), nil
}

func propertyPatchSet(patch PropertyPatch) bson.M {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.DealType != nil {
		set["dealType"] = *patch.DealType
	}
	if patch.PropertyType != nil {
		set["propertyType"] = *patch.PropertyType
	}
	if patch.Beds != nil {
		set["beds"] = *patch.Beds
	}
	if patch.Baths != nil {
		set["baths"] = *patch.Baths
	}
	if patch.Area != nil {
		set["area"] = *patch.Area
	}
	if patch.City != nil {
		set["city"] = *patch.City
	}
	if patch.Locality != nil {
		set["locality"] = *patch.Locality
	}
	if patch.Address != nil {
		set["address"] = *patch.Address
	}
	if patch.Pincode != nil {
		set["pincode"] = *patch.Pincode
	}
	if patch.Images != nil {
		set["images"] = patch.Images
	}
	if patch.Amenities != nil {
		set["amenities"] = patch.Amenities
	}
	if patch.Highlights != nil {
		set["highlights"] = patch.Highlights
	}
	if patch.Furnishing != nil {
		set["furnishing"] = *patch.Furnishing
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Location != nil {
		set["location"] = locationDoc{Lat: patch.Location.Lat, Lng: patch.Location.Lng}
	}
	return set
}

func (s *MongoStore) UpdateProperty(ctx context.Context, propertyID string, patch PropertyPatch) (Property, error) {
	var doc propertyDoc
	err := s.properties().FindOneAndUpdate(ctx,
		bson.M{"_id": propertyID},
		bson.M{"$set": propertyPatchSet(patch)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Property{}, ErrNotFound
	}
	if err != nil {
		return Property{}, fmt.Errorf("update property: %w", err)
	}
	return doc.toProperty(), nil
}

func (s *MongoStore) DeleteProperty(ctx context.Context, propertyID string) error {
	result, err := s.properties().DeleteOne(ctx, bson.M{"_id": propertyID})
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) IncrementPropertyStat(ctx context.Context, propertyID string, stat Stat, delta int64) (Property, error) {
	if !stat.Valid() {
		return Property{}, fmt.Errorf("unknown property stat %q", stat)
	}
	var doc propertyDoc
	err := s.properties().FindOneAndUpdate(ctx,
		bson.M{"_id": propertyID},
		bson.M{"$inc": bson.M{"stats." + string(stat): delta}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Property{}, ErrNotFound
	}
	if err != nil {
		return Property{}, fmt.Errorf("increment %s: %w", stat, err)
	}
	return doc.toProperty(), nil
}

func containsFoldFilter(term string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
}

// propertyFilter renders q as a Mongo filter: the search term becomes the single
// top-level $or while every other constraint is an implicit AND.
func propertyFilter(q PropertyQuery) bson.M {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Search != "" {
		rx := containsFoldFilter(q.Search)
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"city": rx},
			bson.M{"locality": rx},
		}
	}
	if q.City != "" {
		filter["city"] = containsFoldFilter(q.City)
	}
	if q.DealType != "" {
		filter["dealType"] = q.DealType
	}
	if q.PropertyType != "" {
		filter["propertyType"] = q.PropertyType
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			price["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			price["$lte"] = *q.MaxPrice
		}
		filter["price"] = price
	}
	if q.Beds != nil || q.MinBeds != nil {
		beds := bson.M{}
		if q.Beds != nil {
			beds["$eq"] = *q.Beds
		}
		if q.MinBeds != nil {
			beds["$gte"] = *q.MinBeds
		}
		filter["beds"] = beds
	}
	if q.RestrictListedBy {
		filter["listedBy"] = bson.M{"$in": nonNilStrings(q.ListedBy)}
	}
	return filter
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (s *MongoStore) findProperties(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]Property, error) {
	cursor, err := s.properties().Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	var docs []propertyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	items := make([]Property, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toProperty())
	}
	return items, nil
}

func (s *MongoStore) FindProperties(ctx context.Context, q PropertyQuery) ([]Property, error) {
	return s.findProperties(ctx, propertyFilter(q), options.Find().SetSort(newestFirst))
}

func (s *MongoStore) ListPropertiesByLister(ctx context.Context, userID string) ([]Property, error) {
	return s.findProperties(ctx, bson.M{"listedBy": userID}, options.Find().SetSort(newestFirst))
}

func (s *MongoStore) ListPropertiesByIDs(ctx context.Context, propertyIDs []string) ([]Property, error) {
	if len(propertyIDs) == 0 {
		return []Property{}, nil
	}
	return s.findProperties(ctx, bson.M{"_id": bson.M{"$in": propertyIDs}})
}

// CreateOrGetChat upserts on (property, pairKey). A duplicate key error means a
// concurrent request inserted the same thread first.
func (s *MongoStore) CreateOrGetChat(ctx context.Context, chat Chat) (Chat, bool, error) {
	if len(chat.Participants) != 2 {
		return Chat{}, false, fmt.Errorf("chat needs exactly two participants, got %d", len(chat.Participants))
	}
	key := bson.M{
		"property": chat.Property,
		"pairKey":  mongoPairKey(chat.Participants[0], chat.Participants[1]),
	}
	now := time.Now().UTC()
	result, err := s.chats().UpdateOne(ctx, key,
		bson.M{"$setOnInsert": bson.M{
			"_id":             chat.ID,
			"participants":    SortedPair(chat.Participants[0], chat.Participants[1]),
			"messages":        bson.A{},
			"lastMessage":     "",
			"lastMessageTime": now,
			"createdAt":       now,
			"updatedAt":       now,
		}},
		options.Update().SetUpsert(true),
	)
	created := false
	switch {
	case err == nil:
		created = result.UpsertedCount > 0
	case mongo.IsDuplicateKeyError(err):
	default:
		return Chat{}, false, fmt.Errorf("upsert chat: %w", err)
	}

	var doc chatDoc
	if err := s.chats().FindOne(ctx, key).Decode(&doc); err != nil {
		return Chat{}, false, fmt.Errorf("load chat: %w", err)
	}
	return doc.toChat(), created, nil
}

func (s *MongoStore) GetChat(ctx context.Context, chatID string) (Chat, error) {
	var doc chatDoc
	err := s.chats().FindOne(ctx, bson.M{"_id": chatID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("get chat: %w", err)
	}
	return doc.toChat(), nil
}

func (s *MongoStore) ListChatsForUser(ctx context.Context, userID string) ([]Chat, error) {
	cursor, err := s.chats().Find(ctx,
		bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "lastMessageTime", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	var docs []chatDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	chats := make([]Chat, 0, len(docs))
	for _, doc := range docs {
		chats = append(chats, doc.toChat())
	}
	return chats, nil
}

// AppendChatMessage pushes msg and sets the last-message cache in the same
// document update, so both always describe the latest applied append.
func (s *MongoStore) AppendChatMessage(ctx context.Context, chatID string, msg Message) (Chat, error) {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var doc chatDoc
	err := s.chats().FindOneAndUpdate(ctx,
		bson.M{"_id": chatID},
		bson.M{
			"$push":        bson.M{"messages": messageDoc{ID: msg.ID, Sender: msg.Sender, Text: msg.Text, CreatedAt: createdAt}},
			"$set":         bson.M{"lastMessage": msg.Text},
			"$currentDate": bson.M{"lastMessageTime": true, "updatedAt": true},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("append chat message: %w", err)
	}
	return doc.toChat(), nil
}

func (s *MongoStore) MarkChatRead(ctx context.Context, chatID, readerID string) error {
	_, err := s.chats().UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{"$set": bson.M{"messages.$[m].read": true}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"m.sender": bson.M{"$ne": readerID}, "m.read": false}},
		}),
	)
	if err != nil {
		return fmt.Errorf("mark chat read: %w", err)
	}
	return nil
}

type refreshSessionDoc struct {
	TokenHash string     `bson:"_id"`
	UserID    string     `bson:"userId"`
	ExpiresAt time.Time  `bson:"expiresAt"`
	RevokedAt *time.Time `bson:"revokedAt"`
}

func (s *MongoStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.Collection(collRefreshSessions).ReplaceOne(ctx,
		bson.M{"_id": tokenHash},
		refreshSessionDoc{TokenHash: tokenHash, UserID: userID, ExpiresAt: expiresAt.UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *MongoStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.Collection(collRefreshSessions).UpdateOne(ctx,
		bson.M{"_id": tokenHash},
		bson.M{"$set": bson.M{"revokedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *MongoStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var doc refreshSessionDoc
	err := s.db.Collection(collRefreshSessions).FindOne(ctx, bson.M{
		"_id":       tokenHash,
		"revokedAt": nil,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	return s.GetUserByID(ctx, doc.UserID)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
