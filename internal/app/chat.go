package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"estate/api/internal/store"
	"estate/api/internal/util"
)

// CreateOrGetChat returns the thread between actor and owner about a property,
// creating it when none exists. isNew reports whether this call created it.
func (s *Service) CreateOrGetChat(ctx context.Context, actorID, propertyID, ownerID string) (ChatView, bool, error) {
	propertyID = strings.TrimSpace(propertyID)
	ownerID = strings.TrimSpace(ownerID)
	if propertyID == "" {
		return ChatView{}, false, validation("propertyId is required", nil)
	}
	if ownerID == "" {
		return ChatView{}, false, validation("ownerId is required", nil)
	}
	if ownerID == actorID {
		return ChatView{}, false, validation("You cannot start a chat with yourself", nil)
	}

	if _, err := s.store.GetProperty(ctx, propertyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ChatView{}, false, notFound("Property not found")
		}
		return ChatView{}, false, err
	}
	if _, err := s.store.GetUserByID(ctx, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ChatView{}, false, notFound("User not found")
		}
		return ChatView{}, false, err
	}

	chat, created, err := s.store.CreateOrGetChat(ctx, store.Chat{
		ID:           util.NewID("chat"),
		Property:     propertyID,
		Participants: []string{actorID, ownerID},
	})
	if err != nil {
		return ChatView{}, false, err
	}

	views, err := s.chatViews(ctx, []store.Chat{chat})
	if err != nil {
		return ChatView{}, false, err
	}
	return views[0], created, nil
}

// SendMessage appends text to a chat the actor participates in and counts an
// inquiry on the chat's listing.
func (s *Service) SendMessage(ctx context.Context, actorID, chatID, text string) (ChatView, error) {
	if _, err := s.participantChat(ctx, actorID, chatID); err != nil {
		return ChatView{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatView{}, validation("Message text is required", nil)
	}

	chat, err := s.store.AppendChatMessage(ctx, chatID, store.Message{
		ID:     util.NewID("msg"),
		Sender: actorID,
		Text:   text,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ChatView{}, notFound("Chat not found")
		}
		return ChatView{}, err
	}

	// The listing may have been deleted since the thread started.
	if _, err := s.store.IncrementPropertyStat(ctx, chat.Property, store.StatInquiries, 1); err != nil && !errors.Is(err, store.ErrNotFound) {
		return ChatView{}, fmt.Errorf("count inquiry: %w", err)
	}

	views, err := s.chatViews(ctx, []store.Chat{chat})
	if err != nil {
		return ChatView{}, err
	}
	return views[0], nil
}

// MarkChatRead marks every message not sent by the actor as read.
func (s *Service) MarkChatRead(ctx context.Context, actorID, chatID string) error {
	if _, err := s.participantChat(ctx, actorID, chatID); err != nil {
		return err
	}
	if err := s.store.MarkChatRead(ctx, chatID, actorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Chat not found")
		}
		return err
	}
	return nil
}

func (s *Service) ListChats(ctx context.Context, actorID string) ([]ChatView, error) {
	chats, err := s.store.ListChatsForUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	for _, chat := range chats {
		checkParticipants(chat)
	}
	return s.chatViews(ctx, chats)
}

func (s *Service) GetChat(ctx context.Context, actorID, chatID string) (ChatView, error) {
	chat, err := s.participantChat(ctx, actorID, chatID)
	if err != nil {
		return ChatView{}, err
	}
	views, err := s.chatViews(ctx, []store.Chat{chat})
	if err != nil {
		return ChatView{}, err
	}
	return views[0], nil
}

func (s *Service) participantChat(ctx context.Context, actorID, chatID string) (store.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Chat{}, notFound("Chat not found")
	}
	if err != nil {
		return store.Chat{}, err
	}
	checkParticipants(chat)
	if !chat.HasParticipant(actorID) {
		return store.Chat{}, forbidden("Not authorized")
	}
	return chat, nil
}

// checkParticipants logs threads that do not have exactly two distinct participants.
func checkParticipants(chat store.Chat) {
	distinct := len(uniqueStrings(chat.Participants))
	if len(chat.Participants) != 2 || distinct != 2 {
		log.Printf("chat: integrity: chat %s has %d participants (%d distinct)", chat.ID, len(chat.Participants), distinct)
	}
}

// chatViews populates listings, participants and senders with one lookup each.
func (s *Service) chatViews(ctx context.Context, chats []store.Chat) ([]ChatView, error) {
	propertyIDs := make([]string, 0, len(chats))
	userIDs := make([]string, 0, len(chats)*2)
	for _, chat := range chats {
		propertyIDs = append(propertyIDs, chat.Property)
		userIDs = append(userIDs, chat.Participants...)
		for _, msg := range chat.Messages {
			userIDs = append(userIDs, msg.Sender)
		}
	}

	items, err := s.store.ListPropertiesByIDs(ctx, uniqueStrings(propertyIDs))
	if err != nil {
		return nil, fmt.Errorf("load chat listings: %w", err)
	}
	properties := make(map[string]store.Property, len(items))
	for _, item := range items {
		properties[item.ID] = item
	}
	dir, err := s.loadDirectory(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]ChatView, 0, len(chats))
	for _, chat := range chats {
		view := ChatView{
			ID:              chat.ID,
			Participants:    make([]ParticipantView, 0, len(chat.Participants)),
			Messages:        make([]MessageView, 0, len(chat.Messages)),
			LastMessage:     chat.LastMessage,
			LastMessageTime: chat.LastMessageTime,
			CreatedAt:       chat.CreatedAt,
			UpdatedAt:       chat.UpdatedAt,
		}
		if item, ok := properties[chat.Property]; ok {
			view.Property = newPropertySummary(item)
		}
		for _, id := range chat.Participants {
			view.Participants = append(view.Participants, dir.participant(id))
		}
		for _, msg := range chat.Messages {
			view.Messages = append(view.Messages, MessageView{
				ID:        msg.ID,
				Sender:    dir.sender(msg.Sender),
				Text:      msg.Text,
				Read:      msg.Read,
				CreatedAt: msg.CreatedAt,
			})
		}
		views = append(views, view)
	}
	return views, nil
}
