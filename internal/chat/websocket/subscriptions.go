package websocket

import "github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"

// SubscriptionIndex records which chats each user is currently listening to,
// indexed both ways. It is not safe for concurrent use; Hub serializes access.
type SubscriptionIndex struct {
	subscribed   map[domain.UserID]map[domain.ChatID]struct{}
	participants map[domain.ChatID]map[domain.UserID]struct{}
}

func NewSubscriptionIndex() *SubscriptionIndex {
	return &SubscriptionIndex{
		subscribed:   make(map[domain.UserID]map[domain.ChatID]struct{}),
		participants: make(map[domain.ChatID]map[domain.UserID]struct{}),
	}
}

func (s *SubscriptionIndex) Subscribe(user domain.UserID, chat domain.ChatID) {
	chats, ok := s.subscribed[user]
	if !ok {
		chats = make(map[domain.ChatID]struct{})
		s.subscribed[user] = chats
	}
	chats[chat] = struct{}{}

	users, ok := s.participants[chat]
	if !ok {
		users = make(map[domain.UserID]struct{})
		s.participants[chat] = users
	}
	users[user] = struct{}{}
}

func (s *SubscriptionIndex) Unsubscribe(user domain.UserID, chat domain.ChatID) {
	if chats, ok := s.subscribed[user]; ok {
		delete(chats, chat)
		if len(chats) == 0 {
			delete(s.subscribed, user)
		}
	}

	if users, ok := s.participants[chat]; ok {
		delete(users, user)
		if len(users) == 0 {
			delete(s.participants, chat)
		}
	}
}

// UnsubscribeAll removes every subscription of user and returns the chats it held.
func (s *SubscriptionIndex) UnsubscribeAll(user domain.UserID) []domain.ChatID {
	chats, ok := s.subscribed[user]
	if !ok {
		return nil
	}
	delete(s.subscribed, user)

	prior := make([]domain.ChatID, 0, len(chats))
	for chat := range chats {
		prior = append(prior, chat)
		if users, ok := s.participants[chat]; ok {
			delete(users, user)
			if len(users) == 0 {
				delete(s.participants, chat)
			}
		}
	}
	return prior
}

func (s *SubscriptionIndex) ChatsOf(user domain.UserID) []domain.ChatID {
	chats := s.subscribed[user]
	out := make([]domain.ChatID, 0, len(chats))
	for chat := range chats {
		out = append(out, chat)
	}
	return out
}

func (s *SubscriptionIndex) ParticipantsOf(chat domain.ChatID) []domain.UserID {
	users := s.participants[chat]
	out := make([]domain.UserID, 0, len(users))
	for user := range users {
		out = append(out, user)
	}
	return out
}

func (s *SubscriptionIndex) IsSubscribed(user domain.UserID, chat domain.ChatID) bool {
	_, ok := s.subscribed[user][chat]
	return ok
}
