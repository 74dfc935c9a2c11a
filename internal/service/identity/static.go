package identity

import (
	"sync"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// Static — простой провайдер текущего пользователя сессии.
// Реальный identity-провайдер внешний; ядро лишь читает его факт.
type Static struct {
	mu   sync.RWMutex
	user *domain.User
}

// NewStatic создаёт провайдер гостевой сессии.
func NewStatic() *Static {
	return &Static{}
}

// Current возвращает текущего пользователя или гостевой профиль.
func (s *Static) Current() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return domain.Guest()
	}
	return *s.user
}

// Set фиксирует логин пользователя.
func (s *Static) Set(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
}

// Clear фиксирует логаут; сессия становится гостевой.
func (s *Static) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

var _ domain.CurrentUserProvider = (*Static)(nil)
