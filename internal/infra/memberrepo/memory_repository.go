package memberrepo

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/auth"
)

// MemoryRepository keeps members in process memory.
type MemoryRepository struct {
	mu         sync.RWMutex
	members    map[int64]auth.Member
	emailIndex map[string]int64
	seq        int64
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		members:    make(map[int64]auth.Member),
		emailIndex: make(map[string]int64),
	}
}

// Create stores a member, rejecting duplicate emails.
func (r *MemoryRepository) Create(_ context.Context, email, displayName, passwordHash string) (auth.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.emailIndex[email]; exists {
		return auth.Member{}, auth.ErrEmailExists
	}
	r.seq++
	member := auth.Member{
		ID:           r.seq,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.members[member.ID] = member
	r.emailIndex[email] = member.ID
	return member, nil
}

// GetByEmail returns a member by email.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (auth.Member, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.emailIndex[email]; ok {
		return r.members[id], true, nil
	}
	return auth.Member{}, false, nil
}

// GetByID returns a member by id.
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (auth.Member, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	member, ok := r.members[id]
	return member, ok, nil
}

var _ auth.Repository = (*MemoryRepository)(nil)
