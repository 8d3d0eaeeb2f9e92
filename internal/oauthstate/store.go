package oauthstate

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/MarkoPoloResearchLab/reviu/internal/storage"
)

const DefaultTTL = 10 * time.Minute

// Store keeps short-lived OAuth state nonces mapped to the user that started the flow.
type Store struct {
	cache        *cache.Cache
	consumeMutex sync.Mutex
}

// NewStore constructs a Store. A non-positive ttl selects DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: cache.New(ttl, 2*ttl)}
}

// Issue returns a fresh nonce bound to the user.
func (store *Store) Issue(userID string) string {
	nonce := storage.NewShareToken()
	store.cache.Set(nonce, strings.TrimSpace(userID), cache.DefaultExpiration)
	return nonce
}

// Consume resolves a nonce once. Expired, unknown and reused nonces are rejected.
func (store *Store) Consume(nonce string) (string, bool) {
	key := strings.TrimSpace(nonce)
	if key == "" {
		return "", false
	}
	store.consumeMutex.Lock()
	value, found := store.cache.Get(key)
	if found {
		store.cache.Delete(key)
	}
	store.consumeMutex.Unlock()
	if !found {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok && userID != ""
}
