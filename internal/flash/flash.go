// Package flash keeps the notice and the validation errors of a redirect for exactly the next
// request.
package flash

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CookieName is the name of the cookie that carries the flash or its key.
const CookieName = "contacts_flash"

// Flash is the data handed from a mutating request to the page rendered after the redirect.
type Flash struct {
	Success string            `json:"success,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Empty reports whether there is nothing to show.
func (f Flash) Empty() bool {
	return f.Success == "" && len(f.Errors) == 0
}

// Store persists a flash between two requests of the same client.
type Store interface {
	// Put stores the flash for the next request.
	Put(c *gin.Context, f Flash) error
	// Pull returns the stored flash and removes it. A missing flash is not an error.
	Pull(c *gin.Context) (Flash, error)
}

// CookieStore keeps the whole flash in a cookie.
type CookieStore struct {
	Secure bool
}

func (s CookieStore) Put(c *gin.Context, f Flash) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	setCookie(c, base64.RawURLEncoding.EncodeToString(data), 0, s.Secure)
	return nil
}

func (s CookieStore) Pull(c *gin.Context) (Flash, error) {
	value, err := c.Cookie(CookieName)
	if err != nil {
		return Flash{}, nil
	}
	setCookie(c, "", -1, s.Secure)
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Flash{}, fmt.Errorf("decode flash cookie: %w", err)
	}
	var f Flash
	if err := json.Unmarshal(data, &f); err != nil {
		return Flash{}, fmt.Errorf("decode flash cookie: %w", err)
	}
	return f, nil
}

// RedisStore keeps the flash in Redis and only a random key in the cookie.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
	Secure bool
}

func (s RedisStore) Put(c *gin.Context, f Flash) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	key := uuid.NewString()
	if err := s.Client.Set(c.Request.Context(), redisKey(key), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("store flash: %w", err)
	}
	setCookie(c, key, int(s.TTL.Seconds()), s.Secure)
	return nil
}

func (s RedisStore) Pull(c *gin.Context) (Flash, error) {
	key, err := c.Cookie(CookieName)
	if err != nil {
		return Flash{}, nil
	}
	setCookie(c, "", -1, s.Secure)
	data, err := s.Client.GetDel(c.Request.Context(), redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Flash{}, nil
	}
	if err != nil {
		return Flash{}, fmt.Errorf("load flash: %w", err)
	}
	var f Flash
	if err := json.Unmarshal(data, &f); err != nil {
		return Flash{}, fmt.Errorf("decode flash: %w", err)
	}
	return f, nil
}

// Ping verifies that Redis is reachable.
func (s RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func redisKey(key string) string {
	return "contacts:flash:" + key
}

func setCookie(c *gin.Context, value string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, maxAge, "/", "", secure, true)
}
