package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/semesterplan/internal/db"
	"github.com/example/semesterplan/internal/domain/user"
	"github.com/example/semesterplan/internal/internaltypes"
)

const (
	cookieName = "semesterplan_session"
	sessionTTL = 14 * 24 * time.Hour
)

// querier is the part of *db.DB the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) error
	QueryRow(ctx context.Context, sql string, args ...any) db.Row
}

type Store struct {
	sc *securecookie.SecureCookie
	db querier
}

type ctxKey string

const userKey ctxKey = "user"

func NewStore(d querier, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, db: d}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

func (s *Store) CreateUser(ctx context.Context, username, password string, admin bool) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.Exec(ctx, `INSERT INTO users(username, password_bcrypt, is_admin) VALUES ($1,$2,$3)`, username, hash, admin)
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	var u user.User
	var hash string
	err := s.db.QueryRow(ctx, `SELECT id, username, password_bcrypt, is_admin, created_at FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &hash, &u.Admin, &u.CreatedAt)
	if err != nil {
		return user.User{}, db.WrapNotFound(err)
	}
	if !CheckPassword(hash, password) {
		return user.User{}, errors.New("invalid credentials")
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.db.QueryRow(ctx, `SELECT id, username, is_admin, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &u.Admin, &u.CreatedAt)
	if err != nil {
		return user.User{}, db.WrapNotFound(err)
	}
	return u, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	err := s.db.QueryRow(ctx, `SELECT id, username, is_admin, created_at FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &u.Admin, &u.CreatedAt)
	if err != nil {
		return user.User{}, db.WrapNotFound(err)
	}
	return u, nil
}

type Session struct {
	UserID int64
}

type sessionValue struct {
	UID int64
	V   int
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	encoded, err := s.sc.Encode(cookieName, sessionValue{UID: userID, V: 1})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	var val sessionValue
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	if val.UID <= 0 {
		return Session{}, false
	}
	return Session{UserID: val.UID}, true
}

// CheckAndGetUser returns the user behind the request's session. An invalid
// session, or one for a deleted user, yields
// internaltypes.ErrUnauthorized.
func (s *Store) CheckAndGetUser(r *http.Request) (user.User, error) {
	sess, ok := s.GetSession(r)
	if !ok {
		return user.User{}, internaltypes.ErrUnauthorized
	}
	u, err := s.UserByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, internaltypes.ErrNotFound) {
			return user.User{}, internaltypes.ErrUnauthorized
		}
		return user.User{}, fmt.Errorf("load session user: %w", err)
	}
	return u, nil
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.CheckAndGetUser(r)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey).(user.User)
	return u, ok
}
