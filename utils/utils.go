package utils

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/config"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	RefreshCookieName = "refresh_token"
	refreshCookiePath = "/api/auth"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func StringsToObjectIDs(ids []string) ([]bson.ObjectID, error) {
	objectIDs := make([]bson.ObjectID, 0, len(ids))

	for _, id := range ids {
		objID, err := bson.ObjectIDFromHex(id)
		if err != nil {
			return nil, err
		}
		objectIDs = append(objectIDs, objID)
	}

	return objectIDs, nil
}

func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	return strings.Contains(err.Error(), "E11000 duplicate key error")
}

func GenerateSlug(name string) string {
	// strip accents
	t := norm.NFD.String(name)
	var b strings.Builder
	for _, r := range t {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	s := strings.ToLower(b.String())
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeTags slugs every tag and drops empties and duplicates, keeping order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		slug := GenerateSlug(tag)
		if slug == "" {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}

func ParseBoolQuery(value string) (*bool, error) {
	if value == "" {
		return nil, nil // not provided
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func ParseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPassword(hash string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// SetRefreshCookie stores the refresh token in an httpOnly cookie that
// expires together with the ledger entry.
func SetRefreshCookie(c *gin.Context, cfg config.CookieConfig, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Domain:   cfg.Domain,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: sameSite(cfg),
	})
}

func ClearRefreshCookie(c *gin.Context, cfg config.CookieConfig) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: sameSite(cfg),
	})
}

// cross-site cookies need SameSite=None, which browsers only accept with Secure
func sameSite(cfg config.CookieConfig) http.SameSite {
	if cfg.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
