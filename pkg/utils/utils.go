package utils

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ArtifactName(prefix string, callID string, ext string) string
	SplitList(raw string) []string
}

type utils struct{}

func New() IUtils {
	return &utils{}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ArtifactName builds a unique, path-safe file name such as
// "res_v3-abc_01J....mp3". Call ids from the provider may contain ':'.
func (u *utils) ArtifactName(prefix string, callID string, ext string) string {
	id, err := u.NewULIDFromTimestamp(time.Now())
	if err != nil {
		id = fmt.Sprintf("%d", time.Now().UnixNano())
	}

	safeID := unsafeChars.ReplaceAllString(callID, "-")
	return fmt.Sprintf("%s_%s_%s.%s", prefix, safeID, id, strings.TrimPrefix(ext, "."))
}

// SplitList parses a comma separated env value, dropping blanks.
func (u *utils) SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
