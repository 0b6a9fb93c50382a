// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"veritas/internal/media"
	"veritas/internal/scoring"

	"github.com/golang-jwt/jwt/v5"
)

// UploaderStub is an in-memory media.Uploader. Uploads into a folder listed
// in Fail are rejected.
type UploaderStub struct {
	Fail map[string]bool

	mu      sync.Mutex
	objects map[string][]byte
}

// NewUploaderStub creates an uploader stub that fails for the given folders.
func NewUploaderStub(failFolders ...string) *UploaderStub {
	fail := make(map[string]bool, len(failFolders))
	for _, f := range failFolders {
		fail[f] = true
	}
	return &UploaderStub{Fail: fail, objects: make(map[string][]byte)}
}

// Upload drains the body and returns a deterministic URL.
func (u *UploaderStub) Upload(_ context.Context, obj media.Object) (string, error) {
	if u.Fail[obj.Folder] {
		return "", errors.New("media store unavailable")
	}
	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", err
	}

	key := obj.Folder + "/" + obj.Name
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.objects == nil {
		u.objects = make(map[string][]byte)
	}
	u.objects[key] = body
	return "https://media.test/" + key, nil
}

// Object returns the stored bytes for folder/name.
func (u *UploaderStub) Object(folder, name string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	b, ok := u.objects[folder+"/"+name]
	return b, ok
}

// Count returns how many objects were stored.
func (u *UploaderStub) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}

// ClassifierStub returns a fixed result and counts calls.
type ClassifierStub struct {
	Result scoring.Result
	calls  atomic.Int32
}

// NewClassifierStub returns a classifier that always yields score.
func NewClassifierStub(score int) *ClassifierStub {
	s := scoring.Normalize(float64(score))
	return &ClassifierStub{Result: scoring.Result{Score: &s, Label: scoring.LabelFor(s)}}
}

// Classify implements scoring.Classifier.
func (c *ClassifierStub) Classify(context.Context, string) scoring.Result {
	c.calls.Add(1)
	return c.Result
}

// Calls returns the number of Classify invocations.
func (c *ClassifierStub) Calls() int {
	return int(c.calls.Load())
}

// SignToken issues an HS256 token for sub, the way the identity provider does.
func SignToken(secret, sub string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
