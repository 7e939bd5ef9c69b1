package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"jobook/internal/constants"
	"jobook/internal/storage"
	"jobook/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCVService(f *fixture) *CVService {
	return NewCVService(f.repo, f.objects, f.kv, EventRoute{Exchange: "cv.events", RoutingKey: "cv.uploaded"},
		UploadLimits{MaxCVBytes: 64, MaxImageBytes: 64}, 15*time.Minute, testLogger)
}

func TestCVUploadWritesObjectAndEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := newTestCVService(f)
	alice := f.user(constants.RoleCandidate, "alice@example.com")

	cv, err := svc.Upload(ctx, alice, "", "Alice Resume.PDF", []byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.Equal(t, "Alice Resume", cv.Name)
	assert.Equal(t, constants.CVStatusPending, cv.Status)
	assert.True(t, cv.IsDefault)
	assert.True(t, strings.HasSuffix(cv.FileKey, ".pdf"))
	assert.Equal(t, 1, f.objects.count(storage.BucketCVs))
	assert.Equal(t, "application/pdf", f.objects.types["cvs/"+cv.FileKey])

	require.Len(t, f.repo.outbox, 1)
	msg := f.repo.outbox[0]
	assert.Equal(t, constants.EventCVUploaded, msg.EventType)
	assert.Equal(t, "cv.events", msg.TargetExchange)
	var payload storage.CVUploadedMessage
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, cv.ID, payload.CVID)
	assert.Equal(t, alice.ID, payload.UserID)

	second, err := svc.Upload(ctx, alice, "backend", "b.docx", []byte("PK fake docx"))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
}

func TestCVUploadRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := newTestCVService(f)
	alice := f.user(constants.RoleCandidate, "alice@example.com")
	acme := f.user(constants.RoleCompany, "hr@acme.io")

	_, err := svc.Upload(ctx, acme, "cv", "a.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Upload(ctx, alice, "cv", "a.exe", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, alice, "cv", "a.pdf", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, alice, "cv", "a.pdf", make([]byte, 65))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCVUploadRollsBackObjectOnDBError(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := newTestCVService(f)
	alice := f.user(constants.RoleCandidate, "alice@example.com")

	f.repo.failNext = errors.New("db down")
	_, err := svc.Upload(ctx, alice, "cv", "a.pdf", []byte("%PDF"))
	require.Error(t, err)
	assert.Equal(t, 0, f.objects.count(storage.BucketCVs))
	assert.Empty(t, f.repo.outbox)
}

func TestCVDeletePromotesNewestToDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := newTestCVService(f)
	alice := f.user(constants.RoleCandidate, "alice@example.com")
	bob := f.user(constants.RoleCandidate, "bob@example.com")

	first, err := svc.Upload(ctx, alice, "first", "a.pdf", []byte("%PDF"))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, alice, "second", "b.pdf", []byte("%PDF"))
	require.NoError(t, err)
	third, err := svc.Upload(ctx, alice, "third", "c.pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, first.ID), ErrNotFound)

	require.NoError(t, svc.Delete(ctx, alice.ID, first.ID))
	cvs, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, cvs, 2)
	assert.Equal(t, third.ID, cvs[0].ID)
	assert.True(t, cvs[0].IsDefault)
	assert.Equal(t, 2, f.objects.count(storage.BucketCVs))

	require.NoError(t, svc.SetDefault(ctx, alice.ID, second.ID))
	got, err := svc.Get(ctx, alice.ID, second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	url, err := svc.DownloadURL(ctx, alice.ID, second.ID)
	require.NoError(t, err)
	assert.Contains(t, url, second.FileKey)
}

func TestCVTextLoader(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	loader := NewCVTextLoader(f.kv, f.objects, time.Hour, testLogger)

	pending := &models.CV{ID: 1, Status: constants.CVStatusPending, ContentText: "ignored"}
	text, err := loader.Load(ctx, pending)
	require.NoError(t, err)
	assert.Empty(t, text)

	cv := &models.CV{ID: 2, UserID: 9, Status: constants.CVStatusParsed, TextKey: "9/2.txt"}
	require.NoError(t, f.objects.Put(ctx, storage.BucketCVText, "9/2.txt", strings.NewReader("golang backend"), 14, "text/plain"))

	text, err = loader.Load(ctx, cv)
	require.NoError(t, err)
	assert.Equal(t, "golang backend", text)
	assert.Equal(t, "golang backend", f.kv.data["app:cv:text:2"])

	require.NoError(t, f.objects.Remove(ctx, storage.BucketCVText, "9/2.txt"))
	text, err = loader.Load(ctx, cv)
	require.NoError(t, err)
	assert.Equal(t, "golang backend", text)

	missing := &models.CV{ID: 3, Status: constants.CVStatusParsed, TextKey: "gone.txt"}
	_, err = loader.Load(ctx, missing)
	assert.Error(t, err)
}
