package service

import (
	"context"
	"testing"
	"time"

	"jobook/internal/constants"
	"jobook/internal/storage/models"
	"jobook/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostCreatePermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := NewPostService(f.repo, testLogger)

	alice := f.user(constants.RoleCandidate, "alice@example.com")
	noCompany := f.user(constants.RoleCompany, "solo@example.com")
	pendingOwner := f.user(constants.RoleCompany, "pending@example.com")
	approvedOwner := f.user(constants.RoleCompany, "hr@acme.io")

	pending := &models.Company{OwnerID: pendingOwner.ID, Name: "Pending Ltd", Status: constants.CompanyPending}
	require.NoError(t, f.repo.CreateCompanyWithEvent(ctx, pending, func(*models.Company) (*models.OutboxMessage, error) {
		return &models.OutboxMessage{}, nil
	}))
	acme := f.approvedCompany(approvedOwner, "Acme")

	tests := []struct {
		name    string
		author  *models.User
		in      PostInput
		wantErr error
	}{
		{"candidate find_job", alice, PostInput{PostType: "find_job", Title: "Go dev looking"}, nil},
		{"candidate recruiting", alice, PostInput{PostType: "find_candidate", Title: "Hiring"}, ErrForbidden},
		{"company seeking job", approvedOwner, PostInput{PostType: "find_job", Title: "Looking"}, ErrForbidden},
		{"company without profile", noCompany, PostInput{PostType: "find_candidate", Title: "Hiring"}, ErrForbidden},
		{"pending company", pendingOwner, PostInput{PostType: "find_candidate", Title: "Hiring"}, ErrForbidden},
		{"approved company", approvedOwner, PostInput{PostType: "find_candidate", Title: "Hiring Go"}, nil},
		{"unknown type", alice, PostInput{PostType: "other", Title: "x"}, ErrInvalidInput},
		{"empty title", alice, PostInput{PostType: "find_job", Title: "  "}, ErrInvalidInput},
		{"end in past", alice, PostInput{PostType: "find_job", Title: "x", EndAt: utils.TimePtr(time.Now().Add(-time.Hour))}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := svc.Create(ctx, tt.author, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, constants.PostOpen, view.Status)
			if view.PostType == constants.PostTypeFindCandidate {
				require.NotNil(t, view.CompanyID)
				assert.Equal(t, acme.ID, *view.CompanyID)
			}
		})
	}
}

func TestPostDescriptionSanitized(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := NewPostService(f.repo, testLogger)
	alice := f.user(constants.RoleCandidate, "alice@example.com")

	view, err := svc.Create(ctx, alice, PostInput{
		PostType:    "find_job",
		Title:       "Backend developer",
		Description: `<p>Golang <b>backend</b></p><script>alert(1)</script><a href="javascript:evil()">x</a>`,
		Tags:        []string{"Go", "go", " ", "MySQL"},
	})
	require.NoError(t, err)
	assert.NotContains(t, view.Description, "<script")
	assert.NotContains(t, view.Description, "javascript:")
	assert.Contains(t, view.DescriptionText, "Golang backend")
	assert.NotContains(t, view.DescriptionText, "alert")
	assert.Equal(t, []string{"Go", "MySQL"}, view.TagList())
}

func TestPostUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := NewPostService(f.repo, testLogger)
	alice := f.user(constants.RoleCandidate, "alice@example.com")
	bob := f.user(constants.RoleCandidate, "bob@example.com")
	admin := f.user(constants.RoleAdmin, "admin@jobook.io")

	view, err := svc.Create(ctx, alice, PostInput{PostType: "find_job", Title: "Old title"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob, view.ID, PostUpdate{Title: utils.StringPtr("hijack")})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, alice, view.ID, PostUpdate{
		Title:  utils.StringPtr("New title"),
		Status: utils.StringPtr("closed"),
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, constants.PostClosed, updated.Status)

	_, err = svc.Update(ctx, alice, view.ID, PostUpdate{Status: utils.StringPtr("EXPIRED")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.ErrorIs(t, svc.Delete(ctx, bob, view.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, admin, view.ID))
	_, err = svc.Get(ctx, view.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostListAndExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := NewPostService(f.repo, testLogger)
	alice := f.user(constants.RoleCandidate, "alice@example.com")
	owner := f.user(constants.RoleCompany, "hr@acme.io")
	acme := f.approvedCompany(owner, "Acme")

	f.post(alice, nil, constants.PostTypeFindJob, "Seeking golang role", "")
	expired := f.post(owner, &acme.ID, constants.PostTypeFindCandidate, "Golang engineer", "")
	past := time.Now().Add(-time.Hour)
	expired.EndAt = &past
	f.repo.posts[expired.ID].EndAt = &past
	f.post(owner, &acme.ID, constants.PostTypeFindCandidate, "Java engineer", "")

	all, err := svc.List(ctx, PostQuery{PostType: constants.PostTypeFindCandidate})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)

	active, err := svc.List(ctx, PostQuery{PostType: constants.PostTypeFindCandidate, OnlyActive: true})
	require.NoError(t, err)
	require.Len(t, active.Items, 1)
	assert.Equal(t, "Java engineer", active.Items[0].Title)

	view, err := svc.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.True(t, view.Expired)
	assert.Equal(t, "Acme", view.Company.Name)

	_, err = svc.List(ctx, PostQuery{PostType: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	mp := toMatchingPost(&view.Post, time.Now())
	assert.True(t, mp.Expired)
	assert.Equal(t, "Acme", mp.CompanyName)
}
