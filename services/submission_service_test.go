package services

import (
	"testing"

	"bounty-marketplace/models"

	"github.com/stretchr/testify/require"
)

func TestCreateSubmissionRequiresActiveBounty(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db)

	draft := seedBounty(t, db, "creator", models.BountyStatusDraft)
	_, err := svc.createSubmission(draft.ID, CreateSubmissionRequest{
		ContentType: models.ContentTypeURL,
		Title:       "entry",
		URLs:        []string{"https://example.com"},
	}, Requester{ID: "submitter"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.createSubmission("missing", CreateSubmissionRequest{
		ContentType: models.ContentTypeURL,
		URLs:        []string{"https://example.com"},
	}, Requester{ID: "submitter"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSubmissionContentValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)

	_, err := svc.createSubmission(bounty.ID, CreateSubmissionRequest{
		ContentType: models.ContentTypeURL,
		Title:       "no urls",
	}, Requester{ID: "submitter"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.createSubmission(bounty.ID, CreateSubmissionRequest{
		ContentType: models.ContentTypeText,
		Title:       "no text",
	}, Requester{ID: "submitter"})
	require.ErrorIs(t, err, ErrValidation)

	// the seeded bounty does not accept file submissions
	_, err = svc.createSubmission(bounty.ID, CreateSubmissionRequest{
		ContentType: models.ContentTypeFile,
		Title:       "wrong type",
	}, Requester{ID: "submitter"})
	require.ErrorIs(t, err, ErrValidation)

	sub, err := svc.createSubmission(bounty.ID, CreateSubmissionRequest{
		ContentType: models.ContentTypeMixed,
		Title:       "full entry",
		Content:     "writeup",
		URLs:        []string{"https://example.com/poc"},
	}, Requester{ID: "submitter"})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, sub.Status)
	require.Equal(t, "submitter", sub.SubmitterID)
}

func TestUpdateSubmissionOwnerAndStatusRules(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")

	title := "revised entry"
	_, err := svc.updateSubmission(sub.ID, UpdateSubmissionRequest{Title: &title}, Requester{ID: "stranger"})
	require.ErrorIs(t, err, ErrForbidden)

	urls := []string{"https://example.com/v2"}
	updated, err := svc.updateSubmission(sub.ID, UpdateSubmissionRequest{
		Title: &title,
		URLs:  &urls,
	}, Requester{ID: "submitter"})
	require.NoError(t, err)
	require.Equal(t, "revised entry", updated.Title)
	require.Equal(t, []string{"https://example.com/v2"}, updated.URLs)
	require.Equal(t, "how I did it", updated.Description)

	// once scoring starts the entry is frozen
	require.NoError(t, db.Model(sub).Update("status", models.SubmissionStatusValidating).Error)
	_, err = svc.updateSubmission(sub.ID, UpdateSubmissionRequest{Title: &title}, Requester{ID: "submitter"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateSubmissionKeepsContentTypeInvariant(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)

	// a url-type submission may not end up with zero URLs
	urlSub := seedSubmission(t, db, bounty.ID, "submitter")
	empty := []string{}
	_, err := svc.updateSubmission(urlSub.ID, UpdateSubmissionRequest{URLs: &empty}, Requester{ID: "submitter"})
	require.ErrorIs(t, err, ErrValidation)

	var reloaded models.Submission
	require.NoError(t, db.First(&reloaded, "id = ?", urlSub.ID).Error)
	require.Equal(t, []string{"https://example.com/work"}, reloaded.URLs)

	// a text-type submission may not have its content blanked
	textSub, err := svc.createSubmission(bounty.ID, CreateSubmissionRequest{
		ContentType: models.ContentTypeText,
		Title:       "text entry",
		Content:     "writeup",
	}, Requester{ID: "submitter"})
	require.NoError(t, err)

	blank := ""
	_, err = svc.updateSubmission(textSub.ID, UpdateSubmissionRequest{Content: &blank}, Requester{ID: "submitter"})
	require.ErrorIs(t, err, ErrValidation)

	// replacing content with non-empty content still works
	revised := "revised writeup"
	updated, err := svc.updateSubmission(textSub.ID, UpdateSubmissionRequest{Content: &revised}, Requester{ID: "submitter"})
	require.NoError(t, err)
	require.Equal(t, "revised writeup", updated.Content)
}

func TestListSubmissionsRedactsForeignContent(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	mine := seedSubmission(t, db, bounty.ID, "me")
	seedSubmission(t, db, bounty.ID, "them")

	views, err := svc.listSubmissions(bounty.ID, Requester{ID: "me"})
	require.NoError(t, err)
	require.Len(t, views, 2)

	for _, v := range views {
		if v.ID == mine.ID {
			require.False(t, v.IsAnonymized)
			require.Equal(t, "how I did it", v.Description)
			continue
		}
		require.True(t, v.IsAnonymized)
		require.Equal(t, models.HiddenContentPlaceholder, v.Description)
		require.Empty(t, v.URLs)
	}
}

func TestAttachFileOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db)

	bounty := seedBounty(t, db, "creator", models.BountyStatusActive)
	sub := seedSubmission(t, db, bounty.ID, "submitter")

	_, err := svc.attachFile(sub.ID, "poc.zip", "application/zip", "archive", 1024, "submissions/x/poc.zip", Requester{ID: "stranger"})
	require.ErrorIs(t, err, ErrForbidden)

	file, err := svc.attachFile(sub.ID, "poc.zip", "application/zip", "archive", 1024, "submissions/x/poc.zip", Requester{ID: "submitter"})
	require.NoError(t, err)
	require.Equal(t, sub.ID, file.SubmissionID)
	require.Equal(t, "poc.zip", file.OriginalName)
}
