// services/submission_service.go
package services

import (
	"errors"
	"fmt"
	"path/filepath"

	"bounty-marketplace/models"
	"bounty-marketplace/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionService struct {
	DB *gorm.DB
}

func NewSubmissionService(db *gorm.DB) *SubmissionService {
	return &SubmissionService{DB: db}
}

type CreateSubmissionRequest struct {
	ContentType models.SubmissionContentType `json:"content_type"`
	Title       string                       `json:"title"`
	Description string                       `json:"description"`
	Content     string                       `json:"content"`
	URLs        []string                     `json:"urls"`
}

// UpdateSubmissionRequest is the allow-listed owner patch, usable only
// while the submission is still pending evaluation.
type UpdateSubmissionRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Content     *string   `json:"content,omitempty"`
	URLs        *[]string `json:"urls,omitempty"`
}

func validateSubmissionContent(contentType models.SubmissionContentType, content string, urls []string) error {
	switch contentType {
	case models.ContentTypeURL, models.ContentTypeFile, models.ContentTypeText, models.ContentTypeMixed:
	default:
		return ValidationError(fmt.Sprintf("unsupported content type %q", contentType))
	}
	if contentType.RequiresURLs() && len(urls) == 0 {
		return ValidationError("this content type requires at least one URL")
	}
	if contentType.RequiresText() && content == "" {
		return ValidationError("this content type requires text content")
	}
	return nil
}

func (s *SubmissionService) createSubmission(bountyID string, req CreateSubmissionRequest, requester Requester) (*models.Submission, error) {
	var bounty models.Bounty
	if err := s.DB.First(&bounty, "id = ?", bountyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("bounty not found")
		}
		return nil, err
	}
	if bounty.Status != models.BountyStatusActive {
		return nil, ValidationError("bounty is not accepting submissions")
	}
	if err := validateSubmissionContent(req.ContentType, req.Content, req.URLs); err != nil {
		return nil, err
	}
	if len(bounty.AcceptedTypes) > 0 {
		accepted := false
		for _, t := range bounty.AcceptedTypes {
			if models.SubmissionContentType(t) == req.ContentType {
				accepted = true
				break
			}
		}
		if !accepted {
			return nil, ValidationError(fmt.Sprintf("bounty does not accept %q submissions", req.ContentType))
		}
	}

	sub := &models.Submission{
		ID:          uuid.NewString(),
		BountyID:    bounty.ID,
		SubmitterID: requester.ID,
		Status:      models.SubmissionStatusPending,
		ContentType: req.ContentType,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		URLs:        req.URLs,
		ScoredBy:    []string{},
	}
	if err := s.DB.Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubmissionService) getSubmissionWithBounty(id string) (*models.Submission, *models.Bounty, error) {
	var sub models.Submission
	err := s.DB.Preload("Files").Preload("Votes").First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, NotFoundError("submission not found")
	}
	if err != nil {
		return nil, nil, err
	}
	var bounty models.Bounty
	if err := s.DB.First(&bounty, "id = ?", sub.BountyID).Error; err != nil {
		return nil, nil, err
	}
	return &sub, &bounty, nil
}

func (s *SubmissionService) listSubmissions(bountyID string, requester Requester) ([]SubmissionView, error) {
	var bounty models.Bounty
	if err := s.DB.First(&bounty, "id = ?", bountyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("bounty not found")
		}
		return nil, err
	}

	var subs []models.Submission
	if err := s.DB.Preload("Files").Preload("Votes").
		Where("bounty_id = ?", bountyID).Order("created_at ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}

	views := make([]SubmissionView, 0, len(subs))
	for i := range subs {
		views = append(views, SerializeSubmission(&subs[i], &bounty, requester))
	}
	return views, nil
}

func (s *SubmissionService) updateSubmission(id string, req UpdateSubmissionRequest, requester Requester) (*models.Submission, error) {
	sub, _, err := s.getSubmissionWithBounty(id)
	if err != nil {
		return nil, err
	}
	if requester.ID != sub.SubmitterID && !requester.IsAdmin {
		return nil, ForbiddenError("not allowed to update this submission")
	}
	if sub.Status != models.SubmissionStatusPending {
		return nil, ValidationError("submission can only be edited while pending")
	}

	// The patched submission must still satisfy its content type.
	content := sub.Content
	if req.Content != nil {
		content = *req.Content
	}
	urls := sub.URLs
	if req.URLs != nil {
		urls = *req.URLs
	}
	if err := validateSubmissionContent(sub.ContentType, content, urls); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if len(updates) > 0 {
		if err := s.DB.Model(sub).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	if req.URLs != nil {
		if err := s.DB.Model(sub).Select("urls").
			Updates(models.Submission{URLs: *req.URLs}).Error; err != nil {
			return nil, err
		}
	}

	sub, _, err = s.getSubmissionWithBounty(id)
	return sub, err
}

func (s *SubmissionService) attachFile(submissionID, originalName, mimeType, category string, size int64, storageKey string, requester Requester) (*models.SubmissionFile, error) {
	sub, _, err := s.getSubmissionWithBounty(submissionID)
	if err != nil {
		return nil, err
	}
	if requester.ID != sub.SubmitterID && !requester.IsAdmin {
		return nil, ForbiddenError("not allowed to attach files to this submission")
	}

	file := &models.SubmissionFile{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		OriginalName: originalName,
		StorageKey:   storageKey,
		Size:         size,
		MimeType:     mimeType,
		Category:     category,
	}
	if err := s.DB.Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

// --- fiber handlers ---

func (s *SubmissionService) CreateSubmission(c *fiber.Ctx) error {
	var req CreateSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	sub, err := s.createSubmission(c.Params("id"), req, RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (s *SubmissionService) GetSubmissionsByBounty(c *fiber.Ctx) error {
	views, err := s.listSubmissions(c.Params("id"), RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(views)
}

func (s *SubmissionService) GetSubmissionByID(c *fiber.Ctx) error {
	sub, bounty, err := s.getSubmissionWithBounty(c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(SerializeSubmission(sub, bounty, RequesterFromCtx(c)))
}

func (s *SubmissionService) UpdateSubmission(c *fiber.Ctx) error {
	var req UpdateSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	sub, err := s.updateSubmission(c.Params("id"), req, RequesterFromCtx(c))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(sub)
}

// UploadSubmissionFile stores the multipart file in object storage and
// records its metadata against the submission.
func (s *SubmissionService) UploadSubmissionFile(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	ext := filepath.Ext(fileHeader.Filename)
	if ext == "" {
		ext = ".bin"
	}
	storageKey := "submissions/" + c.Params("id") + "/" + uuid.NewString() + ext

	if err := utils.UploadFileToStorage(fileHeader, storageKey); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload file"})
	}

	file, err := s.attachFile(
		c.Params("id"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		c.FormValue("category"),
		fileHeader.Size,
		storageKey,
		RequesterFromCtx(c),
	)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(file)
}

// DownloadSubmissionFile hands out a time-limited signed URL after the
// file-access policy check. Bytes never stream through this service.
func (s *SubmissionService) DownloadSubmissionFile(c *fiber.Ctx) error {
	var file models.SubmissionFile
	if err := s.DB.First(&file, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RespondError(c, NotFoundError("file not found"))
		}
		return RespondError(c, err)
	}

	sub, bounty, err := s.getSubmissionWithBounty(file.SubmissionID)
	if err != nil {
		return RespondError(c, err)
	}
	if !CanAccessFile(sub, bounty, RequesterFromCtx(c)) {
		return RespondError(c, ForbiddenError("not allowed to access this file"))
	}

	url, err := utils.PresignDownloadURL(c.Context(), file.StorageKey)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to sign download URL"})
	}
	return c.JSON(fiber.Map{
		"url":           url,
		"original_name": file.OriginalName,
		"mime_type":     file.MimeType,
		"size":          file.Size,
	})
}
