package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/repository"
)

const maxLessonMediaBytes = 200 << 20

// ErrMediaTooLarge indicates the uploaded lesson media exceeds the size limit.
var ErrMediaTooLarge = errors.New("lesson media exceeds maximum allowed size")

// FileUploader stores lesson media and returns its public URL.
type FileUploader interface {
	Upload(ctx context.Context, folder, name, contentType string, body io.Reader) (string, error)
}

// CatalogService manages courses and lessons.
type CatalogService interface {
	ListCourses(ctx context.Context, actor Actor) ([]dto.CourseResponse, error)
	GetCourse(ctx context.Context, actor Actor, courseID uint) (dto.CourseDetailResponse, error)
	CreateCourse(ctx context.Context, actor Actor, req dto.CourseCreateRequest) (dto.CourseResponse, error)
	UpdateCourse(ctx context.Context, actor Actor, courseID uint, req dto.CourseUpdateRequest) (dto.CourseResponse, error)
	SetCourseActive(ctx context.Context, actor Actor, courseID uint, active bool) (dto.CourseResponse, error)
	CreateLesson(ctx context.Context, actor Actor, courseID uint, req dto.LessonCreateRequest, media *multipart.FileHeader) (dto.LessonResponse, error)
	SetLessonActive(ctx context.Context, actor Actor, lessonID uint, active bool) (dto.LessonResponse, error)
}

type catalogService struct {
	store     *repository.Store
	uploader  FileUploader
	activity  ActivityRecorder
	validator *validator.Validate
	strict    *bluemonday.Policy
	rich      *bluemonday.Policy
	logger    zerolog.Logger
}

// NewCatalogService constructs the catalog service. uploader and activity may be nil.
func NewCatalogService(store *repository.Store, uploader FileUploader, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) CatalogService {
	rich := bluemonday.UGCPolicy()
	rich.AllowElements("p", "strong", "em", "a", "ul", "ol", "li", "br", "code", "pre")

	return &catalogService{
		store:     store,
		uploader:  uploader,
		activity:  activity,
		validator: validate,
		strict:    bluemonday.StrictPolicy(),
		rich:      rich,
		logger:    logger.With().Str("component", "catalog_service").Logger(),
	}
}

func (s *catalogService) ListCourses(ctx context.Context, actor Actor) ([]dto.CourseResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return nil, err
	}

	courses, err := s.store.Catalog.ListCourses(ctx, repository.CatalogFilter{IncludeInactive: actor.SeesInactive()})
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(courses))
	for _, course := range courses {
		ids = append(ids, course.ID)
	}
	counts, err := s.store.Catalog.ActiveLessonCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, dto.NewCourseResponse(course, counts[course.ID]))
	}
	return responses, nil
}

func (s *catalogService) GetCourse(ctx context.Context, actor Actor, courseID uint) (dto.CourseDetailResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.CourseDetailResponse{}, err
	}

	course, err := s.store.Catalog.GetCourse(ctx, courseID, repository.CatalogFilter{IncludeInactive: actor.SeesInactive()})
	if err != nil {
		return dto.CourseDetailResponse{}, notFound(err, ErrCourseNotFound)
	}
	return dto.NewCourseDetailResponse(course), nil
}

func (s *catalogService) CreateCourse(ctx context.Context, actor Actor, req dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if err := requireCapability(actor, CapabilityInstructor); err != nil {
		return dto.CourseResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		Title:       plainText(s.strict, req.Title),
		Description: strings.TrimSpace(s.rich.Sanitize(req.Description)),
		CreatedBy:   actor.ID,
		IsActive:    true,
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}
	if course.Title == "" {
		return dto.CourseResponse{}, ErrBlankName
	}

	if err := s.store.Catalog.CreateCourse(ctx, &course); err != nil {
		return dto.CourseResponse{}, fmt.Errorf("create course: %w", err)
	}

	s.audit(ctx, actor, "course.created", "course", course.ID, map[string]interface{}{"title": course.Title})
	return dto.NewCourseResponse(course, 0), nil
}

func (s *catalogService) UpdateCourse(ctx context.Context, actor Actor, courseID uint, req dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := requireCapability(actor, CapabilityInstructor); err != nil {
		return dto.CourseResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := plainText(s.strict, *req.Title)
		if title == "" {
			return dto.CourseResponse{}, ErrBlankName
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(s.rich.Sanitize(*req.Description))
	}

	var (
		course models.Course
		err    error
	)
	if len(updates) == 0 {
		course, err = s.store.Catalog.FindCourse(ctx, courseID)
	} else {
		course, err = s.store.Catalog.UpdateCourse(ctx, courseID, updates)
	}
	if err != nil {
		return dto.CourseResponse{}, notFound(err, ErrCourseNotFound)
	}

	if len(updates) > 0 {
		fields := make([]string, 0, len(updates))
		for field := range updates {
			fields = append(fields, field)
		}
		s.audit(ctx, actor, "course.updated", "course", course.ID, map[string]interface{}{"fields": fields})
	}

	count, err := s.store.Catalog.CountActiveLessons(ctx, course.ID)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course, count), nil
}

// SetCourseActive hides or shows a course. Progress and completions are left untouched.
func (s *catalogService) SetCourseActive(ctx context.Context, actor Actor, courseID uint, active bool) (dto.CourseResponse, error) {
	if err := requireCapability(actor, CapabilityInstructor); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.store.Catalog.UpdateCourse(ctx, courseID, map[string]interface{}{"is_active": active})
	if err != nil {
		return dto.CourseResponse{}, notFound(err, ErrCourseNotFound)
	}

	action := "course.deactivated"
	if active {
		action = "course.activated"
	}
	s.audit(ctx, actor, action, "course", course.ID, nil)

	count, err := s.store.Catalog.CountActiveLessons(ctx, course.ID)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course, count), nil
}

func (s *catalogService) CreateLesson(ctx context.Context, actor Actor, courseID uint, req dto.LessonCreateRequest, media *multipart.FileHeader) (dto.LessonResponse, error) {
	if err := requireCapability(actor, CapabilityInstructor); err != nil {
		return dto.LessonResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.LessonResponse{}, err
	}

	if _, err := s.store.Catalog.FindCourse(ctx, courseID); err != nil {
		return dto.LessonResponse{}, notFound(err, ErrCourseNotFound)
	}

	lesson := models.Lesson{
		CourseID:    courseID,
		Title:       plainText(s.strict, req.Title),
		Body:        strings.TrimSpace(s.rich.Sanitize(req.Body)),
		ContentType: strings.ToUpper(strings.TrimSpace(req.ContentType)),
		PDFFile:     strings.TrimSpace(req.PDFFile),
		VideoFile:   strings.TrimSpace(req.VideoFile),
		Order:       req.Order,
		IsActive:    true,
	}
	if req.IsActive != nil {
		lesson.IsActive = *req.IsActive
	}
	if lesson.Title == "" {
		return dto.LessonResponse{}, ErrBlankName
	}

	var payload []byte
	var contentType string
	if media != nil {
		var err error
		payload, contentType, err = readMedia(media, maxLessonMediaBytes)
		if err != nil {
			return dto.LessonResponse{}, err
		}
		if !mediaMatches(lesson.ContentType, contentType) {
			return dto.LessonResponse{}, fmt.Errorf("%w: uploaded %s for a %s lesson", ErrInvalidLessonContent, contentType, lesson.ContentType)
		}
		// the uploaded file replaces any payload path sent with the form
		name := mediaName(media.Filename, contentType)
		lesson.PDFFile, lesson.VideoFile = "", ""
		if lesson.ContentType == models.ContentTypePDF {
			lesson.PDFFile = name
		} else {
			lesson.VideoFile = name
		}
	}

	if err := lesson.Validate(); err != nil {
		return dto.LessonResponse{}, fmt.Errorf("%w: %v", ErrInvalidLessonContent, err)
	}

	taken, err := s.store.Catalog.LessonOrderTaken(ctx, courseID, lesson.Order)
	if err != nil {
		return dto.LessonResponse{}, err
	}
	if taken {
		return dto.LessonResponse{}, ErrDuplicateLessonOrder
	}

	if payload != nil {
		if s.uploader == nil {
			return dto.LessonResponse{}, fmt.Errorf("lesson media storage is not configured")
		}
		folder := fmt.Sprintf("courses/%d", courseID)
		url, err := s.uploader.Upload(ctx, folder, mediaName(media.Filename, contentType), contentType, bytes.NewReader(payload))
		if err != nil {
			return dto.LessonResponse{}, fmt.Errorf("upload lesson media: %w", err)
		}
		if lesson.ContentType == models.ContentTypePDF {
			lesson.PDFFile = url
		} else {
			lesson.VideoFile = url
		}
	}

	if err := s.store.Catalog.CreateLesson(ctx, &lesson); err != nil {
		// a concurrent insert can still hit the unique (course, order) index
		if taken, lookupErr := s.store.Catalog.LessonOrderTaken(ctx, courseID, lesson.Order); lookupErr == nil && taken {
			return dto.LessonResponse{}, ErrDuplicateLessonOrder
		}
		return dto.LessonResponse{}, fmt.Errorf("create lesson: %w", err)
	}

	s.audit(ctx, actor, "lesson.created", "lesson", lesson.ID, map[string]interface{}{
		"course_id":    courseID,
		"content_type": lesson.ContentType,
		"order":        lesson.Order,
	})
	return dto.NewLessonResponse(lesson), nil
}

// SetLessonActive hides or shows a lesson. Deactivation shrinks the set counted for course completion
// but never revokes existing completions.
func (s *catalogService) SetLessonActive(ctx context.Context, actor Actor, lessonID uint, active bool) (dto.LessonResponse, error) {
	if err := requireCapability(actor, CapabilityInstructor); err != nil {
		return dto.LessonResponse{}, err
	}

	lesson, err := s.store.Catalog.SetLessonActive(ctx, lessonID, active)
	if err != nil {
		return dto.LessonResponse{}, notFound(err, ErrLessonNotFound)
	}

	action := "lesson.deactivated"
	if active {
		action = "lesson.activated"
	}
	s.audit(ctx, actor, action, "lesson", lesson.ID, map[string]interface{}{"course_id": lesson.CourseID})
	return dto.NewLessonResponse(lesson), nil
}

func (s *catalogService) audit(ctx context.Context, actor Actor, action, entityType string, entityID uint, metadata map[string]interface{}) {
	id := entityID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   &id,
		Metadata:   metadata,
	})
}

// readMedia loads an uploaded file up to limit bytes and sniffs its MIME type from content.
func readMedia(file *multipart.FileHeader, limit int64) ([]byte, string, error) {
	if file.Size > limit {
		return nil, "", ErrMediaTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, limit+1)); err != nil {
		return nil, "", err
	}
	if int64(buf.Len()) > limit {
		return nil, "", ErrMediaTooLarge
	}

	detected := mimetype.Detect(buf.Bytes()).String()
	if idx := strings.Index(detected, ";"); idx >= 0 {
		detected = detected[:idx]
	}
	return buf.Bytes(), strings.ToLower(strings.TrimSpace(detected)), nil
}

func mediaMatches(contentType, detected string) bool {
	switch contentType {
	case models.ContentTypePDF:
		return detected == "application/pdf"
	case models.ContentTypeVideo:
		return detected == "video/mp4" || detected == "video/webm"
	}
	return false
}

// mediaName gives the uploaded file the extension matching its sniffed type.
func mediaName(original, contentType string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	if base == "" || base == "." {
		base = "lesson"
	}
	switch contentType {
	case "application/pdf":
		return base + ".pdf"
	case "video/webm":
		return base + ".webm"
	default:
		return base + ".mp4"
	}
}
