package service

import "errors"

var (
	// ErrForbidden indicates the actor lacks the capability required by the operation.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrNotEnrolled indicates the student is not enrolled in the course owning the lesson or quiz.
	ErrNotEnrolled = errors.New("student is not enrolled in this course")
	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrCourseNotFound indicates the course does not exist or is hidden from the actor.
	ErrCourseNotFound = errors.New("course not found")
	// ErrLessonNotFound indicates the lesson does not exist or is hidden from the actor.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrQuizNotFound indicates the quiz does not exist or is hidden from the actor.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizResultNotFound indicates the student has not submitted the quiz yet.
	ErrQuizResultNotFound = errors.New("quiz result not found")
	// ErrBadgeNotFound indicates the badge does not exist.
	ErrBadgeNotFound = errors.New("badge not found")
	// ErrSessionNotFound indicates there is no open session to close.
	ErrSessionNotFound = errors.New("no open session")
	// ErrNotEligible indicates the student has not completed the course.
	ErrNotEligible = errors.New("course not completed; certificate unavailable")
	// ErrInvalidSubmission indicates a structurally malformed quiz submission.
	ErrInvalidSubmission = errors.New("invalid quiz submission")
	// ErrProgressRegression indicates an attempt to mark a completed lesson incomplete.
	ErrProgressRegression = errors.New("lesson completion cannot be reverted")
	// ErrInvalidLessonContent indicates the lesson payload does not match its content type.
	ErrInvalidLessonContent = errors.New("lesson content does not match its content type")
	// ErrDuplicateLessonOrder indicates another lesson of the course already uses the order.
	ErrDuplicateLessonOrder = errors.New("lesson order already used in this course")
	// ErrInvalidQuestion indicates a question without at least two options and exactly one correct option.
	ErrInvalidQuestion = errors.New("question needs at least two options and exactly one correct option")
	// ErrInvalidQuestionFile indicates an unreadable question import file.
	ErrInvalidQuestionFile = errors.New("question file must be a CSV document")
	// ErrDuplicateBadge indicates a badge with the same name exists.
	ErrDuplicateBadge = errors.New("badge name already exists")
	// ErrBlankName indicates a title or name that is empty once markup is stripped.
	ErrBlankName = errors.New("name is empty after removing markup")
	// ErrInvalidPointsAmount indicates a non-positive award.
	ErrInvalidPointsAmount = errors.New("points amount must be positive")
)
