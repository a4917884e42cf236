package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpDurationSeconds   *prometheus.HistogramVec
	lessonsCompletedTotal prometheus.Counter
	coursesCompletedTotal prometheus.Counter
	pointsAwardedTotal    prometheus.Counter
	badgesUnlockedTotal   *prometheus.CounterVec
	quizSubmissionsTotal  *prometheus.CounterVec
	streakUpdatesTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the progress engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		lessonsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessons_completed_total",
			Help: "Lessons transitioned to completed.",
		})

		coursesCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courses_completed_total",
			Help: "Course completion facts created.",
		})

		pointsAwardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_awarded_total",
			Help: "Reward points granted to students.",
		})

		badgesUnlockedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "badges_unlocked_total",
			Help: "Badges unlocked by students.",
		}, []string{"badge"})

		quizSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_submissions_total",
			Help: "Scored quiz submissions.",
		}, []string{"passed"})

		streakUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_updates_total",
			Help: "Streak transitions by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpDurationSeconds,
			lessonsCompletedTotal,
			coursesCompletedTotal,
			pointsAwardedTotal,
			badgesUnlockedTotal,
			quizSubmissionsTotal,
			streakUpdatesTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPDuration exposes the request latency histogram.
func HTTPDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpDurationSeconds
}

// LessonsCompleted counts newly completed lessons.
func LessonsCompleted() prometheus.Counter {
	RegisterMetrics()
	return lessonsCompletedTotal
}

// CoursesCompleted counts created course completions.
func CoursesCompleted() prometheus.Counter {
	RegisterMetrics()
	return coursesCompletedTotal
}

// PointsAwarded sums awarded points.
func PointsAwarded() prometheus.Counter {
	RegisterMetrics()
	return pointsAwardedTotal
}

// BadgesUnlocked counts unlocked badges by name.
func BadgesUnlocked() *prometheus.CounterVec {
	RegisterMetrics()
	return badgesUnlockedTotal
}

// QuizSubmissions counts scored submissions by pass state.
func QuizSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return quizSubmissionsTotal
}

// StreakUpdates counts streak transitions by outcome.
func StreakUpdates() *prometheus.CounterVec {
	RegisterMetrics()
	return streakUpdatesTotal
}
