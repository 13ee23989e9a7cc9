package services

import "github.com/prometheus/client_golang/prometheus"

var (
	capsulesUnlocked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timink_capsules_unlocked_total",
		Help: "Capsules moved from locked to unlocked",
	})
	capsuleContents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timink_capsule_contents_total",
		Help: "Capsule content submissions stored",
	})
	diaryEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timink_diary_entries_total",
		Help: "Diary entries stored",
	})
	pushFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timink_push_failures_total",
			Help: "Push deliveries that failed, by notification type",
		},
		[]string{"type"},
	)
)

// RegisterMetrics registers the domain counters. Call once from main.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(capsulesUnlocked, capsuleContents, diaryEntries, pushFailures)
}
