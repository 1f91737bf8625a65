// Package inmemdb keeps every table in memory. It backs tests and the "inmem" database engine.
package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/calendar"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/docimport"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
)

// DB guards all tables with a single lock so that cross-table reads stay consistent.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	users           map[string]*user.User
	studentProfiles map[string]*user.StudentProfile
	teacherProfiles map[string]*user.TeacherProfile

	departments       map[string]*course.Department
	academicYears     map[string]*course.AcademicYear
	semesters         map[string]*course.Semester
	courses           map[string]*course.Course
	curricula         map[string]*course.Curriculum
	curriculumCourses map[string]*course.CurriculumCourse
	offerings         map[string]*course.Offering
	enrollments       map[string]*course.Enrollment
	studentCurricula  map[string]*course.StudentCurriculum
	periods           map[string]*course.EnrollmentPeriod
	codes             map[string]*course.EnrollmentCode
	codeUsages        map[string]*course.CodeUsage

	assessments map[string]*assessment.Assessment
	questions   map[string]*assessment.Question
	attempts    map[string]*assessment.Attempt
	answers     map[string]*assessment.Answer
	violations  map[string]*assessment.Violation

	imports map[string]*docimport.DocumentImport

	categories map[string]*calendar.Category
	events     map[string]*calendar.Event
	reminders  map[string]*calendar.Reminder
	settings   map[string]*calendar.Settings

	notifications map[string]*notification.Notification
	announcements map[string]*notification.Announcement

	activity []analytics.Activity
}

func Open() *DB {
	return &DB{
		users:           make(map[string]*user.User),
		studentProfiles: make(map[string]*user.StudentProfile),
		teacherProfiles: make(map[string]*user.TeacherProfile),

		departments:       make(map[string]*course.Department),
		academicYears:     make(map[string]*course.AcademicYear),
		semesters:         make(map[string]*course.Semester),
		courses:           make(map[string]*course.Course),
		curricula:         make(map[string]*course.Curriculum),
		curriculumCourses: make(map[string]*course.CurriculumCourse),
		offerings:         make(map[string]*course.Offering),
		enrollments:       make(map[string]*course.Enrollment),
		studentCurricula:  make(map[string]*course.StudentCurriculum),
		periods:           make(map[string]*course.EnrollmentPeriod),
		codes:             make(map[string]*course.EnrollmentCode),
		codeUsages:        make(map[string]*course.CodeUsage),

		assessments: make(map[string]*assessment.Assessment),
		questions:   make(map[string]*assessment.Question),
		attempts:    make(map[string]*assessment.Attempt),
		answers:     make(map[string]*assessment.Answer),
		violations:  make(map[string]*assessment.Violation),

		imports: make(map[string]*docimport.DocumentImport),

		categories: make(map[string]*calendar.Category),
		events:     make(map[string]*calendar.Event),
		reminders:  make(map[string]*calendar.Reminder),
		settings:   make(map[string]*calendar.Settings),

		notifications: make(map[string]*notification.Notification),
		announcements: make(map[string]*notification.Announcement),
	}
}

type transactor struct {
	db *DB
}

// NewTransactor serializes transactions. Nothing is rolled back on error.
func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

func (tx *transactor) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	tx.db.txMu.Lock()
	defer tx.db.txMu.Unlock()
	return fn(nil)
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
