// Package dbquery answers a fixed pair of natural-language questions about a
// class with read-only lookups.
package dbquery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/school"
)

// Refusal is returned for questions that match no template.
const Refusal = "Sorry, I can only answer questions about students or teachers for a class."

var (
	studentsInClass = regexp.MustCompile(`(?i)students in class (\w+)`)
	teachersInClass = regexp.MustCompile(`(?i)teachers for class (\w+)`)
)

type Store interface {
	FindClassesByGrade(ctx context.Context, grade, schoolID string) ([]school.Class, error)
	ListStudentNames(ctx context.Context, classID string) ([]string, error)
	ListTeacherSubjects(ctx context.Context, classID string) ([]string, error)
}

type Bridge struct {
	store Store
}

func NewBridge(store Store) *Bridge {
	return &Bridge{store: store}
}

// Answer returns student names, teacher subjects, nil when the class does
// not resolve to exactly one row, or Refusal. schoolID scopes the class
// lookup when set.
func (b *Bridge) Answer(ctx context.Context, question, schoolID string) (any, error) {
	if strings.TrimSpace(question) == "" {
		return nil, common.Invalid("Missing question")
	}

	if m := studentsInClass.FindStringSubmatch(question); m != nil {
		return b.forClass(ctx, m[1], schoolID, b.store.ListStudentNames)
	}
	if m := teachersInClass.FindStringSubmatch(question); m != nil {
		return b.forClass(ctx, m[1], schoolID, b.store.ListTeacherSubjects)
	}
	return Refusal, nil
}

func (b *Bridge) forClass(ctx context.Context, grade, schoolID string, list func(context.Context, string) ([]string, error)) (any, error) {
	classes, err := b.store.FindClassesByGrade(ctx, grade, schoolID)
	if err != nil {
		return nil, fmt.Errorf("find class %q: %w", grade, err)
	}
	if len(classes) != 1 {
		return nil, nil
	}
	out, err := list(ctx, classes[0].ID)
	if err != nil {
		return nil, fmt.Errorf("list for class %q: %w", grade, err)
	}
	return out, nil
}
